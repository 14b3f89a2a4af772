// Package grouping clusters an episode's ordered segments into fixed-size
// runs that share a group identifier.
package grouping

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"buildvault/internal/logging"
	"buildvault/internal/services"
	"buildvault/internal/stage"
	"buildvault/internal/store"
)

// DefaultGroupSize is used when Options.GroupSize is not positive.
const DefaultGroupSize = 5

// Store is the slice of the datastore the grouper touches.
type Store interface {
	ListSegments(ctx context.Context, episodeID string) ([]store.Segment, error)
	AssignSegmentGroup(ctx context.Context, groupID string, segmentIDs []string) error
	MarkEpisodeProcessed(ctx context.Context, id string) error
	Capabilities() store.Capabilities
}

// Options controls a Group call.
type Options struct {
	SkipExisting bool
	GroupSize    int
}

// Grouper assigns group IDs to segments.
type Grouper struct {
	store  Store
	logger *slog.Logger
	newID  func() string
}

// New constructs a grouper.
func New(st Store, logger *slog.Logger) *Grouper {
	return &Grouper{
		store:  st,
		logger: logging.NewComponentLogger(logger, stage.Grouping),
		newID:  uuid.NewString,
	}
}

// Group partitions the episode's segments into runs of opts.GroupSize and
// marks the episode processed. Result.Count is the number of groups written.
func (g *Grouper) Group(ctx context.Context, ep *store.Episode, opts Options) stage.Result {
	logger := logging.WithContext(ctx, g.logger)

	if ep.IsProcessed && opts.SkipExisting {
		return stage.Skipped(stage.Grouping, 0, "episode already processed")
	}

	segments, err := g.store.ListSegments(ctx, ep.ID)
	if err != nil {
		return g.fail(logger, err)
	}
	if len(segments) == 0 {
		logger.Info("no segments to group")
		return stage.Succeeded(stage.Grouping, 0, "no segments")
	}

	if !g.store.Capabilities().SegmentGroups {
		gap := services.Wrap(services.ErrCapabilityGap, stage.Grouping, "assign groups",
			"schema has no segment group column", nil)
		logging.WarnWithContext(logger, "segment grouping unavailable", logging.EventStageDegraded,
			logging.String(logging.FieldErrorKind, services.Kind(gap)),
			logging.String(logging.FieldErrorHint, "set store.schema_version = 2 to persist groups"),
			logging.String(logging.FieldImpact, "segments stay ungrouped"),
			logging.Int("schema_version", g.store.Capabilities().SchemaVersion),
		)
		if err := g.markProcessed(ctx, ep); err != nil {
			return g.fail(logger, err)
		}
		return stage.Degraded(stage.Grouping, 0, gap)
	}

	size := opts.GroupSize
	if size <= 0 {
		size = DefaultGroupSize
	}
	store.SortSegments(segments)

	groups := 0
	for _, chunk := range store.Batches(segments, size) {
		ids := make([]string, len(chunk))
		for i, seg := range chunk {
			ids[i] = seg.ID
		}
		if err := g.store.AssignSegmentGroup(ctx, g.newID(), ids); err != nil {
			return g.fail(logger, err)
		}
		groups++
	}
	if err := g.markProcessed(ctx, ep); err != nil {
		return g.fail(logger, err)
	}

	logger.Info("segments grouped",
		logging.Int(logging.FieldCount, groups),
		logging.Int("segments", len(segments)),
		logging.Int("group_size", size),
	)
	return stage.Succeeded(stage.Grouping, groups, "")
}

func (g *Grouper) markProcessed(ctx context.Context, ep *store.Episode) error {
	if err := g.store.MarkEpisodeProcessed(ctx, ep.ID); err != nil {
		return err
	}
	ep.IsProcessed = true
	if ep.Status.Before(store.StatusProcessed) {
		ep.Status = store.StatusProcessed
	}
	return nil
}

func (g *Grouper) fail(logger *slog.Logger, err error) stage.Result {
	logging.WarnWithContext(logger, "segment grouping failed", logging.EventStageFailure,
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String(logging.FieldImpact, "segments stay ungrouped"),
		logging.Error(err),
	)
	return stage.Failed(stage.Grouping, err)
}
