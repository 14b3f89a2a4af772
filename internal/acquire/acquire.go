package acquire

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"buildvault/internal/logging"
	"buildvault/internal/services"
	"buildvault/internal/services/ytdlp"
	"buildvault/internal/stage"
	"buildvault/internal/store"
)

// DescriptionLimit caps the stored description length in runes.
const DescriptionLimit = 500

// Downloader fetches audio and metadata for a source URL.
type Downloader interface {
	Fetch(ctx context.Context, url string) (ytdlp.Media, error)
}

// EpisodeStore is the slice of the datastore the acquirer touches.
type EpisodeStore interface {
	GetEpisode(ctx context.Context, id string) (*store.Episode, error)
	FindEpisodeBySource(ctx context.Context, sourceID string) (*store.Episode, error)
	CreateEpisode(ctx context.Context, ep *store.Episode) error
}

// Request names the episode to acquire. EpisodeID wins when both are set.
type Request struct {
	URL       string
	EpisodeID string
}

// Result extends the stage result with whether the episode was already stored.
type Result struct {
	stage.Result
	AlreadyExists bool
}

// Acquirer resolves or creates the episode for a run.
type Acquirer struct {
	store      EpisodeStore
	downloader Downloader
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs an acquirer. downloader may be nil when runs only target
// existing episodes.
func New(st EpisodeStore, downloader Downloader, logger *slog.Logger) *Acquirer {
	return &Acquirer{
		store:      st,
		downloader: downloader,
		logger:     logging.NewComponentLogger(logger, stage.Acquire),
		now:        time.Now,
	}
}

// Acquire returns the episode for req. A nil episode means the run cannot
// continue; the result explains why.
func (a *Acquirer) Acquire(ctx context.Context, req Request) (*store.Episode, Result) {
	logger := logging.WithContext(ctx, a.logger)

	if id := strings.TrimSpace(req.EpisodeID); id != "" {
		ep, err := a.store.GetEpisode(ctx, id)
		if err != nil {
			a.logFailure(logger, "episode lookup failed", err)
			return nil, Result{Result: stage.Failed(stage.Acquire, err)}
		}
		return ep, Result{Result: stage.Skipped(stage.Acquire, 1, "episode "+ep.ID), AlreadyExists: true}
	}

	sourceID, err := SourceID(req.URL)
	if err != nil {
		a.logFailure(logger, "source url rejected", err)
		return nil, Result{Result: stage.Failed(stage.Acquire, err)}
	}

	existing, err := a.store.FindEpisodeBySource(ctx, sourceID)
	if err != nil {
		a.logFailure(logger, "source lookup failed", err)
		return nil, Result{Result: stage.Failed(stage.Acquire, err)}
	}
	if existing != nil {
		logger.Info("episode already acquired",
			logging.String(logging.FieldEpisodeID, existing.ID),
			logging.String("source_id", sourceID),
		)
		return existing, Result{Result: stage.Skipped(stage.Acquire, 1, "episode "+existing.ID+" already exists"), AlreadyExists: true}
	}

	if a.downloader == nil {
		err := services.Wrap(services.ErrConfiguration, stage.Acquire, "download", "no downloader configured", nil)
		a.logFailure(logger, "download unavailable", err)
		return nil, Result{Result: stage.Failed(stage.Acquire, err)}
	}
	media, err := a.downloader.Fetch(ctx, req.URL)
	if err != nil {
		if !errors.Is(err, services.ErrDownload) {
			err = services.Wrap(services.ErrDownload, stage.Acquire, "fetch", "download failed", err)
		}
		a.logFailure(logger, "download failed", err)
		return nil, Result{Result: stage.Failed(stage.Acquire, err)}
	}

	ep := a.episodeFromMedia(sourceID, req.URL, media)
	if err := a.store.CreateEpisode(ctx, ep); err != nil {
		a.logFailure(logger, "episode insert failed", err)
		return nil, Result{Result: stage.Failed(stage.Acquire, err)}
	}
	logger.Info("episode acquired",
		logging.String(logging.FieldEpisodeID, ep.ID),
		logging.String("source_id", ep.SourceID),
		logging.String("title", ep.Title),
		logging.Float64("duration_seconds", ep.DurationSeconds),
	)
	return ep, Result{Result: stage.Succeeded(stage.Acquire, 1, ep.Title)}
}

func (a *Acquirer) episodeFromMedia(sourceID, sourceURL string, media ytdlp.Media) *store.Episode {
	now := a.now().UTC()
	published := media.UploadDate
	if published.IsZero() {
		published = now
	}
	if media.SourceID != "" {
		sourceID = media.SourceID
	}
	return &store.Episode{
		ID:              uuid.NewString(),
		SourceID:        sourceID,
		Title:           strings.TrimSpace(media.Title),
		Description:     truncateRunes(media.Description, DescriptionLimit),
		DurationSeconds: media.DurationSeconds,
		SourceURL:       strings.TrimSpace(sourceURL),
		PublishedAt:     published.UTC(),
		Status:          store.StatusDownloaded,
		AudioPath:       media.AudioPath,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (a *Acquirer) logFailure(logger *slog.Logger, msg string, err error) {
	logging.ErrorWithContext(logger, msg, logging.EventStageFailure,
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String(logging.FieldErrorHint, "check the url and downloader output"),
		logging.Error(err),
	)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
