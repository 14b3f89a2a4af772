// Package insights extracts categorized observations from transcript batches.
package insights

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"buildvault/internal/logging"
	"buildvault/internal/services"
	"buildvault/internal/services/llm"
	"buildvault/internal/stage"
	"buildvault/internal/store"
)

const (
	DefaultBatchSize  = 5
	defaultConfidence = 0.8
)

// Completer is the JSON completion collaborator.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Store is the slice of the datastore the extractor touches.
type Store interface {
	ListSegments(ctx context.Context, episodeID string) ([]store.Segment, error)
	ListInsights(ctx context.Context, episodeID string) ([]store.Insight, error)
	InsertInsights(ctx context.Context, insights []store.Insight) error
	DeleteInsights(ctx context.Context, episodeID string) error
	AdvanceEpisodeStatus(ctx context.Context, id string, status store.Status) error
}

// Options controls an Extract call.
type Options struct {
	SkipExisting bool
	BatchSize    int
	// SegmentLimit caps the segments analyzed; zero analyzes all of them.
	SegmentLimit int
}

// Extractor turns transcript batches into insights.
type Extractor struct {
	store     Store
	completer Completer
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs an extractor.
func New(st Store, completer Completer, logger *slog.Logger) *Extractor {
	return &Extractor{
		store:     st,
		completer: completer,
		logger:    logging.NewComponentLogger(logger, stage.Insights),
		now:       time.Now,
	}
}

type payload struct {
	Insights []struct {
		Category   string   `json:"category"`
		Content    string   `json:"content"`
		Confidence *float64 `json:"confidence"`
	} `json:"insights"`
}

// Extract returns the episode's insights, generating them batch by batch when
// none are stored or opts.SkipExisting is false. A batch whose completion or
// payload fails is logged and skipped; the others still persist.
func (x *Extractor) Extract(ctx context.Context, ep *store.Episode, opts Options) ([]store.Insight, stage.Result) {
	logger := logging.WithContext(ctx, x.logger)

	existing, err := x.store.ListInsights(ctx, ep.ID)
	if err != nil {
		return nil, x.fail(logger, err)
	}
	if len(existing) > 0 && opts.SkipExisting {
		return existing, stage.Skipped(stage.Insights, len(existing), "insights exist")
	}
	if x.completer == nil {
		return nil, x.fail(logger, services.Wrap(services.ErrConfiguration, stage.Insights, "extract", "no completion provider configured", nil))
	}

	segments, err := x.store.ListSegments(ctx, ep.ID)
	if err != nil {
		return nil, x.fail(logger, err)
	}
	if len(segments) == 0 {
		logger.Info("no segments to analyze")
		return nil, stage.Succeeded(stage.Insights, 0, "no segments")
	}
	store.SortSegments(segments)
	if opts.SegmentLimit > 0 && len(segments) > opts.SegmentLimit {
		segments = segments[:opts.SegmentLimit]
	}
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	batches := store.Batches(segments, size)
	var (
		out    []store.Insight
		failed int
	)
	for i, batch := range batches {
		found, err := x.extractBatch(ctx, ep.ID, batch)
		if err != nil {
			failed++
			logging.WarnWithContext(logger, "insight batch dropped", logging.EventStageDegraded,
				logging.Int("batch", i+1),
				logging.Int("batches", len(batches)),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.String(logging.FieldImpact, "insights from this batch are missing"),
				logging.Error(err),
			)
			continue
		}
		out = append(out, found...)
	}

	detail := ""
	if failed > 0 {
		detail = fmt.Sprintf("%d of %d batches failed", failed, len(batches))
	}
	if len(out) == 0 {
		if failed == len(batches) {
			return nil, stage.Failed(stage.Insights, services.Wrap(services.ErrCompletion, stage.Insights, "extract", detail, nil))
		}
		return nil, stage.Succeeded(stage.Insights, 0, detail)
	}

	if len(existing) > 0 {
		if err := x.store.DeleteInsights(ctx, ep.ID); err != nil {
			return nil, x.fail(logger, err)
		}
	}
	if err := x.store.InsertInsights(ctx, out); err != nil {
		return nil, x.fail(logger, err)
	}
	if err := x.store.AdvanceEpisodeStatus(ctx, ep.ID, store.StatusAnalyzed); err != nil {
		return nil, x.fail(logger, err)
	}
	if ep.Status.Before(store.StatusAnalyzed) {
		ep.Status = store.StatusAnalyzed
	}

	logger.Info("insights stored",
		logging.Int(logging.FieldCount, len(out)),
		logging.Int("batches", len(batches)),
		logging.Int("failed_batches", failed),
	)
	return out, stage.Succeeded(stage.Insights, len(out), detail)
}

func (x *Extractor) extractBatch(ctx context.Context, episodeID string, batch []store.Segment) ([]store.Insight, error) {
	content, err := x.completer.CompleteJSON(ctx, SystemPrompt(), store.Transcript(batch))
	if err != nil {
		return nil, err
	}
	var decoded payload
	if err := llm.DecodeJSON(content, &decoded); err != nil {
		return nil, services.Wrap(services.ErrParse, stage.Insights, "decode batch", "", err)
	}

	start, end := batch[0].StartTime, batch[len(batch)-1].EndTime
	created := x.now().UTC()
	out := make([]store.Insight, 0, len(decoded.Insights))
	for _, item := range decoded.Insights {
		text := strings.TrimSpace(item.Content)
		if text == "" {
			continue
		}
		category, _ := store.ParseCategory(item.Category)
		confidence := defaultConfidence
		if item.Confidence != nil {
			confidence = store.ClampConfidence(*item.Confidence)
		}
		out = append(out, store.Insight{
			ID:           uuid.NewString(),
			EpisodeID:    episodeID,
			Category:     category,
			Content:      text,
			Confidence:   confidence,
			SegmentStart: start,
			SegmentEnd:   end,
			CreatedAt:    created,
		})
	}
	return out, nil
}

// SystemPrompt lists the allowed categories and the expected JSON shape.
func SystemPrompt() string {
	labels := make([]string, 0, len(store.Categories()))
	for _, c := range store.Categories() {
		labels = append(labels, fmt.Sprintf("%q", string(c)))
	}
	return "Extract key insights from this podcast transcript.\n" +
		`Return a JSON object of the form {"insights": [...]} where each insight has:` + "\n" +
		"- category: one of " + strings.Join(labels, ", ") + "\n" +
		"- content: the insight text (1-2 sentences)\n" +
		"- confidence: confidence score 0.0-1.0"
}

func (x *Extractor) fail(logger *slog.Logger, err error) stage.Result {
	logging.WarnWithContext(logger, "insight extraction failed", logging.EventStageFailure,
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String(logging.FieldImpact, "no insights stored for this run"),
		logging.Error(err),
	)
	return stage.Failed(stage.Insights, err)
}
