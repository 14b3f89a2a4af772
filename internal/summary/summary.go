// Package summary produces a short model-written synopsis of an episode.
//
// Generate never fails the run: when the transcript is missing or the
// completion collaborator errors it falls back to the episode's existing
// summary or a fixed placeholder, and reports the problem in the result.
package summary

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"buildvault/internal/logging"
	"buildvault/internal/services"
	"buildvault/internal/stage"
	"buildvault/internal/store"
)

const (
	// NoTranscript is returned when the episode has no segments.
	NoTranscript = "No transcript available for summary."
	// Unavailable is returned when generation fails and nothing is stored.
	Unavailable = "No summary available"

	SystemPrompt = "You are a podcast summarizer. Create a concise, engaging summary of the podcast episode."
	userPrefix   = "Summarize this podcast transcript:\n\n"
	maxTokens    = 300

	DefaultMinLength  = 100
	DefaultCharBudget = 4000
)

// Completer is the text completion collaborator.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// Store is the slice of the datastore the generator touches.
type Store interface {
	ListSegments(ctx context.Context, episodeID string) ([]store.Segment, error)
	UpdateEpisodeSummary(ctx context.Context, id, summary string) error
	AdvanceEpisodeStatus(ctx context.Context, id string, status store.Status) error
}

// Options controls a Generate call.
type Options struct {
	SkipExisting bool
	// MinLength is the length an existing summary must exceed to be reused.
	MinLength int
	// CharBudget caps the transcript characters sent to the model.
	CharBudget int
	// SegmentLimit caps the segments used; zero uses all of them.
	SegmentLimit int
}

// Generator writes episode summaries.
type Generator struct {
	store     Store
	completer Completer
	logger    *slog.Logger
}

// New constructs a generator. completer may be nil, in which case only
// stored summaries are returned.
func New(st Store, completer Completer, logger *slog.Logger) *Generator {
	return &Generator{
		store:     st,
		completer: completer,
		logger:    logging.NewComponentLogger(logger, stage.Summary),
	}
}

// Generate returns the episode summary, creating and persisting one when the
// stored text is too short or opts.SkipExisting is false.
func (g *Generator) Generate(ctx context.Context, ep *store.Episode, opts Options) (string, stage.Result) {
	logger := logging.WithContext(ctx, g.logger)
	opts = withDefaults(opts)

	existing := strings.TrimSpace(ep.Summary)
	if existing == "" {
		existing = strings.TrimSpace(ep.Description)
	}
	if opts.SkipExisting && utf8.RuneCountInString(existing) > opts.MinLength {
		return existing, stage.Skipped(stage.Summary, 1, "summary exists")
	}

	segments, err := g.store.ListSegments(ctx, ep.ID)
	if err != nil {
		return g.fallback(logger, ep, err)
	}
	if len(segments) == 0 {
		logger.Info("no transcript to summarize")
		return NoTranscript, stage.Succeeded(stage.Summary, 0, "no transcript")
	}
	if g.completer == nil {
		return g.fallback(logger, ep, services.Wrap(services.ErrConfiguration, stage.Summary, "complete", "no completion provider configured", nil))
	}

	store.SortSegments(segments)
	if opts.SegmentLimit > 0 && len(segments) > opts.SegmentLimit {
		segments = segments[:opts.SegmentLimit]
	}
	transcript := TruncateRunes(store.Transcript(segments), opts.CharBudget)

	text, err := g.completer.Complete(ctx, SystemPrompt, userPrefix+transcript, maxTokens)
	if err != nil {
		return g.fallback(logger, ep, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return g.fallback(logger, ep, services.Wrap(services.ErrCompletion, stage.Summary, "complete", "empty summary", nil))
	}

	if err := g.store.UpdateEpisodeSummary(ctx, ep.ID, text); err != nil {
		return g.fallback(logger, ep, err)
	}
	if err := g.store.AdvanceEpisodeStatus(ctx, ep.ID, store.StatusSummarized); err != nil {
		return g.fallback(logger, ep, err)
	}
	ep.Summary = text
	if ep.Status.Before(store.StatusSummarized) {
		ep.Status = store.StatusSummarized
	}

	logger.Info("summary stored",
		logging.Int("segments", len(segments)),
		logging.Int("chars", utf8.RuneCountInString(text)),
	)
	return text, stage.Succeeded(stage.Summary, 1, "")
}

// TruncateRunes cuts s to at most limit characters. A non-positive limit
// leaves s untouched.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func withDefaults(opts Options) Options {
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	if opts.CharBudget <= 0 {
		opts.CharBudget = DefaultCharBudget
	}
	return opts
}

func (g *Generator) fallback(logger *slog.Logger, ep *store.Episode, err error) (string, stage.Result) {
	logging.WarnWithContext(logger, "summary generation failed", logging.EventStageFailure,
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String(logging.FieldErrorHint, "check LLM credentials and model"),
		logging.String(logging.FieldImpact, "stored summary or description kept"),
		logging.Error(err),
	)
	text := strings.TrimSpace(ep.Summary)
	if text == "" {
		text = strings.TrimSpace(ep.Description)
	}
	if text == "" {
		text = Unavailable
	}
	return text, stage.Failed(stage.Summary, err)
}
