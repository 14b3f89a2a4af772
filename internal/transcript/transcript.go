// Package transcript turns an episode's audio into stored speaker segments.
package transcript

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"buildvault/internal/logging"
	"buildvault/internal/services"
	"buildvault/internal/services/assemblyai"
	"buildvault/internal/stage"
	"buildvault/internal/store"
)

const (
	defaultSpeakers   = 2
	defaultConfidence = 0.9
)

// Transcriber is the speech-to-text collaborator.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, speakersExpected int) ([]assemblyai.Utterance, error)
}

// Store is the slice of the datastore the producer touches.
type Store interface {
	ListSegments(ctx context.Context, episodeID string) ([]store.Segment, error)
	InsertSegments(ctx context.Context, segments []store.Segment) error
	DeleteSegments(ctx context.Context, episodeID string) error
	AdvanceEpisodeStatus(ctx context.Context, id string, status store.Status) error
}

// Options controls a Produce call.
type Options struct {
	SkipExisting bool
	// MaxSegments truncates the returned slice only; everything is persisted.
	MaxSegments      int
	SpeakersExpected int
}

// Producer creates transcript segments.
type Producer struct {
	store       Store
	transcriber Transcriber
	logger      *slog.Logger
}

// New constructs a producer. transcriber may be nil, in which case only
// existing transcripts can be returned.
func New(st Store, transcriber Transcriber, logger *slog.Logger) *Producer {
	return &Producer{
		store:       st,
		transcriber: transcriber,
		logger:      logging.NewComponentLogger(logger, stage.Transcript),
	}
}

// Produce returns the episode's segments ordered by start time, transcribing
// the audio when none are stored (or when opts.SkipExisting is false).
// Failures are reported through the result and yield no segments.
func (p *Producer) Produce(ctx context.Context, ep *store.Episode, opts Options) ([]store.Segment, stage.Result) {
	logger := logging.WithContext(ctx, p.logger)

	existing, err := p.store.ListSegments(ctx, ep.ID)
	if err != nil {
		return nil, p.fail(logger, err)
	}
	if len(existing) > 0 && opts.SkipExisting {
		store.SortSegments(existing)
		return truncate(existing, opts.MaxSegments), stage.Skipped(stage.Transcript, len(existing), "transcript exists")
	}

	if p.transcriber == nil {
		return nil, p.fail(logger, services.Wrap(services.ErrConfiguration, stage.Transcript, "transcribe", "no transcription provider configured", nil))
	}
	audioPath := strings.TrimSpace(ep.AudioPath)
	if audioPath == "" {
		return nil, p.fail(logger, services.Wrap(services.ErrTranscription, stage.Transcript, "transcribe", "episode has no audio file", nil))
	}
	if _, err := os.Stat(audioPath); err != nil {
		return nil, p.fail(logger, services.Wrap(services.ErrTranscription, stage.Transcript, "transcribe", "audio file missing", err))
	}

	speakers := opts.SpeakersExpected
	if speakers <= 0 {
		speakers = defaultSpeakers
	}
	utterances, err := p.transcriber.Transcribe(ctx, audioPath, speakers)
	if err != nil {
		if !errors.Is(err, services.ErrTranscription) {
			err = services.Wrap(services.ErrTranscription, stage.Transcript, "transcribe", "", err)
		}
		return nil, p.fail(logger, err)
	}

	segments := Segments(ep.ID, utterances)
	if len(segments) == 0 {
		logger.Info("provider returned no utterances", logging.String("audio_path", audioPath))
		return nil, stage.Succeeded(stage.Transcript, 0, "no speech detected")
	}
	// A forced recompute replaces the old transcript only once the new one exists.
	if len(existing) > 0 {
		if err := p.store.DeleteSegments(ctx, ep.ID); err != nil {
			return nil, p.fail(logger, err)
		}
	}
	if err := p.store.InsertSegments(ctx, segments); err != nil {
		return nil, p.fail(logger, err)
	}
	if err := p.store.AdvanceEpisodeStatus(ctx, ep.ID, store.StatusTranscribed); err != nil {
		return nil, p.fail(logger, err)
	}
	ep.Status = maxStatus(ep.Status, store.StatusTranscribed)

	store.SortSegments(segments)
	logger.Info("transcript stored", logging.Int(logging.FieldCount, len(segments)))
	return truncate(segments, opts.MaxSegments), stage.Succeeded(stage.Transcript, len(segments), "")
}

// Segments converts provider utterances into unsaved segments.
func Segments(episodeID string, utterances []assemblyai.Utterance) []store.Segment {
	out := make([]store.Segment, 0, len(utterances))
	for _, u := range utterances {
		text := strings.TrimSpace(u.Text)
		if text == "" {
			continue
		}
		confidence := defaultConfidence
		if u.Confidence != nil {
			confidence = store.ClampConfidence(*u.Confidence)
		}
		out = append(out, store.Segment{
			ID:          uuid.NewString(),
			EpisodeID:   episodeID,
			StartTime:   float64(u.Start) / 1000,
			EndTime:     float64(u.End) / 1000,
			Speaker:     speakerLabel(u.Speaker),
			RawText:     text,
			DisplayText: text,
			Confidence:  confidence,
			SegmentType: store.SegmentTypeUtterance,
		})
	}
	return out
}

func speakerLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "Unknown"
	}
	return "Speaker " + label
}

func truncate(segments []store.Segment, limit int) []store.Segment {
	if limit > 0 && len(segments) > limit {
		return segments[:limit]
	}
	return segments
}

func maxStatus(current, next store.Status) store.Status {
	if current.Before(next) {
		return next
	}
	return current
}

func (p *Producer) fail(logger *slog.Logger, err error) stage.Result {
	logging.WarnWithContext(logger, "transcription failed", logging.EventStageFailure,
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String(logging.FieldErrorHint, "check the audio file and transcription credentials"),
		logging.String(logging.FieldImpact, "downstream stages run on an empty transcript"),
		logging.Error(err),
	)
	return stage.Failed(stage.Transcript, err)
}
