package services

import "context"

type contextKey string

const (
	episodeIDKey contextKey = "episode_id"
	stageKey     contextKey = "stage"
	runIDKey     contextKey = "run_id"
)

// WithEpisodeID annotates context with the episode identifier.
func WithEpisodeID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, episodeIDKey, id)
}

// EpisodeIDFromContext extracts the episode identifier if present.
func EpisodeIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(episodeIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRunID annotates context with the pipeline run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run correlation identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
