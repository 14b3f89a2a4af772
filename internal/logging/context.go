package logging

import (
	"context"
	"log/slog"

	"buildvault/internal/services"
)

// ContextFields extracts the episode, stage, and run attributes carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.EpisodeIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldEpisodeID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if runID, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, runID))
	}
	return fields
}

// WithContext returns a logger augmented with the fields carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
