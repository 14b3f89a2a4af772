// Package stageexec runs a single pipeline stage with consistent context,
// timing, and lifecycle logging.
package stageexec

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"buildvault/internal/logging"
	"buildvault/internal/services"
	"buildvault/internal/stage"
)

// Func is the body of a stage.
type Func func(ctx context.Context) stage.Result

// Options controls stage execution.
type Options struct {
	Logger    *slog.Logger
	StageName string
	Run       Func
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Run executes a stage body, stamping its duration and logging its lifecycle.
// The returned result always names opts.StageName.
func Run(ctx context.Context, opts Options) stage.Result {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	stageCtx := services.WithStage(ctx, opts.StageName)
	logger := logging.WithContext(stageCtx, opts.Logger)

	if opts.Run == nil {
		err := services.Wrap(services.ErrConfiguration, opts.StageName, "run", "stage handler unavailable", nil)
		return logOutcome(logger, stage.Failed(opts.StageName, err))
	}
	if err := ctx.Err(); err != nil {
		return logOutcome(logger, stage.Failed(opts.StageName, err))
	}

	logger.Debug("stage started", logging.String(logging.FieldEventType, logging.EventStageStart))
	started := now()
	result := opts.Run(stageCtx)
	result.Duration = now().Sub(started)
	if result.Stage == "" {
		result.Stage = opts.StageName
	}
	return logOutcome(logger, result)
}

func logOutcome(logger *slog.Logger, result stage.Result) stage.Result {
	attrs := []logging.Attr{
		logging.String(logging.FieldOutcome, string(result.Outcome)),
		logging.Int(logging.FieldCount, result.Count),
		logging.Duration("duration", result.Duration),
	}
	if detail := strings.TrimSpace(result.Detail); detail != "" && result.Err == nil {
		attrs = append(attrs, logging.String("detail", detail))
	}

	switch result.Outcome {
	case stage.OutcomeFailed:
		attrs = append(attrs,
			logging.String(logging.FieldErrorKind, result.ErrorKind()),
			logging.Error(result.Err),
		)
		logging.ErrorWithContext(logger, "stage failed", logging.EventStageFailure, attrs...)
	case stage.OutcomeDegraded:
		attrs = append(attrs,
			logging.String(logging.FieldErrorKind, result.ErrorKind()),
			logging.Error(result.Err),
		)
		logging.WarnWithContext(logger, "stage degraded", logging.EventStageDegraded, attrs...)
	case stage.OutcomeSkipped:
		logger.Info("stage skipped", logging.Args(append(attrs, logging.String(logging.FieldEventType, logging.EventStageSkipped))...)...)
	default:
		logger.Info("stage completed", logging.Args(append(attrs, logging.String(logging.FieldEventType, logging.EventStageComplete))...)...)
	}
	return result
}

var titler = cases.Title(language.English)

// Label renders a stage name for display, e.g. "insights" -> "Insights".
func Label(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if name == "" {
		return ""
	}
	return titler.String(name)
}
