package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"buildvault/internal/grouping"
	"buildvault/internal/insights"
	"buildvault/internal/links"
	"buildvault/internal/logging"
	"buildvault/internal/services"
	"buildvault/internal/stage"
	"buildvault/internal/store"
	"buildvault/internal/summary"
	"buildvault/internal/transcript"
)

// RunStage runs one stage against a stored episode. Acquisition and
// enrichment are not episode stages and are rejected; use Run and Enrich.
// The error is non-nil only when the episode cannot be loaded or locked.
func (r *Runner) RunStage(ctx context.Context, episodeID, name string) (stage.Result, error) {
	switch name {
	case stage.Transcript, stage.Grouping, stage.Summary, stage.Insights, stage.Products, stage.Links:
	default:
		return stage.Result{}, services.Wrap(services.ErrValidation, "pipeline", "run_stage",
			fmt.Sprintf("%q is not a per-episode stage", name), nil)
	}
	episodeID = strings.TrimSpace(episodeID)
	if episodeID == "" {
		return stage.Result{}, services.Wrap(services.ErrValidation, "pipeline", "run_stage", "episode id required", nil)
	}

	ctx = services.WithRunID(ctx, uuid.NewString())
	lock, err := r.lock(ctx, Request{EpisodeID: episodeID})
	if err != nil {
		return stage.Result{}, err
	}
	defer func() {
		if err := lock.release(); err != nil {
			r.logger.Warn("failed to release episode lock", logging.Error(err))
		}
	}()

	ep, err := r.deps.Store.GetEpisode(ctx, episodeID)
	if err != nil {
		return stage.Result{}, err
	}
	ctx = services.WithEpisodeID(ctx, ep.ID)

	return r.step(ctx, name, func(ctx context.Context) stage.Result {
		return r.single(ctx, ep, name)
	}), nil
}

func (r *Runner) single(ctx context.Context, ep *store.Episode, name string) stage.Result {
	switch name {
	case stage.Transcript:
		_, res := r.transcriber.Produce(ctx, ep, transcript.Options{
			SkipExisting:     r.opts.SkipExisting,
			MaxSegments:      r.opts.demoLimit(r.opts.DemoMaxSegments),
			SpeakersExpected: r.opts.SpeakersExpected,
		})
		return res
	case stage.Grouping:
		return r.grouper.Group(ctx, ep, grouping.Options{
			SkipExisting: r.opts.SkipExisting,
			GroupSize:    r.opts.GroupSize,
		})
	case stage.Summary:
		_, res := r.summarizer.Generate(ctx, ep, summary.Options{
			SkipExisting: r.opts.SkipExisting,
			MinLength:    r.opts.SummaryMinLength,
			CharBudget:   r.opts.SummaryCharBudget,
			SegmentLimit: r.opts.demoLimit(r.opts.SummarySegmentLimit),
		})
		return res
	case stage.Insights:
		_, res := r.extractor.Extract(ctx, ep, insights.Options{
			SkipExisting: r.opts.SkipExisting,
			BatchSize:    r.opts.InsightBatchSize,
			SegmentLimit: r.opts.demoLimit(r.opts.InsightSegmentLimit),
		})
		return res
	case stage.Products:
		stored, err := r.deps.Store.ListInsights(ctx, ep.ID)
		if err != nil {
			return stage.Failed(stage.Products, err)
		}
		_, res := r.reconciler.Reconcile(ctx, stored)
		return res
	default:
		_, res := r.linker.Extract(ctx, ep, links.Options{SkipExisting: r.opts.SkipExisting})
		return res
	}
}
