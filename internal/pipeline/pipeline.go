package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"buildvault/internal/acquire"
	"buildvault/internal/grouping"
	"buildvault/internal/insights"
	"buildvault/internal/links"
	"buildvault/internal/logging"
	"buildvault/internal/products"
	"buildvault/internal/services"
	"buildvault/internal/stage"
	"buildvault/internal/stageexec"
	"buildvault/internal/store"
	"buildvault/internal/summary"
	"buildvault/internal/transcript"
)

// Enricher describes pending links. See links.Enricher.
type Enricher interface {
	Enrich(ctx context.Context, limit int) (int, stage.Result)
}

// Deps are the collaborators a run needs. Nil collaborators disable the
// work that depends on them; the affected stages report why.
type Deps struct {
	Store       store.Store
	Downloader  acquire.Downloader
	Transcriber transcript.Transcriber
	Summarizer  summary.Completer
	Analyst     insights.Completer
	Enricher    Enricher
}

// Request names what to run. EpisodeID wins over URL.
type Request struct {
	URL       string
	EpisodeID string
}

// Runner executes the stages for one episode at a time.
type Runner struct {
	deps   Deps
	opts   Options
	logger *slog.Logger

	acquirer    *acquire.Acquirer
	transcriber *transcript.Producer
	grouper     *grouping.Grouper
	summarizer  *summary.Generator
	extractor   *insights.Extractor
	reconciler  *products.Reconciler
	linker      *links.Extractor
}

// New wires the stage implementations around deps.
func New(deps Deps, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	st := deps.Store
	return &Runner{
		deps:        deps,
		opts:        opts,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		acquirer:    acquire.New(st, deps.Downloader, logger),
		transcriber: transcript.New(st, deps.Transcriber, logger),
		grouper:     grouping.New(st, logger),
		summarizer:  summary.New(st, deps.Summarizer, logger),
		extractor:   insights.New(st, deps.Analyst, logger),
		reconciler:  products.New(st, logger),
		linker:      links.NewExtractor(st, logger),
	}
}

// Run processes req and returns the run report. The report is never nil.
// The error is non-nil only when no episode could be acquired or the episode
// is locked by another run.
func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)
	report := &Report{RunID: runID, DemoMode: r.opts.DemoMode}

	lock, err := r.lock(ctx, req)
	if err != nil {
		logging.ErrorWithContext(logger, "episode lock unavailable", logging.EventStageFailure,
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "wait for the other run to finish"),
			logging.Error(err),
		)
		return report, err
	}
	defer func() {
		if err := lock.release(); err != nil {
			logger.Warn("failed to release episode lock", logging.Error(err))
		}
	}()

	var (
		ep      *store.Episode
		existed bool
	)
	r.record(report, r.step(ctx, stage.Acquire, func(ctx context.Context) stage.Result {
		var res acquire.Result
		ep, res = r.acquirer.Acquire(ctx, acquire.Request{URL: req.URL, EpisodeID: req.EpisodeID})
		existed = res.AlreadyExists
		return res.Result
	}))
	if ep == nil {
		err := report.Stages[0].Err
		if err == nil {
			err = services.Wrap(services.ErrNotFound, stage.Acquire, "acquire", "no episode", nil)
		}
		return report, err
	}
	report.AlreadyExisted = existed
	ctx = services.WithEpisodeID(ctx, ep.ID)
	logger = logging.WithContext(ctx, r.logger)
	logger.Info("pipeline started",
		logging.String("title", ep.Title),
		logging.Bool("already_existed", existed),
		logging.Bool("demo_mode", r.opts.DemoMode),
	)

	var segments []store.Segment
	r.record(report, r.step(ctx, stage.Transcript, func(ctx context.Context) stage.Result {
		var res stage.Result
		segments, res = r.transcriber.Produce(ctx, ep, transcript.Options{
			SkipExisting:     r.opts.SkipExisting,
			MaxSegments:      r.opts.demoLimit(r.opts.DemoMaxSegments),
			SpeakersExpected: r.opts.SpeakersExpected,
		})
		return res
	}))
	report.Transcript = segmentViews(segments)

	r.record(report, r.step(ctx, stage.Grouping, func(ctx context.Context) stage.Result {
		return r.grouper.Group(ctx, ep, grouping.Options{
			SkipExisting: r.opts.SkipExisting,
			GroupSize:    r.opts.GroupSize,
		})
	}))

	r.record(report, r.step(ctx, stage.Summary, func(ctx context.Context) stage.Result {
		var res stage.Result
		report.Summary, res = r.summarizer.Generate(ctx, ep, summary.Options{
			SkipExisting: r.opts.SkipExisting,
			MinLength:    r.opts.SummaryMinLength,
			CharBudget:   r.opts.SummaryCharBudget,
			SegmentLimit: r.opts.demoLimit(r.opts.SummarySegmentLimit),
		})
		return res
	}))

	var found []store.Insight
	r.record(report, r.step(ctx, stage.Insights, func(ctx context.Context) stage.Result {
		var res stage.Result
		found, res = r.extractor.Extract(ctx, ep, insights.Options{
			SkipExisting: r.opts.SkipExisting,
			BatchSize:    r.opts.InsightBatchSize,
			SegmentLimit: r.opts.demoLimit(r.opts.InsightSegmentLimit),
		})
		return res
	}))

	r.record(report, r.step(ctx, stage.Products, func(ctx context.Context) stage.Result {
		_, res := r.reconciler.Reconcile(ctx, found)
		return res
	}))

	r.record(report, r.step(ctx, stage.Links, func(ctx context.Context) stage.Result {
		_, res := r.linker.Extract(ctx, ep, links.Options{SkipExisting: r.opts.SkipExisting})
		return res
	}))

	r.record(report, r.step(ctx, stage.Enrich, func(ctx context.Context) stage.Result {
		switch {
		case r.opts.DemoMode:
			return stage.Skipped(stage.Enrich, 0, "demo mode")
		case r.deps.Enricher == nil:
			return stage.Skipped(stage.Enrich, 0, "no link enricher configured")
		}
		_, res := r.deps.Enricher.Enrich(ctx, r.opts.EnrichLimit)
		return res
	}))

	r.populate(ctx, report, ep, found)
	logger.Info("pipeline finished",
		logging.Int("segments", report.Counts.Segments),
		logging.Int("insights", report.Counts.Insights),
		logging.Int("products", report.Counts.Products),
		logging.Int("links", report.Counts.Links),
		logging.Int("failed_stages", len(report.Failed())),
	)
	return report, nil
}

// Enrich drains up to limit pending links outside a full run.
func (r *Runner) Enrich(ctx context.Context, limit int) stage.Result {
	ctx = services.WithRunID(ctx, uuid.NewString())
	return r.step(ctx, stage.Enrich, func(ctx context.Context) stage.Result {
		if r.deps.Enricher == nil {
			return stage.Skipped(stage.Enrich, 0, "no link enricher configured")
		}
		if limit <= 0 {
			limit = r.opts.EnrichLimit
		}
		_, res := r.deps.Enricher.Enrich(ctx, limit)
		return res
	})
}

func (r *Runner) step(ctx context.Context, name string, fn stageexec.Func) stage.Result {
	return stageexec.Run(ctx, stageexec.Options{
		Logger:    r.logger,
		StageName: name,
		Run:       fn,
	})
}

func (r *Runner) record(report *Report, res stage.Result) {
	report.Stages = append(report.Stages, res)
}

// lock resolves the lock key for req and takes the episode lock. Requests
// whose key cannot be resolved run unlocked; acquisition reports the problem.
func (r *Runner) lock(ctx context.Context, req Request) (*episodeLock, error) {
	if strings.TrimSpace(r.opts.LockDir) == "" {
		return nil, nil
	}
	key := ""
	if id := strings.TrimSpace(req.EpisodeID); id != "" {
		key = id
		if ep, err := r.deps.Store.GetEpisode(ctx, id); err == nil && ep.SourceID != "" {
			key = ep.SourceID
		} else if err != nil && !errors.Is(err, services.ErrNotFound) {
			return nil, err
		}
	} else if sourceID, err := acquire.SourceID(req.URL); err == nil {
		key = sourceID
	}
	if key == "" {
		return nil, nil
	}
	return lockEpisode(r.opts.LockDir, key)
}
