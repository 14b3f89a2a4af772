package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"buildvault/internal/pipeline"
	"buildvault/internal/services"
	"buildvault/internal/services/assemblyai"
	"buildvault/internal/services/ytdlp"
	"buildvault/internal/stage"
	"buildvault/internal/store"
	"buildvault/internal/testsupport"
)

const (
	videoID  = "dQw4w9WgXcQ"
	videoURL = "https://www.youtube.com/watch?v=" + videoID
)

type fakeDownloader struct {
	audioDir string
	err      error
	calls    int
}

func (f *fakeDownloader) Fetch(_ context.Context, _ string) (ytdlp.Media, error) {
	f.calls++
	if f.err != nil {
		return ytdlp.Media{}, f.err
	}
	return ytdlp.Media{
		SourceID:        videoID,
		Title:           "Shipping side projects",
		Description:     "Notes: https://a.com/x, https://b.org.",
		DurationSeconds: 120,
		AudioPath:       filepath.Join(f.audioDir, videoID+".mp3"),
	}, nil
}

type fakeTranscriber struct {
	count int
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string, _ int) ([]assemblyai.Utterance, error) {
	f.calls++
	out := make([]assemblyai.Utterance, f.count)
	for i := range out {
		speaker := "A"
		if i%2 == 1 {
			speaker = "B"
		}
		out[i] = assemblyai.Utterance{
			Start:   int64(i * 10000),
			End:     int64(i*10000 + 10000),
			Speaker: speaker,
			Text:    fmt.Sprintf("part %d of the build story", i),
		}
	}
	return out, nil
}

type fakeLLM struct {
	perBatch  int
	calls     int
	jsonCalls int
}

func (f *fakeLLM) Complete(context.Context, string, string, int) (string, error) {
	f.calls++
	return "Two builders trade notes on shipping side projects, from picking Docker for local parity to " +
		"deploying React front ends without a platform team.", nil
}

func (f *fakeLLM) CompleteJSON(context.Context, string, string) (string, error) {
	f.jsonCalls++
	items := ""
	for i := range f.perBatch {
		if i > 0 {
			items += ","
		}
		items += fmt.Sprintf(`{"category":"Products","content":"Batch %d idea %d uses Docker and React","confidence":0.9}`, f.jsonCalls, i)
	}
	return `{"insights":[` + items + `]}`, nil
}

type fakeEnricher struct{ calls int }

func (f *fakeEnricher) Enrich(_ context.Context, limit int) (int, stage.Result) {
	f.calls++
	return 0, stage.Succeeded(stage.Enrich, 0, fmt.Sprintf("limit %d", limit))
}

type harness struct {
	st       store.Store
	dl       *fakeDownloader
	tr       *fakeTranscriber
	llm      *fakeLLM
	enricher *fakeEnricher
	opts     pipeline.Options
}

func newHarness(t *testing.T, segments int) *harness {
	t.Helper()
	audioDir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(audioDir, videoID+".mp3"), 32)
	return &harness{
		st:       testsupport.MustOpenSQLite(t, 2),
		dl:       &fakeDownloader{audioDir: audioDir},
		tr:       &fakeTranscriber{count: segments},
		llm:      &fakeLLM{perBatch: 1},
		enricher: &fakeEnricher{},
		opts: pipeline.Options{
			SkipExisting:     true,
			GroupSize:        5,
			InsightBatchSize: 5,
			EnrichLimit:      3,
			LockDir:          t.TempDir(),
		},
	}
}

func (h *harness) runner() *pipeline.Runner {
	return pipeline.New(pipeline.Deps{
		Store:       h.st,
		Downloader:  h.dl,
		Transcriber: h.tr,
		Summarizer:  h.llm,
		Analyst:     h.llm,
		Enricher:    h.enricher,
	}, h.opts, nil)
}

func TestRunEndToEnd(t *testing.T) {
	h := newHarness(t, 12)

	report, err := h.runner().Run(context.Background(), pipeline.Request{URL: videoURL})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Stages) != len(stage.Order()) {
		t.Fatalf("expected %d stage results, got %d", len(stage.Order()), len(report.Stages))
	}
	if failed := report.Failed(); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
	if h.llm.jsonCalls != 3 {
		t.Fatalf("expected 3 insight completion calls, got %d", h.llm.jsonCalls)
	}
	if report.Counts.Groups != 3 || report.Counts.Segments != 12 {
		t.Fatalf("unexpected counts %+v", report.Counts)
	}
	if report.Counts.Insights != 3 || report.Counts.Links != 2 || report.Counts.Products != 2 {
		t.Fatalf("unexpected counts %+v", report.Counts)
	}
	if h.enricher.calls != 1 {
		t.Fatalf("expected enrichment outside demo mode, got %d calls", h.enricher.calls)
	}
	if report.Episode.Status != string(store.StatusAnalyzed) {
		t.Fatalf("expected analyzed status, got %s", report.Episode.Status)
	}
	if report.Summary == "" || h.llm.calls != 1 {
		t.Fatalf("expected one summary call, got %d (%q)", h.llm.calls, report.Summary)
	}
	if len(report.Speakers) != 2 || report.Speakers[0].Percent != 50 {
		t.Fatalf("unexpected speaker distribution %+v", report.Speakers)
	}
	if len(report.Categories) != 1 || report.Categories[0].Count != 3 {
		t.Fatalf("unexpected categories %+v", report.Categories)
	}
	wantCost := 120*pipeline.TranscriptionCostPerSecond + pipeline.SummaryCost + 12*pipeline.InsightCostPerSegment
	if math.Abs(report.Cost.Total-wantCost) > 1e-9 {
		t.Fatalf("cost total %v want %v", report.Cost.Total, wantCost)
	}
	for _, p := range report.Products {
		if p.MentionCount != 3 {
			t.Fatalf("expected 3 mentions of %s, got %d", p.Name, p.MentionCount)
		}
	}
}

func TestRerunIsIdempotent(t *testing.T) {
	h := newHarness(t, 12)
	if _, err := h.runner().Run(context.Background(), pipeline.Request{URL: videoURL}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	report, err := h.runner().Run(context.Background(), pipeline.Request{URL: videoURL})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !report.AlreadyExisted {
		t.Fatal("expected existing episode on rerun")
	}
	if h.dl.calls != 1 || h.tr.calls != 1 || h.llm.jsonCalls != 3 || h.llm.calls != 1 {
		t.Fatalf("rerun repeated work: download=%d transcribe=%d json=%d summary=%d", h.dl.calls, h.tr.calls, h.llm.jsonCalls, h.llm.calls)
	}
	for _, name := range []string{stage.Acquire, stage.Transcript, stage.Grouping, stage.Summary, stage.Insights, stage.Links} {
		res, _ := report.Stage(name)
		if res.Outcome != stage.OutcomeSkipped {
			t.Fatalf("expected %s skipped on rerun, got %+v", name, res)
		}
	}
	docker, _ := h.st.GetProduct(context.Background(), "Docker")
	if docker.MentionCount != 3 || len(docker.EpisodeIDs) != 1 {
		t.Fatalf("rerun changed product registry: %+v", docker)
	}
	if report.Counts.Links != 2 {
		t.Fatalf("rerun duplicated links: %d", report.Counts.Links)
	}
}

func TestRunFailsFastWhenLocked(t *testing.T) {
	h := newHarness(t, 3)
	held := flock.New(filepath.Join(h.opts.LockDir, videoID+".lock"))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("take lock: ok=%v err=%v", ok, err)
	}
	t.Cleanup(func() { _ = held.Unlock() })

	report, err := h.runner().Run(context.Background(), pipeline.Request{URL: videoURL})
	if !errors.Is(err, services.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if len(report.Stages) != 0 || h.dl.calls != 0 {
		t.Fatalf("locked run must not do work: %+v downloads=%d", report.Stages, h.dl.calls)
	}
}

func TestAcquireFailureHaltsRun(t *testing.T) {
	h := newHarness(t, 3)
	h.dl.err = errors.New("video unavailable")

	report, err := h.runner().Run(context.Background(), pipeline.Request{URL: videoURL})
	if !errors.Is(err, services.ErrDownload) {
		t.Fatalf("expected download error, got %v", err)
	}
	if len(report.Stages) != 1 || report.Stages[0].Stage != stage.Acquire || report.Stages[0].OK() {
		t.Fatalf("expected only a failed acquire stage, got %+v", report.Stages)
	}
	if h.tr.calls != 0 {
		t.Fatal("transcription must not run after a failed acquisition")
	}
}

func TestDemoModeCapsWork(t *testing.T) {
	h := newHarness(t, 12)
	h.llm.perBatch = 2
	h.opts.DemoMode = true
	h.opts.DemoMaxSegments = 5
	h.opts.DemoMaxInsights = 3
	h.opts.InsightSegmentLimit = 10

	report, err := h.runner().Run(context.Background(), pipeline.Request{URL: videoURL})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Transcript) != 5 {
		t.Fatalf("expected transcript capped at 5, got %d", len(report.Transcript))
	}
	if report.Counts.Segments != 12 {
		t.Fatalf("demo cap must not limit storage, got %d", report.Counts.Segments)
	}
	if h.llm.jsonCalls != 2 {
		t.Fatalf("expected 2 insight batches for 10 segments, got %d", h.llm.jsonCalls)
	}
	if report.Counts.Insights != 4 || len(report.Insights) != 3 {
		t.Fatalf("expected 4 stored and 3 shown insights, got %d/%d", report.Counts.Insights, len(report.Insights))
	}
	enrich, _ := report.Stage(stage.Enrich)
	if enrich.Outcome != stage.OutcomeSkipped || h.enricher.calls != 0 {
		t.Fatalf("expected enrichment skipped in demo mode, got %+v", enrich)
	}
}

func TestRunByEpisodeID(t *testing.T) {
	h := newHarness(t, 4)
	ep := testsupport.NewEpisode(t, h.st, "Stored", "")
	testsupport.SeedSegments(t, h.st, ep.ID, 4)

	report, err := h.runner().Run(context.Background(), pipeline.Request{EpisodeID: ep.ID})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.dl.calls != 0 || h.tr.calls != 0 {
		t.Fatal("episode runs reuse stored data")
	}
	if report.Episode.ID != ep.ID || report.Counts.Groups != 1 {
		t.Fatalf("unexpected report %+v", report.Counts)
	}

	_, err = h.runner().Run(context.Background(), pipeline.Request{EpisodeID: "missing"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHealthReportsMissingCollaborators(t *testing.T) {
	st := testsupport.MustOpenSQLite(t, 1)
	r := pipeline.New(pipeline.Deps{Store: st}, pipeline.Options{}, nil)
	ready := map[string]bool{}
	for _, h := range r.Health(context.Background()) {
		ready[h.Name] = h.Ready
	}
	if !ready["store"] || ready[stage.Transcript] || ready[stage.Summary] || ready[stage.Grouping] {
		t.Fatalf("unexpected health %v", ready)
	}
}

func TestRunStageOnStoredEpisode(t *testing.T) {
	h := newHarness(t, 12)
	h.opts.SkipExisting = false
	ep := testsupport.NewEpisode(t, h.st, "Stored episode", "Show notes at https://a.com/x")
	testsupport.SeedSegments(t, h.st, ep.ID, 6)
	runner := h.runner()

	res, err := runner.RunStage(context.Background(), ep.ID, stage.Grouping)
	if err != nil {
		t.Fatalf("RunStage grouping: %v", err)
	}
	if res.Outcome != stage.OutcomeSuccess || res.Count != 2 {
		t.Fatalf("unexpected grouping result %+v", res)
	}

	if res, err = runner.RunStage(context.Background(), ep.ID, stage.Insights); err != nil || res.Count != 2 {
		t.Fatalf("RunStage insights: %+v %v", res, err)
	}
	res, err = runner.RunStage(context.Background(), ep.ID, stage.Products)
	if err != nil || !res.OK() {
		t.Fatalf("RunStage products: %+v %v", res, err)
	}
	res, err = runner.RunStage(context.Background(), ep.ID, stage.Links)
	if err != nil || res.Count != 1 {
		t.Fatalf("RunStage links: %+v %v", res, err)
	}
	if h.dl.calls != 0 {
		t.Fatal("single stages must not download")
	}
}

func TestRunStageRejectsUnknownStage(t *testing.T) {
	h := newHarness(t, 0)
	if _, err := h.runner().RunStage(context.Background(), "ep", stage.Acquire); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := h.runner().RunStage(context.Background(), "missing", stage.Summary); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
