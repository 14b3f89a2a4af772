package pipeline

import (
	"context"
	"fmt"

	"buildvault/internal/stage"
)

// Health reports which stages have their collaborators wired.
func (r *Runner) Health(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(stage.Order()))

	storeHealth := stage.Healthy("store", fmt.Sprintf("schema v%d", r.deps.Store.Capabilities().SchemaVersion))
	if err := r.deps.Store.Ping(ctx); err != nil {
		storeHealth = stage.Unhealthy("store", err.Error())
	}
	out = append(out, storeHealth)

	out = append(out, wired(stage.Acquire, r.deps.Downloader != nil, "downloader not configured; only stored episodes can run"))
	out = append(out, wired(stage.Transcript, r.deps.Transcriber != nil, "transcription API key missing"))
	if r.deps.Store.Capabilities().SegmentGroups {
		out = append(out, stage.Healthy(stage.Grouping, ""))
	} else {
		out = append(out, stage.Unhealthy(stage.Grouping, "schema has no segment groups; grouping degrades"))
	}
	out = append(out, wired(stage.Summary, r.deps.Summarizer != nil, "LLM API key missing"))
	out = append(out, wired(stage.Insights, r.deps.Analyst != nil, "LLM API key missing"))
	out = append(out, stage.Healthy(stage.Products, ""))
	out = append(out, stage.Healthy(stage.Links, ""))
	switch {
	case r.deps.Enricher == nil:
		out = append(out, stage.Unhealthy(stage.Enrich, "no link enricher configured"))
	case r.opts.DemoMode:
		out = append(out, stage.Healthy(stage.Enrich, "skipped in demo mode"))
	default:
		out = append(out, stage.Healthy(stage.Enrich, ""))
	}
	return out
}

func wired(name string, ok bool, missing string) stage.Health {
	if ok {
		return stage.Healthy(name, "")
	}
	return stage.Unhealthy(name, missing)
}
