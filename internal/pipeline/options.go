package pipeline

import (
	"buildvault/internal/config"
)

// Options tunes a run. Zero values fall back to each stage's defaults.
type Options struct {
	SkipExisting bool
	// DemoMode caps the work each stage does and skips link enrichment.
	DemoMode        bool
	DemoMaxSegments int
	DemoMaxInsights int

	GroupSize           int
	InsightBatchSize    int
	InsightSegmentLimit int
	SummaryMinLength    int
	SummaryCharBudget   int
	SummarySegmentLimit int
	EnrichLimit         int
	SpeakersExpected    int

	// LockDir holds per-episode lock files. Empty disables locking.
	LockDir string
}

// OptionsFromConfig maps the loaded configuration onto run options.
func OptionsFromConfig(cfg *config.Config) Options {
	p := cfg.Pipeline
	return Options{
		SkipExisting:        p.SkipExisting,
		DemoMode:            p.DemoMode,
		DemoMaxSegments:     p.DemoMaxSegments,
		DemoMaxInsights:     p.DemoMaxInsights,
		GroupSize:           p.GroupSize,
		InsightBatchSize:    p.InsightBatchSize,
		InsightSegmentLimit: p.InsightSegmentLimit,
		SummaryMinLength:    p.SummaryMinLength,
		SummaryCharBudget:   p.SummaryCharBudget,
		SummarySegmentLimit: p.SummarySegmentLimit,
		EnrichLimit:         p.EnrichLimit,
		SpeakersExpected:    cfg.Transcription.SpeakersExpected,
		LockDir:             cfg.Paths.LockDir,
	}
}

// demoLimit returns limit in demo mode and zero (unlimited) otherwise.
func (o Options) demoLimit(limit int) int {
	if !o.DemoMode {
		return 0
	}
	return limit
}
