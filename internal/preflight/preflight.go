package preflight

import (
	"context"

	"buildvault/internal/config"
)

// Result reports the outcome of a single preflight check. Warning marks a
// passing check whose detail deserves attention.
type Result struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Warning bool   `json:"warning,omitempty"`
	Detail  string `json:"detail"`
}

// Pinger is satisfied by the datastore.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunAll executes every check applicable to cfg. st may be nil when the store
// could not be opened; the store check then reports the failure.
func RunAll(ctx context.Context, cfg *config.Config, st Pinger) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Audio directory", cfg.Paths.AudioDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Lock directory", cfg.Paths.LockDir),
		CheckFreeSpace("Audio disk space", cfg.Paths.AudioDir, MinFreeBytes),
	}
	results = append(results, CheckSystemDeps(ctx, cfg)...)
	results = append(results, CheckStore(ctx, cfg.Store.Backend, st))
	results = append(results, CheckCredential("Transcription API key", cfg.Transcription.APIKey, "ASSEMBLYAI_API_KEY"))

	if cfg.LLMEnabled() {
		results = append(results, CheckLLM(ctx, "Summary LLM", cfg.SummaryLLM()))
		if insights := cfg.InsightsLLM(); insights.Model != cfg.SummaryLLM().Model {
			results = append(results, CheckLLM(ctx, "Insights LLM", insights))
		}
	} else {
		results = append(results, CheckCredential("LLM API key", "", "OPENAI_API_KEY"))
	}
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
