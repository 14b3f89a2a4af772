package stage

import (
	"errors"
	"time"

	"buildvault/internal/services"
)

// Stage names in pipeline order.
const (
	Acquire    = "acquire"
	Transcript = "transcript"
	Grouping   = "grouping"
	Summary    = "summary"
	Insights   = "insights"
	Products   = "products"
	Links      = "links"
	Enrich     = "enrich"
)

// Order lists the stage names a full run executes.
func Order() []string {
	return []string{Acquire, Transcript, Grouping, Summary, Insights, Products, Links, Enrich}
}

// Outcome classifies how a stage finished.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
)

// Result is what a stage reports back to the runner.
type Result struct {
	Stage    string        `json:"stage"`
	Outcome  Outcome       `json:"outcome"`
	Count    int           `json:"count"`
	Detail   string        `json:"detail,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Succeeded records a stage that produced count items.
func Succeeded(name string, count int, detail string) Result {
	return Result{Stage: name, Outcome: OutcomeSuccess, Count: count, Detail: detail}
}

// Skipped records a stage that found prior output and did no work.
func Skipped(name string, count int, detail string) Result {
	return Result{Stage: name, Outcome: OutcomeSkipped, Count: count, Detail: detail}
}

// Degraded records a stage that finished without one of its capabilities.
func Degraded(name string, count int, err error) Result {
	r := Result{Stage: name, Outcome: OutcomeDegraded, Count: count, Err: err}
	if err != nil {
		r.Detail = err.Error()
	}
	return r
}

// Failed records a stage that produced nothing because of err.
func Failed(name string, err error) Result {
	r := Result{Stage: name, Outcome: OutcomeFailed, Err: err}
	if err != nil {
		r.Detail = err.Error()
	}
	return r
}

// OK reports whether the stage counts as a success for the run summary.
// Degraded stages are successes with a caveat.
func (r Result) OK() bool {
	return r.Outcome != OutcomeFailed
}

// ErrorKind returns the error marker name, or "" when the result carries none.
func (r Result) ErrorKind() string {
	if r.Err == nil {
		return ""
	}
	return services.Kind(r.Err)
}

// IsCapabilityGap reports whether the result degraded for a missing capability.
func (r Result) IsCapabilityGap() bool {
	return errors.Is(r.Err, services.ErrCapabilityGap)
}

// ErrorMessage returns the error text, or "" when the result carries none.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
