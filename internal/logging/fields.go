package logging

// Standard structured logging keys.
const (
	FieldComponent = "component"
	FieldEpisodeID = "episode_id"
	FieldStage     = "stage"
	FieldRunID     = "run_id"
	FieldEventType = "event_type"
	FieldErrorKind = "error_kind"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
	FieldOutcome   = "outcome"
	FieldCount     = "count"
	FieldAlert     = "alert"
)

// Event types emitted around stage execution.
const (
	EventStageStart    = "stage_start"
	EventStageComplete = "stage_complete"
	EventStageSkipped  = "stage_skipped"
	EventStageFailure  = "stage_failure"
	EventStageDegraded = "stage_degraded"
)
