package orchestrator

// ConfigNotFound is returned when Process is asked to drive a workflow id
// the ConfigStore has no definition for.
type ConfigNotFound struct {
	WorkflowID string
}

func (e *ConfigNotFound) Error() string {
	return "orchestrator: workflow config not found: " + e.WorkflowID
}

// StepNotActive is returned when a trigger names a step that is not
// currently Active (§4.10 step 3: "reject if that step is not Active").
type StepNotActive struct {
	TaskID string
	StepID string
}

func (e *StepNotActive) Error() string {
	return "orchestrator: step " + e.StepID + " is not active for task " + e.TaskID
}

// UnknownStep is returned when a trigger names a step id the workflow
// does not declare.
type UnknownStep struct {
	StepID string
}

func (e *UnknownStep) Error() string {
	return "orchestrator: unknown step: " + e.StepID
}

// RetriesExhausted is surfaced when event append keeps losing the
// optimistic-concurrency race past the bounded retry count (§4.10 step 7,
// §5 backpressure).
type RetriesExhausted struct {
	TaskID string
	Cause  error
}

func (e *RetriesExhausted) Error() string {
	return "orchestrator: append retries exhausted for task " + e.TaskID + ": " + e.Cause.Error()
}

func (e *RetriesExhausted) Unwrap() error { return e.Cause }
