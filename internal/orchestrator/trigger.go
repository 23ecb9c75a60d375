package orchestrator

// TriggerKind enumerates what can invoke Process, per §4.10.
type TriggerKind string

const (
	TriggerAnnotationSubmitted TriggerKind = "annotation-submitted"
	TriggerReviewDecided       TriggerKind = "review-decided"
	TriggerTimerFired          TriggerKind = "timer-fired"
	TriggerRetryRequested      TriggerKind = "retry-requested"
)

// Trigger names what happened and, where relevant, which step it targets.
// An empty StepID defaults to the task's current active step.
type Trigger struct {
	Kind   TriggerKind `json:"kind,omitempty"`
	StepID string      `json:"step_id,omitempty"`
}

// Outcome is what Process returns to its caller.
type Outcome struct {
	TaskID   string
	StepID   string
	NextStep string
	Terminal bool
	Failed   bool
	Waiting  bool
}
