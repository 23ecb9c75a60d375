// Package eventstore implements the append-only event log and replay
// logic of §4.8: events are partitioned by task_id and appended under
// optimistic concurrency control. Replay starts from the newest stored
// snapshot when one exists; ShouldSnapshot gives the 50-event cadence,
// but nothing in this module writes snapshots.
package eventstore

import (
	"time"

	"github.com/cloudshipai/loom/internal/state"
)

// EventKind discriminates the payload an Event carries, per §4.8.
type EventKind string

const (
	EventStepActivated          EventKind = "StepActivated"
	EventStepCompleted          EventKind = "StepCompleted"
	EventContextUpdated         EventKind = "ContextUpdated"
	EventTransitionTaken        EventKind = "TransitionTaken"
	EventSubWorkflowStarted     EventKind = "SubWorkflowStarted"
	EventSubWorkflowCompleted   EventKind = "SubWorkflowCompleted"
	EventStepFailed             EventKind = "StepFailed"
	EventSnapshot               EventKind = "Snapshot"
)

// Event is one immutable record in a task's append-only log.
type Event struct {
	TaskID    string    `json:"task_id"`
	Sequence  uint64    `json:"sequence"`
	Kind      EventKind `json:"kind"`
	At        time.Time `json:"at"`

	StepID         string                 `json:"step_id,omitempty"`
	Result         *state.StepResult      `json:"result,omitempty"`
	FailureReason  string                 `json:"failure_reason,omitempty"`
	Retryable      bool                   `json:"retryable,omitempty"`
	ContextDelta   map[string]interface{} `json:"context_delta,omitempty"`
	TransitionFrom string                 `json:"transition_from,omitempty"`
	TransitionTo   string                 `json:"transition_to,omitempty"`
	TransitionReason string               `json:"transition_reason,omitempty"`
	SubWorkflowID  string                 `json:"sub_workflow_id,omitempty"`
	SubWorkflowDone bool                  `json:"sub_workflow_done,omitempty"`
	SubWorkflowOutput map[string]interface{} `json:"sub_workflow_output,omitempty"`

	Snapshot *state.Snapshot `json:"snapshot,omitempty"`
}

// snapshotInterval is the §4.8 cadence: one snapshot every 50 accepted
// events.
const snapshotInterval = 50

// ShouldSnapshot reports whether the event at sequence should trigger a
// snapshot write, per the §4.8 cadence.
func ShouldSnapshot(sequence uint64) bool {
	return sequence > 0 && sequence%snapshotInterval == 0
}
