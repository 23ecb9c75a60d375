// Package state implements the per-task aggregate (§4.3): a map of
// step-id to StepState, a shared context bag, an append-only transition
// history, and a monotonic version counter. It is pure, in-memory state;
// durability is internal/eventstore's concern, which drives this package
// by applying events.
package state

import (
	"fmt"
	"time"
)

// Phase is the discriminant of a StepState.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseActive    Phase = "active"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseSkipped   Phase = "skipped"
)

func (p Phase) terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseSkipped
}

// StepResultKind discriminates the payload a completed step carries.
type StepResultKind string

const (
	ResultSubmitted             StepResultKind = "submitted"
	ResultApproved              StepResultKind = "approved"
	ResultRejected              StepResultKind = "rejected"
	ResultConsensus             StepResultKind = "consensus"
	ResultAutoProcessed         StepResultKind = "auto_processed"
	ResultConditionMet          StepResultKind = "condition_met"
	ResultSubWorkflowCompleted  StepResultKind = "sub_workflow_completed"
)

// StepResult is the payload of a Completed StepState, per §3.
type StepResult struct {
	Kind StepResultKind `json:"kind"`

	AnnotationIDs []string `json:"annotation_ids,omitempty"` // Submitted
	Reason        string   `json:"reason,omitempty"`         // Rejected

	Agreement float64 `json:"agreement,omitempty"` // Consensus
	Metric    string  `json:"metric,omitempty"`     // Consensus

	Output map[string]interface{} `json:"output,omitempty"` // AutoProcessed, SubWorkflowCompleted

	Branch string `json:"branch,omitempty"` // ConditionMet
}

// StepState is the discriminated-union state of one step within a task,
// guarded by the transitions documented in §3:
//
//	Pending -> Active -> (Completed | Failed | Skipped)
//	Active  -> Active   (reassignment)
type StepState struct {
	Phase Phase `json:"phase"`

	Result    *StepResult `json:"result,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
	Attempts  int         `json:"attempts,omitempty"`

	ActivatedAt time.Time `json:"activated_at,omitempty"`
	SettledAt   time.Time `json:"settled_at,omitempty"`
}

// InvalidTransition is raised when a StepState mutation violates the
// guarded state machine.
type InvalidTransition struct {
	StepID string
	From   Phase
	To     Phase
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("state: invalid transition for step %q: %s -> %s", e.StepID, e.From, e.To)
}

// UnknownStep is raised when an operation names a step id the aggregate
// has no state for.
type UnknownStep struct {
	StepID string
}

func (e *UnknownStep) Error() string {
	return fmt.Sprintf("state: unknown step %q", e.StepID)
}

func (s StepState) canTransitionTo(to Phase) bool {
	switch s.Phase {
	case PhasePending:
		return to == PhaseActive
	case PhaseActive:
		return to == PhaseActive || to == PhaseCompleted || to == PhaseFailed || to == PhaseSkipped
	default:
		return false
	}
}

// HistoryEntry records one transition the orchestrator drove, per §3.
type HistoryEntry struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Manager is the WorkflowStateManager aggregate for a single task.
type Manager struct {
	TaskID        string
	WorkflowID    string
	CurrentStepID string
	Steps         map[string]StepState
	Context       map[string]interface{}
	History       []HistoryEntry
	Version       uint64

	allowParallel bool
}

// New initializes the aggregate: every declared step id starts Pending,
// then the entry step is activated (Pending -> Active), per §4.3.
func New(taskID, workflowID, entryStepID string, allStepIDs []string, allowParallelSteps bool, now time.Time) (*Manager, error) {
	m := &Manager{
		TaskID:        taskID,
		WorkflowID:    workflowID,
		Steps:         make(map[string]StepState, len(allStepIDs)),
		Context:       map[string]interface{}{},
		allowParallel: allowParallelSteps,
	}
	for _, id := range allStepIDs {
		m.Steps[id] = StepState{Phase: PhasePending}
	}
	if err := m.SetActive(entryStepID, now); err != nil {
		return nil, err
	}
	return m, nil
}

// SetContext records a value into the shared context bag, bumping version.
func (m *Manager) SetContext(key string, value interface{}) {
	m.Context[key] = value
	m.Version++
}

// GetContext returns the shared context bag. Callers must not mutate the
// returned map.
func (m *Manager) GetContext() map[string]interface{} {
	return m.Context
}

// SetActive moves the cursor to stepID, transitioning it Pending -> Active
// (or Active -> Active on reassignment). Unless allow_parallel_steps is
// set, any other currently Active step is left untouched by this call —
// callers are expected to complete or fail the prior step before
// reactivating a different one; this function only enforces the guard on
// stepID itself.
func (m *Manager) SetActive(stepID string, now time.Time) error {
	s, ok := m.Steps[stepID]
	if !ok {
		return &UnknownStep{StepID: stepID}
	}
	from := s.Phase
	if !s.canTransitionTo(PhaseActive) {
		return &InvalidTransition{StepID: stepID, From: from, To: PhaseActive}
	}
	s.Phase = PhaseActive
	if s.ActivatedAt.IsZero() {
		s.ActivatedAt = now
	}
	m.Steps[stepID] = s
	m.CurrentStepID = stepID
	m.Version++
	return nil
}

// ApplyResult transitions stepID to Completed, recording result.
func (m *Manager) ApplyResult(stepID string, result StepResult, now time.Time) error {
	s, ok := m.Steps[stepID]
	if !ok {
		return &UnknownStep{StepID: stepID}
	}
	from := s.Phase
	if !s.canTransitionTo(PhaseCompleted) {
		return &InvalidTransition{StepID: stepID, From: from, To: PhaseCompleted}
	}
	s.Phase = PhaseCompleted
	s.Result = &result
	s.SettledAt = now
	m.Steps[stepID] = s
	m.Version++
	return nil
}

// FailStep transitions stepID to Failed.
func (m *Manager) FailStep(stepID, reason string, retryable bool, now time.Time) error {
	s, ok := m.Steps[stepID]
	if !ok {
		return &UnknownStep{StepID: stepID}
	}
	from := s.Phase
	if !s.canTransitionTo(PhaseFailed) {
		return &InvalidTransition{StepID: stepID, From: from, To: PhaseFailed}
	}
	s.Phase = PhaseFailed
	s.FailureReason = reason
	s.Retryable = retryable
	s.Attempts++
	s.SettledAt = now
	m.Steps[stepID] = s
	m.Version++
	return nil
}

// SkipStep transitions stepID to Skipped.
func (m *Manager) SkipStep(stepID string, now time.Time) error {
	s, ok := m.Steps[stepID]
	if !ok {
		return &UnknownStep{StepID: stepID}
	}
	from := s.Phase
	if !s.canTransitionTo(PhaseSkipped) {
		return &InvalidTransition{StepID: stepID, From: from, To: PhaseSkipped}
	}
	s.Phase = PhaseSkipped
	s.SettledAt = now
	m.Steps[stepID] = s
	m.Version++
	return nil
}

// ResetForRetry returns a failed, retryable step to Pending so it can be
// reactivated, used by the orchestrator's retry-loop transitions (§9
// "Cyclic workflows").
func (m *Manager) ResetForRetry(stepID string) error {
	s, ok := m.Steps[stepID]
	if !ok {
		return &UnknownStep{StepID: stepID}
	}
	if s.Phase != PhaseFailed || !s.Retryable {
		return &InvalidTransition{StepID: stepID, From: s.Phase, To: PhasePending}
	}
	s.Phase = PhasePending
	m.Steps[stepID] = s
	m.Version++
	return nil
}

// RecordTransition appends a history entry and advances the cursor to
// to, bumping version. This is the only place CurrentStepID moves to a
// virtual sink (_complete/_failed): callers still apply SetActive
// separately for the destination when it names a real step, since
// RecordTransition itself does not touch step phases.
func (m *Manager) RecordTransition(from, to, reason string, now time.Time) {
	m.History = append(m.History, HistoryEntry{From: from, To: to, Reason: reason, At: now})
	m.CurrentStepID = to
	m.Version++
}

// ActiveStepIDs returns every step currently Active. Ordinarily this is at
// most one entry unless allow_parallel_steps was set at construction.
func (m *Manager) ActiveStepIDs() []string {
	var out []string
	for id, s := range m.Steps {
		if s.Phase == PhaseActive {
			out = append(out, id)
		}
	}
	return out
}

// AllowsParallelSteps reports the workflow setting this aggregate was
// constructed with.
func (m *Manager) AllowsParallelSteps() bool {
	return m.allowParallel
}

// Snapshot is the compact, replayable encoding of the aggregate at a
// point in time (§4.3, §4.8).
type Snapshot struct {
	Version       uint64                  `json:"version"`
	TaskID        string                  `json:"task_id"`
	WorkflowID    string                  `json:"workflow_id"`
	CurrentStepID string                  `json:"current_step_id"`
	Steps         map[string]StepState    `json:"step_states"`
	Context       map[string]interface{}  `json:"context"`
	HistoryCursor int                     `json:"history_cursor"`
	AllowParallel bool                    `json:"allow_parallel_steps"`
}

// ToSnapshot captures the current aggregate state.
func (m *Manager) ToSnapshot() Snapshot {
	stepsCopy := make(map[string]StepState, len(m.Steps))
	for k, v := range m.Steps {
		stepsCopy[k] = v
	}
	ctxCopy := make(map[string]interface{}, len(m.Context))
	for k, v := range m.Context {
		ctxCopy[k] = v
	}
	return Snapshot{
		Version:       m.Version,
		TaskID:        m.TaskID,
		WorkflowID:    m.WorkflowID,
		CurrentStepID: m.CurrentStepID,
		Steps:         stepsCopy,
		Context:       ctxCopy,
		HistoryCursor: len(m.History),
		AllowParallel: m.allowParallel,
	}
}

// FromSnapshot rebuilds an aggregate from a snapshot, with history left
// empty at HistoryCursor length: the caller (internal/eventstore) appends
// post-snapshot events' history entries as it replays them.
func FromSnapshot(snap Snapshot) *Manager {
	return &Manager{
		TaskID:        snap.TaskID,
		WorkflowID:    snap.WorkflowID,
		CurrentStepID: snap.CurrentStepID,
		Steps:         snap.Steps,
		Context:       snap.Context,
		Version:       snap.Version,
		allowParallel: snap.AllowParallel,
		History:       make([]HistoryEntry, 0, snap.HistoryCursor),
	}
}
