package models

import (
	"time"

	"github.com/cloudshipai/loom/pkg/ids"
)

// AssignmentStatus is the lifecycle state of a TaskAssignment, per §3.
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "Assigned"
	AssignmentAccepted   AssignmentStatus = "Accepted"
	AssignmentInProgress AssignmentStatus = "InProgress"
	AssignmentSubmitted  AssignmentStatus = "Submitted"
	AssignmentExpired    AssignmentStatus = "Expired"
	AssignmentReassigned AssignmentStatus = "Reassigned"
	AssignmentRejected   AssignmentStatus = "Rejected"
)

// Terminal reports whether status ends the assignment's lifecycle: no
// further status transition is valid from here.
func (s AssignmentStatus) Terminal() bool {
	switch s {
	case AssignmentSubmitted, AssignmentExpired, AssignmentReassigned, AssignmentRejected:
		return true
	default:
		return false
	}
}

// TaskAssignment pairs a task-step to a user. (task_id, step_id, user_id)
// is unique among non-terminal assignments (§3).
type TaskAssignment struct {
	ID          ids.ID           `json:"assignment_id"`
	TaskID      ids.ID           `json:"task_id"`
	ProjectID   ids.ID           `json:"project_id"`
	StepID      string           `json:"step_id"`
	UserID      ids.ID           `json:"user_id"`
	Status      AssignmentStatus `json:"status"`
	AssignedAt  time.Time        `json:"assigned_at"`
	AcceptedAt  *time.Time       `json:"accepted_at,omitempty"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
	TimeSpentMs int64            `json:"time_spent_ms,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// CanTransitionTo reports whether moving from the current status to to is
// a legal transition per §4.7: Assigned -> Accepted -> InProgress ->
// Submitted, with early exits to Expired|Reassigned|Rejected from any
// non-terminal state.
func (a TaskAssignment) CanTransitionTo(to AssignmentStatus) bool {
	if a.Status.Terminal() {
		return false
	}
	switch to {
	case AssignmentExpired, AssignmentReassigned, AssignmentRejected:
		return true
	case AssignmentAccepted:
		return a.Status == AssignmentAssigned
	case AssignmentInProgress:
		return a.Status == AssignmentAccepted
	case AssignmentSubmitted:
		return a.Status == AssignmentInProgress || a.Status == AssignmentSubmitted
	default:
		return false
	}
}
