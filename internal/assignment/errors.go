package assignment

import "github.com/cloudshipai/loom/pkg/ids"

// NoEligibleUsers is returned by FindBestAssignee when every candidate
// fails at least one eligibility gate (§4.7).
type NoEligibleUsers struct {
	StepID string
}

func (e *NoEligibleUsers) Error() string {
	return "assignment: no eligible user for step " + e.StepID
}

// DuplicateAssignment is returned by AssignTask when a non-terminal
// assignment already exists for (task_id, step_id, user_id).
type DuplicateAssignment struct {
	TaskID ids.ID
	StepID string
	UserID ids.ID
}

func (e *DuplicateAssignment) Error() string {
	return "assignment: duplicate assignment for task " + e.TaskID.String() + " step " + e.StepID
}

// UserNotFound is returned by AssignTask when user_id has no directory
// record.
type UserNotFound struct {
	UserID ids.ID
}

func (e *UserNotFound) Error() string {
	return "assignment: user not found: " + e.UserID.String()
}

// TaskNotFound is returned by AssignTask when task_id has no known task.
type TaskNotFound struct {
	TaskID ids.ID
}

func (e *TaskNotFound) Error() string {
	return "assignment: task not found: " + e.TaskID.String()
}

// AssignmentLimitReached is a caller-facing advisory error: an eligible
// user was found but the project's concurrent-assignment cap blocks a
// new assignment anyway (distinct from the eligibility gate, which
// excludes the user from ranking entirely).
type AssignmentLimitReached struct {
	UserID ids.ID
}

func (e *AssignmentLimitReached) Error() string {
	return "assignment: limit reached for user " + e.UserID.String()
}

// UserNotEligible is surfaced when a caller requests assignment to a
// specific user who fails an eligibility gate.
type UserNotEligible struct {
	UserID ids.ID
	Reason string
}

func (e *UserNotEligible) Error() string {
	return "assignment: user " + e.UserID.String() + " not eligible: " + e.Reason
}
