package models

import (
	"time"

	"github.com/cloudshipai/loom/pkg/ids"
)

// Annotation is user-produced output for a step. Reviews and adjudications
// are specialized annotations: a Review attaches a Decision, an Adjudication
// sets Adjudication/FinalDecision and carries an agreement score in Data.
type Annotation struct {
	ID         ids.ID                 `json:"id"`
	TaskID     ids.ID                 `json:"task_id"`
	StepID     string                 `json:"step_id"`
	UserID     ids.ID                 `json:"user_id"`
	Data       map[string]interface{} `json:"data"`
	Decision   Decision               `json:"decision,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Adjudication bool                 `json:"adjudication,omitempty"`
	FinalDecision bool                `json:"final_decision,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Decision is the outcome attached to a Review annotation.
type Decision string

const (
	DecisionNone          Decision = ""
	DecisionApproved      Decision = "approved"
	DecisionRejected      Decision = "rejected"
	DecisionNeedsRevision Decision = "needs_revision"
)

// AgreementScore extracts the numeric agreement score carried by an
// adjudication annotation's payload, per §4.4.3.
func (a Annotation) AgreementScore() (float64, bool) {
	if a.Data == nil {
		return 0, false
	}
	raw, ok := a.Data["agreement"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
