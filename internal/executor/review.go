package executor

import (
	"context"

	"github.com/cloudshipai/loom/internal/state"
	"github.com/cloudshipai/loom/pkg/models"
)

// ReviewExecutor implements §4.4.2: it looks for a decision attached to an
// annotation submitted for the step and maps it to the corresponding
// StepResult. Approved completes with Approved; Rejected and
// NeedsRevision both complete with Rejected (NeedsRevision carries the
// same reason semantics as an explicit rejection since there is no
// separate StepResult variant for it in §3). Absent a decision, the step
// waits.
type ReviewExecutor struct{}

func (e *ReviewExecutor) Execute(_ context.Context, ec Ctx) (ExecutionResult, error) {
	decided, ok := latestDecision(ec.Annotations)
	if !ok {
		return Waiting("awaiting review decision"), nil
	}

	switch decided.Decision {
	case models.DecisionApproved:
		return Complete(state.StepResult{Kind: state.ResultApproved}), nil
	case models.DecisionRejected, models.DecisionNeedsRevision:
		reason := decided.Reason
		if reason == "" {
			reason = "No reason provided"
		}
		return Complete(state.StepResult{Kind: state.ResultRejected, Reason: reason}), nil
	default:
		return Waiting("awaiting review decision"), nil
	}
}

func latestDecision(annotations []models.Annotation) (models.Annotation, bool) {
	for i := len(annotations) - 1; i >= 0; i-- {
		if annotations[i].Decision != models.DecisionNone {
			return annotations[i], true
		}
	}
	return models.Annotation{}, false
}
