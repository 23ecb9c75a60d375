package executor

import (
	"context"

	"github.com/cloudshipai/loom/internal/state"
	"github.com/cloudshipai/loom/pkg/models"
)

// AdjudicationExecutor implements §4.4.3: it waits for an annotation
// carrying adjudication=true (or final_decision=true), extracts its
// agreement score, and requires the invoking user to hold one of
// required_roles (default {adjudicator}).
type AdjudicationExecutor struct{}

func (e *AdjudicationExecutor) Execute(_ context.Context, ec Ctx) (ExecutionResult, error) {
	if ec.User != nil {
		required := ec.StepConfig.Settings.EffectiveRequiredRoles()
		if !hasAnyRole(*ec.User, required) {
			return Failed("user does not hold any required adjudication role", false), nil
		}
	}

	adj, ok := findAdjudication(ec.Annotations)
	if !ok {
		return Waiting("awaiting adjudication"), nil
	}

	agreement, _ := adj.AgreementScore()
	metric := ""
	if ec.StepConfig.Settings.Agreement != nil {
		metric = ec.StepConfig.Settings.Agreement.Metric
	}

	return Complete(state.StepResult{Kind: state.ResultConsensus, Agreement: agreement, Metric: metric}), nil
}

func hasAnyRole(u models.User, roles []string) bool {
	for _, r := range roles {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}

func findAdjudication(annotations []models.Annotation) (models.Annotation, bool) {
	for i := len(annotations) - 1; i >= 0; i-- {
		if annotations[i].Adjudication || annotations[i].FinalDecision {
			return annotations[i], true
		}
	}
	return models.Annotation{}, false
}
