package executor

import (
	"context"

	"github.com/cloudshipai/loom/internal/config"
	"github.com/cloudshipai/loom/internal/state"
	"github.com/cloudshipai/loom/pkg/models"
)

// AnnotationExecutor implements §4.4.1. It completes once at least
// min_annotators distinct users have submitted an annotation for the
// step. Visibility (blind vs collaborative) is a presentation concern for
// the collaborator that renders annotation UIs; the executor itself
// always sees every submission so it can count them. The result does not
// record visibility; visibleTo applies the blind/collaborative filter for
// a given user.
type AnnotationExecutor struct{}

func (e *AnnotationExecutor) Execute(_ context.Context, ec Ctx) (ExecutionResult, error) {
	min := ec.StepConfig.Settings.EffectiveMinAnnotators()

	distinct := distinctUsers(ec.Annotations)
	if len(distinct) < min {
		return Waiting("awaiting annotations"), nil
	}

	ids := make([]string, 0, len(ec.Annotations))
	for _, a := range ec.Annotations {
		ids = append(ids, a.ID.String())
	}
	return Complete(state.StepResult{Kind: state.ResultSubmitted, AnnotationIDs: ids}), nil
}

func distinctUsers(annotations []models.Annotation) map[string]bool {
	seen := map[string]bool{}
	for _, a := range annotations {
		seen[a.UserID.String()] = true
	}
	return seen
}

// visibleTo filters annotations a user may see under the step's
// visibility setting (§4.4.1): blind restricts to the user's own
// submissions, collaborative shows all.
func visibleTo(settings config.StepSettings, userID string, annotations []models.Annotation) []models.Annotation {
	if settings.Visibility != config.VisibilityBlind {
		return annotations
	}
	var out []models.Annotation
	for _, a := range annotations {
		if a.UserID.String() == userID {
			out = append(out, a)
		}
	}
	return out
}
