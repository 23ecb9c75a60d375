// Package transition implements the transition evaluator (§4.5): given a
// completed step and its result, it selects the next step (or virtual
// sink) from the workflow's declared transitions.
package transition

import (
	"github.com/cloudshipai/loom/internal/config"
	"github.com/cloudshipai/loom/internal/expr"
	"github.com/cloudshipai/loom/internal/state"
)

// NoMatchError is returned when no transition out of a step is satisfied
// and the workflow's on_no_match setting is "fail".
type NoMatchError struct {
	StepID string
}

func (e *NoMatchError) Error() string {
	return "transition: no satisfied transition out of step " + e.StepID
}

// Outcome is what Evaluate returns: either a next step id (possibly a
// virtual sink) or an on_no_match fallback.
type Outcome struct {
	NextStepID string
	// Terminal reports whether NextStepID names a virtual sink (workflow
	// ends here).
	Terminal bool
	// Failed reports the on_no_match=fail fallback was taken; NextStepID
	// is "_failed" in that case too, Terminal is true.
	Failed bool
}

// Evaluate enumerates stepID's outgoing transitions in declaration order,
// evaluating each TransitionCondition against result and exprCtx, and
// returns the first satisfied one. If none match, it falls back to the
// workflow's on_no_match setting.
func Evaluate(cfg *config.WorkflowConfig, stepID string, result state.StepResult, exprCtx expr.Context) (Outcome, error) {
	for _, t := range cfg.TransitionsFrom(stepID) {
		ok, err := satisfied(t.Condition, result, exprCtx)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			return Outcome{NextStepID: t.To, Terminal: config.IsSink(t.To)}, nil
		}
	}

	switch cfg.Settings.EffectiveOnNoMatch() {
	case config.OnNoMatchComplete:
		return Outcome{NextStepID: config.SinkComplete, Terminal: true}, nil
	default:
		return Outcome{NextStepID: config.SinkFailed, Terminal: true, Failed: true}, &NoMatchError{StepID: stepID}
	}
}

func satisfied(cond config.TransitionCondition, result state.StepResult, exprCtx expr.Context) (bool, error) {
	switch cond.Type {
	case config.ConditionAlways:
		return true, nil
	case config.ConditionOnComplete:
		return result.Kind != "", nil
	case config.ConditionOnAgreement:
		return result.Kind == state.ResultConsensus && result.Agreement >= threshold(cond), nil
	case config.ConditionOnDisagreement:
		return result.Kind == state.ResultConsensus && result.Agreement < threshold(cond), nil
	case config.ConditionExpression:
		parsed, err := expr.Parse(cond.Expression)
		if err != nil {
			return false, err
		}
		return parsed.EvalBool(exprCtx)
	default:
		return false, nil
	}
}

func threshold(cond config.TransitionCondition) float64 {
	if cond.Threshold != nil {
		return *cond.Threshold
	}
	return 0
}
