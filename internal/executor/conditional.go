package executor

import (
	"context"

	"github.com/cloudshipai/loom/internal/expr"
	"github.com/cloudshipai/loom/internal/state"
)

// ConditionalExecutor implements §4.4.5: it evaluates the step's
// condition expression against the task context and prior step results,
// returning ConditionMet{branch}. Branches default to the virtual sinks
// when true_branch/false_branch are not set.
type ConditionalExecutor struct{}

func (e *ConditionalExecutor) Execute(_ context.Context, ec Ctx) (ExecutionResult, error) {
	if ec.StepConfig.Settings.Condition == "" {
		return ExecutionResult{}, &ConfigurationError{StepID: ec.StepConfig.ID, Detail: "Conditional step has no condition expression"}
	}

	parsed, err := expr.Parse(ec.StepConfig.Settings.Condition)
	if err != nil {
		return Failed(err.Error(), false), nil
	}

	evalCtx := buildExprContext(ec)
	met, err := parsed.EvalBool(evalCtx)
	if err != nil {
		return Failed(err.Error(), false), nil
	}

	trueBranch := ec.StepConfig.Settings.TrueBranch
	if trueBranch == "" {
		trueBranch = "_complete"
	}
	falseBranch := ec.StepConfig.Settings.FalseBranch
	if falseBranch == "" {
		falseBranch = "_failed"
	}

	branch := falseBranch
	if met {
		branch = trueBranch
	}
	return Complete(state.StepResult{Kind: state.ResultConditionMet, Branch: branch}), nil
}

func buildExprContext(ec Ctx) expr.MapContext {
	results := make(map[string]map[string]interface{}, len(ec.StepResults))
	for stepID, res := range ec.StepResults {
		results[stepID] = stepResultToMap(res)
	}
	return expr.MapContext{TaskContext: ec.TaskContext, StepResults: results}
}

func stepResultToMap(res state.StepResult) map[string]interface{} {
	m := map[string]interface{}{"kind": string(res.Kind)}
	if len(res.AnnotationIDs) > 0 {
		ids := make([]interface{}, len(res.AnnotationIDs))
		for i, id := range res.AnnotationIDs {
			ids[i] = id
		}
		m["annotation_ids"] = ids
	}
	if res.Reason != "" {
		m["reason"] = res.Reason
	}
	if res.Agreement != 0 {
		m["agreement"] = res.Agreement
	}
	if res.Metric != "" {
		m["metric"] = res.Metric
	}
	if res.Output != nil {
		m["output"] = res.Output
	}
	if res.Branch != "" {
		m["branch"] = res.Branch
	}
	return m
}
