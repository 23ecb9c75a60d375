package orchestrator

import (
	"encoding/json"

	"github.com/cloudshipai/loom/internal/expr"
	"github.com/cloudshipai/loom/internal/state"
)

// buildExprContext bridges a state.Manager's context and completed-step
// results into the expr.Context the transition evaluator and Conditional
// executor consult. Results round-trip through their json tags (the same
// marshal/unmarshal approach internal/config's override merge uses) so
// result(step_id).field resolves the same field names callers see in any
// externally-serialized view of a StepResult.
func buildExprContext(mgr *state.Manager) expr.MapContext {
	results := map[string]map[string]interface{}{}
	for stepID, s := range mgr.Steps {
		if s.Result == nil {
			continue
		}
		results[stepID] = stepResultToMap(*s.Result)
	}
	return expr.MapContext{TaskContext: mgr.GetContext(), StepResults: results}
}

func stepResultToMap(r state.StepResult) map[string]interface{} {
	raw, err := json.Marshal(r)
	if err != nil {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}
