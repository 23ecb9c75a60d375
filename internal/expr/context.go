package expr

import "strings"

// MapContext is a Context backed by a plain task-context map plus a set of
// per-step result maps, the shape the orchestrator assembles from a
// WorkflowState before invoking the transition evaluator or a Conditional
// step (§9).
type MapContext struct {
	TaskContext map[string]interface{}
	StepResults map[string]map[string]interface{}
}

// Field implements Context.
func (c MapContext) Field(path string) (interface{}, bool) {
	if c.TaskContext == nil {
		return nil, false
	}
	return lookupPath(c.TaskContext, path)
}

// StepExists implements Context.
func (c MapContext) StepExists(stepID string) bool {
	_, ok := c.StepResults[stepID]
	return ok
}

// StepResult implements Context.
func (c MapContext) StepResult(stepID, field string) (interface{}, bool) {
	res, ok := c.StepResults[stepID]
	if !ok {
		return nil, false
	}
	return lookupPath(res, field)
}

// lookupPath walks a dotted path through nested map[string]interface{}
// values, stopping and reporting failure as soon as a segment is missing
// or the value at that point isn't a map.
func lookupPath(m map[string]interface{}, path string) (interface{}, bool) {
	segs := strings.Split(path, ".")
	var cur interface{} = m
	for _, seg := range segs {
		asMap, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := asMap[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}
