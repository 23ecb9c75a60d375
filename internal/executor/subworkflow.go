package executor

import (
	"context"
	"strings"

	"github.com/cloudshipai/loom/internal/config"
	"github.com/cloudshipai/loom/internal/state"
)

const subWorkflowStateKey = "_sub_workflow_state"

// SubWorkflowExecutor implements §4.4.6: on first execution it seeds the
// nested workflow's input from input_mapping, marks _sub_workflow_state
// in context, and waits; on later executions it asks the SubWorkflowRunner
// whether the nested workflow has finished and, once it has, maps its
// output back via output_mapping. Nesting depth is capped at
// config.MaxSubWorkflowDepth (including the root).
type SubWorkflowExecutor struct {
	Runner SubWorkflowRunner
}

func (e *SubWorkflowExecutor) Execute(ctx context.Context, ec Ctx) (ExecutionResult, error) {
	if ec.StepConfig.Settings.SubWorkflowID == "" {
		return ExecutionResult{}, &ConfigurationError{StepID: ec.StepConfig.ID, Detail: "SubWorkflow step has no sub_workflow_id"}
	}
	// ec.Depth is 0 for the root workflow, so the child started here is
	// level ec.Depth+2 counting the root.
	if ec.Depth+2 > config.MaxSubWorkflowDepth {
		return ExecutionResult{}, &MaxRecursionDepthError{Depth: ec.Depth + 2, Max: config.MaxSubWorkflowDepth}
	}
	if e.Runner == nil {
		return ExecutionResult{}, &ConfigurationError{StepID: ec.StepConfig.ID, Detail: "no SubWorkflowRunner configured"}
	}

	input := applyMapping(ec.TaskContext, ec.StepConfig.Settings.InputMapping)
	childTaskID := ec.TaskID + ":" + ec.StepConfig.ID

	done, output, err := e.Runner.Start(ctx, childTaskID, ec.StepConfig.Settings.SubWorkflowID, input, ec.Depth+1)
	if err != nil {
		return Failed(err.Error(), true), nil
	}
	if !done {
		delta := map[string]interface{}{
			subWorkflowStateKey: map[string]interface{}{"is_complete": false, "sub_workflow_id": ec.StepConfig.Settings.SubWorkflowID},
		}
		return WaitingWithContext("sub-workflow in progress", delta), nil
	}

	mapped := applyMapping(output, ec.StepConfig.Settings.OutputMapping)
	result := Complete(state.StepResult{Kind: state.ResultSubWorkflowCompleted, Output: mapped})
	result.ContextDelta = map[string]interface{}{
		subWorkflowStateKey: map[string]interface{}{"is_complete": true, "output": output},
	}
	return result, nil
}

// applyMapping translates source dotted paths to destination dotted paths
// per §4.4.6: "dotted paths nest objects; missing source paths omit the
// target (they do not null it)." mapping is dest-path -> source-path.
func applyMapping(source map[string]interface{}, mapping map[string]string) map[string]interface{} {
	out := map[string]interface{}{}
	if len(mapping) == 0 {
		return source
	}
	for destPath, srcPath := range mapping {
		v, ok := lookupDotted(source, srcPath)
		if !ok {
			continue
		}
		setDotted(out, destPath, v)
	}
	return out
}

func lookupDotted(m map[string]interface{}, path string) (interface{}, bool) {
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

func setDotted(m map[string]interface{}, path string, value interface{}) {
	segs := strings.Split(path, ".")
	cur := m
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}
