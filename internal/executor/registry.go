package executor

import (
	"fmt"

	"github.com/cloudshipai/loom/internal/config"
)

// Registry dispatches a step to its StepExecutor by step_type, the "tagged
// variant selected at config-parse time" dispatch model §9 calls for
// instead of open polymorphism.
type Registry struct {
	byType map[config.StepType]StepExecutor
}

// NewRegistry builds a Registry with the six built-in executors wired to
// their step types. handlers is consulted by the AutoProcess executor;
// subWorkflows by the SubWorkflow executor.
func NewRegistry(handlers *HandlerRegistry, subWorkflows SubWorkflowRunner) *Registry {
	r := &Registry{byType: map[config.StepType]StepExecutor{}}
	r.byType[config.StepTypeAnnotation] = &AnnotationExecutor{}
	r.byType[config.StepTypeReview] = &ReviewExecutor{}
	r.byType[config.StepTypeAdjudication] = &AdjudicationExecutor{}
	r.byType[config.StepTypeAutoProcess] = &AutoProcessExecutor{Handlers: handlers}
	r.byType[config.StepTypeConditional] = &ConditionalExecutor{}
	r.byType[config.StepTypeSubWorkflow] = &SubWorkflowExecutor{Runner: subWorkflows}
	return r
}

// Get returns the executor wired to stepType.
func (r *Registry) Get(stepType config.StepType) (StepExecutor, error) {
	e, ok := r.byType[stepType]
	if !ok {
		return nil, fmt.Errorf("executor: no executor registered for step type %q", stepType)
	}
	return e, nil
}

// SetSubWorkflowRunner rewires the SubWorkflow executor's runner after
// construction. It exists because the runner (the orchestrator) is
// typically built from an already-constructed Registry, so the two have a
// circular dependency at wiring time: build the Registry with a nil runner,
// construct the orchestrator from it, then call this to close the loop.
func (r *Registry) SetSubWorkflowRunner(runner SubWorkflowRunner) {
	if e, ok := r.byType[config.StepTypeSubWorkflow].(*SubWorkflowExecutor); ok {
		e.Runner = runner
	}
}
