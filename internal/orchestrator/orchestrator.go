package orchestrator

import (
	"context"
	"sync"

	"github.com/cloudshipai/loom/internal/config"
	"github.com/cloudshipai/loom/internal/eventstore"
	"github.com/cloudshipai/loom/internal/executor"
	"github.com/cloudshipai/loom/internal/logging"
	"github.com/cloudshipai/loom/internal/state"
	"github.com/cloudshipai/loom/internal/transition"
)

const maxAppendRetries = 3

// Orchestrator is the C10 aggregate root: it owns no durable state of its
// own, wiring together the ports and component packages named in §6/§4.10.
// Per-task progress is serialized by a per-task-id mutex (§5's "sole
// concurrency primitive the core requires"), kept in-process here; a
// multi-process deployment would back this with the same NATS-per-task-
// shard dispatch the teacher's agent queue already demonstrates.
type Orchestrator struct {
	Configs     ConfigStore
	Annotations AnnotationRepo
	Events      eventstore.Store
	Executors   *executor.Registry
	Handlers    *executor.HandlerRegistry
	Goals       GoalNotifier
	Clock       Clock
	Telemetry   *Telemetry
	Dispatcher  Dispatcher
	Logger      *logging.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New constructs an Orchestrator from its ports. executors is expected to
// have been built with a nil SubWorkflowRunner (the orchestrator IS that
// runner, and can't exist before this call returns); New closes the loop by
// calling executors.SetSubWorkflowRunner on the instance it just built, so
// SubWorkflow steps dispatch back into this orchestrator. Telemetry,
// Dispatcher, and Logger are all optional and nil-safe; set them on the
// returned Orchestrator directly when wanted.
func New(configs ConfigStore, annotations AnnotationRepo, events eventstore.Store, executors *executor.Registry, handlers *executor.HandlerRegistry, goalNotifier GoalNotifier) *Orchestrator {
	o := &Orchestrator{
		Configs:     configs,
		Annotations: annotations,
		Events:      events,
		Executors:   executors,
		Handlers:    handlers,
		Goals:       goalNotifier,
		Clock:       SystemClock{},
		locks:       map[string]*sync.Mutex{},
	}
	executors.SetSubWorkflowRunner(o)
	return o
}

func (o *Orchestrator) lockFor(taskID string) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()
	m, ok := o.locks[taskID]
	if !ok {
		m = &sync.Mutex{}
		o.locks[taskID] = m
	}
	return m
}

// Process is the §4.10 entrypoint. workflowID names the workflow this
// task is governed by; §6 names only a ConfigStore keyed by workflow id,
// so the caller (a task repository outside this core's named ports) is
// expected to resolve task_id -> workflow_id before calling in.
func (o *Orchestrator) Process(ctx context.Context, taskID, workflowID string, trig Trigger, depth int) (Outcome, error) {
	mu := o.lockFor(taskID)
	mu.Lock()
	defer mu.Unlock()

	ctx, span := o.Telemetry.startProcessSpan(ctx, taskID, trig.StepID)

	cfg, ok, err := o.Configs.Get(ctx, workflowID)
	if err != nil {
		o.Telemetry.endProcessSpan(span, Outcome{}, err)
		return Outcome{}, err
	}
	if !ok {
		err := &ConfigNotFound{WorkflowID: workflowID}
		o.Telemetry.endProcessSpan(span, Outcome{}, err)
		return Outcome{}, err
	}

	out, err := o.processLocked(ctx, taskID, cfg, trig, depth)
	o.Telemetry.endProcessSpan(span, out, err)
	if err == nil && o.Dispatcher != nil && !out.Terminal && !out.Waiting {
		if derr := o.Dispatcher.Dispatch(ctx, taskID, workflowID, Trigger{StepID: out.NextStep}); derr != nil {
			o.Logger.Error("dispatch failed", logging.F("task_id", taskID), logging.F("step_id", out.NextStep), logging.F("error", derr))
		}
	}
	return out, err
}

func (o *Orchestrator) processLocked(ctx context.Context, taskID string, cfg *config.WorkflowConfig, trig Trigger, depth int) (Outcome, error) {
	mgr, version, err := eventstore.Replay(ctx, o.Events, taskID, cfg.ID.String(), cfg.EntryStepID, cfg.AllStepIDs(), cfg.Settings.AllowParallelSteps, 0)
	if err != nil {
		return Outcome{}, err
	}

	stepID := trig.StepID
	if stepID == "" {
		stepID = mgr.CurrentStepID
	}
	stepState, ok := mgr.Steps[stepID]
	if !ok {
		return Outcome{}, &UnknownStep{StepID: stepID}
	}
	if stepState.Phase != state.PhaseActive {
		return Outcome{}, &StepNotActive{TaskID: taskID, StepID: stepID}
	}

	stepCfg, ok := cfg.StepByID(stepID)
	if !ok {
		return Outcome{}, &UnknownStep{StepID: stepID}
	}

	ex, err := o.Executors.Get(stepCfg.StepType)
	if err != nil {
		return Outcome{}, err
	}

	annotations, err := o.Annotations.ListFor(ctx, taskID, stepID)
	if err != nil {
		return Outcome{}, err
	}

	ec := executor.Ctx{
		StepConfig:  stepCfg,
		TaskID:      taskID,
		Annotations: annotations,
		TaskContext: mgr.GetContext(),
		StepResults: collectStepResults(mgr),
		Handlers:    o.Handlers,
		Clock:       executor.SystemClock{},
		Depth:       depth,
	}

	o.Logger.Debug("dispatching step", logging.F("task_id", taskID), logging.F("step_id", stepID), logging.F("step_type", stepCfg.StepType))

	res, err := ex.Execute(ctx, ec)
	if err != nil {
		return Outcome{}, err
	}

	now := o.clockNow()

	switch res.Kind {
	case executor.ResultWaiting:
		return o.handleWaiting(ctx, taskID, version, stepID, res, now)
	case executor.ResultFailed:
		return o.handleFailed(ctx, mgr, cfg, taskID, version, stepID, res, now)
	default: // executor.ResultComplete
		return o.handleComplete(ctx, mgr, cfg, taskID, version, stepID, res, now)
	}
}

func collectStepResults(mgr *state.Manager) map[string]state.StepResult {
	out := map[string]state.StepResult{}
	for id, s := range mgr.Steps {
		if s.Result != nil {
			out[id] = *s.Result
		}
	}
	return out
}
