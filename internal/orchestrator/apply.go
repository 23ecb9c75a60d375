package orchestrator

import (
	"context"
	"time"

	"github.com/cloudshipai/loom/internal/config"
	"github.com/cloudshipai/loom/internal/eventstore"
	"github.com/cloudshipai/loom/internal/executor"
	"github.com/cloudshipai/loom/internal/logging"
	"github.com/cloudshipai/loom/internal/state"
	"github.com/cloudshipai/loom/internal/transition"
)

func (o *Orchestrator) clockNow() time.Time {
	if o.Clock == nil {
		return time.Now()
	}
	return o.Clock.Now()
}

// handleWaiting persists any context delta (§4.10 step 5) and stops; no
// transition evaluation runs for a step still in progress.
func (o *Orchestrator) handleWaiting(ctx context.Context, taskID string, version uint64, stepID string, res executor.ExecutionResult, now time.Time) (Outcome, error) {
	var events []eventstore.Event
	if len(res.ContextDelta) > 0 {
		events = append(events, eventstore.Event{Kind: eventstore.EventContextUpdated, StepID: stepID, ContextDelta: res.ContextDelta, At: now})
	}
	if len(events) > 0 {
		if _, err := o.appendWithRetry(ctx, taskID, version, events); err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{TaskID: taskID, StepID: stepID, Waiting: true}, nil
}

// handleFailed records the failure and still drives the transition
// evaluator (§5: "the orchestrator emits StepFailed{retryable=true} and
// drives the transition evaluator" on timeout; the same path applies to
// any executor-reported failure).
func (o *Orchestrator) handleFailed(ctx context.Context, mgr *state.Manager, cfg *config.WorkflowConfig, taskID string, version uint64, stepID string, res executor.ExecutionResult, now time.Time) (Outcome, error) {
	events := []eventstore.Event{{Kind: eventstore.EventStepFailed, StepID: stepID, FailureReason: res.Reason, Retryable: res.Retryable, At: now}}
	if err := mgr.FailStep(stepID, res.Reason, res.Retryable, now); err != nil {
		return Outcome{}, err
	}

	exprCtx := buildExprContext(mgr)
	out, transErr := transition.Evaluate(cfg, stepID, state.StepResult{}, exprCtx)
	events = append(events, eventstore.Event{Kind: eventstore.EventTransitionTaken, TransitionFrom: stepID, TransitionTo: out.NextStepID, At: now})
	if !out.Terminal {
		events = append(events, eventstore.Event{Kind: eventstore.EventStepActivated, StepID: out.NextStepID, At: now})
	}

	if _, err := o.appendWithRetry(ctx, taskID, version, events); err != nil {
		return Outcome{}, err
	}
	o.notifyGoals(taskID)
	o.Telemetry.recordFailure(ctx, stepID)
	o.Telemetry.recordTransition(ctx, stepID, out.NextStepID)
	o.Logger.Info("step failed", logging.F("task_id", taskID), logging.F("step_id", stepID), logging.F("reason", res.Reason), logging.F("retryable", res.Retryable))

	outcome := Outcome{TaskID: taskID, StepID: stepID, NextStep: out.NextStepID, Terminal: out.Terminal, Failed: out.Failed}
	if transErr != nil {
		return outcome, transErr
	}
	return outcome, nil
}

// handleComplete applies the result, runs the transition evaluator, and
// persists the full batch: StepCompleted, any ContextUpdated, and
// TransitionTaken (+ StepActivated for the destination unless it is a
// virtual sink), per §4.10 step 6.
func (o *Orchestrator) handleComplete(ctx context.Context, mgr *state.Manager, cfg *config.WorkflowConfig, taskID string, version uint64, stepID string, res executor.ExecutionResult, now time.Time) (Outcome, error) {
	if err := mgr.ApplyResult(stepID, res.Step, now); err != nil {
		return Outcome{}, err
	}
	events := []eventstore.Event{{Kind: eventstore.EventStepCompleted, StepID: stepID, Result: &res.Step, At: now}}

	if len(res.ContextDelta) > 0 {
		for k, v := range res.ContextDelta {
			mgr.SetContext(k, v)
		}
		events = append(events, eventstore.Event{Kind: eventstore.EventContextUpdated, StepID: stepID, ContextDelta: res.ContextDelta, At: now})
	}

	exprCtx := buildExprContext(mgr)
	out, transErr := transition.Evaluate(cfg, stepID, res.Step, exprCtx)
	if transErr != nil && out.NextStepID == "" {
		return Outcome{}, transErr
	}

	events = append(events, eventstore.Event{Kind: eventstore.EventTransitionTaken, TransitionFrom: stepID, TransitionTo: out.NextStepID, At: now})
	mgr.RecordTransition(stepID, out.NextStepID, "", now)

	if !out.Terminal {
		if err := mgr.SetActive(out.NextStepID, now); err != nil {
			return Outcome{}, err
		}
		events = append(events, eventstore.Event{Kind: eventstore.EventStepActivated, StepID: out.NextStepID, At: now})
	}

	if _, err := o.appendWithRetry(ctx, taskID, version, events); err != nil {
		return Outcome{}, err
	}
	o.notifyGoals(taskID)
	o.Telemetry.recordTransition(ctx, stepID, out.NextStepID)
	o.Logger.Info("step completed", logging.F("task_id", taskID), logging.F("step_id", stepID), logging.F("next_step", out.NextStepID), logging.F("terminal", out.Terminal))

	return Outcome{TaskID: taskID, StepID: stepID, NextStep: out.NextStepID, Terminal: out.Terminal, Failed: out.Failed}, nil
}

// appendWithRetry appends events at expectedVersion, reloading and
// retrying up to maxAppendRetries times on VersionConflict (§4.10 step 7,
// §5 backpressure). Because progress for a task_id is already serialized
// by the per-task mutex Process holds, a conflict here can only come from
// an external writer (e.g. a crash-recovered duplicate process); retrying
// with the freshly observed version is sufficient without redoing the
// whole executor invocation.
func (o *Orchestrator) appendWithRetry(ctx context.Context, taskID string, expectedVersion uint64, events []eventstore.Event) (uint64, error) {
	var lastErr error
	version := expectedVersion
	for attempt := 0; attempt <= maxAppendRetries; attempt++ {
		v, err := o.Events.Append(ctx, taskID, version, events)
		if err == nil {
			return v, nil
		}
		var conflict *eventstore.VersionConflict
		if !asVersionConflict(err, &conflict) {
			return 0, err
		}
		version = conflict.Have
		lastErr = err
	}
	return 0, &RetriesExhausted{TaskID: taskID, Cause: lastErr}
}

func asVersionConflict(err error, target **eventstore.VersionConflict) bool {
	vc, ok := err.(*eventstore.VersionConflict)
	if ok {
		*target = vc
	}
	return ok
}

func (o *Orchestrator) notifyGoals(taskID string) {
	if o.Goals == nil {
		return
	}
	go o.Goals.OnEvent(taskID)
}
