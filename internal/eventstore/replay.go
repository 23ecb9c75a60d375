package eventstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudshipai/loom/internal/state"
)

// Replay rebuilds a *state.Manager for taskID by loading the newest
// snapshot with sequence <= targetSequence (0 meaning "no ceiling", i.e.
// replay to the current head) and applying every subsequent event in
// order, per §4.8. entryStepID/allStepIDs/allowParallelSteps seed a
// fresh aggregate when no snapshot exists yet (the task's very first
// trigger).
func Replay(ctx context.Context, store Store, taskID, workflowID, entryStepID string, allStepIDs []string, allowParallelSteps bool, targetSequence uint64) (*state.Manager, uint64, error) {
	var mgr *state.Manager
	var fromSeq uint64

	snap, ok, err := store.GetLatestSnapshot(ctx, taskID, targetSequence)
	if err != nil {
		return nil, 0, err
	}
	if ok && snap.Snapshot != nil {
		mgr = state.FromSnapshot(*snap.Snapshot)
		fromSeq = snap.Sequence
	} else {
		mgr, err = state.New(taskID, workflowID, entryStepID, allStepIDs, allowParallelSteps, time.Time{})
		if err != nil {
			return nil, 0, err
		}
		fromSeq = 0
	}

	events, err := store.Load(ctx, taskID, fromSeq)
	if err != nil {
		return nil, 0, err
	}

	maxSeq := fromSeq
	for _, ev := range events {
		if targetSequence != 0 && ev.Sequence > targetSequence {
			break
		}
		if err := Apply(mgr, ev); err != nil {
			return nil, 0, fmt.Errorf("eventstore: replay task %q at sequence %d: %w", taskID, ev.Sequence, err)
		}
		maxSeq = ev.Sequence
	}
	return mgr, maxSeq, nil
}

// Apply is total and deterministic (§4.8): each event kind maps to
// exactly one state.Manager mutation.
func Apply(mgr *state.Manager, ev Event) error {
	switch ev.Kind {
	case EventStepActivated:
		return mgr.SetActive(ev.StepID, ev.At)
	case EventStepCompleted:
		if ev.Result == nil {
			return fmt.Errorf("eventstore: StepCompleted event for %q has no result", ev.StepID)
		}
		return mgr.ApplyResult(ev.StepID, *ev.Result, ev.At)
	case EventStepFailed:
		return mgr.FailStep(ev.StepID, ev.FailureReason, ev.Retryable, ev.At)
	case EventContextUpdated:
		for k, v := range ev.ContextDelta {
			mgr.SetContext(k, v)
		}
		return nil
	case EventTransitionTaken:
		mgr.RecordTransition(ev.TransitionFrom, ev.TransitionTo, ev.TransitionReason, ev.At)
		return nil
	case EventSubWorkflowStarted:
		mgr.SetContext(subWorkflowStateKey, map[string]interface{}{
			"is_complete":     false,
			"sub_workflow_id": ev.SubWorkflowID,
		})
		return nil
	case EventSubWorkflowCompleted:
		mgr.SetContext(subWorkflowStateKey, map[string]interface{}{
			"is_complete": true,
			"output":      ev.SubWorkflowOutput,
		})
		return nil
	case EventSnapshot:
		// Snapshots are replay starting points, not independently applied
		// mutations; Replay consumes them before the event loop begins.
		return nil
	default:
		return fmt.Errorf("eventstore: unknown event kind %q", ev.Kind)
	}
}

// subWorkflowStateKey mirrors internal/executor's context key: §4.4.6/§4.8
// both name _sub_workflow_state as the bookkeeping slot nested workflow
// progress lives under.
const subWorkflowStateKey = "_sub_workflow_state"
