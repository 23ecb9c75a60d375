package orchestrator

import (
	"context"

	"github.com/cloudshipai/loom/internal/config"
	"github.com/cloudshipai/loom/internal/eventstore"
)

// Start implements executor.SubWorkflowRunner: it drives the nested
// workflow identified by subWorkflowID for childTaskID one step at a
// time, seeding its context from input on first entry. It returns
// done=true once the child has reached a virtual sink, with output set
// to its final context.
func (o *Orchestrator) Start(ctx context.Context, childTaskID, subWorkflowID string, input map[string]interface{}, depth int) (bool, map[string]interface{}, error) {
	cfg, ok, err := o.Configs.Get(ctx, subWorkflowID)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, &ConfigNotFound{WorkflowID: subWorkflowID}
	}

	mu := o.lockFor(childTaskID)
	mu.Lock()
	defer mu.Unlock()

	mgr, version, err := eventstore.Replay(ctx, o.Events, childTaskID, cfg.ID.String(), cfg.EntryStepID, cfg.AllStepIDs(), cfg.Settings.AllowParallelSteps, 0)
	if err != nil {
		return false, nil, err
	}

	if version == 0 {
		now := o.clockNow()
		var seed []eventstore.Event
		for k, v := range input {
			mgr.SetContext(k, v)
		}
		if len(input) > 0 {
			seed = append(seed, eventstore.Event{Kind: eventstore.EventContextUpdated, ContextDelta: input, At: now})
		}
		seed = append(seed, eventstore.Event{Kind: eventstore.EventSubWorkflowStarted, SubWorkflowID: subWorkflowID, At: now})
		if _, err := o.Events.Append(ctx, childTaskID, version, seed); err != nil {
			return false, nil, err
		}
		version += uint64(len(seed))
	}

	if config.IsSink(mgr.CurrentStepID) {
		return true, mgr.GetContext(), nil
	}

	_, err = o.processLocked(ctx, childTaskID, cfg, Trigger{StepID: mgr.CurrentStepID}, depth)
	if err != nil {
		return false, nil, err
	}

	mgr, _, err = eventstore.Replay(ctx, o.Events, childTaskID, cfg.ID.String(), cfg.EntryStepID, cfg.AllStepIDs(), cfg.Settings.AllowParallelSteps, 0)
	if err != nil {
		return false, nil, err
	}
	if !config.IsSink(mgr.CurrentStepID) {
		return false, nil, nil
	}
	return true, mgr.GetContext(), nil
}
