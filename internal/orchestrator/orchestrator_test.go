package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudshipai/loom/internal/config"
	"github.com/cloudshipai/loom/internal/eventstore"
	"github.com/cloudshipai/loom/internal/executor"
	"github.com/cloudshipai/loom/internal/testutil"
	"github.com/cloudshipai/loom/pkg/ids"
	"github.com/cloudshipai/loom/pkg/models"
)

type fakeConfigStore struct {
	byID map[string]*config.WorkflowConfig
}

func (s fakeConfigStore) Get(ctx context.Context, workflowID string) (*config.WorkflowConfig, bool, error) {
	c, ok := s.byID[workflowID]
	return c, ok, nil
}

type fakeAnnotationRepo struct {
	byStep map[string][]models.Annotation
}

func (r fakeAnnotationRepo) ListFor(ctx context.Context, taskID, stepID string) ([]models.Annotation, error) {
	return r.byStep[stepID], nil
}

func TestProcessSingleStepAnnotationCompletes(t *testing.T) {
	cfg := &config.WorkflowConfig{
		ID:          ids.New(ids.TagWorkflow),
		EntryStepID: "a",
		ExitStepIDs: []string{"a"},
		Steps: []config.StepConfig{
			{ID: "a", StepType: config.StepTypeAnnotation, Settings: config.StepSettings{MinAnnotators: testutil.IntPtr(1)}},
		},
		Transitions: []config.TransitionConfig{
			{From: "a", To: config.SinkComplete, Condition: config.TransitionCondition{Type: config.ConditionOnComplete}},
		},
	}
	configs := fakeConfigStore{byID: map[string]*config.WorkflowConfig{"wf1": cfg}}
	annotations := fakeAnnotationRepo{byStep: map[string][]models.Annotation{
		"a": {{ID: ids.New(ids.TagAnnotation), UserID: ids.New(ids.TagUser), Data: map[string]interface{}{}}},
	}}
	events := eventstore.NewMemoryStore()
	registry := executor.NewRegistry(executor.NewBuiltinHandlerRegistry(), nil)
	o := New(configs, annotations, events, registry, executor.NewBuiltinHandlerRegistry(), nil)

	taskID := "task_1"
	// Seed: the task's very first event is an implicit StepActivated for
	// the entry step (a real deployment's task-creation path would append
	// this when the task is created; tests seed it directly).
	_, err := events.Append(context.Background(), taskID, 0, []eventstore.Event{{Kind: eventstore.EventStepActivated, StepID: "a"}})
	require.NoError(t, err)

	out, err := o.Process(context.Background(), taskID, "wf1", Trigger{Kind: TriggerAnnotationSubmitted, StepID: "a"}, 0)
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.Equal(t, config.SinkComplete, out.NextStep)

	log, err := events.Load(context.Background(), taskID, 0)
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, eventstore.EventStepActivated, log[0].Kind)
	assert.Equal(t, eventstore.EventStepCompleted, log[1].Kind)
	assert.Equal(t, eventstore.EventTransitionTaken, log[2].Kind)
}

func TestProcessConsensusBranchingTakesOnAgreement(t *testing.T) {
	threshold := 0.8
	cfg := &config.WorkflowConfig{
		ID:          ids.New(ids.TagWorkflow),
		EntryStepID: "adj",
		ExitStepIDs: []string{"adj"},
		Steps: []config.StepConfig{
			{ID: "adj", StepType: config.StepTypeAdjudication},
			{ID: "done", StepType: config.StepTypeAutoProcess, Settings: config.StepSettings{Handler: "passthrough"}},
			{ID: "redo", StepType: config.StepTypeAutoProcess, Settings: config.StepSettings{Handler: "passthrough"}},
		},
		Transitions: []config.TransitionConfig{
			{From: "adj", To: "done", Condition: config.TransitionCondition{Type: config.ConditionOnAgreement, Threshold: &threshold}},
			{From: "adj", To: "redo", Condition: config.TransitionCondition{Type: config.ConditionOnDisagreement, Threshold: &threshold}},
		},
	}
	configs := fakeConfigStore{byID: map[string]*config.WorkflowConfig{"wf1": cfg}}
	adjudicator := models.User{ID: ids.New(ids.TagUser), Roles: []string{"adjudicator"}}
	annotations := fakeAnnotationRepo{byStep: map[string][]models.Annotation{
		"adj": {{Adjudication: true, Data: map[string]interface{}{"agreement": 1.0}}},
	}}
	events := eventstore.NewMemoryStore()
	registry := executor.NewRegistry(executor.NewBuiltinHandlerRegistry(), nil)
	o := New(configs, annotations, events, registry, executor.NewBuiltinHandlerRegistry(), nil)
	_ = adjudicator

	taskID := "task_2"
	_, err := events.Append(context.Background(), taskID, 0, []eventstore.Event{{Kind: eventstore.EventStepActivated, StepID: "adj"}})
	require.NoError(t, err)

	out, err := o.Process(context.Background(), taskID, "wf1", Trigger{StepID: "adj"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "done", out.NextStep)
	assert.False(t, out.Terminal)
}

func TestProcessSubWorkflowStepDrivesNestedWorkflowToCompletion(t *testing.T) {
	childCfg := &config.WorkflowConfig{
		ID:          ids.New(ids.TagWorkflow),
		EntryStepID: "child_a",
		ExitStepIDs: []string{"child_a"},
		Steps: []config.StepConfig{
			{ID: "child_a", StepType: config.StepTypeAnnotation, Settings: config.StepSettings{MinAnnotators: testutil.IntPtr(1)}},
		},
		Transitions: []config.TransitionConfig{
			{From: "child_a", To: config.SinkComplete, Condition: config.TransitionCondition{Type: config.ConditionOnComplete}},
		},
	}
	parentCfg := &config.WorkflowConfig{
		ID:          ids.New(ids.TagWorkflow),
		EntryStepID: "sub",
		ExitStepIDs: []string{"sub"},
		Steps: []config.StepConfig{
			{ID: "sub", StepType: config.StepTypeSubWorkflow, Settings: config.StepSettings{SubWorkflowID: "child_wf"}},
		},
		Transitions: []config.TransitionConfig{
			{From: "sub", To: config.SinkComplete, Condition: config.TransitionCondition{Type: config.ConditionOnComplete}},
		},
	}
	configs := fakeConfigStore{byID: map[string]*config.WorkflowConfig{"wf1": parentCfg, "child_wf": childCfg}}
	annotations := fakeAnnotationRepo{byStep: map[string][]models.Annotation{
		"child_a": {{ID: ids.New(ids.TagAnnotation), UserID: ids.New(ids.TagUser), Data: map[string]interface{}{}}},
	}}
	events := eventstore.NewMemoryStore()
	registry := executor.NewRegistry(executor.NewBuiltinHandlerRegistry(), nil)
	o := New(configs, annotations, events, registry, executor.NewBuiltinHandlerRegistry(), nil)

	taskID := "task_sub"
	_, err := events.Append(context.Background(), taskID, 0, []eventstore.Event{{Kind: eventstore.EventStepActivated, StepID: "sub"}})
	require.NoError(t, err)

	out, err := o.Process(context.Background(), taskID, "wf1", Trigger{StepID: "sub"}, 0)
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.Equal(t, config.SinkComplete, out.NextStep)

	childLog, err := events.Load(context.Background(), taskID+":sub", 0)
	require.NoError(t, err)
	require.NotEmpty(t, childLog)
	assert.Equal(t, eventstore.EventSubWorkflowStarted, childLog[0].Kind)
}

func TestProcessRejectsInactiveStep(t *testing.T) {
	cfg := &config.WorkflowConfig{
		ID:          ids.New(ids.TagWorkflow),
		EntryStepID: "a",
		Steps: []config.StepConfig{
			{ID: "a", StepType: config.StepTypeAnnotation},
			{ID: "b", StepType: config.StepTypeAnnotation},
		},
	}
	configs := fakeConfigStore{byID: map[string]*config.WorkflowConfig{"wf1": cfg}}
	events := eventstore.NewMemoryStore()
	registry := executor.NewRegistry(executor.NewBuiltinHandlerRegistry(), nil)
	o := New(configs, fakeAnnotationRepo{}, events, registry, executor.NewBuiltinHandlerRegistry(), nil)

	taskID := "task_3"
	_, err := events.Append(context.Background(), taskID, 0, []eventstore.Event{{Kind: eventstore.EventStepActivated, StepID: "a"}})
	require.NoError(t, err)

	_, err = o.Process(context.Background(), taskID, "wf1", Trigger{StepID: "b"}, 0)
	var notActive *StepNotActive
	require.ErrorAs(t, err, &notActive)
}
