package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudshipai/loom/internal/config"
)

func minAnn(n int) config.StepSettings {
	return config.StepSettings{MinAnnotators: &n}
}

func TestValidateAcceptsSimpleWorkflow(t *testing.T) {
	cfg := &config.WorkflowConfig{
		EntryStepID: "a",
		ExitStepIDs: []string{config.SinkComplete},
		Steps: []config.StepConfig{
			{ID: "a", StepType: config.StepTypeAnnotation, Settings: minAnn(1)},
		},
		Transitions: []config.TransitionConfig{
			{From: "a", To: config.SinkComplete, Condition: config.TransitionCondition{Type: config.ConditionOnComplete}},
		},
	}
	res := Validate(cfg, 0)
	assert.True(t, res.OK(), "%v", res.Errors)
}

func TestValidateUnresolvedReferenceSuggestsAlternative(t *testing.T) {
	cfg := &config.WorkflowConfig{
		EntryStepID: "annotate",
		ExitStepIDs: []string{config.SinkComplete},
		Steps: []config.StepConfig{
			{ID: "annotate", StepType: config.StepTypeAnnotation},
		},
		Transitions: []config.TransitionConfig{
			{From: "annotate", To: "anotate", Condition: config.TransitionCondition{Type: config.ConditionAlways}},
		},
	}
	res := Validate(cfg, 0)
	require.False(t, res.OK())
	found := false
	for _, iss := range res.Errors {
		if iss.Kind == IssueUnresolvedReference {
			found = true
			assert.Equal(t, "annotate", iss.Suggestion)
		}
	}
	assert.True(t, found)
}

func TestValidateRejectsNonRetryCycle(t *testing.T) {
	cfg := &config.WorkflowConfig{
		EntryStepID: "a",
		ExitStepIDs: []string{config.SinkComplete},
		Steps: []config.StepConfig{
			{ID: "a"}, {ID: "b"},
		},
		Transitions: []config.TransitionConfig{
			{From: "a", To: "b", Condition: config.TransitionCondition{Type: config.ConditionAlways}},
			{From: "b", To: "a", Condition: config.TransitionCondition{Type: config.ConditionAlways}},
		},
	}
	res := Validate(cfg, 0)
	require.False(t, res.OK())
	assert.Equal(t, IssueCycle, res.Errors[0].Kind)
}

func TestValidateAllowsBoundedRetryCycle(t *testing.T) {
	maxRetries := 3
	cfg := &config.WorkflowConfig{
		EntryStepID: "a",
		ExitStepIDs: []string{config.SinkComplete},
		Steps: []config.StepConfig{
			{ID: "a", Settings: config.StepSettings{MaxRetries: &maxRetries}},
			{ID: "b"},
		},
		Transitions: []config.TransitionConfig{
			{From: "a", To: "b", Condition: config.TransitionCondition{Type: config.ConditionAlways}},
			{From: "b", To: "a", Condition: config.TransitionCondition{Type: config.ConditionAlways}, Retry: true},
			{From: "b", To: config.SinkComplete, Condition: config.TransitionCondition{Type: config.ConditionOnComplete}},
		},
	}
	res := Validate(cfg, 0)
	for _, iss := range res.Errors {
		assert.NotEqual(t, IssueCycle, iss.Kind)
	}
}

func TestValidateUnreachableStep(t *testing.T) {
	cfg := &config.WorkflowConfig{
		EntryStepID: "a",
		ExitStepIDs: []string{config.SinkComplete},
		Steps: []config.StepConfig{
			{ID: "a"}, {ID: "orphan"},
		},
		Transitions: []config.TransitionConfig{
			{From: "a", To: config.SinkComplete, Condition: config.TransitionCondition{Type: config.ConditionOnComplete}},
		},
	}
	res := Validate(cfg, 0)
	require.False(t, res.OK())
	var found bool
	for _, iss := range res.Errors {
		if iss.Kind == IssueUnreachableStep {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateBoundsChecks(t *testing.T) {
	badTimeout := -1
	cfg := &config.WorkflowConfig{
		EntryStepID: "a",
		ExitStepIDs: []string{config.SinkComplete},
		Steps: []config.StepConfig{
			{ID: "a", Settings: config.StepSettings{TimeoutSeconds: &badTimeout}},
		},
		Transitions: []config.TransitionConfig{
			{From: "a", To: config.SinkComplete, Condition: config.TransitionCondition{Type: config.ConditionOnComplete}},
		},
	}
	res := Validate(cfg, 0)
	require.False(t, res.OK())
	assert.Equal(t, IssueOutOfBounds, res.Errors[0].Kind)
}

func TestValidateMaxRecursionDepth(t *testing.T) {
	cfg := &config.WorkflowConfig{
		EntryStepID: "a",
		ExitStepIDs: []string{config.SinkComplete},
		Steps:       []config.StepConfig{{ID: "a"}},
		Transitions: []config.TransitionConfig{
			{From: "a", To: config.SinkComplete, Condition: config.TransitionCondition{Type: config.ConditionOnComplete}},
		},
	}
	res := Validate(cfg, config.MaxSubWorkflowDepth)
	require.False(t, res.OK())
	assert.Equal(t, IssueMaxRecursionDepth, res.Errors[len(res.Errors)-1].Kind)
}
