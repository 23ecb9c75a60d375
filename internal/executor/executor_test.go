package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudshipai/loom/internal/config"
	"github.com/cloudshipai/loom/internal/state"
	"github.com/cloudshipai/loom/pkg/ids"
	"github.com/cloudshipai/loom/pkg/models"
)

func annotation(user ids.ID, data map[string]interface{}) models.Annotation {
	return models.Annotation{ID: ids.New(ids.TagAnnotation), UserID: user, Data: data}
}

func TestAnnotationExecutorWaitsThenCompletes(t *testing.T) {
	e := &AnnotationExecutor{}
	minAnn := 2
	step := config.StepConfig{ID: "a", Settings: config.StepSettings{MinAnnotators: &minAnn}}

	res, err := e.Execute(context.Background(), Ctx{StepConfig: step, Annotations: []models.Annotation{annotation(ids.New(ids.TagUser), nil)}})
	require.NoError(t, err)
	assert.Equal(t, ResultWaiting, res.Kind)

	u1, u2 := ids.New(ids.TagUser), ids.New(ids.TagUser)
	res, err = e.Execute(context.Background(), Ctx{StepConfig: step, Annotations: []models.Annotation{annotation(u1, nil), annotation(u2, nil)}})
	require.NoError(t, err)
	assert.Equal(t, ResultComplete, res.Kind)
	assert.Equal(t, state.ResultSubmitted, res.Step.Kind)
	assert.Len(t, res.Step.AnnotationIDs, 2)
}

func TestReviewExecutorApprovedAndRejected(t *testing.T) {
	e := &ReviewExecutor{}
	step := config.StepConfig{ID: "r"}

	res, err := e.Execute(context.Background(), Ctx{StepConfig: step})
	require.NoError(t, err)
	assert.Equal(t, ResultWaiting, res.Kind)

	approved := models.Annotation{Decision: models.DecisionApproved}
	res, err = e.Execute(context.Background(), Ctx{StepConfig: step, Annotations: []models.Annotation{approved}})
	require.NoError(t, err)
	assert.Equal(t, state.ResultApproved, res.Step.Kind)

	rejected := models.Annotation{Decision: models.DecisionRejected}
	res, err = e.Execute(context.Background(), Ctx{StepConfig: step, Annotations: []models.Annotation{rejected}})
	require.NoError(t, err)
	assert.Equal(t, state.ResultRejected, res.Step.Kind)
	assert.Equal(t, "No reason provided", res.Step.Reason)
}

func TestAdjudicationExecutorRequiresRole(t *testing.T) {
	e := &AdjudicationExecutor{}
	step := config.StepConfig{ID: "adj"}
	user := models.User{Roles: []string{"annotator"}}

	res, err := e.Execute(context.Background(), Ctx{StepConfig: step, User: &user})
	require.NoError(t, err)
	assert.Equal(t, ResultFailed, res.Kind)
	assert.False(t, res.Retryable)
}

func TestAdjudicationExecutorExtractsAgreement(t *testing.T) {
	e := &AdjudicationExecutor{}
	step := config.StepConfig{ID: "adj", Settings: config.StepSettings{Agreement: &config.AgreementSettings{Metric: "cohens_kappa"}}}
	adjudicator := models.User{Roles: []string{"adjudicator"}}
	adj := models.Annotation{Adjudication: true, Data: map[string]interface{}{"agreement": 0.91}}

	res, err := e.Execute(context.Background(), Ctx{StepConfig: step, User: &adjudicator, Annotations: []models.Annotation{adj}})
	require.NoError(t, err)
	assert.Equal(t, ResultComplete, res.Kind)
	assert.InDelta(t, 0.91, res.Step.Agreement, 1e-9)
	assert.Equal(t, "cohens_kappa", res.Step.Metric)
}

func TestAutoProcessExecutorSelectMajority(t *testing.T) {
	handlers := NewBuiltinHandlerRegistry()
	e := &AutoProcessExecutor{Handlers: handlers}
	step := config.StepConfig{ID: "auto", Settings: config.StepSettings{Handler: "select_majority"}}

	annotations := []models.Annotation{
		{Data: map[string]interface{}{"label": "X"}},
		{Data: map[string]interface{}{"label": "X"}},
		{Data: map[string]interface{}{"label": "Y"}},
	}
	res, err := e.Execute(context.Background(), Ctx{StepConfig: step, Annotations: annotations})
	require.NoError(t, err)
	require.Equal(t, ResultComplete, res.Kind)
	assert.Equal(t, "X", res.Step.Output["label"])
	assert.Equal(t, 2, res.Step.Output["support"])
}

func TestAutoProcessExecutorHandlerNotFound(t *testing.T) {
	handlers := NewHandlerRegistry()
	e := &AutoProcessExecutor{Handlers: handlers}
	step := config.StepConfig{ID: "auto", Settings: config.StepSettings{Handler: "does_not_exist"}}

	_, err := e.Execute(context.Background(), Ctx{StepConfig: step})
	var notFound *HandlerNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestAutoProcessExecutorPermanentErrorNotRetried(t *testing.T) {
	handlers := NewHandlerRegistry()
	calls := 0
	handlers.Register("always_permanent", HandlerFunc(func(ctx context.Context, in HandlerInput) (map[string]interface{}, error) {
		calls++
		return nil, &PermanentError{Cause: assertErr("boom")}
	}))
	e := &AutoProcessExecutor{Handlers: handlers}
	maxRetries := 3
	step := config.StepConfig{ID: "auto", Settings: config.StepSettings{Handler: "always_permanent", MaxRetries: &maxRetries}}

	res, err := e.Execute(context.Background(), Ctx{StepConfig: step})
	require.NoError(t, err)
	assert.Equal(t, ResultFailed, res.Kind)
	assert.False(t, res.Retryable)
	assert.Equal(t, 1, calls)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestConditionalExecutorBranches(t *testing.T) {
	e := &ConditionalExecutor{}
	step := config.StepConfig{ID: "cond", Settings: config.StepSettings{
		Condition:   "priority == \"high\"",
		TrueBranch:  "escalate",
		FalseBranch: "normal",
	}}

	res, err := e.Execute(context.Background(), Ctx{StepConfig: step, TaskContext: map[string]interface{}{"priority": "high"}})
	require.NoError(t, err)
	assert.Equal(t, "escalate", res.Step.Branch)

	res, err = e.Execute(context.Background(), Ctx{StepConfig: step, TaskContext: map[string]interface{}{"priority": "low"}})
	require.NoError(t, err)
	assert.Equal(t, "normal", res.Step.Branch)
}

func TestConditionalExecutorDefaultsBranchesToSinks(t *testing.T) {
	e := &ConditionalExecutor{}
	step := config.StepConfig{ID: "cond", Settings: config.StepSettings{Condition: "has(x)"}}

	res, err := e.Execute(context.Background(), Ctx{StepConfig: step, TaskContext: map[string]interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, "_failed", res.Step.Branch)
}

type stubRunner struct {
	done   bool
	output map[string]interface{}
	err    error
}

func (s stubRunner) Start(ctx context.Context, childTaskID, subWorkflowID string, input map[string]interface{}, depth int) (bool, map[string]interface{}, error) {
	return s.done, s.output, s.err
}

func TestSubWorkflowExecutorWaitsThenCompletesWithMapping(t *testing.T) {
	step := config.StepConfig{ID: "sub", Settings: config.StepSettings{
		SubWorkflowID: "wf_child",
		OutputMapping: map[string]string{"result.label": "label"},
	}}

	waiting := &SubWorkflowExecutor{Runner: stubRunner{done: false}}
	res, err := waiting.Execute(context.Background(), Ctx{StepConfig: step, TaskID: "task_1", Depth: 0})
	require.NoError(t, err)
	assert.Equal(t, ResultWaiting, res.Kind)
	require.NotNil(t, res.ContextDelta)

	complete := &SubWorkflowExecutor{Runner: stubRunner{done: true, output: map[string]interface{}{"label": "X"}}}
	res, err = complete.Execute(context.Background(), Ctx{StepConfig: step, TaskID: "task_1", Depth: 0})
	require.NoError(t, err)
	assert.Equal(t, ResultComplete, res.Kind)
	resultMap, ok := res.Step.Output["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "X", resultMap["label"])
}

func TestSubWorkflowExecutorDepthGuard(t *testing.T) {
	step := config.StepConfig{ID: "sub", Settings: config.StepSettings{SubWorkflowID: "wf_child"}}
	e := &SubWorkflowExecutor{Runner: stubRunner{done: true}}

	_, err := e.Execute(context.Background(), Ctx{StepConfig: step, TaskID: "task_1", Depth: config.MaxSubWorkflowDepth})
	var maxDepth *MaxRecursionDepthError
	require.ErrorAs(t, err, &maxDepth)
}
