package goals

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudshipai/loom/pkg/ids"
	"github.com/cloudshipai/loom/pkg/models"
)

type fakeSource struct {
	values map[string][]float64
}

func (s fakeSource) MatchingValues(ctx context.Context, projectID string, c models.Contribution) ([]float64, error) {
	return s.values[c.StepID], nil
}

type fakeGoalStore struct {
	goals map[string]models.Goal
}

func (s fakeGoalStore) Get(ctx context.Context, goalID string) (models.Goal, bool, error) {
	g, ok := s.goals[goalID]
	return g, ok, nil
}

func TestEvaluateVolumeSumsContributions(t *testing.T) {
	src := fakeSource{values: map[string][]float64{"annotate": {1, 1, 1}}}
	e := &Evaluator{Source: src}
	goal := models.Goal{Kind: models.GoalVolume, Contributions: []models.Contribution{
		{StepID: "annotate", Weight: 1, Aggregation: models.AggregationCount},
	}}
	got, err := e.Evaluate(context.Background(), goal)
	require.NoError(t, err)
	assert.Equal(t, float64(3), got)
}

func TestEvaluateQualityWeightedAverage(t *testing.T) {
	src := fakeSource{values: map[string][]float64{
		"review": {0.8, 1.0},
		"adjudicate": {0.6},
	}}
	e := &Evaluator{Source: src}
	goal := models.Goal{Kind: models.GoalQuality, Contributions: []models.Contribution{
		{StepID: "review", Weight: 2, Aggregation: models.AggregationAvg},
		{StepID: "adjudicate", Weight: 1, Aggregation: models.AggregationAvg},
	}}
	got, err := e.Evaluate(context.Background(), goal)
	require.NoError(t, err)
	// (2*0.9 + 1*0.6) / 3 = 0.8
	assert.InDelta(t, 0.8, got, 1e-9)
}

func TestEvaluateCompositeWeightedMeanOverChildren(t *testing.T) {
	childA := ids.New(ids.TagGoal)
	childB := ids.New(ids.TagGoal)
	store := fakeGoalStore{goals: map[string]models.Goal{
		childA.String(): {Current: 10},
		childB.String(): {Current: 20},
	}}
	e := &Evaluator{Goals: store}
	goal := models.Goal{
		Kind:         models.GoalComposite,
		ChildGoalIDs: []ids.ID{childA, childB},
		Contributions: []models.Contribution{
			{Weight: 1},
			{Weight: 1},
		},
	}
	got, err := e.Evaluate(context.Background(), goal)
	require.NoError(t, err)
	assert.Equal(t, 15.0, got)
}

func TestEvaluateManualIsNoOp(t *testing.T) {
	e := &Evaluator{}
	goal := models.Goal{Kind: models.GoalManual, Current: 42}
	got, err := e.Evaluate(context.Background(), goal)
	require.NoError(t, err)
	assert.Equal(t, 42.0, got)
}

type fakeGoalRepo struct {
	mu    sync.Mutex
	goals map[string]models.Goal
	calls int
}

func (r *fakeGoalRepo) Get(ctx context.Context, goalID string) (models.Goal, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goals[goalID]
	return g, ok, nil
}

func (r *fakeGoalRepo) UpdateCurrent(ctx context.Context, goalID string, current float64, completed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	g := r.goals[goalID]
	g.Current = current
	g.Completed = completed
	r.goals[goalID] = g
	return nil
}

type fakeActions struct {
	mu    sync.Mutex
	fired []CompletionAction
}

func (a *fakeActions) Fire(ctx context.Context, goal models.Goal, action CompletionAction) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fired = append(a.fired, action)
	return nil
}

func TestTrackerDebouncesBurstIntoSingleEvaluation(t *testing.T) {
	goalID := ids.New(ids.TagGoal).String()
	repo := &fakeGoalRepo{goals: map[string]models.Goal{
		goalID: {Kind: models.GoalVolume, Target: 1, CompletionAction: string(ActionNotify), Contributions: []models.Contribution{
			{StepID: "annotate", Weight: 1, Aggregation: models.AggregationCount},
		}},
	}}
	src := fakeSource{values: map[string][]float64{"annotate": {1}}}
	eval := &Evaluator{Source: src}
	actions := &fakeActions{}
	tr := NewTracker(eval, repo, actions)
	tr.Debounce = 20 * time.Millisecond
	tr.MaxDebounce = 100 * time.Millisecond

	tr.OnEvent(goalID)
	tr.OnEvent(goalID)
	tr.OnEvent(goalID)

	time.Sleep(80 * time.Millisecond)

	repo.mu.Lock()
	calls := repo.calls
	repo.mu.Unlock()
	assert.Equal(t, 1, calls)

	actions.mu.Lock()
	defer actions.mu.Unlock()
	assert.Equal(t, []CompletionAction{ActionNotify}, actions.fired)
}

func TestGoalOnTrackProjection(t *testing.T) {
	g := models.Goal{Kind: models.GoalDeadline, Target: 100, Current: 50, DeadlineUnix: 100}
	assert.True(t, g.OnTrack(50, 0))
	slow := models.Goal{Kind: models.GoalDeadline, Target: 100, Current: 10, DeadlineUnix: 100}
	assert.False(t, slow.OnTrack(50, 0))
}
