package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudshipai/loom/internal/state"
)

func TestAppendOptimisticConcurrency(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	v, err := store.Append(context.Background(), "t1", 0, []Event{{Kind: EventStepActivated, StepID: "annotate", At: now}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	_, err = store.Append(context.Background(), "t1", 0, []Event{{Kind: EventStepActivated, StepID: "annotate", At: now}})
	var conflict *VersionConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, uint64(1), conflict.Have)
	assert.Equal(t, uint64(0), conflict.Expected)
}

func TestAppendBatchIsAtomic(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	v, err := store.Append(context.Background(), "t1", 0, []Event{
		{Kind: EventStepActivated, StepID: "annotate", At: now},
		{Kind: EventStepCompleted, StepID: "annotate", At: now, Result: &state.StepResult{Kind: state.ResultSubmitted}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)

	events, err := store.Load(context.Background(), "t1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].Sequence)
	assert.Equal(t, uint64(2), events[1].Sequence)
}

func TestReplayRebuildsFromScratch(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	_, err := store.Append(context.Background(), "t1", 0, []Event{
		{Kind: EventStepActivated, StepID: "annotate", At: now},
		{Kind: EventStepCompleted, StepID: "annotate", At: now, Result: &state.StepResult{Kind: state.ResultSubmitted}},
		{Kind: EventTransitionTaken, TransitionFrom: "annotate", TransitionTo: "review", At: now},
		{Kind: EventStepActivated, StepID: "review", At: now},
	})
	require.NoError(t, err)

	mgr, seq, err := Replay(context.Background(), store, "t1", "wf1", "annotate", []string{"annotate", "review"}, false, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seq)
	assert.Equal(t, "review", mgr.CurrentStepID)
	assert.Equal(t, state.PhaseCompleted, mgr.Steps["annotate"].Phase)
	assert.Equal(t, state.PhaseActive, mgr.Steps["review"].Phase)
}

func TestReplayFromSnapshotSkipsOlderEvents(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	_, err := store.Append(context.Background(), "t1", 0, []Event{
		{Kind: EventStepActivated, StepID: "annotate", At: now},
		{Kind: EventStepCompleted, StepID: "annotate", At: now, Result: &state.StepResult{Kind: state.ResultSubmitted}},
	})
	require.NoError(t, err)

	mgr, _, err := Replay(context.Background(), store, "t1", "wf1", "annotate", []string{"annotate"}, false, 0)
	require.NoError(t, err)
	snap := mgr.ToSnapshot()
	require.NoError(t, store.PutSnapshot(context.Background(), "t1", Event{TaskID: "t1", Sequence: 2, Kind: EventSnapshot, Snapshot: &snap}))

	_, err = store.Append(context.Background(), "t1", 2, []Event{
		{Kind: EventTransitionTaken, TransitionFrom: "annotate", TransitionTo: "_complete", At: now},
	})
	require.NoError(t, err)

	mgr2, seq, err := Replay(context.Background(), store, "t1", "wf1", "annotate", []string{"annotate"}, false, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)
	assert.Len(t, mgr2.History, 1)
}

func TestShouldSnapshotCadence(t *testing.T) {
	assert.False(t, ShouldSnapshot(0))
	assert.False(t, ShouldSnapshot(49))
	assert.True(t, ShouldSnapshot(50))
	assert.True(t, ShouldSnapshot(100))
	assert.False(t, ShouldSnapshot(101))
}
