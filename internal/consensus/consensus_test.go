package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCohensKappaIdenticalVectorsYieldsOne(t *testing.T) {
	a := []string{"cat", "dog", "cat", "bird"}
	k, err := CohensKappa(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, k, 1e-9)
}

func TestCohensKappaLengthMismatch(t *testing.T) {
	_, err := CohensKappa([]string{"a"}, []string{"a", "b"})
	var lm *LengthMismatchError
	require.ErrorAs(t, err, &lm)
}

func TestCohensKappaInvertedLabelsIsNegative(t *testing.T) {
	a := []string{"cat", "cat", "dog", "dog"}
	b := []string{"dog", "dog", "cat", "cat"}
	k, err := CohensKappa(a, b)
	require.NoError(t, err)
	assert.Less(t, k, 0.0)
}

func TestCohensKappaEmptyInput(t *testing.T) {
	_, err := CohensKappa(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestWeightedKappaIdenticalRanksYieldsOne(t *testing.T) {
	a := []int{0, 1, 2, 1}
	k, err := WeightedKappa(a, a, 3)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, k, 1e-9)
}

func TestKrippendorffAlphaAllEqualYieldsOne(t *testing.T) {
	v := 1.0
	table := [][]*float64{
		{&v, &v},
		{&v, &v},
		{&v, &v},
	}
	a, err := KrippendorffAlpha(table, LevelNominal)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, a, 1e-9)
}

func TestKrippendorffAlphaToleratesMissingCells(t *testing.T) {
	a, b, c := 1.0, 2.0, 1.0
	table := [][]*float64{
		{&a, &b, nil},
		{&c, nil, &b},
		{&a, &a, &a},
	}
	alpha, err := KrippendorffAlpha(table, LevelNominal)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, alpha, -1.0)
	assert.LessOrEqual(t, alpha, 1.0)
}

func TestKrippendorffAlphaEmptyInput(t *testing.T) {
	_, err := KrippendorffAlpha(nil, LevelNominal)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestSpanIoUIdenticalIsOne(t *testing.T) {
	spans := []Interval{{Start: 0, End: 10}}
	iou, err := SpanIoU(spans, spans)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, iou, 1e-9)
}

func TestSpanIoUMergesOverlaps(t *testing.T) {
	a := []Interval{{Start: 0, End: 5}, {Start: 4, End: 10}}
	b := []Interval{{Start: 0, End: 10}}
	iou, err := SpanIoU(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, iou, 1e-9)
}

func TestBoxIoUPartialOverlap(t *testing.T) {
	a := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	b := Box{X1: 5, Y1: 5, X2: 15, Y2: 15}
	iou, err := BoxIoU(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 25.0/175.0, iou, 1e-9)
}

func TestKappaBand(t *testing.T) {
	assert.Equal(t, "almost perfect", KappaBand(0.9))
	assert.Equal(t, "poor", KappaBand(-0.1))
}

func TestAlphaBand(t *testing.T) {
	assert.Equal(t, "reliable", AlphaBand(0.85))
	assert.Equal(t, "unreliable", AlphaBand(0.5))
}
