package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctx() MapContext {
	return MapContext{
		TaskContext: map[string]interface{}{
			"annotations": map[string]interface{}{"count": 3.0},
			"priority":    "high",
		},
		StepResults: map[string]map[string]interface{}{
			"annotate1": {"agreement": 0.82, "label": "cat"},
		},
	}
}

func TestEvalComparisons(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want bool
	}{
		{"numeric gt", "annotations.count > 2", true},
		{"numeric lt false", "annotations.count < 2", false},
		{"string eq", `priority == "high"`, true},
		{"string neq", `priority != "low"`, true},
		{"has true", "has(priority)", true},
		{"has false", "has(nonexistent)", false},
		{"exists true", "exists(annotate1)", true},
		{"exists false", "exists(annotate2)", false},
		{"result field", "result(annotate1).agreement >= 0.8", true},
		{"and", "has(priority) && annotations.count > 2", true},
		{"or", "has(nonexistent) || annotations.count > 2", true},
		{"not", "!has(nonexistent)", true},
		{"parens", `(priority == "high") && (annotations.count == 3)`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, err := Parse(tc.src)
			require.NoError(t, err)
			got, err := e.EvalBool(ctx())
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse("annotations.count >")
	require.Error(t, err)
	var ce *ConditionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrParse, ce.Kind)
}

func TestEvalUnknownField(t *testing.T) {
	e, err := Parse("nonexistent == 1")
	require.NoError(t, err)
	_, err = e.Eval(ctx())
	require.Error(t, err)
	var ce *ConditionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrUnknownField, ce.Kind)
}

func TestEvalTypeMismatch(t *testing.T) {
	e, err := Parse(`annotations.count == "three"`)
	require.NoError(t, err)
	_, err = e.Eval(ctx())
	require.Error(t, err)
	var ce *ConditionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrType, ce.Kind)
}
