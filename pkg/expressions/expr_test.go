package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow/pkg/schema"
)

func TestExprEngine_Name(t *testing.T) {
	assert.Equal(t, "expr", NewExprEngine().Name())
}

func TestExprEngine_Empty(t *testing.T) {
	_, err := NewExprEngine().Evaluate(context.Background(), "", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestExprEngine_Comparisons(t *testing.T) {
	e := NewExprEngine()
	data := map[string]any{"count": 5, "name": "build"}

	cases := []struct {
		expression string
		want       bool
	}{
		{"count == 5", true},
		{"count != 5", false},
		{"count > 3", true},
		{"count < 3", false},
		{`name == "build"`, true},
	}
	for _, tc := range cases {
		out, err := e.Evaluate(context.Background(), tc.expression, data)
		require.NoError(t, err, tc.expression)
		assert.Equal(t, tc.want, out, tc.expression)
	}
}

func TestExprEngine_BooleanCombinators(t *testing.T) {
	e := NewExprEngine()
	data := map[string]any{"a": true, "b": false}

	out, err := e.Evaluate(context.Background(), "a and not b", data)
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(context.Background(), "b or a", data)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestExprEngine_MembershipAndLen(t *testing.T) {
	e := NewExprEngine()
	data := map[string]any{
		"shared": map[string]any{"files": []any{"a.go", "b.go"}},
	}

	out, err := e.Evaluate(context.Background(), `"a.go" in shared.files`, data)
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(context.Background(), "len(shared.files) > 0", data)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestExprEngine_DottedPathIntoStepOutput(t *testing.T) {
	e := NewExprEngine()
	data := map[string]any{
		"steps": map[string]any{
			"fetch": map[string]any{
				"output": map[string]any{"status_code": 200},
			},
		},
	}

	out, err := e.Evaluate(context.Background(), "steps.fetch.output.status_code == 200", data)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestExprEngine_UndefinedVariableIsNil(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), "missing == nil", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestExprEngine_CompileError(t *testing.T) {
	_, err := NewExprEngine().Evaluate(context.Background(), "a ???", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestExprEngine_CacheIsDeterministic(t *testing.T) {
	e := NewExprEngine()
	data := map[string]any{"x": 1}

	for i := 0; i < 10; i++ {
		out, err := e.Evaluate(context.Background(), "x == 1", data)
		require.NoError(t, err)
		assert.Equal(t, true, out)
	}
	assert.Len(t, e.cache, 1)
}
