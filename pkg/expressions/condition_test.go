package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow/pkg/schema"
)

func TestShouldRun_EmptyConditionAlwaysEligible(t *testing.T) {
	c := NewConditionEvaluator(NewExprEngine())

	ok, err := c.ShouldRun(context.Background(), "", nil)
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestShouldRun_TrueAndFalse(t *testing.T) {
	c := NewConditionEvaluator(NewExprEngine())
	scope := map[string]any{"shared": map[string]any{"n": 2}}

	ok, err := c.ShouldRun(context.Background(), "shared.n > 1", scope)
	assert.True(t, ok)
	assert.NoError(t, err)

	ok, err = c.ShouldRun(context.Background(), "shared.n > 5", scope)
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestShouldRun_ErrorFailsClosed(t *testing.T) {
	c := NewConditionEvaluator(NewExprEngine())

	ok, err := c.ShouldRun(context.Background(), "broken ???", nil)
	assert.False(t, ok)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeCondition, err.(*schema.FlowError).Code)
}

func TestShouldRun_NonBoolFailsClosed(t *testing.T) {
	c := NewConditionEvaluator(NewExprEngine())

	ok, err := c.ShouldRun(context.Background(), "1 + 1", nil)
	assert.False(t, ok)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeCondition, err.(*schema.FlowError).Code)
	assert.Contains(t, err.(*schema.FlowError).Message, "want bool")
}

func TestShouldRun_Deterministic(t *testing.T) {
	c := NewConditionEvaluator(NewExprEngine())
	scope := BuildScope(
		map[string]any{"env": "prod"},
		map[string]*schema.StepResult{
			"a": {StepID: "a", Status: schema.StepStatusSuccess, Attempts: 1},
		},
	)

	for i := 0; i < 25; i++ {
		ok, err := c.ShouldRun(context.Background(), `a.success and shared.env == "prod"`, scope)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
