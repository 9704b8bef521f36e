package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow/pkg/schema"
)

func noop() schema.Executable {
	return schema.ExecFunc(func(ctx context.Context, in schema.ExecInput) (any, error) {
		return nil, nil
	})
}

func TestBuilder_EmptyID(t *testing.T) {
	_, err := NewBuilder("wf").AddStep("", noop()).Build()
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestBuilder_NilExecutable(t *testing.T) {
	_, err := NewBuilder("wf").AddStep("a", nil).Build()
	require.Error(t, err)
	ferr := err.(*schema.FlowError)
	assert.Equal(t, schema.ErrCodeValidation, ferr.Code)
	assert.Equal(t, "a", ferr.StepID)
}

func TestBuilder_DuplicateStep(t *testing.T) {
	_, err := NewBuilder("wf").
		AddStep("a", noop()).
		AddStep("a", noop()).
		Build()
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeDuplicateStep, err.(*schema.FlowError).Code)
}

func TestBuilder_UnknownDependency(t *testing.T) {
	_, err := NewBuilder("wf").
		AddStep("a", noop(), WithDependsOn("ghost")).
		Build()
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeUnknownDependency, err.(*schema.FlowError).Code)
}

func TestBuilder_Cycle(t *testing.T) {
	_, err := NewBuilder("wf").
		AddStep("a", noop(), WithDependsOn("b")).
		AddStep("b", noop(), WithDependsOn("a")).
		Build()
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeCycleDetected, err.(*schema.FlowError).Code)
}

func TestBuilder_FirstErrorSticks(t *testing.T) {
	_, err := NewBuilder("wf").
		AddStep("", noop()).
		AddStep("fine", noop()).
		Build()
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestBuilder_NegativeRetry(t *testing.T) {
	_, err := NewBuilder("wf").
		AddStep("a", noop(), WithRetry(-1, time.Second)).
		Build()
	require.Error(t, err)
}

func TestBuilder_DiamondBatches(t *testing.T) {
	wf, err := NewBuilder("deploy").
		AddStep("a", noop()).
		AddStep("b", noop(), WithDependsOn("a")).
		AddStep("c", noop(), WithDependsOn("a")).
		AddStep("d", noop(), WithDependsOn("b", "c")).
		Build()
	require.NoError(t, err)

	batches := wf.Batches()
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"a"}, batches[0])
	assert.ElementsMatch(t, []string{"b", "c"}, batches[1])
	assert.Equal(t, []string{"d"}, batches[2])
}

func TestBuilder_BatchesAreCopies(t *testing.T) {
	wf, err := NewBuilder("wf").AddStep("a", noop()).Build()
	require.NoError(t, err)

	wf.Batches()[0][0] = "tampered"
	assert.Equal(t, []string{"a"}, wf.Batches()[0])
}

func TestBuilder_ConfigDefaultsApplied(t *testing.T) {
	wf, err := NewBuilder("wf").AddStep("a", noop()).Build()
	require.NoError(t, err)

	cfg := wf.Config()
	assert.Equal(t, schema.DefaultMaxParallelSteps, cfg.MaxParallelSteps)
	assert.Equal(t, schema.DefaultStepTimeout, cfg.DefaultTimeout)
	assert.Equal(t, schema.DefaultRetryDelay, cfg.DefaultRetryDelay)
}

func TestBuilder_DefaultRetryCountInherited(t *testing.T) {
	wf, err := NewBuilder("wf").
		WithConfig(schema.Config{DefaultRetryCount: 2}).
		AddStep("inherits", noop()).
		AddStep("explicit", noop(), WithRetry(0, 0)).
		Build()
	require.NoError(t, err)

	byID := map[string]schema.Step{}
	for _, s := range wf.steps {
		byID[s.ID] = s
	}
	assert.Equal(t, 2, byID["inherits"].RetryCount)
	assert.Equal(t, 0, byID["explicit"].RetryCount)
}
