package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow/pkg/schema"
)

func results(pairs map[string]*schema.StepResult) map[string]*schema.StepResult {
	return pairs
}

func TestAggregate_AllSucceeded(t *testing.T) {
	start := time.Now().UTC()
	end := start.Add(time.Second)

	res := Aggregate("run-1", results(map[string]*schema.StepResult{
		"a": {StepID: "a", Status: schema.StepStatusSuccess},
		"b": {StepID: "b", Status: schema.StepStatusSuccess},
	}), []string{"a", "b"}, false, start, end)

	assert.Equal(t, schema.WorkflowStatusCompleted, res.Status)
	assert.Equal(t, 1.0, res.SuccessRate)
	assert.Equal(t, 2, res.StepsCompleted)
	assert.Equal(t, 2, res.TotalSteps)
	assert.Empty(t, res.Errors)
	assert.Equal(t, time.Second, res.Duration)
}

func TestAggregate_PartialOnConditionSkip(t *testing.T) {
	res := Aggregate("run-1", results(map[string]*schema.StepResult{
		"a": {StepID: "a", Status: schema.StepStatusSuccess},
		"b": {StepID: "b", Status: schema.StepStatusSkipped, SkipReason: "condition evaluated to false"},
	}), []string{"a", "b"}, false, time.Now(), time.Now())

	assert.Equal(t, schema.WorkflowStatusPartial, res.Status)
	assert.Equal(t, 0.5, res.SuccessRate)
}

func TestAggregate_FailedBeatsPartial(t *testing.T) {
	res := Aggregate("run-1", results(map[string]*schema.StepResult{
		"a": {StepID: "a", Status: schema.StepStatusSuccess},
		"b": {StepID: "b", Status: schema.StepStatusSkipped, SkipReason: "condition evaluated to false"},
		"c": {StepID: "c", Status: schema.StepStatusFailed, Error: schema.NewError(schema.ErrCodeExecution, "boom").WithStep("c")},
	}), []string{"a", "b", "c"}, false, time.Now(), time.Now())

	assert.Equal(t, schema.WorkflowStatusFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "c", res.Errors[0].StepID)
}

func TestAggregate_AbortSkipsExcludedFromRate(t *testing.T) {
	res := Aggregate("run-1", results(map[string]*schema.StepResult{
		"a": {StepID: "a", Status: schema.StepStatusFailed, Error: schema.NewError(schema.ErrCodeExecution, "boom")},
		"b": {StepID: "b", Status: schema.StepStatusSkipped, SkipReason: schema.SkipReasonUpstreamAbort},
		"c": {StepID: "c", Status: schema.StepStatusSkipped, SkipReason: schema.SkipReasonUpstreamAbort},
	}), []string{"a", "b", "c"}, true, time.Now(), time.Now())

	assert.Equal(t, schema.WorkflowStatusFailed, res.Status)
	// Only "a" is considered; b and c never got a chance to run.
	assert.Equal(t, 0.0, res.SuccessRate)
	assert.Equal(t, 3, res.TotalSteps)
}

func TestAggregate_AllConditionSkipped(t *testing.T) {
	res := Aggregate("run-1", results(map[string]*schema.StepResult{
		"a": {StepID: "a", Status: schema.StepStatusSkipped, SkipReason: "condition evaluated to false"},
	}), []string{"a"}, false, time.Now(), time.Now())

	// No successes and no failures: the run completed, it just had
	// nothing eligible to do.
	assert.Equal(t, schema.WorkflowStatusCompleted, res.Status)
	assert.Equal(t, 0.0, res.SuccessRate)
}

func TestAggregate_ErrorsInDeclarationOrder(t *testing.T) {
	res := Aggregate("run-1", results(map[string]*schema.StepResult{
		"z": {StepID: "z", Status: schema.StepStatusFailed, Error: schema.NewError(schema.ErrCodeExecution, "z failed")},
		"a": {StepID: "a", Status: schema.StepStatusFailed, Error: schema.NewError(schema.ErrCodeExecution, "a failed")},
	}), []string{"z", "a"}, false, time.Now(), time.Now())

	require.Len(t, res.Errors, 2)
	assert.Equal(t, "z", res.Errors[0].StepID)
	assert.Equal(t, "a", res.Errors[1].StepID)
}
