package engine

import (
	"github.com/stepflow/stepflow/pkg/schema"
)

// validStepTransitions defines the allowed step lifecycle transitions.
// A step only ever moves forward: pending → running → terminal, or straight
// to skipped when its condition fails or an upstream abort unwinds the run.
var validStepTransitions = map[schema.StepStatus][]schema.StepStatus{
	schema.StepStatusPending: {schema.StepStatusRunning, schema.StepStatusSkipped},
	schema.StepStatusRunning: {schema.StepStatusSuccess, schema.StepStatusFailed, schema.StepStatusSkipped},
	schema.StepStatusSuccess: {},
	schema.StepStatusFailed:  {},
	schema.StepStatusSkipped: {},
}

// validWorkflowTransitions defines the allowed workflow lifecycle transitions.
var validWorkflowTransitions = map[schema.WorkflowStatus][]schema.WorkflowStatus{
	schema.WorkflowStatusIdle:      {schema.WorkflowStatusRunning},
	schema.WorkflowStatusRunning:   {schema.WorkflowStatusCompleted, schema.WorkflowStatusFailed, schema.WorkflowStatusPartial},
	schema.WorkflowStatusCompleted: {},
	schema.WorkflowStatusFailed:    {},
	schema.WorkflowStatusPartial:   {},
}

// TransitionStep validates a step state transition, returning an
// INVALID_TRANSITION error when the move is not allowed.
func TransitionStep(stepID string, from, to schema.StepStatus) error {
	for _, allowed := range validStepTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return schema.NewErrorf(schema.ErrCodeInvalidTransition,
		"invalid step transition: %s -> %s", from, to).WithStep(stepID)
}

// TransitionWorkflow validates a workflow state transition.
func TransitionWorkflow(from, to schema.WorkflowStatus) error {
	for _, allowed := range validWorkflowTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return schema.NewErrorf(schema.ErrCodeInvalidTransition,
		"invalid workflow transition: %s -> %s", from, to)
}
