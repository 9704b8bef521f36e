package schema

import "time"

// StepStatus represents the lifecycle state of a step.
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusRunning StepStatus = "running"
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// Terminal reports whether the status is a terminal step state.
func (s StepStatus) Terminal() bool {
	return s == StepStatusSuccess || s == StepStatusFailed || s == StepStatusSkipped
}

// WorkflowStatus represents the lifecycle state of a workflow execution.
type WorkflowStatus string

const (
	WorkflowStatusIdle      WorkflowStatus = "idle"
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
	// WorkflowStatusPartial marks a run where at least one step succeeded,
	// at least one was skipped by its condition, and none failed.
	WorkflowStatusPartial WorkflowStatus = "partial"
)

// SkipReasonUpstreamAbort is recorded on steps never reached because an
// earlier batch failed with stop_on_error set.
const SkipReasonUpstreamAbort = "upstream abort"

// StepResult is the terminal record of a single step's execution.
type StepResult struct {
	StepID     string     `json:"step_id"`
	Status     StepStatus `json:"status"`
	Attempts   int        `json:"attempts"`
	Output     any        `json:"output,omitempty"`
	Error      *FlowError `json:"error,omitempty"`
	SkipReason string     `json:"skip_reason,omitempty"`
	StartedAt  time.Time  `json:"started_at,omitzero"`
	EndedAt    time.Time  `json:"ended_at,omitzero"`
}

// Duration returns the wall-clock time the step spent between start and end.
func (r *StepResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// StepError pairs a failed step with its terminal error.
type StepError struct {
	StepID string     `json:"step_id"`
	Err    *FlowError `json:"error"`
}

// WorkflowResult is the aggregated outcome of one workflow execution.
// Execute always returns one: runtime failures are recorded here, never
// raised as errors to the caller.
type WorkflowResult struct {
	RunID          string                 `json:"run_id"`
	Status         WorkflowStatus         `json:"status"`
	StepResults    map[string]*StepResult `json:"step_results"`
	Errors         []StepError            `json:"errors,omitempty"`
	StartedAt      time.Time              `json:"started_at"`
	EndedAt        time.Time              `json:"ended_at"`
	Duration       time.Duration          `json:"duration"`
	SuccessRate    float64                `json:"success_rate"`
	StepsCompleted int                    `json:"steps_completed"`
	TotalSteps     int                    `json:"total_steps"`
}
