package schema

import (
	"context"
	"time"
)

// Event type constants for the run event stream and the audit log.
const (
	EventWorkflowStarted   = "workflow_started"
	EventWorkflowCompleted = "workflow_completed"
	EventWorkflowFailed    = "workflow_failed"
	EventWorkflowPartial   = "workflow_partial"
	EventWorkflowAborted   = "workflow_aborted"

	EventStepStarted      = "step_started"
	EventStepSucceeded    = "step_succeeded"
	EventStepFailed       = "step_failed"
	EventStepSkipped      = "step_skipped"
	EventStepRetryAttempt = "step_retry_attempt"

	EventBatchCompleted = "batch_completed"
)

// Event is an immutable entry describing one occurrence during a run.
// Sequence is assigned by the audit log, monotonically per run.
type Event struct {
	ID        int64          `json:"id,omitempty"`
	RunID     string         `json:"run_id"`
	StepID    string         `json:"step_id,omitempty"`
	Type      string         `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Sequence  int64          `json:"sequence,omitempty"`
}

// EventSink receives run events for durable recording. Satisfied by the
// audit package implementations.
type EventSink interface {
	AppendEvent(ctx context.Context, event *Event) error
}

// Observer receives execution callbacks. All methods may be called from
// concurrent goroutines; implementations must be safe for that. The engine
// functions identically with NopObserver.
type Observer interface {
	OnStepStart(runID, stepID string)
	OnStepEnd(runID string, result *StepResult)
	OnBatchComplete(runID string, batchIndex int)
}

// NopObserver is an Observer that ignores all callbacks.
type NopObserver struct{}

func (NopObserver) OnStepStart(string, string)    {}
func (NopObserver) OnStepEnd(string, *StepResult) {}
func (NopObserver) OnBatchComplete(string, int)   {}
