// Package audit persists the ordered event history of workflow runs. Every
// event carries a per-run monotonically increasing sequence so a run can be
// reconstructed and audited after the fact.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/stepflow/stepflow/pkg/schema"
)

// Log is an append-only event store with per-run replay.
type Log interface {
	schema.EventSink
	// Events returns events for a run with sequence > since, ordered by
	// sequence ASC.
	Events(ctx context.Context, runID string, since int64) ([]*schema.Event, error)
	Close() error
}

// Replay folds a run's events into the last observed status per step.
// It returns a STORE_ERROR when the sequence has gaps.
func Replay(events []*schema.Event) (map[string]schema.StepStatus, error) {
	states := make(map[string]schema.StepStatus)
	for i, e := range events {
		expected := int64(i + 1)
		if e.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap: expected %d, got %d", expected, e.Sequence)
		}
		if e.StepID == "" {
			continue
		}
		switch e.Type {
		case schema.EventStepStarted, schema.EventStepRetryAttempt:
			states[e.StepID] = schema.StepStatusRunning
		case schema.EventStepSucceeded:
			states[e.StepID] = schema.StepStatusSuccess
		case schema.EventStepFailed:
			states[e.StepID] = schema.StepStatusFailed
		case schema.EventStepSkipped:
			states[e.StepID] = schema.StepStatusSkipped
		}
	}
	return states, nil
}

// MemoryLog is an in-memory Log for tests and short-lived runs.
type MemoryLog struct {
	mu     sync.Mutex
	byRun  map[string][]*schema.Event
	nextID int64
}

// NewMemoryLog creates an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{byRun: make(map[string][]*schema.Event)}
}

// AppendEvent assigns the next per-run sequence and stores a copy of the event.
func (l *MemoryLog) AppendEvent(ctx context.Context, event *schema.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	event.ID = l.nextID
	event.Sequence = int64(len(l.byRun[event.RunID]) + 1)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	stored := *event
	l.byRun[event.RunID] = append(l.byRun[event.RunID], &stored)
	return nil
}

// Events returns events for a run with sequence > since, ordered by sequence.
func (l *MemoryLog) Events(ctx context.Context, runID string, since int64) ([]*schema.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*schema.Event
	for _, e := range l.byRun[runID] {
		if e.Sequence > since {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (l *MemoryLog) Close() error { return nil }
