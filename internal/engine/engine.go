// Package engine executes a validated workflow: it walks the topological
// batches, dispatches eligible steps to a bounded pool, enforces per-step
// timeout and retry policy, and aggregates the terminal results.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stepflow/stepflow/internal/logging"
	"github.com/stepflow/stepflow/pkg/expressions"
	"github.com/stepflow/stepflow/pkg/schema"
)

// Skip reasons recorded on steps that never ran.
const (
	skipReasonConditionFalse = "condition evaluated to false"
	skipReasonConditionError = "condition evaluation error"
	skipReasonCancelled      = "workflow cancelled"
)

// EventPublisher receives run events for live streaming. Satisfied by the
// events package hub.
type EventPublisher interface {
	Publish(ctx context.Context, event schema.Event) error
}

// Options carries the optional collaborators of an Engine. Zero values are
// replaced with no-op implementations; the engine functions with all of
// them absent.
type Options struct {
	Logger       *slog.Logger
	Observer     schema.Observer
	Conditions   *expressions.ConditionEvaluator
	Publisher    EventPublisher
	Sink         schema.EventSink
	SharedValues map[string]any
}

// Engine runs one workflow definition. It is stateless across runs: every
// Run creates a fresh Context and returns it inside the result.
type Engine struct {
	cfg     schema.Config
	steps   map[string]*schema.Step
	order   []string // declaration order, for deterministic error collection
	batches [][]string

	conditions *expressions.ConditionEvaluator
	logger     *slog.Logger
	observer   schema.Observer
	publisher  EventPublisher
	sink       schema.EventSink
	seed       map[string]any
}

// New creates an Engine over a validated step set and its cached batches.
func New(steps []schema.Step, batches [][]string, cfg schema.Config, opts Options) *Engine {
	byID := make(map[string]*schema.Step, len(steps))
	order := make([]string, 0, len(steps))
	for i := range steps {
		byID[steps[i].ID] = &steps[i]
		order = append(order, steps[i].ID)
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	} else if _, ok := opts.Logger.Handler().(*logging.CorrelationHandler); !ok {
		// Stamp run_id/step_id from the context onto every record.
		opts.Logger = slog.New(logging.NewCorrelationHandler(opts.Logger.Handler()))
	}
	if opts.Observer == nil {
		opts.Observer = schema.NopObserver{}
	}
	if opts.Conditions == nil {
		opts.Conditions = expressions.NewConditionEvaluator(expressions.NewExprEngine())
	}

	return &Engine{
		cfg:        cfg.Normalize(),
		steps:      byID,
		order:      order,
		batches:    batches,
		conditions: opts.Conditions,
		logger:     opts.Logger,
		observer:   opts.Observer,
		publisher:  opts.Publisher,
		sink:       opts.Sink,
		seed:       opts.SharedValues,
	}
}

// Run executes the workflow and always returns a WorkflowResult: runtime
// failures are contained at the step boundary and surfaced through the
// result, never as an error.
//
// Cancellation semantics: cancelling ctx stops scheduling of new batches
// immediately. Steps already dispatched in the current batch receive the
// cancelled context and may finish or abandon their work; unreached steps
// end as skipped and the run reports status failed. A stop_on_error abort
// does not interrupt running siblings in the same batch — it only blocks
// future batches.
func (e *Engine) Run(ctx context.Context) *schema.WorkflowResult {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	start := time.Now().UTC()
	rc := NewContext(e.seed)

	wfStatus := schema.WorkflowStatusIdle
	e.transitionWorkflow(ctx, &wfStatus, schema.WorkflowStatusRunning)
	e.logger.InfoContext(ctx, "workflow started",
		slog.Int("total_steps", len(e.order)),
		slog.Int("batches", len(e.batches)),
	)
	e.emit(ctx, schema.EventWorkflowStarted, runID, "", map[string]any{
		"total_steps": len(e.order),
	})

	pool := NewPool(e.cfg.MaxParallelSteps)
	aborted := false
	cancelled := false

	for bi, batch := range e.batches {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		var wg sync.WaitGroup
		for _, id := range batch {
			step := e.steps[id]

			scope := expressions.BuildScope(rc.SharedValues(), rc.StepResults())
			eligible, condErr := e.conditions.ShouldRun(ctx, step.Condition, scope)
			if !eligible {
				e.skipStep(ctx, rc, runID, step.ID, condErr)
				continue
			}

			wg.Add(1)
			submitted := pool.Go(ctx, func() {
				defer wg.Done()
				res := e.runStep(ctx, runID, step, rc)
				e.finishStep(ctx, rc, runID, res)
			})
			if submitted != nil {
				// Cancellation fired while waiting for a pool slot.
				wg.Done()
				res := skippedResult(step.ID, skipReasonCancelled, nil)
				e.finishStep(ctx, rc, runID, res)
			}
		}
		wg.Wait()

		e.observer.OnBatchComplete(runID, bi)
		e.emit(ctx, schema.EventBatchCompleted, runID, "", map[string]any{"batch": bi})

		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if e.cfg.StopOnError && e.batchFailed(rc, batch) {
			e.logger.WarnContext(ctx, "aborting workflow on batch failure", slog.Int("batch", bi))
			aborted = true
			break
		}
	}
	pool.Wait()

	// Mark every unreached step skipped so the result covers all steps.
	reason := schema.SkipReasonUpstreamAbort
	if cancelled {
		reason = skipReasonCancelled
	}
	for _, id := range e.order {
		if _, ok := rc.StepResult(id); !ok {
			e.finishStep(ctx, rc, runID, skippedResult(id, reason, nil))
		}
	}

	end := time.Now().UTC()
	result := Aggregate(runID, rc.StepResults(), e.order, aborted || cancelled, start, end)
	e.transitionWorkflow(ctx, &wfStatus, result.Status)

	e.logger.InfoContext(ctx, "workflow finished",
		slog.String("status", string(result.Status)),
		slog.Duration("duration", result.Duration),
		slog.Int("steps_completed", result.StepsCompleted),
		slog.Int("errors", len(result.Errors)),
	)
	e.emit(ctx, finalEventType(result.Status, aborted), runID, "", map[string]any{
		"status":       string(result.Status),
		"duration_ms":  result.Duration.Milliseconds(),
		"success_rate": result.SuccessRate,
	})

	return result
}

// skipStep records a condition skip without ever invoking the executable.
func (e *Engine) skipStep(ctx context.Context, rc *Context, runID, stepID string, condErr error) {
	reason := skipReasonConditionFalse
	var ferr *schema.FlowError
	if condErr != nil {
		reason = skipReasonConditionError
		ferr = asFlowError(condErr, stepID)
		e.logger.WarnContext(ctx, "condition failed closed",
			slog.String("step_id", stepID),
			slog.String("error", condErr.Error()),
		)
	}
	e.finishStep(ctx, rc, runID, skippedResult(stepID, reason, ferr))
}

// finishStep records a terminal result and notifies observers and sinks.
func (e *Engine) finishStep(ctx context.Context, rc *Context, runID string, res *schema.StepResult) {
	if err := rc.Record(res); err != nil {
		e.logger.ErrorContext(ctx, "dropping duplicate step result",
			slog.String("step_id", res.StepID),
			slog.String("error", err.Error()),
		)
		return
	}
	e.observer.OnStepEnd(runID, res)
	e.emit(ctx, stepEventType(res.Status), runID, res.StepID, stepEventPayload(res))
}

// batchFailed reports whether any step of the batch ended failed.
func (e *Engine) batchFailed(rc *Context, batch []string) bool {
	for _, id := range batch {
		if res, ok := rc.StepResult(id); ok && res.Status == schema.StepStatusFailed {
			return true
		}
	}
	return false
}

// transitionWorkflow advances the workflow status through the FSM. A
// rejected transition is logged and the current status kept.
func (e *Engine) transitionWorkflow(ctx context.Context, cur *schema.WorkflowStatus, next schema.WorkflowStatus) {
	if err := TransitionWorkflow(*cur, next); err != nil {
		e.logger.ErrorContext(ctx, "workflow transition rejected",
			slog.String("error", err.Error()))
		return
	}
	*cur = next
}

// emit forwards an event to the audit sink and the live publisher, best
// effort. A cancelled run context must not block final events.
func (e *Engine) emit(ctx context.Context, eventType, runID, stepID string, payload map[string]any) {
	if e.sink == nil && e.publisher == nil {
		return
	}
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	ev := schema.Event{
		RunID:     runID,
		StepID:    stepID,
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	if e.sink != nil {
		if err := e.sink.AppendEvent(ctx, &ev); err != nil {
			e.logger.WarnContext(ctx, "audit append failed", slog.String("error", err.Error()))
		}
	}
	if e.publisher != nil {
		_ = e.publisher.Publish(ctx, ev)
	}
}

func skippedResult(stepID, reason string, err *schema.FlowError) *schema.StepResult {
	now := time.Now().UTC()
	return &schema.StepResult{
		StepID:     stepID,
		Status:     schema.StepStatusSkipped,
		SkipReason: reason,
		Error:      err,
		StartedAt:  now,
		EndedAt:    now,
	}
}

func stepEventType(status schema.StepStatus) string {
	switch status {
	case schema.StepStatusSuccess:
		return schema.EventStepSucceeded
	case schema.StepStatusFailed:
		return schema.EventStepFailed
	default:
		return schema.EventStepSkipped
	}
}

func stepEventPayload(res *schema.StepResult) map[string]any {
	payload := map[string]any{
		"status":   string(res.Status),
		"attempts": res.Attempts,
	}
	if res.Error != nil {
		payload["error"] = res.Error.Error()
	}
	if res.SkipReason != "" {
		payload["skip_reason"] = res.SkipReason
	}
	return payload
}

func finalEventType(status schema.WorkflowStatus, aborted bool) string {
	switch {
	case aborted:
		return schema.EventWorkflowAborted
	case status == schema.WorkflowStatusCompleted:
		return schema.EventWorkflowCompleted
	case status == schema.WorkflowStatusPartial:
		return schema.EventWorkflowPartial
	default:
		return schema.EventWorkflowFailed
	}
}
