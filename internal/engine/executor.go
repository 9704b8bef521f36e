package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stepflow/stepflow/internal/logging"
	"github.com/stepflow/stepflow/pkg/schema"
)

type attemptResult struct {
	out any
	err error
}

// runStep drives one step to a terminal result: up to retry_count+1
// attempts, each bounded by the step timeout, with linear backoff between
// attempts. It never panics and never returns nil.
func (e *Engine) runStep(ctx context.Context, runID string, step *schema.Step, rc *Context) *schema.StepResult {
	ctx = logging.WithStepID(ctx, step.ID)

	status := schema.StepStatusPending
	res := &schema.StepResult{
		StepID:    step.ID,
		StartedAt: time.Now().UTC(),
	}

	e.transitionStep(ctx, step.ID, &status, schema.StepStatusRunning)
	e.observer.OnStepStart(runID, step.ID)
	e.emit(ctx, schema.EventStepStarted, runID, step.ID, nil)
	e.logger.DebugContext(ctx, "step started")

	maxAttempts := step.RetryCount + 1
	base := step.EffectiveRetryDelay(e.cfg)
	var lastErr *schema.FlowError

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := Backoff(base, attempt-1)
			e.logger.InfoContext(ctx, "retrying step",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
			)
			e.emit(ctx, schema.EventStepRetryAttempt, runID, step.ID, map[string]any{
				"attempt":    attempt,
				"backoff_ms": delay.Milliseconds(),
			})
			if err := WaitForBackoff(ctx, delay); err != nil {
				lastErr = schema.NewError(schema.ErrCodeCancelled, "workflow cancelled during retry backoff").
					WithStep(step.ID).WithCause(err)
				break
			}
		}

		out, err := e.invoke(ctx, runID, step, rc)
		res.Attempts = attempt
		if err == nil {
			e.transitionStep(ctx, step.ID, &status, schema.StepStatusSuccess)
			res.Status = schema.StepStatusSuccess
			res.Output = out
			res.EndedAt = time.Now().UTC()
			e.logger.InfoContext(ctx, "step succeeded",
				slog.Int("attempts", res.Attempts),
				slog.Duration("duration", res.Duration()),
			)
			return res
		}

		lastErr = asFlowError(err, step.ID)
		e.logger.WarnContext(ctx, "step attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		// A cancelled run gains nothing from further attempts.
		if lastErr.Code == schema.ErrCodeCancelled || ctx.Err() != nil {
			break
		}
	}

	e.transitionStep(ctx, step.ID, &status, schema.StepStatusFailed)
	res.Status = schema.StepStatusFailed
	res.EndedAt = time.Now().UTC()
	if maxAttempts > 1 && res.Attempts == maxAttempts {
		res.Error = schema.NewErrorf(schema.ErrCodeRetryExhausted,
			"retries exhausted after %d attempts: %s", res.Attempts, lastErr.Message).
			WithStep(step.ID).WithCause(lastErr)
	} else {
		res.Error = lastErr
	}
	e.logger.ErrorContext(ctx, "step failed",
		slog.Int("attempts", res.Attempts),
		slog.String("error", res.Error.Error()),
	)
	return res
}

// transitionStep advances a step status through the FSM. A rejected
// transition is logged and the current status kept.
func (e *Engine) transitionStep(ctx context.Context, stepID string, cur *schema.StepStatus, next schema.StepStatus) {
	if err := TransitionStep(stepID, *cur, next); err != nil {
		e.logger.ErrorContext(ctx, "step transition rejected",
			slog.String("error", err.Error()))
		return
	}
	*cur = next
}

// invoke runs a single attempt under its own deadline. The executable runs
// in a separate goroutine so a handler that ignores its context cannot hold
// the attempt past the timeout; an abandoned goroutine is allowed to run to
// completion and its late result is dropped.
func (e *Engine) invoke(ctx context.Context, runID string, step *schema.Step, rc *Context) (any, error) {
	timeout := step.EffectiveTimeout(e.cfg)
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	in := schema.ExecInput{
		RunID:   runID,
		StepID:  step.ID,
		Params:  step.Params,
		Context: rc,
	}

	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult{err: schema.NewErrorf(schema.ErrCodeExecution,
					"executable panicked: %v", r).WithStep(step.ID)}
			}
		}()
		out, err := step.Executable.Execute(attemptCtx, in)
		done <- attemptResult{out: out, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, e.classify(r.err, step, timeout)
		}
		return r.out, nil
	case <-attemptCtx.Done():
		return nil, e.classify(attemptCtx.Err(), step, timeout)
	}
}

// classify maps an attempt error onto the timeout / cancelled / execution
// error codes.
func (e *Engine) classify(err error, step *schema.Step, timeout time.Duration) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return schema.NewErrorf(schema.ErrCodeTimeout,
			"attempt exceeded timeout of %s", timeout).WithStep(step.ID).WithCause(err)
	case errors.Is(err, context.Canceled):
		return schema.NewError(schema.ErrCodeCancelled, "workflow cancelled").
			WithStep(step.ID).WithCause(err)
	default:
		return err
	}
}

// asFlowError coerces any error into a FlowError bound to the step.
func asFlowError(err error, stepID string) *schema.FlowError {
	var ferr *schema.FlowError
	if errors.As(err, &ferr) {
		if ferr.StepID == "" {
			return ferr.WithStep(stepID)
		}
		return ferr
	}
	return schema.NewError(schema.ErrCodeExecution, err.Error()).
		WithStep(stepID).WithCause(err)
}
