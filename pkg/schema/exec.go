package schema

import "context"

// RunContext is the synchronized view of cross-step data handed to
// executables and to the condition evaluator. Shared values are
// last-write-wins and never deleted during a run; step results are
// write-once, set by the engine at each step's terminal state.
type RunContext interface {
	// SharedValue returns the shared value stored under key.
	SharedValue(key string) (any, bool)
	// SetSharedValue stores a shared value. Writes are guaranteed visible
	// to steps in later batches; visibility to siblings in the same batch
	// is not guaranteed.
	SetSharedValue(key string, value any)
	// SharedValues returns a snapshot copy of all shared values.
	SharedValues() map[string]any
	// StepResult returns the terminal result of a step, if recorded.
	StepResult(stepID string) (*StepResult, bool)
}

// ExecInput is the data provided to an executable at invocation time.
type ExecInput struct {
	RunID   string
	StepID  string
	Params  map[string]any
	Context RunContext
}

// Executable is an injected unit of work run by the step executor.
// Implementations must tolerate at-least-once invocation: the executor
// re-invokes on retry and gives no idempotence guarantee of its own.
// The passed context carries the per-attempt timeout and the workflow
// cancellation signal; implementations should honor it.
type Executable interface {
	Execute(ctx context.Context, in ExecInput) (any, error)
}

// ExecFunc adapts a plain function to the Executable interface.
type ExecFunc func(ctx context.Context, in ExecInput) (any, error)

func (f ExecFunc) Execute(ctx context.Context, in ExecInput) (any, error) {
	return f(ctx, in)
}
