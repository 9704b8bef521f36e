// Package workflow is the public entry point of the module: a fluent
// builder that assembles and validates a workflow, and the Workflow type
// that executes it.
package workflow

import (
	"time"

	"github.com/stepflow/stepflow/internal/dag"
	"github.com/stepflow/stepflow/pkg/schema"
)

// StepOption customizes a step added to the builder.
type StepOption func(*stepEntry)

// WithDependsOn declares the step's dependencies.
func WithDependsOn(ids ...string) StepOption {
	return func(e *stepEntry) { e.step.DependsOn = append(e.step.DependsOn, ids...) }
}

// WithCondition attaches an eligibility predicate. The expression is
// evaluated just before dispatch; false or an evaluation error skips the
// step without failing the run.
func WithCondition(expression string) StepOption {
	return func(e *stepEntry) { e.step.Condition = expression }
}

// WithTimeout bounds each execution attempt of the step.
func WithTimeout(d time.Duration) StepOption {
	return func(e *stepEntry) { e.step.Timeout = d }
}

// WithRetry sets the retry policy: count additional attempts after the
// first, with linearly growing delays starting at delay.
func WithRetry(count int, delay time.Duration) StepOption {
	return func(e *stepEntry) {
		e.step.RetryCount = count
		e.step.RetryDelay = delay
		e.retrySet = true
	}
}

// WithParams attaches static parameters passed to the executable.
func WithParams(params map[string]any) StepOption {
	return func(e *stepEntry) { e.step.Params = params }
}

type stepEntry struct {
	step     schema.Step
	retrySet bool
}

// Builder accumulates steps and configuration, then validates the whole
// graph in Build. Errors are collected and surfaced once, so call sites can
// chain AddStep without per-call checks.
type Builder struct {
	name    string
	entries []stepEntry
	cfg     schema.Config
	err     error
}

// NewBuilder creates a Builder for a named workflow.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// WithConfig sets the execution configuration. Zero fields fall back to
// defaults at build time.
func (b *Builder) WithConfig(cfg schema.Config) *Builder {
	b.cfg = cfg
	return b
}

// AddStep appends a step. The first registration error sticks and is
// returned by Build.
func (b *Builder) AddStep(id string, exec schema.Executable, opts ...StepOption) *Builder {
	if b.err != nil {
		return b
	}
	if id == "" {
		b.err = schema.NewError(schema.ErrCodeValidation, "step has empty ID")
		return b
	}
	if exec == nil {
		b.err = schema.NewErrorf(schema.ErrCodeValidation, "step %s has no executable", id).WithStep(id)
		return b
	}

	entry := stepEntry{step: schema.Step{ID: id, Executable: exec}}
	for _, opt := range opts {
		opt(&entry)
	}
	if entry.step.RetryCount < 0 {
		b.err = schema.NewErrorf(schema.ErrCodeValidation, "step %s has negative retry count", id).WithStep(id)
		return b
	}
	b.entries = append(b.entries, entry)
	return b
}

// Build validates the step graph and returns an executable Workflow.
// Validation covers duplicate IDs, unknown dependencies, and cycles; the
// batching is computed once here and cached on the workflow.
func (b *Builder) Build(opts ...Option) (*Workflow, error) {
	if b.err != nil {
		return nil, b.err
	}

	cfg := b.cfg.Normalize()
	steps := make([]schema.Step, 0, len(b.entries))
	nodes := make([]dag.Node, 0, len(b.entries))
	for _, e := range b.entries {
		step := e.step
		if !e.retrySet {
			step.RetryCount = cfg.DefaultRetryCount
		}
		steps = append(steps, step)
		nodes = append(nodes, dag.Node{ID: step.ID, DependsOn: step.DependsOn})
	}

	graph, err := dag.Build(nodes)
	if err != nil {
		return nil, err
	}

	return newWorkflow(b.name, steps, graph, cfg, opts), nil
}
