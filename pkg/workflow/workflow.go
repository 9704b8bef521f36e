package workflow

import (
	"context"
	"log/slog"

	"github.com/stepflow/stepflow/internal/dag"
	"github.com/stepflow/stepflow/internal/engine"
	"github.com/stepflow/stepflow/pkg/expressions"
	"github.com/stepflow/stepflow/pkg/schema"
)

// Option customizes workflow execution.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	logger     *slog.Logger
	observer   schema.Observer
	condEngine expressions.Engine
	publisher  engine.EventPublisher
	sink       schema.EventSink
	shared     map[string]any
}

// WithLogger sets the structured logger used during execution.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runtimeOptions) { o.logger = logger }
}

// WithObserver registers execution callbacks.
func WithObserver(obs schema.Observer) Option {
	return func(o *runtimeOptions) { o.observer = obs }
}

// WithConditionEngine swaps the expression engine used for step conditions.
// The default is the Expr engine.
func WithConditionEngine(eng expressions.Engine) Option {
	return func(o *runtimeOptions) { o.condEngine = eng }
}

// WithEventHub streams run events to the hub's subscribers.
func WithEventHub(hub engine.EventPublisher) Option {
	return func(o *runtimeOptions) { o.publisher = hub }
}

// WithAuditLog records run events durably in the audit log.
func WithAuditLog(sink schema.EventSink) Option {
	return func(o *runtimeOptions) { o.sink = sink }
}

// WithSharedValues seeds the run context before the first batch.
func WithSharedValues(values map[string]any) Option {
	return func(o *runtimeOptions) { o.shared = values }
}

// Workflow is a validated, immutable workflow ready to execute. A Workflow
// is safe for concurrent and repeated Execute calls; each call is an
// independent run with its own run ID and context.
type Workflow struct {
	name  string
	steps []schema.Step
	graph *dag.Graph
	cfg   schema.Config
	opts  []Option
}

func newWorkflow(name string, steps []schema.Step, graph *dag.Graph, cfg schema.Config, opts []Option) *Workflow {
	return &Workflow{
		name:  name,
		steps: steps,
		graph: graph,
		cfg:   cfg,
		opts:  opts,
	}
}

// Name returns the workflow name.
func (w *Workflow) Name() string { return w.name }

// Config returns the normalized execution configuration.
func (w *Workflow) Config() schema.Config { return w.cfg }

// Batches returns the cached topological layers: batch 0 holds the roots,
// batch k holds steps whose dependencies all sit in earlier batches.
// The returned slices are copies.
func (w *Workflow) Batches() [][]string {
	out := make([][]string, len(w.graph.Batches))
	for i, batch := range w.graph.Batches {
		out[i] = append([]string(nil), batch...)
	}
	return out
}

// Order returns the deterministic topological order of all steps.
func (w *Workflow) Order() []string {
	return append([]string(nil), w.graph.Sorted...)
}

// Execute runs the workflow to completion and returns the aggregated
// result. Execution failures are reported through the result, never as a
// panic or error; cancel ctx to abandon the run early.
func (w *Workflow) Execute(ctx context.Context, opts ...Option) *schema.WorkflowResult {
	var ro runtimeOptions
	for _, opt := range w.opts {
		opt(&ro)
	}
	for _, opt := range opts {
		opt(&ro)
	}

	var conditions *expressions.ConditionEvaluator
	if ro.condEngine != nil {
		conditions = expressions.NewConditionEvaluator(ro.condEngine)
	}

	eng := engine.New(w.steps, w.graph.Batches, w.cfg, engine.Options{
		Logger:       ro.logger,
		Observer:     ro.observer,
		Conditions:   conditions,
		Publisher:    ro.publisher,
		Sink:         ro.sink,
		SharedValues: ro.shared,
	})
	return eng.Run(ctx)
}
