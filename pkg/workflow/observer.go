package workflow

import (
	"log/slog"

	"github.com/stepflow/stepflow/pkg/schema"
)

// SlogObserver logs execution callbacks through a structured logger.
// Useful as a default observer when no custom instrumentation is wired.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates an observer that logs at info level.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnStepStart(runID, stepID string) {
	o.logger.Info("step dispatched",
		slog.String("run_id", runID),
		slog.String("step_id", stepID),
	)
}

func (o *SlogObserver) OnStepEnd(runID string, result *schema.StepResult) {
	attrs := []any{
		slog.String("run_id", runID),
		slog.String("step_id", result.StepID),
		slog.String("status", string(result.Status)),
		slog.Int("attempts", result.Attempts),
		slog.Duration("duration", result.Duration()),
	}
	if result.Error != nil {
		attrs = append(attrs, slog.String("error", result.Error.Error()))
	}
	o.logger.Info("step finished", attrs...)
}

func (o *SlogObserver) OnBatchComplete(runID string, batchIndex int) {
	o.logger.Info("batch completed",
		slog.String("run_id", runID),
		slog.Int("batch", batchIndex),
	)
}
