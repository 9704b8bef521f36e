package engine

import (
	"time"

	"github.com/stepflow/stepflow/pkg/schema"
)

// Aggregate compiles terminal step results into the final WorkflowResult.
// Pure function over the terminal context: it never re-reads live state.
//
// Status rules:
//   - failed:    the run aborted, or at least one step failed
//   - partial:   no failures, at least one success and at least one
//     condition-skip
//   - completed: everything else (including the degenerate all-skipped run)
//
// success_rate counts successful steps over the steps considered: steps
// never reached because of an upstream abort are not considered. Errors are
// collected for failed steps only, in declaration order.
func Aggregate(runID string, results map[string]*schema.StepResult, order []string, aborted bool, start, end time.Time) *schema.WorkflowResult {
	var succeeded, failed, condSkipped, abortSkipped int
	errs := make([]schema.StepError, 0)

	for _, id := range order {
		res, ok := results[id]
		if !ok {
			continue
		}
		switch res.Status {
		case schema.StepStatusSuccess:
			succeeded++
		case schema.StepStatusFailed:
			failed++
			errs = append(errs, schema.StepError{StepID: id, Err: res.Error})
		case schema.StepStatusSkipped:
			if res.SkipReason == schema.SkipReasonUpstreamAbort {
				abortSkipped++
			} else {
				condSkipped++
			}
		}
	}

	status := schema.WorkflowStatusCompleted
	switch {
	case aborted || failed > 0:
		status = schema.WorkflowStatusFailed
	case succeeded > 0 && condSkipped > 0:
		status = schema.WorkflowStatusPartial
	}

	considered := len(order) - abortSkipped
	rate := 0.0
	if considered > 0 {
		rate = float64(succeeded) / float64(considered)
	}

	return &schema.WorkflowResult{
		RunID:          runID,
		Status:         status,
		StepResults:    results,
		Errors:         errs,
		StartedAt:      start,
		EndedAt:        end,
		Duration:       end.Sub(start),
		SuccessRate:    rate,
		StepsCompleted: succeeded,
		TotalSteps:     len(order),
	}
}
