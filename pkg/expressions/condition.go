package expressions

import (
	"context"

	"github.com/stepflow/stepflow/pkg/schema"
)

// ConditionEvaluator decides whether a step is eligible to run. It wraps a
// pluggable Engine and fails closed: any compile or evaluation error, or a
// non-boolean result, yields false with the error returned for recording —
// a malformed condition must never abort independent branches.
type ConditionEvaluator struct {
	engine Engine
}

// NewConditionEvaluator creates an evaluator backed by the given engine.
// Pass NewExprEngine() for the default grammar.
func NewConditionEvaluator(engine Engine) *ConditionEvaluator {
	return &ConditionEvaluator{engine: engine}
}

// ShouldRun evaluates a step condition against the scope. An empty condition
// is always eligible. The returned error is informational: whenever it is
// non-nil the boolean is false.
func (c *ConditionEvaluator) ShouldRun(ctx context.Context, condition string, scope map[string]any) (bool, error) {
	if condition == "" {
		return true, nil
	}

	out, err := c.engine.Evaluate(ctx, condition, scope)
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeCondition,
			"condition %q: %s", condition, err.Error()).WithCause(err)
	}

	ok, isBool := out.(bool)
	if !isBool {
		return false, schema.NewErrorf(schema.ErrCodeCondition,
			"condition %q evaluated to %T, want bool", condition, out)
	}
	return ok, nil
}
