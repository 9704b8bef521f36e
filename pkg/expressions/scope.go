package expressions

import (
	"github.com/stepflow/stepflow/pkg/schema"
)

// reserved names that step IDs may not shadow in the expression environment.
var reservedScopeKeys = map[string]bool{
	"steps":  true,
	"shared": true,
}

// BuildScope constructs the expression environment a condition is evaluated
// against. It exposes:
//   - shared.<key>     — shared values committed by earlier batches
//   - steps.<id>.<f>   — terminal step results (status, output, attempts, error)
//   - <id>.<f>         — shorthand for steps.<id>.<f> when the step ID is a
//     valid identifier and does not collide with a namespace
//
// Both maps are snapshots: mutating them does not affect the run context,
// and re-evaluating a condition against an unchanged context is deterministic.
func BuildScope(shared map[string]any, results map[string]*schema.StepResult) map[string]any {
	steps := make(map[string]any, len(results))
	env := map[string]any{
		"shared": shared,
		"steps":  steps,
	}

	for id, res := range results {
		view := stepView(res)
		steps[id] = view
		if !reservedScopeKeys[id] && isIdentifier(id) {
			env[id] = view
		}
	}

	return env
}

// stepView projects a StepResult into the fields conditions may reference.
func stepView(res *schema.StepResult) map[string]any {
	view := map[string]any{
		"status":   string(res.Status),
		"output":   res.Output,
		"attempts": res.Attempts,
		"success":  res.Status == schema.StepStatusSuccess,
		"skipped":  res.Status == schema.StepStatusSkipped,
		"failed":   res.Status == schema.StepStatusFailed,
	}
	if res.Error != nil {
		view["error"] = res.Error.Message
	}
	return view
}

// isIdentifier reports whether s is usable as a bare expression variable.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
