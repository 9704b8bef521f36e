// Package expressions provides the pluggable predicate and query engines
// used to evaluate step conditions against the workflow context.
package expressions

import "context"

// Engine evaluates expressions against a data environment.
// Three implementations ship with the module: Expr (default condition
// engine), CEL (alternative condition engine), and GoJQ (output queries).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
