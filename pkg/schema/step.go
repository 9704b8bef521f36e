package schema

import "time"

// Step is the immutable description of one unit of work in a workflow:
// identity, dependencies, eligibility condition, and failure policy.
// Built once by the workflow builder and never mutated afterwards.
type Step struct {
	ID         string         `json:"id"`
	DependsOn  []string       `json:"depends_on,omitempty"`
	Condition  string         `json:"condition,omitempty"` // predicate expression; empty means always eligible
	Timeout    time.Duration  `json:"timeout,omitempty"`   // per-attempt timeout; 0 inherits the config default
	RetryCount int            `json:"retry_count,omitempty"`
	RetryDelay time.Duration  `json:"retry_delay,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Executable Executable     `json:"-"`
}

// Config holds execution-level settings for a workflow.
type Config struct {
	MaxParallelSteps  int           `json:"max_parallel_steps"`
	DefaultTimeout    time.Duration `json:"default_timeout"`
	DefaultRetryCount int           `json:"default_retry_count"`
	DefaultRetryDelay time.Duration `json:"default_retry_delay"`
	StopOnError       bool          `json:"stop_on_error"`
}

// Defaults applied by Normalize when the corresponding field is zero.
const (
	DefaultMaxParallelSteps = 4
	DefaultStepTimeout      = 5 * time.Minute
	DefaultRetryDelay       = time.Second
)

// Normalize fills zero-valued config fields with defaults.
func (c Config) Normalize() Config {
	if c.MaxParallelSteps <= 0 {
		c.MaxParallelSteps = DefaultMaxParallelSteps
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultStepTimeout
	}
	if c.DefaultRetryDelay <= 0 {
		c.DefaultRetryDelay = DefaultRetryDelay
	}
	if c.DefaultRetryCount < 0 {
		c.DefaultRetryCount = 0
	}
	return c
}

// EffectiveTimeout resolves the per-attempt timeout for a step,
// falling back to the config default when unset.
func (s *Step) EffectiveTimeout(cfg Config) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return cfg.DefaultTimeout
}

// EffectiveRetryDelay resolves the base backoff delay for a step.
func (s *Step) EffectiveRetryDelay(cfg Config) time.Duration {
	if s.RetryDelay > 0 {
		return s.RetryDelay
	}
	return cfg.DefaultRetryDelay
}
