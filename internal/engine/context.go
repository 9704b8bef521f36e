package engine

import (
	"sync"

	"github.com/stepflow/stepflow/pkg/schema"
)

// Context is the shared mutable state of one workflow execution: the
// cross-step shared-value store plus the per-step result store. It is
// created fresh by Run, owned exclusively by that execution, and discarded
// when the result is returned. All access goes through the mutex; writes
// happen only at step completion, so contention stays low.
type Context struct {
	mu      sync.RWMutex
	shared  map[string]any
	results map[string]*schema.StepResult
}

// NewContext creates a run context seeded with initial shared values.
// The seed is copied; the caller's map is not retained.
func NewContext(seed map[string]any) *Context {
	shared := make(map[string]any, len(seed))
	for k, v := range seed {
		shared[k] = v
	}
	return &Context{
		shared:  shared,
		results: make(map[string]*schema.StepResult),
	}
}

// SharedValue returns the shared value stored under key.
func (c *Context) SharedValue(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.shared[key]
	return v, ok
}

// SetSharedValue stores a shared value. Last write wins; keys are never
// deleted during a run.
func (c *Context) SetSharedValue(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shared[key] = value
}

// SharedValues returns a snapshot copy of all shared values.
func (c *Context) SharedValues() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make(map[string]any, len(c.shared))
	for k, v := range c.shared {
		cp[k] = v
	}
	return cp
}

// StepResult returns the recorded terminal result of a step.
func (c *Context) StepResult(stepID string) (*schema.StepResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[stepID]
	return r, ok
}

// StepResults returns a snapshot of the result map. The StepResult values
// are shared but terminal, so they are safe to read concurrently.
func (c *Context) StepResults() map[string]*schema.StepResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make(map[string]*schema.StepResult, len(c.results))
	for k, v := range c.results {
		cp[k] = v
	}
	return cp
}

// Record stores a step's terminal result. Results are write-once: a second
// record for the same step fails with CONFLICT.
func (c *Context) Record(result *schema.StepResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.results[result.StepID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"result for step %s already recorded", result.StepID).WithStep(result.StepID)
	}
	c.results[result.StepID] = result
	return nil
}

var _ schema.RunContext = (*Context)(nil)
