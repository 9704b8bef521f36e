package workflow

import (
	"sort"
	"sync"

	"github.com/stepflow/stepflow/pkg/schema"
)

// Registry is a thread-safe catalog of named executables, used when
// building workflows from JSON documents where steps reference executables
// by name.
type Registry struct {
	mu    sync.RWMutex
	execs map[string]schema.Executable
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		execs: make(map[string]schema.Executable),
	}
}

// Register adds an executable under a name. Returns error on duplicate name.
func (r *Registry) Register(name string, exec schema.Executable) error {
	if exec == nil {
		return schema.NewError(schema.ErrCodeValidation, "executable is nil")
	}
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "executable name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.execs[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "executable %q already registered", name)
	}

	r.execs[name] = exec
	return nil
}

// RegisterFunc adapts a plain function and registers it.
func (r *Registry) RegisterFunc(name string, fn schema.ExecFunc) error {
	return r.Register(name, fn)
}

// Get retrieves an executable by name.
func (r *Registry) Get(name string) (schema.Executable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.execs[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "executable %q not registered", name)
	}
	return exec, nil
}

// Has checks if an executable is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.execs[name]
	return ok
}

// List returns all registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.execs))
	for name := range r.execs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered executables.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.execs)
}
