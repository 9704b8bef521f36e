package schema

// WorkflowDefinition is the JSON-serializable workflow document format.
// Durations are Go duration strings ("30s", "5m"); `uses` names an
// executable registered by the caller.
type WorkflowDefinition struct {
	Name   string           `json:"name,omitempty"`
	Steps  []StepDefinition `json:"steps"`
	Config ConfigDefinition `json:"config,omitempty"`
}

// StepDefinition describes a single step in a workflow document.
type StepDefinition struct {
	ID         string         `json:"id"`
	Uses       string         `json:"uses"`
	Params     map[string]any `json:"params,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty"`
	Condition  string         `json:"condition,omitempty"`
	Timeout    string         `json:"timeout,omitempty"`
	RetryCount *int           `json:"retry_count,omitempty"`
	RetryDelay string         `json:"retry_delay,omitempty"`
}

// ConfigDefinition mirrors Config with document-friendly field types.
type ConfigDefinition struct {
	MaxParallelSteps  int    `json:"max_parallel_steps,omitempty"`
	DefaultTimeout    string `json:"default_timeout,omitempty"`
	DefaultRetryCount int    `json:"default_retry_count,omitempty"`
	DefaultRetryDelay string `json:"default_retry_delay,omitempty"`
	StopOnError       bool   `json:"stop_on_error,omitempty"`
}
