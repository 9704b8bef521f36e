package workflow

import (
	"encoding/json"
	"time"

	"github.com/stepflow/stepflow/internal/validation"
	"github.com/stepflow/stepflow/pkg/schema"
)

// FromJSON decodes and validates a JSON workflow document, resolves each
// step's `uses` reference against the registry, and builds the workflow.
// The document is first checked against the workflow JSON Schema so shape
// errors surface before any graph work.
func FromJSON(data []byte, registry *Registry, opts ...Option) (*Workflow, error) {
	if registry == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "registry is nil")
	}

	validator, err := validation.NewDefinitionValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateRaw(data); err != nil {
		return nil, err
	}

	var def schema.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "decode workflow definition").WithCause(err)
	}
	return FromDefinition(&def, registry, opts...)
}

// FromDefinition builds a workflow from an already-decoded definition.
func FromDefinition(def *schema.WorkflowDefinition, registry *Registry, opts ...Option) (*Workflow, error) {
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow definition is nil")
	}
	if registry == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "registry is nil")
	}

	cfg, err := configFromDefinition(def.Config)
	if err != nil {
		return nil, err
	}

	b := NewBuilder(def.Name).WithConfig(cfg)
	for _, sd := range def.Steps {
		exec, err := registry.Get(sd.Uses)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"step %s: executable %q not registered", sd.ID, sd.Uses).WithStep(sd.ID)
		}

		stepOpts := []StepOption{
			WithDependsOn(sd.DependsOn...),
			WithCondition(sd.Condition),
			WithParams(sd.Params),
		}
		if sd.Timeout != "" {
			d, err := parseDuration(sd.Timeout, "timeout", sd.ID)
			if err != nil {
				return nil, err
			}
			stepOpts = append(stepOpts, WithTimeout(d))
		}
		if sd.RetryCount != nil {
			delay := time.Duration(0)
			if sd.RetryDelay != "" {
				delay, err = parseDuration(sd.RetryDelay, "retry_delay", sd.ID)
				if err != nil {
					return nil, err
				}
			}
			stepOpts = append(stepOpts, WithRetry(*sd.RetryCount, delay))
		}

		b.AddStep(sd.ID, exec, stepOpts...)
	}
	return b.Build(opts...)
}

// ToDefinition exports the workflow back to its document form. Executables
// are not serializable; the `uses` field carries the name the caller
// registered, so a round trip needs the step IDs to double as names or the
// caller to fill Uses afterwards.
func (w *Workflow) ToDefinition() *schema.WorkflowDefinition {
	def := &schema.WorkflowDefinition{
		Name: w.name,
		Config: schema.ConfigDefinition{
			MaxParallelSteps:  w.cfg.MaxParallelSteps,
			DefaultTimeout:    w.cfg.DefaultTimeout.String(),
			DefaultRetryCount: w.cfg.DefaultRetryCount,
			DefaultRetryDelay: w.cfg.DefaultRetryDelay.String(),
			StopOnError:       w.cfg.StopOnError,
		},
	}
	for _, s := range w.steps {
		retry := s.RetryCount
		sd := schema.StepDefinition{
			ID:         s.ID,
			Params:     s.Params,
			DependsOn:  append([]string(nil), s.DependsOn...),
			Condition:  s.Condition,
			RetryCount: &retry,
		}
		if s.Timeout > 0 {
			sd.Timeout = s.Timeout.String()
		}
		if s.RetryDelay > 0 {
			sd.RetryDelay = s.RetryDelay.String()
		}
		def.Steps = append(def.Steps, sd)
	}
	return def
}

func configFromDefinition(cd schema.ConfigDefinition) (schema.Config, error) {
	cfg := schema.Config{
		MaxParallelSteps:  cd.MaxParallelSteps,
		DefaultRetryCount: cd.DefaultRetryCount,
		StopOnError:       cd.StopOnError,
	}
	var err error
	if cd.DefaultTimeout != "" {
		cfg.DefaultTimeout, err = parseDuration(cd.DefaultTimeout, "default_timeout", "")
		if err != nil {
			return cfg, err
		}
	}
	if cd.DefaultRetryDelay != "" {
		cfg.DefaultRetryDelay, err = parseDuration(cd.DefaultRetryDelay, "default_retry_delay", "")
		if err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func parseDuration(s, field, stepID string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		ferr := schema.NewErrorf(schema.ErrCodeValidation, "invalid %s %q", field, s).WithCause(err)
		if stepID != "" {
			ferr = ferr.WithStep(stepID)
		}
		return 0, ferr
	}
	if d < 0 {
		ferr := schema.NewErrorf(schema.ErrCodeValidation, "negative %s %q", field, s)
		if stepID != "" {
			ferr = ferr.WithStep(stepID)
		}
		return 0, ferr
	}
	return d, nil
}
