// Package workflow implements declarative multi-step workflows: YAML
// definitions with templated tasks, conditional and looped steps, retry
// policies, and an engine that executes them against a registry of agents
// while threading results through a shared data context.
package workflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/qbitorbit/atlas/core"
	"github.com/qbitorbit/atlas/internal/template"
)

// Definition is a parsed workflow: named inputs and an ordered list of steps.
type Definition struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Inputs      []InputDef `yaml:"inputs,omitempty"`
	Steps       []Step     `yaml:"steps"`
}

// InputDef declares a workflow input. Required inputs must be supplied at
// run time; optional inputs fall back to Default.
type InputDef struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
	Default     any    `yaml:"default,omitempty"`
}

// Step is one unit of work. A step either dispatches a task to an agent or,
// when Set is present, writes resolved values into the shared context without
// involving any agent. Placeholders in Task, Args, Set and Loop.Items are
// resolved against the context at execution time.
type Step struct {
	ID    string         `yaml:"id"`
	Agent string         `yaml:"agent,omitempty"`
	Task  string         `yaml:"task,omitempty"`
	Args  map[string]any `yaml:"args,omitempty"`
	Set   map[string]any `yaml:"set,omitempty"`

	Condition       *ConditionSpec `yaml:"condition,omitempty"`
	Loop            *LoopSpec      `yaml:"loop,omitempty"`
	Retries         int            `yaml:"retries,omitempty"`
	Delay           Duration       `yaml:"delay,omitempty"`
	ContinueOnError bool           `yaml:"continue_on_error,omitempty"`
	StoreAs         string         `yaml:"store_as,omitempty"`
}

// LoopSpec repeats a step once per item of a resolved collection. The loop
// variable named by As (default "item") is visible to the step body only.
type LoopSpec struct {
	Items    string `yaml:"items"`
	As       string `yaml:"as,omitempty"`
	Parallel bool   `yaml:"parallel,omitempty"`
}

// Var returns the loop variable name, defaulting to "item".
func (l *LoopSpec) Var() string {
	if l.As == "" {
		return "item"
	}
	return l.As
}

// Duration wraps time.Duration for YAML decoding of strings like "500ms"
// or "2s".
type Duration time.Duration

// UnmarshalYAML decodes a duration string or a bare number of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var asString string
	if err := value.Decode(&asString); err == nil {
		parsed, err := time.ParseDuration(asString)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", asString, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var asSeconds float64
	if err := value.Decode(&asSeconds); err == nil {
		*d = Duration(time.Duration(asSeconds * float64(time.Second)))
		return nil
	}

	return fmt.Errorf("invalid duration value")
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Parse decodes and validates a workflow definition from YAML.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Load reads and parses a workflow definition file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks structural soundness: a name, non-conflicting step ids,
// well-formed steps and conditions, and no placeholder referring to data
// that cannot exist yet at that point in the workflow.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return &core.ValidationError{Workflow: d.Name, Message: "workflow name is required"}
	}

	seenInputs := map[string]bool{}
	for _, input := range d.Inputs {
		if input.Name == "" {
			return &core.ValidationError{Workflow: d.Name, Message: "input name is required"}
		}
		if seenInputs[input.Name] {
			return &core.ValidationError{Workflow: d.Name, Message: fmt.Sprintf("duplicate input %q", input.Name)}
		}
		seenInputs[input.Name] = true
	}

	// Names visible to placeholders: inputs first, then the keys each
	// earlier step contributes.
	visible := map[string]bool{}
	for _, input := range d.Inputs {
		visible[input.Name] = true
	}

	seenIDs := map[string]bool{}
	for i := range d.Steps {
		step := &d.Steps[i]
		if step.ID == "" {
			return &core.ValidationError{Workflow: d.Name, Message: fmt.Sprintf("step %d: id is required", i)}
		}
		if seenIDs[step.ID] {
			return &core.ValidationError{Workflow: d.Name, Step: step.ID, Message: "duplicate step id"}
		}
		seenIDs[step.ID] = true

		if err := d.validateStep(step); err != nil {
			return err
		}
		if err := d.validateRefs(step, visible); err != nil {
			return err
		}

		// Contributions become visible to later steps only.
		if step.StoreAs != "" {
			visible[step.StoreAs] = true
		}
		for key := range step.Set {
			visible[key] = true
		}
	}

	return nil
}

func (d *Definition) validateStep(step *Step) error {
	isSet := len(step.Set) > 0
	isTask := step.Agent != "" || step.Task != ""

	switch {
	case isSet && isTask:
		return &core.ValidationError{Workflow: d.Name, Step: step.ID, Message: "step cannot both set values and dispatch a task"}
	case isSet:
		if step.Loop != nil {
			return &core.ValidationError{Workflow: d.Name, Step: step.ID, Message: "set steps cannot loop"}
		}
		if step.Retries != 0 {
			return &core.ValidationError{Workflow: d.Name, Step: step.ID, Message: "set steps cannot retry"}
		}
	case isTask:
		if step.Agent == "" {
			return &core.ValidationError{Workflow: d.Name, Step: step.ID, Message: "task steps require an agent"}
		}
		if step.Task == "" {
			return &core.ValidationError{Workflow: d.Name, Step: step.ID, Message: "task steps require a task"}
		}
	default:
		return &core.ValidationError{Workflow: d.Name, Step: step.ID, Message: "step must set values or dispatch a task"}
	}

	if step.Retries < 0 {
		return &core.ValidationError{Workflow: d.Name, Step: step.ID, Message: "retries cannot be negative"}
	}
	if step.Loop != nil && step.Loop.Items == "" {
		return &core.ValidationError{Workflow: d.Name, Step: step.ID, Message: "loop requires items"}
	}
	if step.Condition != nil {
		if err := step.Condition.validate(); err != nil {
			return &core.ValidationError{Workflow: d.Name, Step: step.ID, Message: err.Error()}
		}
	}
	return nil
}

// validateRefs checks that every placeholder in the step body refers to an
// input, a value contributed by an earlier step, or the step's own loop
// variable. Condition keys are runtime lookups and intentionally exempt:
// probing for absent data is what conditions are for.
func (d *Definition) validateRefs(step *Step, visible map[string]bool) error {
	allowed := func(ref string) bool {
		root := template.RootSegment(ref)
		if visible[root] {
			return true
		}
		return step.Loop != nil && root == step.Loop.Var()
	}

	check := func(refs []string) error {
		for _, ref := range refs {
			if !allowed(ref) {
				return &core.ValidationError{
					Workflow: d.Name,
					Step:     step.ID,
					Message:  fmt.Sprintf("reference %q is not an input or a value produced by an earlier step", ref),
				}
			}
		}
		return nil
	}

	if err := check(template.ExtractRefs(step.Task)); err != nil {
		return err
	}
	if err := check(template.ExtractRefs(step.Args)); err != nil {
		return err
	}
	if err := check(template.ExtractRefs(step.Set)); err != nil {
		return err
	}
	if step.Loop != nil {
		if err := check(template.ExtractRefs(step.Loop.Items)); err != nil {
			return err
		}
	}
	return nil
}
