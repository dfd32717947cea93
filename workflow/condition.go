package workflow

import (
	"fmt"
	"reflect"

	"github.com/qbitorbit/atlas/core"
)

// ConditionSpec gates step execution on the shared context. Exactly one of
// the fields must be set. A false condition skips the step; the agent is
// never invoked and no retry is consumed.
type ConditionSpec struct {
	// Exists is true when the dot-path resolves to any value.
	Exists string `yaml:"exists,omitempty"`

	// Equals is true when the dot-path resolves to a value equal to Value.
	Equals *EqualsSpec `yaml:"equals,omitempty"`

	// Not negates the nested condition.
	Not *ConditionSpec `yaml:"not,omitempty"`

	// All is true when every nested condition holds. Empty means true.
	All []*ConditionSpec `yaml:"all,omitempty"`

	// Any is true when at least one nested condition holds. Empty means false.
	Any []*ConditionSpec `yaml:"any,omitempty"`
}

// EqualsSpec compares a context value against a literal. Numeric values
// compare by magnitude so YAML ints match JSON floats.
type EqualsSpec struct {
	Key   string `yaml:"key"`
	Value any    `yaml:"value"`
}

// validate checks that exactly one condition form is present, recursively.
func (c *ConditionSpec) validate() error {
	forms := 0
	if c.Exists != "" {
		forms++
	}
	if c.Equals != nil {
		forms++
	}
	if c.Not != nil {
		forms++
	}
	if len(c.All) > 0 {
		forms++
	}
	if len(c.Any) > 0 {
		forms++
	}
	if forms != 1 {
		return fmt.Errorf("condition must have exactly one of exists, equals, not, all, any")
	}

	if c.Equals != nil && c.Equals.Key == "" {
		return fmt.Errorf("equals condition requires a key")
	}
	if c.Not != nil {
		if err := c.Not.validate(); err != nil {
			return err
		}
	}
	for _, nested := range c.All {
		if err := nested.validate(); err != nil {
			return err
		}
	}
	for _, nested := range c.Any {
		if err := nested.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate resolves the condition against the shared context. Missing keys
// are ordinary data, not errors: exists yields false and equals never
// matches.
func (c *ConditionSpec) Evaluate(env *core.Context) bool {
	switch {
	case c.Exists != "":
		_, ok := env.Lookup(c.Exists)
		return ok
	case c.Equals != nil:
		value, ok := env.Lookup(c.Equals.Key)
		if !ok {
			return false
		}
		return valuesEqual(value, c.Equals.Value)
	case c.Not != nil:
		return !c.Not.Evaluate(env)
	case len(c.All) > 0:
		for _, nested := range c.All {
			if !nested.Evaluate(env) {
				return false
			}
		}
		return true
	case len(c.Any) > 0:
		for _, nested := range c.Any {
			if nested.Evaluate(env) {
				return true
			}
		}
		return false
	}
	return true
}

// valuesEqual compares with numeric tolerance across int/float encodings.
func valuesEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
