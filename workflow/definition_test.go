package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbitorbit/atlas/core"
)

func assertValidationError(t *testing.T, err error, contains string) {
	t.Helper()
	require.Error(t, err)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "want *core.ValidationError, got %T", err)
	assert.Contains(t, verr.Error(), contains)
}

func TestParse_FullDefinition(t *testing.T) {
	def, err := Parse([]byte(`
name: nightly_check
description: Checks every registered device overnight.
inputs:
  - name: devices
    required: true
  - name: report_title
    default: Nightly Report
steps:
  - id: ping_all
    agent: device
    task: "ping {{device}}"
    retries: 2
    delay: 500ms
    loop:
      items: "{{devices}}"
      as: device
      parallel: true
    store_as: pings
  - id: summarize
    agent: docs
    task: "Write {{report_title}} from {{pings}}"
    condition:
      exists: pings
    continue_on_error: true
`))
	require.NoError(t, err)

	assert.Equal(t, "nightly_check", def.Name)
	require.Len(t, def.Inputs, 2)
	assert.True(t, def.Inputs[0].Required)
	assert.Equal(t, "Nightly Report", def.Inputs[1].Default)

	require.Len(t, def.Steps, 2)
	first := def.Steps[0]
	assert.Equal(t, 2, first.Retries)
	assert.Equal(t, 500*time.Millisecond, first.Delay.Std())
	require.NotNil(t, first.Loop)
	assert.Equal(t, "device", first.Loop.Var())
	assert.True(t, first.Loop.Parallel)

	second := def.Steps[1]
	require.NotNil(t, second.Condition)
	assert.Equal(t, "pings", second.Condition.Exists)
	assert.True(t, second.ContinueOnError)
}

func TestParse_DelayAsSeconds(t *testing.T) {
	def, err := Parse([]byte(`
name: numeric_delay
steps:
  - id: work
    agent: a
    task: t
    delay: 2
`))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, def.Steps[0].Delay.Std())
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("steps: ["))
	require.Error(t, err)
}

func TestValidate_DuplicateStepIDs(t *testing.T) {
	_, err := Parse([]byte(`
name: dup
steps:
  - id: work
    agent: a
    task: t
  - id: work
    agent: a
    task: t
`))
	assertValidationError(t, err, "duplicate step id")
}

func TestValidate_MissingName(t *testing.T) {
	_, err := Parse([]byte(`
steps:
  - id: work
    agent: a
    task: t
`))
	assertValidationError(t, err, "name is required")
}

func TestValidate_StepWithoutBody(t *testing.T) {
	_, err := Parse([]byte(`
name: hollow
steps:
  - id: work
`))
	assertValidationError(t, err, "must set values or dispatch a task")
}

func TestValidate_TaskWithoutAgent(t *testing.T) {
	_, err := Parse([]byte(`
name: no_agent
steps:
  - id: work
    task: do it
`))
	assertValidationError(t, err, "require an agent")
}

func TestValidate_SetAndTaskConflict(t *testing.T) {
	_, err := Parse([]byte(`
name: conflict
steps:
  - id: work
    agent: a
    task: t
    set:
      key: value
`))
	assertValidationError(t, err, "cannot both set values and dispatch a task")
}

func TestValidate_ForwardReference(t *testing.T) {
	_, err := Parse([]byte(`
name: forward_ref
steps:
  - id: early
    agent: a
    task: "use {{later_result}}"
  - id: late
    agent: a
    task: t
    store_as: later_result
`))
	assertValidationError(t, err, "later_result")
}

func TestValidate_StoreAsVisibleToLaterSteps(t *testing.T) {
	_, err := Parse([]byte(`
name: ok_ref
steps:
  - id: first
    agent: a
    task: t
    store_as: result
  - id: second
    agent: a
    task: "use {{result.field}}"
`))
	assert.NoError(t, err)
}

func TestValidate_SetKeysVisibleToLaterSteps(t *testing.T) {
	_, err := Parse([]byte(`
name: set_ref
steps:
  - id: setup
    set:
      mode: fast
  - id: use
    agent: a
    task: "run in {{mode}}"
`))
	assert.NoError(t, err)
}

func TestValidate_LoopVarVisibleInsideStepOnly(t *testing.T) {
	_, err := Parse([]byte(`
name: loop_scope
inputs:
  - name: devices
    required: true
steps:
  - id: ping
    agent: a
    task: "ping {{device}}"
    loop:
      items: "{{devices}}"
      as: device
`))
	assert.NoError(t, err)

	_, err = Parse([]byte(`
name: loop_leak
inputs:
  - name: devices
    required: true
steps:
  - id: ping
    agent: a
    task: ping
    loop:
      items: "{{devices}}"
      as: device
  - id: after
    agent: a
    task: "use {{device}}"
`))
	assertValidationError(t, err, "device")
}

func TestValidate_ConditionKeysNotForwardChecked(t *testing.T) {
	// Conditions probe for data that may legitimately be absent.
	_, err := Parse([]byte(`
name: probe
steps:
  - id: maybe
    agent: a
    task: t
    condition:
      exists: anything_at_all
`))
	assert.NoError(t, err)
}

func TestValidate_MalformedCondition(t *testing.T) {
	_, err := Parse([]byte(`
name: bad_condition
steps:
  - id: work
    agent: a
    task: t
    condition:
      exists: a
      equals:
        key: b
        value: c
`))
	assertValidationError(t, err, "exactly one")
}

func TestValidate_NegativeRetries(t *testing.T) {
	_, err := Parse([]byte(`
name: negative
steps:
  - id: work
    agent: a
    task: t
    retries: -1
`))
	assertValidationError(t, err, "retries cannot be negative")
}

func TestValidate_LoopWithoutItems(t *testing.T) {
	_, err := Parse([]byte(`
name: itemless
steps:
  - id: work
    agent: a
    task: t
    loop:
      as: thing
`))
	assertValidationError(t, err, "loop requires items")
}

func TestValidate_ArgsRefsChecked(t *testing.T) {
	_, err := Parse([]byte(`
name: bad_args
steps:
  - id: work
    agent: a
    task: t
    args:
      value: "{{nowhere}}"
`))
	assertValidationError(t, err, "nowhere")
}
