package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbitorbit/atlas/core"
)

// stubAgent executes a scripted function, recording every task it receives.
type stubAgent struct {
	name string
	fn   func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error)

	mu    sync.Mutex
	tasks []string
}

func (s *stubAgent) Name() string        { return s.name }
func (s *stubAgent) Description() string { return "stub agent" }

func (s *stubAgent) Execute(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(ctx, task, env)
	}
	return &core.Outcome{Success: true, Result: "ok"}, nil
}

func (s *stubAgent) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func registryWith(agents ...*stubAgent) *core.Registry {
	registry := core.NewRegistry()
	for _, a := range agents {
		registry.Register(a.name, a)
	}
	return registry
}

func mustParse(t *testing.T, yaml string) *Definition {
	t.Helper()
	def, err := Parse([]byte(yaml))
	require.NoError(t, err)
	return def
}

func TestEngine_ThreeStepRun(t *testing.T) {
	device := &stubAgent{name: "device", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		if task == "connect" {
			return &core.Outcome{Success: true, Result: map[string]any{"serial": "ABC123"}}, nil
		}
		return &core.Outcome{Success: true, Result: map[string]any{"level": 85}}, nil
	}}
	docs := &stubAgent{name: "docs"}

	def := mustParse(t, `
name: device_check
inputs:
  - name: device_id
    required: true
steps:
  - id: connect
    agent: device
    task: connect
    store_as: connection
  - id: battery
    agent: device
    task: check battery
    store_as: battery
  - id: report
    agent: docs
    task: "Device {{connection.serial}} battery {{battery.level}}%"
`)

	engine := NewEngine(registryWith(device, docs))
	report, err := engine.Run(context.Background(), def, map[string]any{"device_id": "pixel"})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, 3, report.CompletedSteps)
	assert.Equal(t, 3, report.TotalSteps)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	require.Len(t, docs.Tasks(), 1)
	assert.Equal(t, "Device ABC123 battery 85%", docs.Tasks()[0])

	// store_as results surface in the final output snapshot.
	assert.Equal(t, map[string]any{"level": 85}, report.Output["battery"])
}

func TestEngine_MissingRequiredInput(t *testing.T) {
	def := mustParse(t, `
name: needs_input
inputs:
  - name: device_id
    required: true
steps:
  - id: connect
    agent: device
    task: connect
`)

	engine := NewEngine(registryWith(&stubAgent{name: "device"}))
	_, err := engine.Run(context.Background(), def, nil)
	require.Error(t, err)

	var missing *core.MissingInputError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"device_id"}, missing.Inputs)
}

func TestEngine_InputDefault(t *testing.T) {
	device := &stubAgent{name: "device"}
	def := mustParse(t, `
name: with_default
inputs:
  - name: device_id
    default: emulator
steps:
  - id: connect
    agent: device
    task: "connect {{device_id}}"
`)

	engine := NewEngine(registryWith(device))
	report, err := engine.Run(context.Background(), def, nil)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, []string{"connect emulator"}, device.Tasks())
}

func TestEngine_Retries(t *testing.T) {
	attempts := 0
	flaky := &stubAgent{name: "flaky", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient")
		}
		return &core.Outcome{Success: true, Result: "done"}, nil
	}}

	def := mustParse(t, `
name: retry_run
steps:
  - id: work
    agent: flaky
    task: work
    retries: 2
    delay: 1ms
`)

	engine := NewEngine(registryWith(flaky))
	report, err := engine.Run(context.Background(), def, nil)
	require.NoError(t, err)
	assert.True(t, report.Success)
	require.Len(t, report.Steps, 1)
	assert.Equal(t, StatusCompleted, report.Steps[0].Status)
	assert.Equal(t, 3, report.Steps[0].Attempts)
}

func TestEngine_RetriesExhausted(t *testing.T) {
	boom := &stubAgent{name: "boom", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		return nil, errors.New("permanent")
	}}

	def := mustParse(t, `
name: fail_run
steps:
  - id: work
    agent: boom
    task: work
    retries: 1
  - id: after
    agent: boom
    task: never
`)

	engine := NewEngine(registryWith(boom))
	report, err := engine.Run(context.Background(), def, nil)
	require.NoError(t, err)

	assert.False(t, report.Success)
	require.Len(t, report.Steps, 2)
	assert.Equal(t, StatusFailed, report.Steps[0].Status)
	assert.Equal(t, 2, report.Steps[0].Attempts)
	assert.Contains(t, report.Steps[0].Error, "permanent")
	assert.Equal(t, StatusNotExecuted, report.Steps[1].Status)
	assert.Equal(t, 0, report.CompletedSteps)
}

func TestEngine_UnsuccessfulOutcomeIsFailure(t *testing.T) {
	refuses := &stubAgent{name: "refuses", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		return &core.Outcome{Success: false, Err: "cannot comply"}, nil
	}}

	def := mustParse(t, `
name: outcome_failure
steps:
  - id: work
    agent: refuses
    task: work
`)

	engine := NewEngine(registryWith(refuses))
	report, err := engine.Run(context.Background(), def, nil)
	require.NoError(t, err)
	assert.False(t, report.Success)
	assert.Contains(t, report.Steps[0].Error, "cannot comply")
}

func TestEngine_ContinueOnError(t *testing.T) {
	boom := &stubAgent{name: "boom", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		return nil, errors.New("broken")
	}}
	fine := &stubAgent{name: "fine"}

	def := mustParse(t, `
name: tolerant_run
steps:
  - id: optional
    agent: boom
    task: try
    continue_on_error: true
  - id: main
    agent: fine
    task: work
`)

	engine := NewEngine(registryWith(boom, fine))
	report, err := engine.Run(context.Background(), def, nil)
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, StatusFailed, report.Steps[0].Status)
	assert.Equal(t, StatusCompleted, report.Steps[1].Status)
	assert.Equal(t, 1, report.CompletedSteps)
	require.Len(t, report.FailedSteps(), 1)
	assert.Equal(t, "optional", report.FailedSteps()[0].ID)
}

func TestEngine_ConditionSkips(t *testing.T) {
	device := &stubAgent{name: "device"}

	def := mustParse(t, `
name: conditional_run
steps:
  - id: guarded
    agent: device
    task: should not run
    condition:
      exists: missing_key
  - id: always
    agent: device
    task: runs
`)

	engine := NewEngine(registryWith(device))
	report, err := engine.Run(context.Background(), def, nil)
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, StatusSkipped, report.Steps[0].Status)
	assert.Equal(t, 0, report.Steps[0].Attempts, "skipped step consumes no attempt")
	assert.Equal(t, StatusCompleted, report.Steps[1].Status)
	assert.Equal(t, 2, report.CompletedSteps, "skipped counts as completed work")
	assert.Equal(t, []string{"runs"}, device.Tasks())
}

func TestEngine_SetStep(t *testing.T) {
	device := &stubAgent{name: "device"}

	def := mustParse(t, `
name: set_run
inputs:
  - name: device_id
    required: true
steps:
  - id: configure
    set:
      target: "{{device_id}}"
      mode: fast
  - id: use
    agent: device
    task: "connect {{target}} in {{mode}} mode"
`)

	engine := NewEngine(registryWith(device))
	report, err := engine.Run(context.Background(), def, map[string]any{"device_id": "pixel"})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, []string{"connect pixel in fast mode"}, device.Tasks())
	assert.Equal(t, "pixel", report.Output["target"])
}

func TestEngine_LoopSequential(t *testing.T) {
	echo := &stubAgent{name: "echo", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		return &core.Outcome{Success: true, Result: task}, nil
	}}

	def := mustParse(t, `
name: loop_run
inputs:
  - name: devices
    required: true
steps:
  - id: ping_all
    agent: echo
    task: "ping {{device}}"
    loop:
      items: "{{devices}}"
      as: device
    store_as: pings
`)

	engine := NewEngine(registryWith(echo))
	report, err := engine.Run(context.Background(), def, map[string]any{
		"devices": []any{"a", "b", "c"},
	})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, []string{"ping a", "ping b", "ping c"}, echo.Tasks())
	assert.Equal(t, []any{"ping a", "ping b", "ping c"}, report.Output["pings"])

	// The loop variable stays scoped to the loop body.
	_, exists := report.Output["device"]
	assert.False(t, exists)
}

func TestEngine_LoopParallelDeterministicOrder(t *testing.T) {
	echo := &stubAgent{name: "echo", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		return &core.Outcome{Success: true, Result: task}, nil
	}}

	def := mustParse(t, `
name: parallel_loop
inputs:
  - name: devices
    required: true
steps:
  - id: ping_all
    agent: echo
    task: "ping {{item}}"
    loop:
      items: "{{devices}}"
      parallel: true
    store_as: pings
`)

	engine := NewEngine(registryWith(echo), func(o *EngineOptions) {
		o.MaxParallel = 2
	})
	report, err := engine.Run(context.Background(), def, map[string]any{
		"devices": []any{"a", "b", "c", "d"},
	})
	require.NoError(t, err)

	assert.True(t, report.Success)
	// Results merge in item order regardless of completion order.
	assert.Equal(t, []any{"ping a", "ping b", "ping c", "ping d"}, report.Output["pings"])
	assert.ElementsMatch(t, []string{"ping a", "ping b", "ping c", "ping d"}, echo.Tasks())
}

func TestEngine_LoopIterationFailure(t *testing.T) {
	picky := &stubAgent{name: "picky", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		if task == "ping b" {
			return nil, errors.New("unreachable")
		}
		return &core.Outcome{Success: true, Result: task}, nil
	}}

	def := mustParse(t, `
name: loop_failure
inputs:
  - name: devices
    required: true
steps:
  - id: ping_all
    agent: picky
    task: "ping {{item}}"
    loop:
      items: "{{devices}}"
`)

	engine := NewEngine(registryWith(picky))
	report, err := engine.Run(context.Background(), def, map[string]any{
		"devices": []any{"a", "b", "c"},
	})
	require.NoError(t, err)

	assert.False(t, report.Success)
	assert.Equal(t, StatusFailed, report.Steps[0].Status)
	assert.Contains(t, report.Steps[0].Error, "unreachable")
	// Sequential loop halts at the failing item.
	assert.Equal(t, []string{"ping a", "ping b"}, picky.Tasks())
}

func TestEngine_LoopItemsNotAList(t *testing.T) {
	def := mustParse(t, `
name: bad_loop
inputs:
  - name: devices
    required: true
steps:
  - id: ping_all
    agent: echo
    task: "ping {{item}}"
    loop:
      items: "{{devices}}"
`)

	engine := NewEngine(registryWith(&stubAgent{name: "echo"}))
	report, err := engine.Run(context.Background(), def, map[string]any{"devices": "not-a-list"})
	require.NoError(t, err)

	assert.False(t, report.Success)
	assert.Contains(t, report.Steps[0].Error, "want a list")
}

func TestEngine_LoopRetriesPerIteration(t *testing.T) {
	failures := map[string]int{}
	flaky := &stubAgent{name: "flaky", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		failures[task]++
		if failures[task] < 2 {
			return nil, errors.New("transient")
		}
		return &core.Outcome{Success: true, Result: task}, nil
	}}

	def := mustParse(t, `
name: loop_retry
inputs:
  - name: devices
    required: true
steps:
  - id: ping_all
    agent: flaky
    task: "ping {{item}}"
    retries: 1
    loop:
      items: "{{devices}}"
    store_as: pings
`)

	engine := NewEngine(registryWith(flaky))
	report, err := engine.Run(context.Background(), def, map[string]any{"devices": []any{"a", "b"}})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, []any{"ping a", "ping b"}, report.Output["pings"])
	assert.Equal(t, 2, failures["ping a"], "each iteration retried independently")
	assert.Equal(t, 2, failures["ping b"])
}

func TestEngine_UnresolvedVariableFailsStep(t *testing.T) {
	device := &stubAgent{name: "device", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		// Succeeds but stores a result without the field the next step wants.
		return &core.Outcome{Success: true, Result: map[string]any{"other": 1}}, nil
	}}

	def := mustParse(t, `
name: unresolved_run
steps:
  - id: first
    agent: device
    task: inspect
    store_as: result
  - id: second
    agent: device
    task: "use {{result.level}}"
`)

	engine := NewEngine(registryWith(device))
	report, err := engine.Run(context.Background(), def, nil)
	require.NoError(t, err)

	assert.False(t, report.Success)
	assert.Equal(t, StatusFailed, report.Steps[1].Status)
	assert.Equal(t, 1, report.Steps[1].Attempts)
	assert.Contains(t, report.Steps[1].Error, "result.level")
}

func TestEngine_ResolutionFailureConsumesRetries(t *testing.T) {
	device := &stubAgent{name: "device", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		return &core.Outcome{Success: true, Result: map[string]any{"other": 1}}, nil
	}}

	def := mustParse(t, `
name: unresolved_retry_run
steps:
  - id: first
    agent: device
    task: inspect
    store_as: result
  - id: second
    agent: device
    task: "use {{result.level}}"
    retries: 2
`)

	engine := NewEngine(registryWith(device))
	report, err := engine.Run(context.Background(), def, nil)
	require.NoError(t, err)

	assert.False(t, report.Success)
	assert.Equal(t, StatusFailed, report.Steps[1].Status)
	assert.Equal(t, 3, report.Steps[1].Attempts, "resolution failures consume the retry budget")
	assert.Contains(t, report.Steps[1].Error, "result.level")
	assert.Equal(t, []string{"inspect"}, device.Tasks(), "agent never dispatched without resolved bindings")
}

func TestEngine_ArgsVisibleToAgent(t *testing.T) {
	var seen any
	device := &stubAgent{name: "device", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		seen, _ = env.Get("timeout")
		return &core.Outcome{Success: true}, nil
	}}

	def := mustParse(t, `
name: args_run
inputs:
  - name: wait
    required: true
steps:
  - id: work
    agent: device
    task: work
    args:
      timeout: "{{wait}}"
`)

	engine := NewEngine(registryWith(device))
	report, err := engine.Run(context.Background(), def, map[string]any{"wait": 30})
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 30, seen, "single-placeholder arg keeps its original type")
}

func TestEngine_EmptyWorkflow(t *testing.T) {
	def := mustParse(t, `
name: empty
steps: []
`)

	engine := NewEngine(core.NewRegistry())
	report, err := engine.Run(context.Background(), def, nil)
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, 0, report.TotalSteps)
	assert.Equal(t, 0, report.CompletedSteps)
	assert.Empty(t, report.Steps)
}

func TestEngine_CancelledBeforeStart(t *testing.T) {
	device := &stubAgent{name: "device"}
	def := mustParse(t, `
name: cancel_run
steps:
  - id: one
    agent: device
    task: one
  - id: two
    agent: device
    task: two
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(registryWith(device))
	report, err := engine.Run(ctx, def, nil)
	require.NoError(t, err)

	assert.False(t, report.Success)
	assert.True(t, report.Cancelled)
	require.Len(t, report.Steps, 2)
	assert.Equal(t, StatusNotExecuted, report.Steps[0].Status)
	assert.Equal(t, StatusNotExecuted, report.Steps[1].Status)
	assert.Empty(t, device.Tasks())
}

func TestEngine_CancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	device := &stubAgent{name: "device", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		if task == "one" {
			cancel()
			return &core.Outcome{Success: true}, nil
		}
		return &core.Outcome{Success: true}, nil
	}}

	def := mustParse(t, `
name: midrun_cancel
steps:
  - id: one
    agent: device
    task: one
  - id: two
    agent: device
    task: two
`)

	engine := NewEngine(registryWith(device))
	report, err := engine.Run(ctx, def, nil)
	require.NoError(t, err)

	assert.False(t, report.Success)
	assert.True(t, report.Cancelled)
	assert.Equal(t, StatusCompleted, report.Steps[0].Status)
	assert.Equal(t, StatusNotExecuted, report.Steps[1].Status)
	assert.Equal(t, []string{"one"}, device.Tasks(), "no step dispatched after cancellation")
}

func TestEngine_FailureDuringCancellationKeepsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	device := &stubAgent{name: "device", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		// A real step failure that happens to coincide with cancellation.
		cancel()
		return nil, errors.New("flash write failed")
	}}

	def := mustParse(t, `
name: failed_while_cancelling
steps:
  - id: flash
    agent: device
    task: flash
  - id: verify
    agent: device
    task: verify
`)

	engine := NewEngine(registryWith(device))
	report, err := engine.Run(ctx, def, nil)
	require.NoError(t, err)

	assert.False(t, report.Success)
	assert.Equal(t, StatusFailed, report.Steps[0].Status)
	assert.Contains(t, report.Steps[0].Error, "flash write failed")
	assert.Equal(t, StatusNotExecuted, report.Steps[1].Status)
}

func TestEngine_UnknownAgent(t *testing.T) {
	def := mustParse(t, `
name: unknown_agent
steps:
  - id: work
    agent: ghost
    task: boo
`)

	engine := NewEngine(core.NewRegistry())
	report, err := engine.Run(context.Background(), def, nil)
	require.NoError(t, err)

	assert.False(t, report.Success)
	assert.Equal(t, StatusFailed, report.Steps[0].Status)
	assert.Contains(t, report.Steps[0].Error, "ghost")
}

func TestEngine_NestedLoopShadowing(t *testing.T) {
	var tasks []string
	echo := &stubAgent{name: "echo", fn: func(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
		tasks = append(tasks, task)
		return &core.Outcome{Success: true, Result: task}, nil
	}}

	// Two loop steps reusing the default variable name do not leak into each
	// other; each fork scopes its own loop variable.
	def := mustParse(t, `
name: two_loops
inputs:
  - name: first
    required: true
  - name: second
    required: true
steps:
  - id: loop_one
    agent: echo
    task: "a {{item}}"
    loop:
      items: "{{first}}"
  - id: loop_two
    agent: echo
    task: "b {{item}}"
    loop:
      items: "{{second}}"
`)

	engine := NewEngine(registryWith(echo))
	report, err := engine.Run(context.Background(), def, map[string]any{
		"first":  []any{1, 2},
		"second": []any{3},
	})
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, []string{"a 1", "a 2", "b 3"}, tasks)
}
