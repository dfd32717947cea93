package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbitorbit/atlas/core"
	"github.com/qbitorbit/atlas/workflow"
)

type recordingAgent struct {
	name  string
	tasks []string
	hints []map[string]any
}

func (r *recordingAgent) Name() string        { return r.name }
func (r *recordingAgent) Description() string { return "recording agent" }

func (r *recordingAgent) Execute(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
	r.tasks = append(r.tasks, task)
	r.hints = append(r.hints, env.Snapshot())
	return &core.Outcome{Success: true, Result: r.name + ": " + task}, nil
}

func setup() (*Orchestrator, *recordingAgent, *recordingAgent) {
	device := &recordingAgent{name: "device"}
	docsAgent := &recordingAgent{name: "docs"}

	registry := core.NewRegistry()
	registry.Register("device", device)
	registry.Register("docs", docsAgent)

	store := workflow.NewStore()
	def, err := workflow.Parse([]byte(`
name: battery_check
steps:
  - id: check
    agent: device
    task: check the battery
    store_as: battery
`))
	if err != nil {
		panic(err)
	}
	store.Add(def)

	return New(registry, store), device, docsAgent
}

func TestHandle_ExplicitPrefix(t *testing.T) {
	orch, device, _ := setup()

	outcome, err := orch.Handle(context.Background(), "device: reboot now", nil)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, []string{"reboot now"}, device.tasks)
}

func TestHandle_KeywordInference(t *testing.T) {
	orch, device, docsAgent := setup()

	_, err := orch.Handle(context.Background(), "check the battery please", nil)
	require.NoError(t, err)
	assert.Len(t, device.tasks, 1)

	_, err = orch.Handle(context.Background(), "write a note about today", nil)
	require.NoError(t, err)
	assert.Len(t, docsAgent.tasks, 1)
}

func TestHandle_UnroutableTask(t *testing.T) {
	orch, _, _ := setup()

	_, err := orch.Handle(context.Background(), "fold the laundry", nil)
	require.Error(t, err)

	var unknown *core.UnknownAgentError
	assert.True(t, errors.As(err, &unknown))
}

func TestHandle_DefaultDomain(t *testing.T) {
	device := &recordingAgent{name: "device"}
	registry := core.NewRegistry()
	registry.Register("device", device)

	orch := New(registry, workflow.NewStore(), func(o *Options) {
		o.DefaultDomain = "device"
	})

	_, err := orch.Handle(context.Background(), "fold the laundry", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"fold the laundry"}, device.tasks)
}

func TestHandle_HintsSeedFreshContext(t *testing.T) {
	orch, device, _ := setup()

	_, err := orch.Handle(context.Background(), "device: inspect", map[string]any{"serial": "ABC"})
	require.NoError(t, err)
	require.Len(t, device.hints, 1)
	assert.Equal(t, "ABC", device.hints[0]["serial"])

	// A second call does not see the first call's hints.
	_, err = orch.Handle(context.Background(), "device: inspect", nil)
	require.NoError(t, err)
	require.Len(t, device.hints, 2)
	_, carried := device.hints[1]["serial"]
	assert.False(t, carried)
}

func TestHandle_PrefixNotARegisteredDomain(t *testing.T) {
	orch, device, _ := setup()

	// "note:" is not a domain; the colon text routes by keywords instead.
	_, err := orch.Handle(context.Background(), "note: check device state", nil)
	require.NoError(t, err)
	require.Len(t, device.tasks, 1)
	assert.Equal(t, "note: check device state", device.tasks[0], "unrecognized prefix is kept")
}

func TestHandle_TaskNamingWorkflowRunsIt(t *testing.T) {
	orch, device, _ := setup()

	outcome, err := orch.Handle(context.Background(), "battery_check", nil)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Contains(t, outcome.Message, "battery_check")
	assert.Contains(t, outcome.Message, "1/1")
	assert.Equal(t, []string{"check the battery"}, device.tasks)

	result, ok := outcome.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "device: check the battery", result["battery"])
}

func TestRunWorkflow(t *testing.T) {
	orch, device, _ := setup()

	report, err := orch.RunWorkflow(context.Background(), "battery_check", nil)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 1, report.CompletedSteps)
	assert.Equal(t, []string{"check the battery"}, device.tasks)
}

func TestRunWorkflow_Unknown(t *testing.T) {
	orch, _, _ := setup()

	_, err := orch.RunWorkflow(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown workflow")
	assert.Contains(t, err.Error(), "battery_check")
}

func TestRoute_WordBoundaries(t *testing.T) {
	orch, _, _ := setup()

	domain, _, err := orch.Route("run adb devices")
	require.NoError(t, err)
	assert.Equal(t, "device", domain)

	_, _, err = orch.Route("check the deadbolt")
	assert.Error(t, err, "keyword inside a longer word does not match")
}
