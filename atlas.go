// Package atlas provides a high-level façade over the agent registry,
// workflow engine and orchestrator enabling rapid construction of automation
// pipelines. Most applications interact with this package by:
//  1. Creating an Atlas via New() (optionally supplying a workflow directory,
//     skills directory and logger)
//  2. Registering one or more agents (device, docs, custom)
//  3. Handling direct tasks (Handle) or running named workflows (RunWorkflow)
//
// The façade delegates dispatching to orchestrator.Orchestrator while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing.
package atlas

import (
	"context"

	"github.com/qbitorbit/atlas/core"
	"github.com/qbitorbit/atlas/logging"
	"github.com/qbitorbit/atlas/orchestrator"
	"github.com/qbitorbit/atlas/workflow"
)

// Options configures the Atlas instance.
type Options struct {
	// WorkflowDir is loaded into the workflow store at construction. Empty
	// skips loading; definitions can still be added via AddWorkflow.
	WorkflowDir string

	// DefaultDomain receives tasks no routing rule matches.
	DefaultDomain string

	// Keywords overrides the routing vocabulary. Nil keeps the defaults.
	Keywords map[string][]string

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Atlas is the high-level façade aggregating the registry, workflow store and
// orchestrator.
type Atlas struct {
	opts     Options
	registry *core.Registry
	store    *workflow.Store
	orch     *orchestrator.Orchestrator
}

// New creates a new Atlas instance with optional overrides. Loading the
// workflow directory fails fast so a malformed definition is caught at
// startup, not mid-run.
func New(optFns ...func(o *Options)) (*Atlas, error) {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	registry := core.NewRegistry()
	store := workflow.NewStore(func(o *workflow.StoreOptions) {
		o.Logger = opts.Logger
	})

	if opts.WorkflowDir != "" {
		if err := store.LoadDir(opts.WorkflowDir); err != nil {
			return nil, err
		}
	}

	orch := orchestrator.New(registry, store, func(o *orchestrator.Options) {
		o.DefaultDomain = opts.DefaultDomain
		if opts.Keywords != nil {
			o.Keywords = opts.Keywords
		}
		o.Logger = opts.Logger
	})

	return &Atlas{
		opts:     opts,
		registry: registry,
		store:    store,
		orch:     orch,
	}, nil
}

// RegisterAgent makes an agent available under the given capability domain.
func (a *Atlas) RegisterAgent(domain string, agent core.Agent) {
	a.registry.Register(domain, agent)
}

// AddWorkflow registers a workflow definition programmatically.
func (a *Atlas) AddWorkflow(def *workflow.Definition) {
	a.store.Add(def)
}

// Handle dispatches a task synchronously. A task that names a registered
// workflow runs it; any other task is routed to a single agent.
func (a *Atlas) Handle(ctx context.Context, task string, hints map[string]any) (*core.Outcome, error) {
	return a.orch.Handle(ctx, task, hints)
}

// RunWorkflow runs a named workflow with the given variables.
func (a *Atlas) RunWorkflow(ctx context.Context, name string, vars map[string]any) (*workflow.RunReport, error) {
	return a.orch.RunWorkflow(ctx, name, vars)
}

// Workflows returns the names of the registered workflows.
func (a *Atlas) Workflows() []string {
	return a.store.Names()
}

// Domains returns the registered capability domains.
func (a *Atlas) Domains() []string {
	return a.registry.Domains()
}
