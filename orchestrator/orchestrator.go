// Package orchestrator routes incoming tasks to agents and named workflows.
// It is the single entry surface callers use: direct tasks are dispatched to
// one agent picked by routing rules; workflow requests resolve through the
// workflow store and run on the engine.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/qbitorbit/atlas/core"
	"github.com/qbitorbit/atlas/logging"
	"github.com/qbitorbit/atlas/workflow"
)

// Options configure an Orchestrator.
type Options struct {
	// DefaultDomain receives tasks no routing rule matches. Empty means
	// unmatched tasks fail with *core.UnknownAgentError.
	DefaultDomain string

	// Keywords maps capability domains to lowercase trigger words used for
	// inference when a task carries no explicit domain prefix.
	Keywords map[string][]string

	// Logger receives routing diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// Orchestrator dispatches direct tasks and workflow runs. Every call gets a
// fresh Context seeded only from its own hints or variables; no state crosses
// between calls.
type Orchestrator struct {
	registry *core.Registry
	store    *workflow.Store
	engine   *workflow.Engine
	opts     Options
}

// New creates an orchestrator over an agent registry and a workflow store.
func New(registry *core.Registry, store *workflow.Store, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Keywords: DefaultKeywords(),
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Orchestrator{
		registry: registry,
		store:    store,
		engine: workflow.NewEngine(registry, func(o *workflow.EngineOptions) {
			o.Logger = opts.Logger
		}),
		opts: opts,
	}
}

// DefaultKeywords returns the built-in routing vocabulary for the standard
// capability domains.
func DefaultKeywords() map[string][]string {
	return map[string][]string{
		"device": {"device", "battery", "shell", "adb", "screen", "reboot"},
		"docs":   {"document", "doc", "note", "write", "summarize", "report"},
	}
}

// Handle dispatches a task. A task that exactly names a registered workflow
// runs that workflow with the hints as its variables and summarizes the run
// as an Outcome; any other task is routed to one agent and executed directly.
// Hints seed the fresh per-call Context and are never persisted.
func (o *Orchestrator) Handle(ctx context.Context, task string, hints map[string]any) (*core.Outcome, error) {
	if def, ok := o.store.Get(strings.TrimSpace(task)); ok {
		report, err := o.engine.Run(ctx, def, hints)
		if err != nil {
			return nil, err
		}
		outcome := &core.Outcome{
			Success: report.Success,
			Result:  report.Output,
			Message: fmt.Sprintf("workflow %s: %d/%d steps completed", report.Workflow, report.CompletedSteps, report.TotalSteps),
		}
		if failed := report.FailedSteps(); len(failed) > 0 {
			outcome.Err = failed[0].Error
		}
		return outcome, nil
	}

	domain, cleaned, err := o.Route(task)
	if err != nil {
		return nil, err
	}

	o.opts.Logger.Info("task routed", "domain", domain, "task", cleaned)

	env := core.NewSeededContext(hints)
	return o.registry.Invoke(ctx, domain, cleaned, env)
}

// RunWorkflow resolves a named workflow and runs it with the given variables.
func (o *Orchestrator) RunWorkflow(ctx context.Context, name string, vars map[string]any) (*workflow.RunReport, error) {
	def, ok := o.store.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown workflow %q (have: %s)", name, strings.Join(o.store.Names(), ", "))
	}

	o.opts.Logger.Info("workflow dispatched", "workflow", name)
	return o.engine.Run(ctx, def, vars)
}

// Route picks the capability domain for a task. An explicit "domain: task"
// prefix naming a registered domain wins; otherwise the first registered
// domain whose keywords appear in the task is used; otherwise the default
// domain. The returned task has any recognized prefix stripped.
func (o *Orchestrator) Route(task string) (domain, cleaned string, err error) {
	if d, rest, ok := splitPrefix(task); ok {
		if _, lookupErr := o.registry.Lookup(d); lookupErr == nil {
			return d, rest, nil
		}
	}

	lowered := strings.ToLower(task)
	for _, d := range o.registry.Domains() {
		for _, keyword := range o.opts.Keywords[d] {
			if containsWord(lowered, keyword) {
				return d, task, nil
			}
		}
	}

	if o.opts.DefaultDomain != "" {
		return o.opts.DefaultDomain, task, nil
	}
	return "", "", &core.UnknownAgentError{Domain: firstWord(task)}
}

// splitPrefix parses an explicit "domain: task" prefix. The domain part must
// be a single bare word so ordinary sentences with colons do not trigger it.
func splitPrefix(task string) (domain, rest string, ok bool) {
	idx := strings.IndexByte(task, ':')
	if idx <= 0 {
		return "", "", false
	}
	candidate := strings.TrimSpace(task[:idx])
	if candidate == "" || strings.ContainsAny(candidate, " \t") {
		return "", "", false
	}
	return strings.ToLower(candidate), strings.TrimSpace(task[idx+1:]), true
}

// containsWord matches a keyword at a word start so "documents" still
// matches "document" but "deadbolt" does not match "adb".
func containsWord(text, word string) bool {
	idx := 0
	for {
		found := strings.Index(text[idx:], word)
		if found < 0 {
			return false
		}
		start := idx + found
		boundaryBefore := start == 0 || !isWordByte(text[start-1])
		if boundaryBefore {
			return true
		}
		idx = start + len(word)
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}

func firstWord(task string) string {
	fields := strings.Fields(task)
	if len(fields) == 0 {
		return task
	}
	return fields[0]
}
