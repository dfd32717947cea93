package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qbitorbit/atlas/core"
	"github.com/qbitorbit/atlas/logging"
	"github.com/qbitorbit/atlas/model"
)

// Options configure a ReactAgent.
type Options struct {
	// MaxIterations bounds the reason-and-act loop. Each iteration is one
	// model call followed by tool execution.
	MaxIterations int

	// ToolTimeout bounds each individual tool invocation. Zero disables the
	// per-tool deadline.
	ToolTimeout time.Duration

	// Skills are additional instruction blocks appended to the system prompt,
	// typically loaded from markdown skill files.
	Skills []string

	// Logger receives diagnostic output. Defaults to a no-op logger.
	Logger logging.Logger
}

// ReactAgent runs a bounded reason-and-act loop: the model is asked for the
// next action, requested tool calls are executed, and their results are fed
// back until the model answers with plain text or the iteration budget is
// exhausted.
type ReactAgent struct {
	BaseAgent
	model model.Model
	opts  Options
}

// NewReactAgent creates an agent driving the given model. Register tools via
// AddTools before executing tasks.
func NewReactAgent(name, description string, m model.Model, optFns ...func(o *Options)) *ReactAgent {
	opts := Options{
		MaxIterations: 10,
		ToolTimeout:   30 * time.Second,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	base := NewBaseAgent(name)
	base.SetDescription(description)

	return &ReactAgent{
		BaseAgent: base,
		model:     m,
		opts:      opts,
	}
}

// Execute runs the task to completion and returns the agent's outcome. The
// shared data environment is read-only here; promotion of results back into
// it is the caller's responsibility.
func (a *ReactAgent) Execute(ctx context.Context, task string, env *core.Context) (*core.Outcome, error) {
	req := model.Request{
		Instructions: a.instructions(),
		Messages:     []model.Message{{Role: model.RoleUser, Text: task}},
		Tools:        a.toolDefinitions(),
	}

	for iter := 0; iter < a.opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := a.model.Generate(ctx, req)
		if err != nil {
			return nil, &core.AgentError{Agent: a.Name(), Message: "model call failed", Err: err}
		}

		if !resp.HasToolCalls() {
			a.opts.Logger.Debug("agent finished", "agent", a.Name(), "iterations", iter+1)
			return &core.Outcome{Success: true, Result: resp.Text}, nil
		}

		req.Messages = append(req.Messages, model.Message{
			Role:      model.RoleAssistant,
			Text:      resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		results := make([]model.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			results = append(results, a.executeToolCall(ctx, call))
		}
		req.Messages = append(req.Messages, model.Message{
			Role:        model.RoleUser,
			ToolResults: results,
		})
	}

	return &core.Outcome{
		Success: false,
		Message: fmt.Sprintf("no final answer after %d iterations", a.opts.MaxIterations),
		Err:     "iteration limit exceeded",
	}, nil
}

// executeToolCall runs one tool invocation, mapping failures into error tool
// results so the model can observe and recover from them.
func (a *ReactAgent) executeToolCall(ctx context.Context, call model.ToolCall) model.ToolResult {
	t, ok := a.LookupTool(call.Name)
	if !ok {
		a.opts.Logger.Warn("unknown tool requested", "agent", a.Name(), "tool", call.Name)
		return model.ToolResult{
			CallID:  call.ID,
			Content: fmt.Sprintf("unknown tool: %s", call.Name),
			IsError: true,
		}
	}

	callCtx := ctx
	if a.opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.opts.ToolTimeout)
		defer cancel()
	}

	a.opts.Logger.Debug("executing tool", "agent", a.Name(), "tool", call.Name)

	result, err := t.Call(callCtx, call.Args)
	if err != nil {
		a.opts.Logger.Warn("tool failed", "agent", a.Name(), "tool", call.Name, "error", err)
		return model.ToolResult{
			CallID:  call.ID,
			Content: err.Error(),
			IsError: true,
		}
	}

	return model.ToolResult{
		CallID:  call.ID,
		Content: stringifyResult(result),
	}
}

// instructions assembles the system prompt from description, tool guidance
// and any loaded skills.
func (a *ReactAgent) instructions() string {
	var b strings.Builder
	b.WriteString(a.Description())
	for _, skill := range a.opts.Skills {
		if skill == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(skill)
	}
	return b.String()
}

func stringifyResult(result any) string {
	switch v := result.(type) {
	case nil:
		return "ok"
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

var _ core.Agent = (*ReactAgent)(nil)
