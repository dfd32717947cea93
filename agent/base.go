// Package agent provides the agent implementations that execute workflow
// steps and direct tasks: a reason-and-act loop over a language model plus
// capability-specific variants for device control and document management.
package agent

import (
	"fmt"
	"sync"

	"github.com/qbitorbit/atlas/model"
	"github.com/qbitorbit/atlas/tool"
)

// BaseAgent bundles identity and tool registry helpers shared by concrete
// agent implementations. Embed it and supply an Execute method to satisfy
// the core.Agent interface. All exported methods are goroutine-safe unless
// otherwise documented.
type BaseAgent struct {
	name        string      // Human-readable name
	description string      // Detailed description of agent's purpose
	mu          sync.Mutex  // Protects concurrent access to the tool set
	tools       []tool.Tool // Registered tools in registration order
	toolIndex   map[string]tool.Tool
}

// NewBaseAgent constructs a BaseAgent with generated description (customizable via SetDescription).
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
		toolIndex:   make(map[string]tool.Tool),
	}
}

// Name returns the human-readable name for this agent.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a detailed description of this agent's purpose.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description.
// This is useful for providing more detailed information about the agent's capabilities.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// AddTools registers tools with this agent. A tool replacing an existing name
// keeps its original position in the registration order.
func (b *BaseAgent) AddTools(tools ...tool.Tool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range tools {
		if _, exists := b.toolIndex[t.Name()]; !exists {
			b.tools = append(b.tools, t)
		} else {
			for i, existing := range b.tools {
				if existing.Name() == t.Name() {
					b.tools[i] = t
					break
				}
			}
		}
		b.toolIndex[t.Name()] = t
	}
}

// Tools returns a copy of the registered tools for safe iteration.
func (b *BaseAgent) Tools() []tool.Tool {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]tool.Tool, len(b.tools))
	copy(result, b.tools)
	return result
}

// LookupTool returns the registered tool with the given name.
func (b *BaseAgent) LookupTool(name string) (tool.Tool, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.toolIndex[name]
	return t, ok
}

// toolDefinitions converts the registered tools into model tool definitions.
func (b *BaseAgent) toolDefinitions() []model.ToolDefinition {
	tools := b.Tools()
	defs := make([]model.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return defs
}
