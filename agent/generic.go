package agent

import (
	"github.com/qbitorbit/atlas/model"
	"github.com/qbitorbit/atlas/tool"
)

// NewGenericAgent creates a plain reason-and-act agent for a custom
// capability domain. Callers supply the name and instructions and any tools
// the agent should carry.
func NewGenericAgent(name, description string, m model.Model, tools []tool.Tool, optFns ...func(o *Options)) *ReactAgent {
	a := NewReactAgent(name, description, m, optFns...)
	a.AddTools(tools...)
	return a
}
