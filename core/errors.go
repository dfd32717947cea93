package core

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed workflow definition. It is raised at
// load time; a definition that fails validation never starts a run.
type ValidationError struct {
	Workflow string `json:"workflow"`       // Workflow name, if known
	Step     string `json:"step,omitempty"` // Offending step id, if scoped to one
	Message  string `json:"message"`        // Human-readable error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("workflow %q: step %q: %s", e.Workflow, e.Step, e.Message)
	}
	return fmt.Sprintf("workflow %q: %s", e.Workflow, e.Message)
}

// MissingInputError reports required workflow inputs absent at run start.
// It is fatal before any step executes.
type MissingInputError struct {
	Workflow string   `json:"workflow"`
	Inputs   []string `json:"inputs"`
}

// Error implements the error interface.
func (e *MissingInputError) Error() string {
	return fmt.Sprintf("workflow %q: missing required inputs: %s", e.Workflow, strings.Join(e.Inputs, ", "))
}

// UnresolvedVariableError reports placeholder references to keys the Context
// does not hold. It is scoped to the step whose bindings referenced them and
// is subject to that step's retry policy.
type UnresolvedVariableError struct {
	Refs []string `json:"refs"`
}

// Error implements the error interface.
func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("unresolved context variables: %s", strings.Join(e.Refs, ", "))
}

// AgentError wraps a failure of an underlying capability (agent reasoning or
// one of its tool calls). Scoped to the invoking step.
type AgentError struct {
	Agent   string `json:"agent"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %q: %s", e.Agent, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *AgentError) Unwrap() error { return e.Err }

// UnknownAgentError reports a routing failure: the requested capability
// domain has no registered agent. Fatal to the enclosing call.
type UnknownAgentError struct {
	Domain string `json:"domain"`
}

// Error implements the error interface.
func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("no agent registered for domain %q", e.Domain)
}
