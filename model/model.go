// Package model defines the language model abstraction used by agents and
// provides shared request/response types for provider implementations.
package model

import (
	"context"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in the conversation sent to a model. A message carries
// plain text, tool calls requested by the assistant, or tool results supplied
// back by the caller.
type Message struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolCall is a model request to invoke a named tool with decoded arguments.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult carries the outcome of a tool invocation back to the model.
type ToolResult struct {
	CallID  string
	Content string
	IsError bool
}

// ToolDefinition describes a callable tool advertised to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a single generation request.
type Request struct {
	// Instructions is the system prompt for this request.
	Instructions string

	// Messages is the conversation history, oldest first.
	Messages []Message

	// Tools lists the tools the model may call.
	Tools []ToolDefinition
}

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop    FinishReason = "stop"
	FinishReasonToolUse FinishReason = "tool_use"
	FinishReasonLength  FinishReason = "length"
	FinishReasonUnknown FinishReason = "unknown"
)

// TokenUsage reports token consumption for a single generation.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is the model output for one generation request.
type Response struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason FinishReason
	Usage        TokenUsage
}

// HasToolCalls reports whether the model requested any tool invocations.
func (r *Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Info identifies a model for logging and diagnostics.
type Info struct {
	Provider string
	Model    string
}

// Model is the interface implemented by language model providers.
type Model interface {
	// Generate performs one synchronous generation call.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns provider and model identifiers.
	Info() Info
}
