// Package tool implements the function / tool calling subsystem that lets
// agents invoke structured capabilities (device commands, document CRUD,
// computations) with schema validated arguments and consistent error handling.
package tool

import (
	"context"
	"fmt"

	"github.com/qbitorbit/atlas/internal/util"
)

// Tool defines the interface for extending agent capabilities with callable
// operations.
//
// Tools are registered per agent variant, giving each capability domain a
// bounded operation set. An agent may call a tool zero or more times within
// one reason-and-act cycle before producing its terminal outcome.
//
// Tool implementations should:
//   - Provide clear, descriptive names (snake_case recommended)
//   - Define a proper JSON schema for parameters
//   - Be thread-safe; one tool value may serve concurrent runs
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the language model to guide tool selection.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool synchronously with already-decoded arguments,
	// returning a result or an error. Implementations must respect ctx
	// cancellation for long-running operations.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
