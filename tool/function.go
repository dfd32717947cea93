package tool

import (
	"context"
	"errors"

	"github.com/qbitorbit/atlas/internal/util"
)

// FunctionTool wraps a Go function as a Tool, handling parameter validation
// against a JSON schema before invoking the function.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

// FunctionToolOptions configures optional behavior for a FunctionTool.
type FunctionToolOptions struct {
	// Parameters overrides the JSON schema for the tool arguments. When nil,
	// a permissive schema accepting any object is used.
	Parameters map[string]any
}

// NewFunctionTool creates a tool from a plain function. The schema defaults
// to an open object; pass Parameters via optFns to constrain and document
// the arguments.
func NewFunctionTool(name, description string, fn func(ctx context.Context, args map[string]any) (any, error), optFns ...func(o *FunctionToolOptions)) *FunctionTool {
	opts := FunctionToolOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	parameters := opts.Parameters
	if parameters == nil {
		parameters = map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": true,
		}
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// MustNewTypedTool creates a tool whose schema is derived from the struct
// type T via reflection. Intended for package-level tool construction where
// the argument shape is known at compile time.
func MustNewTypedTool[T any](name, description string, fn func(ctx context.Context, args map[string]any) (any, error)) *FunctionTool {
	var zero T
	return NewFunctionTool(name, description, fn, func(o *FunctionToolOptions) {
		o.Parameters = util.CreateSchema(zero)
	})
}

// Name returns the unique identifier for this tool.
func (t *FunctionTool) Name() string {
	return t.name
}

// Description returns a human-readable description of what this tool does.
func (t *FunctionTool) Description() string {
	return t.description
}

// Parameters returns the JSON schema for the tool arguments.
func (t *FunctionTool) Parameters() map[string]any {
	return t.parameters
}

// Call validates args against the schema and invokes the wrapped function.
// Validation failures return a ToolError with code VALIDATION_ERROR; failures
// from the function itself are wrapped with code EXECUTION_ERROR unless the
// function already returned a ToolError.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, t.parameters); err != nil {
		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "VALIDATION_ERROR",
			Details: args,
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}
		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	return result, nil
}

var _ Tool = (*FunctionTool)(nil)
