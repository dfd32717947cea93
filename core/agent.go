package core

import "context"

// Agent defines the contract every capability variant in Atlas must implement.
//
// Agents are the primary processing units: given a task description and the
// current run Context, an agent performs a bounded reasoning-and-tool-calling
// loop and returns a structured Outcome. The workflow engine and orchestrator
// depend only on this contract and never branch on the concrete variant.
//
// Implementations must:
//   - Respect context cancellation on the ambient context.Context
//   - Return a non-nil Outcome whenever err is nil
//   - Keep per-call state out of the receiver so one agent value can serve
//     concurrent independent runs
type Agent interface {
	// Name returns the agent's identifier for logs and reports.
	Name() string

	// Description returns a short statement of the agent's capability domain.
	Description() string

	// Execute performs one reason-and-act cycle for the task. The env carries
	// variables accumulated by earlier steps of the same run; agents read from
	// it but publish results only through the returned Outcome.
	Execute(ctx context.Context, task string, env *Context) (*Outcome, error)
}

// Outcome is the structured result of one agent invocation. The workflow
// engine uses it to decide step success and to populate the Context with the
// step's output binding.
type Outcome struct {
	Success bool   `json:"success"`           // Whether the invocation achieved its task
	Result  any    `json:"result,omitempty"`  // Structured payload for output bindings
	Message string `json:"message,omitempty"` // Human-readable summary
	Err     string `json:"error,omitempty"`   // Error detail when Success is false
}

// ErrorText returns the most specific failure text available.
func (o *Outcome) ErrorText() string {
	if o.Err != "" {
		return o.Err
	}
	if o.Message != "" {
		return o.Message
	}
	return "unspecified failure"
}

// FailedOutcome builds a failure Outcome from an error.
func FailedOutcome(err error) *Outcome {
	return &Outcome{Success: false, Err: err.Error(), Message: err.Error()}
}
