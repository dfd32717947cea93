package workflow

import (
	"time"

	"github.com/google/uuid"
)

// StepStatus is the terminal state of one step within a run.
type StepStatus string

const (
	// StatusCompleted marks a step whose agent (or set assignment) succeeded.
	StatusCompleted StepStatus = "completed"

	// StatusSkipped marks a step whose condition evaluated false.
	StatusSkipped StepStatus = "skipped"

	// StatusFailed marks a step that exhausted its attempts without success.
	StatusFailed StepStatus = "failed"

	// StatusNotExecuted marks a step never reached because the run halted.
	StatusNotExecuted StepStatus = "not-executed"
)

// StepResult records one step's outcome within a run report.
type StepResult struct {
	ID       string        `json:"id"`
	Agent    string        `json:"agent,omitempty"`
	Status   StepStatus    `json:"status"`
	Result   any           `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`

	// cancelled marks a failure whose cause was run cancellation rather than
	// the step itself. The engine reports such steps as not-executed.
	cancelled bool
}

// RunReport summarizes a workflow run. CompletedSteps counts both completed
// and skipped steps; a skipped step is a correct outcome, not a failure.
type RunReport struct {
	RunID          string         `json:"run_id"`
	Workflow       string         `json:"workflow"`
	Success        bool           `json:"success"`
	Cancelled      bool           `json:"cancelled,omitempty"`
	CompletedSteps int            `json:"completed_steps"`
	TotalSteps     int            `json:"total_steps"`
	Steps          []StepResult   `json:"steps"`
	Output         map[string]any `json:"output,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

// Duration returns the wall-clock duration of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedSteps returns the results of steps that failed.
func (r *RunReport) FailedSteps() []StepResult {
	var failed []StepResult
	for _, step := range r.Steps {
		if step.Status == StatusFailed {
			failed = append(failed, step)
		}
	}
	return failed
}

func newRunID() string {
	return uuid.New().String()
}
