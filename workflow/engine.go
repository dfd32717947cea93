package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qbitorbit/atlas/core"
	"github.com/qbitorbit/atlas/logging"
)

// EngineOptions configure a workflow Engine.
type EngineOptions struct {
	// Logger receives run and step diagnostics. Defaults to a no-op logger.
	Logger logging.Logger

	// MaxParallel bounds concurrent iterations of a parallel loop step.
	// Zero means no limit.
	MaxParallel int
}

// Engine executes workflow definitions against a registry of agents.
//
// Steps run strictly in order. A step whose condition evaluates false is
// skipped without invoking its agent or consuming a retry. A step failure is
// retried per its policy; an unrecovered failure halts the run unless the
// step opts into continue_on_error, in which case the failure is recorded
// and the run proceeds. Steps after a halt are reported as not-executed.
type Engine struct {
	registry *core.Registry
	opts     EngineOptions
}

// NewEngine creates an engine dispatching to the given registry.
func NewEngine(registry *core.Registry, optFns ...func(o *EngineOptions)) *Engine {
	opts := EngineOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Engine{registry: registry, opts: opts}
}

// Run executes the definition with the given inputs. The returned error
// covers pre-run failures only (validation, missing inputs); step failures
// and cancellation are reflected in the report.
func (e *Engine) Run(ctx context.Context, def *Definition, inputs map[string]any) (*RunReport, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	env, err := e.seedContext(def, inputs)
	if err != nil {
		return nil, err
	}

	report := &RunReport{
		RunID:      newRunID(),
		Workflow:   def.Name,
		TotalSteps: len(def.Steps),
		Steps:      make([]StepResult, 0, len(def.Steps)),
		StartedAt:  time.Now(),
	}

	e.opts.Logger.Info("workflow started", "workflow", def.Name, "run_id", report.RunID, "steps", len(def.Steps))

	halted := false
	for i := range def.Steps {
		step := &def.Steps[i]

		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			e.opts.Logger.Warn("workflow cancelled", "workflow", def.Name, "run_id", report.RunID, "step", step.ID)
			e.recordRemaining(report, def.Steps[i:])
			break
		}
		if halted {
			e.recordRemaining(report, def.Steps[i:])
			break
		}

		result := e.runStep(ctx, step, env)

		// A step interrupted by cancellation is unfinished work, not a step
		// failure; the run as a whole is reported cancelled. A genuine agent
		// failure that merely coincides with cancellation keeps its error.
		if result.Status == StatusFailed && result.cancelled && ctx.Err() != nil {
			result.Status = StatusNotExecuted
			result.Error = ""
			report.Steps = append(report.Steps, result)
			report.Cancelled = true
			e.opts.Logger.Warn("workflow cancelled", "workflow", def.Name, "run_id", report.RunID, "step", step.ID)
			if i+1 < len(def.Steps) {
				e.recordRemaining(report, def.Steps[i+1:])
			}
			break
		}

		report.Steps = append(report.Steps, result)

		switch result.Status {
		case StatusCompleted, StatusSkipped:
			report.CompletedSteps++
		case StatusFailed:
			if !step.ContinueOnError {
				halted = true
				e.opts.Logger.Warn("workflow halted", "workflow", def.Name, "run_id", report.RunID, "step", step.ID, "error", result.Error)
			} else {
				e.opts.Logger.Warn("step failed, continuing", "workflow", def.Name, "run_id", report.RunID, "step", step.ID, "error", result.Error)
			}
		}

	}

	report.Success = !halted && !report.Cancelled
	report.Output = env.Snapshot()
	report.FinishedAt = time.Now()

	e.opts.Logger.Info("workflow finished",
		"workflow", def.Name,
		"run_id", report.RunID,
		"success", report.Success,
		"completed", report.CompletedSteps,
		"total", report.TotalSteps,
		"duration", report.Duration(),
	)

	return report, nil
}

// seedContext checks required inputs, applies defaults and seeds the shared
// context. Inputs not declared by the workflow pass through untouched.
func (e *Engine) seedContext(def *Definition, inputs map[string]any) (*core.Context, error) {
	seed := make(map[string]any, len(inputs))
	for key, value := range inputs {
		seed[key] = value
	}

	var missing []string
	for _, input := range def.Inputs {
		if _, ok := seed[input.Name]; ok {
			continue
		}
		if input.Default != nil {
			seed[input.Name] = input.Default
			continue
		}
		if input.Required {
			missing = append(missing, input.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &core.MissingInputError{Workflow: def.Name, Inputs: missing}
	}

	return core.NewSeededContext(seed), nil
}

// recordRemaining marks every step from the halt point as not-executed.
// When called after a recorded failure the failed step is already in the
// report, so only genuinely unreached steps are appended.
func (e *Engine) recordRemaining(report *RunReport, steps []Step) {
	for i := range steps {
		report.Steps = append(report.Steps, StepResult{
			ID:     steps[i].ID,
			Agent:  steps[i].Agent,
			Status: StatusNotExecuted,
		})
	}
}

// runStep executes one step to its terminal status.
func (e *Engine) runStep(ctx context.Context, step *Step, env *core.Context) StepResult {
	started := time.Now()
	result := StepResult{ID: step.ID, Agent: step.Agent}

	if step.Condition != nil && !step.Condition.Evaluate(env) {
		result.Status = StatusSkipped
		result.Duration = time.Since(started)
		e.opts.Logger.Debug("step skipped", "step", step.ID)
		return result
	}

	switch {
	case len(step.Set) > 0:
		e.runSetStep(step, env, &result)
	case step.Loop != nil:
		e.runLoopStep(ctx, step, env, &result)
	default:
		e.runTaskStep(ctx, step, env, &result)
	}

	result.Duration = time.Since(started)
	return result
}

// runSetStep resolves the assignment values and writes them to the context.
func (e *Engine) runSetStep(step *Step, env *core.Context, result *StepResult) {
	resolved := make(map[string]any, len(step.Set))
	for key, raw := range step.Set {
		value, err := env.Resolve(raw)
		if err != nil {
			result.Status = StatusFailed
			result.Attempts = 1
			result.Error = err.Error()
			return
		}
		resolved[key] = value
	}
	for key, value := range resolved {
		env.Set(key, value)
	}
	result.Status = StatusCompleted
	result.Attempts = 1
	result.Result = resolved
}

// runTaskStep dispatches the step to its agent with retries. store_as
// promotes the agent result into the shared context on success.
func (e *Engine) runTaskStep(ctx context.Context, step *Step, env *core.Context, result *StepResult) {
	outcome, attempts, err := e.attempt(ctx, step, env)
	result.Attempts = attempts
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		result.cancelled = isCancellation(err)
		return
	}

	result.Status = StatusCompleted
	result.Result = outcome.Result
	if step.StoreAs != "" {
		env.Set(step.StoreAs, outcome.Result)
	}
}

// runLoopStep resolves the loop collection and runs the step body once per
// item. Sequential loops share the parent context through per-iteration
// forks; parallel loops fan out via errgroup and merge results in item
// order. store_as collects the per-item results as a slice.
func (e *Engine) runLoopStep(ctx context.Context, step *Step, env *core.Context, result *StepResult) {
	items, err := e.resolveItems(step, env)
	if err != nil {
		result.Status = StatusFailed
		result.Attempts = 1
		result.Error = err.Error()
		return
	}

	results := make([]any, len(items))
	loopVar := step.Loop.Var()

	runIteration := func(iterCtx context.Context, index int) error {
		iterEnv := env.Fork()
		iterEnv.Set(loopVar, items[index])
		outcome, _, err := e.attempt(iterCtx, step, iterEnv)
		if err != nil {
			return fmt.Errorf("item %d: %w", index, err)
		}
		results[index] = outcome.Result
		return nil
	}

	if step.Loop.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		if e.opts.MaxParallel > 0 {
			g.SetLimit(e.opts.MaxParallel)
		}
		for index := range items {
			g.Go(func() error {
				return runIteration(gctx, index)
			})
		}
		err = g.Wait()
	} else {
		for index := range items {
			if err = ctx.Err(); err != nil {
				break
			}
			if err = runIteration(ctx, index); err != nil {
				break
			}
		}
	}

	result.Attempts = len(items)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		result.cancelled = isCancellation(err)
		return
	}

	result.Status = StatusCompleted
	result.Result = results
	if step.StoreAs != "" {
		env.Set(step.StoreAs, results)
	}
}

// isCancellation reports whether an error originates from context
// cancellation or deadline expiry rather than the step's own work.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// resolveItems turns the loop items expression into a concrete slice.
func (e *Engine) resolveItems(step *Step, env *core.Context) ([]any, error) {
	resolved, err := env.Resolve(step.Loop.Items)
	if err != nil {
		return nil, err
	}
	items, ok := resolved.([]any)
	if !ok {
		return nil, fmt.Errorf("loop items for step %q resolved to %T, want a list", step.ID, resolved)
	}
	return items, nil
}

// attempt runs the step body up to retries+1 times with the configured delay
// between attempts. Bindings resolve per attempt, so a reference to a missing
// context key fails the attempt and consumes the retry budget like any other
// step failure. A failure is a resolution error, an agent error or an outcome
// with Success false.
func (e *Engine) attempt(ctx context.Context, step *Step, env *core.Context) (*core.Outcome, int, error) {
	maxAttempts := step.Retries + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 && step.Delay > 0 {
			select {
			case <-time.After(step.Delay.Std()):
			case <-ctx.Done():
				return nil, attempt, ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, attempt, err
		}

		task, err := env.ResolveString(step.Task)
		if err != nil {
			lastErr = err
			continue
		}

		stepEnv := env
		if len(step.Args) > 0 {
			args, err := env.Resolve(step.Args)
			if err != nil {
				lastErr = err
				continue
			}
			stepEnv = env.Fork()
			for key, value := range args.(map[string]any) {
				stepEnv.Set(key, value)
			}
		}

		e.opts.Logger.Debug("dispatching step", "step", step.ID, "agent", step.Agent, "attempt", attempt)

		outcome, err := e.registry.Invoke(ctx, step.Agent, task, stepEnv)
		if err != nil {
			lastErr = err
			continue
		}
		if !outcome.Success {
			lastErr = fmt.Errorf("agent %s reported failure: %s", step.Agent, outcome.ErrorText())
			continue
		}
		return outcome, attempt, nil
	}

	return nil, maxAttempts, lastErr
}
