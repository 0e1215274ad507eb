package plan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rahul/gdforge/internal/observability"
	"github.com/rahul/gdforge/internal/tools"
)

// Lookup resolves a command name to a tool. *tools.Registry implements it.
type Lookup interface {
	Get(name string) tools.Tool
}

// Failure describes the first command of a plan that did not succeed.
type Failure struct {
	Index   int
	Command Command
	Reason  string
	// Unknown is set when the command name is not registered.
	Unknown bool
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("command %d (%s) failed: %s", f.Index, f.Command.Name, f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }

// Outcome is the result of one plan execution. A nil Failure is success.
type Outcome struct {
	Executed int
	Failure  *Failure
}

func (o Outcome) OK() bool { return o.Failure == nil }

// DeadlineError is returned when a command ran out of time or the run was
// cancelled. It ends the workflow instead of triggering a correction.
type DeadlineError struct {
	Index   int
	Command string
	Err     error
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("command %d (%s) interrupted: %v", e.Index, e.Command, e.Err)
}

func (e *DeadlineError) Unwrap() error { return e.Err }

// Executor runs plans against a tool lookup, in order, stopping at the
// first failure. Commands that already ran are not undone.
type Executor struct {
	lookup  Lookup
	logger  *observability.Logger
	metrics *observability.Metrics
	timeout time.Duration
}

// NewExecutor creates an executor. A zero timeout leaves command
// deadlines to the caller's context.
func NewExecutor(lookup Lookup, logger *observability.Logger, metrics *observability.Metrics, timeout time.Duration) *Executor {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Executor{lookup: lookup, logger: logger, metrics: metrics, timeout: timeout}
}

// Execute runs p. Command failures are reported in the Outcome; the error
// is non-nil only when a deadline or cancellation interrupted execution.
func (e *Executor) Execute(ctx context.Context, p Plan) (Outcome, error) {
	runID := observability.RunID(ctx)
	var out Outcome

	for i, cmd := range p.Commands {
		if err := ctx.Err(); err != nil {
			return out, &DeadlineError{Index: i, Command: cmd.Name, Err: err}
		}

		tool := e.lookup.Get(cmd.Name)
		if tool == nil {
			reason := "unknown command: " + cmd.Name
			e.logger.LogToolResult(runID, i, cmd.Name, "", errors.New(reason))
			e.metrics.Command(cmd.Name, "unknown")
			out.Failure = &Failure{Index: i, Command: cmd, Reason: reason, Unknown: true}
			return out, nil
		}

		e.logger.LogToolCall(runID, i, cmd.Name, cmd.Parameters)
		result, err := e.invoke(ctx, tool, cmd.Parameters)
		out.Executed++
		e.logger.LogToolResult(runID, i, cmd.Name, result, err)

		if err != nil {
			var dl *DeadlineError
			if errors.As(err, &dl) {
				e.metrics.Command(cmd.Name, "deadline")
				dl.Index, dl.Command = i, cmd.Name
				return out, dl
			}
			e.metrics.Command(cmd.Name, "error")
			out.Failure = &Failure{Index: i, Command: cmd, Reason: err.Error(), Err: err}
			return out, nil
		}
		e.metrics.Command(cmd.Name, "ok")
	}
	return out, nil
}

func (e *Executor) invoke(ctx context.Context, tool tools.Tool, params map[string]any) (string, error) {
	cmdCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	result, err := tool.Invoke(cmdCtx, params)
	if err != nil && cmdCtx.Err() != nil {
		return "", &DeadlineError{Err: cmdCtx.Err()}
	}
	return result, err
}
