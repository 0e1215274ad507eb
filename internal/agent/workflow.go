package agent

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/rahul/gdforge/internal/observability"
	"github.com/rahul/gdforge/internal/plan"
)

// MaxAttempts is the number of plan executions a workflow may make.
const MaxAttempts = 3

const successMessage = "Plan executed successfully."

// Planner produces first and corrected plans. *Pipeline implements it.
type Planner interface {
	Plan(ctx context.Context, request string) (plan.Plan, error)
	Correct(ctx context.Context, c Correction) (plan.Plan, error)
}

// Runner executes one plan. *plan.Executor implements it.
type Runner interface {
	Execute(ctx context.Context, p plan.Plan) (plan.Outcome, error)
}

// Recorder receives the run's progress. Its errors are logged and
// otherwise ignored.
type Recorder interface {
	StartRun(runID, prompt string) error
	RecordAttempt(runID string, attempt int, p plan.Plan, failure *plan.Failure) error
	FinishRun(runID string, attempts, corrections int, err error) error
}

// RetryState belongs to a single Execute call.
type RetryState struct {
	Attempt     int
	MaxAttempts int
	LastError   *plan.Failure
	Current     plan.Plan
}

// Result describes a successful run.
type Result struct {
	RunID       string
	Attempts    int
	Corrections int
	Message     string
	Plan        plan.Plan
}

// Workflow is the entry point: request in, executed plan or one terminal
// error out.
type Workflow struct {
	Planner  Planner
	Runner   Runner
	Recorder Recorder
	Status   *observability.Status
	Logger   *observability.Logger
	Metrics  *observability.Metrics
}

func NewWorkflow(planner Planner, runner Runner, logger *observability.Logger, metrics *observability.Metrics) *Workflow {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Workflow{Planner: planner, Runner: runner, Logger: logger, Metrics: metrics}
}

// Execute plans and runs prompt. Execution failures are corrected up to
// MaxAttempts executions; generation failures end the run immediately.
func (w *Workflow) Execute(ctx context.Context, prompt string) (*Result, error) {
	runID := uuid.NewString()
	ctx = observability.WithRunID(ctx, runID)
	w.Logger.LogWorkflowStart(runID, prompt)
	w.journal(runID, func(r Recorder) error { return r.StartRun(runID, prompt) })
	defer w.Status.Set(observability.PhaseIdle, "", 0)

	first, err := w.Planner.Plan(ctx, prompt)
	if err != nil {
		return nil, w.fail(runID, 0, 0, generationError(GenerationFailure, 0, err))
	}

	state := RetryState{MaxAttempts: MaxAttempts, Current: first}
	corrections := 0
	for {
		attempt := state.Attempt + 1
		w.Status.Set(observability.PhaseExecuting, prompt, attempt)
		w.Metrics.Attempt()
		w.Logger.LogPlan(runID, attempt, state.Current.Names())

		out, err := w.Runner.Execute(ctx, state.Current)
		if err != nil {
			return nil, w.fail(runID, attempt, corrections, newError(DeadlineExceeded, attempt, err))
		}
		w.journal(runID, func(r Recorder) error { return r.RecordAttempt(runID, attempt, state.Current, out.Failure) })

		if out.OK() {
			w.Logger.LogAttempt(runID, attempt, state.MaxAttempts, -1, "")
			w.Logger.LogWorkflowEnd(runID, attempt, nil)
			w.Metrics.Workflow("success")
			w.journal(runID, func(r Recorder) error { return r.FinishRun(runID, attempt, corrections, nil) })
			return &Result{
				RunID:       runID,
				Attempts:    attempt,
				Corrections: corrections,
				Message:     successMessage,
				Plan:        state.Current,
			}, nil
		}

		state.LastError = out.Failure
		w.Logger.LogAttempt(runID, attempt, state.MaxAttempts, out.Failure.Index, out.Failure.Reason)

		if state.Attempt >= state.MaxAttempts-1 {
			return nil, w.fail(runID, attempt, corrections, &Error{
				Kind:     RetriesExhausted,
				Cause:    failureKind(state.LastError),
				Attempts: attempt,
				Reason:   state.LastError.Reason,
				Err:      state.LastError,
			})
		}

		w.Status.Set(observability.PhaseCorrecting, prompt, attempt)
		w.Metrics.Correction()
		w.Logger.LogCorrection(runID, attempt, out.Failure.Reason)
		corrections++

		next, err := w.Planner.Correct(ctx, Correction{FailedPlan: state.Current, Failure: *out.Failure})
		if err != nil {
			return nil, w.fail(runID, attempt, corrections, generationError(CorrectionGenerationFailure, attempt, err))
		}
		state.Current = next
		state.Attempt++
	}
}

func (w *Workflow) fail(runID string, attempts, corrections int, err *Error) error {
	w.Logger.LogWorkflowEnd(runID, attempts, err)
	w.Metrics.Workflow(err.Kind.String())
	w.journal(runID, func(r Recorder) error { return r.FinishRun(runID, attempts, corrections, err) })
	return err
}

func (w *Workflow) journal(runID string, write func(Recorder) error) {
	if w.Recorder == nil {
		return
	}
	if err := write(w.Recorder); err != nil {
		w.Logger.LogJournalError(runID, err)
	}
}

// generationError classifies a failed generation: interrupted calls are
// DeadlineExceeded, everything else is kind.
func generationError(kind Kind, attempts int, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(DeadlineExceeded, attempts, err)
	}
	return newError(kind, attempts, err)
}

func failureKind(f *plan.Failure) Kind {
	if f != nil && f.Unknown {
		return UnknownCommand
	}
	return ToolExecutionError
}
