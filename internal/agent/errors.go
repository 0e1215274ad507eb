package agent

import (
	"errors"
	"fmt"
)

// Kind classifies workflow failures.
type Kind int

const (
	GenerationFailure Kind = iota + 1
	UnknownCommand
	ToolExecutionError
	RetriesExhausted
	CorrectionGenerationFailure
	DeadlineExceeded
)

func (k Kind) String() string {
	switch k {
	case GenerationFailure:
		return "GenerationFailure"
	case UnknownCommand:
		return "UnknownCommand"
	case ToolExecutionError:
		return "ToolExecutionError"
	case RetriesExhausted:
		return "RetriesExhausted"
	case CorrectionGenerationFailure:
		return "CorrectionGenerationFailure"
	case DeadlineExceeded:
		return "DeadlineExceeded"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrGenerationFailure           = &Error{Kind: GenerationFailure}
	ErrUnknownCommand              = &Error{Kind: UnknownCommand}
	ErrToolExecution               = &Error{Kind: ToolExecutionError}
	ErrRetriesExhausted            = &Error{Kind: RetriesExhausted}
	ErrCorrectionGenerationFailure = &Error{Kind: CorrectionGenerationFailure}
	ErrDeadlineExceeded            = &Error{Kind: DeadlineExceeded}
)

// Error is the single terminal error a workflow reports.
type Error struct {
	Kind Kind
	// Cause is the kind of the last execution failure when Kind is
	// RetriesExhausted.
	Cause    Kind
	Attempts int
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case RetriesExhausted:
		return fmt.Sprintf("%s: plan execution failed after %d attempts. Last error (%s): %s", e.Kind, e.Attempts, e.Cause, e.Reason)
	default:
		return fmt.Sprintf("%s after %d attempts: %s", e.Kind, e.Attempts, e.Reason)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind, or by cause for exhausted retries.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Attempts != 0 || t.Reason != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind || (t.Kind != 0 && t.Kind == e.Cause)
}

func newError(kind Kind, attempts int, err error) *Error {
	return &Error{Kind: kind, Attempts: attempts, Reason: reason(err), Err: err}
}

func reason(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return err.Error()
}
