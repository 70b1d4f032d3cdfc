package sandbox

import (
	"errors"
	"fmt"
	"time"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ErrorKind classifies a run failure. Every kind is surfaced to the caller
// as data inside the ExecutionResult, never as a fault crossing the engine
// boundary.
type ErrorKind string

// Error kinds
const (
	ErrInvalidRequest   ErrorKind = "invalid_request"
	ErrRejectedBinding  ErrorKind = "rejected_binding"
	ErrSyntaxFault      ErrorKind = "syntax_fault"
	ErrRuntimeFault     ErrorKind = "runtime_fault"
	ErrTimedOut         ErrorKind = "timed_out"
	ErrResourceExceeded ErrorKind = "resource_exceeded"
	ErrTerminationFault ErrorKind = "termination_fault"
)

// Error is the structured error attached to a failed ExecutionResult.
type Error struct {
	Kind      ErrorKind     `json:"kind"`
	Msg       string        `json:"message"`
	Location  string        `json:"location,omitempty"`  // file:line:col for syntax faults
	Backtrace string        `json:"backtrace,omitempty"` // interpreter traceback for runtime faults
	Elapsed   time.Duration `json:"elapsed_ns,omitempty"`
	Limit     time.Duration `json:"limit_ns,omitempty"` // configured deadline for timed_out
	Steps     uint64        `json:"steps,omitempty"`    // configured ceiling for resource_exceeded
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Location, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func invalidRequest(format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidRequest, Msg: fmt.Sprintf(format, args...)}
}

func rejectedBinding(format string, args ...any) *Error {
	return &Error{Kind: ErrRejectedBinding, Msg: fmt.Sprintf(format, args...)}
}

func timedOut(elapsed, limit time.Duration, msg string) *Error {
	return &Error{Kind: ErrTimedOut, Msg: msg, Elapsed: elapsed, Limit: limit}
}

func resourceExceeded(elapsed time.Duration, steps uint64) *Error {
	return &Error{
		Kind:    ErrResourceExceeded,
		Msg:     fmt.Sprintf("execution step ceiling of %d exceeded", steps),
		Elapsed: elapsed,
		Steps:   steps,
	}
}

func terminationFault(elapsed, grace time.Duration) *Error {
	return &Error{
		Kind:    ErrTerminationFault,
		Msg:     fmt.Sprintf("isolation unit did not terminate within %s grace period", grace),
		Elapsed: elapsed,
	}
}

// Cancellation reasons the governor passes to starlark.Thread.Cancel. The
// reason is for the interpreter's error message only; classification works
// from the governor's own record of which signal it issued, never from
// error text the strategy could have authored itself.
const (
	reasonDeadline = "wall-clock deadline exceeded"
	reasonCaller   = "cancelled by caller"
)

// syntaxFault maps parse and resolution errors onto SyntaxFault with a
// source location. Returns nil for anything else.
func syntaxFault(err error, elapsed time.Duration) *Error {
	var syntaxErr syntax.Error
	if errors.As(err, &syntaxErr) {
		return &Error{
			Kind:     ErrSyntaxFault,
			Msg:      syntaxErr.Msg,
			Location: syntaxErr.Pos.String(),
			Elapsed:  elapsed,
		}
	}

	var resolveErrs resolve.ErrorList
	if errors.As(err, &resolveErrs) && len(resolveErrs) > 0 {
		first := resolveErrs[0]
		return &Error{
			Kind:     ErrSyntaxFault,
			Msg:      first.Msg,
			Location: first.Pos.String(),
			Elapsed:  elapsed,
		}
	}
	return nil
}

// runtimeFault wraps an error the program raised (or an interpreter panic)
// as RuntimeFault, keeping the interpreter traceback when there is one.
func runtimeFault(err error, elapsed time.Duration) *Error {
	e := &Error{Kind: ErrRuntimeFault, Msg: err.Error(), Elapsed: elapsed}
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		e.Backtrace = evalErr.Backtrace()
	}
	return e
}
