package sandbox

import (
	"context"
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.uber.org/zap"
)

// State is the governor's per-run state machine:
// Pending -> Running -> {Completed, TimedOut, ResourceExceeded, Crashed}.
// A unit that survives forced termination past the grace period is
// additionally reported as a termination fault, an operational condition
// distinct from any user-triggered failure.
type State int

// Run states
const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateTimedOut
	StateResourceExceeded
	StateCrashed
)

// String returns the state name used in logs and metrics labels.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateResourceExceeded:
		return "resource_exceeded"
	case StateCrashed:
		return "crashed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Unit is the work the governor supervises: one interpreter invocation on
// one isolation unit. Tests substitute their own units to exercise the
// supervision paths without an interpreter.
type Unit func(thread *starlark.Thread) (starlark.StringDict, error)

// Outcome is the governor's verdict on one run.
type Outcome struct {
	State   State
	Globals starlark.StringDict
	Err     *Error
	Elapsed time.Duration
}

// Governor enforces the wall-clock deadline and the execution-step ceiling
// for a single run and owns forced termination. Both limits are enforced
// from outside the run: untrusted code is never trusted to self-limit.
//
// The step ceiling is the second, independent bound the deadline alone
// cannot provide: it is proportional to work performed rather than time
// elapsed. A memory ceiling is not enforceable for an in-process
// interpreter thread; hosts needing one must layer an OS-level limit
// around the whole process.
type Governor struct {
	logger   *zap.Logger
	timeout  time.Duration
	grace    time.Duration
	maxSteps uint64
}

// NewGovernor creates a governor for one run's limits.
func NewGovernor(logger *zap.Logger, timeout, grace time.Duration, maxSteps uint64) *Governor {
	return &Governor{
		logger:   logger,
		timeout:  timeout,
		grace:    grace,
		maxSteps: maxSteps,
	}
}

type unitExit struct {
	globals starlark.StringDict
	err     error
}

// Execute dispatches the unit onto its own goroutine, arms the deadline,
// and supervises until a terminal state. Caller cancellation via ctx is
// propagated as a forced-termination signal identical to a deadline hit.
func (g *Governor) Execute(ctx context.Context, thread *starlark.Thread, unit Unit) Outcome {
	if g.maxSteps > 0 {
		thread.SetMaxExecutionSteps(g.maxSteps)
	}

	start := time.Now()
	exit := make(chan unitExit, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				exit <- unitExit{err: fmt.Errorf("interpreter panic: %v", r)}
			}
		}()
		globals, err := unit(thread)
		exit <- unitExit{globals: globals, err: err}
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case e := <-exit:
		return g.classify(thread, e, time.Since(start), "")

	case <-timer.C:
		thread.Cancel(reasonDeadline)
		return g.awaitTermination(thread, exit, start, reasonDeadline)

	case <-ctx.Done():
		thread.Cancel(reasonCaller)
		return g.awaitTermination(thread, exit, start, reasonCaller)
	}
}

// awaitTermination waits the bounded grace period for a forcibly
// terminated unit to die. Non-termination is an operational fault surfaced
// to the host, never silently ignored.
func (g *Governor) awaitTermination(thread *starlark.Thread, exit chan unitExit, start time.Time, reason string) Outcome {
	graceTimer := time.NewTimer(g.grace)
	defer graceTimer.Stop()

	select {
	case e := <-exit:
		return g.classify(thread, e, time.Since(start), reason)
	case <-graceTimer.C:
		elapsed := time.Since(start)
		g.logger.Error("isolation unit survived forced termination",
			zap.String("reason", reason),
			zap.Duration("grace_period", g.grace),
			zap.Duration("elapsed", elapsed))
		return Outcome{
			State:   StateCrashed,
			Err:     terminationFault(elapsed, g.grace),
			Elapsed: elapsed,
		}
	}
}

// classify maps a unit's exit onto the taxonomy from facts the governor
// holds itself: the cancellation signal it issued (if any) and the thread's
// step counter against the armed ceiling. Error text is never consulted for
// limit kinds, so a program raising "too many steps" or "deadline exceeded"
// as its own message stays a plain RuntimeFault.
func (g *Governor) classify(thread *starlark.Thread, e unitExit, elapsed time.Duration, cancelReason string) Outcome {
	if e.err == nil {
		return Outcome{State: StateCompleted, Globals: e.globals, Elapsed: elapsed}
	}

	if serr := syntaxFault(e.err, elapsed); serr != nil {
		return Outcome{State: StateCrashed, Err: serr, Elapsed: elapsed}
	}

	switch cancelReason {
	case reasonDeadline, reasonCaller:
		return Outcome{
			State:   StateTimedOut,
			Err:     timedOut(elapsed, g.timeout, cancelReason),
			Elapsed: elapsed,
		}
	}

	if g.maxSteps > 0 && thread.ExecutionSteps() >= g.maxSteps {
		return Outcome{
			State:   StateResourceExceeded,
			Err:     resourceExceeded(elapsed, g.maxSteps),
			Elapsed: elapsed,
		}
	}

	return Outcome{State: StateCrashed, Err: runtimeFault(e.err, elapsed), Elapsed: elapsed}
}
