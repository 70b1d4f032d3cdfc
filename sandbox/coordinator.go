package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"go.uber.org/zap"

	"github.com/quantfold/stratbox/metrics"
	"github.com/quantfold/stratbox/policy"
)

// Options fixes the engine-wide limits at construction time. Requests can
// select a timeout within MaxTimeout and a tier, nothing else.
type Options struct {
	// MaxTimeout is the platform ceiling on per-request timeouts.
	MaxTimeout time.Duration

	// GracePeriod is the bounded wait after a forced-termination signal
	// before non-termination becomes an operational fault.
	GracePeriod time.Duration

	// OutputCapacity is the per-channel capture limit in bytes.
	OutputCapacity int

	// MaxConcurrent caps in-flight runs; excess requests queue. Zero
	// disables the ceiling.
	MaxConcurrent int

	// MaxSteps is the execution-step ceiling per run. Zero disables it.
	MaxSteps uint64
}

func (o Options) withDefaults() Options {
	if o.MaxTimeout <= 0 {
		o.MaxTimeout = 30 * time.Second
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = 500 * time.Millisecond
	}
	if o.OutputCapacity <= 0 {
		o.OutputCapacity = 1 << 20
	}
	return o
}

// Coordinator orchestrates sandboxed runs: it validates requests, builds
// per-run contexts, dispatches under the governor wrapped in output
// capture, and assembles results. It holds no mutable state shared between
// runs beyond the frozen policy table, so it is safe for arbitrarily many
// concurrent callers.
type Coordinator struct {
	logger  *zap.Logger
	opts    Options
	table   *policy.Table
	metrics *metrics.Metrics
	sem     chan struct{}
}

var _ Engine = (*Coordinator)(nil)

// NewCoordinator creates the engine. metrics may be nil for library use.
func NewCoordinator(logger *zap.Logger, opts Options, table *policy.Table, m *metrics.Metrics) *Coordinator {
	opts = opts.withDefaults()
	c := &Coordinator{
		logger:  logger,
		opts:    opts,
		table:   table,
		metrics: m,
	}
	if opts.MaxConcurrent > 0 {
		c.sem = make(chan struct{}, opts.MaxConcurrent)
	}
	return c
}

// Run executes one request end to end. Every failure in the taxonomy is
// returned as data inside the ExecutionResult; the error return is reserved
// for host-level faults and is nil in normal operation.
func (c *Coordinator) Run(ctx context.Context, req ExecutionRequest) (ExecutionResult, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	res := ExecutionResult{RunID: req.RunID}

	if serr := c.validate(req); serr != nil {
		return c.finish(req, res, serr), nil
	}

	if c.sem != nil {
		queued := time.Now()
		select {
		case c.sem <- struct{}{}:
			c.metrics.ObserveQueueWait(time.Since(queued))
			defer func() { <-c.sem }()
		case <-ctx.Done():
			return c.finish(req, res, timedOut(time.Since(queued), req.Timeout, "cancelled while queued")), nil
		}
	}

	ec, serr := BuildContext(c.table.Resolve(req.Tier), req.Bindings)
	if serr != nil {
		return c.finish(req, res, serr), nil
	}

	capture := NewCapture(c.opts.OutputCapacity)
	thread := &starlark.Thread{Name: req.RunID, Print: capture.PrintHook()}
	governor := NewGovernor(c.logger, req.Timeout, c.opts.GracePeriod, c.opts.MaxSteps)

	outcome := governor.Execute(ctx, thread, func(th *starlark.Thread) (starlark.StringDict, error) {
		return starlark.ExecFileOptions(fileOptions(), th, req.RunID+".star", req.Code, ec.Predeclared)
	})

	res.Elapsed = outcome.Elapsed
	switch outcome.State {
	case StateCompleted:
		res.Succeeded = true
		if rv, ok := outcome.Globals[ResultName]; ok {
			v, err := FromStarlark(rv)
			if err != nil {
				res.Succeeded = false
				res.Err = &Error{
					Kind:    ErrRuntimeFault,
					Msg:     fmt.Sprintf("declared result: %v", err),
					Elapsed: outcome.Elapsed,
				}
			} else {
				res.Result = &v
			}
		}
		if res.Succeeded {
			res.UpdatedBindings = ec.Observe(outcome.Globals, req.Observe)
		}
	default:
		res.Err = outcome.Err
		if res.Err != nil && res.Err.Kind == ErrRuntimeFault {
			// Mirror fault diagnostics to the run's stderr channel, the way
			// an interpreter writes a traceback.
			trace := res.Err.Msg
			if res.Err.Backtrace != "" {
				trace = res.Err.Backtrace
			}
			_, _ = capture.Stderr.WriteString(trace + "\n")
		}
	}

	res.Stdout = capture.Stdout.String()
	res.Stderr = capture.Stderr.String()
	res.StdoutTruncated = capture.Stdout.Truncated()
	res.StderrTruncated = capture.Stderr.Truncated()
	if res.StdoutTruncated {
		c.metrics.ObserveTruncation("stdout")
	}
	if res.StderrTruncated {
		c.metrics.ObserveTruncation("stderr")
	}

	return c.finish(req, res, res.Err), nil
}

// validate enforces the request invariants before any run starts.
func (c *Coordinator) validate(req ExecutionRequest) *Error {
	if strings.TrimSpace(req.Code) == "" {
		return invalidRequest("code must not be empty")
	}
	if req.Timeout <= 0 {
		return invalidRequest("timeout must be strictly positive, got %s", req.Timeout)
	}
	if req.Timeout > c.opts.MaxTimeout {
		return invalidRequest("timeout %s exceeds platform maximum %s", req.Timeout, c.opts.MaxTimeout)
	}
	return nil
}

func (c *Coordinator) finish(req ExecutionRequest, res ExecutionResult, serr *Error) ExecutionResult {
	if serr != nil {
		res.Succeeded = false
		res.Err = serr
	}

	outcome := "succeeded"
	if res.Err != nil {
		outcome = string(res.Err.Kind)
	}
	c.metrics.ObserveRun(outcome, res.Elapsed)

	fields := []zap.Field{
		zap.String("run_id", req.RunID),
		zap.String("tier", string(req.Tier)),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", res.Elapsed),
		zap.Int("stdout_len", len(res.Stdout)),
		zap.Int("stderr_len", len(res.Stderr)),
	}
	switch {
	case res.Err != nil && res.Err.Kind == ErrTerminationFault:
		// Operational fault: the host must see this distinctly from
		// user-triggered error kinds.
		c.logger.Error("run termination fault", fields...)
	case res.Err != nil:
		c.logger.Info("run failed", fields...)
	default:
		c.logger.Info("run completed", fields...)
	}
	return res
}

// fileOptions enables the control-flow forms strategy authors expect
// (while loops, top-level if/for, reassignment, recursion). Load remains
// disabled: there is no import facility inside the sandbox.
func fileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}
