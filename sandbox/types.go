package sandbox

import (
	"context"
	"time"

	"github.com/quantfold/stratbox/policy"
)

// ResultName is the reserved global a strategy assigns its declared result
// to. It can never be supplied as a binding.
const ResultName = "result"

// ExecutionRequest carries everything needed for one sandboxed run. The
// request is copied into the run's namespace; nothing in it is shared by
// reference with caller state afterwards.
type ExecutionRequest struct {
	// RunID identifies the run in logs and results. Assigned by the engine
	// when empty.
	RunID string

	// Code is the strategy source text.
	Code string

	// Bindings are caller-supplied values merged into the run's namespace,
	// e.g. an OHLCV table or precomputed indicator columns.
	Bindings map[string]Value

	// Observe lists binding or global names whose final values the caller
	// wants copied back into ExecutionResult.UpdatedBindings.
	Observe []string

	// Timeout is the wall-clock budget for the run. Must be strictly
	// positive and no larger than the engine's configured maximum.
	Timeout time.Duration

	// Tier selects which capability tier's names are exposed to the run.
	Tier policy.Tier
}

// ExecutionResult is the structured outcome of one run. It is constructed
// exactly once per run and immutable thereafter.
type ExecutionResult struct {
	RunID     string
	Succeeded bool

	// Result holds the value bound to the reserved result name, or nil when
	// the program declared none or the run failed.
	Result *Value

	// Captured output. Partial output from failed runs is preserved.
	Stdout          string
	Stderr          string
	StdoutTruncated bool
	StderrTruncated bool

	// UpdatedBindings holds the observed-back subset of the final namespace.
	// Populated only for completed runs.
	UpdatedBindings map[string]Value

	// Err describes the failure when Succeeded is false.
	Err *Error

	Elapsed time.Duration
}

// Engine executes strategy code in an isolated sandbox.
type Engine interface {
	Run(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}
