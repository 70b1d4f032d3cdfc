// Package sandbox provides secure execution of user-authored strategy code.
//
// The sandbox package implements the execution engine for running untrusted
// strategy code against market-data bindings inside the platform process.
// Each run is independently constructed and torn down: the coordinator
// builds a per-run namespace from the capability policy and the request's
// bindings, dispatches the interpreter onto its own isolation unit under a
// resource governor, captures output into bounded sinks, and returns a
// structured ExecutionResult. No state is shared between runs beyond the
// frozen policy table, so the engine is safe for concurrent callers.
//
// Usage:
//
//	table := policy.NewTable()
//	engine := sandbox.NewCoordinator(logger, sandbox.Options{MaxTimeout: 30 * time.Second}, table, nil)
//	result, err := engine.Run(ctx, sandbox.ExecutionRequest{
//	    Code:    "result = 2 + 2",
//	    Timeout: 5 * time.Second,
//	    Tier:    policy.TierMinimal,
//	})
package sandbox
