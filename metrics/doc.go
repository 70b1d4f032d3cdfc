// Package metrics provides prometheus instrumentation for the engine.
//
// The metrics are optional: the engine accepts a nil *Metrics and runs
// unchanged without instrumentation.
package metrics
