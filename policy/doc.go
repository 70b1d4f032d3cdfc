// Package policy defines the capability policy for sandboxed strategy runs.
//
// The policy is a process-wide constant table mapping capability tiers to
// the set of names a run may reference beyond the interpreter's safe core.
// Each tier is a closed, explicitly enumerated allowlist; there is no
// import facility and no runtime way to widen a tier. Adding a name is a
// reviewed, compile-time decision.
//
// Resolution is total and fails closed: an unrecognized tier resolves to
// the minimal set rather than erroring, because this system must never
// fail open.
package policy
