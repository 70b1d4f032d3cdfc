package sandbox

import (
	"unicode"

	"go.starlark.net/starlark"
)

// ExecutionContext is the namespace exposed to exactly one run: the union
// of the resolved policy names and the request's bindings. It is owned by
// that run and discarded when the run ends.
type ExecutionContext struct {
	// Predeclared is handed to the interpreter as the run's predeclared
	// environment. Policy values in it are frozen; binding values are deep
	// copies, so mutation inside the run can reach neither the policy table
	// nor caller state.
	Predeclared starlark.StringDict

	// bindingNames records which predeclared names came from the request,
	// for observe-back lookups after the run.
	bindingNames map[string]bool
}

// BuildContext merges the resolved policy namespace with caller-supplied
// bindings. It fails with a RejectedBinding error before any code executes
// when a binding name shadows a policy-reserved name, uses the reserved
// result name, is not a legal identifier, or carries a value that cannot be
// represented across the isolation boundary.
func BuildContext(policyNames starlark.StringDict, bindings map[string]Value) (*ExecutionContext, *Error) {
	ec := &ExecutionContext{
		Predeclared:  make(starlark.StringDict, len(policyNames)+len(bindings)),
		bindingNames: make(map[string]bool, len(bindings)),
	}
	for name, v := range policyNames {
		ec.Predeclared[name] = v
	}

	for name, v := range bindings {
		if name == ResultName {
			return nil, rejectedBinding("binding %q shadows the reserved result name", name)
		}
		if _, taken := policyNames[name]; taken {
			return nil, rejectedBinding("binding %q shadows a policy-reserved name", name)
		}
		if !isIdentifier(name) {
			return nil, rejectedBinding("binding name %q is not a legal identifier", name)
		}
		sv, err := v.ToStarlark()
		if err != nil {
			return nil, rejectedBinding("binding %q: %v", name, err)
		}
		ec.Predeclared[name] = sv
		ec.bindingNames[name] = true
	}

	return ec, nil
}

// Observe reads the named values out of the run's final namespace: globals
// the program assigned win over (possibly mutated-in-place) bindings.
// Absent names and values that stopped being representable are omitted.
func (ec *ExecutionContext) Observe(globals starlark.StringDict, names []string) map[string]Value {
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]Value, len(names))
	for _, name := range names {
		sv, ok := globals[name]
		if !ok {
			if !ec.bindingNames[name] {
				continue
			}
			sv = ec.Predeclared[name]
		}
		v, err := FromStarlark(sv)
		if err != nil {
			continue
		}
		out[name] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
