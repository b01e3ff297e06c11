// Package kestrel provides compile-time constant evaluation for the
// Kestrel compiler.
//
// The front end lowers each function, constant, and static initializer
// to a typed control-flow-graph IR (the mir package) and exposes type
// layouts and call resolution through a mir.Provider. An interp.Session
// then evaluates constant expressions against that provider inside an
// abstract machine: a bounded interpreter with its own memory, explicit
// pointer provenance, and a closed set of evaluation errors.
//
// Example usage:
//
//	sess := kestrel.NewSession(provider, kestrel.DefaultOptions())
//	ptr, err := sess.EvaluateConstant(def, nil, nil)
//	if err != nil {
//	    // a diagnostic with a span, not a crash
//	}
//	raw, err := sess.ReadResult(ptr, 4)
//
// Results are memoized per (definition, substitution) pair and frozen:
// evaluating the same constant twice returns the same pointer, and
// nothing can write through it afterwards.
package kestrel

import (
	"github.com/kestrel-lang/kestrel/interp"
	"github.com/kestrel-lang/kestrel/mir"
)

// Options configures an evaluation session. See interp.Options.
type Options = interp.Options

// Session evaluates constants against a front end's mir.Provider.
type Session = interp.Session

// DefaultOptions returns the interpreter limits used by the compiler
// driver: a 64-bit target with generous step and memory budgets.
func DefaultOptions() Options {
	return interp.DefaultOptions()
}

// NewSession creates an evaluation session over a provider.
func NewSession(provider mir.Provider, opts Options) *Session {
	return interp.NewSession(provider, opts)
}
