// Package mir defines the mid-level intermediate representation for kestrel.
//
// The MIR is a typed, basic-block-structured control-flow IR: each
// function body is a graph of basic blocks, each block a list of
// statements closed by exactly one terminator. It is the input of the
// compile-time constant evaluator (package interp) and is produced by
// the front end after type checking and monomorphization-ready
// lowering.
//
// # Structure
//
// A Body holds:
//   - Blocks: the basic blocks (statements + terminator)
//   - Locals: declared local slots; Local 0 is the return place
//   - Promoted: anonymous sub-constant bodies extracted from this body
//
// Statement, Rvalue, Operand, Terminator and Type are tagged-variant
// sum types (a marker interface per category), so consumers walk them
// with a single exhaustive type switch rather than virtual dispatch.
//
// # Collaborators
//
// Package mir carries no semantics of its own. Type layouts, bodies of
// referenced definitions and method resolution come from a Provider,
// the lookup service implemented by the front end. The constant
// evaluator only consumes already-resolved types and bodies; it never
// parses source or performs inference.
package mir
