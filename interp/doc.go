// Package interp implements the compile-time constant evaluator for
// kestrel: an abstract machine that executes MIR bodies in order to
// compute the values of constants and statics, including those
// transitively referenced by other constants.
//
// # Execution model
//
// The machine is single-threaded, cooperative and resumable. The call
// stack is explicit data (a slice of frames), not the host call stack,
// so step and depth budgets apply uniformly and the driver can be
// paused between any two statements. One call to step either
//
//   - discovers un-evaluated constant/static dependencies of the next
//     statement or terminator and pushes frames to resolve them, or
//   - executes that statement or terminator and advances the cursor.
//
// Dependencies are therefore always fully evaluated and frozen before
// the statement mentioning them runs.
//
// # Memory model
//
// All values live in explicit allocations: byte buffers with a known
// size and alignment, a per-byte definedness bitmap, relocations for
// stored pointers, and a frozen flag. Every observable form of
// undefined behavior is detected deterministically and reported as an
// *Error; nothing is silently swallowed.
//
// # Sessions
//
// A Session owns the memory, the constant/static cache and the vtable
// cache for one compilation session. Independent top-level evaluation
// requests share these caches; access is serialized. Failed
// evaluations roll back every cache entry they introduced.
package interp
