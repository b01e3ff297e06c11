package interp

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/mir"
)

// ErrorKind is the closed set of evaluation failure kinds.
type ErrorKind uint8

const (
	// Memory / pointer errors
	ErrDanglingPointerDeref ErrorKind = iota
	ErrPointerOutOfBounds
	ErrInvalidPointerMath
	ErrPointerArithOverflow
	ErrReadUndefBytes
	ErrReadPointerAsBytes
	ErrReadBytesAsPointer
	ErrAlignmentCheckFailed
	ErrInvalidMemoryAccess

	// Control errors
	ErrNoMirFor
	ErrDeadLocal
	ErrUnreachable
	ErrExecuteMemory
	ErrDerefFunctionPointer
	ErrCalledClosureAsFunction
	ErrFunctionPointerTyMismatch

	// Resource errors
	ErrOutOfMemory
	ErrExecutionTimeLimitReached
	ErrStackFrameLimitReached

	// Mutation discipline errors
	ErrModifiedConstantMemory
	ErrReallocatedStaticMemory
	ErrDeallocatedStaticMemory

	// Value validity errors
	ErrInvalidBool
	ErrInvalidDiscriminant
	ErrInvalidChar
	ErrArrayIndexOutOfBounds
	ErrOverflowingMath
	ErrMath
	ErrLayout
	ErrRecursiveConstant

	// Panic surface
	ErrPanic
	ErrAssumptionNotHeld
	ErrUnimplemented
)

// Error is the diagnostic-carrying error returned by every fallible
// evaluator operation. Callers switch on Kind; the payload fields are
// populated per kind. The Span is attached by the stepper when the
// error first crosses a statement boundary.
type Error struct {
	Kind ErrorKind
	Span mir.Span

	// Payloads, populated per kind.
	AllocationSize uint64 // PointerOutOfBounds
	Required       uint64 // AlignmentCheckFailed
	Has            uint64 // AlignmentCheckFailed
	Len            uint64 // ArrayIndexOutOfBounds
	Index          uint64 // ArrayIndexOutOfBounds
	MemorySize     uint64 // OutOfMemory
	MemoryUsage    uint64 // OutOfMemory
	Char           uint64 // InvalidChar
	Name           string // NoMirFor, RecursiveConstant
	Msg            string // Math, Layout, Unimplemented
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case ErrDanglingPointerDeref:
		return "dangling pointer was dereferenced"
	case ErrPointerOutOfBounds:
		return fmt.Sprintf("pointer outside bounds of allocation which has size %d", e.AllocationSize)
	case ErrInvalidPointerMath:
		return "attempted to do math or a comparison on pointers into different allocations"
	case ErrPointerArithOverflow:
		return "pointer arithmetic overflowed the machine pointer width"
	case ErrReadUndefBytes:
		return "attempted to read undefined bytes"
	case ErrReadPointerAsBytes:
		return "a raw memory access tried to access part of a pointer value as raw bytes"
	case ErrReadBytesAsPointer:
		return "a memory access tried to interpret some bytes as a pointer"
	case ErrAlignmentCheckFailed:
		return fmt.Sprintf("tried to access memory with alignment %d, but alignment %d is required", e.Has, e.Required)
	case ErrInvalidMemoryAccess:
		return "tried to access memory through an invalid pointer"
	case ErrNoMirFor:
		return fmt.Sprintf("no body available for `%s`", e.Name)
	case ErrDeadLocal:
		return "tried to access a dead local variable"
	case ErrUnreachable:
		return "entered unreachable code"
	case ErrExecuteMemory:
		return "tried to treat a memory pointer as a function pointer"
	case ErrDerefFunctionPointer:
		return "tried to dereference a function pointer"
	case ErrCalledClosureAsFunction:
		return "tried to call a closure through a function pointer"
	case ErrFunctionPointerTyMismatch:
		return "tried to call a function through a function pointer of a different type"
	case ErrOutOfMemory:
		return fmt.Sprintf("tried to allocate %d more bytes, but only %d bytes are free of the %d byte memory",
			e.AllocationSize, e.MemorySize-e.MemoryUsage, e.MemorySize)
	case ErrExecutionTimeLimitReached:
		return "reached the configured maximum number of evaluation steps"
	case ErrStackFrameLimitReached:
		return "reached the configured maximum number of stack frames"
	case ErrModifiedConstantMemory:
		return "tried to modify constant memory"
	case ErrReallocatedStaticMemory:
		return "tried to reallocate static memory"
	case ErrDeallocatedStaticMemory:
		return "tried to deallocate static memory"
	case ErrInvalidBool:
		return "invalid boolean value read"
	case ErrInvalidDiscriminant:
		return "invalid enum discriminant value read"
	case ErrInvalidChar:
		return fmt.Sprintf("tried to interpret an invalid 32-bit value as a char: %d", e.Char)
	case ErrArrayIndexOutOfBounds:
		return fmt.Sprintf("index out of bounds: the len is %d but the index is %d", e.Len, e.Index)
	case ErrOverflowingMath:
		return "attempted to do overflowing math"
	case ErrMath:
		return e.Msg
	case ErrLayout:
		return "layout computation failed: " + e.Msg
	case ErrRecursiveConstant:
		return fmt.Sprintf("encountered `%s` while it was still being evaluated", e.Name)
	case ErrPanic:
		if e.Msg != "" {
			return "the evaluated program panicked: " + e.Msg
		}
		return "the evaluated program panicked"
	case ErrAssumptionNotHeld:
		return "`assume` argument was false"
	case ErrUnimplemented:
		return e.Msg
	default:
		return fmt.Sprintf("unknown evaluation error kind %d", e.Kind)
	}
}

// withSpan attaches a span to an error that does not carry one yet.
func (e *Error) withSpan(span mir.Span) *Error {
	if e != nil && e.Span == (mir.Span{}) {
		e.Span = span
	}
	return e
}
