package interp

import (
	"fmt"
	"unicode/utf8"
)

// primKind tags a PrimVal.
type primKind uint8

const (
	primBytes primKind = iota
	primPtr
	primFnPtr
	primFatPtr
)

// PrimVal is a primitive value in transit between memory and the
// machine: raw bits of an integer/bool/char, a thin pointer, a
// function pointer, or a fat interface-object pointer (data + vtable).
type PrimVal struct {
	kind  primKind
	bits  uint64
	ptr   Pointer
	extra Pointer // vtable pointer of a fat pointer
}

// BytesVal wraps raw little-endian bits.
func BytesVal(bits uint64) PrimVal {
	return PrimVal{kind: primBytes, bits: bits}
}

// BoolVal wraps a boolean.
func BoolVal(b bool) PrimVal {
	if b {
		return BytesVal(1)
	}
	return BytesVal(0)
}

// PtrVal wraps a thin data pointer.
func PtrVal(p Pointer) PrimVal {
	return PrimVal{kind: primPtr, ptr: p}
}

// FnPtrVal wraps a function pointer.
func FnPtrVal(p Pointer) PrimVal {
	return PrimVal{kind: primFnPtr, ptr: p}
}

// FatPtrVal wraps an interface-object pointer: the data pointer plus
// the vtable pointer.
func FatPtrVal(data, vtable Pointer) PrimVal {
	return PrimVal{kind: primFatPtr, ptr: data, extra: vtable}
}

// IsPtr reports whether the value carries any pointer.
func (v PrimVal) IsPtr() bool { return v.kind != primBytes }

// ToBytes exposes the value as raw bits. Pointers with concrete
// provenance have no observable bit pattern.
func (v PrimVal) ToBytes() (uint64, *Error) {
	switch v.kind {
	case primBytes:
		return v.bits, nil
	case primPtr:
		return v.ptr.ToUsize()
	default:
		return 0, &Error{Kind: ErrReadPointerAsBytes}
	}
}

// ToPtr exposes the value as a data pointer. Raw bits become an
// address-only pointer; a fat pointer yields its data half.
func (v PrimVal) ToPtr() (Pointer, *Error) {
	switch v.kind {
	case primBytes:
		return PointerFromAddr(v.bits), nil
	case primPtr, primFnPtr:
		return v.ptr, nil
	case primFatPtr:
		return v.ptr, nil
	default:
		return Pointer{}, &Error{Kind: ErrReadBytesAsPointer}
	}
}

// ToFnPtr exposes the value as a function pointer.
func (v PrimVal) ToFnPtr() (Pointer, *Error) {
	if v.kind != primFnPtr {
		return Pointer{}, &Error{Kind: ErrExecuteMemory}
	}
	return v.ptr, nil
}

// ToFatPtr splits an interface-object pointer into its data and vtable
// halves.
func (v PrimVal) ToFatPtr() (data, vtable Pointer, err *Error) {
	if v.kind != primFatPtr {
		return Pointer{}, Pointer{}, &Error{Kind: ErrReadBytesAsPointer}
	}
	return v.ptr, v.extra, nil
}

// ToBool validates and extracts a boolean.
func (v PrimVal) ToBool() (bool, *Error) {
	bits, err := v.ToBytes()
	if err != nil {
		return false, &Error{Kind: ErrInvalidBool}
	}
	switch bits {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, &Error{Kind: ErrInvalidBool}
	}
}

// ToChar validates and extracts a unicode scalar value.
func (v PrimVal) ToChar() (rune, *Error) {
	bits, err := v.ToBytes()
	if err != nil || bits > uint64(utf8.MaxRune) || !utf8.ValidRune(rune(bits)) {
		return 0, &Error{Kind: ErrInvalidChar, Char: bits}
	}
	return rune(bits), nil
}

// String renders the value for trace logs.
func (v PrimVal) String() string {
	switch v.kind {
	case primBytes:
		return fmt.Sprintf("0x%x", v.bits)
	case primPtr:
		return v.ptr.String()
	case primFnPtr:
		return "fn " + v.ptr.String()
	case primFatPtr:
		return fmt.Sprintf("dyn(%s, %s)", v.ptr, v.extra)
	default:
		return "<invalid>"
	}
}
