package interp

import (
	"fmt"
	"math/bits"
)

// AllocId is a densely assigned identifier of one allocation. The zero
// value is reserved: a Pointer with Alloc == NoAlloc carries
// address-only provenance.
type AllocId uint64

// NoAlloc marks address-only provenance.
const NoAlloc AllocId = 0

// Pointer is an allocation handle plus a byte offset. Provenance is
// either concrete (Alloc != NoAlloc, supporting arithmetic within the
// allocation and dereference) or address-only (supporting only integer
// round-trips, never dereference).
type Pointer struct {
	Alloc  AllocId
	Offset uint64
}

// PointerFromAddr builds an address-only pointer from an integer.
func PointerFromAddr(addr uint64) Pointer {
	return Pointer{Alloc: NoAlloc, Offset: addr}
}

// HasProvenance reports whether the pointer references a concrete
// allocation.
func (p Pointer) HasProvenance() bool {
	return p.Alloc != NoAlloc
}

// String renders the pointer for diagnostics and trace logs.
func (p Pointer) String() string {
	if !p.HasProvenance() {
		return fmt.Sprintf("0x%x", p.Offset)
	}
	if p.Offset == 0 {
		return fmt.Sprintf("alloc%d", p.Alloc)
	}
	return fmt.Sprintf("alloc%d+0x%x", p.Alloc, p.Offset)
}

// HasDataLayout is implemented by everything that knows the target's
// pointer width (Memory, Session, EvalContext).
type HasDataLayout interface {
	DataLayout() DataLayout
}

// DataLayout carries the target machine parameters pointer arithmetic
// derives from.
type DataLayout struct {
	// PointerSize is the pointer width in bytes (4 or 8).
	PointerSize uint64
}

// DataLayout implements HasDataLayout, so a DataLayout can be passed
// directly where a context is expected.
func (dl DataLayout) DataLayout() DataLayout { return dl }

func (dl DataLayout) pointerBits() uint { return uint(dl.PointerSize) * 8 }

// MachineUsizeMax returns the largest value of the target's usize.
func (dl DataLayout) MachineUsizeMax() uint64 {
	if dl.pointerBits() >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << dl.pointerBits()) - 1
}

// MachineIsizeMin returns the smallest value of the target's isize.
func (dl DataLayout) MachineIsizeMin() int64 {
	return -(int64(1) << (dl.pointerBits() - 1))
}

// MachineIsizeMax returns the largest value of the target's isize.
func (dl DataLayout) MachineIsizeMax() int64 {
	return (int64(1) << (dl.pointerBits() - 1)) - 1
}

// truncateToPtr truncates a (value, overflowed) pair to the pointer
// width, updating the overflow flag. Every arithmetic helper routes
// its result through here before returning.
func (dl DataLayout) truncateToPtr(val uint64, over bool) (uint64, bool) {
	if dl.pointerBits() >= 64 {
		return val, over
	}
	max := dl.MachineUsizeMax()
	return val & max, over || val > max
}

// OverflowingOffset adds an unsigned delta, wrapping at the pointer
// width and reporting whether wrapping occurred.
func (dl DataLayout) OverflowingOffset(val, delta uint64) (uint64, bool) {
	res, carry := bits.Add64(val, delta, 0)
	return dl.truncateToPtr(res, carry != 0)
}

// OverflowingSignedOffset adds a signed delta, wrapping at the pointer
// width and reporting whether wrapping occurred.
func (dl DataLayout) OverflowingSignedOffset(val uint64, delta int64) (uint64, bool) {
	if delta >= 0 {
		res, over := dl.OverflowingOffset(val, uint64(delta))
		return res, over || delta > dl.MachineIsizeMax()
	}
	n := uint64(-(delta + 1)) + 1 // |delta| without overflowing on MinInt64
	res, borrow := bits.Sub64(val, n, 0)
	res, over := dl.truncateToPtr(res, borrow != 0)
	return res, over || delta < dl.MachineIsizeMin()
}

// Offset adds an unsigned delta to an address; overflow is an error.
func (dl DataLayout) Offset(val, delta uint64) (uint64, *Error) {
	res, over := dl.OverflowingOffset(val, delta)
	if over {
		return 0, &Error{Kind: ErrPointerArithOverflow}
	}
	return res, nil
}

// SignedOffset adds a signed delta to an address; overflow is an error.
func (dl DataLayout) SignedOffset(val uint64, delta int64) (uint64, *Error) {
	res, over := dl.OverflowingSignedOffset(val, delta)
	if over {
		return 0, &Error{Kind: ErrPointerArithOverflow}
	}
	return res, nil
}

// OffsetBy moves the pointer forward by an unsigned byte delta,
// keeping its provenance. Overflow past the pointer width is an error.
func (p Pointer) OffsetBy(delta uint64, cx HasDataLayout) (Pointer, *Error) {
	off, err := cx.DataLayout().Offset(p.Offset, delta)
	if err != nil {
		return Pointer{}, err
	}
	return Pointer{Alloc: p.Alloc, Offset: off}, nil
}

// SignedOffsetBy moves the pointer by a signed byte delta, keeping its
// provenance. Overflow past the pointer width is an error.
func (p Pointer) SignedOffsetBy(delta int64, cx HasDataLayout) (Pointer, *Error) {
	off, err := cx.DataLayout().SignedOffset(p.Offset, delta)
	if err != nil {
		return Pointer{}, err
	}
	return Pointer{Alloc: p.Alloc, Offset: off}, nil
}

// WrappingSignedOffsetBy moves the pointer by a signed delta, wrapping
// at the pointer width.
func (p Pointer) WrappingSignedOffsetBy(delta int64, cx HasDataLayout) Pointer {
	off, _ := cx.DataLayout().OverflowingSignedOffset(p.Offset, delta)
	return Pointer{Alloc: p.Alloc, Offset: off}
}

// ToUsize exposes the pointer as an integer. Only address-only
// pointers have a meaningful integer value; pointers with concrete
// provenance cannot be observed as raw bytes.
func (p Pointer) ToUsize() (uint64, *Error) {
	if p.HasProvenance() {
		return 0, &Error{Kind: ErrReadPointerAsBytes}
	}
	return p.Offset, nil
}
