package interp

import (
	"fmt"

	"github.com/JohnCGriffin/overflow"

	"github.com/kestrel-lang/kestrel/mir"
)

// binaryOp applies a binary operator to two primitive values of the
// left operand's type. The overflowed result is reported separately so
// checked arithmetic can observe it without failing.
func binaryOp(op mir.BinOp, left, right PrimVal, ty mir.Type, dl DataLayout) (PrimVal, bool, *Error) {
	// Pointer operands get their own comparison and offset rules.
	if left.IsPtr() || right.IsPtr() {
		return pointerOp(op, left, right, dl)
	}

	l, err := left.ToBytes()
	if err != nil {
		return PrimVal{}, false, err
	}
	r, err := right.ToBytes()
	if err != nil {
		return PrimVal{}, false, err
	}

	switch ty := ty.(type) {
	case mir.BoolType:
		return boolOp(op, l != 0, r != 0)
	case mir.CharType:
		return compareOp(op, l, r)
	case mir.IntType:
		if ty.Signed {
			return signedOp(op, l, r, ty.Bits)
		}
		return unsignedOp(op, l, r, ty.Bits)
	default:
		panic(fmt.Sprintf("binary operator %s on non-primitive type %s", op, mir.TypeKey(ty)))
	}
}

func boolOp(op mir.BinOp, l, r bool) (PrimVal, bool, *Error) {
	switch op {
	case mir.BinEq:
		return BoolVal(l == r), false, nil
	case mir.BinNe:
		return BoolVal(l != r), false, nil
	case mir.BinBitAnd:
		return BoolVal(l && r), false, nil
	case mir.BinBitOr:
		return BoolVal(l || r), false, nil
	case mir.BinBitXor:
		return BoolVal(l != r), false, nil
	default:
		return PrimVal{}, false, &Error{Kind: ErrMath, Msg: fmt.Sprintf("invalid boolean operator %s", op)}
	}
}

func compareOp(op mir.BinOp, l, r uint64) (PrimVal, bool, *Error) {
	switch op {
	case mir.BinEq:
		return BoolVal(l == r), false, nil
	case mir.BinNe:
		return BoolVal(l != r), false, nil
	case mir.BinLt:
		return BoolVal(l < r), false, nil
	case mir.BinLe:
		return BoolVal(l <= r), false, nil
	case mir.BinGt:
		return BoolVal(l > r), false, nil
	case mir.BinGe:
		return BoolVal(l >= r), false, nil
	default:
		return PrimVal{}, false, &Error{Kind: ErrMath, Msg: fmt.Sprintf("invalid comparison operator %s", op)}
	}
}

// signExtend widens the low bits of raw to a full int64.
func signExtend(raw uint64, bits uint8) int64 {
	shift := 64 - uint(bits)
	return int64(raw<<shift) >> shift
}

// truncate keeps the low bits of raw.
func truncate(raw uint64, bits uint8) uint64 {
	if bits >= 64 {
		return raw
	}
	return raw & (1<<uint(bits) - 1)
}

// fitsSigned reports whether v is representable in bits.
func fitsSigned(v int64, bits uint8) bool {
	if bits >= 64 {
		return true
	}
	min := int64(-1) << (bits - 1)
	max := int64(1)<<(bits-1) - 1
	return v >= min && v <= max
}

func signedOp(op mir.BinOp, lraw, rraw uint64, bits uint8) (PrimVal, bool, *Error) {
	l := signExtend(lraw, bits)
	r := signExtend(rraw, bits)

	switch op {
	case mir.BinEq:
		return BoolVal(l == r), false, nil
	case mir.BinNe:
		return BoolVal(l != r), false, nil
	case mir.BinLt:
		return BoolVal(l < r), false, nil
	case mir.BinLe:
		return BoolVal(l <= r), false, nil
	case mir.BinGt:
		return BoolVal(l > r), false, nil
	case mir.BinGe:
		return BoolVal(l >= r), false, nil

	case mir.BinBitAnd:
		return BytesVal(truncate(uint64(l&r), bits)), false, nil
	case mir.BinBitOr:
		return BytesVal(truncate(uint64(l|r), bits)), false, nil
	case mir.BinBitXor:
		return BytesVal(truncate(uint64(l^r), bits)), false, nil

	case mir.BinShl, mir.BinShr:
		return shiftOp(op, uint64(l), rraw, bits, true)

	case mir.BinAdd:
		v, ok := overflow.Add64(l, r)
		return signedResult(v, bits, !ok)
	case mir.BinSub:
		v, ok := overflow.Sub64(l, r)
		return signedResult(v, bits, !ok)
	case mir.BinMul:
		v, ok := overflow.Mul64(l, r)
		return signedResult(v, bits, !ok)

	case mir.BinDiv:
		if r == 0 {
			return PrimVal{}, false, &Error{Kind: ErrMath, Msg: "attempted to divide by zero"}
		}
		v, ok := overflow.Div64(l, r)
		return signedResult(v, bits, !ok)
	case mir.BinRem:
		if r == 0 {
			return PrimVal{}, false, &Error{Kind: ErrMath, Msg: "attempted remainder with a divisor of zero"}
		}
		if _, ok := overflow.Div64(l, r); !ok {
			return signedResult(0, bits, true)
		}
		return signedResult(l%r, bits, false)

	default:
		return PrimVal{}, false, &Error{Kind: ErrMath, Msg: fmt.Sprintf("invalid integer operator %s", op)}
	}
}

// signedResult narrows a wide intermediate back to the operand width,
// folding the narrowing overflow into the overflow flag.
func signedResult(v int64, bits uint8, overflowed bool) (PrimVal, bool, *Error) {
	if !fitsSigned(v, bits) {
		overflowed = true
	}
	return BytesVal(truncate(uint64(v), bits)), overflowed, nil
}

func unsignedOp(op mir.BinOp, lraw, rraw uint64, bits uint8) (PrimVal, bool, *Error) {
	l := truncate(lraw, bits)
	r := truncate(rraw, bits)

	switch op {
	case mir.BinEq, mir.BinNe, mir.BinLt, mir.BinLe, mir.BinGt, mir.BinGe:
		return compareOp(op, l, r)

	case mir.BinBitAnd:
		return BytesVal(l & r), false, nil
	case mir.BinBitOr:
		return BytesVal(l | r), false, nil
	case mir.BinBitXor:
		return BytesVal(l ^ r), false, nil

	case mir.BinShl, mir.BinShr:
		return shiftOp(op, l, r, bits, false)

	case mir.BinAdd:
		v := l + r
		return BytesVal(truncate(v, bits)), truncate(v, bits) < l || v < l, nil
	case mir.BinSub:
		return BytesVal(truncate(l-r, bits)), r > l, nil
	case mir.BinMul:
		v := l * r
		overflowed := l != 0 && (v/l != r || truncate(v, bits) != v)
		return BytesVal(truncate(v, bits)), overflowed, nil

	case mir.BinDiv:
		if r == 0 {
			return PrimVal{}, false, &Error{Kind: ErrMath, Msg: "attempted to divide by zero"}
		}
		return BytesVal(l / r), false, nil
	case mir.BinRem:
		if r == 0 {
			return PrimVal{}, false, &Error{Kind: ErrMath, Msg: "attempted remainder with a divisor of zero"}
		}
		return BytesVal(l % r), false, nil

	default:
		return PrimVal{}, false, &Error{Kind: ErrMath, Msg: fmt.Sprintf("invalid integer operator %s", op)}
	}
}

// shiftOp shifts l by r bits. A shift amount at or beyond the operand
// width overflows; checked shifts observe that, unchecked ones fail.
func shiftOp(op mir.BinOp, l, r uint64, bits uint8, signed bool) (PrimVal, bool, *Error) {
	if r >= uint64(bits) {
		return BytesVal(0), true, nil
	}
	switch op {
	case mir.BinShl:
		return BytesVal(truncate(l<<r, bits)), false, nil
	case mir.BinShr:
		if signed {
			return BytesVal(truncate(uint64(signExtend(l, bits)>>r), bits)), false, nil
		}
		return BytesVal(truncate(l, bits) >> r), false, nil
	default:
		panic("shiftOp on non-shift operator")
	}
}

// pointerOp compares and offsets pointers. Pointers into different
// live allocations have no stable ordering, so only equality against
// another allocation is answerable, and only as inequality.
func pointerOp(op mir.BinOp, left, right PrimVal, dl DataLayout) (PrimVal, bool, *Error) {
	switch op {
	case mir.BinAdd, mir.BinSub:
		ptr, err := left.ToPtr()
		if err != nil {
			return PrimVal{}, false, err
		}
		delta, err := right.ToBytes()
		if err != nil {
			return PrimVal{}, false, err
		}
		if op == mir.BinSub {
			delta = -delta
		}
		moved, err := ptr.SignedOffsetBy(int64(delta), dl)
		if err != nil {
			return PrimVal{}, false, err
		}
		return PtrVal(moved), false, nil

	case mir.BinEq, mir.BinNe:
		lp, err := left.ToPtr()
		if err != nil {
			return PrimVal{}, false, err
		}
		rp, err := right.ToPtr()
		if err != nil {
			return PrimVal{}, false, err
		}
		if lp.Alloc == rp.Alloc {
			return compareOp(op, lp.Offset, rp.Offset)
		}
		if lp.HasProvenance() && rp.HasProvenance() {
			// Distinct allocations never alias.
			return BoolVal(op == mir.BinNe), false, nil
		}
		return PrimVal{}, false, &Error{Kind: ErrInvalidPointerMath}

	case mir.BinLt, mir.BinLe, mir.BinGt, mir.BinGe:
		lp, err := left.ToPtr()
		if err != nil {
			return PrimVal{}, false, err
		}
		rp, err := right.ToPtr()
		if err != nil {
			return PrimVal{}, false, err
		}
		if lp.Alloc != rp.Alloc {
			return PrimVal{}, false, &Error{Kind: ErrInvalidPointerMath}
		}
		return compareOp(op, lp.Offset, rp.Offset)

	default:
		return PrimVal{}, false, &Error{Kind: ErrInvalidPointerMath}
	}
}

// unaryOp applies a unary operator.
func unaryOp(op mir.UnOp, val PrimVal, ty mir.Type) (PrimVal, *Error) {
	bits, err := val.ToBytes()
	if err != nil {
		return PrimVal{}, err
	}
	switch ty := ty.(type) {
	case mir.BoolType:
		b, err := val.ToBool()
		if err != nil {
			return PrimVal{}, err
		}
		if op != mir.UnNot {
			return PrimVal{}, &Error{Kind: ErrMath, Msg: "invalid unary operator on bool"}
		}
		return BoolVal(!b), nil

	case mir.IntType:
		switch op {
		case mir.UnNot:
			return BytesVal(truncate(^bits, ty.Bits)), nil
		case mir.UnNeg:
			if !ty.Signed {
				return PrimVal{}, &Error{Kind: ErrMath, Msg: "cannot negate an unsigned integer"}
			}
			v := signExtend(bits, ty.Bits)
			if !fitsSigned(-v, ty.Bits) || (ty.Bits == 64 && v == -v && v != 0) {
				return PrimVal{}, &Error{Kind: ErrOverflowingMath}
			}
			return BytesVal(truncate(uint64(-v), ty.Bits)), nil
		}
	}
	return PrimVal{}, &Error{Kind: ErrMath, Msg: fmt.Sprintf("invalid unary operator on %s", mir.TypeKey(ty))}
}
