package interp

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/mir"
)

// evalRvalueInto computes an rvalue and stores the result at dest,
// which names storage of type destTy.
func (ecx *EvalContext) evalRvalueInto(frame *Frame, rv mir.Rvalue, dest Pointer, destTy mir.Type) *Error {
	switch rv := rv.(type) {
	case mir.RvUse:
		val, err := ecx.evalOperand(frame, rv.Operand)
		if err != nil {
			return err
		}
		return ecx.writeOpValue(dest, val)

	case mir.RvBinary:
		left, lty, err := ecx.evalOperandToPrim(frame, rv.Left)
		if err != nil {
			return err
		}
		right, _, err := ecx.evalOperandToPrim(frame, rv.Right)
		if err != nil {
			return err
		}
		result, overflowed, err := binaryOp(rv.Op, left, right, lty, ecx.sess.mem.DataLayout())
		if err != nil {
			return err
		}
		if overflowed {
			return &Error{Kind: ErrOverflowingMath}
		}
		return ecx.sess.mem.WriteValue(dest, result, destTy)

	case mir.RvCheckedBinary:
		left, lty, err := ecx.evalOperandToPrim(frame, rv.Left)
		if err != nil {
			return err
		}
		right, _, err := ecx.evalOperandToPrim(frame, rv.Right)
		if err != nil {
			return err
		}
		result, overflowed, err := binaryOp(rv.Op, left, right, lty, ecx.sess.mem.DataLayout())
		if err != nil {
			return err
		}
		// The destination is a (value, flag) pair; the flag sits right
		// after the value.
		layout, lerr := ecx.sess.layoutOf(lty)
		if lerr != nil {
			return lerr
		}
		if werr := ecx.sess.mem.WriteValue(dest, result, lty); werr != nil {
			return werr
		}
		flagPtr, oerr := dest.OffsetBy(layout.Size, ecx.sess.mem)
		if oerr != nil {
			return oerr
		}
		return ecx.sess.mem.WriteValue(flagPtr, BoolVal(overflowed), mir.BoolType{})

	case mir.RvUnary:
		val, ty, err := ecx.evalOperandToPrim(frame, rv.Operand)
		if err != nil {
			return err
		}
		result, err := unaryOp(rv.Op, val, ty)
		if err != nil {
			return err
		}
		return ecx.sess.mem.WriteValue(dest, result, destTy)

	case mir.RvRef:
		ptr, _, err := ecx.evalPlace(frame, rv.Place)
		if err != nil {
			return err
		}
		return ecx.sess.mem.WriteValue(dest, PtrVal(ptr), destTy)

	case mir.RvCast:
		return ecx.evalCast(frame, rv, dest, destTy)

	case mir.RvAggregate:
		return ecx.evalAggregate(frame, rv, dest, destTy)

	case mir.RvLen:
		_, ty, err := ecx.evalPlace(frame, rv.Place)
		if err != nil {
			return err
		}
		arr, ok := ty.(mir.ArrayType)
		if !ok {
			panic(fmt.Sprintf("Len of non-array type %s", mir.TypeKey(ty)))
		}
		return ecx.sess.mem.WriteScalar(dest, arr.Len, ecx.sess.mem.PointerSize())

	case mir.RvDiscriminant:
		ptr, _, err := ecx.evalPlace(frame, rv.Place)
		if err != nil {
			return err
		}
		discrPtr, err := ptr.OffsetBy(rv.Offset, ecx.sess.mem)
		if err != nil {
			return err
		}
		discr, err := ecx.sess.mem.ReadScalar(discrPtr, uint64(rv.Size))
		if err != nil {
			return err
		}
		if discr >= rv.NumVariants {
			return &Error{Kind: ErrInvalidDiscriminant}
		}
		return ecx.sess.mem.WriteScalar(dest, discr, uint64(rv.Size))

	default:
		panic(fmt.Sprintf("unhandled rvalue %T", rv))
	}
}

// evalAggregate writes each element at its field offset. When no
// offsets are given the elements are laid out back to back, which is
// how arrays pack.
func (ecx *EvalContext) evalAggregate(frame *Frame, rv mir.RvAggregate, dest Pointer, destTy mir.Type) *Error {
	var stride uint64
	if rv.Offsets == nil {
		if arr, ok := destTy.(mir.ArrayType); ok {
			layout, err := ecx.sess.layoutOf(mir.Subst(arr.Elem, frame.Substs))
			if err != nil {
				return err
			}
			stride = layout.Size
		}
	}

	for i, elem := range rv.Elems {
		val, err := ecx.evalOperand(frame, elem)
		if err != nil {
			return err
		}
		var off uint64
		if rv.Offsets != nil {
			off = rv.Offsets[i]
		} else {
			off = uint64(i) * stride
		}
		fieldPtr, oerr := dest.OffsetBy(off, ecx.sess.mem)
		if oerr != nil {
			return oerr
		}
		if werr := ecx.writeOpValue(fieldPtr, val); werr != nil {
			return werr
		}
	}
	return nil
}
