package interp

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/mir"
)

// opValue is the result of evaluating an operand. Primitive values
// travel by value as a PrimVal; aggregates stay in memory and travel
// by reference.
type opValue struct {
	byRef bool
	ptr   Pointer // storage of a by-ref value
	prim  PrimVal // a by-value primitive
	ty    mir.Type
}

// isPrimitive reports whether values of t fit in a PrimVal.
func isPrimitive(t mir.Type) bool {
	_, _, ok := primLayout(t, DataLayout{PointerSize: 8})
	return ok
}

// evalOperand evaluates an operand in the current frame. Constant and
// static items resolve through the global cache, which the dependency
// scan has already populated; hitting an uninitialized entry means the
// item depends on itself.
func (ecx *EvalContext) evalOperand(frame *Frame, op mir.Operand) (opValue, *Error) {
	switch op := op.(type) {
	case mir.OpCopy:
		return ecx.placeOperand(frame, op.Place)
	case mir.OpMove:
		return ecx.placeOperand(frame, op.Place)

	case mir.OpConstant:
		ty := mir.Subst(op.Constant.Type, frame.Substs)
		switch lit := op.Constant.Literal.(type) {
		case mir.LitValue:
			return opValue{prim: BytesVal(lit.Bits), ty: ty}, nil

		case mir.LitItem:
			substs := substSubsts(lit.Substs, frame.Substs)
			switch ecx.sess.provider.DefKind(lit.Def) {
			case mir.DefKindFn, mir.DefKindClosure, mir.DefKindIntrinsic:
				// Function items are zero-sized; the identity rides on
				// the type, not on bytes.
				return opValue{prim: BytesVal(0), ty: ty}, nil
			default:
				return ecx.globalOperand(GlobalKey{Def: lit.Def, Substs: substs.Key(), Promoted: NoPromoted}, lit.Def, ty)
			}

		case mir.LitPromoted:
			key := GlobalKey{Def: frame.Def, Substs: frame.Substs.Key(), Promoted: int64(lit.Index)}
			return ecx.globalOperand(key, frame.Def, ty)

		default:
			panic(fmt.Sprintf("unhandled literal %T", lit))
		}

	default:
		panic(fmt.Sprintf("unhandled operand %T", op))
	}
}

func (ecx *EvalContext) placeOperand(frame *Frame, place mir.Place) (opValue, *Error) {
	ptr, ty, err := ecx.evalPlace(frame, place)
	if err != nil {
		return opValue{}, err
	}
	if isPrimitive(ty) {
		prim, err := ecx.sess.mem.ReadValue(ptr, ty)
		if err != nil {
			return opValue{}, err
		}
		return opValue{prim: prim, ty: ty}, nil
	}
	return opValue{byRef: true, ptr: ptr, ty: ty}, nil
}

func (ecx *EvalContext) globalOperand(key GlobalKey, def mir.DefId, ty mir.Type) (opValue, *Error) {
	entry, ok := ecx.sess.globals[key]
	if !ok {
		// The scan pass inserts every entry before the statement that
		// uses it executes, so a miss here is a machine bug.
		panic(fmt.Sprintf("constant %s used before its dependency scan", ecx.sess.provider.Name(def)))
	}
	if !entry.initialized {
		return opValue{}, &Error{Kind: ErrRecursiveConstant, Name: ecx.sess.provider.Name(def)}
	}
	return opValue{byRef: true, ptr: entry.ptr, ty: ty}, nil
}

// evalOperandToPrim evaluates an operand that must be primitive.
func (ecx *EvalContext) evalOperandToPrim(frame *Frame, op mir.Operand) (PrimVal, mir.Type, *Error) {
	val, err := ecx.evalOperand(frame, op)
	if err != nil {
		return PrimVal{}, nil, err
	}
	if val.byRef {
		prim, err := ecx.sess.mem.ReadValue(val.ptr, val.ty)
		if err != nil {
			return PrimVal{}, nil, err
		}
		return prim, val.ty, nil
	}
	return val.prim, val.ty, nil
}

// writeOpValue stores an operand's value at dest. By-ref values copy
// their full layout; primitives go through a typed write.
func (ecx *EvalContext) writeOpValue(dest Pointer, val opValue) *Error {
	if val.byRef {
		layout, err := ecx.sess.layoutOf(val.ty)
		if err != nil {
			return err
		}
		return ecx.sess.mem.Copy(val.ptr, dest, layout.Size)
	}
	return ecx.sess.mem.WriteValue(dest, val.prim, val.ty)
}

// substSubsts applies the frame's substitutions to a literal's own
// substitution list, monomorphizing nested generic items.
func substSubsts(inner, outer mir.Substs) mir.Substs {
	if len(inner) == 0 {
		return inner
	}
	out := make(mir.Substs, len(inner))
	for i, t := range inner {
		out[i] = mir.Subst(t, outer)
	}
	return out
}
