package interp

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/mir"
)

// evalCast performs an RvCast into dest.
func (ecx *EvalContext) evalCast(frame *Frame, rv mir.RvCast, dest Pointer, destTy mir.Type) *Error {
	switch rv.Kind {
	case mir.CastIntToInt:
		val, srcTy, err := ecx.evalOperandToPrim(frame, rv.Operand)
		if err != nil {
			return err
		}
		bits, err := val.ToBytes()
		if err != nil {
			return err
		}
		src, ok := srcTy.(mir.IntType)
		if !ok {
			// bools and chars widen like unsigned integers.
			return ecx.sess.mem.WriteValue(dest, BytesVal(bits), destTy)
		}
		dst, ok := destTy.(mir.IntType)
		if !ok {
			panic(fmt.Sprintf("integer cast to non-integer type %s", mir.TypeKey(destTy)))
		}
		var widened uint64
		if src.Signed {
			widened = uint64(signExtend(bits, src.Bits))
		} else {
			widened = truncate(bits, src.Bits)
		}
		return ecx.sess.mem.WriteValue(dest, BytesVal(truncate(widened, dst.Bits)), destTy)

	case mir.CastIntToChar:
		val, _, err := ecx.evalOperandToPrim(frame, rv.Operand)
		if err != nil {
			return err
		}
		if _, cerr := val.ToChar(); cerr != nil {
			return cerr
		}
		return ecx.sess.mem.WriteValue(dest, val, destTy)

	case mir.CastPtrToInt:
		val, _, err := ecx.evalOperandToPrim(frame, rv.Operand)
		if err != nil {
			return err
		}
		ptr, err := val.ToPtr()
		if err != nil {
			return err
		}
		addr, err := ptr.ToUsize()
		if err != nil {
			return err
		}
		return ecx.sess.mem.WriteValue(dest, BytesVal(addr), destTy)

	case mir.CastIntToPtr:
		val, _, err := ecx.evalOperandToPrim(frame, rv.Operand)
		if err != nil {
			return err
		}
		bits, err := val.ToBytes()
		if err != nil {
			return err
		}
		// An integer-derived pointer has no provenance; it can be
		// stored and compared but never dereferenced.
		addr, _ := ecx.sess.mem.DataLayout().truncateToPtr(bits, false)
		return ecx.sess.mem.WriteValue(dest, PtrVal(PointerFromAddr(addr)), destTy)

	case mir.CastReifyFnPointer:
		val, err := ecx.evalOperand(frame, rv.Operand)
		if err != nil {
			return err
		}
		fnDef, ok := val.ty.(mir.FnDefType)
		if !ok {
			panic(fmt.Sprintf("reify cast on non-function type %s", mir.TypeKey(val.ty)))
		}
		substs := substSubsts(fnDef.Substs, frame.Substs)
		sig, serr := ecx.sess.provider.FnSig(fnDef.Def, substs)
		if serr != nil {
			return &Error{Kind: ErrNoMirFor, Name: ecx.sess.provider.Name(fnDef.Def)}
		}
		fnPtr := ecx.sess.mem.CreateFnPtr(mir.FnInstance{Def: fnDef.Def, Substs: substs}, sig)
		return ecx.sess.mem.WriteValue(dest, FnPtrVal(fnPtr), destTy)

	case mir.CastUnsize:
		return ecx.castUnsize(frame, rv, dest, destTy)

	default:
		panic(fmt.Sprintf("unhandled cast kind %d", rv.Kind))
	}
}

// castUnsize turns a thin reference into an interface-object fat
// pointer by pairing it with the vtable of the concrete type.
func (ecx *EvalContext) castUnsize(frame *Frame, rv mir.RvCast, dest Pointer, destTy mir.Type) *Error {
	val, _, err := ecx.evalOperandToPrim(frame, rv.Operand)
	if err != nil {
		return err
	}
	data, err := val.ToPtr()
	if err != nil {
		return err
	}

	srcElem := pointee(mir.Subst(typeOfCastSource(frame, rv), frame.Substs))
	dyn, ok := pointee(destTy).(mir.DynType)
	if !ok {
		panic(fmt.Sprintf("unsize cast to non-interface type %s", mir.TypeKey(destTy)))
	}
	iface := dyn.Interface
	substituted := mir.InterfaceRef{Def: iface.Def, Substs: substSubsts(iface.Substs, frame.Substs)}

	vtable, err := ecx.sess.getVtable(srcElem, &substituted)
	if err != nil {
		return err
	}
	return ecx.sess.mem.WriteValue(dest, FatPtrVal(data, vtable), destTy)
}

// typeOfCastSource recovers the static type of a cast's operand.
func typeOfCastSource(frame *Frame, rv mir.RvCast) mir.Type {
	switch op := rv.Operand.(type) {
	case mir.OpCopy:
		return placeType(frame, op.Place)
	case mir.OpMove:
		return placeType(frame, op.Place)
	case mir.OpConstant:
		return op.Constant.Type
	default:
		panic(fmt.Sprintf("unhandled operand %T", op))
	}
}

// placeType computes the type a place names without touching memory.
func placeType(frame *Frame, place mir.Place) mir.Type {
	ty := frame.Body.Locals[place.Local].Type
	for _, proj := range place.Projections {
		switch proj := proj.(type) {
		case mir.ProjField:
			ty = proj.Type
		case mir.ProjDeref:
			ty = pointee(mir.Subst(ty, frame.Substs))
		case mir.ProjIndex:
			ty = proj.Elem
		}
	}
	return ty
}
