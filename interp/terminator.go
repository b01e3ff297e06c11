package interp

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/mir"
)

// execTerminator runs the current block's terminator and repositions
// the frame (or pushes/pops frames) accordingly.
func (ecx *EvalContext) execTerminator(frame *Frame, term *mir.Terminator) *Error {
	frame.Span = term.Span

	switch kind := term.Kind.(type) {
	case mir.TermGoto:
		frame.Block = kind.Target
		frame.Stmt = 0
		return nil

	case mir.TermSwitchInt:
		val, _, err := ecx.evalOperandToPrim(frame, kind.Discr)
		if err != nil {
			return err
		}
		discr, err := val.ToBytes()
		if err != nil {
			return err
		}
		target := kind.Otherwise
		for i, v := range kind.Values {
			if v == discr {
				target = kind.Targets[i]
				break
			}
		}
		frame.Block = target
		frame.Stmt = 0
		return nil

	case mir.TermReturn:
		return ecx.popStackFrame()

	case mir.TermCall:
		return ecx.execCall(frame, kind)

	case mir.TermAssert:
		val, _, err := ecx.evalOperandToPrim(frame, kind.Cond)
		if err != nil {
			return err
		}
		cond, err := val.ToBool()
		if err != nil {
			return err
		}
		if cond != kind.Expected {
			return ecx.assertError(frame, kind)
		}
		frame.Block = kind.Target
		frame.Stmt = 0
		return nil

	case mir.TermDrop:
		return ecx.execDrop(frame, kind)

	case mir.TermUnreachable:
		return &Error{Kind: ErrUnreachable}

	default:
		panic(fmt.Sprintf("unhandled terminator %T", kind))
	}
}

// assertError builds the failure for a false assertion, evaluating the
// message's runtime operands where it has any.
func (ecx *EvalContext) assertError(frame *Frame, kind mir.TermAssert) *Error {
	switch msg := kind.Msg.(type) {
	case mir.AssertBoundsCheck:
		lenVal, _, err := ecx.evalOperandToPrim(frame, msg.Len)
		if err != nil {
			return err
		}
		length, err := lenVal.ToBytes()
		if err != nil {
			return err
		}
		idxVal, _, err := ecx.evalOperandToPrim(frame, msg.Index)
		if err != nil {
			return err
		}
		index, err := idxVal.ToBytes()
		if err != nil {
			return err
		}
		return &Error{Kind: ErrArrayIndexOutOfBounds, Len: length, Index: index}

	case mir.AssertOverflow:
		return &Error{Kind: ErrOverflowingMath, Msg: msg.Op.String()}

	default:
		panic(fmt.Sprintf("unhandled assert message %T", msg))
	}
}

// execCall evaluates the callee and arguments in the caller's frame,
// then pushes the callee frame with the arguments written into its
// parameter locals.
func (ecx *EvalContext) execCall(frame *Frame, kind mir.TermCall) *Error {
	callee, err := ecx.evalOperand(frame, kind.Func)
	if err != nil {
		return err
	}

	args := make([]opValue, len(kind.Args))
	for i, arg := range kind.Args {
		args[i], err = ecx.evalOperand(frame, arg)
		if err != nil {
			return err
		}
	}

	ret, _, err := ecx.evalPlace(frame, kind.Dest)
	if err != nil {
		return err
	}

	var instance mir.FnInstance
	switch calleeTy := callee.ty.(type) {
	case mir.FnDefType:
		substs := substSubsts(calleeTy.Substs, frame.Substs)
		switch ecx.sess.provider.DefKind(calleeTy.Def) {
		case mir.DefKindClosure:
			return &Error{Kind: ErrCalledClosureAsFunction}
		case mir.DefKindIntrinsic:
			return ecx.execIntrinsic(frame, calleeTy.Def, args, kind.Target)
		}

		res, rerr := ecx.sess.provider.ResolveCall(calleeTy.Def, substs)
		if rerr != nil {
			return &Error{Kind: ErrNoMirFor, Name: ecx.sess.provider.Name(calleeTy.Def)}
		}
		switch res := res.(type) {
		case mir.CallConcrete:
			instance = res.Fn
		case mir.CallVirtual:
			instance, err = ecx.resolveVirtual(args, uint64(res.Slot))
			if err != nil {
				return err
			}
			// The receiver an interface method sees is the data half
			// of the fat pointer it was called through, retyped as
			// the thin receiver pointer of the resolved method.
			if len(args) > 0 {
				data, _, ferr := mustFatPtr(args[0])
				if ferr != nil {
					return ferr
				}
				sig, serr := ecx.sess.provider.FnSig(instance.Def, instance.Substs)
				if serr != nil || len(sig.Args) == 0 {
					panic(fmt.Sprintf("broken receiver signature for %s: %v", ecx.sess.provider.Name(instance.Def), serr))
				}
				args[0] = opValue{prim: PtrVal(data), ty: sig.Args[0]}
			}
		default:
			panic(fmt.Sprintf("unhandled call resolution %T", res))
		}

	case mir.FnPtrType:
		fnPtr, perr := callee.prim.ToFnPtr()
		if perr != nil {
			return perr
		}
		var sig mir.FnPtrType
		instance, sig, err = ecx.sess.mem.GetFn(fnPtr)
		if err != nil {
			return err
		}
		if !signaturesMatch(sig, calleeTy) {
			return &Error{Kind: ErrFunctionPointerTyMismatch}
		}

	default:
		panic(fmt.Sprintf("call through non-function type %s", mir.TypeKey(callee.ty)))
	}

	body, berr := ecx.sess.provider.Body(instance.Def, instance.Substs)
	if berr != nil {
		return &Error{Kind: ErrNoMirFor, Name: ecx.sess.provider.Name(instance.Def)}
	}
	if err := ecx.pushStackFrame(instance.Def, instance.Substs, body, ret, nil, &kind.Target, cleanupNone); err != nil {
		return err
	}

	newFrame := ecx.frame()
	if uint32(len(args)) != body.ArgCount {
		return &Error{Kind: ErrFunctionPointerTyMismatch}
	}
	for i, arg := range args {
		slot := newFrame.Locals[1+i]
		if err := ecx.writeOpValue(slot.ptr, arg); err != nil {
			return err
		}
	}
	return nil
}

// resolveVirtual loads the method pointer from the receiver's vtable.
func (ecx *EvalContext) resolveVirtual(args []opValue, slot uint64) (mir.FnInstance, *Error) {
	if len(args) == 0 {
		panic("virtual call with no receiver")
	}
	_, vtable, err := mustFatPtr(args[0])
	if err != nil {
		return mir.FnInstance{}, err
	}
	ptrSize := ecx.sess.mem.PointerSize()
	slotPtr, err := vtable.OffsetBy(ptrSize*(vtableHeaderSlots+slot), ecx.sess.mem)
	if err != nil {
		return mir.FnInstance{}, err
	}
	val, err := ecx.sess.mem.ReadPointer(slotPtr)
	if err != nil {
		return mir.FnInstance{}, err
	}
	fnPtr, err := val.ToFnPtr()
	if err != nil {
		return mir.FnInstance{}, err
	}
	instance, _, err := ecx.sess.mem.GetFn(fnPtr)
	if err != nil {
		return mir.FnInstance{}, err
	}
	return instance, nil
}

// mustFatPtr extracts the fat pointer value of an interface-object
// argument, reading it from memory if the argument travels by ref.
func mustFatPtr(arg opValue) (data, vtable Pointer, err *Error) {
	if arg.byRef {
		return Pointer{}, Pointer{}, &Error{Kind: ErrReadBytesAsPointer}
	}
	return arg.prim.ToFatPtr()
}

// signaturesMatch compares a function's signature against the type a
// pointer is called through. Argument and return types must agree
// exactly.
func signaturesMatch(sig, want mir.FnPtrType) bool {
	if len(sig.Args) != len(want.Args) {
		return false
	}
	for i := range sig.Args {
		if mir.TypeKey(sig.Args[i]) != mir.TypeKey(want.Args[i]) {
			return false
		}
	}
	return mir.TypeKey(sig.Ret) == mir.TypeKey(want.Ret)
}

// execDrop runs the destructor of the dropped place if its type has
// one, then continues at the target block.
func (ecx *EvalContext) execDrop(frame *Frame, kind mir.TermDrop) *Error {
	ptr, ty, err := ecx.evalPlace(frame, kind.Place)
	if err != nil {
		return err
	}

	dtor, ok := ecx.sess.provider.Destructor(ty)
	if !ok {
		frame.Block = kind.Target
		frame.Stmt = 0
		return nil
	}

	body, berr := ecx.sess.provider.Body(dtor.Def, dtor.Substs)
	if berr != nil {
		return &Error{Kind: ErrNoMirFor, Name: ecx.sess.provider.Name(dtor.Def)}
	}

	// Destructors return unit; give them a zero-sized return slot.
	ret, aerr := ecx.sess.mem.Allocate(0, 1)
	if aerr != nil {
		return aerr
	}
	if err := ecx.pushStackFrame(dtor.Def, dtor.Substs, body, ret, nil, &kind.Target, cleanupNone); err != nil {
		return err
	}
	newFrame := ecx.frame()
	if body.ArgCount > 0 {
		recv := opValue{prim: PtrVal(ptr), ty: mir.RawPtrType{Elem: ty}}
		if err := ecx.writeOpValue(newFrame.Locals[1].ptr, recv); err != nil {
			return err
		}
	}
	return nil
}

// execIntrinsic handles compiler intrinsics by name; there is no MIR
// body behind them.
func (ecx *EvalContext) execIntrinsic(frame *Frame, def mir.DefId, args []opValue, target mir.BlockId) *Error {
	name := ecx.sess.provider.Name(def)
	switch name {
	case "panic":
		msg := "explicit panic"
		if len(args) > 0 {
			msg = fmt.Sprintf("panic with argument %s", args[0].prim)
		}
		return &Error{Kind: ErrPanic, Msg: msg}

	case "assume":
		if len(args) != 1 {
			return &Error{Kind: ErrUnimplemented, Msg: "assume expects one argument"}
		}
		held, err := args[0].prim.ToBool()
		if err != nil {
			return err
		}
		if !held {
			return &Error{Kind: ErrAssumptionNotHeld}
		}
		frame.Block = target
		frame.Stmt = 0
		return nil

	case "unreachable":
		return &Error{Kind: ErrUnreachable}

	default:
		return &Error{Kind: ErrUnimplemented, Msg: fmt.Sprintf("unimplemented intrinsic %q", name)}
	}
}
