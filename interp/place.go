package interp

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/mir"
)

// evalPlace resolves a place expression to the pointer it names and
// the type stored there, applying each projection in order.
func (ecx *EvalContext) evalPlace(frame *Frame, place mir.Place) (Pointer, mir.Type, *Error) {
	ptr, err := frame.local(place.Local)
	if err != nil {
		return Pointer{}, nil, err
	}
	ty := mir.Subst(frame.Body.Locals[place.Local].Type, frame.Substs)

	for _, proj := range place.Projections {
		switch proj := proj.(type) {
		case mir.ProjField:
			ptr, err = ptr.OffsetBy(proj.Offset, ecx.sess.mem)
			if err != nil {
				return Pointer{}, nil, err
			}
			ty = mir.Subst(proj.Type, frame.Substs)

		case mir.ProjDeref:
			elem := pointee(ty)
			val, err := ecx.sess.mem.ReadValue(ptr, ty)
			if err != nil {
				return Pointer{}, nil, err
			}
			// Dereferencing a fat pointer yields its data half; the
			// vtable half only matters at virtual call sites.
			if data, _, ferr := val.ToFatPtr(); ferr == nil {
				ptr = data
			} else {
				ptr, err = val.ToPtr()
				if err != nil {
					return Pointer{}, nil, err
				}
			}
			ty = elem

		case mir.ProjIndex:
			idxPtr, err := frame.local(proj.Local)
			if err != nil {
				return Pointer{}, nil, err
			}
			idx, err := ecx.sess.mem.ReadScalar(idxPtr, ecx.sess.mem.PointerSize())
			if err != nil {
				return Pointer{}, nil, err
			}
			elem := mir.Subst(proj.Elem, frame.Substs)
			layout, err := ecx.sess.layoutOf(elem)
			if err != nil {
				return Pointer{}, nil, err
			}
			ptr, err = ptr.OffsetBy(idx*layout.Size, ecx.sess.mem)
			if err != nil {
				return Pointer{}, nil, err
			}
			ty = elem

		default:
			panic(fmt.Sprintf("unhandled place projection %T", proj))
		}
	}
	return ptr, ty, nil
}

// pointee returns the type behind a reference or raw pointer.
func pointee(t mir.Type) mir.Type {
	switch t := t.(type) {
	case mir.RefType:
		return t.Elem
	case mir.RawPtrType:
		return t.Elem
	default:
		panic(fmt.Sprintf("deref of non-pointer type %s", mir.TypeKey(t)))
	}
}
