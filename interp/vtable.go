package interp

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/mir"
)

// vtableHeaderSlots is the number of pointer-sized header slots before
// the method pointers: destructor, size, alignment.
const vtableHeaderSlots = 3

// vtableKey caches one built vtable per (concrete type, interface)
// pair.
type vtableKey struct {
	ty    string // mir.TypeKey of the concrete type
	iface string // InterfaceRef.Key
}

// getVtable returns the frozen vtable allocation pairing a concrete
// type with an interface. A nil interface (an object type with no
// principal interface) gets a header-only vtable. Layout, in
// pointer-sized slots:
//
//	slot 0      destructor, or null if the type has none
//	slot 1      size of the concrete type
//	slot 2      alignment of the concrete type
//	slot 3..    method pointers, interface-first then supertraits
//	            depth-first, each in declaration order
//
// A method the front end cannot prove callable for this receiver gets
// a null slot instead of failing the whole vtable.
func (s *Session) getVtable(concrete mir.Type, iface *mir.InterfaceRef) (Pointer, *Error) {
	key := vtableKey{ty: mir.TypeKey(concrete)}
	if iface != nil {
		key.iface = iface.Key()
	}
	if ptr, ok := s.vtables[key]; ok {
		return ptr, nil
	}

	var methods []ownedMethod
	if iface != nil {
		var err error
		methods, err = s.collectMethods(*iface)
		if err != nil {
			// An unsound interface graph is a front-end bug, not an
			// evaluation failure.
			panic(fmt.Sprintf("broken interface %s: %v", iface.Key(), err))
		}
	}

	layout, lerr := s.provider.Layout(concrete)
	if lerr != nil {
		panic(fmt.Sprintf("no layout for vtable type %s: %v", mir.TypeKey(concrete), lerr))
	}

	ptrSize := s.mem.PointerSize()
	size := ptrSize * (vtableHeaderSlots + uint64(len(methods)))
	vtable, aerr := s.mem.Allocate(size, ptrSize)
	if aerr != nil {
		return Pointer{}, aerr
	}

	writeSlot := func(slot uint64, val uint64) *Error {
		p, err := vtable.OffsetBy(slot*ptrSize, s.mem)
		if err != nil {
			return err
		}
		return s.mem.WriteScalar(p, val, ptrSize)
	}
	writePtrSlot := func(slot uint64, fn mir.FnInstance, sig mir.FnPtrType) *Error {
		p, err := vtable.OffsetBy(slot*ptrSize, s.mem)
		if err != nil {
			return err
		}
		return s.mem.WritePointer(p, s.mem.CreateFnPtr(fn, sig))
	}

	if dtor, ok := s.provider.Destructor(concrete); ok {
		if err := writePtrSlot(0, dtor, mir.FnPtrType{}); err != nil {
			return Pointer{}, err
		}
	} else {
		if err := writeSlot(0, 0); err != nil {
			return Pointer{}, err
		}
	}
	if err := writeSlot(1, layout.Size); err != nil {
		return Pointer{}, err
	}
	if err := writeSlot(2, layout.Align); err != nil {
		return Pointer{}, err
	}

	for i, m := range methods {
		slot := vtableHeaderSlots + uint64(i)
		fn, ok, rerr := s.provider.ResolveMethod(m.owner, m.sig, concrete)
		if rerr != nil {
			panic(fmt.Sprintf("method resolution failed for %s on %s: %v", m.sig.Name, mir.TypeKey(concrete), rerr))
		}
		if !ok {
			if err := writeSlot(slot, 0); err != nil {
				return Pointer{}, err
			}
			continue
		}
		sig, serr := s.provider.FnSig(fn.Def, fn.Substs)
		if serr != nil {
			panic(fmt.Sprintf("no signature for vtable method %s: %v", m.sig.Name, serr))
		}
		if err := writePtrSlot(slot, fn, sig); err != nil {
			return Pointer{}, err
		}
	}

	s.mem.Freeze(vtable.Alloc)
	s.vtables[key] = vtable
	s.log.Debug("built vtable", "type", mir.TypeKey(concrete), "interface", key.iface, "methods", len(methods))
	return vtable, nil
}

// ownedMethod pairs a method with the interface that declares it, so
// resolution can name the right interface for inherited methods.
type ownedMethod struct {
	owner mir.InterfaceRef
	sig   mir.MethodSig
}

// collectMethods flattens an interface's method list: its own methods
// first, then each supertrait's, depth-first in declaration order.
func (s *Session) collectMethods(iface mir.InterfaceRef) ([]ownedMethod, error) {
	def, err := s.provider.Interface(iface)
	if err != nil {
		return nil, err
	}
	methods := make([]ownedMethod, 0, len(def.Methods))
	for _, m := range def.Methods {
		methods = append(methods, ownedMethod{owner: iface, sig: m})
	}
	for _, super := range def.Supers {
		inherited, err := s.collectMethods(super)
		if err != nil {
			return nil, err
		}
		methods = append(methods, inherited...)
	}
	return methods, nil
}
