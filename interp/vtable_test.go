package interp

import (
	"testing"

	"github.com/kestrel-lang/kestrel/mir"
)

// vtableFixture scripts an interface hierarchy:
//
//	interface Base    { fn base_method(&self); }
//	interface Shape: Base { fn area(&self); fn name(&self); }
//
// implemented for u32, whose destructor and methods are stub fns.
func vtableFixture() (*testProvider, mir.InterfaceRef) {
	p := newTestProvider()

	unitFn := func(def mir.DefId, name string) {
		p.define(def, name, mir.DefKindFn, &mir.Body{
			Blocks:     []mir.BasicBlock{{Terminator: mir.Terminator{Kind: mir.TermReturn{}}}},
			Locals:     []mir.LocalDecl{{Type: tU32()}},
			ReturnType: tU32(),
		})
	}
	unitFn(20, "area_impl")
	unitFn(21, "name_impl")
	unitFn(22, "base_impl")
	unitFn(23, "drop_impl")

	p.define(30, "Base", mir.DefKindInterface, nil)
	p.define(31, "Shape", mir.DefKindInterface, nil)
	p.define(40, "Shape::area", mir.DefKindFn, nil)
	p.define(41, "Shape::name", mir.DefKindFn, nil)
	p.define(42, "Base::base_method", mir.DefKindFn, nil)

	p.ifaces[30] = mir.InterfaceDef{
		Methods: []mir.MethodSig{{Def: 42, Name: "base_method"}},
	}
	p.ifaces[31] = mir.InterfaceDef{
		Supers:  []mir.InterfaceRef{{Def: 30}},
		Methods: []mir.MethodSig{{Def: 40, Name: "area"}, {Def: 41, Name: "name"}},
	}

	p.resolutions[40] = mir.FnInstance{Def: 20}
	p.resolutions[41] = mir.FnInstance{Def: 21}
	p.resolutions[42] = mir.FnInstance{Def: 22}
	p.dtors[mir.TypeKey(tU32())] = mir.FnInstance{Def: 23}

	return p, mir.InterfaceRef{Def: 31}
}

func readSlot(t *testing.T, s *Session, vtable Pointer, slot uint64) PrimVal {
	t.Helper()
	p, err := vtable.OffsetBy(slot*8, s.mem)
	if err != nil {
		t.Fatalf("slot offset: %v", err)
	}
	val, err := s.mem.ReadPointer(p)
	if err != nil {
		t.Fatalf("slot read: %v", err)
	}
	return val
}

func TestVtableLayout(t *testing.T) {
	p, shape := vtableFixture()
	s := testSession(p)

	vtable, err := s.GetVtable(tU32(), &shape)
	if err != nil {
		t.Fatalf("GetVtable: %v", err)
	}

	alloc, ok := s.mem.Allocation(vtable.Alloc)
	if !ok {
		t.Fatal("vtable allocation missing")
	}
	// drop + size + align + area + name + base_method.
	if alloc.Size() != 6*8 {
		t.Fatalf("vtable size = %d, want 48", alloc.Size())
	}
	if !alloc.Frozen() {
		t.Error("vtable not frozen")
	}

	drop := readSlot(t, s, vtable, 0)
	fnPtr, ferr := drop.ToFnPtr()
	if ferr != nil {
		t.Fatalf("drop slot is not a function pointer: %v", ferr)
	}
	inst, _, gerr := s.mem.GetFn(fnPtr)
	if gerr != nil || inst.Def != 23 {
		t.Errorf("drop slot resolves to %v, want drop_impl", inst)
	}

	size, _ := readSlot(t, s, vtable, 1).ToBytes()
	align, _ := readSlot(t, s, vtable, 2).ToBytes()
	if size != 4 || align != 4 {
		t.Errorf("size/align slots = %d/%d, want 4/4", size, align)
	}

	// Own methods first, then the supertrait's.
	for i, want := range []mir.DefId{20, 21, 22} {
		val := readSlot(t, s, vtable, uint64(3+i))
		fnPtr, ferr := val.ToFnPtr()
		if ferr != nil {
			t.Fatalf("method slot %d is not a function pointer: %v", i, ferr)
		}
		inst, _, gerr := s.mem.GetFn(fnPtr)
		if gerr != nil || inst.Def != want {
			t.Errorf("method slot %d resolves to %v, want def %d", i, inst, want)
		}
	}
}

func TestVtableNullSlotForUnprovableMethod(t *testing.T) {
	p, shape := vtableFixture()
	p.unprovable[41] = true // name() has an unprovable default

	s := testSession(p)
	vtable, err := s.GetVtable(tU32(), &shape)
	if err != nil {
		t.Fatalf("GetVtable: %v", err)
	}

	name := readSlot(t, s, vtable, 4)
	if name.IsPtr() {
		t.Fatalf("unprovable method slot = %v, want a null scalar", name)
	}
	if bits, _ := name.ToBytes(); bits != 0 {
		t.Errorf("unprovable method slot = %#x, want 0", bits)
	}

	// Its neighbors still resolve.
	if _, ferr := readSlot(t, s, vtable, 3).ToFnPtr(); ferr != nil {
		t.Errorf("area slot broken: %v", ferr)
	}
}

func TestVtableNoDestructor(t *testing.T) {
	p, shape := vtableFixture()
	delete(p.dtors, mir.TypeKey(tU32()))

	s := testSession(p)
	vtable, err := s.GetVtable(tU32(), &shape)
	if err != nil {
		t.Fatalf("GetVtable: %v", err)
	}
	drop := readSlot(t, s, vtable, 0)
	if drop.IsPtr() {
		t.Fatalf("drop slot = %v, want a null scalar", drop)
	}
	if bits, _ := drop.ToBytes(); bits != 0 {
		t.Errorf("drop slot = %#x, want 0", bits)
	}
}

func TestVtableIsCached(t *testing.T) {
	p, shape := vtableFixture()
	s := testSession(p)

	first, err := s.GetVtable(tU32(), &shape)
	if err != nil {
		t.Fatalf("first GetVtable: %v", err)
	}
	second, err := s.GetVtable(tU32(), &shape)
	if err != nil {
		t.Fatalf("second GetVtable: %v", err)
	}
	if first != second {
		t.Errorf("same pair built two vtables: %v and %v", first, second)
	}

	other, err := s.GetVtable(mir.IntType{Bits: 64}, &shape)
	if err != nil {
		t.Fatalf("GetVtable for a second type: %v", err)
	}
	if other == first {
		t.Error("distinct concrete types share one vtable")
	}
}

func TestVtableWithoutInterface(t *testing.T) {
	p, shape := vtableFixture()
	s := testSession(p)

	vtable, err := s.GetVtable(tU32(), nil)
	if err != nil {
		t.Fatalf("GetVtable: %v", err)
	}

	alloc, ok := s.mem.Allocation(vtable.Alloc)
	if !ok {
		t.Fatal("vtable allocation missing")
	}
	// Header only: drop + size + align.
	if alloc.Size() != 3*8 {
		t.Fatalf("vtable size = %d, want 24", alloc.Size())
	}
	if !alloc.Frozen() {
		t.Error("vtable not frozen")
	}

	drop := readSlot(t, s, vtable, 0)
	fnPtr, ferr := drop.ToFnPtr()
	if ferr != nil {
		t.Fatalf("drop slot is not a function pointer: %v", ferr)
	}
	inst, _, gerr := s.mem.GetFn(fnPtr)
	if gerr != nil || inst.Def != 23 {
		t.Errorf("drop slot resolves to %v, want drop_impl", inst)
	}
	size, _ := readSlot(t, s, vtable, 1).ToBytes()
	align, _ := readSlot(t, s, vtable, 2).ToBytes()
	if size != 4 || align != 4 {
		t.Errorf("size/align slots = %d/%d, want 4/4", size, align)
	}

	// The headerless pair caches independently of interface vtables.
	withIface, err := s.GetVtable(tU32(), &shape)
	if err != nil {
		t.Fatalf("GetVtable with interface: %v", err)
	}
	if withIface == vtable {
		t.Error("interface and interface-free vtables share one allocation")
	}
}
