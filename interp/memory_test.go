package interp

import (
	"bytes"
	"testing"

	"github.com/kestrel-lang/kestrel/mir"
)

func testMemory() *Memory {
	return NewMemory(DataLayout{PointerSize: 8}, 1<<20)
}

func TestMemoryReadWriteBytes(t *testing.T) {
	mem := testMemory()
	p, err := mem.Allocate(8, 1)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	if err := mem.WriteBytes(p, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	got, err := mem.ReadBytes(p, 4)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("ReadBytes = %v", got)
	}
}

func TestMemoryReadUndefBytes(t *testing.T) {
	mem := testMemory()
	p, _ := mem.Allocate(8, 1)

	if _, err := mem.ReadBytes(p, 4); err == nil || err.Kind != ErrReadUndefBytes {
		t.Errorf("reading fresh allocation = %v, want read of undefined bytes", err)
	}

	// Defining only a prefix leaves the rest unreadable.
	if err := mem.WriteBytes(p, []byte{1, 2}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if _, err := mem.ReadBytes(p, 4); err == nil || err.Kind != ErrReadUndefBytes {
		t.Errorf("reading past defined prefix = %v, want read of undefined bytes", err)
	}
	if _, err := mem.ReadBytes(p, 2); err != nil {
		t.Errorf("reading defined prefix failed: %v", err)
	}
}

func TestMemoryBounds(t *testing.T) {
	mem := testMemory()
	p, _ := mem.Allocate(4, 1)

	if err := mem.WriteBytes(p, []byte{1, 2, 3, 4, 5}); err == nil || err.Kind != ErrPointerOutOfBounds {
		t.Errorf("write past the end = %v, want pointer out of bounds", err)
	}
	moved, _ := p.OffsetBy(2, mem)
	if _, err := mem.ReadBytes(moved, 4); err == nil || err.Kind != ErrPointerOutOfBounds {
		t.Errorf("read past the end = %v, want pointer out of bounds", err)
	}
}

func TestMemoryDanglingPointer(t *testing.T) {
	mem := testMemory()
	p, _ := mem.Allocate(4, 1)
	if err := mem.Deallocate(p); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}
	if _, err := mem.ReadBytes(p, 1); err == nil || err.Kind != ErrDanglingPointerDeref {
		t.Errorf("read through freed pointer = %v, want dangling pointer deref", err)
	}
	if _, err := mem.ReadBytes(PointerFromAddr(0x10), 1); err == nil || err.Kind != ErrDanglingPointerDeref {
		t.Errorf("read through integer pointer = %v, want dangling pointer deref", err)
	}
}

func TestMemoryFreeze(t *testing.T) {
	mem := testMemory()
	p, _ := mem.Allocate(4, 4)
	if err := mem.WriteScalar(p, 42, 4); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}
	mem.Freeze(p.Alloc)

	if err := mem.WriteScalar(p, 7, 4); err == nil || err.Kind != ErrModifiedConstantMemory {
		t.Errorf("write after freeze = %v, want modified constant memory", err)
	}
	if err := mem.Deallocate(p); err == nil || err.Kind != ErrModifiedConstantMemory {
		t.Errorf("dealloc after freeze = %v, want modified constant memory", err)
	}
	got, err := mem.ReadScalar(p, 4)
	if err != nil || got != 42 {
		t.Errorf("read after freeze = %d, %v; want 42", got, err)
	}
}

func TestMemoryStaticDiscipline(t *testing.T) {
	mem := testMemory()
	p, _ := mem.Allocate(4, 4)
	mem.MarkStatic(p.Alloc)

	if err := mem.WriteScalar(p, 1, 4); err != nil {
		t.Errorf("static memory must stay writable before freezing: %v", err)
	}
	if err := mem.Deallocate(p); err == nil || err.Kind != ErrDeallocatedStaticMemory {
		t.Errorf("dealloc of a static = %v, want deallocated static memory", err)
	}
}

func TestMemoryAlignment(t *testing.T) {
	mem := testMemory()
	p, _ := mem.Allocate(16, 8)
	odd, _ := p.OffsetBy(1, mem)

	err := mem.WriteScalar(odd, 1, 4)
	if err == nil || err.Kind != ErrAlignmentCheckFailed {
		t.Fatalf("unaligned write = %v, want alignment check failure", err)
	}
	if err.Required != 4 || err.Has != 1 {
		t.Errorf("alignment error reported required=%d has=%d, want 4 and 1", err.Required, err.Has)
	}

	// Offset 0 is not enough; the allocation itself must be aligned.
	weak, _ := mem.Allocate(16, 4)
	err = mem.WriteScalar(weak, 1, 8)
	if err == nil || err.Kind != ErrAlignmentCheckFailed {
		t.Fatalf("write needing 8 into a 4-aligned allocation = %v, want alignment check failure", err)
	}
	if err.Required != 8 || err.Has != 4 {
		t.Errorf("alignment error reported required=%d has=%d, want 8 and 4", err.Required, err.Has)
	}
}

func TestMemoryScalarLittleEndian(t *testing.T) {
	mem := testMemory()
	p, _ := mem.Allocate(8, 8)
	if err := mem.WriteScalar(p, 0x0102_0304, 4); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}
	raw, err := mem.ReadBytes(p, 4)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(raw, []byte{4, 3, 2, 1}) {
		t.Errorf("stored bytes = %v, want little endian", raw)
	}
}

func TestMemoryPointerRoundTrip(t *testing.T) {
	mem := testMemory()
	target, _ := mem.Allocate(4, 4)
	slot, _ := mem.Allocate(8, 8)

	moved, _ := target.OffsetBy(2, mem)
	if err := mem.WritePointer(slot, moved); err != nil {
		t.Fatalf("WritePointer: %v", err)
	}
	val, err := mem.ReadPointer(slot)
	if err != nil {
		t.Fatalf("ReadPointer: %v", err)
	}
	got, perr := val.ToPtr()
	if perr != nil || got != moved {
		t.Errorf("round trip = %v, %v; want %v", got, perr, moved)
	}

	// The stored pointer is opaque to byte-level reads.
	if _, err := mem.ReadBytes(slot, 8); err == nil || err.Kind != ErrReadPointerAsBytes {
		t.Errorf("byte read over stored pointer = %v, want read pointer as bytes", err)
	}

	// Overwriting with plain bytes severs the provenance.
	if err := mem.WriteScalar(slot, 0xbeef, 8); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}
	val, err = mem.ReadPointer(slot)
	if err != nil {
		t.Fatalf("ReadPointer after overwrite: %v", err)
	}
	if val.IsPtr() {
		t.Error("overwritten slot still reads back as a pointer")
	}
}

func TestMemoryCopyCarriesRelocations(t *testing.T) {
	mem := testMemory()
	target, _ := mem.Allocate(4, 4)
	src, _ := mem.Allocate(16, 8)
	dst, _ := mem.Allocate(16, 8)

	if err := mem.WritePointer(src, target); err != nil {
		t.Fatalf("WritePointer: %v", err)
	}
	tail, _ := src.OffsetBy(8, mem)
	if err := mem.WriteScalar(tail, 99, 8); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}

	if err := mem.Copy(src, dst, 16); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	val, err := mem.ReadPointer(dst)
	if err != nil {
		t.Fatalf("ReadPointer: %v", err)
	}
	got, perr := val.ToPtr()
	if perr != nil || got != target {
		t.Errorf("copied pointer = %v, %v; want %v", got, perr, target)
	}

	// Copying half a stored pointer clips it, which is an error.
	mid, _ := src.OffsetBy(4, mem)
	if err := mem.Copy(mid, dst, 8); err == nil || err.Kind != ErrReadPointerAsBytes {
		t.Errorf("clipped copy = %v, want read pointer as bytes", err)
	}
}

func TestMemoryOutOfMemory(t *testing.T) {
	mem := NewMemory(DataLayout{PointerSize: 8}, 64)
	if _, err := mem.Allocate(32, 8); err != nil {
		t.Fatalf("first allocation: %v", err)
	}
	_, err := mem.Allocate(64, 8)
	if err == nil || err.Kind != ErrOutOfMemory {
		t.Fatalf("allocation past the budget = %v, want out of memory", err)
	}
	if err.AllocationSize != 64 || err.MemorySize != 64 || err.MemoryUsage != 32 {
		t.Errorf("out of memory reported size=%d limit=%d usage=%d", err.AllocationSize, err.MemorySize, err.MemoryUsage)
	}
}

func TestMemoryFnPointers(t *testing.T) {
	mem := testMemory()
	inst := mir.FnInstance{Def: 5}
	sig := mir.FnPtrType{Ret: mir.BoolType{}}

	p1 := mem.CreateFnPtr(inst, sig)
	p2 := mem.CreateFnPtr(inst, sig)
	if p1 != p2 {
		t.Errorf("same instance produced distinct pointers %v and %v", p1, p2)
	}

	got, gotSig, err := mem.GetFn(p1)
	if err != nil {
		t.Fatalf("GetFn: %v", err)
	}
	if got.Def != 5 || mir.TypeKey(gotSig) != mir.TypeKey(sig) {
		t.Errorf("GetFn = %v, %v", got, gotSig)
	}

	if _, err := mem.ReadBytes(p1, 1); err == nil || err.Kind != ErrDerefFunctionPointer {
		t.Errorf("deref of fn pointer = %v, want deref function pointer", err)
	}
	moved, _ := p1.OffsetBy(1, mem)
	if _, _, err := mem.GetFn(moved); err == nil || err.Kind != ErrExecuteMemory {
		t.Errorf("GetFn at nonzero offset = %v, want execute memory", err)
	}

	data, _ := mem.Allocate(8, 8)
	if _, _, err := mem.GetFn(data); err == nil || err.Kind != ErrExecuteMemory {
		t.Errorf("GetFn on data allocation = %v, want execute memory", err)
	}
}

func TestMemoryTypedBoolAndChar(t *testing.T) {
	mem := testMemory()
	p, _ := mem.Allocate(4, 4)

	if err := mem.WriteScalar(p, 2, 1); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}
	if _, err := mem.ReadValue(p, mir.BoolType{}); err == nil || err.Kind != ErrInvalidBool {
		t.Errorf("bool read of 2 = %v, want invalid bool", err)
	}

	if err := mem.WriteScalar(p, 0xD800, 4); err != nil { // a surrogate
		t.Fatalf("WriteScalar: %v", err)
	}
	if _, err := mem.ReadValue(p, mir.CharType{}); err == nil || err.Kind != ErrInvalidChar {
		t.Errorf("char read of a surrogate = %v, want invalid char", err)
	}

	if err := mem.WriteScalar(p, uint64('k'), 4); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}
	val, err := mem.ReadValue(p, mir.CharType{})
	if err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	if r, _ := val.ToChar(); r != 'k' {
		t.Errorf("char round trip = %q", r)
	}
}

func TestMemoryReallocate(t *testing.T) {
	mem := testMemory()
	p, _ := mem.Allocate(8, 8)
	if err := mem.WriteScalar(p, 0x1122334455667788, 8); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}
	target, _ := mem.Allocate(4, 4)
	if err := mem.WritePointer(p, target); err != nil {
		t.Fatalf("WritePointer: %v", err)
	}

	grown, err := mem.Reallocate(p, 16, 8)
	if err != nil {
		t.Fatalf("Reallocate: %v", err)
	}
	val, rerr := mem.ReadPointer(grown)
	if rerr != nil {
		t.Fatalf("ReadPointer after grow: %v", rerr)
	}
	got, _ := val.ToPtr()
	if got != target {
		t.Errorf("relocation lost across reallocation: %v", got)
	}
	if _, rerr := mem.ReadBytes(Pointer{Alloc: grown.Alloc, Offset: 8}, 8); rerr == nil || rerr.Kind != ErrReadUndefBytes {
		t.Errorf("grown tail = %v, want undefined read", rerr)
	}
	if _, rerr := mem.ReadBytes(p, 1); rerr == nil || rerr.Kind != ErrDanglingPointerDeref {
		t.Errorf("old pointer after reallocation = %v, want dangling", rerr)
	}

	static, _ := mem.Allocate(4, 4)
	mem.MarkStatic(static.Alloc)
	if _, err := mem.Reallocate(static, 8, 4); err == nil || err.Kind != ErrReallocatedStaticMemory {
		t.Errorf("reallocating a static = %v, want static reallocation error", err)
	}

	frozen, _ := mem.Allocate(4, 4)
	mem.Freeze(frozen.Alloc)
	if _, err := mem.Reallocate(frozen, 8, 4); err == nil || err.Kind != ErrModifiedConstantMemory {
		t.Errorf("reallocating a frozen constant = %v, want modified constant error", err)
	}
}
