package interp

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/kestrel-lang/kestrel/mir"
)

// Allocation is one contiguous byte buffer with a known size and
// alignment. Definedness is tracked per byte; stored pointers are
// tracked as relocations so provenance survives a round-trip through
// memory.
type Allocation struct {
	bytes       []byte
	defined     []uint64           // bitset, one bit per byte
	align       uint64             // power of two
	relocations map[uint64]AllocId // byte offset of a stored pointer -> its target
	frozen      bool
	static      bool
}

// Size returns the allocation's size in bytes.
func (a *Allocation) Size() uint64 { return uint64(len(a.bytes)) }

// Align returns the allocation's alignment in bytes.
func (a *Allocation) Align() uint64 { return a.align }

// Frozen reports whether the allocation has been made read-only.
func (a *Allocation) Frozen() bool { return a.frozen }

func (a *Allocation) isDefined(off, n uint64) bool {
	for i := off; i < off+n; i++ {
		if a.defined[i/64]&(1<<(i%64)) == 0 {
			return false
		}
	}
	return true
}

func (a *Allocation) markDefined(off, n uint64, defined bool) {
	for i := off; i < off+n; i++ {
		if defined {
			a.defined[i/64] |= 1 << (i % 64)
		} else {
			a.defined[i/64] &^= 1 << (i % 64)
		}
	}
}

// relocationsIn reports whether any stored pointer overlaps
// [off, off+n). A pointer stored at r covers r..r+ptrSize.
func (a *Allocation) relocationsIn(off, n, ptrSize uint64) bool {
	for r := range a.relocations {
		if r+ptrSize > off && r < off+n {
			return true
		}
	}
	return false
}

func (a *Allocation) clearRelocationsIn(off, n, ptrSize uint64) {
	for r := range a.relocations {
		if r+ptrSize > off && r < off+n {
			delete(a.relocations, r)
		}
	}
}

// fnDef is the target of a function-pointer allocation. Function
// pointers occupy allocation ids but own no bytes; dereferencing one
// is an error.
type fnDef struct {
	instance mir.FnInstance
	sig      mir.FnPtrType
}

// Memory owns every allocation of an evaluation session.
type Memory struct {
	layout DataLayout
	allocs map[AllocId]*Allocation
	fns    map[AllocId]*fnDef
	fnIds  map[string]AllocId // dedup key -> existing fn pointer
	next   AllocId

	limit uint64 // total byte budget
	usage uint64
}

// NewMemory creates an empty memory with the given pointer width and
// byte budget.
func NewMemory(layout DataLayout, limit uint64) *Memory {
	return &Memory{
		layout: layout,
		allocs: make(map[AllocId]*Allocation),
		fns:    make(map[AllocId]*fnDef),
		fnIds:  make(map[string]AllocId),
		next:   1, // id 0 is NoAlloc
		limit:  limit,
	}
}

// DataLayout implements HasDataLayout.
func (m *Memory) DataLayout() DataLayout { return m.layout }

// PointerSize returns the target pointer width in bytes.
func (m *Memory) PointerSize() uint64 { return m.layout.PointerSize }

// Allocate creates a new allocation of undefined bytes.
func (m *Memory) Allocate(size, align uint64) (Pointer, *Error) {
	if align == 0 {
		align = 1
	}
	if m.usage+size > m.limit {
		return Pointer{}, &Error{
			Kind:           ErrOutOfMemory,
			AllocationSize: size,
			MemorySize:     m.limit,
			MemoryUsage:    m.usage,
		}
	}
	m.usage += size
	id := m.next
	m.next++
	m.allocs[id] = &Allocation{
		bytes:       make([]byte, size),
		defined:     make([]uint64, (size+63)/64),
		align:       align,
		relocations: make(map[uint64]AllocId),
	}
	return Pointer{Alloc: id, Offset: 0}, nil
}

// Reallocate resizes an allocation in place, preserving its contents,
// definedness and relocations up to the smaller of the two sizes.
// Statics and frozen constants are session-lifetime and must not be
// resized by evaluated code.
func (m *Memory) Reallocate(p Pointer, newSize, align uint64) (Pointer, *Error) {
	if p.Offset != 0 {
		return Pointer{}, &Error{Kind: ErrInvalidMemoryAccess}
	}
	old, ok := m.allocs[p.Alloc]
	if !ok {
		if _, isFn := m.fns[p.Alloc]; isFn {
			return Pointer{}, &Error{Kind: ErrDerefFunctionPointer}
		}
		return Pointer{}, &Error{Kind: ErrDanglingPointerDeref}
	}
	if old.static {
		return Pointer{}, &Error{Kind: ErrReallocatedStaticMemory}
	}
	if old.frozen {
		return Pointer{}, &Error{Kind: ErrModifiedConstantMemory}
	}
	np, err := m.Allocate(newSize, align)
	if err != nil {
		return Pointer{}, err
	}
	fresh := m.allocs[np.Alloc]
	keep := old.Size()
	if newSize < keep {
		keep = newSize
	}
	copy(fresh.bytes, old.bytes[:keep])
	for i := uint64(0); i < keep; i++ {
		fresh.markDefined(i, 1, old.isDefined(i, 1))
	}
	for off, target := range old.relocations {
		if off+m.PointerSize() <= keep {
			fresh.relocations[off] = target
		}
	}
	m.usage -= old.Size()
	delete(m.allocs, p.Alloc)
	return np, nil
}

// Deallocate releases an allocation. Statics and frozen constants are
// session-lifetime and must not be deallocated by evaluated code.
func (m *Memory) Deallocate(p Pointer) *Error {
	if p.Offset != 0 {
		return &Error{Kind: ErrInvalidMemoryAccess}
	}
	alloc, ok := m.allocs[p.Alloc]
	if !ok {
		if _, isFn := m.fns[p.Alloc]; isFn {
			return &Error{Kind: ErrDerefFunctionPointer}
		}
		return &Error{Kind: ErrDanglingPointerDeref}
	}
	if alloc.static {
		return &Error{Kind: ErrDeallocatedStaticMemory}
	}
	if alloc.frozen {
		return &Error{Kind: ErrModifiedConstantMemory}
	}
	m.usage -= alloc.Size()
	delete(m.allocs, p.Alloc)
	return nil
}

// discard removes an allocation unconditionally. Used only when a
// failed top-level request rolls back the cache entries it created.
func (m *Memory) discard(id AllocId) {
	if alloc, ok := m.allocs[id]; ok {
		m.usage -= alloc.Size()
		delete(m.allocs, id)
	}
}

// Freeze marks an allocation read-only. Subsequent writes fail with
// ModifiedConstantMemory.
func (m *Memory) Freeze(id AllocId) {
	if alloc, ok := m.allocs[id]; ok {
		alloc.frozen = true
	}
}

// MarkStatic pins an allocation for the session lifetime; deallocating
// or resizing it becomes an error.
func (m *Memory) MarkStatic(id AllocId) {
	if alloc, ok := m.allocs[id]; ok {
		alloc.static = true
	}
}

// Allocation looks up an allocation by id; used by tests and the demo
// tool to inspect results.
func (m *Memory) Allocation(id AllocId) (*Allocation, bool) {
	alloc, ok := m.allocs[id]
	return alloc, ok
}

// getAlloc resolves a pointer for reading.
func (m *Memory) getAlloc(p Pointer) (*Allocation, *Error) {
	if !p.HasProvenance() {
		return nil, &Error{Kind: ErrDanglingPointerDeref}
	}
	alloc, ok := m.allocs[p.Alloc]
	if !ok {
		if _, isFn := m.fns[p.Alloc]; isFn {
			return nil, &Error{Kind: ErrDerefFunctionPointer}
		}
		return nil, &Error{Kind: ErrDanglingPointerDeref}
	}
	return alloc, nil
}

// getAllocMut resolves a pointer for writing, enforcing the freeze
// invariant.
func (m *Memory) getAllocMut(p Pointer) (*Allocation, *Error) {
	alloc, err := m.getAlloc(p)
	if err != nil {
		return nil, err
	}
	if alloc.frozen {
		return nil, &Error{Kind: ErrModifiedConstantMemory}
	}
	return alloc, nil
}

func (m *Memory) checkBounds(alloc *Allocation, off, n uint64) *Error {
	if off+n > alloc.Size() || off+n < off {
		return &Error{Kind: ErrPointerOutOfBounds, AllocationSize: alloc.Size()}
	}
	return nil
}

func (m *Memory) checkAlign(p Pointer, required uint64) *Error {
	if required <= 1 {
		return nil
	}
	alloc, err := m.getAlloc(p)
	if err != nil {
		return err
	}
	if alloc.align < required {
		return &Error{
			Kind:     ErrAlignmentCheckFailed,
			Required: required,
			Has:      alloc.align,
		}
	}
	if p.Offset%required == 0 {
		return nil
	}
	return &Error{
		Kind:     ErrAlignmentCheckFailed,
		Required: required,
		Has:      uint64(1) << bits.TrailingZeros64(p.Offset),
	}
}

// ReadBytes reads n raw bytes. The range must be fully defined and
// must not overlap any stored pointer.
func (m *Memory) ReadBytes(p Pointer, n uint64) ([]byte, *Error) {
	alloc, err := m.getAlloc(p)
	if err != nil {
		return nil, err
	}
	if err := m.checkBounds(alloc, p.Offset, n); err != nil {
		return nil, err
	}
	if alloc.relocationsIn(p.Offset, n, m.PointerSize()) {
		return nil, &Error{Kind: ErrReadPointerAsBytes}
	}
	if !alloc.isDefined(p.Offset, n) {
		return nil, &Error{Kind: ErrReadUndefBytes}
	}
	return alloc.bytes[p.Offset : p.Offset+n], nil
}

// WriteBytes writes raw bytes, defining the range and severing any
// stored pointer it overlaps.
func (m *Memory) WriteBytes(p Pointer, data []byte) *Error {
	alloc, err := m.getAllocMut(p)
	if err != nil {
		return err
	}
	n := uint64(len(data))
	if err := m.checkBounds(alloc, p.Offset, n); err != nil {
		return err
	}
	alloc.clearRelocationsIn(p.Offset, n, m.PointerSize())
	copy(alloc.bytes[p.Offset:], data)
	alloc.markDefined(p.Offset, n, true)
	return nil
}

// ReadScalar reads a little-endian integer of the given byte size.
func (m *Memory) ReadScalar(p Pointer, size uint64) (uint64, *Error) {
	if err := m.checkAlign(p, size); err != nil {
		return 0, err
	}
	raw, err := m.ReadBytes(p, size)
	if err != nil {
		return 0, err
	}
	var buf [8]byte
	copy(buf[:], raw)
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteScalar writes a little-endian integer of the given byte size.
func (m *Memory) WriteScalar(p Pointer, val uint64, size uint64) *Error {
	if err := m.checkAlign(p, size); err != nil {
		return err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], val)
	return m.WriteBytes(p, buf[:size])
}

// ReadPointer reads one pointer-sized value. An exact stored pointer
// yields a pointer with provenance; plain bytes yield an address-only
// value; a partially overlapping stored pointer is unreadable.
func (m *Memory) ReadPointer(p Pointer) (PrimVal, *Error) {
	ptrSize := m.PointerSize()
	alloc, err := m.getAlloc(p)
	if err != nil {
		return PrimVal{}, err
	}
	if err := m.checkBounds(alloc, p.Offset, ptrSize); err != nil {
		return PrimVal{}, err
	}
	if err := m.checkAlign(p, ptrSize); err != nil {
		return PrimVal{}, err
	}
	if !alloc.isDefined(p.Offset, ptrSize) {
		return PrimVal{}, &Error{Kind: ErrReadUndefBytes}
	}
	var buf [8]byte
	copy(buf[:], alloc.bytes[p.Offset:p.Offset+ptrSize])
	off := binary.LittleEndian.Uint64(buf[:])

	if target, ok := alloc.relocations[p.Offset]; ok {
		ptr := Pointer{Alloc: target, Offset: off}
		if _, isFn := m.fns[target]; isFn {
			return FnPtrVal(ptr), nil
		}
		return PtrVal(ptr), nil
	}
	if alloc.relocationsIn(p.Offset, ptrSize, ptrSize) {
		return PrimVal{}, &Error{Kind: ErrReadPointerAsBytes}
	}
	return BytesVal(off), nil
}

// WritePointer stores a pointer, recording its provenance as a
// relocation. Address-only pointers are stored as plain bytes.
func (m *Memory) WritePointer(p Pointer, val Pointer) *Error {
	ptrSize := m.PointerSize()
	if err := m.WriteScalar(p, val.Offset, ptrSize); err != nil {
		return err
	}
	if val.HasProvenance() {
		alloc, err := m.getAllocMut(p)
		if err != nil {
			return err
		}
		alloc.relocations[p.Offset] = val.Alloc
	}
	return nil
}

// Copy moves size bytes between allocations, carrying definedness and
// relocations. A stored pointer clipped by either end of the range
// cannot be copied.
func (m *Memory) Copy(src, dest Pointer, size uint64) *Error {
	if size == 0 {
		return nil
	}
	ptrSize := m.PointerSize()
	from, err := m.getAlloc(src)
	if err != nil {
		return err
	}
	if err := m.checkBounds(from, src.Offset, size); err != nil {
		return err
	}
	// Relocations must sit entirely inside the copied range.
	relocs := make(map[uint64]AllocId)
	for r, target := range from.relocations {
		switch {
		case r >= src.Offset && r+ptrSize <= src.Offset+size:
			relocs[r-src.Offset] = target
		case r+ptrSize > src.Offset && r < src.Offset+size:
			return &Error{Kind: ErrReadPointerAsBytes}
		}
	}

	to, err := m.getAllocMut(dest)
	if err != nil {
		return err
	}
	if err := m.checkBounds(to, dest.Offset, size); err != nil {
		return err
	}
	to.clearRelocationsIn(dest.Offset, size, ptrSize)
	copy(to.bytes[dest.Offset:dest.Offset+size], from.bytes[src.Offset:src.Offset+size])
	for i := uint64(0); i < size; i++ {
		to.markDefined(dest.Offset+i, 1, from.isDefined(src.Offset+i, 1))
	}
	for r, target := range relocs {
		to.relocations[dest.Offset+r] = target
	}
	return nil
}

// CreateFnPtr returns the unique function pointer of a monomorphized
// function. Repeated requests for the same instance return the same
// allocation id.
func (m *Memory) CreateFnPtr(instance mir.FnInstance, sig mir.FnPtrType) Pointer {
	key := fmt.Sprintf("%d[%s]", instance.Def, instance.Substs.Key())
	if id, ok := m.fnIds[key]; ok {
		return Pointer{Alloc: id}
	}
	id := m.next
	m.next++
	m.fns[id] = &fnDef{instance: instance, sig: sig}
	m.fnIds[key] = id
	return Pointer{Alloc: id}
}

// GetFn resolves a function pointer back to its instance.
func (m *Memory) GetFn(p Pointer) (mir.FnInstance, mir.FnPtrType, *Error) {
	if p.Offset != 0 {
		return mir.FnInstance{}, mir.FnPtrType{}, &Error{Kind: ErrExecuteMemory}
	}
	def, ok := m.fns[p.Alloc]
	if !ok {
		return mir.FnInstance{}, mir.FnPtrType{}, &Error{Kind: ErrExecuteMemory}
	}
	return def.instance, def.sig, nil
}

// wipe resets an allocation's bytes to undefined. Used by StorageLive.
func (m *Memory) wipe(p Pointer) *Error {
	alloc, err := m.getAllocMut(p)
	if err != nil {
		return err
	}
	alloc.markDefined(0, alloc.Size(), false)
	for r := range alloc.relocations {
		delete(alloc.relocations, r)
	}
	return nil
}

// primLayout returns the size and alignment of a primitive type
// without consulting the provider. ok is false for aggregates, whose
// layout the provider owns.
func primLayout(t mir.Type, dl DataLayout) (size, align uint64, ok bool) {
	switch t := t.(type) {
	case mir.IntType:
		s := uint64(t.Bits) / 8
		return s, s, true
	case mir.BoolType:
		return 1, 1, true
	case mir.CharType:
		return 4, 4, true
	case mir.RefType:
		if _, dyn := t.Elem.(mir.DynType); dyn {
			return 2 * dl.PointerSize, dl.PointerSize, true
		}
		return dl.PointerSize, dl.PointerSize, true
	case mir.RawPtrType:
		if _, dyn := t.Elem.(mir.DynType); dyn {
			return 2 * dl.PointerSize, dl.PointerSize, true
		}
		return dl.PointerSize, dl.PointerSize, true
	case mir.FnPtrType:
		return dl.PointerSize, dl.PointerSize, true
	case mir.FnDefType:
		return 0, 1, true // function items are zero-sized
	default:
		return 0, 0, false
	}
}

// ReadValue reads a typed primitive value from memory.
func (m *Memory) ReadValue(p Pointer, t mir.Type) (PrimVal, *Error) {
	switch t := t.(type) {
	case mir.IntType:
		val, err := m.ReadScalar(p, uint64(t.Bits)/8)
		if err != nil {
			return PrimVal{}, err
		}
		return BytesVal(val), nil

	case mir.BoolType:
		val, err := m.ReadScalar(p, 1)
		if err != nil {
			return PrimVal{}, err
		}
		if val > 1 {
			return PrimVal{}, &Error{Kind: ErrInvalidBool}
		}
		return BytesVal(val), nil

	case mir.CharType:
		val, err := m.ReadScalar(p, 4)
		if err != nil {
			return PrimVal{}, err
		}
		if _, cerr := BytesVal(val).ToChar(); cerr != nil {
			return PrimVal{}, cerr
		}
		return BytesVal(val), nil

	case mir.RefType:
		return m.readPointerValue(p, t.Elem)
	case mir.RawPtrType:
		return m.readPointerValue(p, t.Elem)

	case mir.FnPtrType:
		val, err := m.ReadPointer(p)
		if err != nil {
			return PrimVal{}, err
		}
		if _, ferr := val.ToFnPtr(); ferr != nil {
			return PrimVal{}, ferr
		}
		return val, nil

	case mir.FnDefType:
		// Function items are zero-sized; their identity is the type.
		return BytesVal(0), nil

	default:
		panic(fmt.Sprintf("ReadValue on non-primitive type %s", mir.TypeKey(t)))
	}
}

func (m *Memory) readPointerValue(p Pointer, elem mir.Type) (PrimVal, *Error) {
	if _, dyn := elem.(mir.DynType); dyn {
		data, err := m.ReadPointer(p)
		if err != nil {
			return PrimVal{}, err
		}
		vp, verr := p.OffsetBy(m.PointerSize(), m)
		if verr != nil {
			return PrimVal{}, verr
		}
		vtable, err := m.ReadPointer(vp)
		if err != nil {
			return PrimVal{}, err
		}
		dataPtr, derr := data.ToPtr()
		if derr != nil {
			return PrimVal{}, derr
		}
		vtablePtr, terr := vtable.ToPtr()
		if terr != nil {
			return PrimVal{}, terr
		}
		return FatPtrVal(dataPtr, vtablePtr), nil
	}
	return m.ReadPointer(p)
}

// WriteValue writes a typed primitive value to memory.
func (m *Memory) WriteValue(p Pointer, v PrimVal, t mir.Type) *Error {
	switch t := t.(type) {
	case mir.IntType:
		bits, err := v.ToBytes()
		if err != nil {
			return err
		}
		return m.WriteScalar(p, bits, uint64(t.Bits)/8)

	case mir.BoolType:
		bits, err := v.ToBytes()
		if err != nil {
			return err
		}
		return m.WriteScalar(p, bits, 1)

	case mir.CharType:
		bits, err := v.ToBytes()
		if err != nil {
			return err
		}
		return m.WriteScalar(p, bits, 4)

	case mir.RefType:
		return m.writePointerValue(p, v, t.Elem)
	case mir.RawPtrType:
		return m.writePointerValue(p, v, t.Elem)

	case mir.FnPtrType:
		ptr, err := v.ToFnPtr()
		if err != nil {
			return err
		}
		return m.WritePointer(p, ptr)

	case mir.FnDefType:
		return nil // zero-sized

	default:
		panic(fmt.Sprintf("WriteValue on non-primitive type %s", mir.TypeKey(t)))
	}
}

func (m *Memory) writePointerValue(p Pointer, v PrimVal, elem mir.Type) *Error {
	if _, dyn := elem.(mir.DynType); dyn {
		data, vtable, err := v.ToFatPtr()
		if err != nil {
			return err
		}
		if werr := m.WritePointer(p, data); werr != nil {
			return werr
		}
		vp, oerr := p.OffsetBy(m.PointerSize(), m)
		if oerr != nil {
			return oerr
		}
		return m.WritePointer(vp, vtable)
	}
	ptr, err := v.ToPtr()
	if err != nil {
		return err
	}
	if !ptr.HasProvenance() {
		// Address-only pointers are stored as plain bytes.
		return m.WriteScalar(p, ptr.Offset, m.PointerSize())
	}
	return m.WritePointer(p, ptr)
}
