package interp

import "github.com/kestrel-lang/kestrel/mir"

// cleanup tells popStackFrame what to do with the frame's return
// allocation once the frame finishes.
type cleanup int

const (
	// cleanupNone leaves the return allocation as-is; ordinary calls
	// return into a slot owned by the caller.
	cleanupNone cleanup = iota
	// cleanupFreeze makes the return allocation read-only; constants
	// and promoted rvalues are immutable once evaluated.
	cleanupFreeze
)

// localSlot is the storage of one MIR local. Locals are backed by
// real allocations so references to them behave like any other
// pointer. A slot whose storage is dead cannot be touched until a
// StorageLive revives it.
type localSlot struct {
	ptr  Pointer
	live bool
}

// Frame is one entry of the evaluation stack: a body being executed
// at a position, its locals, and where its result goes.
type Frame struct {
	Def    mir.DefId
	Substs mir.Substs
	Body   *mir.Body

	// Locals[0] aliases ret, the caller-owned return slot.
	Locals []localSlot

	// Position of the next statement to execute. Stmt equal to
	// len(Statements) means the block's terminator is next.
	Block mir.BlockId
	Stmt  int
	Span  mir.Span

	ret      Pointer
	retKey   *GlobalKey      // cache entry to mark initialized on completion
	returnTo *mir.BlockId    // caller block to resume, nil for top-level frames
	cleanup  cleanup
}

// currentBlock returns the basic block the frame is executing.
func (f *Frame) currentBlock() *mir.BasicBlock {
	return &f.Body.Blocks[f.Block]
}

// local returns the storage of a live local.
func (f *Frame) local(l mir.Local) (Pointer, *Error) {
	slot := f.Locals[l]
	if !slot.live {
		return Pointer{}, &Error{Kind: ErrDeadLocal}
	}
	return slot.ptr, nil
}

// pushStackFrame allocates storage for every local of body and makes
// the new frame current. The return slot ret is owned by the caller.
func (ecx *EvalContext) pushStackFrame(def mir.DefId, substs mir.Substs, body *mir.Body, ret Pointer, retKey *GlobalKey, returnTo *mir.BlockId, cl cleanup) *Error {
	if uint64(len(ecx.stack)) >= ecx.sess.opts.StackFrameLimit {
		return &Error{Kind: ErrStackFrameLimitReached}
	}

	frame := &Frame{
		Def:      def,
		Substs:   substs,
		Body:     body,
		Locals:   make([]localSlot, len(body.Locals)),
		Span:     body.Span,
		ret:      ret,
		retKey:   retKey,
		returnTo: returnTo,
		cleanup:  cl,
	}
	frame.Locals[mir.ReturnLocal] = localSlot{ptr: ret, live: true}

	for i := 1; i < len(body.Locals); i++ {
		ty := mir.Subst(body.Locals[i].Type, substs)
		layout, err := ecx.sess.layoutOf(ty)
		if err != nil {
			return err
		}
		ptr, err := ecx.sess.mem.Allocate(layout.Size, layout.Align)
		if err != nil {
			return err
		}
		frame.Locals[i] = localSlot{ptr: ptr, live: true}
	}

	ecx.stack = append(ecx.stack, frame)
	ecx.sess.log.Debug("push frame", "def", ecx.sess.provider.Name(def), "depth", len(ecx.stack))
	return nil
}

// popStackFrame finishes the current frame: it runs the frame's
// cleanup, releases local storage, and resumes the caller.
func (ecx *EvalContext) popStackFrame() *Error {
	frame := ecx.stack[len(ecx.stack)-1]
	ecx.stack = ecx.stack[:len(ecx.stack)-1]

	if frame.cleanup == cleanupFreeze {
		ecx.sess.mem.Freeze(frame.ret.Alloc)
	}
	if frame.retKey != nil {
		entry := ecx.sess.globals[*frame.retKey]
		entry.initialized = true
		ecx.sess.globals[*frame.retKey] = entry
	}

	// Local 0 aliases the caller-owned return slot, skip it. A frozen
	// frame's result may hold references into its locals (promotion
	// produces exactly that shape), so those locals are frozen and
	// kept rather than freed.
	for _, slot := range frame.Locals[1:] {
		if frame.cleanup == cleanupFreeze {
			ecx.sess.mem.Freeze(slot.ptr.Alloc)
		} else {
			ecx.sess.mem.discard(slot.ptr.Alloc)
		}
	}

	ecx.sess.log.Debug("pop frame", "def", ecx.sess.provider.Name(frame.Def), "depth", len(ecx.stack))

	if frame.returnTo != nil {
		caller := ecx.frame()
		caller.Block = *frame.returnTo
		caller.Stmt = 0
	}
	return nil
}
