package interp

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/mir"
)

// EvalContext drives one top-level evaluation request: an explicit
// frame stack plus the step budget that bounds it. Frames never use
// host recursion, so deep constant dependency chains cost heap, not
// goroutine stack.
type EvalContext struct {
	sess  *Session
	stack []*Frame
	steps uint64

	// newKeys records every global cache entry this request inserted,
	// so a failing request can roll its entries back and leave the
	// session cache consistent.
	newKeys []GlobalKey
}

// frame returns the innermost frame.
func (ecx *EvalContext) frame() *Frame {
	return ecx.stack[len(ecx.stack)-1]
}

// step advances the machine by one unit of work: either it pushes
// frames for constants the next statement depends on, or it executes
// that statement. It returns false once the stack is empty.
func (ecx *EvalContext) step() (bool, *Error) {
	if len(ecx.stack) == 0 {
		return false, nil
	}
	if ecx.steps == 0 {
		return false, &Error{Kind: ErrExecutionTimeLimitReached}
	}
	ecx.steps--

	frame := ecx.frame()
	block := frame.currentBlock()

	if frame.Stmt < len(block.Statements) {
		stmt := &block.Statements[frame.Stmt]
		frame.Span = stmt.Span

		// Scan first: every constant the statement names must be
		// evaluated before the statement runs. If the scan pushed
		// frames, the statement is retried after they finish.
		scanner := &constantScanner{ecx: ecx, frame: frame}
		mir.WalkStatement(scanner, stmt)
		if scanner.err != nil {
			return false, scanner.err
		}
		if scanner.pushed {
			return true, nil
		}

		ecx.sess.log.Debug("statement",
			"def", ecx.sess.provider.Name(frame.Def),
			"block", frame.Block, "stmt", frame.Stmt)
		if err := ecx.execStatement(frame, stmt); err != nil {
			return false, err
		}
		return true, nil
	}

	term := &block.Terminator
	scanner := &constantScanner{ecx: ecx, frame: frame}
	mir.WalkTerminator(scanner, term)
	if scanner.err != nil {
		return false, scanner.err
	}
	if scanner.pushed {
		return true, nil
	}

	ecx.sess.log.Debug("terminator",
		"def", ecx.sess.provider.Name(frame.Def),
		"block", frame.Block, "kind", fmt.Sprintf("%T", term.Kind))
	if err := ecx.execTerminator(frame, term); err != nil {
		return false, err
	}
	return true, nil
}

// execStatement runs one statement and advances the frame past it.
func (ecx *EvalContext) execStatement(frame *Frame, stmt *mir.Statement) *Error {
	switch kind := stmt.Kind.(type) {
	case mir.StmtAssign:
		dest, destTy, err := ecx.evalPlace(frame, kind.Place)
		if err != nil {
			return err
		}
		if err := ecx.evalRvalueInto(frame, kind.Rvalue, dest, destTy); err != nil {
			return err
		}

	case mir.StmtSetDiscriminant:
		ptr, _, err := ecx.evalPlace(frame, kind.Place)
		if err != nil {
			return err
		}
		discrPtr, err := ptr.OffsetBy(kind.Offset, ecx.sess.mem)
		if err != nil {
			return err
		}
		if err := ecx.sess.mem.WriteScalar(discrPtr, kind.Variant, uint64(kind.Size)); err != nil {
			return err
		}

	case mir.StmtStorageLive:
		slot := &frame.Locals[kind.Local]
		slot.live = true
		if err := ecx.sess.mem.wipe(slot.ptr); err != nil {
			return err
		}

	case mir.StmtStorageDead:
		if kind.Local == mir.ReturnLocal {
			panic("storage of the return local cannot be killed")
		}
		frame.Locals[kind.Local].live = false

	case mir.StmtNop:

	default:
		panic(fmt.Sprintf("unhandled statement %T", kind))
	}

	frame.Stmt++
	return nil
}

// constantScanner walks the constants a statement or terminator
// mentions and pushes an evaluation frame for each one that is not in
// the global cache yet.
type constantScanner struct {
	ecx    *EvalContext
	frame  *Frame
	pushed bool
	err    *Error
}

// VisitConstant implements mir.ConstantVisitor.
func (s *constantScanner) VisitConstant(c *mir.Constant, span mir.Span) {
	if s.err != nil {
		return
	}
	switch lit := c.Literal.(type) {
	case mir.LitItem:
		kind := s.ecx.sess.provider.DefKind(lit.Def)
		switch kind {
		case mir.DefKindFn, mir.DefKindClosure, mir.DefKindInterface, mir.DefKindIntrinsic:
			return // not memory-backed globals
		}
		substs := substSubsts(lit.Substs, s.frame.Substs)
		key := GlobalKey{Def: lit.Def, Substs: substs.Key(), Promoted: NoPromoted}
		s.globalItem(key, lit.Def, substs, kind, span)

	case mir.LitPromoted:
		key := GlobalKey{Def: s.frame.Def, Substs: s.frame.Substs.Key(), Promoted: int64(lit.Index)}
		if _, ok := s.ecx.sess.globals[key]; ok {
			return
		}
		body := s.frame.Body.Promoted[lit.Index]
		s.pushGlobal(key, s.frame.Def, s.frame.Substs, body, false, false, span)
	}
}

func (s *constantScanner) globalItem(key GlobalKey, def mir.DefId, substs mir.Substs, kind mir.DefKind, span mir.Span) {
	if _, ok := s.ecx.sess.globals[key]; ok {
		return
	}
	body, err := s.ecx.sess.provider.Body(def, substs)
	if err != nil {
		s.err = (&Error{Kind: ErrNoMirFor, Name: s.ecx.sess.provider.Name(def)}).withSpan(span)
		return
	}
	isStatic := kind == mir.DefKindStatic || kind == mir.DefKindStaticMut
	s.pushGlobal(key, def, substs, body, kind == mir.DefKindStaticMut, isStatic, span)
}

// pushGlobal allocates the global's backing store, inserts its cache
// entry, and pushes the frame that will fill it in. Inserting the
// entry before the frame runs is what makes dependency cycles
// observable.
func (s *constantScanner) pushGlobal(key GlobalKey, def mir.DefId, substs mir.Substs, body *mir.Body, mutable, isStatic bool, span mir.Span) {
	sess := s.ecx.sess
	retTy := mir.Subst(body.ReturnType, substs)
	layout, err := sess.layoutOf(retTy)
	if err != nil {
		s.err = err.withSpan(span)
		return
	}
	ptr, err := sess.mem.Allocate(layout.Size, layout.Align)
	if err != nil {
		s.err = err.withSpan(span)
		return
	}
	if isStatic {
		sess.mem.MarkStatic(ptr.Alloc)
	}

	sess.globals[key] = globalEntry{ptr: ptr, mutable: mutable}
	s.ecx.newKeys = append(s.ecx.newKeys, key)

	cl := cleanupFreeze
	if mutable {
		cl = cleanupNone
	}
	keyCopy := key
	if err := s.ecx.pushStackFrame(def, substs, body, ptr, &keyCopy, nil, cl); err != nil {
		s.err = err.withSpan(span)
		return
	}
	s.pushed = true
}
