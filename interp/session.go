package interp

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/kestrel-lang/kestrel/mir"
)

// Options configures a Session.
type Options struct {
	// PointerSize is the target pointer width in bytes.
	PointerSize uint64

	// StackFrameLimit bounds the evaluation stack depth.
	StackFrameLimit uint64

	// StepLimit bounds the number of statements and terminators one
	// top-level request may execute.
	StepLimit uint64

	// MemoryLimit bounds the total bytes live in the session's memory.
	MemoryLimit uint64

	// Logger receives step traces at debug level. Nil discards them.
	Logger *log.Logger
}

// DefaultOptions returns limits suitable for compiling a typical
// crate: a 64-bit target and budgets generous enough for real constant
// expressions but small enough to catch runaway initializers.
func DefaultOptions() Options {
	return Options{
		PointerSize:     8,
		StackFrameLimit: 100,
		StepLimit:       1_000_000,
		MemoryLimit:     1 << 30,
	}
}

// Session evaluates constants against one Provider and memoizes the
// results. Evaluated constants, statics and vtables live in the
// session's memory until the session is dropped.
//
// A Session is safe for concurrent use; requests are serialized.
type Session struct {
	mu       sync.Mutex
	provider mir.Provider
	mem      *Memory
	globals  map[GlobalKey]globalEntry
	vtables  map[vtableKey]Pointer
	opts     Options
	log      *log.Logger
}

// NewSession creates a session over a front end's Provider.
func NewSession(provider mir.Provider, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Session{
		provider: provider,
		mem:      NewMemory(DataLayout{PointerSize: opts.PointerSize}, opts.MemoryLimit),
		globals:  make(map[GlobalKey]globalEntry),
		vtables:  make(map[vtableKey]Pointer),
		opts:     opts,
		log:      logger,
	}
}

// EvaluateConstant evaluates one constant, static, or promoted rvalue
// of a definition and returns a pointer to its frozen result. Repeated
// requests for the same item return the same pointer.
//
// promoted selects an entry of the item's promoted bodies; nil
// evaluates the item itself.
func (s *Session) EvaluateConstant(def mir.DefId, substs mir.Substs, promoted *uint32) (Pointer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := GlobalKey{Def: def, Substs: substs.Key(), Promoted: NoPromoted}
	if promoted != nil {
		key.Promoted = int64(*promoted)
	}
	if entry, ok := s.globals[key]; ok && entry.initialized {
		return entry.ptr, nil
	}

	body, berr := s.provider.Body(def, substs)
	if berr != nil {
		return Pointer{}, &Error{Kind: ErrNoMirFor, Name: s.provider.Name(def)}
	}
	if promoted != nil {
		if int(*promoted) >= len(body.Promoted) {
			return Pointer{}, &Error{Kind: ErrNoMirFor, Name: s.provider.Name(def)}
		}
		body = body.Promoted[*promoted]
	}

	kind := s.provider.DefKind(def)
	mutable := kind == mir.DefKindStaticMut && promoted == nil
	isStatic := promoted == nil && (kind == mir.DefKindStatic || kind == mir.DefKindStaticMut)

	retTy := mir.Subst(body.ReturnType, substs)
	layout, lerr := s.layoutOf(retTy)
	if lerr != nil {
		return Pointer{}, lerr.withSpan(body.Span)
	}
	ptr, aerr := s.mem.Allocate(layout.Size, layout.Align)
	if aerr != nil {
		return Pointer{}, aerr.withSpan(body.Span)
	}
	if isStatic {
		s.mem.MarkStatic(ptr.Alloc)
	}

	ecx := &EvalContext{sess: s, steps: s.opts.StepLimit}
	s.globals[key] = globalEntry{ptr: ptr, mutable: mutable}
	ecx.newKeys = append(ecx.newKeys, key)

	cl := cleanupFreeze
	if mutable {
		cl = cleanupNone
	}
	if err := ecx.pushStackFrame(def, substs, body, ptr, &key, nil, cl); err != nil {
		s.rollback(ecx)
		return Pointer{}, err.withSpan(body.Span)
	}

	s.log.Debug("evaluate", "def", s.provider.Name(def), "substs", substs.Key())
	for {
		more, err := ecx.step()
		if err != nil {
			s.rollback(ecx)
			return Pointer{}, err.withSpan(ecx.currentSpan(body.Span))
		}
		if !more {
			break
		}
	}

	return ptr, nil
}

// GetVtable returns the vtable pairing a concrete type with an
// interface, building and caching it on first use.
func (s *Session) GetVtable(concrete mir.Type, iface *mir.InterfaceRef) (Pointer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ptr, err := s.getVtable(concrete, iface)
	if err != nil {
		return Pointer{}, err
	}
	return ptr, nil
}

// ReadResult copies size bytes out of an evaluated result, for callers
// that embed constant values into their own output.
func (s *Session) ReadResult(ptr Pointer, size uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := s.mem.ReadBytes(ptr, size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// rollback removes every cache entry a failed request inserted, along
// with the allocations behind them and the locals of any frames still
// on the stack. Entries cached by earlier successful requests are
// untouched.
func (s *Session) rollback(ecx *EvalContext) {
	for _, frame := range ecx.stack {
		for _, slot := range frame.Locals[1:] {
			s.mem.discard(slot.ptr.Alloc)
		}
	}
	ecx.stack = nil
	for _, key := range ecx.newKeys {
		if entry, ok := s.globals[key]; ok {
			s.mem.discard(entry.ptr.Alloc)
			delete(s.globals, key)
		}
	}
	ecx.newKeys = nil
}

// currentSpan picks the most precise span available for an error.
func (ecx *EvalContext) currentSpan(fallback mir.Span) mir.Span {
	if len(ecx.stack) > 0 {
		return ecx.frame().Span
	}
	return fallback
}

// layoutOf wraps the provider's layout query, converting front-end
// failures into evaluation errors.
func (s *Session) layoutOf(t mir.Type) (mir.Layout, *Error) {
	layout, err := s.provider.Layout(t)
	if err != nil {
		return mir.Layout{}, &Error{Kind: ErrLayout, Msg: err.Error()}
	}
	return layout, nil
}
