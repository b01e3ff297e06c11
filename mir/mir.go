package mir

// Handle types for referencing MIR objects
type (
	// DefId identifies a definition (function, constant, static,
	// interface, type) in the crate graph. Assigned by the front end.
	DefId uint32

	// Local indexes a local slot within a Body. Local 0 is the return
	// place.
	Local uint32

	// BlockId indexes a basic block within a Body.
	BlockId uint32
)

// ReturnLocal is the local slot holding the function's return value.
const ReturnLocal Local = 0

// Span is a half-open byte range into the originating source file.
// The evaluator threads spans through for diagnostics but never
// renders them.
type Span struct {
	Start uint32
	End   uint32
}

// Body is the control-flow-graph body of one function, constant or
// static initializer.
type Body struct {
	// Blocks holds the basic blocks; Blocks[0] is the entry block.
	Blocks []BasicBlock

	// Locals declares the local slots. Locals[0] is the return place;
	// Locals[1..=ArgCount] are the arguments.
	Locals []LocalDecl

	// ArgCount is the number of argument locals.
	ArgCount uint32

	// ReturnType is the type of Local 0.
	ReturnType Type

	// Promoted holds anonymous sub-constant bodies extracted from this
	// body. They are keyed by index and evaluated independently.
	Promoted []*Body

	// Span covers the whole definition.
	Span Span
}

// BasicBlock is a run of statements closed by one terminator.
type BasicBlock struct {
	Statements []Statement
	Terminator Terminator
}

// LocalDecl declares one local slot.
type LocalDecl struct {
	Name string // may be empty for compiler temporaries
	Type Type
}

// DefKind classifies a definition for the evaluator.
type DefKind uint8

const (
	DefKindFn DefKind = iota
	DefKindConst
	DefKindStatic
	DefKindStaticMut
	DefKindClosure
	DefKindInterface
	DefKindIntrinsic
)

// String returns the kind name for diagnostics.
func (k DefKind) String() string {
	switch k {
	case DefKindFn:
		return "fn"
	case DefKindConst:
		return "const"
	case DefKindStatic:
		return "static"
	case DefKindStaticMut:
		return "static mut"
	case DefKindClosure:
		return "closure"
	case DefKindInterface:
		return "interface"
	case DefKindIntrinsic:
		return "intrinsic"
	default:
		return "unknown"
	}
}
