package mir

// Statement represents a statement in a basic block. Statements have
// side effects but never transfer control between blocks.
type Statement struct {
	Kind StatementKind
	Span Span
}

// StatementKind represents the different kinds of statements.
type StatementKind interface {
	statementKind()
}

// StmtAssign evaluates an rvalue and stores the result into a place.
type StmtAssign struct {
	Place  Place
	Rvalue Rvalue
}

func (StmtAssign) statementKind() {}

// StmtSetDiscriminant writes an enum discriminant. The front end lowers
// the variant's byte position into the statement so the evaluator does
// not recompute enum layouts.
type StmtSetDiscriminant struct {
	Place   Place
	Variant uint64
	Offset  uint64 // byte offset of the discriminant within the place
	Size    uint8  // discriminant size in bytes (1, 2, 4 or 8)
}

func (StmtSetDiscriminant) statementKind() {}

// StmtStorageLive marks a local as live. Its storage is reset to
// undefined bytes.
type StmtStorageLive struct {
	Local Local
}

func (StmtStorageLive) statementKind() {}

// StmtStorageDead marks a local as dead. Subsequent accesses fail.
type StmtStorageDead struct {
	Local Local
}

func (StmtStorageDead) statementKind() {}

// StmtNop does nothing. Added by passes that remove statements without
// renumbering.
type StmtNop struct{}

func (StmtNop) statementKind() {}

// Rvalue represents the right-hand side of an assignment.
type Rvalue interface {
	rvalueKind()
}

// RvUse copies the operand unchanged.
type RvUse struct {
	Operand Operand
}

func (RvUse) rvalueKind() {}

// RvBinary applies a binary operator. Integer overflow is an error.
type RvBinary struct {
	Op    BinOp
	Left  Operand
	Right Operand
}

func (RvBinary) rvalueKind() {}

// RvCheckedBinary applies a binary operator, producing a (value,
// overflowed) pair into a two-field tuple place.
type RvCheckedBinary struct {
	Op    BinOp
	Left  Operand
	Right Operand
}

func (RvCheckedBinary) rvalueKind() {}

// RvUnary applies a unary operator.
type RvUnary struct {
	Op      UnOp
	Operand Operand
}

func (RvUnary) rvalueKind() {}

// RvRef takes the address of a place.
type RvRef struct {
	Place Place
}

func (RvRef) rvalueKind() {}

// RvCast converts the operand to the target type.
type RvCast struct {
	Kind    CastKind
	Operand Operand
	Type    Type
}

func (RvCast) rvalueKind() {}

// RvAggregate builds an array or tuple value field by field. For
// arrays Offsets may be nil and elements are laid out at stride
// intervals; for tuples Offsets is parallel to Elems.
type RvAggregate struct {
	Elems   []Operand
	Offsets []uint64
}

func (RvAggregate) rvalueKind() {}

// RvLen produces the length of an array place as a machine usize.
type RvLen struct {
	Place Place
}

func (RvLen) rvalueKind() {}

// RvDiscriminant reads an enum discriminant; values at or beyond
// NumVariants are invalid.
type RvDiscriminant struct {
	Place       Place
	Offset      uint64
	Size        uint8
	NumVariants uint64
}

func (RvDiscriminant) rvalueKind() {}

// BinOp represents a binary operator.
type BinOp uint8

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinBitXor
	BinBitAnd
	BinBitOr
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
)

// String returns the operator's surface syntax.
func (op BinOp) String() string {
	switch op {
	case BinAdd:
		return "+"
	case BinSub:
		return "-"
	case BinMul:
		return "*"
	case BinDiv:
		return "/"
	case BinRem:
		return "%"
	case BinBitXor:
		return "^"
	case BinBitAnd:
		return "&"
	case BinBitOr:
		return "|"
	case BinShl:
		return "<<"
	case BinShr:
		return ">>"
	case BinEq:
		return "=="
	case BinNe:
		return "!="
	case BinLt:
		return "<"
	case BinLe:
		return "<="
	case BinGt:
		return ">"
	case BinGe:
		return ">="
	default:
		return "?"
	}
}

// UnOp represents a unary operator.
type UnOp uint8

const (
	UnNeg UnOp = iota // arithmetic negation
	UnNot             // logical / bitwise not
)

// CastKind classifies an RvCast.
type CastKind uint8

const (
	// CastIntToInt truncates or sign/zero-extends between integer widths.
	CastIntToInt CastKind = iota
	// CastIntToChar converts an integer to char, validating the scalar.
	CastIntToChar
	// CastPtrToInt exposes a raw pointer as a machine usize. Only
	// address-only pointers round-trip; pointers with concrete
	// provenance cannot be read as raw bytes.
	CastPtrToInt
	// CastIntToPtr builds an address-only pointer from an integer.
	CastIntToPtr
	// CastReifyFnPointer turns a function item into a function pointer.
	CastReifyFnPointer
	// CastUnsize coerces a reference to a concrete type into a fat
	// interface-object reference, constructing the vtable.
	CastUnsize
)

// Operand represents an argument of an rvalue or terminator.
type Operand interface {
	operandKind()
}

// OpCopy reads a place, leaving it intact.
type OpCopy struct {
	Place Place
}

func (OpCopy) operandKind() {}

// OpMove reads a place whose value will not be used again.
type OpMove struct {
	Place Place
}

func (OpMove) operandKind() {}

// OpConstant embeds a constant.
type OpConstant struct {
	Constant Constant
}

func (OpConstant) operandKind() {}

// Constant is a literal embedded in a body. Items and promoteds must
// be evaluated (and cached) before the statement mentioning them runs.
type Constant struct {
	Type    Type
	Literal Literal
	Span    Span
}

// Literal represents the payload of a Constant.
type Literal interface {
	literalKind()
}

// LitValue is a value already known to the front end, stored as raw
// little-endian bits of the constant's type.
type LitValue struct {
	Bits uint64
}

func (LitValue) literalKind() {}

// LitItem references a named definition: a constant, a static, or a
// function item.
type LitItem struct {
	Def    DefId
	Substs Substs
}

func (LitItem) literalKind() {}

// LitPromoted references a promoted sub-constant of the enclosing body.
type LitPromoted struct {
	Index uint32
}

func (LitPromoted) literalKind() {}

// Place is a path to a memory location: a local plus a projection
// chain.
type Place struct {
	Local       Local
	Projections []Projection
}

// Projection represents one step of a place path.
type Projection interface {
	projectionKind()
}

// ProjField steps to a field at a front-end-computed byte offset.
type ProjField struct {
	Offset uint64
	Type   Type // type of the field
}

func (ProjField) projectionKind() {}

// ProjIndex steps to an array element; the index is read from a local.
type ProjIndex struct {
	Local Local
	Elem  Type
}

func (ProjIndex) projectionKind() {}

// ProjDeref follows a reference or raw pointer.
type ProjDeref struct{}

func (ProjDeref) projectionKind() {}
