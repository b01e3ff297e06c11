package mir

// Terminator closes a basic block and transfers control.
type Terminator struct {
	Kind TerminatorKind
	Span Span
}

// TerminatorKind represents the different kinds of terminators.
type TerminatorKind interface {
	terminatorKind()
}

// TermGoto jumps unconditionally to another block.
type TermGoto struct {
	Target BlockId
}

func (TermGoto) terminatorKind() {}

// TermSwitchInt compares the discriminee against each value in order
// and jumps to the matching target, or to Otherwise if none match.
// Values and Targets are parallel.
type TermSwitchInt struct {
	Discr     Operand
	Values    []uint64
	Targets   []BlockId
	Otherwise BlockId
}

func (TermSwitchInt) terminatorKind() {}

// TermReturn pops the current frame; the return value has already been
// written through Local 0.
type TermReturn struct{}

func (TermReturn) terminatorKind() {}

// TermCall invokes a function and stores its result into Dest, then
// continues at Target.
type TermCall struct {
	Func   Operand
	Args   []Operand
	Dest   Place
	Target BlockId
}

func (TermCall) terminatorKind() {}

// TermAssert checks a condition; on mismatch evaluation fails with the
// error described by Msg.
type TermAssert struct {
	Cond     Operand
	Expected bool
	Msg      AssertMessage
	Target   BlockId
}

func (TermAssert) terminatorKind() {}

// AssertMessage describes why an assert would fail.
type AssertMessage interface {
	assertMessage()
}

// AssertBoundsCheck reports an array index out of bounds.
type AssertBoundsCheck struct {
	Len   Operand
	Index Operand
}

func (AssertBoundsCheck) assertMessage() {}

// AssertOverflow reports overflowing arithmetic.
type AssertOverflow struct {
	Op BinOp
}

func (AssertOverflow) assertMessage() {}

// TermDrop runs the destructor of the place's type, if it has one,
// then continues at Target.
type TermDrop struct {
	Place  Place
	Target BlockId
}

func (TermDrop) terminatorKind() {}

// TermUnreachable marks control flow the front end proved impossible.
// Reaching it is undefined behavior and fails evaluation.
type TermUnreachable struct{}

func (TermUnreachable) terminatorKind() {}
