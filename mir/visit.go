package mir

// ConstantVisitor receives every Constant embedded in a statement or
// terminator. The walk is read-only; visitors must not mutate the IR.
type ConstantVisitor interface {
	VisitConstant(c *Constant, span Span)
}

// WalkStatement walks every constant embedded in a statement.
func WalkStatement(v ConstantVisitor, s *Statement) {
	switch kind := s.Kind.(type) {
	case StmtAssign:
		walkRvalue(v, kind.Rvalue, s.Span)
	case StmtSetDiscriminant, StmtStorageLive, StmtStorageDead, StmtNop:
		// no embedded operands
	}
}

// WalkTerminator walks every constant embedded in a terminator.
func WalkTerminator(v ConstantVisitor, t *Terminator) {
	switch kind := t.Kind.(type) {
	case TermSwitchInt:
		walkOperand(v, kind.Discr, t.Span)
	case TermCall:
		walkOperand(v, kind.Func, t.Span)
		for _, arg := range kind.Args {
			walkOperand(v, arg, t.Span)
		}
	case TermAssert:
		walkOperand(v, kind.Cond, t.Span)
		switch msg := kind.Msg.(type) {
		case AssertBoundsCheck:
			walkOperand(v, msg.Len, t.Span)
			walkOperand(v, msg.Index, t.Span)
		case AssertOverflow:
		}
	case TermGoto, TermReturn, TermDrop, TermUnreachable:
		// no embedded operands
	}
}

func walkRvalue(v ConstantVisitor, rv Rvalue, span Span) {
	switch rv := rv.(type) {
	case RvUse:
		walkOperand(v, rv.Operand, span)
	case RvBinary:
		walkOperand(v, rv.Left, span)
		walkOperand(v, rv.Right, span)
	case RvCheckedBinary:
		walkOperand(v, rv.Left, span)
		walkOperand(v, rv.Right, span)
	case RvUnary:
		walkOperand(v, rv.Operand, span)
	case RvCast:
		walkOperand(v, rv.Operand, span)
	case RvAggregate:
		for _, elem := range rv.Elems {
			walkOperand(v, elem, span)
		}
	case RvRef, RvLen, RvDiscriminant:
		// place-only rvalues embed no constants
	}
}

func walkOperand(v ConstantVisitor, op Operand, span Span) {
	if c, ok := op.(OpConstant); ok {
		span := span
		if c.Constant.Span != (Span{}) {
			span = c.Constant.Span
		}
		v.VisitConstant(&c.Constant, span)
	}
}
