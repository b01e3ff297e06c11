package mir

import "testing"

type collector struct {
	literals []Literal
	spans    []Span
}

func (c *collector) VisitConstant(con *Constant, span Span) {
	c.literals = append(c.literals, con.Literal)
	c.spans = append(c.spans, span)
}

func constOperand(lit Literal) Operand {
	return OpConstant{Constant: Constant{Type: IntType{Bits: 32}, Literal: lit}}
}

func TestWalkStatementAssign(t *testing.T) {
	tests := []struct {
		name string
		rv   Rvalue
		want int
	}{
		{"use", RvUse{Operand: constOperand(LitValue{Bits: 1})}, 1},
		{"binary", RvBinary{Op: BinAdd, Left: constOperand(LitValue{Bits: 1}), Right: constOperand(LitValue{Bits: 2})}, 2},
		{"checked binary", RvCheckedBinary{Op: BinMul, Left: constOperand(LitValue{Bits: 1}), Right: constOperand(LitValue{Bits: 2})}, 2},
		{"unary", RvUnary{Op: UnNeg, Operand: constOperand(LitValue{Bits: 1})}, 1},
		{"cast", RvCast{Kind: CastIntToInt, Operand: constOperand(LitValue{Bits: 1}), Type: IntType{Bits: 8}}, 1},
		{"aggregate", RvAggregate{Elems: []Operand{constOperand(LitValue{Bits: 1}), constOperand(LitValue{Bits: 2}), constOperand(LitValue{Bits: 3})}}, 3},
		{"copy has no constants", RvUse{Operand: OpCopy{Place: Place{Local: 1}}}, 0},
		{"ref has no constants", RvRef{Place: Place{Local: 1}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &collector{}
			WalkStatement(c, &Statement{Kind: StmtAssign{Place: Place{Local: 0}, Rvalue: tt.rv}})
			if len(c.literals) != tt.want {
				t.Errorf("visited %d constants, want %d", len(c.literals), tt.want)
			}
		})
	}
}

func TestWalkTerminatorCall(t *testing.T) {
	c := &collector{}
	term := &Terminator{
		Kind: TermCall{
			Func: constOperand(LitItem{Def: 7}),
			Args: []Operand{constOperand(LitValue{Bits: 1}), OpCopy{Place: Place{Local: 2}}},
		},
		Span: Span{Start: 10, End: 20},
	}
	WalkTerminator(c, term)
	if len(c.literals) != 2 {
		t.Fatalf("visited %d constants, want 2", len(c.literals))
	}
	if _, ok := c.literals[0].(LitItem); !ok {
		t.Errorf("first visited literal is %T, want LitItem", c.literals[0])
	}
	if c.spans[0] != (Span{Start: 10, End: 20}) {
		t.Errorf("constant inherited span %v, want the terminator's", c.spans[0])
	}
}

func TestWalkConstantOwnSpanWins(t *testing.T) {
	c := &collector{}
	own := Span{Start: 3, End: 5}
	stmt := &Statement{
		Kind: StmtAssign{
			Place:  Place{Local: 0},
			Rvalue: RvUse{Operand: OpConstant{Constant: Constant{Type: BoolType{}, Literal: LitValue{Bits: 1}, Span: own}}},
		},
		Span: Span{Start: 0, End: 100},
	}
	WalkStatement(c, stmt)
	if len(c.spans) != 1 || c.spans[0] != own {
		t.Errorf("visited spans %v, want the constant's own span %v", c.spans, own)
	}
}

func TestWalkStorageStatementsVisitNothing(t *testing.T) {
	c := &collector{}
	WalkStatement(c, &Statement{Kind: StmtStorageLive{Local: 1}})
	WalkStatement(c, &Statement{Kind: StmtStorageDead{Local: 1}})
	WalkStatement(c, &Statement{Kind: StmtNop{}})
	if len(c.literals) != 0 {
		t.Errorf("storage statements visited %d constants, want 0", len(c.literals))
	}
}
