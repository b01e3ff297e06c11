package interp

import (
	"testing"

	"github.com/kestrel-lang/kestrel/mir"
)

func castBody(ret mir.Type, kind mir.CastKind, op mir.Operand, to mir.Type) *mir.Body {
	return exprBody(ret, mir.RvCast{Kind: kind, Operand: op, Type: to})
}

func TestIntToIntCasts(t *testing.T) {
	i8 := mir.IntType{Bits: 8, Signed: true}
	i32 := mir.IntType{Bits: 32, Signed: true}

	tests := []struct {
		name string
		src  mir.Type
		bits uint64
		dst  mir.Type
		want uint32
	}{
		{"unsigned widens with zeros", tU8(), 200, tU32(), 200},
		{"signed widens with sign", i8, 0xFF /* -1 */, i32, 0xFFFF_FFFF},
		{"narrowing truncates", tU32(), 0x1_02, tU8(), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider()
			p.define(1, "CAST", mir.DefKindConst, castBody(tt.dst, mir.CastIntToInt, litOp(tt.src, tt.bits), tt.dst))

			s := testSession(p)
			ptr, err := s.EvaluateConstant(1, nil, nil)
			if err != nil {
				t.Fatalf("EvaluateConstant: %v", err)
			}
			dstLayout, _ := p.Layout(tt.dst)
			got, rerr := s.mem.ReadScalar(ptr, dstLayout.Size)
			if rerr != nil {
				t.Fatalf("ReadScalar: %v", rerr)
			}
			if uint32(got) != tt.want {
				t.Errorf("cast = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestIntToCharCastValidates(t *testing.T) {
	p := newTestProvider()
	p.define(1, "BAD", mir.DefKindConst,
		castBody(mir.CharType{}, mir.CastIntToChar, litOp(tU32(), 0xD800), mir.CharType{}))

	s := testSession(p)
	_, err := s.EvaluateConstant(1, nil, nil)
	if evalKind(t, err) != ErrInvalidChar {
		t.Fatalf("surrogate char cast = %v, want invalid char", err)
	}
}

func TestReifyAndCallFunctionPointer(t *testing.T) {
	p := newTestProvider()
	double := &mir.Body{
		Blocks: []mir.BasicBlock{{
			Statements: []mir.Statement{assign(retPlace(),
				mir.RvBinary{Op: mir.BinMul, Left: mir.OpCopy{Place: mir.Place{Local: 1}}, Right: litOp(tU32(), 2)})},
			Terminator: mir.Terminator{Kind: mir.TermReturn{}},
		}},
		Locals:     []mir.LocalDecl{{Type: tU32()}, {Name: "x", Type: tU32()}},
		ArgCount:   1,
		ReturnType: tU32(),
	}
	p.define(2, "double", mir.DefKindFn, double)

	fnTy := mir.FnPtrType{Args: []mir.Type{tU32()}, Ret: tU32()}
	body := &mir.Body{
		Blocks: []mir.BasicBlock{
			{
				Statements: []mir.Statement{assign(mir.Place{Local: 1},
					mir.RvCast{Kind: mir.CastReifyFnPointer, Operand: fnOp(2), Type: fnTy})},
				Terminator: mir.Terminator{Kind: mir.TermCall{
					Func:   mir.OpMove{Place: mir.Place{Local: 1}},
					Args:   []mir.Operand{litOp(tU32(), 21)},
					Dest:   retPlace(),
					Target: 1,
				}},
			},
			{Terminator: mir.Terminator{Kind: mir.TermReturn{}}},
		},
		Locals:     []mir.LocalDecl{{Type: tU32()}, {Type: fnTy}},
		ReturnType: tU32(),
	}
	p.define(1, "VIA_PTR", mir.DefKindConst, body)

	s := testSession(p)
	ptr, err := s.EvaluateConstant(1, nil, nil)
	if err != nil {
		t.Fatalf("EvaluateConstant: %v", err)
	}
	if got := readU32(t, s, ptr); got != 42 {
		t.Errorf("VIA_PTR = %d, want 42", got)
	}
}

func TestFunctionPointerSignatureMismatch(t *testing.T) {
	p := newTestProvider()
	noArgs := &mir.Body{
		Blocks: []mir.BasicBlock{{
			Statements: []mir.Statement{assign(retPlace(), mir.RvUse{Operand: litOp(tU32(), 1)})},
			Terminator: mir.Terminator{Kind: mir.TermReturn{}},
		}},
		Locals:     []mir.LocalDecl{{Type: tU32()}},
		ReturnType: tU32(),
	}
	p.define(2, "one", mir.DefKindFn, noArgs)

	// The pointer is declared as fn(u32) -> u32 but reified from a
	// fn() -> u32 definition.
	lied := mir.FnPtrType{Args: []mir.Type{tU32()}, Ret: tU32()}
	body := &mir.Body{
		Blocks: []mir.BasicBlock{
			{
				Statements: []mir.Statement{assign(mir.Place{Local: 1},
					mir.RvCast{Kind: mir.CastReifyFnPointer, Operand: fnOp(2), Type: lied})},
				Terminator: mir.Terminator{Kind: mir.TermCall{
					Func:   mir.OpMove{Place: mir.Place{Local: 1}},
					Args:   []mir.Operand{litOp(tU32(), 21)},
					Dest:   retPlace(),
					Target: 1,
				}},
			},
			{Terminator: mir.Terminator{Kind: mir.TermReturn{}}},
		},
		Locals:     []mir.LocalDecl{{Type: tU32()}, {Type: lied}},
		ReturnType: tU32(),
	}
	p.define(1, "LIAR", mir.DefKindConst, body)

	s := testSession(p)
	_, err := s.EvaluateConstant(1, nil, nil)
	if evalKind(t, err) != ErrFunctionPointerTyMismatch {
		t.Fatalf("mismatched call = %v, want function pointer type mismatch", err)
	}
}

func TestUnsizeCastBuildsFatPointer(t *testing.T) {
	p, shape := vtableFixture()

	refU32 := mir.RefType{Elem: tU32()}
	refDyn := mir.RefType{Elem: mir.DynType{Interface: shape}}
	body := &mir.Body{
		Blocks: []mir.BasicBlock{{
			Statements: []mir.Statement{
				assign(mir.Place{Local: 1}, mir.RvUse{Operand: litOp(tU32(), 9)}),
				assign(mir.Place{Local: 2}, mir.RvRef{Place: mir.Place{Local: 1}}),
				assign(retPlace(), mir.RvCast{Kind: mir.CastUnsize, Operand: mir.OpMove{Place: mir.Place{Local: 2}}, Type: refDyn}),
			},
			Terminator: mir.Terminator{Kind: mir.TermReturn{}},
		}},
		Locals:     []mir.LocalDecl{{Type: refDyn}, {Type: tU32()}, {Type: refU32}},
		ReturnType: refDyn,
	}
	p.define(1, "AS_SHAPE", mir.DefKindConst, body)

	s := testSession(p)
	ptr, err := s.EvaluateConstant(1, nil, nil)
	if err != nil {
		t.Fatalf("EvaluateConstant: %v", err)
	}

	val, verr := s.mem.ReadValue(ptr, refDyn)
	if verr != nil {
		t.Fatalf("ReadValue: %v", verr)
	}
	data, vtable, ferr := val.ToFatPtr()
	if ferr != nil {
		t.Fatalf("result is not a fat pointer: %v", ferr)
	}

	got, rerr := s.mem.ReadScalar(data, 4)
	if rerr != nil || got != 9 {
		t.Errorf("data half reads %d, %v; want 9", got, rerr)
	}

	want, gerr := s.GetVtable(tU32(), &shape)
	if gerr != nil {
		t.Fatalf("GetVtable: %v", gerr)
	}
	if vtable != want {
		t.Errorf("vtable half = %v, want %v", vtable, want)
	}
}
