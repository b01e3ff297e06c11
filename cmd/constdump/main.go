// Command constdump evaluates a small built-in set of constants and
// prints their values. It exists to exercise the evaluator end to end
// and to demonstrate what a front end must provide.
//
// Usage:
//
//	constdump            # evaluate and print the demo constants
//	constdump -debug     # also print the evaluator's step trace
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"github.com/kestrel-lang/kestrel"
	"github.com/kestrel-lang/kestrel/internal/logger"
	"github.com/kestrel-lang/kestrel/mir"
)

var (
	debug   = flag.Bool("debug", false, "print the evaluator's step trace")
	noColor = flag.Bool("no-color", false, "disable colored log output")
)

// Demo definition ids.
const (
	defFour   mir.DefId = 1 // const FOUR: u32 = 2 + 2
	defForty  mir.DefId = 2 // const FORTY: u32 = FOUR * 10
	defBroken mir.DefId = 3 // const BROKEN: u32 = 1 / 0
)

func main() {
	flag.Parse()

	opts := kestrel.DefaultOptions()
	opts.Logger = logger.New(*debug, *noColor)
	sess := kestrel.NewSession(demoProvider{}, opts)

	for _, demo := range []struct {
		def  mir.DefId
		name string
	}{
		{defFour, "FOUR"},
		{defForty, "FORTY"},
		{defBroken, "BROKEN"},
	} {
		ptr, err := sess.EvaluateConstant(demo.def, nil, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", demo.name, err)
			continue
		}
		raw, err := sess.ReadResult(ptr, 4)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", demo.name, err)
			continue
		}
		fmt.Printf("%s = %d\n", demo.name, binary.LittleEndian.Uint32(raw))
	}
}

// demoProvider is a hand-built front end exposing three constants.
type demoProvider struct{}

func u32() mir.Type { return mir.IntType{Bits: 32, Signed: false} }

func lit(bits uint64) mir.Operand {
	return mir.OpConstant{Constant: mir.Constant{Type: u32(), Literal: mir.LitValue{Bits: bits}}}
}

func item(def mir.DefId) mir.Operand {
	return mir.OpConstant{Constant: mir.Constant{Type: u32(), Literal: mir.LitItem{Def: def}}}
}

// binBody builds `const _: u32 = <left> <op> <right>`.
func binBody(op mir.BinOp, left, right mir.Operand) *mir.Body {
	return &mir.Body{
		Blocks: []mir.BasicBlock{{
			Statements: []mir.Statement{{
				Kind: mir.StmtAssign{
					Place:  mir.Place{Local: mir.ReturnLocal},
					Rvalue: mir.RvBinary{Op: op, Left: left, Right: right},
				},
			}},
			Terminator: mir.Terminator{Kind: mir.TermReturn{}},
		}},
		Locals:     []mir.LocalDecl{{Name: "", Type: u32()}},
		ReturnType: u32(),
	}
}

func (demoProvider) Body(def mir.DefId, _ mir.Substs) (*mir.Body, error) {
	switch def {
	case defFour:
		return binBody(mir.BinAdd, lit(2), lit(2)), nil
	case defForty:
		return binBody(mir.BinMul, item(defFour), lit(10)), nil
	case defBroken:
		return binBody(mir.BinDiv, lit(1), lit(0)), nil
	}
	return nil, fmt.Errorf("unknown definition %d", def)
}

func (demoProvider) Layout(t mir.Type) (mir.Layout, error) {
	switch t := t.(type) {
	case mir.IntType:
		s := uint64(t.Bits) / 8
		return mir.Layout{Size: s, Align: s}, nil
	case mir.BoolType:
		return mir.Layout{Size: 1, Align: 1}, nil
	}
	return mir.Layout{}, fmt.Errorf("no layout for %s", mir.TypeKey(t))
}

func (demoProvider) DefKind(mir.DefId) mir.DefKind { return mir.DefKindConst }

func (demoProvider) Name(def mir.DefId) string {
	switch def {
	case defFour:
		return "FOUR"
	case defForty:
		return "FORTY"
	case defBroken:
		return "BROKEN"
	}
	return fmt.Sprintf("def%d", def)
}

func (demoProvider) FnSig(mir.DefId, mir.Substs) (mir.FnPtrType, error) {
	return mir.FnPtrType{}, fmt.Errorf("demo constants have no signatures")
}

func (demoProvider) Destructor(mir.Type) (mir.FnInstance, bool) {
	return mir.FnInstance{}, false
}

func (demoProvider) Interface(mir.InterfaceRef) (mir.InterfaceDef, error) {
	return mir.InterfaceDef{}, fmt.Errorf("demo constants define no interfaces")
}

func (demoProvider) ResolveMethod(mir.InterfaceRef, mir.MethodSig, mir.Type) (mir.FnInstance, bool, error) {
	return mir.FnInstance{}, false, fmt.Errorf("demo constants define no methods")
}

func (demoProvider) ResolveCall(def mir.DefId, substs mir.Substs) (mir.CallResolution, error) {
	return mir.CallConcrete{Fn: mir.FnInstance{Def: def, Substs: substs}}, nil
}
