package mir

import (
	"fmt"
	"strconv"
)

// Type represents a fully resolved type as the evaluator sees it.
type Type interface {
	typeKind()
}

// IntType represents integer types.
type IntType struct {
	Bits   uint8 // 8, 16, 32 or 64
	Signed bool
}

func (IntType) typeKind() {}

// BoolType represents the boolean type (one byte, 0 or 1).
type BoolType struct{}

func (BoolType) typeKind() {}

// CharType represents a unicode scalar value stored in four bytes.
type CharType struct{}

func (CharType) typeKind() {}

// RefType represents a reference. References to DynType values are fat
// (data pointer + vtable pointer); all other references are thin.
type RefType struct {
	Elem Type
}

func (RefType) typeKind() {}

// RawPtrType represents a raw pointer. Raw pointers support integer
// round-trips; the resulting address-only pointers cannot be
// dereferenced.
type RawPtrType struct {
	Elem Type
}

func (RawPtrType) typeKind() {}

// ArrayType represents a fixed-length array.
type ArrayType struct {
	Elem Type
	Len  uint64
}

func (ArrayType) typeKind() {}

// TupleType represents a tuple with front-end-computed field offsets.
// Offsets is parallel to Elems.
type TupleType struct {
	Elems   []Type
	Offsets []uint64
}

func (TupleType) typeKind() {}

// AdtType represents a nominal struct or enum under a substitution.
type AdtType struct {
	Def    DefId
	Substs Substs
}

func (AdtType) typeKind() {}

// FnDefType represents the zero-sized type of a specific function item.
type FnDefType struct {
	Def    DefId
	Substs Substs
}

func (FnDefType) typeKind() {}

// FnPtrType represents a function pointer signature.
type FnPtrType struct {
	Args []Type
	Ret  Type
}

func (FnPtrType) typeKind() {}

// DynType represents an interface object type. It is unsized; it only
// occurs behind a RefType or RawPtrType, where it makes the pointer fat.
type DynType struct {
	Interface InterfaceRef
}

func (DynType) typeKind() {}

// ParamType represents an uninstantiated generic parameter. Bodies may
// mention ParamType; the evaluator always resolves it through the
// frame's substitutions before asking for a layout.
type ParamType struct {
	Index uint32
}

func (ParamType) typeKind() {}

// Substs is a substitution list: the type arguments a generic
// definition is instantiated with.
type Substs []Type

// Key returns a normalized string key for the substitution, suitable
// for map keys in memoization tables.
func (s Substs) Key() string {
	if len(s) == 0 {
		return ""
	}
	key := TypeKey(s[0])
	for _, t := range s[1:] {
		key += "," + TypeKey(t)
	}
	return key
}

// InterfaceRef names an interface under a substitution.
type InterfaceRef struct {
	Def    DefId
	Substs Substs
}

// Key returns a normalized cache key for the interface reference.
func (r InterfaceRef) Key() string {
	return "iface:" + strconv.FormatUint(uint64(r.Def), 10) + "[" + r.Substs.Key() + "]"
}

// TypeKey creates a unique key for a type based on its structure.
// Two structurally identical types produce the same key. Used by the
// evaluator's constant and vtable caches.
func TypeKey(t Type) string {
	switch t := t.(type) {
	case IntType:
		if t.Signed {
			return "i" + strconv.FormatUint(uint64(t.Bits), 10)
		}
		return "u" + strconv.FormatUint(uint64(t.Bits), 10)

	case BoolType:
		return "bool"

	case CharType:
		return "char"

	case RefType:
		return "ref:" + TypeKey(t.Elem)

	case RawPtrType:
		return "raw:" + TypeKey(t.Elem)

	case ArrayType:
		return "array:" + strconv.FormatUint(t.Len, 10) + ":" + TypeKey(t.Elem)

	case TupleType:
		key := "tuple:"
		for i, elem := range t.Elems {
			if i > 0 {
				key += ","
			}
			key += TypeKey(elem)
		}
		return key

	case AdtType:
		return "adt:" + strconv.FormatUint(uint64(t.Def), 10) + "[" + t.Substs.Key() + "]"

	case FnDefType:
		return "fndef:" + strconv.FormatUint(uint64(t.Def), 10) + "[" + t.Substs.Key() + "]"

	case FnPtrType:
		key := "fnptr:("
		for i, arg := range t.Args {
			if i > 0 {
				key += ","
			}
			key += TypeKey(arg)
		}
		return key + ")->" + TypeKey(t.Ret)

	case DynType:
		return "dyn:" + t.Interface.Key()

	case ParamType:
		return "param:" + strconv.FormatUint(uint64(t.Index), 10)

	default:
		return fmt.Sprintf("unknown:%T", t)
	}
}

// Subst instantiates the generic parameters of t with the given
// substitution list. Applying an empty substitution is the identity.
func Subst(t Type, substs Substs) Type {
	if len(substs) == 0 {
		return t
	}
	switch t := t.(type) {
	case ParamType:
		if int(t.Index) >= len(substs) {
			return t
		}
		return substs[t.Index]

	case RefType:
		return RefType{Elem: Subst(t.Elem, substs)}

	case RawPtrType:
		return RawPtrType{Elem: Subst(t.Elem, substs)}

	case ArrayType:
		return ArrayType{Elem: Subst(t.Elem, substs), Len: t.Len}

	case TupleType:
		elems := make([]Type, len(t.Elems))
		for i, elem := range t.Elems {
			elems[i] = Subst(elem, substs)
		}
		return TupleType{Elems: elems, Offsets: t.Offsets}

	case AdtType:
		return AdtType{Def: t.Def, Substs: substAll(t.Substs, substs)}

	case FnDefType:
		return FnDefType{Def: t.Def, Substs: substAll(t.Substs, substs)}

	case FnPtrType:
		args := make([]Type, len(t.Args))
		for i, arg := range t.Args {
			args[i] = Subst(arg, substs)
		}
		return FnPtrType{Args: args, Ret: Subst(t.Ret, substs)}

	case DynType:
		iface := t.Interface
		return DynType{Interface: InterfaceRef{Def: iface.Def, Substs: substAll(iface.Substs, substs)}}

	default:
		// IntType, BoolType, CharType carry no parameters.
		return t
	}
}

func substAll(ts Substs, substs Substs) Substs {
	if len(ts) == 0 {
		return ts
	}
	out := make(Substs, len(ts))
	for i, t := range ts {
		out[i] = Subst(t, substs)
	}
	return out
}
