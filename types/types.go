package types

import (
	"fmt"
	"strings"
)

// Kind identifies a Type variant
type Kind uint8

const (
	KindBool Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindAddress
	KindSigner
	KindVector
	KindStruct
	KindEnum
	KindRef
	KindTypeParam
)

var kindNames = [...]string{
	KindBool:      "bool",
	KindU8:        "u8",
	KindU16:       "u16",
	KindU32:       "u32",
	KindU64:       "u64",
	KindU128:      "u128",
	KindU256:      "u256",
	KindAddress:   "address",
	KindSigner:    "signer",
	KindVector:    "vector",
	KindStruct:    "struct",
	KindEnum:      "enum",
	KindRef:       "ref",
	KindTypeParam: "type_param",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Type is the closed set of value shapes the code generator handles.
// The unexported marker keeps the set closed to this package.
type Type interface {
	Kind() Kind
	String() string
	sealed()
}

type (
	Bool    struct{}
	U8      struct{}
	U16     struct{}
	U32     struct{}
	U64     struct{}
	U128    struct{}
	U256    struct{}
	Address struct{}
	Signer  struct{}
)

// Vector is a heap-resident growable sequence
type Vector struct {
	Elem Type
}

// Struct references a struct definition, instantiated with Args when generic
type Struct struct {
	Module ModuleID
	Args   []Type
	Index  uint16
}

// Enum references an enum definition, instantiated with Args when generic
type Enum struct {
	Module ModuleID
	Args   []Type
	Index  uint16
}

// Ref is a (mutable) borrow of Elem
type Ref struct {
	Elem    Type
	Mutable bool
}

// TypeParam is an unresolved generic slot
type TypeParam struct {
	Index uint16
}

func (Bool) Kind() Kind      { return KindBool }
func (U8) Kind() Kind        { return KindU8 }
func (U16) Kind() Kind       { return KindU16 }
func (U32) Kind() Kind       { return KindU32 }
func (U64) Kind() Kind       { return KindU64 }
func (U128) Kind() Kind      { return KindU128 }
func (U256) Kind() Kind      { return KindU256 }
func (Address) Kind() Kind   { return KindAddress }
func (Signer) Kind() Kind    { return KindSigner }
func (Vector) Kind() Kind    { return KindVector }
func (Struct) Kind() Kind    { return KindStruct }
func (Enum) Kind() Kind      { return KindEnum }
func (Ref) Kind() Kind       { return KindRef }
func (TypeParam) Kind() Kind { return KindTypeParam }

func (Bool) String() string    { return "bool" }
func (U8) String() string      { return "u8" }
func (U16) String() string     { return "u16" }
func (U32) String() string     { return "u32" }
func (U64) String() string     { return "u64" }
func (U128) String() string    { return "u128" }
func (U256) String() string    { return "u256" }
func (Address) String() string { return "address" }
func (Signer) String() string  { return "signer" }

func (v Vector) String() string { return "vector<" + v.Elem.String() + ">" }

func (s Struct) String() string {
	return fmt.Sprintf("%s::#%d%s", s.Module, s.Index, argsString(s.Args))
}

func (e Enum) String() string {
	return fmt.Sprintf("%s::#%d%s", e.Module, e.Index, argsString(e.Args))
}

func (r Ref) String() string {
	if r.Mutable {
		return "&mut " + r.Elem.String()
	}
	return "&" + r.Elem.String()
}

func (p TypeParam) String() string { return fmt.Sprintf("T%d", p.Index) }

func (Bool) sealed()      {}
func (U8) sealed()        {}
func (U16) sealed()       {}
func (U32) sealed()       {}
func (U64) sealed()       {}
func (U128) sealed()      {}
func (U256) sealed()      {}
func (Address) sealed()   {}
func (Signer) sealed()    {}
func (Vector) sealed()    {}
func (Struct) sealed()    {}
func (Enum) sealed()      {}
func (Ref) sealed()       {}
func (TypeParam) sealed() {}

func argsString(args []Type) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return "<" + strings.Join(parts, ",") + ">"
}

// Equal reports structural equality
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Vector:
		return Equal(x.Elem, b.(Vector).Elem)
	case Struct:
		y := b.(Struct)
		return x.Module == y.Module && x.Index == y.Index && equalArgs(x.Args, y.Args)
	case Enum:
		y := b.(Enum)
		return x.Module == y.Module && x.Index == y.Index && equalArgs(x.Args, y.Args)
	case Ref:
		y := b.(Ref)
		return x.Mutable == y.Mutable && Equal(x.Elem, y.Elem)
	case TypeParam:
		return x.Index == b.(TypeParam).Index
	default:
		return true
	}
}

func equalArgs(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// IsInteger reports whether t is one of the unsigned integer types
func IsInteger(t Type) bool {
	switch t.(type) {
	case U8, U16, U32, U64, U128, U256:
		return true
	}
	return false
}

// IntegerBytes returns the byte width of an integer type, or 0
func IntegerBytes(t Type) uint32 {
	switch t.(type) {
	case U8:
		return 1
	case U16:
		return 2
	case U32:
		return 4
	case U64:
		return 8
	case U128:
		return 16
	case U256:
		return 32
	}
	return 0
}
