package types

import (
	"strconv"
	"strings"
)

// Ability is a Move ability flag
type Ability uint8

const (
	AbilityCopy Ability = 1 << iota
	AbilityDrop
	AbilityStore
	AbilityKey
)

// Abilities is a set of abilities
type Abilities uint8

// Has reports whether a is in the set
func (s Abilities) Has(a Ability) bool {
	return uint8(s)&uint8(a) != 0
}

// With returns the set extended with a
func (s Abilities) With(a Ability) Abilities {
	return Abilities(uint8(s) | uint8(a))
}

// ParseAbility maps an ability keyword to its flag
func ParseAbility(s string) (Ability, bool) {
	switch s {
	case "copy":
		return AbilityCopy, true
	case "drop":
		return AbilityDrop, true
	case "store":
		return AbilityStore, true
	case "key":
		return AbilityKey, true
	}
	return 0, false
}

// StructKind distinguishes the roles a struct plays at the wire boundary
type StructKind uint8

const (
	StructPlain StructKind = iota
	StructError            // revert payload
	StructEvent            // log payload
)

// VMTag marks definitions whose layout and encoding are owned by the VM.
// Tags are only honoured for definitions at the reserved address and module.
type VMTag uint8

const (
	VMNone VMTag = iota
	VMUID
	VMID
	VMTxContext
	VMString
	VMBytes
)

var vmTagNames = [...]string{
	VMNone:      "none",
	VMUID:       "UID",
	VMID:        "ID",
	VMTxContext: "TxContext",
	VMString:    "String",
	VMBytes:     "BytesN",
}

func (v VMTag) String() string {
	if int(v) < len(vmTagNames) {
		return vmTagNames[v]
	}
	return "vm(" + strconv.Itoa(int(v)) + ")"
}

// Field is a named struct field
type Field struct {
	Type Type
	Name string
}

// StructDef is a struct definition as produced by the front-end
type StructDef struct {
	Name       string
	Fields     []Field
	Module     ModuleID
	TypeParams int
	// Indexed is the number of leading event fields published as topics.
	Indexed   int
	Index     uint16
	Abilities Abilities
	Kind      StructKind
	VM        VMTag
	// BytesLen is N for a BytesN definition.
	BytesLen int
}

// IsObject reports whether the struct is a persistent object (has key)
func (d *StructDef) IsObject() bool {
	return d.Abilities.Has(AbilityKey)
}

// Type returns the struct type instantiated with args
func (d *StructDef) Type(args ...Type) Struct {
	return Struct{Module: d.Module, Index: d.Index, Args: args}
}

// Variant is an enum variant
type Variant struct {
	Name   string
	Fields []Field
}

// EnumDef is an enum definition
type EnumDef struct {
	Name       string
	Variants   []Variant
	Module     ModuleID
	TypeParams int
	Index      uint16
	Abilities  Abilities
	// Simple is set at registration: no variant carries fields.
	Simple bool
}

// Type returns the enum type instantiated with args
func (d *EnumDef) Type(args ...Type) Enum {
	return Enum{Module: d.Module, Index: d.Index, Args: args}
}

// reservedTag returns the tag a definition is entitled to by its location
func reservedTag(mod ModuleID, name string) (VMTag, int) {
	switch mod {
	case ObjectModule:
		switch name {
		case "UID":
			return VMUID, 0
		case "ID":
			return VMID, 0
		}
	case TxContextModule:
		if name == "TxContext" {
			return VMTxContext, 0
		}
	case StringModule:
		if name == "String" {
			return VMString, 0
		}
	case BytesModule:
		if n, ok := bytesLen(name); ok {
			return VMBytes, n
		}
	}
	return VMNone, 0
}

func bytesLen(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "Bytes")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || n > 32 {
		return 0, false
	}
	return n, true
}
