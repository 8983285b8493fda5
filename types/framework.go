package types

import "strconv"

// Framework definitions for the VM-handled types. Layouts follow the
// framework sources: UID wraps ID, ID wraps the address bytes, String wraps
// its UTF-8 bytes.
var (
	IDDef = &StructDef{
		Module:    ObjectModule,
		Index:     0,
		Name:      "ID",
		Abilities: Abilities(AbilityCopy | AbilityDrop | AbilityStore),
		Fields:    []Field{{Name: "bytes", Type: Address{}}},
	}
	UIDDef = &StructDef{
		Module:    ObjectModule,
		Index:     1,
		Name:      "UID",
		Abilities: Abilities(AbilityStore),
		Fields:    []Field{{Name: "id", Type: Struct{Module: ObjectModule, Index: 0}}},
	}
	TxContextDef = &StructDef{
		Module:    TxContextModule,
		Index:     0,
		Name:      "TxContext",
		Abilities: Abilities(AbilityDrop),
	}
	StringDef = &StructDef{
		Module:    StringModule,
		Index:     0,
		Name:      "String",
		Abilities: Abilities(AbilityCopy | AbilityDrop | AbilityStore),
		Fields:    []Field{{Name: "bytes", Type: Vector{Elem: U8{}}}},
	}
)

// Framework types, valid once RegisterFramework has run
var (
	IDType        = Struct{Module: ObjectModule, Index: 0}
	UIDType       = Struct{Module: ObjectModule, Index: 1}
	TxContextType = Struct{Module: TxContextModule, Index: 0}
	StringType    = Struct{Module: StringModule, Index: 0}
)

// BytesType returns the BytesN type, valid once RegisterFramework has run
func BytesType(n int) Struct {
	return Struct{Module: BytesModule, Index: uint16(n - 1)}
}

// RegisterFramework adds the framework and stdlib definitions the codec knows
// about. Copies are registered so one registry never aliases another's defs.
func RegisterFramework(r *Registry) error {
	for _, def := range []*StructDef{IDDef, UIDDef, TxContextDef, StringDef} {
		cp := *def
		if err := r.AddStruct(&cp); err != nil {
			return err
		}
	}
	for n := 1; n <= 32; n++ {
		def := &StructDef{
			Module:    BytesModule,
			Index:     uint16(n - 1),
			Name:      "Bytes" + strconv.Itoa(n),
			Abilities: Abilities(AbilityCopy | AbilityDrop | AbilityStore),
		}
		if err := r.AddStruct(def); err != nil {
			return err
		}
	}
	return nil
}
