package types

import (
	"github.com/wippyai/movewasm/errors"
)

// Sizes of heap-resident values
const (
	WordSize         uint32 = 32
	U128Size         uint32 = 16
	U256Size         uint32 = 32
	AddressSize      uint32 = 32
	VectorHeaderSize uint32 = 8
	EnumCellSize     uint32 = 4
)

// StackSize is the number of bytes a value occupies when held in a local,
// a struct record slot or a vector element: 8 for u64, 4 for everything else
// (either the value itself or a pointer).
func StackSize(t Type) (uint32, error) {
	switch t.(type) {
	case U64:
		return 8, nil
	case Bool, U8, U16, U32, U128, U256, Address, Signer, Vector, Struct, Enum, Ref:
		return 4, nil
	case TypeParam:
		return 0, errors.TypeParameter(errors.PhaseTypes, nil, t.(TypeParam).Index)
	default:
		return 0, errors.Internal(errors.PhaseTypes, "unknown type %T", t)
	}
}

// IsStackValue reports whether values of t live in registers rather than behind a pointer
func IsStackValue(t Type) bool {
	switch t.(type) {
	case Bool, U8, U16, U32, U64:
		return true
	}
	return false
}

// HeapSize is the size of the heap block a pointer-typed value points to.
// Register-held types have no heap block and report 0. For structs it is the
// record size: the sum of the field stack sizes.
func (r *Registry) HeapSize(t Type) (uint32, error) {
	switch x := t.(type) {
	case Bool, U8, U16, U32, U64:
		return 0, nil
	case U128:
		return U128Size, nil
	case U256:
		return U256Size, nil
	case Address, Signer:
		return AddressSize, nil
	case Vector:
		return VectorHeaderSize, nil
	case Enum:
		return EnumCellSize, nil
	case Ref:
		return StackSize(x.Elem)
	case Struct:
		def, err := r.Struct(x)
		if err != nil {
			return 0, err
		}
		if def.VM == VMBytes {
			return WordSize, nil
		}
		_, size, err := r.FieldOffsets(x)
		return size, err
	case TypeParam:
		return 0, errors.TypeParameter(errors.PhaseTypes, nil, x.Index)
	default:
		return 0, errors.Internal(errors.PhaseTypes, "unknown type %T", t)
	}
}

// FieldOffsets returns each field's offset in the struct record and the record size
func (r *Registry) FieldOffsets(s Struct) ([]uint32, uint32, error) {
	fields, err := r.Fields(s)
	if err != nil {
		return nil, 0, err
	}
	offsets := make([]uint32, len(fields))
	var off uint32
	for i, f := range fields {
		size, err := StackSize(f.Type)
		if err != nil {
			return nil, 0, errors.WithPath(err, f.Name)
		}
		offsets[i] = off
		off += size
	}
	return offsets, off, nil
}
