package abi

import (
	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/types"
)

// WordSize is the size of one ABI head word
const WordSize uint32 = 32

// IsDynamic reports whether the wire encoding of t has variable size.
// Types with no wire representation are rejected with a classification error.
func IsDynamic(r *types.Registry, t types.Type) (bool, error) {
	switch x := t.(type) {
	case types.Bool, types.U8, types.U16, types.U32, types.U64, types.U128, types.U256, types.Address:
		return false, nil
	case types.Signer:
		return false, errors.SignerFound(errors.PhaseClassify, nil)
	case types.TypeParam:
		return false, errors.TypeParameter(errors.PhaseClassify, nil, x.Index)
	case types.Ref:
		if _, nested := x.Elem.(types.Ref); nested {
			return false, errors.RefInsideRef(errors.PhaseClassify, nil, x.String())
		}
		return false, errors.ReferenceFound(errors.PhaseClassify, nil, r.TypeName(x))
	case types.Vector:
		// Always dynamic, but the element must still be encodable.
		if _, err := IsDynamic(r, x.Elem); err != nil {
			return false, errors.WithPath(err, "[]")
		}
		return true, nil
	case types.Enum:
		def, err := r.Enum(x)
		if err != nil {
			return false, err
		}
		if !def.Simple {
			return false, errors.EnumNotSimple(errors.PhaseClassify, nil, def.Name)
		}
		return false, nil
	case types.Struct:
		return structIsDynamic(r, x)
	default:
		return false, errors.Internal(errors.PhaseClassify, "unknown type %T", t)
	}
}

func structIsDynamic(r *types.Registry, s types.Struct) (bool, error) {
	def, err := r.Struct(s)
	if err != nil {
		return false, err
	}
	switch def.VM {
	case types.VMString:
		return true, nil
	case types.VMBytes, types.VMUID, types.VMID:
		return false, nil
	case types.VMTxContext:
		return false, noWireForm(errors.PhaseClassify, def.Name)
	}

	fields, err := r.Fields(s)
	if err != nil {
		return false, err
	}
	if def.IsObject() {
		if err := CheckIdentity(r, def, fields); err != nil {
			return false, err
		}
	}

	dynamic := false
	for _, f := range fields {
		d, err := IsDynamic(r, f.Type)
		if err != nil {
			return false, errors.WithPath(err, def.Name+"."+f.Name)
		}
		dynamic = dynamic || d
	}
	return dynamic, nil
}

// CheckIdentity verifies that a persistent object starts with a UID field
func CheckIdentity(r *types.Registry, def *types.StructDef, fields []types.Field) error {
	if len(fields) == 0 || r.VMTagOf(fields[0].Type) != types.VMUID {
		return errors.MissingIdentity(errors.PhaseClassify, def.Name)
	}
	return nil
}

func noWireForm(phase errors.Phase, name string) error {
	return errors.New(phase, errors.KindUnsupported).
		Type(name).
		Detail("type is injected by the VM and has no wire representation").
		Build()
}

// HeadSize returns the number of head bytes a value of t occupies in its
// enclosing tuple: 32 per scalar word, the sum of the field heads for a
// static struct, and one 32-byte offset word for any dynamic type.
func HeadSize(r *types.Registry, t types.Type) (uint32, error) {
	dynamic, err := IsDynamic(r, t)
	if err != nil {
		return 0, err
	}
	if dynamic {
		return WordSize, nil
	}
	s, ok := t.(types.Struct)
	if !ok || r.VMTagOf(s) != types.VMNone {
		return WordSize, nil
	}
	fields, err := r.Fields(s)
	if err != nil {
		return 0, err
	}
	var size uint32
	for _, f := range fields {
		n, err := HeadSize(r, f.Type)
		if err != nil {
			return 0, errors.WithPath(err, f.Name)
		}
		size += n
	}
	return size, nil
}
