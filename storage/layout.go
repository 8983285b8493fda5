package storage

import (
	"strconv"

	"fortio.org/safecast"

	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/types"
)

// Word describes one storage word of a flattened struct. The value occupies
// Size bytes starting at Offset within the 32-byte word, big-endian.
type Word struct {
	Type   types.Type
	Path   string
	Offset uint32
	Size   uint32
}

// Layout flattens a struct into its storage words, one per scalar field.
// Nested plain structs contribute their own words in field order.
func Layout(r *types.Registry, s types.Struct) ([]Word, error) {
	def, err := r.Struct(s)
	if err != nil {
		return nil, err
	}
	return appendLayout(r, nil, def.Name, s)
}

func appendLayout(r *types.Registry, out []Word, prefix string, s types.Struct) ([]Word, error) {
	fields, err := r.Fields(s)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		path := prefix + "." + f.Name
		out, err = appendWord(r, out, path, f.Type)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func appendWord(r *types.Registry, out []Word, path string, t types.Type) ([]Word, error) {
	word := func(offset, size uint32) []Word {
		return append(out, Word{Type: t, Path: path, Offset: offset, Size: size})
	}
	switch x := t.(type) {
	case types.Bool, types.U8:
		return word(31, 1), nil
	case types.U16:
		return word(30, 2), nil
	case types.U32:
		return word(28, 4), nil
	case types.U64:
		return word(24, 8), nil
	case types.U128:
		return word(16, 16), nil
	case types.U256:
		return word(0, 32), nil
	case types.Address:
		return word(12, 20), nil
	case types.Enum:
		def, err := r.Enum(x)
		if err != nil {
			return nil, err
		}
		if !def.Simple {
			return nil, errors.EnumNotSimple(errors.PhaseStorage, []string{path}, def.Name)
		}
		return word(28, 4), nil
	case types.Vector:
		return nil, dynamicField(path, t)
	case types.Signer:
		return nil, errors.SignerFound(errors.PhaseStorage, []string{path})
	case types.TypeParam:
		return nil, errors.TypeParameter(errors.PhaseStorage, []string{path}, x.Index)
	case types.Ref:
		if _, nested := x.Elem.(types.Ref); nested {
			return nil, errors.RefInsideRef(errors.PhaseStorage, []string{path}, x.String())
		}
		return nil, errors.ReferenceFound(errors.PhaseStorage, []string{path}, r.TypeName(x))
	case types.Struct:
		def, err := r.Struct(x)
		if err != nil {
			return nil, err
		}
		switch def.VM {
		case types.VMUID, types.VMID:
			return word(0, 32), nil
		case types.VMBytes:
			n, err := safecast.Conv[uint32](def.BytesLen)
			if err != nil {
				return nil, errors.Internal(errors.PhaseStorage, "%s: %v", def.Name, err)
			}
			return word(0, n), nil
		case types.VMString:
			return nil, dynamicField(path, t)
		case types.VMTxContext:
			return nil, errors.New(errors.PhaseStorage, errors.KindUnsupported).
				Path(path).
				Type(def.Name).
				Detail("TxContext cannot be stored").
				Build()
		}
		return appendLayout(r, out, path, x)
	default:
		return nil, errors.Internal(errors.PhaseStorage, "unknown type %T", t)
	}
}

func dynamicField(path string, t types.Type) error {
	return errors.New(errors.PhaseStorage, errors.KindDynamicStorageField).
		Path(path).
		Type(t.String()).
		Detail("dynamically sized fields cannot be stored inline").
		Build()
}

// CheckObject verifies that s is a persistent object whose first field is a UID
func CheckObject(r *types.Registry, s types.Struct) (*types.StructDef, error) {
	def, err := r.Struct(s)
	if err != nil {
		return nil, err
	}
	if !def.IsObject() {
		return nil, errors.New(errors.PhaseStorage, errors.KindInvalidInput).
			Type(def.Name).
			Detail("struct lacks the key ability").
			Build()
	}
	fields, err := r.Fields(s)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || r.VMTagOf(fields[0].Type) != types.VMUID {
		return nil, errors.MissingIdentity(errors.PhaseStorage, def.Name)
	}
	return def, nil
}

// Describe renders a layout as "slot+N path offset:size" lines
func Describe(words []Word) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = "slot+" + strconv.Itoa(i) + " " + w.Path + " " + w.Type.String() +
			" @" + strconv.Itoa(int(w.Offset)) + ":" + strconv.Itoa(int(w.Size))
	}
	return out
}
