package abi

import (
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/types"
)

// SolidityName returns the canonical ABI type name of t as used in signatures.
// Plain structs render as tuples of their fields.
func SolidityName(r *types.Registry, t types.Type) (string, error) {
	switch x := t.(type) {
	case types.Bool:
		return "bool", nil
	case types.U8, types.U16, types.U32, types.U64, types.U128, types.U256:
		return "uint" + strconv.Itoa(int(types.IntegerBytes(t))*8), nil
	case types.Address:
		return "address", nil
	case types.Signer:
		return "", errors.SignerFound(errors.PhaseSelector, nil)
	case types.TypeParam:
		return "", errors.TypeParameter(errors.PhaseSelector, nil, x.Index)
	case types.Ref:
		if _, nested := x.Elem.(types.Ref); nested {
			return "", errors.RefInsideRef(errors.PhaseSelector, nil, x.String())
		}
		return "", errors.ReferenceFound(errors.PhaseSelector, nil, r.TypeName(x))
	case types.Vector:
		elem, err := SolidityName(r, x.Elem)
		if err != nil {
			return "", err
		}
		return elem + "[]", nil
	case types.Enum:
		def, err := r.Enum(x)
		if err != nil {
			return "", err
		}
		if !def.Simple {
			return "", errors.EnumNotSimple(errors.PhaseSelector, nil, def.Name)
		}
		return "uint8", nil
	case types.Struct:
		return structName(r, x)
	default:
		return "", errors.Internal(errors.PhaseSelector, "unknown type %T", t)
	}
}

func structName(r *types.Registry, s types.Struct) (string, error) {
	def, err := r.Struct(s)
	if err != nil {
		return "", err
	}
	switch def.VM {
	case types.VMString:
		return "string", nil
	case types.VMBytes:
		return "bytes" + strconv.Itoa(def.BytesLen), nil
	case types.VMUID, types.VMID:
		return "bytes32", nil
	case types.VMTxContext:
		return "", noWireForm(errors.PhaseSelector, def.Name)
	}

	fields, err := r.Fields(s)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		name, err := SolidityName(r, f.Type)
		if err != nil {
			return "", errors.WithPath(err, def.Name+"."+f.Name)
		}
		parts[i] = name
	}
	return "(" + strings.Join(parts, ",") + ")", nil
}

// ParamName is the signature name of a function parameter. Persistent objects
// are passed by their id and name as bytes32.
func ParamName(r *types.Registry, t types.Type) (string, error) {
	if s, ok := t.(types.Struct); ok {
		def, err := r.Struct(s)
		if err != nil {
			return "", err
		}
		if def.IsObject() {
			return "bytes32", nil
		}
	}
	return SolidityName(r, t)
}

// Signature renders name(t1,t2,...) with canonical parameter names
func Signature(r *types.Registry, name string, params []types.Type) (string, error) {
	parts := make([]string, len(params))
	for i, p := range params {
		s, err := ParamName(r, p)
		if err != nil {
			return "", errors.WithPath(err, name+"#"+strconv.Itoa(i))
		}
		parts[i] = s
	}
	return name + "(" + strings.Join(parts, ",") + ")", nil
}

// FunctionName is the external name of a function: lowerCamelCase
func FunctionName(name string) string {
	return strcase.ToLowerCamel(name)
}

// TypeName is the external name of an error or event: UpperCamelCase
func TypeName(name string) string {
	return strcase.ToCamel(name)
}

// PublicParams returns the parameters visible on the wire: signers and the
// transaction context are injected by the VM and dropped, references are
// replaced by their pointee.
func PublicParams(r *types.Registry, params []types.Type) ([]types.Type, error) {
	out := make([]types.Type, 0, len(params))
	for _, p := range params {
		t, err := types.Deref(p)
		if err != nil {
			return nil, err
		}
		if Injected(r, t) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Injected reports whether values of t are supplied by the VM rather than
// the caller
func Injected(r *types.Registry, t types.Type) bool {
	if _, ok := t.(types.Signer); ok {
		return true
	}
	return r.VMTagOf(t) == types.VMTxContext
}

// FunctionSignature is the signature the entry router dispatches on
func FunctionSignature(r *types.Registry, name string, params []types.Type) (string, error) {
	public, err := PublicParams(r, params)
	if err != nil {
		return "", err
	}
	return Signature(r, FunctionName(name), public)
}

func fieldTypes(r *types.Registry, def *types.StructDef) ([]types.Type, error) {
	if def.TypeParams > 0 {
		return nil, errors.New(errors.PhaseSelector, errors.KindUnsupported).
			Type(def.Name).
			Detail("generic error and event definitions cannot be encoded").
			Build()
	}
	fields, err := r.Fields(def.Type())
	if err != nil {
		return nil, err
	}
	ts := make([]types.Type, len(fields))
	for i, f := range fields {
		ts[i] = f.Type
	}
	return ts, nil
}

// ErrorSignature renders the revert signature of an error struct
func ErrorSignature(r *types.Registry, def *types.StructDef) (string, error) {
	ts, err := fieldTypes(r, def)
	if err != nil {
		return "", err
	}
	return tupleSignature(r, TypeName(def.Name), def.Name, ts)
}

// EventSignature renders the log signature of an event struct
func EventSignature(r *types.Registry, def *types.StructDef) (string, error) {
	ts, err := fieldTypes(r, def)
	if err != nil {
		return "", err
	}
	return tupleSignature(r, TypeName(def.Name), def.Name, ts)
}

func tupleSignature(r *types.Registry, name, defName string, ts []types.Type) (string, error) {
	parts := make([]string, len(ts))
	for i, t := range ts {
		s, err := SolidityName(r, t)
		if err != nil {
			return "", errors.WithPath(err, defName)
		}
		parts[i] = s
	}
	return name + "(" + strings.Join(parts, ",") + ")", nil
}
