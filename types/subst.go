package types

import (
	"github.com/wippyai/movewasm/errors"
)

// Walk visits t and its components depth-first until fn returns false.
// Struct and enum field types are not visited, only type arguments.
func Walk(t Type, fn func(Type) bool) bool {
	if !fn(t) {
		return false
	}
	switch x := t.(type) {
	case Vector:
		return Walk(x.Elem, fn)
	case Ref:
		return Walk(x.Elem, fn)
	case Struct:
		for _, a := range x.Args {
			if !Walk(a, fn) {
				return false
			}
		}
	case Enum:
		for _, a := range x.Args {
			if !Walk(a, fn) {
				return false
			}
		}
	}
	return true
}

// IsConcrete reports whether t contains no type parameters
func IsConcrete(t Type) bool {
	return Walk(t, func(t Type) bool {
		_, isParam := t.(TypeParam)
		return !isParam
	})
}

// Substitute replaces every TypeParam(i) in t with args[i]
func Substitute(t Type, args []Type) (Type, error) {
	switch x := t.(type) {
	case TypeParam:
		if int(x.Index) >= len(args) {
			return nil, errors.OutOfBounds(errors.PhaseTypes, nil, int(x.Index), len(args))
		}
		return args[x.Index], nil
	case Vector:
		elem, err := Substitute(x.Elem, args)
		if err != nil {
			return nil, err
		}
		return Vector{Elem: elem}, nil
	case Ref:
		elem, err := Substitute(x.Elem, args)
		if err != nil {
			return nil, err
		}
		return Ref{Elem: elem, Mutable: x.Mutable}, nil
	case Struct:
		sub, err := substituteAll(x.Args, args)
		if err != nil {
			return nil, err
		}
		return Struct{Module: x.Module, Index: x.Index, Args: sub}, nil
	case Enum:
		sub, err := substituteAll(x.Args, args)
		if err != nil {
			return nil, err
		}
		return Enum{Module: x.Module, Index: x.Index, Args: sub}, nil
	case Bool, U8, U16, U32, U64, U128, U256, Address, Signer:
		return t, nil
	default:
		return nil, errors.Internal(errors.PhaseTypes, "unknown type %T", t)
	}
}

func substituteAll(ts []Type, args []Type) ([]Type, error) {
	if len(ts) == 0 {
		return nil, nil
	}
	out := make([]Type, len(ts))
	for i, t := range ts {
		s, err := Substitute(t, args)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// Deref strips one reference layer. A reference to a reference is an error.
func Deref(t Type) (Type, error) {
	r, ok := t.(Ref)
	if !ok {
		return t, nil
	}
	if _, nested := r.Elem.(Ref); nested {
		return nil, errors.RefInsideRef(errors.PhaseTypes, nil, t.String())
	}
	return r.Elem, nil
}
