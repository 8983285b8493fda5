package types

// Key is the structural identity of a type, suitable for canonical encoding.
// Two types have equal keys exactly when Equal reports true.
type Key struct {
	Module  string `cbor:"2,keyasint,omitempty"`
	Args    []Key  `cbor:"5,keyasint,omitempty"`
	Address []byte `cbor:"3,keyasint,omitempty"`
	Kind    Kind   `cbor:"1,keyasint"`
	Index   uint16 `cbor:"4,keyasint,omitempty"`
	Mutable bool   `cbor:"6,keyasint,omitempty"`
}

// KeyOf builds the structural key of t
func KeyOf(t Type) Key {
	k := Key{Kind: t.Kind()}
	switch x := t.(type) {
	case Vector:
		k.Args = []Key{KeyOf(x.Elem)}
	case Ref:
		k.Args = []Key{KeyOf(x.Elem)}
		k.Mutable = x.Mutable
	case Struct:
		k.Address = x.Module.Address[:]
		k.Module = x.Module.Name
		k.Index = x.Index
		k.Args = keysOf(x.Args)
	case Enum:
		k.Address = x.Module.Address[:]
		k.Module = x.Module.Name
		k.Index = x.Index
		k.Args = keysOf(x.Args)
	case TypeParam:
		k.Index = x.Index
	}
	return k
}

func keysOf(ts []Type) []Key {
	if len(ts) == 0 {
		return nil
	}
	out := make([]Key, len(ts))
	for i, t := range ts {
		out[i] = KeyOf(t)
	}
	return out
}
