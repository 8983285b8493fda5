package movewasm

import (
	"encoding/hex"

	"github.com/goccy/go-json"

	"github.com/wippyai/movewasm/abi"
	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/manifest"
	"github.com/wippyai/movewasm/types"
)

// Entry is one item of the JSON ABI: a function, error or event
type Entry struct {
	Type      string  `json:"type"`
	Name      string  `json:"name"`
	Inputs    []Param `json:"inputs"`
	Outputs   []Param `json:"outputs,omitempty"`
	Signature string  `json:"signature"`
	// Selector is the 4-byte selector of functions and errors, or topic0
	// of events, hex encoded with a 0x prefix.
	Selector string `json:"selector"`
}

// Param describes one input or output. Structs are tuples with components.
type Param struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	InternalType string  `json:"internalType,omitempty"`
	Components   []Param `json:"components,omitempty"`
	Indexed      bool    `json:"indexed,omitempty"`
}

func hexString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// BuildABI describes the public surface of a resolved package
func BuildABI(defs *manifest.Definitions) ([]Entry, error) {
	reg := defs.Registry
	var out []Entry

	for _, fn := range defs.Functions {
		public, err := abi.PublicParams(reg, fn.Params)
		if err != nil {
			return nil, errors.WithPath(err, fn.Name)
		}
		inputs, err := params(reg, public, true)
		if err != nil {
			return nil, errors.WithPath(err, fn.Name)
		}
		results := make([]types.Type, len(fn.Results))
		for i, r := range fn.Results {
			if results[i], err = types.Deref(r); err != nil {
				return nil, errors.WithPath(err, fn.Name)
			}
		}
		outputs, err := params(reg, results, false)
		if err != nil {
			return nil, errors.WithPath(err, fn.Name)
		}
		sig, err := abi.FunctionSignature(reg, fn.Name, fn.Params)
		if err != nil {
			return nil, err
		}
		sel := abi.SelectorOf(sig)
		out = append(out, Entry{
			Type:      "function",
			Name:      abi.FunctionName(fn.Name),
			Inputs:    inputs,
			Outputs:   outputs,
			Signature: sig,
			Selector:  hexString(sel[:]),
		})
	}

	for _, def := range defs.Errors {
		inputs, err := fieldParams(reg, def)
		if err != nil {
			return nil, err
		}
		sig, err := abi.ErrorSignature(reg, def)
		if err != nil {
			return nil, err
		}
		sel := abi.SelectorOf(sig)
		out = append(out, Entry{
			Type:      "error",
			Name:      abi.TypeName(def.Name),
			Inputs:    inputs,
			Signature: sig,
			Selector:  hexString(sel[:]),
		})
	}

	for _, def := range defs.Events {
		inputs, err := fieldParams(reg, def)
		if err != nil {
			return nil, err
		}
		for i := 0; i < def.Indexed && i < len(inputs); i++ {
			inputs[i].Indexed = true
		}
		sig, err := abi.EventSignature(reg, def)
		if err != nil {
			return nil, err
		}
		topic := abi.Keccak256([]byte(sig))
		out = append(out, Entry{
			Type:      "event",
			Name:      abi.TypeName(def.Name),
			Inputs:    inputs,
			Signature: sig,
			Selector:  hexString(topic[:]),
		})
	}
	return out, nil
}

// ExportABI renders the JSON ABI of a resolved package
func ExportABI(defs *manifest.Definitions) ([]byte, error) {
	entries, err := BuildABI(defs)
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCodegen, errors.KindInternal, err, "encode ABI JSON")
	}
	return b, nil
}

func fieldParams(reg *types.Registry, def *types.StructDef) ([]Param, error) {
	fields, err := reg.Fields(def.Type())
	if err != nil {
		return nil, err
	}
	out := make([]Param, len(fields))
	for i, f := range fields {
		p, err := param(reg, f.Name, f.Type, false)
		if err != nil {
			return nil, errors.WithPath(err, def.Name+"."+f.Name)
		}
		out[i] = p
	}
	return out, nil
}

func params(reg *types.Registry, ts []types.Type, byID bool) ([]Param, error) {
	out := make([]Param, len(ts))
	for i, t := range ts {
		p, err := param(reg, "", t, byID)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// param renders t in JSON ABI form. Plain structs become tuples; with byID
// set, persistent objects are their bytes32 id.
func param(reg *types.Registry, name string, t types.Type, byID bool) (Param, error) {
	p := Param{Name: name, InternalType: reg.TypeName(t)}
	switch x := t.(type) {
	case types.Vector:
		elem, err := param(reg, "", x.Elem, false)
		if err != nil {
			return Param{}, errors.WithPath(err, "[]")
		}
		p.Type = elem.Type + "[]"
		p.Components = elem.Components
		return p, nil
	case types.Struct:
		def, err := reg.Struct(x)
		if err != nil {
			return Param{}, err
		}
		if def.VM == types.VMNone && !(byID && def.IsObject()) {
			if _, err := abi.IsDynamic(reg, x); err != nil {
				return Param{}, err
			}
			fields, err := reg.Fields(x)
			if err != nil {
				return Param{}, err
			}
			p.Type = "tuple"
			p.Components = make([]Param, len(fields))
			for i, f := range fields {
				if p.Components[i], err = param(reg, f.Name, f.Type, false); err != nil {
					return Param{}, errors.WithPath(err, def.Name+"."+f.Name)
				}
			}
			return p, nil
		}
	}

	var err error
	if byID {
		p.Type, err = abi.ParamName(reg, t)
	} else {
		p.Type, err = abi.SolidityName(reg, t)
	}
	if err != nil {
		return Param{}, err
	}
	return p, nil
}
