package types

import (
	"sort"
	"strings"

	"github.com/wippyai/movewasm/errors"
)

type defKey struct {
	module ModuleID
	index  uint16
}

// Registry holds the struct and enum definition tables of one translation.
// Definitions are added by the front-end, then the registry is frozen and
// only read by the generators.
type Registry struct {
	structs map[defKey]*StructDef
	enums   map[defKey]*EnumDef
	frozen  bool
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		structs: make(map[defKey]*StructDef),
		enums:   make(map[defKey]*EnumDef),
	}
}

// Freeze makes the registry read-only
func (r *Registry) Freeze() {
	r.frozen = true
}

// Frozen reports whether Freeze was called
func (r *Registry) Frozen() bool {
	return r.frozen
}

// AddStruct registers a struct definition. VM tags are derived from the
// definition's location; a definition claiming a tag it is not entitled to is
// rejected.
func (r *Registry) AddStruct(def *StructDef) error {
	if r.frozen {
		return errors.New(errors.PhaseTypes, errors.KindInvalidInput).
			Type(def.Name).
			Detail("registry is frozen").
			Build()
	}
	key := defKey{module: def.Module, index: def.Index}
	if _, exists := r.structs[key]; exists {
		return errors.New(errors.PhaseTypes, errors.KindDuplicate).
			Type(def.Name).
			Detail("struct index %d already defined in %s", def.Index, def.Module).
			Build()
	}

	tag, n := reservedTag(def.Module, def.Name)
	if def.VM != VMNone && def.VM != tag {
		return errors.New(errors.PhaseTypes, errors.KindInvalidFrameworkType).
			Type(def.Module.String() + "::" + def.Name).
			Detail("%s is reserved for the framework", def.VM).
			Build()
	}
	def.VM = tag
	def.BytesLen = n

	for _, f := range def.Fields {
		if err := checkParams(f.Type, def.TypeParams); err != nil {
			return errors.WithPath(err, def.Name+"."+f.Name)
		}
	}
	if def.Kind == StructEvent && (def.Indexed < 0 || def.Indexed > 3 || def.Indexed > len(def.Fields)) {
		return errors.New(errors.PhaseTypes, errors.KindInvalidInput).
			Type(def.Name).
			Detail("events support at most 3 indexed fields, got %d", def.Indexed).
			Build()
	}

	r.structs[key] = def
	return nil
}

// AddEnum registers an enum definition and computes its Simple flag
func (r *Registry) AddEnum(def *EnumDef) error {
	if r.frozen {
		return errors.New(errors.PhaseTypes, errors.KindInvalidInput).
			Type(def.Name).
			Detail("registry is frozen").
			Build()
	}
	key := defKey{module: def.Module, index: def.Index}
	if _, exists := r.enums[key]; exists {
		return errors.New(errors.PhaseTypes, errors.KindDuplicate).
			Type(def.Name).
			Detail("enum index %d already defined in %s", def.Index, def.Module).
			Build()
	}
	if len(def.Variants) == 0 {
		return errors.New(errors.PhaseTypes, errors.KindInvalidInput).
			Type(def.Name).
			Detail("enum has no variants").
			Build()
	}

	def.Simple = true
	for _, v := range def.Variants {
		if len(v.Fields) > 0 {
			def.Simple = false
		}
		for _, f := range v.Fields {
			if err := checkParams(f.Type, def.TypeParams); err != nil {
				return errors.WithPath(err, def.Name+"::"+v.Name+"."+f.Name)
			}
		}
	}

	r.enums[key] = def
	return nil
}

func checkParams(t Type, n int) error {
	var bad error
	Walk(t, func(t Type) bool {
		if p, ok := t.(TypeParam); ok && int(p.Index) >= n {
			bad = errors.OutOfBounds(errors.PhaseTypes, nil, int(p.Index), n)
			return false
		}
		return true
	})
	return bad
}

// Struct returns the definition a struct type refers to
func (r *Registry) Struct(s Struct) (*StructDef, error) {
	def, ok := r.structs[defKey{module: s.Module, index: s.Index}]
	if !ok {
		return nil, errors.NotFound(errors.PhaseTypes, "struct", s.String())
	}
	if len(s.Args) != def.TypeParams {
		return nil, errors.New(errors.PhaseTypes, errors.KindInvalidInput).
			Type(def.Name).
			Detail("expected %d type arguments, got %d", def.TypeParams, len(s.Args)).
			Build()
	}
	return def, nil
}

// Enum returns the definition an enum type refers to
func (r *Registry) Enum(e Enum) (*EnumDef, error) {
	def, ok := r.enums[defKey{module: e.Module, index: e.Index}]
	if !ok {
		return nil, errors.NotFound(errors.PhaseTypes, "enum", e.String())
	}
	if len(e.Args) != def.TypeParams {
		return nil, errors.New(errors.PhaseTypes, errors.KindInvalidInput).
			Type(def.Name).
			Detail("expected %d type arguments, got %d", def.TypeParams, len(e.Args)).
			Build()
	}
	return def, nil
}

// Fields returns the struct's fields with type arguments substituted
func (r *Registry) Fields(s Struct) ([]Field, error) {
	def, err := r.Struct(s)
	if err != nil {
		return nil, err
	}
	if len(s.Args) == 0 {
		return def.Fields, nil
	}
	out := make([]Field, len(def.Fields))
	for i, f := range def.Fields {
		ft, err := Substitute(f.Type, s.Args)
		if err != nil {
			return nil, errors.WithPath(err, def.Name+"."+f.Name)
		}
		out[i] = Field{Name: f.Name, Type: ft}
	}
	return out, nil
}

// LookupStruct finds a struct definition by module and name
func (r *Registry) LookupStruct(mod ModuleID, name string) (*StructDef, bool) {
	for k, def := range r.structs {
		if k.module == mod && def.Name == name {
			return def, true
		}
	}
	return nil, false
}

// LookupEnum finds an enum definition by module and name
func (r *Registry) LookupEnum(mod ModuleID, name string) (*EnumDef, bool) {
	for k, def := range r.enums {
		if k.module == mod && def.Name == name {
			return def, true
		}
	}
	return nil, false
}

// NextIndex returns the first unused definition index in a module
func (r *Registry) NextIndex(mod ModuleID) uint16 {
	var next uint16
	for k := range r.structs {
		if k.module == mod && k.index >= next {
			next = k.index + 1
		}
	}
	for k := range r.enums {
		if k.module == mod && k.index >= next {
			next = k.index + 1
		}
	}
	return next
}

// StructDefs returns all struct definitions ordered by module and index
func (r *Registry) StructDefs() []*StructDef {
	out := make([]*StructDef, 0, len(r.structs))
	for _, def := range r.structs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Module != b.Module {
			return a.Module.String() < b.Module.String()
		}
		return a.Index < b.Index
	})
	return out
}

// TypeName renders t using definition names, e.g. "vector<Pair<u8,address>>"
func (r *Registry) TypeName(t Type) string {
	switch x := t.(type) {
	case Vector:
		return "vector<" + r.TypeName(x.Elem) + ">"
	case Struct:
		if def, ok := r.structs[defKey{module: x.Module, index: x.Index}]; ok {
			return def.Name + r.argsName(x.Args)
		}
	case Enum:
		if def, ok := r.enums[defKey{module: x.Module, index: x.Index}]; ok {
			return def.Name + r.argsName(x.Args)
		}
	case Ref:
		if x.Mutable {
			return "&mut " + r.TypeName(x.Elem)
		}
		return "&" + r.TypeName(x.Elem)
	}
	return t.String()
}

func (r *Registry) argsName(args []Type) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = r.TypeName(a)
	}
	return "<" + strings.Join(parts, ",") + ">"
}

// VMTagOf returns the VM tag of a struct type, VMNone for anything else
func (r *Registry) VMTagOf(t Type) VMTag {
	s, ok := t.(Struct)
	if !ok {
		return VMNone
	}
	def, ok := r.structs[defKey{module: s.Module, index: s.Index}]
	if !ok {
		return VMNone
	}
	return def.VM
}
