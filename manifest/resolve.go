package manifest

import (
	"strings"

	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/types"
)

// Function is a declared function with resolved, concrete types
type Function struct {
	Name    string
	Params  []types.Type
	Results []types.Type
}

// Definitions is a manifest resolved against the framework: a frozen
// registry plus the package's definitions in declaration order.
type Definitions struct {
	Registry  *types.Registry
	Module    types.ModuleID
	Structs   []*types.StructDef
	Enums     []*types.EnumDef
	Errors    []*types.StructDef
	Events    []*types.StructDef
	Functions []Function
}

// Objects returns the declared structs with the key ability
func (d *Definitions) Objects() []*types.StructDef {
	var out []*types.StructDef
	for _, s := range d.Structs {
		if s.IsObject() {
			out = append(out, s)
		}
	}
	return out
}

// frameworkNames are the short names resolved when no local definition matches
var frameworkNames = map[string]types.ModuleID{
	"UID":       types.ObjectModule,
	"ID":        types.ObjectModule,
	"TxContext": types.TxContextModule,
	"String":    types.StringModule,
}

type localDef struct {
	index  uint16
	isEnum bool
	params int
}

type resolver struct {
	reg    *types.Registry
	module types.ModuleID
	locals map[string]localDef
}

// Resolve registers the framework and every declaration in a new registry,
// resolves the function signatures and freezes the registry.
func (m *Manifest) Resolve() (*Definitions, error) {
	addr, err := types.ParseAccountAddress(m.Package.Address)
	if err != nil {
		return nil, errors.WithPath(err, "package")
	}
	reg := types.NewRegistry()
	if err := types.RegisterFramework(reg); err != nil {
		return nil, err
	}
	r := &resolver{
		reg:    reg,
		module: types.ModuleID{Address: addr, Name: m.Package.Module},
		locals: make(map[string]localDef),
	}

	// Indices are assigned up front so declarations may refer to each other
	// in any order.
	next := reg.NextIndex(r.module)
	assign := func(name string, isEnum bool, params int) {
		r.locals[name] = localDef{index: next, isEnum: isEnum, params: params}
		next++
	}
	for _, s := range m.Structs {
		assign(s.Name, false, s.TypeParams)
	}
	for _, e := range m.Enums {
		assign(e.Name, true, e.TypeParams)
	}
	for _, e := range m.Errors {
		assign(e.Name, false, 0)
	}
	for _, e := range m.Events {
		assign(e.Name, false, 0)
	}

	defs := &Definitions{Registry: reg, Module: r.module}
	for _, s := range m.Structs {
		def, err := r.structDef(s.Name, s.Abilities, s.TypeParams, s.Fields, types.StructPlain)
		if err != nil {
			return nil, err
		}
		defs.Structs = append(defs.Structs, def)
	}
	for _, e := range m.Enums {
		def, err := r.enumDef(e)
		if err != nil {
			return nil, err
		}
		defs.Enums = append(defs.Enums, def)
	}
	for _, e := range m.Errors {
		def, err := r.structDef(e.Name, e.Abilities, 0, e.Fields, types.StructError)
		if err != nil {
			return nil, err
		}
		defs.Errors = append(defs.Errors, def)
	}
	for _, e := range m.Events {
		def, err := r.structDef(e.Name, nil, 0, e.Fields, types.StructEvent)
		if err != nil {
			return nil, err
		}
		def.Indexed = e.Indexed
		defs.Events = append(defs.Events, def)
	}
	for _, s := range defs.Structs {
		if err := r.reg.AddStruct(s); err != nil {
			return nil, err
		}
	}
	for _, e := range defs.Enums {
		if err := r.reg.AddEnum(e); err != nil {
			return nil, err
		}
	}
	for _, list := range [][]*types.StructDef{defs.Errors, defs.Events} {
		for _, s := range list {
			if err := r.reg.AddStruct(s); err != nil {
				return nil, err
			}
		}
	}

	for _, fn := range m.Functions {
		f := Function{Name: fn.Name}
		if f.Params, err = r.concrete(fn.Name, fn.Params); err != nil {
			return nil, err
		}
		if f.Results, err = r.concrete(fn.Name, fn.Results); err != nil {
			return nil, err
		}
		defs.Functions = append(defs.Functions, f)
	}
	reg.Freeze()
	return defs, nil
}

func (r *resolver) abilities(owner string, names []string) (types.Abilities, error) {
	var set types.Abilities
	for _, n := range names {
		a, ok := types.ParseAbility(n)
		if !ok {
			return 0, errors.New(errors.PhaseManifest, errors.KindInvalidInput).
				Path(owner).
				Detail("unknown ability %q", n).
				Build()
		}
		set = set.With(a)
	}
	return set, nil
}

func (r *resolver) fields(owner string, decls []FieldDecl) ([]types.Field, error) {
	out := make([]types.Field, len(decls))
	for i, f := range decls {
		t, err := types.Parse(f.Type, r.resolve)
		if err != nil {
			return nil, errors.WithPath(err, owner+"."+f.Name)
		}
		out[i] = types.Field{Name: f.Name, Type: t}
	}
	return out, nil
}

func (r *resolver) structDef(name string, abilities []string, params int, decls []FieldDecl, kind types.StructKind) (*types.StructDef, error) {
	set, err := r.abilities(name, abilities)
	if err != nil {
		return nil, err
	}
	fields, err := r.fields(name, decls)
	if err != nil {
		return nil, err
	}
	return &types.StructDef{
		Name:       name,
		Fields:     fields,
		Module:     r.module,
		TypeParams: params,
		Index:      r.locals[name].index,
		Abilities:  set,
		Kind:       kind,
	}, nil
}

func (r *resolver) enumDef(e EnumDecl) (*types.EnumDef, error) {
	set, err := r.abilities(e.Name, e.Abilities)
	if err != nil {
		return nil, err
	}
	def := &types.EnumDef{
		Name:       e.Name,
		Module:     r.module,
		TypeParams: e.TypeParams,
		Index:      r.locals[e.Name].index,
		Abilities:  set,
	}
	for _, v := range e.Variants {
		def.Variants = append(def.Variants, types.Variant{Name: v})
	}
	for _, v := range e.Variant {
		fields, err := r.fields(e.Name+"::"+v.Name, v.Fields)
		if err != nil {
			return nil, err
		}
		def.Variants = append(def.Variants, types.Variant{Name: v.Name, Fields: fields})
	}
	return def, nil
}

// concrete parses a function's type list; generic slots are rejected
func (r *resolver) concrete(fn string, exprs []string) ([]types.Type, error) {
	out := make([]types.Type, len(exprs))
	for i, s := range exprs {
		t, err := types.Parse(s, r.resolve)
		if err != nil {
			return nil, errors.WithPath(err, fn)
		}
		if !types.IsConcrete(t) {
			return nil, errors.New(errors.PhaseManifest, errors.KindFoundTypeParameter).
				Path(fn).
				Type(s).
				Detail("function signatures must be concrete").
				Build()
		}
		out[i] = t
	}
	return out, nil
}

// resolve maps a name used in a type expression to a struct or enum.
// Qualified names (0x2::object::UID) are looked up in the registry; bare
// names match package definitions first, then the framework short names
// and BytesN.
func (r *resolver) resolve(name string, args []types.Type) (types.Type, error) {
	if addr, mod, def, ok := splitQualified(name); ok {
		a, err := types.ParseAccountAddress(addr)
		if err != nil {
			return nil, err
		}
		id := types.ModuleID{Address: a, Name: mod}
		if id == r.module {
			return r.local(def, args)
		}
		return r.external(id, def, args)
	}
	if _, ok := r.locals[name]; ok {
		return r.local(name, args)
	}
	if mod, ok := frameworkNames[name]; ok {
		return r.external(mod, name, args)
	}
	if strings.HasPrefix(name, "Bytes") {
		return r.external(types.BytesModule, name, args)
	}
	return nil, errors.NotFound(errors.PhaseManifest, "type", name)
}

func (r *resolver) local(name string, args []types.Type) (types.Type, error) {
	def, ok := r.locals[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseManifest, "type", name)
	}
	if len(args) != def.params {
		return nil, errors.New(errors.PhaseManifest, errors.KindInvalidInput).
			Type(name).
			Detail("expects %d type arguments, got %d", def.params, len(args)).
			Build()
	}
	if def.isEnum {
		return types.Enum{Module: r.module, Index: def.index, Args: args}, nil
	}
	return types.Struct{Module: r.module, Index: def.index, Args: args}, nil
}

func (r *resolver) external(mod types.ModuleID, name string, args []types.Type) (types.Type, error) {
	if def, ok := r.reg.LookupStruct(mod, name); ok {
		if len(args) != def.TypeParams {
			return nil, errors.New(errors.PhaseManifest, errors.KindInvalidInput).
				Type(name).
				Detail("expects %d type arguments, got %d", def.TypeParams, len(args)).
				Build()
		}
		return def.Type(args...), nil
	}
	if def, ok := r.reg.LookupEnum(mod, name); ok {
		return def.Type(args...), nil
	}
	return nil, errors.NotFound(errors.PhaseManifest, "type", mod.String()+"::"+name)
}

// splitQualified splits "addr::module::Name"
func splitQualified(name string) (addr, mod, def string, ok bool) {
	parts := strings.Split(name, "::")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
