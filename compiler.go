package movewasm

import (
	"go.uber.org/zap"

	"github.com/wippyai/movewasm/abi"
	"github.com/wippyai/movewasm/builtins"
	"github.com/wippyai/movewasm/codec"
	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/manifest"
	"github.com/wippyai/movewasm/types"
)

// Export name prefixes of the generated entry points
const (
	DecodePrefix = "abi_decode_" // (calldata) -> argument record
	EncodePrefix = "abi_encode_" // (result record) -> [len][bytes]
	EchoPrefix   = "abi_echo_"   // (argument record) -> [len][bytes]
	RevertPrefix = "abi_revert_" // (error record) -> [len][selector][bytes]
	RaisePrefix  = "abi_raise_"  // (error record) -> 1, payload written as the result
	EmitPrefix   = "abi_emit_"   // (event record)
	SavePrefix   = "storage_save_"
	LoadPrefix   = "storage_load_"
	ReadPrefix   = "storage_read_"
	DeletePrefix = "storage_delete_"
)

// Config controls what a Compiler exports besides the codecs
type Config struct {
	Options builtins.Options
	// Storage exports save, load, read and delete for every concrete object.
	Storage bool
	// Echo exports abi_echo_<fn> for functions whose parameters all come
	// from call data, so a decoded argument record can be re-encoded.
	Echo bool
}

// Artifact is the result of one compilation
type Artifact struct {
	Wasm    []byte
	ABI     []Entry
	Exports []string
	// Instantiations is the number of distinct generated functions.
	Instantiations int
}

// Compiler emits the codec module of one resolved package
type Compiler struct {
	defs *manifest.Definitions
	cfg  Config
}

// NewCompiler returns a compiler for defs
func NewCompiler(defs *manifest.Definitions, cfg Config) *Compiler {
	return &Compiler{defs: defs, cfg: cfg}
}

type exporter struct {
	m     *codegen.Module
	names []string
}

func (e *exporter) export(name string, id codegen.FuncID, err error) error {
	if err != nil {
		return errors.WithPath(err, name)
	}
	if e.m.Exported(name) {
		return errors.New(errors.PhaseCodegen, errors.KindDuplicate).
			Detail("export %q is generated twice", name).
			Build()
	}
	e.m.ExportFunc(name, id)
	e.names = append(e.names, name)
	return nil
}

// Compile generates the module and its ABI description
func (c *Compiler) Compile() (*Artifact, error) {
	reg := c.defs.Registry
	m := codegen.NewModule(c.defs.Module.Name)
	ctx, err := builtins.NewContext(m, reg, c.cfg.Options)
	if err != nil {
		return nil, err
	}
	cd := codec.New(ctx)
	ex := &exporter{m: m}

	for _, fn := range c.defs.Functions {
		id, err := cd.UnpackValues(fn.Params)
		if err := ex.export(DecodePrefix+fn.Name, id, err); err != nil {
			return nil, err
		}
		id, err = cd.PackValues(fn.Results)
		if err := ex.export(EncodePrefix+fn.Name, id, err); err != nil {
			return nil, err
		}
		if c.cfg.Echo && c.echoable(fn.Params) {
			id, err = cd.PackValues(fn.Params)
			if err := ex.export(EchoPrefix+fn.Name, id, err); err != nil {
				return nil, err
			}
		}
	}
	for _, def := range c.defs.Errors {
		id, err := cd.Revert(def)
		if err := ex.export(RevertPrefix+def.Name, id, err); err != nil {
			return nil, err
		}
		id, err = cd.Raise(def)
		if err := ex.export(RaisePrefix+def.Name, id, err); err != nil {
			return nil, err
		}
	}
	for _, def := range c.defs.Events {
		id, err := cd.Emit(def)
		if err := ex.export(EmitPrefix+def.Name, id, err); err != nil {
			return nil, err
		}
	}
	if c.cfg.Storage {
		if err := c.exportStorage(cd, ex); err != nil {
			return nil, err
		}
	}

	bin, err := m.Encode()
	if err != nil {
		return nil, err
	}
	entries, err := BuildABI(c.defs)
	if err != nil {
		return nil, err
	}

	Logger().Info("package compiled",
		zap.String("module", c.defs.Module.String()),
		zap.Int("exports", len(ex.names)),
		zap.Int("instantiations", ctx.Cache().Len()),
		zap.Int("bytes", len(bin)),
	)
	return &Artifact{
		Wasm:           bin,
		ABI:            entries,
		Exports:        ex.names,
		Instantiations: ctx.Cache().Len(),
	}, nil
}

func (c *Compiler) exportStorage(cd *codec.Codec, ex *exporter) error {
	store := cd.Storage()
	for _, def := range c.defs.Objects() {
		if def.TypeParams > 0 {
			Logger().Debug("generic object skipped", zap.String("struct", def.Name))
			continue
		}
		t := def.Type()
		gens := []struct {
			prefix string
			gen    func(types.Struct) (codegen.FuncID, error)
		}{
			{SavePrefix, store.Save},
			{LoadPrefix, store.Load},
			{ReadPrefix, store.Read},
			{DeletePrefix, store.Delete},
		}
		for _, g := range gens {
			id, err := g.gen(t)
			if err := ex.export(g.prefix+def.Name, id, err); err != nil {
				return err
			}
		}
	}
	return nil
}

// echoable reports whether every parameter is read from call data by value
func (c *Compiler) echoable(params []types.Type) bool {
	reg := c.defs.Registry
	for _, p := range params {
		t, err := types.Deref(p)
		if err != nil || abi.Injected(reg, t) {
			return false
		}
		if s, ok := t.(types.Struct); ok {
			if def, err := reg.Struct(s); err != nil || def.IsObject() {
				return false
			}
		}
	}
	return true
}
