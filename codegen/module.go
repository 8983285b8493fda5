package codegen

import (
	"fmt"

	"fortio.org/safecast"
	"go.uber.org/zap"

	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/wasm"
)

// FuncID is a logical function handle, stable while the module is built.
// Imported and defined functions share one id space; final indices are
// assigned by Build (imports first, in declaration order).
type FuncID uint32

// LocalID indexes a function's params followed by its locals
type LocalID uint32

// GlobalID indexes the module's globals
type GlobalID uint32

type importRef struct {
	module string
	name   string
}

type funcEntry struct {
	name string
	sig  wasm.FuncType
	imp  *importRef
	fn   *Function
}

type exportEntry struct {
	name string
	kind byte
	idx  uint32
}

// Module assembles a WebAssembly module out of functions emitted in any order.
// It is not safe for concurrent use.
type Module struct {
	name    string
	funcs   []*funcEntry
	byName  map[string]FuncID
	imports map[importRef]FuncID
	globals []wasm.Global
	memory  *wasm.MemoryType
	exports []exportEntry
	data    []wasm.DataSegment
}

// NewModule creates an empty module; name ends up in the name section.
func NewModule(name string) *Module {
	return &Module{
		name:    name,
		byName:  make(map[string]FuncID),
		imports: make(map[importRef]FuncID),
	}
}

// Name returns the module name
func (m *Module) Name() string {
	return m.name
}

func (m *Module) nextID() FuncID {
	id, err := safecast.Conv[uint32](len(m.funcs))
	if err != nil {
		panic(fmt.Errorf("function space overflow: %w", err))
	}
	return FuncID(id)
}

// ImportFunc declares a host function. Declaring the same module/name twice
// returns the first id.
func (m *Module) ImportFunc(module, name string, params, results []wasm.ValType) FuncID {
	key := importRef{module: module, name: name}
	if id, ok := m.imports[key]; ok {
		return id
	}
	id := m.nextID()
	m.funcs = append(m.funcs, &funcEntry{
		name: module + "." + name,
		sig:  wasm.FuncType{Params: params, Results: results},
		imp:  &key,
	})
	m.imports[key] = id
	return id
}

// NewFunction registers a function under a unique name and returns its builder.
// The name is claimed immediately, so lookups during generation of the body
// already see it.
func (m *Module) NewFunction(name string, params, results []wasm.ValType) (*Function, error) {
	if _, exists := m.byName[name]; exists {
		return nil, errors.New(errors.PhaseCodegen, errors.KindDuplicate).
			Detail("function %q already defined", name).
			Build()
	}
	id := m.nextID()
	fn := &Function{
		module: m,
		id:     id,
		name:   name,
		sig:    wasm.FuncType{Params: params, Results: results},
		body:   NewEmitter(),
	}
	m.funcs = append(m.funcs, &funcEntry{name: name, sig: fn.sig, fn: fn})
	m.byName[name] = id
	return fn, nil
}

// FuncByName looks up a defined function by its exact name
func (m *Module) FuncByName(name string) (FuncID, bool) {
	id, ok := m.byName[name]
	return id, ok
}

// FuncName returns the name a function was registered under
func (m *Module) FuncName(id FuncID) string {
	if int(id) >= len(m.funcs) {
		return ""
	}
	return m.funcs[id].name
}

// Signature returns the signature of a function
func (m *Module) Signature(id FuncID) (wasm.FuncType, bool) {
	if int(id) >= len(m.funcs) {
		return wasm.FuncType{}, false
	}
	return m.funcs[id].sig, true
}

// NumFunctions returns the number of defined (non-imported) functions
func (m *Module) NumFunctions() int {
	return len(m.funcs) - len(m.imports)
}

// AddGlobal appends a global initialized to init
func (m *Module) AddGlobal(vt wasm.ValType, mutable bool, init int64) GlobalID {
	var expr []byte
	if vt == wasm.ValI64 {
		expr = wasm.ConstI64Expr(init)
	} else {
		expr = wasm.ConstI32Expr(int32(init))
	}
	m.globals = append(m.globals, wasm.Global{
		Type: wasm.GlobalType{ValType: vt, Mutable: mutable},
		Init: expr,
	})
	id, err := safecast.Conv[uint32](len(m.globals) - 1)
	if err != nil {
		panic(fmt.Errorf("global space overflow: %w", err))
	}
	return GlobalID(id)
}

// SetMemory declares the module's single linear memory
func (m *Module) SetMemory(minPages uint32, maxPages *uint32) {
	m.memory = &wasm.MemoryType{Limits: wasm.Limits{Min: minPages, Max: maxPages}}
}

// AddData places an active data segment at a fixed memory offset
func (m *Module) AddData(offset uint32, data []byte) {
	m.data = append(m.data, wasm.DataSegment{
		Offset: wasm.ConstI32Expr(int32(offset)),
		Init:   append([]byte(nil), data...),
	})
}

// ExportFunc exports a function under name
func (m *Module) ExportFunc(name string, id FuncID) {
	m.exports = append(m.exports, exportEntry{name: name, kind: wasm.KindFunc, idx: uint32(id)})
}

// ExportMemory exports the linear memory under name
func (m *Module) ExportMemory(name string) {
	m.exports = append(m.exports, exportEntry{name: name, kind: wasm.KindMemory})
}

// ExportGlobal exports a global under name
func (m *Module) ExportGlobal(name string, id GlobalID) {
	m.exports = append(m.exports, exportEntry{name: name, kind: wasm.KindGlobal, idx: uint32(id)})
}

// Exported reports whether an export with this name exists
func (m *Module) Exported(name string) bool {
	for _, exp := range m.exports {
		if exp.name == name {
			return true
		}
	}
	return false
}

// Build resolves logical function ids and produces the wasm module.
func (m *Module) Build() (*wasm.Module, error) {
	out := &wasm.Module{
		Names: &wasm.NameMap{Module: m.name, Functions: make(map[uint32]string, len(m.funcs))},
	}

	// Imports take the low indices.
	remap := make([]uint32, len(m.funcs))
	var next uint32
	for id, f := range m.funcs {
		if f.imp == nil {
			continue
		}
		out.Imports = append(out.Imports, wasm.Import{
			Module:  f.imp.module,
			Name:    f.imp.name,
			TypeIdx: out.AddType(f.sig),
		})
		remap[id] = next
		next++
	}
	for id, f := range m.funcs {
		if f.imp != nil {
			continue
		}
		remap[id] = next
		out.Names.Functions[next] = f.name
		next++
	}

	for _, f := range m.funcs {
		if f.imp != nil {
			continue
		}
		if !f.fn.finished {
			return nil, errors.Internal(errors.PhaseCodegen, "function %q was never finished", f.name)
		}
		body, err := f.fn.encode(remap)
		if err != nil {
			return nil, err
		}
		out.Funcs = append(out.Funcs, out.AddType(f.sig))
		out.Code = append(out.Code, body)
	}

	if m.memory != nil {
		out.Memories = append(out.Memories, *m.memory)
	}
	out.Globals = append(out.Globals, m.globals...)
	out.Data = append(out.Data, m.data...)

	for _, exp := range m.exports {
		idx := exp.idx
		if exp.kind == wasm.KindFunc {
			if int(idx) >= len(remap) {
				return nil, errors.Internal(errors.PhaseCodegen, "export %q refers to unknown function %d", exp.name, idx)
			}
			idx = remap[idx]
		}
		out.Exports = append(out.Exports, wasm.Export{Name: exp.name, Kind: exp.kind, Idx: idx})
	}

	Logger().Debug("module built",
		zap.String("module", m.name),
		zap.Int("imports", len(out.Imports)),
		zap.Int("functions", len(out.Funcs)),
		zap.Int("types", len(out.Types)),
	)
	return out, nil
}

// Encode builds the module and returns its binary form
func (m *Module) Encode() ([]byte, error) {
	out, err := m.Build()
	if err != nil {
		return nil, err
	}
	bin, err := out.Encode()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCodegen, errors.KindOverflow, err, m.name)
	}
	return bin, nil
}
