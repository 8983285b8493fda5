package wasm

import "slices"

// Module represents a WebAssembly module under construction
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // Type indices for declared functions
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Code     []FuncBody
	Data     []DataSegment

	// Names feeds the "name" custom section, keyed by function index.
	Names *NameMap

	CustomSections []CustomSection
}

// FuncType represents a WebAssembly function signature with parameter and result types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether both signatures have identical params and results.
func (f FuncType) Equal(o FuncType) bool {
	return slices.Equal(f.Params, o.Params) && slices.Equal(f.Results, o.Results)
}

// ValType represents a WebAssembly value type.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	default:
		return "unknown"
	}
}

// Import represents an imported function.
type Import struct {
	Module  string
	Name    string
	TypeIdx uint32
}

// MemoryType describes a linear memory
type MemoryType struct {
	Limits Limits
}

// Limits holds the page limits of a memory
type Limits struct {
	Max *uint32
	Min uint32
}

// GlobalType describes a global's value type and mutability
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global is a global definition with its constant init expression
type Global struct {
	Init []byte
	Type GlobalType
}

// Export represents an exported function, memory or global.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// FuncBody is a function's locals plus encoded instruction stream (including the final end).
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte
}

// LocalEntry declares Count locals of one value type
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// DataSegment is an active data segment for memory 0
type DataSegment struct {
	Offset []byte // constant expression
	Init   []byte
}

// CustomSection is an opaque named section
type CustomSection struct {
	Name string
	Data []byte
}

// NameMap carries debug names for the name section
type NameMap struct {
	Module    string
	Functions map[uint32]string
}

// AddType returns the index of an identical type, appending it when absent.
func (m *Module) AddType(ft FuncType) uint32 {
	for i, existing := range m.Types {
		if existing.Equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// NumImportedFuncs returns the number of imported functions
func (m *Module) NumImportedFuncs() int {
	return len(m.Imports)
}

// GetFuncType returns the signature of a function by its index in the function space.
func (m *Module) GetFuncType(funcIdx uint32) *FuncType {
	var typeIdx uint32
	if int(funcIdx) < len(m.Imports) {
		typeIdx = m.Imports[funcIdx].TypeIdx
	} else {
		local := int(funcIdx) - len(m.Imports)
		if local >= len(m.Funcs) {
			return nil
		}
		typeIdx = m.Funcs[local]
	}
	if int(typeIdx) >= len(m.Types) {
		return nil
	}
	return &m.Types[typeIdx]
}
