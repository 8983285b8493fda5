// Package wasm provides the WebAssembly module model and binary encoder used by the
// movewasm code generator.
//
// Only the subset the ABI codec emits is modelled: the WebAssembly 1.0 core
// (i32/i64 values, functions, one linear memory, mutable globals, active data
// segments) plus bulk memory (memory.copy, memory.fill) and the "name" custom
// section. Modules are built through codegen.Module and encoded here:
//
//	m := &wasm.Module{}
//	typeIdx := m.AddType(wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}})
//	...
//	bin, err := m.Encode()
package wasm
