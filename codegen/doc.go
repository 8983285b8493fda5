// Package codegen builds WebAssembly modules for the ABI codec.
//
// An Emitter collects one function body through a fluent API:
//
//	fn, _ := m.NewFunction("swap_i32", []wasm.ValType{wasm.ValI32}, []wasm.ValType{wasm.ValI32})
//	fn.Body().LocalGet(fn.Param(0)).I32Const(8).I32Rotl()
//	fn.Finish()
//
// Functions are referenced through logical FuncIDs, so imports and helpers can
// be declared while other bodies are still being emitted. Module.Build assigns
// the final function indices and rewrites every call.
package codegen
