// Package movewasm generates the ABI codec and storage layer of a Move
// package compiled to a WebAssembly contract host.
//
// A package is described by a movewasm.toml manifest (see package manifest).
// The compiler resolves it into a type registry and emits one module whose
// exports decode call data into argument records, encode results, build
// revert payloads, emit events and move objects in and out of storage.
//
// # Packages
//
//	movewasm/           Compiler, ABI JSON and verification helpers
//	├── manifest/       movewasm.toml parsing and type resolution
//	├── types/          Move types, definitions and the registry
//	├── abi/            Solidity ABI names, signatures and selectors
//	├── codec/          Generated pack and unpack functions, entry points
//	├── storage/        Object slot derivation and field layout
//	├── builtins/       Memory layout, allocator and host imports
//	├── cache/          Deduplication of generated instantiations
//	├── codegen/        Function and module builders
//	├── wasm/           WebAssembly binary encoding
//	├── vmhost/         Simulated host on wazero
//	└── errors/         Structured errors
//
// # Quick Start
//
//	m, err := manifest.Load("path/to/package")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defs, err := m.Resolve()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	art, err := movewasm.NewCompiler(defs, movewasm.Config{
//	    Options: m.Options(),
//	    Storage: true,
//	}).Compile()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile(m.Build.Output, art.Wasm, 0o644)
//
// # Exports
//
// For every declared function f the module exports abi_decode_f and
// abi_encode_f, and with Config.Echo abi_echo_f. Errors get abi_revert_E,
// events abi_emit_E, and with Config.Storage every concrete object gets
// storage_save_S, storage_load_S, storage_read_S and storage_delete_S.
package movewasm
