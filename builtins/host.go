package builtins

import (
	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/wasm"
)

// HostFunc identifies a host import
type HostFunc uint8

const (
	ReadArgs            HostFunc = iota // read_args(dest)
	WriteResult                         // write_result(ptr, len)
	NativeKeccak256                     // native_keccak256(ptr, len, out)
	StorageLoadBytes32                  // storage_load_bytes32(key, dest)
	StorageCacheBytes32                 // storage_cache_bytes32(key, value)
	StorageFlushCache                   // storage_flush_cache(clear)
	TxOrigin                            // tx_origin(dest)
	EmitLog                             // emit_log(ptr, len, topics)
)

type hostSig struct {
	name   string
	params int
}

var hostFuncs = [...]hostSig{
	ReadArgs:            {"read_args", 1},
	WriteResult:         {"write_result", 2},
	NativeKeccak256:     {"native_keccak256", 3},
	StorageLoadBytes32:  {"storage_load_bytes32", 2},
	StorageCacheBytes32: {"storage_cache_bytes32", 2},
	StorageFlushCache:   {"storage_flush_cache", 1},
	TxOrigin:            {"tx_origin", 1},
	EmitLog:             {"emit_log", 3},
}

// Name returns the import name of h
func (h HostFunc) Name() string {
	return hostFuncs[h].name
}

// Host declares the import on first use and returns its function id.
// All host functions take i32 arguments and return nothing.
func (c *Context) Host(h HostFunc) codegen.FuncID {
	sig := hostFuncs[h]
	params := make([]wasm.ValType, sig.params)
	for i := range params {
		params[i] = wasm.ValI32
	}
	return c.module.ImportFunc(c.opts.HostModule, sig.name, params, nil)
}
