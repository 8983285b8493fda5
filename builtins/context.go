package builtins

import (
	"github.com/wippyai/movewasm/cache"
	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/types"
	"github.com/wippyai/movewasm/wasm"
)

// Context carries the state shared by every generator emitting into one
// module: the definition tables, the instantiation cache, the runtime
// globals and the host imports. One Context serves one module translation.
type Context struct {
	module   *codegen.Module
	registry *types.Registry
	cache    *cache.Cache
	opts     Options
	heapTop  codegen.GlobalID
	reader   codegen.GlobalID
	end      codegen.GlobalID
	allocate codegen.FuncID
}

// NewContext sets up memory, reserved data, runtime globals and the
// allocator in m.
func NewContext(m *codegen.Module, r *types.Registry, opts Options) (*Context, error) {
	opts = opts.withDefaults()
	c := &Context{
		module:   m,
		registry: r,
		cache:    cache.New(m),
		opts:     opts,
	}

	var maxPages *uint32
	if opts.MaxMemoryPages > 0 {
		limit := opts.MaxMemoryPages
		maxPages = &limit
	}
	m.SetMemory(opts.MemoryPages, maxPages)
	m.ExportMemory("memory")
	c.writeReservedData()

	c.heapTop = m.AddGlobal(wasm.ValI32, true, int64(HeapStart))
	c.reader = m.AddGlobal(wasm.ValI32, true, 0)
	c.end = m.AddGlobal(wasm.ValI32, true, -1)

	alloc, err := c.emitAllocate()
	if err != nil {
		return nil, err
	}
	c.allocate = alloc
	if opts.ExportAllocator {
		m.ExportFunc("allocate", alloc)
	}
	return c, nil
}

// Module returns the module being generated
func (c *Context) Module() *codegen.Module { return c.module }

// Registry returns the definition tables
func (c *Context) Registry() *types.Registry { return c.registry }

// Cache returns the instantiation cache
func (c *Context) Cache() *cache.Cache { return c.cache }

// Options returns the effective options
func (c *Context) Options() Options { return c.opts }

// Allocate returns the bump allocator: allocate(size i32) -> ptr i32
func (c *Context) Allocate() codegen.FuncID { return c.allocate }

// HeapTop is the global holding the next free address
func (c *Context) HeapTop() codegen.GlobalID { return c.heapTop }

// Reader is the wire-reader global advanced while arguments are decoded
func (c *Context) Reader() codegen.GlobalID { return c.reader }

// End is the global holding the first address past the call data. Offset
// targets must leave a full word below it. It starts at 0xffffffff, which
// leaves decoders outside an entry unbounded.
func (c *Context) End() codegen.GlobalID { return c.end }

// ValType is the register type holding a value of t
func ValType(t types.Type) wasm.ValType {
	if _, ok := t.(types.U64); ok {
		return wasm.ValI64
	}
	return wasm.ValI32
}

// Load reads the stack value of t from the address on top of the stack
func Load(e *codegen.Emitter, t types.Type, offset uint32) *codegen.Emitter {
	if ValType(t) == wasm.ValI64 {
		return e.I64Load(codegen.Align1, offset)
	}
	return e.I32Load(codegen.Align1, offset)
}

// Store writes the stack value of t; the stack holds (address, value)
func Store(e *codegen.Emitter, t types.Type, offset uint32) *codegen.Emitter {
	if ValType(t) == wasm.ValI64 {
		return e.I64Store(codegen.Align1, offset)
	}
	return e.I32Store(codegen.Align1, offset)
}
