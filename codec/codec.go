package codec

import (
	"github.com/wippyai/movewasm/builtins"
	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/storage"
	"github.com/wippyai/movewasm/types"
	"github.com/wippyai/movewasm/wasm"
)

// Cache kinds of the generated functions
const (
	KindPack         = "pack"
	KindUnpack       = "unpack"
	KindPackValues   = "pack_values"
	KindUnpackValues = "unpack_values"
	KindRevert       = "revert"
	KindRaise        = "raise"
	KindEmit         = "emit"
)

var (
	i32  = []wasm.ValType{wasm.ValI32}
	i32s = []wasm.ValType{wasm.ValI32, wasm.ValI32}
)

// Codec emits ABI encoders and decoders into the module of a builtins.Context.
// Every function is generated once per concrete type through the context's
// instantiation cache.
type Codec struct {
	ctx   *builtins.Context
	reg   *types.Registry
	store *storage.Codec
}

// New returns a codec emitting into ctx's module
func New(ctx *builtins.Context) *Codec {
	return &Codec{
		ctx:   ctx,
		reg:   ctx.Registry(),
		store: storage.New(ctx),
	}
}

// Context returns the generation context
func (c *Codec) Context() *builtins.Context { return c.ctx }

// Storage returns the storage codec used to load object arguments
func (c *Codec) Storage() *storage.Codec { return c.store }

func (c *Codec) newFunction(name string, params, results []wasm.ValType) (*codegen.Function, error) {
	return c.ctx.Module().NewFunction(name, params, results)
}

// recordLayout places values of ts one after another by stack size
func recordLayout(ts []types.Type) ([]uint32, uint32, error) {
	offsets := make([]uint32, len(ts))
	var off uint32
	for i, t := range ts {
		size, err := types.StackSize(t)
		if err != nil {
			return nil, 0, err
		}
		offsets[i] = off
		off += size
	}
	return offsets, off, nil
}

// fieldTypes returns the field types of s along with their record offsets
func (c *Codec) fieldTypes(s types.Struct) ([]types.Field, []uint32, error) {
	fields, err := c.reg.Fields(s)
	if err != nil {
		return nil, nil, err
	}
	offsets, _, err := c.reg.FieldOffsets(s)
	if err != nil {
		return nil, nil, err
	}
	return fields, offsets, nil
}

// addConst emits ptr + n, skipping the add when n is zero
func addConst(b *codegen.Emitter, ptr codegen.LocalID, n uint32) {
	b.LocalGet(ptr)
	if n != 0 {
		b.U32Const(n).I32Add()
	}
}

func unsupported(phase errors.Phase, t string, detail string) error {
	return errors.New(phase, errors.KindUnsupported).Type(t).Detail("%s", detail).Build()
}
