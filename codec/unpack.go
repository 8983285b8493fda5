package codec

import (
	"fortio.org/safecast"

	"github.com/wippyai/movewasm/abi"
	"github.com/wippyai/movewasm/builtins"
	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/types"
	"github.com/wippyai/movewasm/wasm"
)

// maxElements caps decoded vector lengths so the record allocation cannot
// wrap the address space
const maxElements = 1 << 26

// Unpack returns unpack(reader, base) -> value for t. reader points at the
// head of the value and base at the start of the enclosing tuple, which
// offsets of dynamic values are relative to. Malformed input traps: high
// bytes that do not fit the target width, bools other than 0 or 1, enum
// indices out of range and offsets that wrap.
func (c *Codec) Unpack(t types.Type) (codegen.FuncID, error) {
	dynamic, err := abi.IsDynamic(c.reg, t)
	if err != nil {
		return 0, err
	}
	if err := c.checkUnpackable(t); err != nil {
		return 0, err
	}
	return c.ctx.Cache().GetOrCreate(KindUnpack, []types.Type{t}, func(name string) (codegen.FuncID, error) {
		switch x := t.(type) {
		case types.Vector:
			return c.unpackVector(name, x)
		case types.Struct:
			return c.unpackStruct(name, x, dynamic)
		}
		return c.unpackScalar(name, t)
	})
}

// checkUnpackable rejects values that cannot be rebuilt from call data alone:
// UIDs and the objects holding them are passed by id and loaded from storage.
func (c *Codec) checkUnpackable(t types.Type) error {
	switch x := t.(type) {
	case types.Vector:
		return errors.WithPath(c.checkUnpackable(x.Elem), "[]")
	case types.Struct:
		def, err := c.reg.Struct(x)
		if err != nil {
			return err
		}
		if def.VM == types.VMUID || def.IsObject() {
			return unsupported(errors.PhaseUnpack, def.Name, "objects are passed by id and cannot be decoded by value")
		}
		if def.VM != types.VMNone {
			return nil
		}
		fields, err := c.reg.Fields(x)
		if err != nil {
			return err
		}
		for _, f := range fields {
			if err := c.checkUnpackable(f.Type); err != nil {
				return errors.WithPath(err, def.Name+"."+f.Name)
			}
		}
	}
	return nil
}

func unpackSig(t types.Type) ([]wasm.ValType, []wasm.ValType) {
	return i32s, []wasm.ValType{builtins.ValType(t)}
}

func (c *Codec) unpackScalar(name string, t types.Type) (codegen.FuncID, error) {
	var swap codegen.FuncID
	var err error
	switch t.(type) {
	case types.U64:
		swap, err = c.ctx.SwapI64()
	case types.U128:
		swap, err = c.ctx.SwapBytes(16)
	case types.U256:
		swap, err = c.ctx.SwapBytes(32)
	}
	if err != nil {
		return 0, err
	}
	var variants uint32
	if e, ok := t.(types.Enum); ok {
		def, err := c.reg.Enum(e)
		if err != nil {
			return 0, err
		}
		if variants, err = safecast.Conv[uint32](len(def.Variants)); err != nil {
			return 0, errors.Internal(errors.PhaseUnpack, "%s: %v", def.Name, err)
		}
	}

	params, results := unpackSig(t)
	fn, err := c.newFunction(name, params, results)
	if err != nil {
		return 0, err
	}
	r := fn.Param(0)
	b := fn.Body()
	switch t.(type) {
	case types.Bool:
		v := fn.NewLocal(wasm.ValI32)
		if err := c.ctx.LoadWordI32(b, r, 0, 1); err != nil {
			return 0, err
		}
		b.LocalTee(v).I32Const(1).I32GtU().TrapIf()
		b.LocalGet(v)
	case types.U8:
		err = c.ctx.LoadWordI32(b, r, 0, 1)
	case types.U16:
		err = c.ctx.LoadWordI32(b, r, 0, 2)
	case types.U32:
		err = c.ctx.LoadWordI32(b, r, 0, 4)
	case types.U64:
		if err := c.ctx.AssertZeroAt(b, r, 0, 24); err != nil {
			return 0, err
		}
		b.LocalGet(r).I64Load(codegen.Align1, 24).Call(swap)
	case types.U128:
		if err := c.ctx.AssertZeroAt(b, r, 0, 16); err != nil {
			return 0, err
		}
		p := c.ctx.Alloc(fn, types.U128Size)
		addConst(b, r, 16)
		b.LocalGet(p).Call(swap)
		b.LocalGet(p)
	case types.U256:
		p := c.ctx.Alloc(fn, types.U256Size)
		b.LocalGet(r).LocalGet(p).Call(swap)
		b.LocalGet(p)
	case types.Address:
		if err := c.ctx.AssertZeroAt(b, r, 0, 12); err != nil {
			return 0, err
		}
		p := c.ctx.Alloc(fn, types.AddressSize)
		builtins.CopyBytes(b, p, 0, r, 0, abi.WordSize)
		b.LocalGet(p)
	case types.Enum:
		tag := fn.NewLocal(wasm.ValI32)
		if err := c.ctx.LoadWordI32(b, r, 0, 1); err != nil {
			return 0, err
		}
		b.LocalTee(tag).U32Const(variants).I32GeU().TrapIf()
		cell := c.ctx.Alloc(fn, types.EnumCellSize)
		b.LocalGet(cell).LocalGet(tag).I32Store(codegen.Align1, 0)
		b.LocalGet(cell)
	default:
		return 0, errors.Internal(errors.PhaseUnpack, "no unpacker for %s", t)
	}
	if err != nil {
		return 0, err
	}
	return fn.Finish(), nil
}

// tailPointer emits base + offset for the offset word at r and stores it in
// a new local. The offset must fit in four bytes and must not wrap, and the
// word it points at must end by the call data end.
func (c *Codec) tailPointer(fn *codegen.Function, r, base codegen.LocalID) (codegen.LocalID, error) {
	p := fn.NewLocal(wasm.ValI32)
	b := fn.Body()
	if err := c.ctx.LoadWordI32(b, r, 0, 4); err != nil {
		return 0, err
	}
	b.LocalGet(base).I32Add().LocalTee(p).LocalGet(base).I32LtU().TrapIf()
	end := c.ctx.End()
	b.LocalGet(p).GlobalGet(end).I32GtU().TrapIf()
	b.GlobalGet(end).LocalGet(p).I32Sub().U32Const(abi.WordSize).I32LtU().TrapIf()
	return p, nil
}

// readLength loads the length word at p into a new local, trapping above limit
func (c *Codec) readLength(fn *codegen.Function, p codegen.LocalID, limit uint32) (codegen.LocalID, error) {
	n := fn.NewLocal(wasm.ValI32)
	b := fn.Body()
	if err := c.ctx.LoadWordI32(b, p, 0, 4); err != nil {
		return 0, err
	}
	b.LocalTee(n).U32Const(limit).I32GtU().TrapIf()
	return n, nil
}

func (c *Codec) unpackVector(name string, v types.Vector) (codegen.FuncID, error) {
	elemUnpack, err := c.Unpack(v.Elem)
	if err != nil {
		return 0, errors.WithPath(err, "[]")
	}
	stride, err := types.StackSize(v.Elem)
	if err != nil {
		return 0, err
	}
	head, err := abi.HeadSize(c.reg, v.Elem)
	if err != nil {
		return 0, err
	}

	params, results := unpackSig(v)
	fn, err := c.newFunction(name, params, results)
	if err != nil {
		return 0, err
	}
	r, base := fn.Param(0), fn.Param(1)
	tail, err := c.tailPointer(fn, r, base)
	if err != nil {
		return 0, err
	}
	n, err := c.readLength(fn, tail, maxElements)
	if err != nil {
		return 0, err
	}
	vec := fn.NewLocal(wasm.ValI32)
	elems := fn.NewLocal(wasm.ValI32)
	i := fn.NewLocal(wasm.ValI32)

	b := fn.Body()
	b.U32Const(types.VectorHeaderSize).LocalGet(n).U32Const(stride).I32Mul().I32Add().
		Call(c.ctx.Allocate()).LocalSet(vec)
	b.LocalGet(vec).LocalGet(n).I32Store(codegen.Align1, 0)
	b.LocalGet(vec).LocalGet(n).I32Store(codegen.Align1, 4)
	addConst(b, tail, abi.WordSize)
	b.LocalSet(elems)

	b.Block(codegen.BlockVoid).Loop(codegen.BlockVoid)
	b.LocalGet(i).LocalGet(n).I32GeU().BrIf(1)
	b.LocalGet(vec).LocalGet(i).U32Const(stride).I32Mul().I32Add()
	b.LocalGet(elems).LocalGet(i).U32Const(head).I32Mul().I32Add()
	b.LocalGet(elems)
	b.Call(elemUnpack)
	builtins.Store(b, v.Elem, types.VectorHeaderSize)
	b.LocalGet(i).I32Const(1).I32Add().LocalSet(i)
	b.Br(0)
	b.End().End()

	b.LocalGet(vec)
	return fn.Finish(), nil
}

func (c *Codec) unpackStruct(name string, s types.Struct, dynamic bool) (codegen.FuncID, error) {
	def, err := c.reg.Struct(s)
	if err != nil {
		return 0, err
	}
	switch def.VM {
	case types.VMString:
		return c.unpackString(name, s)
	case types.VMBytes:
		return c.unpackBytes(name, s, def)
	case types.VMID:
		return c.unpackID(name, s)
	case types.VMNone:
	default:
		return 0, unsupported(errors.PhaseUnpack, def.Name, "type has no decoder")
	}

	fields, offsets, err := c.fieldTypes(s)
	if err != nil {
		return 0, err
	}
	_, size, err := c.reg.FieldOffsets(s)
	if err != nil {
		return 0, err
	}
	unpacks := make([]codegen.FuncID, len(fields))
	heads := make([]uint32, len(fields))
	for i, f := range fields {
		if unpacks[i], err = c.Unpack(f.Type); err != nil {
			return 0, errors.WithPath(err, def.Name+"."+f.Name)
		}
		if heads[i], err = abi.HeadSize(c.reg, f.Type); err != nil {
			return 0, err
		}
	}

	params, results := unpackSig(s)
	fn, err := c.newFunction(name, params, results)
	if err != nil {
		return 0, err
	}
	r, base := fn.Param(0), fn.Param(1)
	src, srcBase := r, base
	if dynamic {
		tail, err := c.tailPointer(fn, r, base)
		if err != nil {
			return 0, err
		}
		src, srcBase = tail, tail
	}

	rec := c.ctx.Alloc(fn, size)
	b := fn.Body()
	var headOff uint32
	for i, f := range fields {
		b.LocalGet(rec)
		addConst(b, src, headOff)
		b.LocalGet(srcBase)
		b.Call(unpacks[i])
		builtins.Store(b, f.Type, offsets[i])
		headOff += heads[i]
	}
	b.LocalGet(rec)
	return fn.Finish(), nil
}

// unpackBytes decodes a left-aligned bytesN word; the bytes past N must be zero
func (c *Codec) unpackBytes(name string, s types.Struct, def *types.StructDef) (codegen.FuncID, error) {
	params, results := unpackSig(s)
	fn, err := c.newFunction(name, params, results)
	if err != nil {
		return 0, err
	}
	r := fn.Param(0)
	n, err := safecast.Conv[uint32](def.BytesLen)
	if err != nil {
		return 0, errors.Internal(errors.PhaseUnpack, "%s: %v", def.Name, err)
	}
	b := fn.Body()
	if err := c.ctx.AssertZeroAt(b, r, n, abi.WordSize-n); err != nil {
		return 0, err
	}
	p := c.ctx.Alloc(fn, abi.WordSize)
	builtins.CopyBytes(b, p, 0, r, 0, abi.WordSize)
	b.LocalGet(p)
	return fn.Finish(), nil
}

func (c *Codec) unpackID(name string, s types.Struct) (codegen.FuncID, error) {
	params, results := unpackSig(s)
	fn, err := c.newFunction(name, params, results)
	if err != nil {
		return 0, err
	}
	r := fn.Param(0)
	b := fn.Body()
	p := c.ctx.Alloc(fn, abi.WordSize)
	builtins.CopyBytes(b, p, 0, r, 0, abi.WordSize)
	rec := c.ctx.Alloc(fn, 4)
	b.LocalGet(rec).LocalGet(p).I32Store(codegen.Align1, 0)
	b.LocalGet(rec)
	return fn.Finish(), nil
}

// unpackString rebuilds a String record: {bytes: vector<u8>} with one
// four-byte element per byte
func (c *Codec) unpackString(name string, s types.Struct) (codegen.FuncID, error) {
	params, results := unpackSig(s)
	fn, err := c.newFunction(name, params, results)
	if err != nil {
		return 0, err
	}
	r, base := fn.Param(0), fn.Param(1)
	tail, err := c.tailPointer(fn, r, base)
	if err != nil {
		return 0, err
	}
	n, err := c.readLength(fn, tail, maxElements)
	if err != nil {
		return 0, err
	}
	vec := fn.NewLocal(wasm.ValI32)
	i := fn.NewLocal(wasm.ValI32)

	b := fn.Body()
	b.U32Const(types.VectorHeaderSize).LocalGet(n).I32Const(4).I32Mul().I32Add().
		Call(c.ctx.Allocate()).LocalSet(vec)
	b.LocalGet(vec).LocalGet(n).I32Store(codegen.Align1, 0)
	b.LocalGet(vec).LocalGet(n).I32Store(codegen.Align1, 4)

	b.Block(codegen.BlockVoid).Loop(codegen.BlockVoid)
	b.LocalGet(i).LocalGet(n).I32GeU().BrIf(1)
	b.LocalGet(vec).LocalGet(i).I32Const(4).I32Mul().I32Add()
	b.LocalGet(tail).LocalGet(i).I32Add().I32Load8U(codegen.Align1, abi.WordSize)
	b.I32Store(codegen.Align1, types.VectorHeaderSize)
	b.LocalGet(i).I32Const(1).I32Add().LocalSet(i)
	b.Br(0)
	b.End().End()

	rec := c.ctx.Alloc(fn, 4)
	b.LocalGet(rec).LocalGet(vec).I32Store(codegen.Align1, 0)
	b.LocalGet(rec)
	return fn.Finish(), nil
}
