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

// Pack returns pack(value, writer, base) for t. It writes the head of value
// at writer: the value itself when t is static, otherwise the offset of a
// freshly allocated tail relative to base. Tails are allocated in head
// order, so consecutive packs produce the canonical encoding.
func (c *Codec) Pack(t types.Type) (codegen.FuncID, error) {
	dynamic, err := abi.IsDynamic(c.reg, t)
	if err != nil {
		return 0, err
	}
	return c.ctx.Cache().GetOrCreate(KindPack, []types.Type{t}, func(name string) (codegen.FuncID, error) {
		switch x := t.(type) {
		case types.Vector:
			return c.packVector(name, x)
		case types.Struct:
			return c.packStruct(name, x, dynamic)
		}
		return c.packScalar(name, t)
	})
}

func packParams(t types.Type) []wasm.ValType {
	return []wasm.ValType{builtins.ValType(t), wasm.ValI32, wasm.ValI32}
}

func (c *Codec) packScalar(name string, t types.Type) (codegen.FuncID, error) {
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

	fn, err := c.newFunction(name, packParams(t), nil)
	if err != nil {
		return 0, err
	}
	v, w := fn.Param(0), fn.Param(1)
	b := fn.Body()
	switch t.(type) {
	case types.Bool, types.U8, types.U16, types.U32:
		if err := c.ctx.StoreWordI32(b, w, 0, v); err != nil {
			return 0, err
		}
	case types.Enum:
		tag := fn.NewLocal(wasm.ValI32)
		b.LocalGet(v).I32Load(codegen.Align1, 0).LocalSet(tag)
		if err := c.ctx.StoreWordI32(b, w, 0, tag); err != nil {
			return 0, err
		}
	case types.U64:
		builtins.ZeroPad(b, w, 0, 24)
		b.LocalGet(w).LocalGet(v).Call(swap).I64Store(codegen.Align1, 24)
	case types.U128:
		builtins.ZeroPad(b, w, 0, 16)
		b.LocalGet(v)
		addConst(b, w, 16)
		b.Call(swap)
	case types.U256:
		b.LocalGet(v).LocalGet(w).Call(swap)
	case types.Address:
		builtins.CopyBytes(b, w, 0, v, 0, abi.WordSize)
	default:
		return 0, errors.Internal(errors.PhasePack, "no packer for %s", t)
	}
	return fn.Finish(), nil
}

// packVector writes [len][element heads][element tails] into a new tail.
// Element offsets are relative to the first element head.
func (c *Codec) packVector(name string, v types.Vector) (codegen.FuncID, error) {
	elemPack, err := c.Pack(v.Elem)
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

	fn, err := c.newFunction(name, packParams(v), nil)
	if err != nil {
		return 0, err
	}
	vec, w, base := fn.Param(0), fn.Param(1), fn.Param(2)
	n := fn.NewLocal(wasm.ValI32)
	tail := fn.NewLocal(wasm.ValI32)
	off := fn.NewLocal(wasm.ValI32)
	elems := fn.NewLocal(wasm.ValI32)
	i := fn.NewLocal(wasm.ValI32)

	b := fn.Body()
	b.LocalGet(vec).I32Load(codegen.Align1, 0).LocalSet(n)
	b.U32Const(abi.WordSize).LocalGet(n).U32Const(head).I32Mul().I32Add().
		Call(c.ctx.Allocate()).LocalSet(tail)
	b.LocalGet(tail).LocalGet(base).I32Sub().LocalSet(off)
	if err := c.ctx.StoreWordI32(b, w, 0, off); err != nil {
		return 0, err
	}
	if err := c.ctx.StoreWordI32(b, tail, 0, n); err != nil {
		return 0, err
	}
	addConst(b, tail, abi.WordSize)
	b.LocalSet(elems)

	b.Block(codegen.BlockVoid).Loop(codegen.BlockVoid)
	b.LocalGet(i).LocalGet(n).I32GeU().BrIf(1)
	b.LocalGet(vec).LocalGet(i).U32Const(stride).I32Mul().I32Add()
	builtins.Load(b, v.Elem, types.VectorHeaderSize)
	b.LocalGet(elems).LocalGet(i).U32Const(head).I32Mul().I32Add()
	b.LocalGet(elems)
	b.Call(elemPack)
	b.LocalGet(i).I32Const(1).I32Add().LocalSet(i)
	b.Br(0)
	b.End().End()
	return fn.Finish(), nil
}

func (c *Codec) packStruct(name string, s types.Struct, dynamic bool) (codegen.FuncID, error) {
	def, err := c.reg.Struct(s)
	if err != nil {
		return 0, err
	}
	switch def.VM {
	case types.VMString:
		return c.packString(name, s)
	case types.VMBytes, types.VMID, types.VMUID:
		return c.packWord32(name, s, def)
	}

	fields, offsets, err := c.fieldTypes(s)
	if err != nil {
		return 0, err
	}
	packs := make([]codegen.FuncID, len(fields))
	heads := make([]uint32, len(fields))
	for i, f := range fields {
		if packs[i], err = c.Pack(f.Type); err != nil {
			return 0, errors.WithPath(err, def.Name+"."+f.Name)
		}
		if heads[i], err = abi.HeadSize(c.reg, f.Type); err != nil {
			return 0, err
		}
	}

	fn, err := c.newFunction(name, packParams(s), nil)
	if err != nil {
		return 0, err
	}
	rec, w, base := fn.Param(0), fn.Param(1), fn.Param(2)
	b := fn.Body()

	// Static structs are inlined into the enclosing head. Dynamic ones get a
	// tail holding their own tuple, which is then the base of their fields.
	dst, dstBase := w, base
	if dynamic {
		var size uint32
		for _, h := range heads {
			size += h
		}
		tail := c.ctx.Alloc(fn, size)
		off := fn.NewLocal(wasm.ValI32)
		b.LocalGet(tail).LocalGet(base).I32Sub().LocalSet(off)
		if err := c.ctx.StoreWordI32(b, w, 0, off); err != nil {
			return 0, err
		}
		dst, dstBase = tail, tail
	}

	var headOff uint32
	for i, f := range fields {
		builtins.Load(b.LocalGet(rec), f.Type, offsets[i])
		addConst(b, dst, headOff)
		b.LocalGet(dstBase)
		b.Call(packs[i])
		headOff += heads[i]
	}
	return fn.Finish(), nil
}

// packWord32 copies the 32 bytes behind a BytesN, ID or UID value
func (c *Codec) packWord32(name string, s types.Struct, def *types.StructDef) (codegen.FuncID, error) {
	fn, err := c.newFunction(name, packParams(s), nil)
	if err != nil {
		return 0, err
	}
	v, w := fn.Param(0), fn.Param(1)
	src := fn.NewLocal(wasm.ValI32)
	b := fn.Body()
	b.LocalGet(v)
	switch def.VM {
	case types.VMUID:
		b.I32Load(codegen.Align1, 0).I32Load(codegen.Align1, 0)
	case types.VMID:
		b.I32Load(codegen.Align1, 0)
	}
	b.LocalSet(src)

	n := abi.WordSize
	if def.VM == types.VMBytes {
		if n, err = safecast.Conv[uint32](def.BytesLen); err != nil {
			return 0, errors.Internal(errors.PhasePack, "%s: %v", def.Name, err)
		}
	}
	builtins.CopyBytes(b, w, 0, src, 0, n)
	builtins.ZeroPad(b, w, n, abi.WordSize-n)
	return fn.Finish(), nil
}

// packString writes [len][bytes padded to a word] into a new tail. The
// String record holds a vector<u8> whose elements take four bytes each.
func (c *Codec) packString(name string, s types.Struct) (codegen.FuncID, error) {
	fn, err := c.newFunction(name, packParams(s), nil)
	if err != nil {
		return 0, err
	}
	str, w, base := fn.Param(0), fn.Param(1), fn.Param(2)
	vec := fn.NewLocal(wasm.ValI32)
	n := fn.NewLocal(wasm.ValI32)
	padded := fn.NewLocal(wasm.ValI32)
	tail := fn.NewLocal(wasm.ValI32)
	off := fn.NewLocal(wasm.ValI32)
	i := fn.NewLocal(wasm.ValI32)

	b := fn.Body()
	b.LocalGet(str).I32Load(codegen.Align1, 0).LocalTee(vec).I32Load(codegen.Align1, 0).LocalSet(n)
	b.LocalGet(n).I32Const(31).I32Add().I32Const(-32).I32And().LocalSet(padded)
	b.U32Const(abi.WordSize).LocalGet(padded).I32Add().Call(c.ctx.Allocate()).LocalSet(tail)
	b.LocalGet(tail).LocalGet(base).I32Sub().LocalSet(off)
	if err := c.ctx.StoreWordI32(b, w, 0, off); err != nil {
		return 0, err
	}
	if err := c.ctx.StoreWordI32(b, tail, 0, n); err != nil {
		return 0, err
	}

	b.Block(codegen.BlockVoid).Loop(codegen.BlockVoid)
	b.LocalGet(i).LocalGet(n).I32GeU().BrIf(1)
	b.LocalGet(tail).LocalGet(i).I32Add()
	b.LocalGet(vec).LocalGet(i).I32Const(4).I32Mul().I32Add().I32Load8U(codegen.Align1, types.VectorHeaderSize)
	b.I32Store8(codegen.Align1, abi.WordSize)
	b.LocalGet(i).I32Const(1).I32Add().LocalSet(i)
	b.Br(0)
	b.End().End()

	// zero the padding after the last byte
	b.LocalGet(tail).LocalGet(n).I32Add().U32Const(abi.WordSize).I32Add().
		I32Const(0).
		LocalGet(padded).LocalGet(n).I32Sub().
		MemoryFill()
	return fn.Finish(), nil
}
