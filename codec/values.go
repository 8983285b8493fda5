package codec

import (
	"strconv"

	"github.com/wippyai/movewasm/abi"
	"github.com/wippyai/movewasm/builtins"
	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/types"
	"github.com/wippyai/movewasm/wasm"
)

// tupleItem is one value of a packed tuple, read from a record slot
type tupleItem struct {
	typ  types.Type // value type, references already stripped
	ref  bool       // the slot holds a reference cell
	off  uint32     // record offset
	head uint32
	pack codegen.FuncID
}

// planTuple resolves the packers of values stored at offsets in a record.
// References are packed as their pointee.
func (c *Codec) planTuple(ts []types.Type, offsets []uint32) ([]tupleItem, uint32, error) {
	items := make([]tupleItem, len(ts))
	var total uint32
	for i, t := range ts {
		item := tupleItem{typ: t, off: offsets[i]}
		if r, ok := t.(types.Ref); ok {
			if _, nested := r.Elem.(types.Ref); nested {
				return nil, 0, errors.RefInsideRef(errors.PhasePack, nil, r.String())
			}
			item.typ, item.ref = r.Elem, true
		}
		var err error
		if item.pack, err = c.Pack(item.typ); err != nil {
			return nil, 0, err
		}
		if item.head, err = abi.HeadSize(c.reg, item.typ); err != nil {
			return nil, 0, err
		}
		total += item.head
		items[i] = item
	}
	return items, total, nil
}

// emitTuple packs items from the record in rec into a new buffer
// [len u32][prefix][heads][tails] and returns the local holding it. The
// prefix is written by writePrefix at out+4; len covers prefix and data.
func (c *Codec) emitTuple(fn *codegen.Function, rec codegen.LocalID, items []tupleItem, head, prefix uint32, writePrefix func(b *codegen.Emitter, out codegen.LocalID)) codegen.LocalID {
	b := fn.Body()
	out := c.ctx.Alloc(fn, 4+prefix+head)
	if writePrefix != nil {
		writePrefix(b, out)
	}
	base := fn.NewLocal(wasm.ValI32)
	addConst(b, out, 4+prefix)
	b.LocalSet(base)

	var headOff uint32
	for _, item := range items {
		b.LocalGet(rec)
		if item.ref {
			b.I32Load(codegen.Align1, item.off)
			builtins.Load(b, item.typ, 0)
		} else {
			builtins.Load(b, item.typ, item.off)
		}
		addConst(b, base, headOff)
		b.LocalGet(base)
		b.Call(item.pack)
		headOff += item.head
	}

	b.LocalGet(out).
		GlobalGet(c.ctx.HeapTop()).LocalGet(out).I32Sub().I32Const(4).I32Sub().
		I32Store(codegen.Align1, 0)
	return out
}

// PackValues returns pack_values(record) -> ptr. The record holds one stack
// value per type, laid out by stack size; the result is [len u32][tuple].
// Reference types are packed as the value they point to.
func (c *Codec) PackValues(ts []types.Type) (codegen.FuncID, error) {
	offsets, _, err := recordLayout(ts)
	if err != nil {
		return 0, err
	}
	return c.ctx.Cache().GetOrCreate(KindPackValues, ts, func(name string) (codegen.FuncID, error) {
		items, head, err := c.planTuple(ts, offsets)
		if err != nil {
			return 0, err
		}
		fn, err := c.newFunction(name, i32, i32)
		if err != nil {
			return 0, err
		}
		out := c.emitTuple(fn, fn.Param(0), items, head, 0, nil)
		fn.Body().LocalGet(out)
		return fn.Finish(), nil
	})
}

type paramKind uint8

const (
	paramValue paramKind = iota
	paramSigner
	paramContext
	paramObject
)

type paramItem struct {
	kind   paramKind
	typ    types.Type // value type, references already stripped
	ref    bool
	off    uint32
	head   uint32
	decode codegen.FuncID
}

func (c *Codec) planParams(ts []types.Type, offsets []uint32) ([]paramItem, error) {
	items := make([]paramItem, len(ts))
	for i, t := range ts {
		item := paramItem{typ: t, off: offsets[i]}
		if r, ok := t.(types.Ref); ok {
			if _, nested := r.Elem.(types.Ref); nested {
				return nil, errors.RefInsideRef(errors.PhaseUnpack, nil, r.String())
			}
			item.typ, item.ref = r.Elem, true
		}

		var err error
		switch {
		case isSigner(item.typ):
			item.kind = paramSigner
		case c.reg.VMTagOf(item.typ) == types.VMTxContext:
			item.kind = paramContext
		case c.isObject(item.typ):
			item.kind = paramObject
			item.head = abi.WordSize
			item.decode, err = c.store.Load(item.typ.(types.Struct))
		default:
			item.kind = paramValue
			if item.decode, err = c.Unpack(item.typ); err == nil {
				item.head, err = abi.HeadSize(c.reg, item.typ)
			}
		}
		if err != nil {
			return nil, errors.WithPath(err, "#"+strconv.Itoa(i))
		}
		items[i] = item
	}
	return items, nil
}

func isSigner(t types.Type) bool {
	_, ok := t.(types.Signer)
	return ok
}

func (c *Codec) isObject(t types.Type) bool {
	s, ok := t.(types.Struct)
	if !ok {
		return false
	}
	def, err := c.reg.Struct(s)
	return err == nil && def.IsObject()
}

// UnpackValues returns unpack_values(base) -> record for a function's
// parameter list. Call data is read left to right through the reader
// global starting at base. Signers are filled from the transaction origin,
// the transaction context is a null record, objects are read as a bytes32
// id and loaded from storage, and references are boxed in a fresh cell.
func (c *Codec) UnpackValues(ts []types.Type) (codegen.FuncID, error) {
	offsets, size, err := recordLayout(ts)
	if err != nil {
		return 0, err
	}
	return c.ctx.Cache().GetOrCreate(KindUnpackValues, ts, func(name string) (codegen.FuncID, error) {
		items, err := c.planParams(ts, offsets)
		if err != nil {
			return 0, err
		}
		fn, err := c.newFunction(name, i32, i32)
		if err != nil {
			return 0, err
		}
		base := fn.Param(0)
		reader := c.ctx.Reader()
		b := fn.Body()
		b.LocalGet(base).GlobalSet(reader)
		rec := c.ctx.Alloc(fn, size)

		for _, item := range items {
			v := fn.NewLocal(builtins.ValType(item.typ))
			switch item.kind {
			case paramSigner:
				s := c.ctx.Alloc(fn, types.AddressSize)
				builtins.ZeroPad(b, s, 0, 12)
				addConst(b, s, 12)
				b.Call(c.ctx.Host(builtins.TxOrigin))
				b.LocalGet(s).LocalSet(v)
			case paramContext:
				b.U32Const(builtins.ZeroWord).LocalSet(v)
			case paramObject, paramValue:
				b.GlobalGet(reader)
				if item.kind == paramValue {
					b.LocalGet(base)
				}
				b.Call(item.decode).LocalSet(v)
				b.GlobalGet(reader).U32Const(item.head).I32Add().GlobalSet(reader)
			}

			if item.ref {
				size, err := types.StackSize(item.typ)
				if err != nil {
					return 0, err
				}
				cell := c.ctx.Alloc(fn, size)
				builtins.Store(b.LocalGet(cell).LocalGet(v), item.typ, 0)
				b.LocalGet(rec).LocalGet(cell).I32Store(codegen.Align1, item.off)
				continue
			}
			builtins.Store(b.LocalGet(rec).LocalGet(v), item.typ, item.off)
		}
		b.LocalGet(rec)
		return fn.Finish(), nil
	})
}
