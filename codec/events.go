package codec

import (
	"encoding/binary"

	"fortio.org/safecast"

	"github.com/wippyai/movewasm/abi"
	"github.com/wippyai/movewasm/builtins"
	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/types"
)

// maxIndexed is the number of topics left after topic0
const maxIndexed = 3

func (c *Codec) checkKind(def *types.StructDef, want types.StructKind, what string) error {
	if def.Kind != want {
		return errors.New(errors.PhasePack, errors.KindInvalidInput).
			Type(def.Name).
			Detail("struct is not declared as %s", what).
			Build()
	}
	return nil
}

func (c *Codec) fieldList(def *types.StructDef) ([]types.Type, []uint32, error) {
	if def.TypeParams > 0 {
		return nil, nil, unsupported(errors.PhasePack, def.Name, "generic error and event definitions cannot be encoded")
	}
	fields, offsets, err := c.fieldTypes(def.Type())
	if err != nil {
		return nil, nil, err
	}
	ts := make([]types.Type, len(fields))
	for i, f := range fields {
		ts[i] = f.Type
	}
	return ts, offsets, nil
}

// Revert returns revert(record) -> ptr for an error struct. The result is
// [len u32][selector][packed fields], the payload a failing call returns.
func (c *Codec) Revert(def *types.StructDef) (codegen.FuncID, error) {
	if err := c.checkKind(def, types.StructError, "an error"); err != nil {
		return 0, err
	}
	ts, offsets, err := c.fieldList(def)
	if err != nil {
		return 0, err
	}
	sel, err := abi.ErrorSelector(c.reg, def)
	if err != nil {
		return 0, err
	}
	return c.ctx.Cache().GetOrCreate(KindRevert, []types.Type{def.Type()}, func(name string) (codegen.FuncID, error) {
		items, head, err := c.planTuple(ts, offsets)
		if err != nil {
			return 0, errors.WithPath(err, def.Name)
		}
		fn, err := c.newFunction(name, i32, i32)
		if err != nil {
			return 0, err
		}
		out := c.emitTuple(fn, fn.Param(0), items, head, abi.SelectorSize, func(b *codegen.Emitter, out codegen.LocalID) {
			b.LocalGet(out).U32Const(binary.LittleEndian.Uint32(sel[:])).I32Store(codegen.Align1, 4)
		})
		fn.Body().LocalGet(out)
		return fn.Finish(), nil
	})
}

// Raise returns raise(record) -> status. It hands the revert payload of the
// error to write_result and returns 1, the status of a failed call.
func (c *Codec) Raise(def *types.StructDef) (codegen.FuncID, error) {
	revert, err := c.Revert(def)
	if err != nil {
		return 0, err
	}
	write := c.ctx.Host(builtins.WriteResult)
	return c.ctx.Cache().GetOrCreate(KindRaise, []types.Type{def.Type()}, func(name string) (codegen.FuncID, error) {
		fn, err := c.newFunction(name, i32, i32)
		if err != nil {
			return 0, err
		}
		out := fn.NewLocal(i32[0])
		b := fn.Body()
		b.LocalGet(fn.Param(0)).Call(revert).LocalSet(out)
		writeBuffer(b, out, write)
		b.I32Const(1)
		return fn.Finish(), nil
	})
}

// writeBuffer passes the [len][bytes] buffer in out to write_result
func writeBuffer(b *codegen.Emitter, out codegen.LocalID, write codegen.FuncID) {
	addConst(b, out, 4)
	b.LocalGet(out).I32Load(codegen.Align1, 0)
	b.Call(write)
}

// Emit returns emit(record) for an event struct. topic0 is the hash of the
// event signature; the leading Indexed fields become the next topics and
// must each fit in one static word. The remaining fields are packed as the
// log data.
func (c *Codec) Emit(def *types.StructDef) (codegen.FuncID, error) {
	if err := c.checkKind(def, types.StructEvent, "an event"); err != nil {
		return 0, err
	}
	ts, offsets, err := c.fieldList(def)
	if err != nil {
		return 0, err
	}
	if def.Indexed < 0 || def.Indexed > maxIndexed || def.Indexed > len(ts) {
		return 0, errors.OutOfBounds(errors.PhasePack, []string{def.Name}, def.Indexed, min(len(ts), maxIndexed))
	}
	for i := range def.Indexed {
		dynamic, err := abi.IsDynamic(c.reg, ts[i])
		if err != nil {
			return 0, errors.WithPath(err, def.Name)
		}
		head, err := abi.HeadSize(c.reg, ts[i])
		if err != nil {
			return 0, err
		}
		if dynamic || head != abi.WordSize {
			return 0, unsupported(errors.PhasePack, def.Name, "indexed fields must be single-word static values")
		}
	}
	topic, err := abi.EventTopic(c.reg, def)
	if err != nil {
		return 0, err
	}
	indexed, err := safecast.Conv[uint32](def.Indexed)
	if err != nil {
		return 0, errors.Internal(errors.PhasePack, "%s: %v", def.Name, err)
	}
	emitLog := c.ctx.Host(builtins.EmitLog)

	return c.ctx.Cache().GetOrCreate(KindEmit, []types.Type{def.Type()}, func(name string) (codegen.FuncID, error) {
		topics, _, err := c.planTuple(ts[:def.Indexed], offsets[:def.Indexed])
		if err != nil {
			return 0, errors.WithPath(err, def.Name)
		}
		data, head, err := c.planTuple(ts[def.Indexed:], offsets[def.Indexed:])
		if err != nil {
			return 0, errors.WithPath(err, def.Name)
		}
		fn, err := c.newFunction(name, i32, nil)
		if err != nil {
			return 0, err
		}
		rec := fn.Param(0)
		prefix := abi.WordSize * (1 + indexed)

		out := c.emitTuple(fn, rec, data, head, prefix, func(b *codegen.Emitter, out codegen.LocalID) {
			for j := uint32(0); j < 4; j++ {
				word := int64(binary.LittleEndian.Uint64(topic[8*j:]))
				b.LocalGet(out).I64Const(word).I64Store(codegen.Align1, 4+8*j)
			}
			for i, item := range topics {
				at := 4 + abi.WordSize*uint32(i+1)
				b.LocalGet(rec)
				builtins.Load(b, item.typ, item.off)
				addConst(b, out, at)
				addConst(b, out, at)
				b.Call(item.pack)
			}
		})
		b := fn.Body()
		addConst(b, out, 4)
		b.LocalGet(out).I32Load(codegen.Align1, 0)
		b.U32Const(1 + indexed)
		b.Call(emitLog)
		return fn.Finish(), nil
	})
}
