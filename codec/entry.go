package codec

import (
	"encoding/binary"

	"github.com/wippyai/movewasm/abi"
	"github.com/wippyai/movewasm/builtins"
	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/types"
	"github.com/wippyai/movewasm/wasm"
)

// Body emits the work of an entry function. args holds the record of
// decoded parameters. When the function has results, Body must leave a
// pointer to the result record on the stack.
type Body func(fn *codegen.Function, args codegen.LocalID) error

// Entry emits an exported function named after name's external form with
// the signature (len) -> status. It reads len bytes of call data, checks
// the selector, decodes the parameters, runs body and writes the encoded
// results back to the host.
func (c *Codec) Entry(name string, params, results []types.Type, body Body) (codegen.FuncID, error) {
	external := abi.FunctionName(name)
	sel, err := abi.FunctionSelector(c.reg, name, params)
	if err != nil {
		return 0, err
	}
	unpack, err := c.UnpackValues(params)
	if err != nil {
		return 0, errors.WithPath(err, name)
	}
	pack, err := c.PackValues(results)
	if err != nil {
		return 0, errors.WithPath(err, name)
	}
	if c.ctx.Module().Exported(external) {
		return 0, errors.New(errors.PhaseCodegen, errors.KindDuplicate).
			Detail("entry %q is already exported", external).
			Build()
	}

	fn, err := c.newFunction("entry_"+external, i32, i32)
	if err != nil {
		return 0, err
	}
	n := fn.Param(0)
	buf := fn.NewLocal(wasm.ValI32)
	args := fn.NewLocal(wasm.ValI32)
	out := fn.NewLocal(wasm.ValI32)

	b := fn.Body()
	b.LocalGet(n).Call(c.ctx.Allocate()).LocalSet(buf)
	b.LocalGet(buf).Call(c.ctx.Host(builtins.ReadArgs))
	b.LocalGet(n).U32Const(abi.SelectorSize).I32LtU().TrapIf()
	b.LocalGet(buf).I32Load(codegen.Align1, 0).
		U32Const(binary.LittleEndian.Uint32(sel[:])).
		I32Ne().TrapIf()

	b.LocalGet(buf).LocalGet(n).I32Add().GlobalSet(c.ctx.End())
	addConst(b, buf, abi.SelectorSize)
	b.Call(unpack).LocalSet(args)
	// the heads must lie within the call data
	b.GlobalGet(c.ctx.Reader()).
		LocalGet(buf).LocalGet(n).I32Add().
		I32GtU().TrapIf()

	if err := body(fn, args); err != nil {
		return 0, errors.WithPath(err, name)
	}
	if len(results) == 0 {
		b.I32Const(0)
	}
	b.Call(pack).LocalSet(out)
	writeBuffer(b, out, c.ctx.Host(builtins.WriteResult))
	b.I32Const(0)

	id := fn.Finish()
	c.ctx.Module().ExportFunc(external, id)
	return id, nil
}
