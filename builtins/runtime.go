package builtins

import (
	"strconv"

	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/wasm"
)

var (
	i32  = []wasm.ValType{wasm.ValI32}
	i64  = []wasm.ValType{wasm.ValI64}
	i32s = []wasm.ValType{wasm.ValI32, wasm.ValI32}
)

// allocate(size) -> ptr. Bump allocation from the heap top; memory grows
// on demand and a failed grow or an address overflow traps.
func (c *Context) emitAllocate() (codegen.FuncID, error) {
	fn, err := c.module.NewFunction("allocate", i32, i32)
	if err != nil {
		return 0, err
	}
	size := fn.Param(0)
	ptr := fn.NewLocal(wasm.ValI32)
	end := fn.NewLocal(wasm.ValI32)
	have := fn.NewLocal(wasm.ValI32)

	b := fn.Body()
	b.GlobalGet(c.heapTop).LocalTee(ptr).
		LocalGet(size).I32Add().LocalTee(end).
		LocalGet(ptr).I32LtU().TrapIf()

	b.LocalGet(end).
		MemorySize().I32Const(16).I32Shl().LocalTee(have).
		I32GtU().
		If(codegen.BlockVoid)
	b.LocalGet(end).LocalGet(have).I32Sub().
		I32Const(PageSize - 1).I32Add().
		I32Const(16).I32ShrU().
		MemoryGrow().I32Const(-1).I32Eq().TrapIf()
	b.End()

	b.LocalGet(end).GlobalSet(c.heapTop)
	b.LocalGet(ptr)
	return fn.Finish(), nil
}

// SwapI32 returns swap_i32(x) -> x with its four bytes reversed
func (c *Context) SwapI32() (codegen.FuncID, error) {
	return c.cache.GetOrCreate("swap_i32", nil, func(name string) (codegen.FuncID, error) {
		fn, err := c.module.NewFunction(name, i32, i32)
		if err != nil {
			return 0, err
		}
		x := fn.Param(0)
		fn.Body().
			LocalGet(x).I32Const(8).I32Rotl().I32Const(0x00ff00ff).I32And().
			LocalGet(x).I32Const(8).I32Rotr().U32Const(0xff00ff00).I32And().
			I32Or()
		return fn.Finish(), nil
	})
}

// SwapI64 returns swap_i64(x) -> x with its eight bytes reversed
func (c *Context) SwapI64() (codegen.FuncID, error) {
	swap32, err := c.SwapI32()
	if err != nil {
		return 0, err
	}
	return c.cache.GetOrCreate("swap_i64", nil, func(name string) (codegen.FuncID, error) {
		fn, err := c.module.NewFunction(name, i64, i64)
		if err != nil {
			return 0, err
		}
		x := fn.Param(0)
		fn.Body().
			LocalGet(x).I32WrapI64().Call(swap32).I64ExtendI32U().I64Const(32).I64Shl().
			LocalGet(x).I64Const(32).I64ShrU().I32WrapI64().Call(swap32).I64ExtendI32U().
			I64Or()
		return fn.Finish(), nil
	})
}

// SwapBytes returns swap_bytes_<n>(src, dst), which writes the n bytes at src
// to dst in reverse order. All words are loaded before any is stored, so src
// and dst may be the same buffer. n must be 16 or 32.
func (c *Context) SwapBytes(n uint32) (codegen.FuncID, error) {
	if n != 16 && n != 32 {
		return 0, errors.Internal(errors.PhaseCodegen, "swap_bytes of %d bytes", n)
	}
	swap64, err := c.SwapI64()
	if err != nil {
		return 0, err
	}
	return c.cache.GetOrCreate("swap_bytes_"+strconv.Itoa(int(n)), nil, func(name string) (codegen.FuncID, error) {
		fn, err := c.module.NewFunction(name, i32s, nil)
		if err != nil {
			return 0, err
		}
		src, dst := fn.Param(0), fn.Param(1)
		words := n / 8
		locals := make([]codegen.LocalID, words)
		b := fn.Body()
		for i := range locals {
			locals[i] = fn.NewLocal(wasm.ValI64)
			b.LocalGet(src).I64Load(codegen.Align1, uint32(i)*8).LocalSet(locals[i])
		}
		for i, w := range locals {
			b.LocalGet(dst).
				LocalGet(w).Call(swap64).
				I64Store(codegen.Align1, (words-1-uint32(i))*8)
		}
		return fn.Finish(), nil
	})
}

// AssertZero returns assert_zero(ptr, len), which traps unless the len bytes
// at ptr are all zero
func (c *Context) AssertZero() (codegen.FuncID, error) {
	return c.cache.GetOrCreate("assert_zero", nil, func(name string) (codegen.FuncID, error) {
		fn, err := c.module.NewFunction(name, i32s, nil)
		if err != nil {
			return 0, err
		}
		ptr, n := fn.Param(0), fn.Param(1)
		b := fn.Body()
		b.Block(codegen.BlockVoid).Loop(codegen.BlockVoid)
		b.LocalGet(n).I32Eqz().BrIf(1)
		b.LocalGet(ptr).I32Load8U(codegen.Align1, 0).TrapIf()
		b.LocalGet(ptr).I32Const(1).I32Add().LocalSet(ptr)
		b.LocalGet(n).I32Const(1).I32Sub().LocalSet(n)
		b.Br(0)
		b.End().End()
		return fn.Finish(), nil
	})
}

// ZeroPad emits memory.fill(dst+offset, 0, n) with dst in a local
func ZeroPad(e *codegen.Emitter, dst codegen.LocalID, offset, n uint32) {
	if n == 0 {
		return
	}
	e.LocalGet(dst)
	if offset != 0 {
		e.U32Const(offset).I32Add()
	}
	e.I32Const(0).U32Const(n).MemoryFill()
}
