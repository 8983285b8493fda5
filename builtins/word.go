package builtins

import (
	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/wasm"
)

// StoreWordI32 writes val as a 32-byte big-endian word at dst+offset
func (c *Context) StoreWordI32(e *codegen.Emitter, dst codegen.LocalID, offset uint32, val codegen.LocalID) error {
	swap, err := c.SwapI32()
	if err != nil {
		return err
	}
	ZeroPad(e, dst, offset, 28)
	e.LocalGet(dst).LocalGet(val).Call(swap).I32Store(codegen.Align1, offset+28)
	return nil
}

// LoadWordI32 pushes the big-endian word at src+offset as an i32. The word
// must fit in width bytes (1, 2 or 4): any other high byte being non-zero traps.
func (c *Context) LoadWordI32(e *codegen.Emitter, src codegen.LocalID, offset, width uint32) error {
	swap, err := c.SwapI32()
	if err != nil {
		return err
	}
	zero, err := c.AssertZero()
	if err != nil {
		return err
	}
	e.LocalGet(src)
	if offset != 0 {
		e.U32Const(offset).I32Add()
	}
	e.U32Const(32 - width).Call(zero)
	e.LocalGet(src).I32Load(codegen.Align1, offset+28).Call(swap)
	return nil
}

// AssertZeroAt emits assert_zero(src+offset, n)
func (c *Context) AssertZeroAt(e *codegen.Emitter, src codegen.LocalID, offset, n uint32) error {
	if n == 0 {
		return nil
	}
	zero, err := c.AssertZero()
	if err != nil {
		return err
	}
	e.LocalGet(src)
	if offset != 0 {
		e.U32Const(offset).I32Add()
	}
	e.U32Const(n).Call(zero)
	return nil
}

// Alloc emits allocate(size) and stores the pointer in a fresh local
func (c *Context) Alloc(fn *codegen.Function, size uint32) codegen.LocalID {
	ptr := fn.NewLocal(wasm.ValI32)
	fn.Body().U32Const(size).Call(c.allocate).LocalSet(ptr)
	return ptr
}

// CopyBytes emits memory.copy(dst+dstOff, src+srcOff, n)
func CopyBytes(e *codegen.Emitter, dst codegen.LocalID, dstOff uint32, src codegen.LocalID, srcOff, n uint32) {
	e.LocalGet(dst)
	if dstOff != 0 {
		e.U32Const(dstOff).I32Add()
	}
	e.LocalGet(src)
	if srcOff != 0 {
		e.U32Const(srcOff).I32Add()
	}
	e.U32Const(n).MemoryCopy()
}
