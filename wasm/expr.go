package wasm

import (
	"github.com/wippyai/movewasm/wasm/internal/binary"
)

// ConstI32Expr returns the constant expression `i32.const v; end`
func ConstI32Expr(v int32) []byte {
	var w binary.Writer
	w.Byte(OpI32Const)
	w.S32(v)
	w.Byte(OpEnd)
	return w.Bytes()
}

// ConstI64Expr returns the constant expression `i64.const v; end`
func ConstI64Expr(v int64) []byte {
	var w binary.Writer
	w.Byte(OpI64Const)
	w.S64(v)
	w.Byte(OpEnd)
	return w.Bytes()
}
