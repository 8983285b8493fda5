package codegen

import (
	"github.com/wippyai/movewasm/wasm"
)

// Block types accepted by Block, Loop and If.
const (
	BlockVoid = wasm.BlockTypeVoid
	BlockI32  = wasm.BlockTypeI32
	BlockI64  = wasm.BlockTypeI64
)

// Natural alignments (log2 of the access width) for memory instructions.
const (
	Align1 uint32 = 0
	Align2 uint32 = 1
	Align4 uint32 = 2
	Align8 uint32 = 3
)

// Emitter accumulates a function body as instructions. Call targets are logical
// FuncIDs and are resolved to module indices when the owning Module is built.
type Emitter struct {
	instrs []wasm.Instruction
}

// NewEmitter returns an empty emitter
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Len returns the number of instructions emitted so far
func (e *Emitter) Len() int {
	return len(e.instrs)
}

// Instrs returns the emitted instructions
func (e *Emitter) Instrs() []wasm.Instruction {
	return e.instrs
}

// Bytes encodes the emitted instructions without resolving call targets
func (e *Emitter) Bytes() []byte {
	return wasm.EncodeInstructions(e.instrs)
}

// Reset drops all emitted instructions
func (e *Emitter) Reset() {
	e.instrs = e.instrs[:0]
}

// Copy returns an independent copy of the emitted instructions
func (e *Emitter) Copy() []wasm.Instruction {
	out := make([]wasm.Instruction, len(e.instrs))
	copy(out, e.instrs)
	return out
}

// EmitInstr appends a prebuilt instruction
func (e *Emitter) EmitInstr(instr wasm.Instruction) *Emitter {
	e.instrs = append(e.instrs, instr)
	return e
}

// EmitInstrs appends prebuilt instructions
func (e *Emitter) EmitInstrs(instrs []wasm.Instruction) *Emitter {
	e.instrs = append(e.instrs, instrs...)
	return e
}

func (e *Emitter) op(opcode byte) *Emitter {
	e.instrs = append(e.instrs, wasm.Instruction{Opcode: opcode})
	return e
}

func (e *Emitter) mem(opcode byte, align, offset uint32) *Emitter {
	e.instrs = append(e.instrs, wasm.Instruction{
		Opcode: opcode,
		Imm:    wasm.MemoryImm{Align: align, Offset: offset},
	})
	return e
}

// Control flow

func (e *Emitter) Block(bt int32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: bt}})
}

func (e *Emitter) Loop(bt int32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{Type: bt}})
}

func (e *Emitter) If(bt int32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: bt}})
}

func (e *Emitter) Else() *Emitter        { return e.op(wasm.OpElse) }
func (e *Emitter) End() *Emitter         { return e.op(wasm.OpEnd) }
func (e *Emitter) Nop() *Emitter         { return e.op(wasm.OpNop) }
func (e *Emitter) Unreachable() *Emitter { return e.op(wasm.OpUnreachable) }
func (e *Emitter) Return() *Emitter      { return e.op(wasm.OpReturn) }
func (e *Emitter) Drop() *Emitter        { return e.op(wasm.OpDrop) }
func (e *Emitter) Select() *Emitter      { return e.op(wasm.OpSelect) }

func (e *Emitter) Br(label uint32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: label}})
}

func (e *Emitter) BrIf(label uint32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: label}})
}

func (e *Emitter) BrTable(labels []uint32, def uint32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpBrTable, Imm: wasm.BrTableImm{Labels: labels, Default: def}})
}

// Call emits a call to a logical function id
func (e *Emitter) Call(fn FuncID) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: uint32(fn)}})
}

// TrapIf traps when the i32 on top of the stack is non-zero
func (e *Emitter) TrapIf() *Emitter {
	return e.If(BlockVoid).Unreachable().End()
}

// Variables

func (e *Emitter) LocalGet(l LocalID) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: uint32(l)}})
}

func (e *Emitter) LocalSet(l LocalID) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: uint32(l)}})
}

func (e *Emitter) LocalTee(l LocalID) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpLocalTee, Imm: wasm.LocalImm{LocalIdx: uint32(l)}})
}

func (e *Emitter) GlobalGet(g GlobalID) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpGlobalGet, Imm: wasm.GlobalImm{GlobalIdx: uint32(g)}})
}

func (e *Emitter) GlobalSet(g GlobalID) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpGlobalSet, Imm: wasm.GlobalImm{GlobalIdx: uint32(g)}})
}

// Constants

func (e *Emitter) I32Const(v int32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}})
}

func (e *Emitter) I64Const(v int64) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: v}})
}

// U32Const emits an i32.const carrying the bit pattern of v
func (e *Emitter) U32Const(v uint32) *Emitter {
	return e.I32Const(int32(v))
}

// Memory

func (e *Emitter) I32Load(align, offset uint32) *Emitter    { return e.mem(wasm.OpI32Load, align, offset) }
func (e *Emitter) I64Load(align, offset uint32) *Emitter    { return e.mem(wasm.OpI64Load, align, offset) }
func (e *Emitter) I32Load8U(align, offset uint32) *Emitter  { return e.mem(wasm.OpI32Load8U, align, offset) }
func (e *Emitter) I32Load16U(align, offset uint32) *Emitter { return e.mem(wasm.OpI32Load16U, align, offset) }
func (e *Emitter) I64Load8U(align, offset uint32) *Emitter  { return e.mem(wasm.OpI64Load8U, align, offset) }
func (e *Emitter) I64Load32U(align, offset uint32) *Emitter { return e.mem(wasm.OpI64Load32U, align, offset) }
func (e *Emitter) I32Store(align, offset uint32) *Emitter   { return e.mem(wasm.OpI32Store, align, offset) }
func (e *Emitter) I64Store(align, offset uint32) *Emitter   { return e.mem(wasm.OpI64Store, align, offset) }
func (e *Emitter) I32Store8(align, offset uint32) *Emitter  { return e.mem(wasm.OpI32Store8, align, offset) }
func (e *Emitter) I32Store16(align, offset uint32) *Emitter { return e.mem(wasm.OpI32Store16, align, offset) }
func (e *Emitter) I64Store8(align, offset uint32) *Emitter  { return e.mem(wasm.OpI64Store8, align, offset) }

func (e *Emitter) MemorySize() *Emitter { return e.op(wasm.OpMemorySize) }
func (e *Emitter) MemoryGrow() *Emitter { return e.op(wasm.OpMemoryGrow) }

// MemoryCopy consumes (dst, src, len)
func (e *Emitter) MemoryCopy() *Emitter {
	return e.EmitInstr(wasm.Instruction{
		Opcode: wasm.OpPrefixMisc,
		Imm:    wasm.MiscImm{SubOpcode: wasm.MiscMemoryCopy, Operands: []uint32{0, 0}},
	})
}

// MemoryFill consumes (dst, value, len)
func (e *Emitter) MemoryFill() *Emitter {
	return e.EmitInstr(wasm.Instruction{
		Opcode: wasm.OpPrefixMisc,
		Imm:    wasm.MiscImm{SubOpcode: wasm.MiscMemoryFill, Operands: []uint32{0}},
	})
}

// i32 arithmetic and comparison

func (e *Emitter) I32Add() *Emitter  { return e.op(wasm.OpI32Add) }
func (e *Emitter) I32Sub() *Emitter  { return e.op(wasm.OpI32Sub) }
func (e *Emitter) I32Mul() *Emitter  { return e.op(wasm.OpI32Mul) }
func (e *Emitter) I32DivU() *Emitter { return e.op(wasm.OpI32DivU) }
func (e *Emitter) I32And() *Emitter  { return e.op(wasm.OpI32And) }
func (e *Emitter) I32Or() *Emitter   { return e.op(wasm.OpI32Or) }
func (e *Emitter) I32Xor() *Emitter  { return e.op(wasm.OpI32Xor) }
func (e *Emitter) I32Shl() *Emitter  { return e.op(wasm.OpI32Shl) }
func (e *Emitter) I32ShrU() *Emitter { return e.op(wasm.OpI32ShrU) }
func (e *Emitter) I32Rotl() *Emitter { return e.op(wasm.OpI32Rotl) }
func (e *Emitter) I32Rotr() *Emitter { return e.op(wasm.OpI32Rotr) }
func (e *Emitter) I32Eqz() *Emitter  { return e.op(wasm.OpI32Eqz) }
func (e *Emitter) I32Eq() *Emitter   { return e.op(wasm.OpI32Eq) }
func (e *Emitter) I32Ne() *Emitter   { return e.op(wasm.OpI32Ne) }
func (e *Emitter) I32LtU() *Emitter  { return e.op(wasm.OpI32LtU) }
func (e *Emitter) I32GtU() *Emitter  { return e.op(wasm.OpI32GtU) }
func (e *Emitter) I32LeU() *Emitter  { return e.op(wasm.OpI32LeU) }
func (e *Emitter) I32GeU() *Emitter  { return e.op(wasm.OpI32GeU) }

// i64 arithmetic and comparison

func (e *Emitter) I64Add() *Emitter  { return e.op(wasm.OpI64Add) }
func (e *Emitter) I64Sub() *Emitter  { return e.op(wasm.OpI64Sub) }
func (e *Emitter) I64And() *Emitter  { return e.op(wasm.OpI64And) }
func (e *Emitter) I64Or() *Emitter   { return e.op(wasm.OpI64Or) }
func (e *Emitter) I64Shl() *Emitter  { return e.op(wasm.OpI64Shl) }
func (e *Emitter) I64ShrU() *Emitter { return e.op(wasm.OpI64ShrU) }
func (e *Emitter) I64Rotl() *Emitter { return e.op(wasm.OpI64Rotl) }
func (e *Emitter) I64Eqz() *Emitter  { return e.op(wasm.OpI64Eqz) }
func (e *Emitter) I64Eq() *Emitter   { return e.op(wasm.OpI64Eq) }
func (e *Emitter) I64Ne() *Emitter   { return e.op(wasm.OpI64Ne) }
func (e *Emitter) I64LtU() *Emitter  { return e.op(wasm.OpI64LtU) }
func (e *Emitter) I64GtU() *Emitter  { return e.op(wasm.OpI64GtU) }

// Conversions

func (e *Emitter) I32WrapI64() *Emitter    { return e.op(wasm.OpI32WrapI64) }
func (e *Emitter) I64ExtendI32U() *Emitter { return e.op(wasm.OpI64ExtendI32U) }
