package wasm

import (
	"github.com/wippyai/movewasm/wasm/internal/binary"
)

// Instruction is one instruction of a function body. Imm holds one of the
// *Imm types below, or nil for instructions without immediates.
type Instruction struct {
	Imm    any
	Opcode byte
}

// BlockImm holds the block type for block, loop and if instructions.
type BlockImm struct {
	Type int32 // Block type: -64=void, -1=i32, -2=i64
}

// BranchImm holds the label index for br and br_if instructions.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table instruction.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call instruction.
type CallImm struct {
	FuncIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// MemoryImm holds memory access parameters for load and store instructions.
type MemoryImm struct {
	Offset uint32
	Align  uint32
}

// I32Imm holds the constant value for i32.const instruction.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant value for i64.const instruction.
type I64Imm struct {
	Value int64
}

// MiscImm holds the sub-opcode and immediates for 0xFC prefix instructions
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// GetCallTarget returns the call target if this is a call instruction
func (i Instruction) GetCallTarget() (uint32, bool) {
	if i.Opcode == OpCall {
		if imm, ok := i.Imm.(CallImm); ok {
			return imm.FuncIdx, true
		}
	}
	return 0, false
}

func (i *Instruction) encode(w *binary.Writer) {
	w.Byte(i.Opcode)

	switch imm := i.Imm.(type) {
	case BlockImm:
		w.S32(imm.Type)
	case BranchImm:
		w.U32(imm.LabelIdx)
	case BrTableImm:
		w.Len(len(imm.Labels))
		for _, l := range imm.Labels {
			w.U32(l)
		}
		w.U32(imm.Default)
	case CallImm:
		w.U32(imm.FuncIdx)
	case LocalImm:
		w.U32(imm.LocalIdx)
	case GlobalImm:
		w.U32(imm.GlobalIdx)
	case MemoryImm:
		w.U32(imm.Align)
		w.U32(imm.Offset)
	case I32Imm:
		w.S32(imm.Value)
	case I64Imm:
		w.S64(imm.Value)
	case MiscImm:
		w.U32(imm.SubOpcode)
		for _, op := range imm.Operands {
			w.U32(op) // memory indices
		}
	case nil:
		if i.Opcode == OpMemorySize || i.Opcode == OpMemoryGrow {
			w.Byte(0)
		}
	}
}

// AppendInstruction appends the encoding of instr to dst
func AppendInstruction(dst []byte, instr Instruction) []byte {
	w := binary.AppendTo(dst)
	instr.encode(w)
	return w.Bytes()
}

// EncodeInstructions encodes a function body's instruction stream
func EncodeInstructions(instrs []Instruction) []byte {
	var w binary.Writer
	for i := range instrs {
		instrs[i].encode(&w)
	}
	return w.Bytes()
}
