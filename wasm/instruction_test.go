package wasm

import (
	"bytes"
	"testing"
)

func TestEncodeInstruction(t *testing.T) {
	tests := []struct {
		name  string
		instr Instruction
		want  []byte
	}{
		{"unreachable", Instruction{Opcode: OpUnreachable}, []byte{0x00}},
		{"block void", Instruction{Opcode: OpBlock, Imm: BlockImm{Type: BlockTypeVoid}}, []byte{0x02, 0x40}},
		{"if i32", Instruction{Opcode: OpIf, Imm: BlockImm{Type: BlockTypeI32}}, []byte{0x04, 0x7f}},
		{"br_if", Instruction{Opcode: OpBrIf, Imm: BranchImm{LabelIdx: 1}}, []byte{0x0d, 0x01}},
		{"br_table", Instruction{Opcode: OpBrTable, Imm: BrTableImm{Labels: []uint32{0, 1}, Default: 2}}, []byte{0x0e, 0x02, 0x00, 0x01, 0x02}},
		{"call", Instruction{Opcode: OpCall, Imm: CallImm{FuncIdx: 200}}, []byte{0x10, 0xc8, 0x01}},
		{"local.get", Instruction{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 3}}, []byte{0x20, 0x03}},
		{"global.set", Instruction{Opcode: OpGlobalSet, Imm: GlobalImm{GlobalIdx: 0}}, []byte{0x24, 0x00}},
		{"i32.load", Instruction{Opcode: OpI32Load, Imm: MemoryImm{Align: 2, Offset: 28}}, []byte{0x28, 0x02, 0x1c}},
		{"i64.store", Instruction{Opcode: OpI64Store, Imm: MemoryImm{Align: 3, Offset: 24}}, []byte{0x37, 0x03, 0x18}},
		{"memory.grow", Instruction{Opcode: OpMemoryGrow}, []byte{0x40, 0x00}},
		{"i32.const -1", Instruction{Opcode: OpI32Const, Imm: I32Imm{Value: -1}}, []byte{0x41, 0x7f}},
		{"i32.const 64", Instruction{Opcode: OpI32Const, Imm: I32Imm{Value: 64}}, []byte{0x41, 0xc0, 0x00}},
		{"i64.const 1", Instruction{Opcode: OpI64Const, Imm: I64Imm{Value: 1}}, []byte{0x42, 0x01}},
		{"memory.copy", Instruction{Opcode: OpPrefixMisc, Imm: MiscImm{SubOpcode: MiscMemoryCopy, Operands: []uint32{0, 0}}}, []byte{0xfc, 0x0a, 0x00, 0x00}},
		{"memory.fill", Instruction{Opcode: OpPrefixMisc, Imm: MiscImm{SubOpcode: MiscMemoryFill, Operands: []uint32{0}}}, []byte{0xfc, 0x0b, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AppendInstruction([]byte{0xaa}, tt.instr)
			if !bytes.Equal(got[1:], tt.want) || got[0] != 0xaa {
				t.Errorf("got %x, want aa%x", got, tt.want)
			}
		})
	}
}

func TestGetCallTarget(t *testing.T) {
	idx, ok := Instruction{Opcode: OpCall, Imm: CallImm{FuncIdx: 7}}.GetCallTarget()
	if !ok || idx != 7 {
		t.Errorf("GetCallTarget = %d, %v", idx, ok)
	}
	if _, ok := (Instruction{Opcode: OpNop}).GetCallTarget(); ok {
		t.Error("nop is not a call")
	}
}

func TestEncodeInstructions(t *testing.T) {
	got := EncodeInstructions([]Instruction{
		{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 0}},
		{Opcode: OpI32Const, Imm: I32Imm{Value: 8}},
		{Opcode: OpI32Add},
		{Opcode: OpEnd},
	})
	if want := []byte{0x20, 0x00, 0x41, 0x08, 0x6a, 0x0b}; !bytes.Equal(got, want) {
		t.Errorf("EncodeInstructions = %x, want %x", got, want)
	}
}

func TestConstExpr(t *testing.T) {
	if got := ConstI32Expr(1024); !bytes.Equal(got, []byte{0x41, 0x80, 0x08, 0x0b}) {
		t.Errorf("ConstI32Expr(1024) = %x", got)
	}
	if got := ConstI64Expr(-2); !bytes.Equal(got, []byte{0x42, 0x7e, 0x0b}) {
		t.Errorf("ConstI64Expr(-2) = %x", got)
	}
}
