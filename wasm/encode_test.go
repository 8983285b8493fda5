package wasm

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
)

func addModule() *Module {
	m := &Module{}
	typeIdx := m.AddType(FuncType{Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}})
	m.Funcs = append(m.Funcs, typeIdx)
	m.Code = append(m.Code, FuncBody{
		Code: EncodeInstructions([]Instruction{
			{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 0}},
			{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 1}},
			{Opcode: OpI32Add},
			{Opcode: OpEnd},
		}),
	})
	m.Memories = append(m.Memories, MemoryType{Limits: Limits{Min: 1}})
	m.Globals = append(m.Globals, Global{
		Type: GlobalType{ValType: ValI32, Mutable: true},
		Init: ConstI32Expr(256),
	})
	m.Data = append(m.Data, DataSegment{Offset: ConstI32Expr(32), Init: []byte{1}})
	m.Exports = append(m.Exports,
		Export{Name: "add", Kind: KindFunc, Idx: 0},
		Export{Name: "memory", Kind: KindMemory, Idx: 0},
	)
	m.Names = &NameMap{Module: "test", Functions: map[uint32]string{0: "add"}}
	return m
}

func TestModule_Encode_Header(t *testing.T) {
	bin, err := (&Module{}).Encode()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(bin, want) {
		t.Errorf("empty module = %x, want %x", bin, want)
	}
}

func TestModule_AddType_Dedup(t *testing.T) {
	m := &Module{}
	a := m.AddType(FuncType{Params: []ValType{ValI32}})
	b := m.AddType(FuncType{Params: []ValType{ValI64}})
	c := m.AddType(FuncType{Params: []ValType{ValI32}})
	if a != c || a == b {
		t.Errorf("AddType indices = %d %d %d", a, b, c)
	}
	if len(m.Types) != 2 {
		t.Errorf("len(Types) = %d, want 2", len(m.Types))
	}
}

func TestModule_Encode_RunsInWazero(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	bin, err := addModule().Encode()
	if err != nil {
		t.Fatal(err)
	}
	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := compiled.Name(); got != "test" {
		t.Errorf("module name = %q, want test", got)
	}

	inst, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	res, err := inst.ExportedFunction("add").Call(ctx, 40, 2)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res[0] != 42 {
		t.Errorf("add(40, 2) = %d, want 42", res[0])
	}

	b, ok := inst.Memory().ReadByte(32)
	if !ok || b != 1 {
		t.Errorf("data segment byte = %d, %v", b, ok)
	}
}

func TestModule_GetFuncType(t *testing.T) {
	m := addModule()
	m.Imports = append(m.Imports, Import{Module: "env", Name: "f", TypeIdx: 0})
	if ft := m.GetFuncType(1); ft == nil || len(ft.Params) != 2 {
		t.Errorf("GetFuncType(1) = %v", ft)
	}
	if ft := m.GetFuncType(5); ft != nil {
		t.Errorf("GetFuncType(5) = %v, want nil", ft)
	}
}
