package codegen

import (
	"context"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	merrors "github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/wasm"
)

var (
	i32 = []wasm.ValType{wasm.ValI32}
	i64 = []wasm.ValType{wasm.ValI64}
)

func TestModule_LateImportsAreRemapped(t *testing.T) {
	m := NewModule("late")

	// double(x) = host_add(x, x), with the import declared after the caller exists
	caller, err := m.NewFunction("double", i32, i32)
	if err != nil {
		t.Fatal(err)
	}
	add := m.ImportFunc("env", "add", []wasm.ValType{wasm.ValI32, wasm.ValI32}, i32)
	caller.Body().LocalGet(caller.Param(0)).LocalGet(caller.Param(0)).Call(add)
	m.ExportFunc("double", caller.Finish())

	if again := m.ImportFunc("env", "add", nil, nil); again != add {
		t.Errorf("ImportFunc should be idempotent, got %d want %d", again, add)
	}

	bin, err := m.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	_, err = r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(uint32(stack[0]) + uint32(stack[1]))
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("add").
		Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}

	inst, err := r.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	res, err := inst.ExportedFunction("double").Call(ctx, 21)
	if err != nil {
		t.Fatal(err)
	}
	if res[0] != 42 {
		t.Errorf("double(21) = %d, want 42", res[0])
	}
}

func TestModule_LocalsAndGlobals(t *testing.T) {
	m := NewModule("locals")
	m.SetMemory(1, nil)
	m.ExportMemory("memory")
	g := m.AddGlobal(wasm.ValI32, true, 7)
	m.ExportGlobal("counter", g)

	fn, err := m.NewFunction("bump", i64, i64)
	if err != nil {
		t.Fatal(err)
	}
	a := fn.NewLocal(wasm.ValI64)
	b := fn.NewLocal(wasm.ValI32)
	fn.Body().
		LocalGet(fn.Param(0)).I64Const(1).I64Add().LocalSet(a).
		GlobalGet(g).I32Const(1).I32Add().LocalTee(b).GlobalSet(g).
		LocalGet(a)
	m.ExportFunc("bump", fn.Finish())

	bin, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	inst, err := r.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	res, err := inst.ExportedFunction("bump").Call(ctx, 41)
	if err != nil {
		t.Fatal(err)
	}
	if res[0] != 42 {
		t.Errorf("bump(41) = %d, want 42", res[0])
	}
	if got := inst.ExportedGlobal("counter").Get(); got != 8 {
		t.Errorf("counter = %d, want 8", got)
	}
}

func TestModule_DuplicateName(t *testing.T) {
	m := NewModule("dup")
	if _, err := m.NewFunction("f", nil, nil); err != nil {
		t.Fatal(err)
	}
	_, err := m.NewFunction("f", nil, nil)
	if !errors.Is(err, merrors.Sentinel(merrors.KindDuplicate)) {
		t.Errorf("err = %v, want duplicate", err)
	}
}

func TestModule_UnfinishedFunction(t *testing.T) {
	m := NewModule("open")
	if _, err := m.NewFunction("f", nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Build(); !errors.Is(err, merrors.Sentinel(merrors.KindInternal)) {
		t.Errorf("err = %v, want internal", err)
	}
}

func TestModule_FuncByName(t *testing.T) {
	m := NewModule("names")
	fn, _ := m.NewFunction("pack_u8", i32, nil)
	fn.Finish()

	id, ok := m.FuncByName("pack_u8")
	if !ok || id != fn.ID() {
		t.Errorf("FuncByName = %d, %v", id, ok)
	}
	if _, ok := m.FuncByName("missing"); ok {
		t.Error("missing function found")
	}
	if m.FuncName(id) != "pack_u8" {
		t.Errorf("FuncName = %q", m.FuncName(id))
	}
	if m.NumFunctions() != 1 {
		t.Errorf("NumFunctions = %d", m.NumFunctions())
	}

	out, err := m.Build()
	if err != nil {
		t.Fatal(err)
	}
	if out.Names.Functions[0] != "pack_u8" {
		t.Errorf("name section = %v", out.Names.Functions)
	}
}
