package builtins

import (
	"bytes"
	"context"
	"testing"

	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/types"
	"github.com/wippyai/movewasm/vmhost"
	"github.com/wippyai/movewasm/wasm"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	r := types.NewRegistry()
	if err := types.RegisterFramework(r); err != nil {
		t.Fatal(err)
	}
	c, err := NewContext(codegen.NewModule("builtins"), r, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func run(t *testing.T, c *Context) (*vmhost.Instance, context.Context) {
	t.Helper()
	bin, err := c.Module().Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ctx := context.Background()
	h, err := vmhost.New(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close(ctx) })
	inst, err := h.Instantiate(ctx, bin)
	if err != nil {
		t.Fatal(err)
	}
	return inst, ctx
}

func mustFunc(t *testing.T) func(codegen.FuncID, error) codegen.FuncID {
	return func(id codegen.FuncID, err error) codegen.FuncID {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
}

func TestAllocate(t *testing.T) {
	c := newTestContext(t)
	inst, ctx := run(t, c)

	first, err := inst.Alloc(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if first != HeapStart {
		t.Errorf("first allocation at %d, want %d", first, HeapStart)
	}
	second, err := inst.Alloc(ctx, 3*PageSize)
	if err != nil {
		t.Fatal(err)
	}
	if second != first+10 {
		t.Errorf("second allocation at %d, want %d", second, first+10)
	}
	// The grown memory must be addressable.
	if err := inst.Write(second+3*PageSize-1, []byte{0xff}); err != nil {
		t.Errorf("grown memory not writable: %v", err)
	}
	third, err := inst.Alloc(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if third != second+3*PageSize {
		t.Errorf("third allocation at %d, want %d", third, second+3*PageSize)
	}

	if _, err := inst.Alloc(ctx, 0xffffffff); err == nil {
		t.Error("allocation wrapping the address space should trap")
	}
}

func TestReservedData(t *testing.T) {
	c := newTestContext(t)
	inst, _ := run(t, c)

	one, err := inst.Read(U256One, 32)
	if err != nil {
		t.Fatal(err)
	}
	want := make([]byte, 32)
	want[0] = 1
	if !bytes.Equal(one, want) {
		t.Errorf("u256 one = %x", one)
	}

	shared, _ := inst.Read(SharedOwner, 32)
	frozen, _ := inst.Read(FrozenOwner, 32)
	if shared[31] != 1 || frozen[31] != 2 {
		t.Errorf("owner keys = %x / %x", shared, frozen)
	}
	zero, _ := inst.Read(ZeroWord, 32)
	if !bytes.Equal(zero, make([]byte, 32)) {
		t.Errorf("zero word = %x", zero)
	}
}

func TestSwaps(t *testing.T) {
	c := newTestContext(t)
	m := c.Module()
	m.ExportFunc("swap_i32", mustFunc(t)(c.SwapI32()))
	m.ExportFunc("swap_i64", mustFunc(t)(c.SwapI64()))
	m.ExportFunc("swap_bytes_16", mustFunc(t)(c.SwapBytes(16)))
	m.ExportFunc("swap_bytes_32", mustFunc(t)(c.SwapBytes(32)))

	if _, err := c.SwapBytes(8); err == nil {
		t.Error("SwapBytes(8) should be rejected")
	}

	inst, ctx := run(t, c)

	got32, err := inst.Call1(ctx, "swap_i32", 0x11223344)
	if err != nil {
		t.Fatal(err)
	}
	if got32 != 0x44332211 {
		t.Errorf("swap_i32 = %#x", got32)
	}

	res, err := inst.Call(ctx, "swap_i64", 0x0102030405060708)
	if err != nil {
		t.Fatal(err)
	}
	if res[0] != 0x0807060504030201 {
		t.Errorf("swap_i64 = %#x", res[0])
	}

	for _, n := range []uint32{16, 32} {
		src := make([]byte, n)
		for i := range src {
			src[i] = byte(i + 1)
		}
		ptr, err := inst.Place(ctx, src)
		if err != nil {
			t.Fatal(err)
		}
		// In place: source and destination are the same buffer.
		name := "swap_bytes_16"
		if n == 32 {
			name = "swap_bytes_32"
		}
		if _, err := inst.Call(ctx, name, uint64(ptr), uint64(ptr)); err != nil {
			t.Fatal(err)
		}
		got, _ := inst.Read(ptr, n)
		for i := range got {
			if got[i] != src[int(n)-1-i] {
				t.Fatalf("%s: byte %d = %d, want %d", name, i, got[i], src[int(n)-1-i])
			}
		}
	}
}

func TestAssertZero(t *testing.T) {
	c := newTestContext(t)
	c.Module().ExportFunc("assert_zero", mustFunc(t)(c.AssertZero()))
	inst, ctx := run(t, c)

	ptr, err := inst.Place(ctx, []byte{0, 0, 0, 7, 0})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := inst.Call(ctx, "assert_zero", uint64(ptr), 3); err != nil {
		t.Errorf("zero prefix trapped: %v", err)
	}
	if _, err := inst.Call(ctx, "assert_zero", uint64(ptr), 4); err == nil {
		t.Error("non-zero byte should trap")
	}
	if _, err := inst.Call(ctx, "assert_zero", uint64(ptr), 0); err != nil {
		t.Errorf("empty range trapped: %v", err)
	}
}

func TestWordI32(t *testing.T) {
	c := newTestContext(t)
	m := c.Module()

	// store_word(dst, v) writes a big-endian word
	store, err := m.NewFunction("store_word", []wasm.ValType{wasm.ValI32, wasm.ValI32}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.StoreWordI32(store.Body(), store.Param(0), 0, store.Param(1)); err != nil {
		t.Fatal(err)
	}
	m.ExportFunc("store_word", store.Finish())

	// load_u16(src) reads a word that must fit in two bytes
	load, err := m.NewFunction("load_u16", []wasm.ValType{wasm.ValI32}, []wasm.ValType{wasm.ValI32})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.LoadWordI32(load.Body(), load.Param(0), 0, 2); err != nil {
		t.Fatal(err)
	}
	m.ExportFunc("load_u16", load.Finish())

	inst, ctx := run(t, c)

	ptr, err := inst.Place(ctx, bytes.Repeat([]byte{0xee}, 32))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := inst.Call(ctx, "store_word", uint64(ptr), 0xbeef); err != nil {
		t.Fatal(err)
	}
	word, _ := inst.Read(ptr, 32)
	want := make([]byte, 32)
	want[30], want[31] = 0xbe, 0xef
	if !bytes.Equal(word, want) {
		t.Errorf("word = %x", word)
	}

	got, err := inst.Call1(ctx, "load_u16", uint64(ptr))
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xbeef {
		t.Errorf("load_u16 = %#x", got)
	}

	if err := inst.Write(ptr+29, []byte{1}); err != nil {
		t.Fatal(err)
	}
	if _, err := inst.Call(ctx, "load_u16", uint64(ptr)); err == nil {
		t.Error("value wider than u16 should trap")
	}
}

func TestHostImportsAreDeclaredOnce(t *testing.T) {
	c := newTestContext(t)
	a := c.Host(NativeKeccak256)
	b := c.Host(NativeKeccak256)
	if a != b {
		t.Error("host import declared twice")
	}
	if name := c.Module().FuncName(c.Host(TxOrigin)); name != "vm_hooks.tx_origin" {
		t.Errorf("import name = %q", name)
	}
	if TxOrigin.Name() != "tx_origin" {
		t.Errorf("TxOrigin.Name() = %q", TxOrigin.Name())
	}
}
