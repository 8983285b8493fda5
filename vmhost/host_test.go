package vmhost

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"

	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/wasm"
)

// guest builds a module that re-exports every host function as call_<name>
// and an echo entry point that returns its call data.
func guest(t *testing.T) []byte {
	t.Helper()
	m := codegen.NewModule("guest")
	m.SetMemory(1, nil)
	m.ExportMemory("memory")

	hooks := []struct {
		name   string
		params int
	}{
		{"read_args", 1},
		{"write_result", 2},
		{"native_keccak256", 3},
		{"storage_load_bytes32", 2},
		{"storage_cache_bytes32", 2},
		{"storage_flush_cache", 1},
		{"tx_origin", 1},
		{"emit_log", 3},
	}
	ids := make(map[string]codegen.FuncID)
	for _, h := range hooks {
		params := make([]wasm.ValType, h.params)
		for i := range params {
			params[i] = wasm.ValI32
		}
		imp := m.ImportFunc(DefaultModule, h.name, params, nil)
		ids[h.name] = imp

		fn, err := m.NewFunction("call_"+h.name, params, nil)
		if err != nil {
			t.Fatal(err)
		}
		for i := range params {
			fn.Body().LocalGet(fn.Param(i))
		}
		fn.Body().Call(imp)
		m.ExportFunc("call_"+h.name, fn.Finish())
	}

	echo, err := m.NewFunction("echo", []wasm.ValType{wasm.ValI32}, []wasm.ValType{wasm.ValI32})
	if err != nil {
		t.Fatal(err)
	}
	b := echo.Body()
	b.I32Const(1024).Call(ids["read_args"])
	b.I32Const(1024).LocalGet(echo.Param(0)).Call(ids["write_result"])
	b.I32Const(0)
	m.ExportFunc("echo", echo.Finish())

	bin, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return bin
}

func newInstance(t *testing.T, cfg *Config) (*Instance, context.Context) {
	t.Helper()
	ctx := context.Background()
	h, err := New(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close(ctx) })
	inst, err := h.Instantiate(ctx, guest(t))
	if err != nil {
		t.Fatal(err)
	}
	return inst, ctx
}

func word(b byte) Word {
	var w Word
	w[31] = b
	return w
}

func TestKeccak(t *testing.T) {
	inst, ctx := newInstance(t, nil)
	if err := inst.Write(100, []byte("abc")); err != nil {
		t.Fatal(err)
	}
	if _, err := inst.Call(ctx, "call_native_keccak256", 100, 3, 200); err != nil {
		t.Fatal(err)
	}
	got, _ := inst.Read(200, 32)
	want := "4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"
	if hex.EncodeToString(got) != want {
		t.Errorf("keccak(abc) = %x", got)
	}
}

func TestStorageCache(t *testing.T) {
	inst, ctx := newInstance(t, nil)
	h := inst.Host()
	key, value := word(7), word(42)
	inst.Write(0, key[:])
	inst.Write(32, value[:])

	if _, err := inst.Call(ctx, "call_storage_cache_bytes32", 0, 32); err != nil {
		t.Fatal(err)
	}
	if h.StorageLen() != 0 {
		t.Error("cached write committed before flush")
	}

	// Loads see pending writes.
	if _, err := inst.Call(ctx, "call_storage_load_bytes32", 0, 64); err != nil {
		t.Fatal(err)
	}
	got, _ := inst.Read(64, 32)
	if !bytes.Equal(got, value[:]) {
		t.Errorf("pending load = %x", got)
	}

	if _, err := inst.Call(ctx, "call_storage_flush_cache", 1); err != nil {
		t.Fatal(err)
	}
	if h.Storage(key) != value || h.Flushes() != 1 {
		t.Errorf("after flush: %x, %d flushes", h.Storage(key), h.Flushes())
	}

	// A zero value clears the slot.
	zero := Word{}
	inst.Write(32, zero[:])
	inst.Call(ctx, "call_storage_cache_bytes32", 0, 32)
	inst.Call(ctx, "call_storage_flush_cache", 1)
	if h.StorageLen() != 0 {
		t.Errorf("zero write left %d slots", h.StorageLen())
	}
}

func TestOrigin(t *testing.T) {
	origin := [20]byte{0xaa, 19: 0xbb}
	inst, ctx := newInstance(t, &Config{Origin: origin})
	if _, err := inst.Call(ctx, "call_tx_origin", 300); err != nil {
		t.Fatal(err)
	}
	got, _ := inst.Read(300, 20)
	if !bytes.Equal(got, origin[:]) {
		t.Errorf("origin = %x", got)
	}

	other := [20]byte{1}
	inst.Host().SetOrigin(other)
	inst.Call(ctx, "call_tx_origin", 300)
	got, _ = inst.Read(300, 20)
	if !bytes.Equal(got, other[:]) {
		t.Errorf("origin after SetOrigin = %x", got)
	}
}

func TestEmitLog(t *testing.T) {
	inst, ctx := newInstance(t, nil)
	t0, t1 := word(1), word(2)
	buf := append(append(append([]byte{}, t0[:]...), t1[:]...), 0xde, 0xad)
	inst.Write(500, buf)

	if _, err := inst.Call(ctx, "call_emit_log", 500, uint64(len(buf)), 2); err != nil {
		t.Fatal(err)
	}
	logs := inst.Host().Logs()
	if len(logs) != 1 {
		t.Fatalf("got %d logs", len(logs))
	}
	if len(logs[0].Topics) != 2 || logs[0].Topics[0] != t0 || logs[0].Topics[1] != t1 {
		t.Errorf("topics = %x", logs[0].Topics)
	}
	if !bytes.Equal(logs[0].Data, []byte{0xde, 0xad}) {
		t.Errorf("data = %x", logs[0].Data)
	}

	if _, err := inst.Call(ctx, "call_emit_log", 500, 32, 5); err == nil {
		t.Error("five topics should be rejected")
	}
}

func TestInvoke(t *testing.T) {
	inst, ctx := newInstance(t, nil)
	data := []byte{1, 2, 3, 4, 5}
	got, err := inst.Invoke(ctx, "echo", data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("result = %x", got)
	}
	if _, err := inst.Invoke(ctx, "missing", data); err == nil {
		t.Error("unknown entry should fail")
	}
}

func TestOutOfRangePointer(t *testing.T) {
	inst, ctx := newInstance(t, nil)
	if _, err := inst.Call(ctx, "call_native_keccak256", 65530, 32, 0); err == nil {
		t.Error("out-of-range read should abort the call")
	}
	if _, err := inst.Read(65530, 32); err == nil {
		t.Error("out-of-range Read should fail")
	}
}
