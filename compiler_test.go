package movewasm

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/wippyai/movewasm/abi"
	"github.com/wippyai/movewasm/manifest"
	"github.com/wippyai/movewasm/vmhost"
)

const shopManifest = `
[package]
name = "shop"
address = "0x42"

[[struct]]
name = "Coin"
abilities = ["key", "store"]
fields = [{ name = "id", type = "UID" }, { name = "value", type = "u64" }]

[[struct]]
name = "Point"
abilities = ["copy", "drop"]
fields = [{ name = "x", type = "u32" }, { name = "y", type = "u64" }]

[[enum]]
name = "Color"
variants = ["Red", "Green"]

[[error]]
name = "not_enough"
fields = [{ name = "need", type = "u64" }]

[[event]]
name = "Minted"
indexed = 1
fields = [{ name = "to", type = "address" }, { name = "amount", type = "u64" }]

[[function]]
name = "transfer"
params = ["u64", "vector<u32>", "Point", "Color"]
results = ["bool"]

[[function]]
name = "burn_all"
params = ["signer", "&mut Coin"]
results = ["u64"]
`

func compileShop(t *testing.T, cfg Config) (*manifest.Definitions, *Artifact) {
	t.Helper()
	m, err := manifest.Parse([]byte(shopManifest))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defs, err := m.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	cfg.Options = m.Options()
	art, err := NewCompiler(defs, cfg).Compile()
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return defs, art
}

func word(v uint64) []byte {
	b := make([]byte, 32)
	binary.BigEndian.PutUint64(b[24:], v)
	return b
}

func TestCompileExports(t *testing.T) {
	_, art := compileShop(t, Config{Storage: true, Echo: true})

	want := []string{
		"abi_decode_transfer", "abi_encode_transfer", "abi_echo_transfer",
		"abi_decode_burn_all", "abi_encode_burn_all",
		"abi_revert_not_enough", "abi_raise_not_enough",
		"abi_emit_Minted",
		"storage_save_Coin", "storage_load_Coin", "storage_read_Coin", "storage_delete_Coin",
	}
	if len(art.Exports) != len(want) {
		t.Fatalf("exports = %v\nwant      %v", art.Exports, want)
	}
	for i := range want {
		if art.Exports[i] != want[i] {
			t.Errorf("export %d = %q, want %q", i, art.Exports[i], want[i])
		}
	}
	if art.Instantiations == 0 {
		t.Error("no instantiations recorded")
	}
	if err := Verify(context.Background(), art.Wasm, []string{"abi_decode_missing"}); err == nil {
		t.Error("Verify should reject a missing export")
	}
	if err := Verify(context.Background(), art.Wasm, want); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestCompileWithoutExtras(t *testing.T) {
	_, art := compileShop(t, Config{})
	for _, name := range art.Exports {
		if strings.HasPrefix(name, "storage_") || strings.HasPrefix(name, EchoPrefix) {
			t.Errorf("unexpected export %q", name)
		}
	}
	if len(art.Exports) != 7 {
		t.Errorf("exports = %v", art.Exports)
	}
}

func TestDecode(t *testing.T) {
	defs, art := compileShop(t, Config{Echo: true})
	sel, err := abi.FunctionSelector(defs.Registry, "transfer", defs.Functions[0].Params)
	if err != nil {
		t.Fatal(err)
	}

	args := bytes.Join([][]byte{
		word(1000),
		word(0xa0),
		word(3), word(4),
		word(1),
		word(2), word(10), word(20),
	}, nil)

	tests := []struct {
		name    string
		args    []byte
		wantErr bool
	}{
		{name: "canonical", args: args},
		{name: "enum out of range", args: append(append([]byte(nil), args[:128]...), append(word(2), args[160:]...)...), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calldata := append(sel[:], tt.args...)
			got, err := Decode(context.Background(), art, "transfer", calldata, [20]byte{})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %x", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !bytes.Equal(got, tt.args) {
				t.Errorf("echo = %x\nwant   %x", got, tt.args)
			}
		})
	}

	if _, err := Decode(context.Background(), art, "burn_all", sel[:], [20]byte{}); err == nil {
		t.Error("burn_all has no echo export")
	}
	if _, err := Decode(context.Background(), art, "transfer", []byte{1}, [20]byte{}); err == nil {
		t.Error("short call data should fail")
	}
}

func TestRaise(t *testing.T) {
	_, art := compileShop(t, Config{})
	ctx := context.Background()
	host, err := vmhost.New(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer host.Close(ctx)
	inst, err := host.Instantiate(ctx, art.Wasm)
	if err != nil {
		t.Fatal(err)
	}
	defer inst.Close(ctx)

	rec := make([]byte, 8)
	binary.LittleEndian.PutUint64(rec, 900)
	ptr, err := inst.Place(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	status, err := inst.Call1(ctx, RaisePrefix+"not_enough", uint64(ptr))
	if err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	if status != 1 {
		t.Errorf("status = %d, want 1", status)
	}
	sel := abi.SelectorOf("NotEnough(uint64)")
	if want := append(sel[:], word(900)...); !bytes.Equal(host.Result(), want) {
		t.Errorf("result = %x\nwant     %x", host.Result(), want)
	}
}

func TestABI(t *testing.T) {
	m, err := manifest.Parse([]byte(shopManifest))
	if err != nil {
		t.Fatal(err)
	}
	defs, err := m.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	data, err := ExportABI(defs)
	if err != nil {
		t.Fatalf("ExportABI failed: %v", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	byName := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}

	transfer := byName["transfer"]
	if transfer.Signature != "transfer(uint64,uint32[],(uint32,uint64),uint8)" {
		t.Errorf("signature = %q", transfer.Signature)
	}
	sel := abi.SelectorOf(transfer.Signature)
	if transfer.Selector != "0x"+hex.EncodeToString(sel[:]) {
		t.Errorf("selector = %q", transfer.Selector)
	}
	if len(transfer.Inputs) != 4 {
		t.Fatalf("inputs = %+v", transfer.Inputs)
	}
	point := transfer.Inputs[2]
	if point.Type != "tuple" || len(point.Components) != 2 || point.Components[1].Name != "y" || point.Components[1].Type != "uint64" {
		t.Errorf("point input = %+v", point)
	}
	if transfer.Inputs[1].Type != "uint32[]" || transfer.Inputs[3].Type != "uint8" {
		t.Errorf("inputs = %+v", transfer.Inputs)
	}
	if len(transfer.Outputs) != 1 || transfer.Outputs[0].Type != "bool" {
		t.Errorf("outputs = %+v", transfer.Outputs)
	}

	burn := byName["burnAll"]
	if burn.Signature != "burnAll(bytes32)" || len(burn.Inputs) != 1 || burn.Inputs[0].Type != "bytes32" {
		t.Errorf("burnAll = %+v", burn)
	}

	notEnough := byName["NotEnough"]
	if notEnough.Type != "error" || notEnough.Signature != "NotEnough(uint64)" {
		t.Errorf("error entry = %+v", notEnough)
	}

	minted := byName["Minted"]
	topic := abi.Keccak256([]byte("Minted(address,uint64)"))
	if minted.Type != "event" || minted.Selector != "0x"+hex.EncodeToString(topic[:]) {
		t.Errorf("event entry = %+v", minted)
	}
	if len(minted.Inputs) != 2 || !minted.Inputs[0].Indexed || minted.Inputs[1].Indexed {
		t.Errorf("event inputs = %+v", minted.Inputs)
	}
}
