package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const counterManifest = `
[package]
name = "counter"
address = "0x7"

[[struct]]
name = "Counter"
abilities = ["key"]
fields = [{ name = "id", type = "UID" }, { name = "value", type = "u64" }, { name = "owner", type = "address" }]

[[event]]
name = "Bumped"
indexed = 1
fields = [{ name = "by", type = "address" }, { name = "to", type = "u64" }]

[[function]]
name = "bump"
params = ["&mut Counter", "u64"]
results = ["u64"]

[[function]]
name = "add"
params = ["u64", "u64"]
results = ["u64"]
`

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--color", "off"))
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func writePackage(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "movewasm.toml"), []byte(counterManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestCommands(t *testing.T) {
	dir := writePackage(t)

	out := execute(t, "build", dir, "--abi")
	if !strings.Contains(out, "built") {
		t.Errorf("build output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "movewasm.wasm")); err != nil {
		t.Errorf("module not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "movewasm.abi.json")); err != nil {
		t.Errorf("ABI not written: %v", err)
	}

	if out := execute(t, "verify", dir); !strings.Contains(out, "ok") {
		t.Errorf("verify output = %q", out)
	}

	out = execute(t, "selectors", dir)
	for _, want := range []string{"bump(bytes32,uint64)", "add(uint64,uint64)", "Bumped(address,uint64)"} {
		if !strings.Contains(out, want) {
			t.Errorf("selectors output misses %s:\n%s", want, out)
		}
	}

	out = execute(t, "layout", dir)
	if !strings.Contains(out, "Counter") || !strings.Contains(out, "slot+1") {
		t.Errorf("layout output = %q", out)
	}

	out = execute(t, "abi", dir)
	if !strings.Contains(out, `"name": "Bumped"`) {
		t.Errorf("abi output = %q", out)
	}
}
