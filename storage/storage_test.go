package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/wippyai/movewasm/builtins"
	"github.com/wippyai/movewasm/codegen"
	merrors "github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/types"
	"github.com/wippyai/movewasm/vmhost"
)

var vault = types.ModuleID{Address: types.FrameworkAddress, Name: "vault"}

type fixture struct {
	reg   *types.Registry
	meta  types.Struct
	coin  types.Struct
	bag   types.Struct // object with a vector field
	named types.Struct // object with a String field
	bare  types.Struct // key without UID
	mixed types.Struct // object with a non-simple enum
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := types.NewRegistry()
	if err := types.RegisterFramework(r); err != nil {
		t.Fatal(err)
	}
	f := &fixture{reg: r}
	object := types.Abilities(types.AbilityKey | types.AbilityStore)

	add := func(def *types.StructDef) types.Struct {
		def.Module = vault
		def.Index = r.NextIndex(vault)
		if err := r.AddStruct(def); err != nil {
			t.Fatalf("add %s: %v", def.Name, err)
		}
		return def.Type()
	}
	addEnum := func(def *types.EnumDef) types.Enum {
		def.Module = vault
		def.Index = r.NextIndex(vault)
		if err := r.AddEnum(def); err != nil {
			t.Fatalf("add %s: %v", def.Name, err)
		}
		return def.Type()
	}

	color := addEnum(&types.EnumDef{Name: "Color", Variants: []types.Variant{{Name: "Red"}, {Name: "Green"}, {Name: "Blue"}}})
	shape := addEnum(&types.EnumDef{Name: "Shape", Variants: []types.Variant{
		{Name: "Dot"},
		{Name: "Circle", Fields: []types.Field{{Name: "r", Type: types.U32{}}}},
	}})

	f.meta = add(&types.StructDef{Name: "Meta", Fields: []types.Field{
		{Name: "level", Type: types.U8{}},
		{Name: "flag", Type: types.Bool{}},
	}})
	f.coin = add(&types.StructDef{Name: "Coin", Abilities: object, Fields: []types.Field{
		{Name: "id", Type: types.UIDType},
		{Name: "value", Type: types.U64{}},
		{Name: "holder", Type: types.Address{}},
		{Name: "meta", Type: f.meta},
		{Name: "balance", Type: types.U256{}},
		{Name: "color", Type: color},
	}})
	f.bag = add(&types.StructDef{Name: "Bag", Abilities: object, Fields: []types.Field{
		{Name: "id", Type: types.UIDType},
		{Name: "items", Type: types.Vector{Elem: types.U64{}}},
	}})
	f.named = add(&types.StructDef{Name: "Named", Abilities: object, Fields: []types.Field{
		{Name: "id", Type: types.UIDType},
		{Name: "name", Type: types.StringType},
	}})
	f.bare = add(&types.StructDef{Name: "Bare", Abilities: object, Fields: []types.Field{
		{Name: "value", Type: types.U64{}},
	}})
	f.mixed = add(&types.StructDef{Name: "Mixed", Abilities: object, Fields: []types.Field{
		{Name: "id", Type: types.UIDType},
		{Name: "shape", Type: shape},
	}})
	return f
}

func TestSlotArithmetic(t *testing.T) {
	top := Slot{}
	for i := range top {
		top[i] = 0xff
	}
	tests := []struct {
		name string
		in   Slot
		want Slot
	}{
		{name: "zero", in: BaseSlot(0), want: BaseSlot(1)},
		{name: "byte carry", in: BaseSlot(0xff), want: BaseSlot(0x100)},
		{name: "word carry", in: BaseSlot(^uint64(0)), want: func() Slot {
			var s Slot
			s[23] = 1
			return s
		}()},
		{name: "wrap", in: top, want: Slot{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextSlot(tt.in); got != tt.want {
				t.Errorf("NextSlot = %x, want %x", got, tt.want)
			}
			if got := PrevSlot(tt.want); got != tt.in {
				t.Errorf("PrevSlot = %x, want %x", got, tt.in)
			}
		})
	}

	slots := Slots(BaseSlot(9), 3)
	if slots[0] != BaseSlot(9) || slots[2] != BaseSlot(11) {
		t.Errorf("Slots = %x", slots)
	}
}

func TestMappingSlot(t *testing.T) {
	// keccak256(key ‖ slot) with key = 0 and slot = 0, as laid out by
	// Solidity for mapping(uint256 => _) at slot 0.
	got := MappingSlot(BaseSlot(0), [32]byte{})
	want := "ad3228b676f7d3cd4284a5443f17f1962b36e491b30a40b2405849e597ba5fb5"
	if hex.EncodeToString(got[:]) != want {
		t.Errorf("MappingSlot = %x", got)
	}
	a := ObjectSlot(BaseSlot(0), OwnerKey([20]byte{1}), [32]byte{2})
	b := ObjectSlot(BaseSlot(0), OwnerKey([20]byte{3}), [32]byte{2})
	if a == b {
		t.Error("different owners share a slot")
	}
}

func TestLayout(t *testing.T) {
	f := newFixture(t)
	words, err := Layout(f.reg, f.coin)
	if err != nil {
		t.Fatal(err)
	}
	wantPaths := []string{"Coin.id", "Coin.value", "Coin.holder", "Coin.meta.level", "Coin.meta.flag", "Coin.balance", "Coin.color"}
	if len(words) != len(wantPaths) {
		t.Fatalf("got %d words: %v", len(words), Describe(words))
	}
	for i, w := range words {
		if w.Path != wantPaths[i] {
			t.Errorf("word %d path = %q, want %q", i, w.Path, wantPaths[i])
		}
	}
	if words[1].Offset != 24 || words[1].Size != 8 {
		t.Errorf("u64 word at %d:%d", words[1].Offset, words[1].Size)
	}
	if words[2].Offset != 12 || words[2].Size != 20 {
		t.Errorf("address word at %d:%d", words[2].Offset, words[2].Size)
	}
	if got := Describe(words)[1]; got != "slot+1 Coin.value u64 @24:8" {
		t.Errorf("Describe = %q", got)
	}
}

func TestLayoutErrors(t *testing.T) {
	f := newFixture(t)
	c, err := builtins.NewContext(codegen.NewModule("storage"), f.reg, builtins.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	codec := New(c)

	tests := []struct {
		name string
		typ  types.Struct
		kind merrors.Kind
	}{
		{name: "vector field", typ: f.bag, kind: merrors.KindDynamicStorageField},
		{name: "string field", typ: f.named, kind: merrors.KindDynamicStorageField},
		{name: "missing uid", typ: f.bare, kind: merrors.KindMissingIdentity},
		{name: "not an object", typ: f.meta, kind: merrors.KindInvalidInput},
		{name: "non-simple enum", typ: f.mixed, kind: merrors.KindEnumNotSimple},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Save(tt.typ)
			if !errors.Is(err, merrors.Sentinel(tt.kind)) {
				t.Errorf("Save error = %v, want %s", err, tt.kind)
			}
			if _, err := codec.Load(tt.typ); err == nil {
				t.Error("Load should fail too")
			}
		})
	}
}

type harness struct {
	inst *vmhost.Instance
	host *vmhost.Host
	ctx  context.Context
	t    *testing.T
}

func newHarness(t *testing.T, f *fixture, opts builtins.Options, origin [20]byte) *harness {
	t.Helper()
	c, err := builtins.NewContext(codegen.NewModule("storage"), f.reg, opts)
	if err != nil {
		t.Fatal(err)
	}
	codec := New(c)
	m := c.Module()
	export := func(name string, id codegen.FuncID, err error) {
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		m.ExportFunc(name, id)
	}
	id, err := codec.Save(f.coin)
	export("save", id, err)
	id, err = codec.Load(f.coin)
	export("load", id, err)
	id, err = codec.Read(f.coin)
	export("read", id, err)
	id, err = codec.Delete(f.coin)
	export("delete", id, err)
	id, err = codec.WriteObjectSlot()
	export("write_object_slot", id, err)
	id, err = codec.NextSlot()
	export("next_slot", id, err)

	bin, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	h, err := vmhost.New(ctx, &vmhost.Config{Origin: origin})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close(ctx) })
	inst, err := h.Instantiate(ctx, bin)
	if err != nil {
		t.Fatal(err)
	}
	return &harness{inst: inst, host: h, ctx: ctx, t: t}
}

func (h *harness) place(b []byte) uint32 {
	h.t.Helper()
	ptr, err := h.inst.Place(h.ctx, b)
	if err != nil {
		h.t.Fatal(err)
	}
	return ptr
}

func (h *harness) u32s(vs ...uint32) uint32 {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return h.place(b)
}

func (h *harness) call(name string, args ...uint64) uint32 {
	h.t.Helper()
	res, err := h.inst.Call(h.ctx, name, args...)
	if err != nil {
		h.t.Fatalf("%s: %v", name, err)
	}
	if len(res) == 0 {
		return 0
	}
	return uint32(res[0])
}

func (h *harness) read(ptr, n uint32) []byte {
	h.t.Helper()
	b, err := h.inst.Read(ptr, n)
	if err != nil {
		h.t.Fatal(err)
	}
	return b
}

func (h *harness) u32(ptr uint32) uint32 {
	return binary.LittleEndian.Uint32(h.read(ptr, 4))
}

type coinValue struct {
	id      [32]byte
	value   uint64
	holder  [20]byte
	level   uint32
	flag    uint32
	balance uint64
	color   uint32
}

// placeCoin builds a Coin record: uid, value, holder, meta, balance, color
// at offsets 0, 4, 12, 16, 20, 24
func (h *harness) placeCoin(c coinValue) uint32 {
	idRec := h.u32s(h.place(c.id[:]))
	uid := h.u32s(idRec)
	holder := make([]byte, 32)
	copy(holder[12:], c.holder[:])
	meta := h.u32s(c.level, c.flag)
	balance := make([]byte, 32)
	binary.LittleEndian.PutUint64(balance, c.balance)
	color := h.u32s(c.color)

	rec := make([]byte, 28)
	binary.LittleEndian.PutUint32(rec[0:], uid)
	binary.LittleEndian.PutUint64(rec[4:], c.value)
	binary.LittleEndian.PutUint32(rec[12:], h.place(holder))
	binary.LittleEndian.PutUint32(rec[16:], meta)
	binary.LittleEndian.PutUint32(rec[20:], h.place(balance))
	binary.LittleEndian.PutUint32(rec[24:], color)
	return h.place(rec)
}

func (h *harness) readCoin(rec uint32) coinValue {
	var c coinValue
	idPtr := h.u32(h.u32(h.u32(rec)))
	copy(c.id[:], h.read(idPtr, 32))
	c.value = binary.LittleEndian.Uint64(h.read(rec+4, 8))
	copy(c.holder[:], h.read(h.u32(rec+12)+12, 20))
	meta := h.u32(rec + 16)
	c.level, c.flag = h.u32(meta), h.u32(meta+4)
	c.balance = binary.LittleEndian.Uint64(h.read(h.u32(rec+20), 8))
	c.color = h.u32(h.u32(rec + 24))
	return c
}

func TestWriteObjectSlot(t *testing.T) {
	f := newFixture(t)
	for _, base := range []uint64{0, 5} {
		opts := builtins.DefaultOptions()
		opts.ObjectsSlot = base
		h := newHarness(t, f, opts, [20]byte{})

		owner := OwnerKey([20]byte{0xaa, 19: 0x01})
		id := [32]byte{0x11, 31: 0x22}
		h.call("write_object_slot", uint64(h.place(owner[:])), uint64(h.place(id[:])))

		want := ObjectSlot(BaseSlot(base), owner, id)
		if got := h.read(builtins.DerivedSlot, 32); !bytes.Equal(got, want[:]) {
			t.Errorf("base %d: derived slot = %x, want %x", base, got, want)
		}
	}
}

func TestNextSlotMatchesGo(t *testing.T) {
	f := newFixture(t)
	h := newHarness(t, f, builtins.DefaultOptions(), [20]byte{})

	inputs := []Slot{BaseSlot(0), BaseSlot(0xff), BaseSlot(^uint64(0)), {0xff, 0xff, 31: 0xff}}
	for _, in := range inputs {
		ptr := h.place(in[:])
		h.call("next_slot", uint64(ptr))
		want := NextSlot(in)
		if got := h.read(ptr, 32); !bytes.Equal(got, want[:]) {
			t.Errorf("next(%x) = %x, want %x", in, got, want)
		}
	}
}

func TestObjectLifecycle(t *testing.T) {
	f := newFixture(t)
	origin := [20]byte{0xde, 0xad, 19: 0x01}
	h := newHarness(t, f, builtins.DefaultOptions(), origin)

	coin := coinValue{
		id:      [32]byte{0x01, 31: 0x09},
		value:   0x0102030405060708,
		holder:  [20]byte{0x33, 19: 0x44},
		level:   7,
		flag:    1,
		balance: 0x0102,
		color:   2,
	}
	owner := OwnerKey(origin)
	ownerPtr := h.place(owner[:])
	rec := h.placeCoin(coin)

	h.call("save", uint64(rec), uint64(ownerPtr))
	if h.host.Flushes() != 1 {
		t.Errorf("flushes = %d", h.host.Flushes())
	}

	slots := Slots(ObjectSlot(BaseSlot(0), owner, coin.id), 7)
	wordAt := func(i int) vmhost.Word { return h.host.Storage(vmhost.Word(slots[i])) }

	if w := wordAt(0); w != vmhost.Word(coin.id) {
		t.Errorf("id word = %x", w)
	}
	if w := wordAt(1); binary.BigEndian.Uint64(w[24:]) != coin.value || !bytes.Equal(w[:24], make([]byte, 24)) {
		t.Errorf("value word = %x", w)
	}
	if w := wordAt(2); !bytes.Equal(w[12:], coin.holder[:]) {
		t.Errorf("holder word = %x", w)
	}
	if w := wordAt(3); w != vmhost.Word(BaseSlot(7)) {
		t.Errorf("level word = %x", w)
	}
	if w := wordAt(4); w != vmhost.Word(BaseSlot(1)) {
		t.Errorf("flag word = %x", w)
	}
	if w := wordAt(5); w != vmhost.Word(BaseSlot(0x0102)) {
		t.Errorf("balance word = %x", w)
	}
	if w := wordAt(6); w != vmhost.Word(BaseSlot(2)) {
		t.Errorf("color word = %x", w)
	}

	// Locate under the sender.
	{
		loaded := h.call("load", uint64(h.place(coin.id[:])))
		if got := h.readCoin(loaded); got != coin {
			t.Errorf("loaded %+v, want %+v", got, coin)
		}
		if got := h.read(builtins.OwnerScratch, 32); !bytes.Equal(got, owner[:]) {
			t.Errorf("owner scratch = %x", got)
		}
	}

	// Read under an explicit owner.
	{
		loaded := h.call("read", uint64(ownerPtr), uint64(h.place(coin.id[:])))
		if got := h.readCoin(loaded); got != coin {
			t.Errorf("read %+v", got)
		}
		stranger := OwnerKey([20]byte{0x99})
		if _, err := h.inst.Call(h.ctx, "read", uint64(h.place(stranger[:])), uint64(h.place(coin.id[:]))); err == nil {
			t.Error("reading under the wrong owner should trap")
		}
	}

	// Unknown ids trap.
	{
		other := [32]byte{0x77}
		if _, err := h.inst.Call(h.ctx, "load", uint64(h.place(other[:]))); err == nil {
			t.Error("loading a missing object should trap")
		}
	}

	// Delete zeroes every slot.
	{
		h.call("delete", uint64(rec), uint64(ownerPtr))
		if n := h.host.StorageLen(); n != 0 {
			t.Errorf("%d slots left after delete", n)
		}
	}
}

func TestSharedAndFrozenOwners(t *testing.T) {
	f := newFixture(t)
	h := newHarness(t, f, builtins.DefaultOptions(), [20]byte{0x01})

	shared := coinValue{id: [32]byte{0x0a}, value: 5, color: 1}
	frozen := coinValue{id: [32]byte{0x0b}, value: 6}
	h.call("save", uint64(h.placeCoin(shared)), uint64(builtins.SharedOwner))
	h.call("save", uint64(h.placeCoin(frozen)), uint64(builtins.FrozenOwner))

	// A different sender still finds both.
	h.host.SetOrigin([20]byte{0x02})

	loaded := h.call("load", uint64(h.place(shared.id[:])))
	if got := h.readCoin(loaded); got.value != 5 || got.color != 1 {
		t.Errorf("shared coin = %+v", got)
	}
	if got := h.read(builtins.OwnerScratch, 32); !bytes.Equal(got, SharedOwnerKey[:]) {
		t.Errorf("owner scratch = %x, want shared", got)
	}

	loaded = h.call("load", uint64(h.place(frozen.id[:])))
	if got := h.readCoin(loaded); got.value != 6 {
		t.Errorf("frozen coin = %+v", got)
	}
	if got := h.read(builtins.OwnerScratch, 32); !bytes.Equal(got, FrozenOwnerKey[:]) {
		t.Errorf("owner scratch = %x, want frozen", got)
	}
}
