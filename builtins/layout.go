package builtins

import (
	"encoding/binary"
)

// Reserved memory at the bottom of linear memory. The allocator starts
// handing out memory at HeapStart.
const (
	ZeroWord     uint32 = 0   // 32 zero bytes
	U256One      uint32 = 32  // u256 one, little-endian
	SlotData     uint32 = 64  // word being read from or written to storage
	ObjectsSlot  uint32 = 96  // base slot of the objects mapping, big-endian
	DerivedSlot  uint32 = 128 // slot computed by write_object_slot
	SharedOwner  uint32 = 160 // owner key of shared objects (1, big-endian)
	FrozenOwner  uint32 = 192 // owner key of frozen objects (2, big-endian)
	OwnerScratch uint32 = 224 // owner an object was located under
	HashScratch  uint32 = 256 // 64-byte keccak input buffer
	HeapStart    uint32 = 320
)

// PageSize is the WebAssembly page size
const PageSize = 65536

func wordBE(v uint64) []byte {
	var w [32]byte
	binary.BigEndian.PutUint64(w[24:], v)
	return w[:]
}

func (c *Context) writeReservedData() {
	m := c.module
	m.AddData(U256One, []byte{1})
	m.AddData(ObjectsSlot, wordBE(c.opts.ObjectsSlot))
	m.AddData(SharedOwner, wordBE(1))
	m.AddData(FrozenOwner, wordBE(2))
}
