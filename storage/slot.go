package storage

import (
	"encoding/binary"

	"github.com/wippyai/movewasm/abi"
)

// Slot is a 32-byte big-endian storage slot number
type Slot [32]byte

// BaseSlot returns slot number n
func BaseSlot(n uint64) Slot {
	var s Slot
	binary.BigEndian.PutUint64(s[24:], n)
	return s
}

// OwnerKey left-pads a 20-byte address into a mapping key
func OwnerKey(addr [20]byte) [32]byte {
	var k [32]byte
	copy(k[12:], addr[:])
	return k
}

// Shared and frozen objects are filed under these owner keys
var (
	SharedOwnerKey = [32]byte(BaseSlot(1))
	FrozenOwnerKey = [32]byte(BaseSlot(2))
)

// MappingSlot is the slot of key in the mapping stored at slot:
// keccak256(key ‖ slot)
func MappingSlot(slot Slot, key [32]byte) Slot {
	return Slot(abi.Keccak256(key[:], slot[:]))
}

// ObjectSlot is the first slot of the object with the given id, filed under
// owner in the objects mapping at base
func ObjectSlot(base Slot, owner, id [32]byte) Slot {
	return MappingSlot(MappingSlot(base, owner), id)
}

// NextSlot returns s+1, wrapping at 2^256
func NextSlot(s Slot) Slot {
	for i := len(s) - 1; i >= 0; i-- {
		s[i]++
		if s[i] != 0 {
			break
		}
	}
	return s
}

// PrevSlot returns s-1, wrapping at zero
func PrevSlot(s Slot) Slot {
	for i := len(s) - 1; i >= 0; i-- {
		s[i]--
		if s[i] != 0xff {
			break
		}
	}
	return s
}

// Slots returns n consecutive slots starting at s
func Slots(s Slot, n int) []Slot {
	out := make([]Slot, n)
	for i := range out {
		out[i] = s
		s = NextSlot(s)
	}
	return out
}
