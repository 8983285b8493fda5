// Package storage lays persistent objects out in contract storage.
//
// Objects live in a two-level mapping keyed by owner and then by object id:
//
//	slot(owner, id) = keccak256(id ‖ keccak256(owner ‖ objects))
//
// where objects is the configured base slot. Each scalar field takes one
// 32-byte big-endian word in consecutive slots; nested plain structs are
// flattened in field order. The first word is always the object id, which is
// how a stored object is told apart from empty storage.
//
// Shared and frozen objects are filed under the reserved owner keys 1 and 2.
// Loading an object by id tries the sender first, then those two.
//
// Slot derivation is also available in Go (MappingSlot, ObjectSlot,
// NextSlot) so tools can locate objects without running the contract.
package storage
