// Package builtins emits the runtime every generated module relies on.
//
// NewContext lays out linear memory:
//
//	0    zero word
//	32   u256 one, little-endian (slot arithmetic)
//	64   storage word buffer
//	96   objects mapping base slot
//	128  derived object slot
//	160  shared owner key, 192 frozen owner key
//	224  located owner
//	256  keccak input scratch (64 bytes)
//	320  heap
//
// and adds three mutable globals: the heap top used by the bump allocator,
// the wire reader advanced while call data is decoded and the end of the
// call data. Helpers such as the
// byte swaps are emitted on first use through the instantiation cache, and
// host functions are imported from the vm_hooks module on first use.
//
// The heap is never reclaimed within a call. allocate does not clear the
// memory it returns; generators write every byte they later read.
package builtins
