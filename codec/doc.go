// Package codec emits WebAssembly functions that translate between in-memory
// values and the contract ABI wire format.
//
// Every value is encoded as a tuple of 32-byte big-endian head words.
// Static values are written in place; dynamic values (vectors, strings and
// structs containing either) write an offset word pointing at a tail that is
// appended after the heads:
//
//	pack(value, writer, base)          writes the head of value at writer
//	unpack(reader, base) -> value      reads the head at reader
//	pack_values(record) -> buffer      [len u32][tuple]
//	unpack_values(base) -> record      parameters in declaration order
//
// Offsets are relative to base, the start of the enclosing tuple. Generated
// functions are cached per concrete type, so every instantiation has one body.
//
// On top of the value codecs the package emits entry points that check the
// selector and wire call data to a function body, revert payloads for error
// structs and log emitters for event structs.
package codec
