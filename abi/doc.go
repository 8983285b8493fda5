// Package abi classifies types against the Ethereum ABI and derives
// signatures and selectors.
//
// IsDynamic and HeadSize drive the head/tail layout used by the codec.
// SolidityName, Signature and the selector helpers produce the canonical
// names and keccak-derived routing keys for functions, errors and events.
//
// Every function here is pure: given the same registry and types the result
// is identical, and no code is emitted.
package abi
