package abi

import (
	"golang.org/x/crypto/sha3"

	"github.com/wippyai/movewasm/types"
)

// SelectorSize is the length of a function or error selector
const SelectorSize = 4

// Keccak256 hashes the concatenation of data with legacy Keccak-256
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// SelectorOf returns the first four bytes of keccak256(signature)
func SelectorOf(signature string) [SelectorSize]byte {
	h := Keccak256([]byte(signature))
	var sel [SelectorSize]byte
	copy(sel[:], h[:SelectorSize])
	return sel
}

// Selector derives the selector of name applied to params
func Selector(r *types.Registry, name string, params []types.Type) ([SelectorSize]byte, error) {
	sig, err := Signature(r, name, params)
	if err != nil {
		return [SelectorSize]byte{}, err
	}
	return SelectorOf(sig), nil
}

// FunctionSelector derives the dispatch selector of a public function
func FunctionSelector(r *types.Registry, name string, params []types.Type) ([SelectorSize]byte, error) {
	sig, err := FunctionSignature(r, name, params)
	if err != nil {
		return [SelectorSize]byte{}, err
	}
	return SelectorOf(sig), nil
}

// ErrorSelector derives the revert selector of an error struct
func ErrorSelector(r *types.Registry, def *types.StructDef) ([SelectorSize]byte, error) {
	sig, err := ErrorSignature(r, def)
	if err != nil {
		return [SelectorSize]byte{}, err
	}
	return SelectorOf(sig), nil
}

// EventTopic derives topic0 of an event: the full hash of its signature
func EventTopic(r *types.Registry, def *types.StructDef) ([32]byte, error) {
	sig, err := EventSignature(r, def)
	if err != nil {
		return [32]byte{}, err
	}
	return Keccak256([]byte(sig)), nil
}
