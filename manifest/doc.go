// Package manifest loads movewasm.toml package manifests.
//
// A manifest declares the structs, enums, errors and events of one module
// together with the concrete signatures of its public functions:
//
//	[package]
//	name = "shop"
//	address = "0x42"
//
//	[[struct]]
//	name = "Coin"
//	abilities = ["key", "store"]
//	fields = [{ name = "id", type = "UID" }, { name = "value", type = "u64" }]
//
//	[[function]]
//	name = "mint"
//	params = ["signer", "u64"]
//	results = ["Coin"]
//
// Resolve turns a manifest into a frozen types.Registry. Type expressions
// use the types.Parse syntax; bare names refer to the package's own
// definitions or to the framework types UID, ID, TxContext, String and
// Bytes1 to Bytes32.
package manifest
