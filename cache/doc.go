// Package cache memoizes code generation per instantiation.
//
// Packing, unpacking and storage functions are generated once per distinct
// (kind, concrete type arguments) pair. The pair is encoded canonically with
// CBOR and that full encoding keys the cache; the xxh3 digest of it only
// names the emitted symbol, and a symbol held by a different key is reported
// as a hash collision instead of silently aliasing two bodies.
package cache
