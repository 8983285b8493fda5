// Package errors provides structured error types for the movewasm code generator.
//
// Errors are categorized by Phase (which generator raised it) and Kind (error category).
// The Error type carries the field path, the offending type name and a cause chain, so
// an operator can see which type, which struct or enum, and which operation failed.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhasePack, errors.KindFoundSigner).
//		Path("Transfer", "from").
//		Type("signer").
//		Detail("signer has no wire representation").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeParameter(errors.PhaseClassify, path, 0)
//	err := errors.EnumNotSimple(errors.PhaseUnpack, path, "Shape")
//
// All errors implement the standard error interface and support errors.Is/As.
// Runtime faults of generated code are not represented here: they compile to traps.
package errors
