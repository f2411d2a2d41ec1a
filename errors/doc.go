// Package errors provides structured error types for blockrep.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: field path, Go/schema type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindArityMismatch).
//		Path("env", "mode").
//		SchemaType("mode").
//		Detail("expected %d fields, block has %d", 1, 2).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownVariant(errors.PhaseDecode, path, 1, 1, false)
//	err := errors.ArenaExhausted(errors.PhaseAlloc, 64, 8, used, capacity)
//
// All errors implement the standard error interface and support errors.Is/As.
// The exported Err* values are kind-only targets:
//
//	if errors.Is(err, blockerrors.ErrUnknownVariant) { ... }
package errors
