// Package types defines the compiled plans the transcoder walks.
//
// A CompiledType binds a schema descriptor to a Go type once: struct
// field offsets, variant pointer offsets and the sum tag table are
// resolved at compile time so encoding and decoding only follow offsets.
//
// # Key Types
//
//   - CompiledType: plan for one descriptor and Go type
//   - Field: one product or variant field at a Go offset
//   - Case: one sum variant with its immediate or block tag slot
//   - Kind: plan discriminator
//
// This package is internal to the transcoder.
package types
