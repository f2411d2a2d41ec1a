// Package layout derives the encoding shape of descriptors: the block
// size of products and the tag table of sums.
//
// A sum's variants share two tag spaces. Nullary variants are immediates
// numbered by their position among nullary variants; variants with fields
// are blocks tagged by their position among variants with fields:
//
//	sum mode{a | b | c(int) | d | e(int, int)}
//
//	a → imm 0   b → imm 1   d → imm 2
//	c → block tag 0 size 1   e → block tag 1 size 2
//
// This package is internal to the transcoder.
package layout
