// Package abi provides low-level helpers shared by the heap, arena and
// transcoder packages.
//
// # Contents
//
//   - helpers.go: word geometry, checked arithmetic, alignment, limits
//
// This package is internal to blockrep.
package abi
