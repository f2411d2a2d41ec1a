package abi

import "math"

// Word geometry of the foreign heap.
const (
	WordSize   = 8
	HeaderSize = WordSize
)

func SafeMulU32(a, b uint32) (uint32, bool) {
	if b != 0 && a > math.MaxUint32/b {
		return 0, false
	}
	return a * b, true
}

func SafeAddU32(a, b uint32) (uint32, bool) {
	if a > math.MaxUint32-b {
		return 0, false
	}
	return a + b, true
}

func AlignUintptr(offset, align uintptr) uintptr {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

func IsPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

const CanonicalNaN64 = 0x7ff8000000000000

const (
	MaxStringSize = 1 << 30 // 1 GB max string size
	MaxListLength = 1 << 27 // 128M max elements
	MaxAlloc      = 1 << 30 // 1 GB max single allocation
	MaxDepth      = 1 << 16
)

// CanonicalizeF64 collapses every NaN payload to one bit pattern so that
// equal floats hash identically.
func CanonicalizeF64(bits uint64) uint64 {
	f := math.Float64frombits(bits)
	if f != f { // NaN check
		return CanonicalNaN64
	}
	if bits == 1<<63 { // -0.0
		return 0
	}
	return bits
}
