// Package value defines the foreign runtime's word-sized value encoding.
//
// A Value is either an immediate, a 63-bit integer stored as (n<<1)|1, or
// a pointer to the first field of a heap block. Pointers are byte offsets
// into a heap image and are always word aligned, so their low bit is 0.
//
// Every block is preceded by a Header word:
//
//	 63                  10 9   8 7        0
//	┌──────────────────────┬─────┬──────────┐
//	│ wosize (size, words) │color│   tag    │
//	└──────────────────────┴─────┴──────────┘
//
// Tags 0..245 mark structured blocks (products and non-nullary variants).
// String blocks (tag 252) hold raw bytes padded to a word boundary; the
// last byte of the block stores the amount of padding. Double blocks
// (tag 253) hold one IEEE-754 binary64 word.
package value

import (
	"fmt"
)

// Value is one encoded foreign value word.
type Value uint64

// Immediate integer range.
const (
	MaxInt = 1<<62 - 1
	MinInt = -(1 << 62)
)

// Well-known immediates.
const (
	Unit  Value = 1 // immediate 0
	None  Value = 1 // option sentinel, immediate 0
	Nil   Value = 1 // empty list, immediate 0
	Empty Value = 1 // empty map, immediate 0
	False Value = 1
	True  Value = 3
)

// Int encodes n as an immediate. Bits above the 63-bit range are lost;
// callers check FitsInt first.
func Int(n int64) Value {
	return Value(uint64(n)<<1 | 1)
}

// FitsInt reports whether n can be stored as an immediate without loss.
func FitsInt(n int64) bool {
	return n >= MinInt && n <= MaxInt
}

// FitsUint reports whether n can be stored as an immediate without loss.
func FitsUint(n uint64) bool {
	return n <= MaxInt
}

// Bool encodes b as immediate 0 or 1.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Pointer returns the value word addressing the block whose first field
// is at addr.
func Pointer(addr uint32) Value {
	return Value(addr)
}

// IsImmediate reports whether v carries its payload inline.
func (v Value) IsImmediate() bool {
	return v&1 == 1
}

// IsBlock reports whether v points at a heap block.
func (v Value) IsBlock() bool {
	return v&1 == 0
}

// Int returns the immediate payload using an arithmetic shift.
func (v Value) Int() int64 {
	return int64(v) >> 1
}

// Addr returns the byte address of the block's first field.
func (v Value) Addr() uint32 {
	return uint32(v)
}

// String renders v for diagnostics.
func (v Value) String() string {
	if v.IsImmediate() {
		return fmt.Sprintf("imm(%d)", v.Int())
	}
	return fmt.Sprintf("block@0x%x", uint64(v))
}
