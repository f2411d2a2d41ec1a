package value

import "fmt"

// Block tags with a fixed meaning in the foreign runtime.
const (
	MaxStructuredTag uint8 = 245
	TagLazy          uint8 = 246
	TagClosure       uint8 = 247
	TagObject        uint8 = 248
	TagInfix         uint8 = 249
	TagForward       uint8 = 250
	TagNoScan        uint8 = 251
	TagString        uint8 = 252
	TagDouble        uint8 = 253
	TagDoubleArray   uint8 = 254
	TagCustom        uint8 = 255
)

// MaxBlockVariants is the number of distinct structured tags available to
// the non-nullary variants of one sum type.
const MaxBlockVariants = int(MaxStructuredTag) + 1

// Color is the collector mark stored in a header.
type Color uint8

const (
	ColorWhite Color = 0
	ColorGray  Color = 1
	ColorBlue  Color = 2
	ColorBlack Color = 3
)

// MaxWosize is the largest size a header can carry.
const MaxWosize = 1<<54 - 1

// Header is the word preceding every block.
type Header uint64

// MakeHeader packs a block size in words, a color and a tag.
func MakeHeader(wosize uint64, color Color, tag uint8) Header {
	return Header(wosize<<10 | uint64(color&3)<<8 | uint64(tag))
}

// Size returns the block size in words, excluding the header.
func (h Header) Size() uint64 {
	return uint64(h) >> 10
}

// Tag returns the block tag.
func (h Header) Tag() uint8 {
	return uint8(h)
}

// Color returns the collector color bits.
func (h Header) Color() Color {
	return Color(h>>8) & 3
}

// IsStructured reports whether the block's fields are value words.
func (h Header) IsStructured() bool {
	return h.Tag() <= MaxStructuredTag
}

func (h Header) String() string {
	return fmt.Sprintf("header{size:%d tag:%d color:%d}", h.Size(), h.Tag(), h.Color())
}

// StringWords returns the block size in words for an n-byte string.
// There is always at least one padding byte.
func StringWords(n uint64) uint64 {
	return (n + 8) / 8
}

// StringPadding returns the value stored in the last byte of a string
// block of wosize words holding n bytes.
func StringPadding(wosize, n uint64) uint8 {
	return uint8(wosize*8 - 1 - n)
}
