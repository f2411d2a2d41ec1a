// Package heap maintains a foreign value image: a contiguous run of
// header-prefixed blocks in a blockrep.Memory, addressed by value.Value
// pointers.
//
// Blocks are bump allocated and never freed individually; Reset discards
// the whole image. Word 0 of the image is reserved so that no block
// pointer is ever 0.
//
// A Heap belongs to one session and is not safe for concurrent use.
package heap

import (
	"math"

	"github.com/wippyai/blockrep"
	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/internal/abi"
	"github.com/wippyai/blockrep/value"
	"go.uber.org/zap"
)

// Base is the offset of the first header in an image.
const Base = abi.WordSize

// Heap allocates and reads blocks in a Memory.
type Heap struct {
	mem      blockrep.Memory
	root     value.Value
	top      uint32
	capacity uint32
	blocks   int
}

// Option configures a Heap.
type Option func(*Heap)

// WithCapacity bounds the image size in bytes. Zero means unbounded.
func WithCapacity(bytes uint32) Option {
	return func(h *Heap) {
		h.capacity = bytes
	}
}

// New creates an empty heap over mem.
func New(mem blockrep.Memory, opts ...Option) *Heap {
	h := &Heap{
		mem:  mem,
		top:  Base,
		root: value.Unit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Memory returns the backing store.
func (h *Heap) Memory() blockrep.Memory {
	return h.mem
}

// Used returns the image size in bytes, including the reserved word.
func (h *Heap) Used() uint32 {
	return h.top
}

// Capacity returns the configured capacity, 0 when unbounded.
func (h *Heap) Capacity() uint32 {
	return h.capacity
}

// Blocks returns the number of blocks in the image.
func (h *Heap) Blocks() int {
	return h.blocks
}

// Root returns the value recorded as the image's entry point.
func (h *Heap) Root() value.Value {
	return h.root
}

// SetRoot records v as the image's entry point.
func (h *Heap) SetRoot(v value.Value) {
	h.root = v
}

// Reset discards every block. Values obtained earlier become dangling.
func (h *Heap) Reset() {
	h.top = Base
	h.root = value.Unit
	h.blocks = 0
}

// reserve claims n bytes at the top of the image.
func (h *Heap) reserve(n uint32) (uint32, error) {
	end, ok := abi.SafeAddU32(h.top, n)
	if !ok || (h.capacity > 0 && end > h.capacity) {
		limit := uint64(h.capacity)
		if limit == 0 {
			limit = math.MaxUint32
		}
		Logger().Warn("heap capacity exhausted",
			zap.Uint32("request", n),
			zap.Uint32("used", h.top),
			zap.Uint64("capacity", limit))
		return 0, errors.ArenaExhausted(errors.PhaseAlloc, uint64(n), abi.WordSize, uint64(h.top), limit)
	}

	if sizer, ok := h.mem.(blockrep.MemorySizer); ok && sizer.Size() < end {
		grower, ok := h.mem.(blockrep.MemoryGrower)
		if !ok {
			return 0, errors.ArenaExhausted(errors.PhaseAlloc, uint64(n), abi.WordSize, uint64(h.top), uint64(sizer.Size()))
		}
		if err := grower.Grow(end); err != nil {
			return 0, errors.New(errors.PhaseAlloc, errors.KindArenaExhausted).
				Detail("growing heap memory to %d bytes", end).
				Cause(err).
				Build()
		}
		Logger().Debug("heap memory grown", zap.Uint32("size", sizer.Size()))
	}

	start := h.top
	h.top = end
	return start, nil
}

// AllocBlock allocates a structured block. Every field starts as
// immediate 0.
func (h *Heap) AllocBlock(tag uint8, size uint32) (value.Value, error) {
	words, ok := abi.SafeAddU32(size, 1)
	if !ok {
		return 0, errors.Overflow(errors.PhaseAlloc, nil, size, "block size")
	}
	n, ok := abi.SafeMulU32(words, abi.WordSize)
	if !ok {
		return 0, errors.Overflow(errors.PhaseAlloc, nil, size, "block size")
	}
	start, err := h.reserve(n)
	if err != nil {
		return 0, err
	}

	if err := h.mem.WriteU64(start, uint64(value.MakeHeader(uint64(size), value.ColorWhite, tag))); err != nil {
		return 0, errors.Wrap(errors.PhaseAlloc, errors.KindMalformedBlock, err, "writing header")
	}
	addr := start + abi.HeaderSize
	for i := uint32(0); i < size; i++ {
		if err := h.mem.WriteU64(addr+i*abi.WordSize, uint64(value.Unit)); err != nil {
			return 0, errors.Wrap(errors.PhaseAlloc, errors.KindMalformedBlock, err, "initializing field")
		}
	}
	h.blocks++
	return value.Pointer(addr), nil
}

// AllocString allocates a string block holding b.
func (h *Heap) AllocString(b []byte) (value.Value, error) {
	if uint64(len(b)) > abi.MaxAlloc {
		return 0, errors.Overflow(errors.PhaseAlloc, nil, len(b), "string block")
	}
	wosize := value.StringWords(uint64(len(b)))
	start, err := h.reserve(uint32(wosize+1) * abi.WordSize)
	if err != nil {
		return 0, err
	}

	if err := h.mem.WriteU64(start, uint64(value.MakeHeader(wosize, value.ColorWhite, value.TagString))); err != nil {
		return 0, errors.Wrap(errors.PhaseAlloc, errors.KindMalformedBlock, err, "writing header")
	}
	body := make([]byte, wosize*abi.WordSize)
	copy(body, b)
	body[len(body)-1] = value.StringPadding(wosize, uint64(len(b)))
	addr := start + abi.HeaderSize
	if err := h.mem.Write(addr, body); err != nil {
		return 0, errors.Wrap(errors.PhaseAlloc, errors.KindMalformedBlock, err, "writing string body")
	}
	h.blocks++
	return value.Pointer(addr), nil
}

// AllocDouble allocates a boxed float.
func (h *Heap) AllocDouble(f float64) (value.Value, error) {
	v, err := h.AllocBlock(value.TagDouble, 1)
	if err != nil {
		return 0, err
	}
	if err := h.mem.WriteU64(v.Addr(), math.Float64bits(f)); err != nil {
		return 0, errors.Wrap(errors.PhaseAlloc, errors.KindMalformedBlock, err, "writing double")
	}
	return v, nil
}

// Header returns the header of the block v points at.
func (h *Heap) Header(v value.Value) (value.Header, error) {
	b, err := h.Block(v)
	if err != nil {
		return 0, err
	}
	return b.Header, nil
}

// Field returns field i of the structured block v points at.
func (h *Heap) Field(v value.Value, i uint32) (value.Value, error) {
	b, err := h.Block(v)
	if err != nil {
		return 0, err
	}
	return b.Field(i)
}

// SetField stores f into field i of the structured block v points at.
func (h *Heap) SetField(v value.Value, i uint32, f value.Value) error {
	b, err := h.Block(v)
	if err != nil {
		return err
	}
	return b.SetField(i, f)
}

// ReadString returns a copy of the bytes of the string block v points at.
func (h *Heap) ReadString(v value.Value) ([]byte, error) {
	b, err := h.Block(v)
	if err != nil {
		return nil, err
	}
	addr, n, err := b.stringExtent()
	if err != nil {
		return nil, err
	}
	return h.mem.Read(addr, n)
}

// ViewString returns the bytes of the string block v points at, aliasing
// the heap when the memory supports it. zeroCopy reports whether the
// result aliases the heap.
func (h *Heap) ViewString(v value.Value) (data []byte, zeroCopy bool, err error) {
	b, err := h.Block(v)
	if err != nil {
		return nil, false, err
	}
	addr, n, err := b.stringExtent()
	if err != nil {
		return nil, false, err
	}
	if viewer, ok := h.mem.(blockrep.ByteViewer); ok {
		if data, ok := viewer.View(addr, n); ok {
			return data, true, nil
		}
	}
	data, err = h.mem.Read(addr, n)
	return data, false, err
}

// ReadDouble returns the float held by the double block v points at.
func (h *Heap) ReadDouble(v value.Value) (float64, error) {
	b, err := h.Block(v)
	if err != nil {
		return 0, err
	}
	if b.Tag() != value.TagDouble || b.Size() != 1 {
		return 0, errors.MalformedBlock(errors.PhaseDecode, nil,
			"expected double block, found tag %d size %d", b.Tag(), b.Size())
	}
	bits, err := h.mem.ReadU64(b.Addr)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseDecode, errors.KindMalformedBlock, err, "reading double")
	}
	return math.Float64frombits(bits), nil
}

// Bytes returns a copy of the image, reserved word included.
func (h *Heap) Bytes() ([]byte, error) {
	return h.mem.Read(0, h.top)
}

// Load replaces the image with img, which must have been produced by
// Bytes. The block structure is validated before Load returns.
func (h *Heap) Load(img []byte, root value.Value) error {
	if len(img) < Base || len(img)%abi.WordSize != 0 || uint64(len(img)) > math.MaxUint32 {
		return errors.MalformedBlock(errors.PhaseImage, nil, "image size %d is not a whole number of words", len(img))
	}
	h.Reset()
	if _, err := h.reserve(uint32(len(img)) - Base); err != nil {
		return err
	}
	if err := h.mem.Write(0, img); err != nil {
		h.Reset()
		return errors.Wrap(errors.PhaseImage, errors.KindMalformedBlock, err, "writing image")
	}

	count := 0
	if err := h.Walk(func(Block) error {
		count++
		return nil
	}); err != nil {
		h.Reset()
		return err
	}
	h.blocks = count

	if root.IsBlock() {
		if _, err := h.Block(root); err != nil {
			h.Reset()
			return err
		}
	}
	h.root = root
	return nil
}

// Walk visits every block in allocation order.
func (h *Heap) Walk(fn func(Block) error) error {
	off := uint32(Base)
	for off < h.top {
		word, err := h.mem.ReadU64(off)
		if err != nil {
			return errors.Wrap(errors.PhaseDecode, errors.KindMalformedBlock, err, "reading header")
		}
		hd := value.Header(word)
		end := uint64(off) + (hd.Size()+1)*abi.WordSize
		if end > uint64(h.top) {
			return errors.MalformedBlock(errors.PhaseDecode, nil,
				"block at 0x%x with %d words runs past image end 0x%x", off+abi.HeaderSize, hd.Size(), h.top)
		}
		if err := fn(Block{Addr: off + abi.HeaderSize, Header: hd, h: h}); err != nil {
			return err
		}
		off = uint32(end)
	}
	return nil
}

// Stats describes the image.
type Stats struct {
	Used     uint32
	Capacity uint32
	Blocks   int
}

func (h *Heap) Stats() Stats {
	return Stats{Used: h.top, Capacity: h.capacity, Blocks: h.blocks}
}
