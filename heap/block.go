package heap

import (
	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/internal/abi"
	"github.com/wippyai/blockrep/value"
)

// Block is a bounds-checked view of one block in a Heap.
type Block struct {
	h      *Heap
	Addr   uint32
	Header value.Header
}

// Tag returns the block tag.
func (b Block) Tag() uint8 {
	return b.Header.Tag()
}

// Size returns the block size in words.
func (b Block) Size() uint32 {
	return uint32(b.Header.Size())
}

// Value returns the pointer addressing this block.
func (b Block) Value() value.Value {
	return value.Pointer(b.Addr)
}

// Block validates that v points at a whole block inside the image.
func (h *Heap) Block(v value.Value) (Block, error) {
	if v.IsImmediate() {
		return Block{}, errors.MalformedBlock(errors.PhaseDecode, nil, "expected block, found immediate %d", v.Int())
	}
	addr := v.Addr()
	if uint64(v) != uint64(addr) || addr%abi.WordSize != 0 || addr < Base+abi.HeaderSize || addr > h.top {
		return Block{}, errors.MalformedBlock(errors.PhaseDecode, nil, "pointer 0x%x outside image [0x%x, 0x%x)",
			uint64(v), Base+abi.HeaderSize, h.top)
	}
	word, err := h.mem.ReadU64(addr - abi.HeaderSize)
	if err != nil {
		return Block{}, errors.Wrap(errors.PhaseDecode, errors.KindMalformedBlock, err, "reading header")
	}
	hd := value.Header(word)
	if end := uint64(addr) + hd.Size()*abi.WordSize; end > uint64(h.top) {
		return Block{}, errors.MalformedBlock(errors.PhaseDecode, nil,
			"block at 0x%x with %d words runs past image end 0x%x", addr, hd.Size(), h.top)
	}
	return Block{h: h, Addr: addr, Header: hd}, nil
}

func (b Block) checkField(i uint32) error {
	if !b.Header.IsStructured() {
		return errors.MalformedBlock(errors.PhaseDecode, nil, "block at 0x%x with tag %d has no value fields", b.Addr, b.Tag())
	}
	if i >= b.Size() {
		return errors.MalformedBlock(errors.PhaseDecode, nil, "field %d out of range for block of size %d", i, b.Size())
	}
	return nil
}

// Field returns field i.
func (b Block) Field(i uint32) (value.Value, error) {
	if err := b.checkField(i); err != nil {
		return 0, err
	}
	word, err := b.h.mem.ReadU64(b.Addr + i*abi.WordSize)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseDecode, errors.KindMalformedBlock, err, "reading field")
	}
	return value.Value(word), nil
}

// SetField stores f into field i.
func (b Block) SetField(i uint32, f value.Value) error {
	if err := b.checkField(i); err != nil {
		return err
	}
	if err := b.h.mem.WriteU64(b.Addr+i*abi.WordSize, uint64(f)); err != nil {
		return errors.Wrap(errors.PhaseEncode, errors.KindMalformedBlock, err, "writing field")
	}
	return nil
}

// stringExtent returns the address and byte length of a string block's
// contents after checking the padding byte.
func (b Block) stringExtent() (uint32, uint32, error) {
	if b.Tag() != value.TagString {
		return 0, 0, errors.MalformedBlock(errors.PhaseDecode, nil, "expected string block, found tag %d", b.Tag())
	}
	if b.Size() == 0 {
		return 0, 0, errors.MalformedBlock(errors.PhaseDecode, nil, "string block at 0x%x has no words", b.Addr)
	}
	total := b.Size() * abi.WordSize
	pad, err := b.h.mem.ReadU8(b.Addr + total - 1)
	if err != nil {
		return 0, 0, errors.Wrap(errors.PhaseDecode, errors.KindMalformedBlock, err, "reading string padding")
	}
	if pad >= abi.WordSize {
		return 0, 0, errors.MalformedBlock(errors.PhaseDecode, nil,
			"string block at 0x%x: padding byte %d does not fit a %d-word block", b.Addr, pad, b.Size())
	}
	return b.Addr, total - 1 - uint32(pad), nil
}
