// Package memory provides byte stores for foreign heap images.
//
// Slice keeps the image in a Go byte slice. Wasm keeps it in a wazero
// linear memory so the image can be shared with a WebAssembly guest.
package memory

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wippyai/blockrep"
)

var (
	_ blockrep.Memory       = (*Slice)(nil)
	_ blockrep.MemorySizer  = (*Slice)(nil)
	_ blockrep.MemoryGrower = (*Slice)(nil)
	_ blockrep.ByteViewer   = (*Slice)(nil)
)

// Slice is a growable Memory backed by a Go byte slice.
type Slice struct {
	buf []byte
}

// NewSlice returns a zeroed memory of the given size.
func NewSlice(size uint32) *Slice {
	return &Slice{buf: make([]byte, size)}
}

// FromBytes wraps b without copying.
func FromBytes(b []byte) *Slice {
	return &Slice{buf: b}
}

func (m *Slice) check(offset, length uint32) error {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.buf)) {
		return fmt.Errorf("memory access out of bounds: offset=%d, length=%d, size=%d", offset, length, len(m.buf))
	}
	return nil
}

// Read returns a copy of length bytes at offset.
func (m *Slice) Read(offset uint32, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.buf[offset:])
	return out, nil
}

// View returns length bytes at offset without copying.
func (m *Slice) View(offset, length uint32) ([]byte, bool) {
	if m.check(offset, length) != nil {
		return nil, false
	}
	return m.buf[offset : offset+length : offset+length], true
}

func (m *Slice) Write(offset uint32, data []byte) error {
	if uint64(len(data)) > math.MaxUint32 {
		return fmt.Errorf("memory write too large: %d bytes", len(data))
	}
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.buf[offset:], data)
	return nil
}

func (m *Slice) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.buf[offset], nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Slice) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.buf[offset:]), nil
}

func (m *Slice) WriteU8(offset uint32, value uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.buf[offset] = value
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Slice) WriteU64(offset uint32, value uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.buf[offset:], value)
	return nil
}

func (m *Slice) Size() uint32 {
	return uint32(len(m.buf))
}

// Grow extends the memory to at least minSize bytes, at least doubling
// the capacity. Existing bytes keep their offsets; slices returned by
// View before the call keep referring to the old backing array.
func (m *Slice) Grow(minSize uint32) error {
	if int(minSize) <= len(m.buf) {
		return nil
	}
	if minSize <= uint32(cap(m.buf)) {
		m.buf = m.buf[:minSize]
		return nil
	}
	newCap := uint64(cap(m.buf)) * 2
	if newCap < uint64(minSize) {
		newCap = uint64(minSize)
	}
	if newCap > math.MaxUint32 {
		newCap = math.MaxUint32
	}
	buf := make([]byte, minSize, newCap)
	copy(buf, m.buf)
	m.buf = buf
	return nil
}

// Bytes returns the whole backing slice without copying.
func (m *Slice) Bytes() []byte {
	return m.buf
}
