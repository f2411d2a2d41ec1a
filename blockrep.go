package blockrep

// Memory is a byte-addressed store holding a foreign value image.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of a Memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// MemoryGrower is implemented by memories that can be extended in place.
// Grow must keep existing contents at the same offsets.
type MemoryGrower interface {
	Grow(minSize uint32) error
}

// ByteViewer is implemented by memories whose contents live in Go memory
// and can be viewed without copying. The returned slice aliases the
// memory and is only valid until the next Grow.
type ByteViewer interface {
	View(offset, length uint32) ([]byte, bool)
}
