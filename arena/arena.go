// Package arena provides the bump allocator that backs borrowed decodes.
//
// An Arena hands out memory from a list of fixed chunks. Chunks are never
// moved or reallocated, so every address the arena returns stays valid
// until Reset, Rollback past it, or Release. Nothing is freed
// individually.
//
// Values built in an arena may hold pointers into the arena itself, into
// memory registered with Retain, or into static data. Chunk contents are
// not scanned by the garbage collector, so a value must never reference
// ordinary Go heap memory that is not otherwise kept alive. Every chunk
// carries a pointer back to its Arena, so any pointer into a chunk keeps
// the arena, all of its chunks and everything it retains alive.
//
// An Arena is owned by one decode session and is not safe for concurrent
// use.
package arena

import (
	"math"
	"reflect"
	"unsafe"

	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/internal/abi"
	"go.uber.org/zap"
)

// DefaultChunkSize is the size of a regular chunk.
const DefaultChunkSize = 64 << 10

// Offset identifies an allocation: chunk index in the high 32 bits,
// position within the chunk in the low 32 bits.
type Offset uint64

// ZeroOffset is returned for zero-size allocations.
const ZeroOffset Offset = math.MaxUint64

func makeOffset(chunk, pos int) Offset {
	return Offset(uint64(chunk)<<32 | uint64(uint32(pos)))
}

func (o Offset) chunk() int { return int(o >> 32) }
func (o Offset) pos() int   { return int(uint32(o)) }

// zerobase is the address handed out for zero-size allocations.
var zerobase uint64

// chunk memory is a struct{Owner *Arena; Words [n]uint64} built with
// reflect, so the collector scans the owner pointer but not the words.
type chunk struct {
	mem   unsafe.Pointer
	words unsafe.Pointer
	bytes int
}

var (
	arenaPtrType = reflect.TypeOf((*Arena)(nil))
	wordType     = reflect.TypeOf(uint64(0))
)

// newChunk allocates a chunk of at least size bytes owned by a. Sizes are
// rounded up to a power of two to bound the number of distinct chunk
// types.
func newChunk(a *Arena, size int) *chunk {
	words := 1
	for words*8 < size {
		words <<= 1
	}
	t := reflect.StructOf([]reflect.StructField{
		{Name: "Owner", Type: arenaPtrType},
		{Name: "Words", Type: reflect.ArrayOf(words, wordType)},
	})
	v := reflect.New(t)
	v.Elem().Field(0).Set(reflect.ValueOf(a))
	mem := v.UnsafePointer()
	return &chunk{
		mem:   mem,
		words: unsafe.Add(mem, t.Field(1).Offset),
		bytes: words * 8,
	}
}

func (c *chunk) base() unsafe.Pointer {
	return c.words
}

func (c *chunk) size() int {
	return c.bytes
}

// Arena is a chunked bump allocator.
type Arena struct {
	log       *zap.Logger
	chunks    []*chunk
	retained  []any
	cur       int
	pos       int
	used      uint64
	allocs    uint64
	capacity  uint64
	chunkSize int
	released  bool
}

// Option configures an Arena.
type Option func(*Arena)

// WithCapacity bounds the bytes the arena hands out, padding included.
// Zero means unbounded.
func WithCapacity(bytes uint64) Option {
	return func(a *Arena) {
		a.capacity = bytes
	}
}

// WithChunkSize sets the size of regular chunks. Larger requests get a
// dedicated chunk.
func WithChunkSize(bytes int) Option {
	return func(a *Arena) {
		if bytes > 0 {
			a.chunkSize = bytes
		}
	}
}

// WithLogger overrides the package logger for this arena.
func WithLogger(l *zap.Logger) Option {
	return func(a *Arena) {
		a.log = l
	}
}

// New creates an empty arena. No memory is reserved until the first
// allocation.
func New(opts ...Option) *Arena {
	a := &Arena{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = Logger()
	}
	return a
}

// Allocate reserves size zeroed bytes aligned to align, which must be a
// power of two.
func (a *Arena) Allocate(size, align uintptr) (Offset, error) {
	if a.released {
		return 0, errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			Detail("allocation from a released arena").
			Build()
	}
	if align == 0 {
		align = 1
	}
	if !abi.IsPowerOfTwo(align) {
		return 0, errors.InvalidInput(errors.PhaseAlloc, "alignment must be a power of two")
	}
	if size == 0 {
		return ZeroOffset, nil
	}
	if size > abi.MaxAlloc {
		return 0, a.exhausted(size, align)
	}

	if a.cur < len(a.chunks) {
		if off, ok := a.bump(a.cur, size, align); ok {
			return off, nil
		}
	}

	// Move to the next chunk that fits, reusing chunks kept by Reset.
	for a.cur+1 < len(a.chunks) {
		a.cur++
		a.pos = 0
		if off, ok := a.bump(a.cur, size, align); ok {
			return off, nil
		}
	}

	n := a.chunkSize
	if need := int(size + align); need > n {
		n = need
	}
	if a.capacity > 0 && a.used+uint64(size) > a.capacity {
		return 0, a.exhausted(size, align)
	}
	a.chunks = append(a.chunks, newChunk(a, n))
	a.cur = len(a.chunks) - 1
	a.pos = 0
	a.log.Debug("arena chunk added", zap.Int("chunk", a.cur), zap.Int("size", n))

	off, ok := a.bump(a.cur, size, align)
	if !ok {
		return 0, a.exhausted(size, align)
	}
	return off, nil
}

// bump tries to carve size bytes out of chunk i at the current position.
func (a *Arena) bump(i int, size, align uintptr) (Offset, bool) {
	c := a.chunks[i]
	base := uintptr(c.base())
	start := abi.AlignUintptr(base+uintptr(a.pos), align) - base
	end := start + size
	if end > uintptr(c.size()) {
		return 0, false
	}
	grow := uint64(end) - uint64(a.pos)
	if a.capacity > 0 && a.used+grow > a.capacity {
		return 0, false
	}

	b := unsafe.Slice((*byte)(c.base()), c.size())
	clear(b[start:end])
	a.pos = int(end)
	a.used += grow
	a.allocs++
	return makeOffset(i, int(start)), true
}

func (a *Arena) exhausted(size, align uintptr) error {
	a.log.Warn("arena capacity exhausted",
		zap.Uint64("request", uint64(size)),
		zap.Uint64("used", a.used),
		zap.Uint64("capacity", a.capacity))
	limit := a.capacity
	if limit == 0 {
		limit = abi.MaxAlloc
	}
	return errors.ArenaExhausted(errors.PhaseAlloc, uint64(size), uint64(align), a.used, limit)
}

// Pointer returns the address of an allocation.
func (a *Arena) Pointer(off Offset) unsafe.Pointer {
	if off == ZeroOffset {
		return unsafe.Pointer(&zerobase)
	}
	return unsafe.Add(a.chunks[off.chunk()].base(), off.pos())
}

// Bytes returns n bytes starting at off.
func (a *Arena) Bytes(off Offset, n int) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(a.Pointer(off)), n)
}

// Alloc allocates and returns a pointer in one step.
func (a *Arena) Alloc(size, align uintptr) (unsafe.Pointer, error) {
	off, err := a.Allocate(size, align)
	if err != nil {
		return nil, err
	}
	return a.Pointer(off), nil
}

// Retain keeps x reachable for as long as the arena is. Borrowed values
// that alias an external buffer register it here.
func (a *Arena) Retain(x any) {
	a.retained = append(a.retained, x)
}

// Mark is a rollback point.
type Mark struct {
	cur      int
	pos      int
	used     uint64
	allocs   uint64
	retained int
}

// Mark records the current allocation position.
func (a *Arena) Mark() Mark {
	return Mark{cur: a.cur, pos: a.pos, used: a.used, allocs: a.allocs, retained: len(a.retained)}
}

// Rollback discards every allocation made after m. Pointers obtained after
// m must not be used afterwards.
func (a *Arena) Rollback(m Mark) {
	if a.released {
		return
	}
	a.cur, a.pos, a.used, a.allocs = m.cur, m.pos, m.used, m.allocs
	clear(a.retained[m.retained:])
	a.retained = a.retained[:m.retained]
}

// Reset discards every allocation but keeps the chunks for reuse.
func (a *Arena) Reset() {
	a.cur, a.pos, a.used, a.allocs = 0, 0, 0, 0
	a.retained = nil
	a.released = false
}

// Release drops all chunks. The arena may be reused after Reset.
func (a *Arena) Release() {
	a.log.Debug("arena released", zap.Int("chunks", len(a.chunks)), zap.Uint64("used", a.used))
	a.chunks = nil
	a.retained = nil
	a.cur, a.pos, a.used, a.allocs = 0, 0, 0, 0
	a.released = true
}

// Released reports whether Release has been called since the last Reset.
func (a *Arena) Released() bool {
	return a.released
}

// Stats describes arena usage.
type Stats struct {
	Chunks   int
	Used     uint64
	Reserved uint64
	Capacity uint64
	Allocs   uint64
	Retained int
}

func (a *Arena) Stats() Stats {
	var reserved uint64
	for _, c := range a.chunks {
		reserved += uint64(c.size())
	}
	return Stats{
		Chunks:   len(a.chunks),
		Used:     a.used,
		Reserved: reserved,
		Capacity: a.capacity,
		Allocs:   a.allocs,
		Retained: len(a.retained),
	}
}
