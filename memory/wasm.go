package memory

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/wippyai/blockrep"
)

// PageSize is the WebAssembly page size in bytes.
const PageSize = 65536

var (
	_ blockrep.Memory       = (*Wasm)(nil)
	_ blockrep.MemorySizer  = (*Wasm)(nil)
	_ blockrep.MemoryGrower = (*Wasm)(nil)
	_ blockrep.ByteViewer   = (*Wasm)(nil)
)

// Wasm adapts a wazero linear memory to blockrep.Memory.
type Wasm struct {
	Mem     api.Memory
	closers []func(context.Context) error
}

// WrapWasm wraps a memory exported by an already instantiated module.
func WrapWasm(mem api.Memory) *Wasm {
	if mem == nil {
		return nil
	}
	return &Wasm{Mem: mem}
}

// NewWasm instantiates a module whose only content is an exported linear
// memory of the given initial size in pages. maxPages of 0 leaves the
// memory bounded only by the runtime limit. Close releases the runtime.
func NewWasm(ctx context.Context, pages, maxPages uint32) (*Wasm, error) {
	cfg := wazero.NewRuntimeConfig()
	if maxPages > 0 {
		cfg = cfg.WithMemoryLimitPages(maxPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	compiled, err := rt.CompileModule(ctx, memoryModule(pages))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("compile memory module: %w", err)
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("blockrep.heap"))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("instantiate memory module: %w", err)
	}

	mem := mod.ExportedMemory("memory")
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("memory module exports no memory")
	}

	w := WrapWasm(mem)
	w.closers = append(w.closers, rt.Close)
	return w, nil
}

// memoryModule assembles a binary module exporting one memory as "memory".
func memoryModule(pages uint32) []byte {
	limit := appendULEB128(nil, pages)
	out := []byte{
		0x00, 0x61, 0x73, 0x6d, // magic
		0x01, 0x00, 0x00, 0x00, // version
		0x05, byte(2 + len(limit)), 0x01, 0x00, // memory section: 1 memory, no max
	}
	out = append(out, limit...)
	out = append(out,
		0x07, 0x0a, 0x01, // export section: 10 bytes, 1 export
		0x06, 'm', 'e', 'm', 'o', 'r', 'y',
		0x02, 0x00, // kind: memory, index 0
	)
	return out
}

func appendULEB128(dst []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			dst = append(dst, b|0x80)
			continue
		}
		return append(dst, b)
	}
}

// Close releases the runtime created by NewWasm. It is a no-op for
// memories obtained from WrapWasm.
func (m *Wasm) Close(ctx context.Context) error {
	var first error
	for _, c := range m.closers {
		if err := c(ctx); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	return first
}

// Read returns a copy of length bytes at offset.
func (m *Wasm) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// View returns a write-through view of length bytes at offset. The view
// is invalidated by Grow.
func (m *Wasm) View(offset, length uint32) ([]byte, bool) {
	return m.Mem.Read(offset, length)
}

// Write writes bytes to memory.
func (m *Wasm) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *Wasm) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.Mem.ReadByte(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Wasm) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.Mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *Wasm) WriteU8(offset uint32, value uint8) error {
	if !m.Mem.WriteByte(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Wasm) WriteU64(offset uint32, value uint64) error {
	if !m.Mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// Size returns the memory size in bytes.
func (m *Wasm) Size() uint32 {
	return m.Mem.Size()
}

// Grow adds whole pages until the memory holds at least minSize bytes.
func (m *Wasm) Grow(minSize uint32) error {
	cur := m.Mem.Size()
	if minSize <= cur {
		return nil
	}
	delta := (uint64(minSize) - uint64(cur) + PageSize - 1) / PageSize
	if _, ok := m.Mem.Grow(uint32(delta)); !ok {
		return fmt.Errorf("memory grow by %d pages failed (size %d bytes)", delta, cur)
	}
	return nil
}
