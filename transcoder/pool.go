package transcoder

import (
	"sync"

	"github.com/wippyai/blockrep/heap"
	"github.com/wippyai/blockrep/memory"
)

const (
	// Scratch heap limits to prevent memory bloat
	scratchInitSize = 4 << 10
	scratchMaxSize  = 1 << 20
)

// scratch is a heap used as the intermediate image of a conversion.
type scratch struct {
	mem  *memory.Slice
	heap *heap.Heap
}

var scratchPool = sync.Pool{
	New: func() any {
		mem := memory.NewSlice(scratchInitSize)
		return &scratch{mem: mem, heap: heap.New(mem)}
	},
}

func getScratch() *scratch {
	return scratchPool.Get().(*scratch)
}

func putScratch(s *scratch) {
	if s == nil || s.mem.Size() > scratchMaxSize {
		return // reject oversized
	}
	s.heap.Reset()
	scratchPool.Put(s)
}
