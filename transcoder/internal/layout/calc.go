package layout

import (
	"sync"

	"github.com/wippyai/blockrep/schema"
)

// Info is the derived encoding shape of one descriptor.
type Info struct {
	// Tags is set for sums.
	Tags *TagTable
	// Arity is the block size of a product. Zero-field products encode
	// as immediate 0 and have Arity 0.
	Arity int
}

// TagTable maps the declared variants of a sum onto the two tag spaces of
// the encoding.
type TagTable struct {
	// Immediates maps an immediate payload to a declared variant index.
	Immediates []int
	// Blocks maps a block tag to a declared variant index.
	Blocks []int
	// Slots maps a declared variant index to its immediate payload or
	// block tag.
	Slots []int
	// Arity holds the field count of each declared variant.
	Arity []int
}

// NewTagTable numbers nullary variants 0..N-1 and variants with fields
// 0..M-1, each in declaration order.
func NewTagTable(cases []schema.Case) *TagTable {
	t := &TagTable{
		Slots: make([]int, len(cases)),
		Arity: make([]int, len(cases)),
	}
	for i, c := range cases {
		t.Arity[i] = len(c.Fields)
		if c.Nullary() {
			t.Slots[i] = len(t.Immediates)
			t.Immediates = append(t.Immediates, i)
		} else {
			t.Slots[i] = len(t.Blocks)
			t.Blocks = append(t.Blocks, i)
		}
	}
	return t
}

// Nullary reports whether variant i is encoded as an immediate.
func (t *TagTable) Nullary(i int) bool {
	return t.Arity[i] == 0
}

// FromImmediate returns the variant encoded by immediate n.
func (t *TagTable) FromImmediate(n int64) (int, bool) {
	if n < 0 || n >= int64(len(t.Immediates)) {
		return 0, false
	}
	return t.Immediates[n], true
}

// FromTag returns the variant encoded by a block with the given tag.
func (t *TagTable) FromTag(tag uint8) (int, bool) {
	if int(tag) >= len(t.Blocks) {
		return 0, false
	}
	return t.Blocks[tag], true
}

// Calculator caches Info per descriptor. It is safe for concurrent use.
type Calculator struct {
	cache map[*schema.Descriptor]Info
	mu    sync.Mutex
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*schema.Descriptor]Info),
	}
}

func (c *Calculator) Calculate(d *schema.Descriptor) Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.cache[d]; ok {
		return cached
	}

	var info Info
	switch d.Kind {
	case schema.KindProduct:
		info.Arity = len(d.Fields)
	case schema.KindSum:
		info.Tags = NewTagTable(d.Variants)
	}

	c.cache[d] = info
	return info
}
