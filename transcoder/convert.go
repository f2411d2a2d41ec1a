package transcoder

import (
	"reflect"
	"unsafe"

	"github.com/wippyai/blockrep/arena"
	"github.com/wippyai/blockrep/errors"
)

// ToOwned deep copies *src, typically a borrowed value, into a T that no
// longer depends on any arena. T and S must both bind the named
// descriptor.
func ToOwned[T, S any](c *Codec, typeName string, src *S) (T, error) {
	var out T
	from, to, err := c.conversionPlans(typeName, reflect.TypeFor[S](), reflect.TypeFor[T]())
	if err != nil {
		return out, c.observe(err)
	}
	if src == nil {
		return out, c.observe(errors.NilPointer(errors.PhaseConvert, nil, from.GoType.String()))
	}

	s := getScratch()
	defer putScratch(s)
	v, err := NewEncoder(s.heap, c.cfg).Encode(from, unsafe.Pointer(src))
	if err != nil {
		return out, c.observe(err)
	}
	if err := NewOwnedDecoder(s.heap, c.cfg).DecodeInto(to, v, unsafe.Pointer(&out)); err != nil {
		var zero T
		return zero, c.observe(err)
	}
	c.metrics.conversions.Inc(1)
	return out, nil
}

// ToBorrowed deep allocates *src, typically an owned value, into a.
// Shared substructure and cycles in src are preserved. On failure every
// allocation the call made is rolled back.
func ToBorrowed[T, S any](c *Codec, typeName string, src *S, a *arena.Arena) (*T, error) {
	from, to, err := c.conversionPlans(typeName, reflect.TypeFor[S](), reflect.TypeFor[T]())
	if err != nil {
		return nil, c.observe(err)
	}
	if src == nil {
		return nil, c.observe(errors.NilPointer(errors.PhaseConvert, nil, from.GoType.String()))
	}
	if a == nil {
		return nil, c.observe(errors.NilPointer(errors.PhaseConvert, nil, "*arena.Arena"))
	}
	if err := c.compiler.checkTrivialDrop(to); err != nil {
		return nil, c.observe(err)
	}

	s := getScratch()
	defer putScratch(s)
	v, err := NewEncoder(s.heap, c.cfg).Encode(from, unsafe.Pointer(src))
	if err != nil {
		return nil, c.observe(err)
	}

	// The scratch heap is recycled, so strings must be copied.
	cfg := c.cfg
	cfg.ZeroCopyStrings = false
	mark := a.Mark()
	p, err := NewBorrowedDecoder(s.heap, cfg, a).Decode(to, v)
	if err != nil {
		a.Rollback(mark)
		return nil, c.observe(err)
	}
	c.metrics.conversions.Inc(1)
	return (*T)(p), nil
}

func (c *Codec) conversionPlans(typeName string, from, to reflect.Type) (*CompiledType, *CompiledType, error) {
	src, err := c.Plan(typeName, from)
	if err != nil {
		return nil, nil, err
	}
	dst, err := c.Plan(typeName, to)
	if err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}
