package transcoder

import (
	"reflect"
	"unsafe"

	"github.com/uber-go/tally/v4"

	"github.com/wippyai/blockrep/arena"
	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/heap"
	"github.com/wippyai/blockrep/schema"
	"github.com/wippyai/blockrep/value"
)

// Codec encodes and decodes Go values against the descriptors of one
// schema.Set. A Codec is safe for concurrent use; the heaps and arenas
// passed to it are not.
type Codec struct {
	compiler *Compiler
	metrics  *metrics
	cfg      Config
}

// Option configures a Codec.
type Option func(*Codec)

// WithConfig replaces the default limits.
func WithConfig(cfg Config) Option {
	return func(c *Codec) {
		c.cfg = cfg
	}
}

// WithMetrics reports counters to scope.
func WithMetrics(scope tally.Scope) Option {
	return func(c *Codec) {
		c.metrics = newMetrics(scope)
	}
}

func New(set *schema.Set, opts ...Option) (*Codec, error) {
	if set == nil {
		return nil, errors.NilPointer(errors.PhaseConfig, nil, "*schema.Set")
	}
	c := &Codec{
		compiler: NewCompiler(set),
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = newMetrics(nil)
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Codec) Compiler() *Compiler {
	return c.compiler
}

func (c *Codec) Config() Config {
	return c.cfg
}

// Plan returns the compiled binding of the named descriptor to goType.
func (c *Codec) Plan(typeName string, goType reflect.Type) (*CompiledType, error) {
	return c.compiler.CompileNamed(typeName, goType)
}

// CheckTrivialDrop reports whether goType bound to the named descriptor
// may be decoded into an arena.
func (c *Codec) CheckTrivialDrop(typeName string, goType reflect.Type) error {
	ct, err := c.Plan(typeName, goType)
	if err != nil {
		return err
	}
	return c.compiler.checkTrivialDrop(ct)
}

func (c *Codec) observe(err error) error {
	if err != nil {
		c.metrics.failure(err)
	}
	return err
}

// EncodeOwned encodes *v into h as the named descriptor. It accepts
// borrowed values too: both families are ordinary Go memory to the
// encoder. On failure h may hold unreachable blocks.
func EncodeOwned[T any](c *Codec, h *heap.Heap, typeName string, v *T) (value.Value, error) {
	ct, err := c.Plan(typeName, reflect.TypeFor[T]())
	if err != nil {
		return 0, c.observe(err)
	}
	if v == nil {
		return 0, c.observe(errors.NilPointer(errors.PhaseEncode, nil, ct.GoType.String()))
	}
	out, err := NewEncoder(h, c.cfg).Encode(ct, unsafe.Pointer(v))
	if err != nil {
		return 0, c.observe(err)
	}
	c.metrics.encodes.Inc(1)
	return out, nil
}

// DecodeOwned decodes v from h into a self-contained T. Cyclic data fails
// with a cyclic value error.
func DecodeOwned[T any](c *Codec, h *heap.Heap, typeName string, v value.Value) (T, error) {
	var out T
	ct, err := c.Plan(typeName, reflect.TypeFor[T]())
	if err != nil {
		return out, c.observe(err)
	}
	if err := NewOwnedDecoder(h, c.cfg).DecodeInto(ct, v, unsafe.Pointer(&out)); err != nil {
		var zero T
		return zero, c.observe(err)
	}
	c.metrics.decodes.Inc(1)
	return out, nil
}

// DecodeBorrowed decodes v from h into a. The result, and everything it
// references, is valid until a is reset or released. With zero-copy
// strings enabled, strings alias the image of h, which must not be
// overwritten while the result is in use. On failure every allocation
// the call made is rolled back.
func DecodeBorrowed[T any](c *Codec, h *heap.Heap, typeName string, v value.Value, a *arena.Arena) (*T, error) {
	ct, err := c.Plan(typeName, reflect.TypeFor[T]())
	if err != nil {
		return nil, c.observe(err)
	}
	if a == nil {
		return nil, c.observe(errors.NilPointer(errors.PhaseDecode, nil, "*arena.Arena"))
	}
	if err := c.compiler.checkTrivialDrop(ct); err != nil {
		return nil, c.observe(err)
	}

	mark := a.Mark()
	before := a.Stats().Used
	p, err := NewBorrowedDecoder(h, c.cfg, a).Decode(ct, v)
	if err != nil {
		a.Rollback(mark)
		return nil, c.observe(err)
	}
	c.metrics.decodes.Inc(1)
	c.metrics.arenaBytes.Inc(int64(a.Stats().Used - before))
	return (*T)(p), nil
}

// Compare orders *a and *b, which may be of different Go types bound to
// the same descriptor. Variants order by declaration, then by fields.
func Compare[A, B any](c *Codec, typeName string, a *A, b *B) (int, error) {
	pa, err := c.Plan(typeName, reflect.TypeFor[A]())
	if err != nil {
		return 0, err
	}
	pb, err := c.Plan(typeName, reflect.TypeFor[B]())
	if err != nil {
		return 0, err
	}
	if a == nil || b == nil {
		return 0, errors.NilPointer(errors.PhaseCompare, nil, pa.GoType.String())
	}
	cmp := &comparer{maxDepth: c.cfg.MaxDepth}
	return cmp.compare(pa, unsafe.Pointer(a), pb, unsafe.Pointer(b), nil)
}

// Equal reports whether *a and *b are structurally equal.
func Equal[A, B any](c *Codec, typeName string, a *A, b *B) (bool, error) {
	n, err := Compare(c, typeName, a, b)
	return n == 0 && err == nil, err
}

// Hash returns a structural hash of *v. Values that are Equal hash
// alike, whatever Go types and memory back them.
func Hash[T any](c *Codec, typeName string, v *T) (uint64, error) {
	ct, err := c.Plan(typeName, reflect.TypeFor[T]())
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, errors.NilPointer(errors.PhaseCompare, nil, ct.GoType.String())
	}
	h := newHasher(c.cfg.MaxDepth)
	if err := h.value(ct, unsafe.Pointer(v), nil); err != nil {
		return 0, err
	}
	return h.sum(), nil
}
