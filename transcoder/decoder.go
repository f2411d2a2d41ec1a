package transcoder

import (
	"reflect"
	"unicode/utf8"
	"unsafe"

	"github.com/wippyai/blockrep"
	"github.com/wippyai/blockrep/arena"
	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/heap"
	"github.com/wippyai/blockrep/value"
)

// unitValue backs every pointer to a zero-size type produced by a decode.
var unitValue struct{}

// UnitPtr is the address stored in the case pointer of a decoded nullary
// variant.
var UnitPtr = unsafe.Pointer(&unitValue)

// strategy decides where decoded values live.
type strategy interface {
	alloc(t reflect.Type) (unsafe.Pointer, error)
	makeSlice(elem reflect.Type, n int) (unsafe.Pointer, error)
	// text returns the bytes of a string block in memory the result may
	// keep referencing.
	text(h *heap.Heap, v value.Value) ([]byte, error)
	// shares reports whether a block reached twice decodes to one value.
	// Shared pointees are memoized before their fields are decoded, which
	// lets cycles resolve to themselves.
	shares() bool
}

// ownedStrategy allocates on the Go heap.
type ownedStrategy struct{}

func (ownedStrategy) alloc(t reflect.Type) (unsafe.Pointer, error) {
	return reflect.New(t).UnsafePointer(), nil
}

func (ownedStrategy) makeSlice(elem reflect.Type, n int) (unsafe.Pointer, error) {
	return reflect.MakeSlice(reflect.SliceOf(elem), n, n).UnsafePointer(), nil
}

func (ownedStrategy) text(h *heap.Heap, v value.Value) ([]byte, error) {
	return h.ReadString(v)
}

func (ownedStrategy) shares() bool { return false }

// borrowedStrategy allocates in an arena. With zeroCopy set, string bytes
// alias the heap image, which the arena retains.
type borrowedStrategy struct {
	a        *arena.Arena
	zeroCopy bool
}

func (s *borrowedStrategy) alloc(t reflect.Type) (unsafe.Pointer, error) {
	return s.a.AllocType(t)
}

func (s *borrowedStrategy) makeSlice(elem reflect.Type, n int) (unsafe.Pointer, error) {
	return s.a.AllocArray(elem, n)
}

func (s *borrowedStrategy) text(h *heap.Heap, v value.Value) ([]byte, error) {
	if s.zeroCopy {
		data, aliased, err := h.ViewString(v)
		if err != nil || aliased {
			return data, err
		}
		return arena.CopyBytes(s.a, data)
	}
	data, err := h.ReadString(v)
	if err != nil {
		return nil, err
	}
	return arena.CopyBytes(s.a, data)
}

func (s *borrowedStrategy) shares() bool { return true }

// retainImage pins the backing bytes of h so zero-copy strings stay valid
// for the life of the arena.
func (s *borrowedStrategy) retainImage(h *heap.Heap) {
	if !s.zeroCopy {
		return
	}
	viewer, ok := h.Memory().(blockrep.ByteViewer)
	if !ok {
		return
	}
	if img, ok := viewer.View(0, h.Used()); ok {
		s.a.Retain(img)
	}
}

// decodeKey identifies a block decoded under one plan. variant is
// non-zero for the payload of a sum case.
type decodeKey struct {
	plan    *CompiledType
	addr    uint32
	variant int
}

// Decoder reads heap values into Go memory following compiled plans.
// It is not safe for concurrent use.
type Decoder struct {
	h      *heap.Heap
	strat  strategy
	memo   map[decodeKey]unsafe.Pointer
	onPath map[uint32]struct{}
	cfg    Config
	depth  int
}

// NewOwnedDecoder returns a decoder producing ordinary Go values. Every
// reference decodes to its own copy, so a block reached twice yields two
// independent values; a cycle fails with a cyclic value error.
func NewOwnedDecoder(h *heap.Heap, cfg Config) *Decoder {
	return newDecoder(h, cfg, ownedStrategy{})
}

// NewBorrowedDecoder returns a decoder allocating every value in a.
// Shared blocks and cycles are reconstructed.
func NewBorrowedDecoder(h *heap.Heap, cfg Config, a *arena.Arena) *Decoder {
	s := &borrowedStrategy{a: a, zeroCopy: cfg.ZeroCopyStrings}
	s.retainImage(h)
	return newDecoder(h, cfg, s)
}

func newDecoder(h *heap.Heap, cfg Config, s strategy) *Decoder {
	return &Decoder{
		h:      h,
		cfg:    cfg,
		strat:  s,
		memo:   make(map[decodeKey]unsafe.Pointer),
		onPath: make(map[uint32]struct{}),
	}
}

// Decode decodes v into a freshly allocated ct.GoType and returns its
// address.
func (d *Decoder) Decode(ct *CompiledType, v value.Value) (unsafe.Pointer, error) {
	return d.pointee(ct, v, nil)
}

// DecodeInto decodes v into the zeroed ct.GoType at dst.
func (d *Decoder) DecodeInto(ct *CompiledType, v value.Value, dst unsafe.Pointer) error {
	return d.decode(ct, v, dst, nil)
}

func (d *Decoder) pointee(ct *CompiledType, v value.Value, path []string) (unsafe.Pointer, error) {
	key := decodeKey{plan: ct, addr: v.Addr()}
	share := v.IsBlock() && d.strat.shares()
	if share {
		if p, ok := d.memo[key]; ok {
			return p, nil
		}
	}
	p, err := d.strat.alloc(ct.GoType)
	if err != nil {
		return nil, errors.WithPath(err, path)
	}
	if share {
		d.memo[key] = p
	}
	if err := d.decode(ct, v, p, path); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Decoder) block(v value.Value, path []string) (heap.Block, error) {
	b, err := d.h.Block(v)
	if err != nil {
		return heap.Block{}, errors.WithPath(err, path)
	}
	return b, nil
}

func (d *Decoder) field(b heap.Block, i int, path []string) (value.Value, error) {
	f, err := b.Field(uint32(i))
	if err != nil {
		return 0, errors.WithPath(err, path)
	}
	return f, nil
}

// enter marks addr as being decoded and fails when it already is.
func (d *Decoder) enter(addr uint32, path []string) error {
	if _, ok := d.onPath[addr]; ok {
		return errors.CyclicValue(errors.PhaseDecode, path, addr)
	}
	d.onPath[addr] = struct{}{}
	return nil
}

func (d *Decoder) leave(addr uint32) {
	delete(d.onPath, addr)
}

func (d *Decoder) decode(ct *CompiledType, v value.Value, dst unsafe.Pointer, path []string) error {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > d.cfg.MaxDepth {
		return errors.New(errors.PhaseDecode, errors.KindOverflow).
			Path(path...).
			Detail("nesting exceeds maximum depth %d", d.cfg.MaxDepth).
			Build()
	}

	switch ct.Kind {
	case KindUnit:
		if v != value.Unit {
			return errors.MalformedBlock(errors.PhaseDecode, path, "expected unit, found %s", v)
		}
		return nil

	case KindBool:
		switch v {
		case value.False:
			*(*bool)(dst) = false
		case value.True:
			*(*bool)(dst) = true
		default:
			return errors.MalformedBlock(errors.PhaseDecode, path, "expected bool, found %s", v)
		}
		return nil

	case KindInt, KindHandle:
		if !v.IsImmediate() {
			return errors.MalformedBlock(errors.PhaseDecode, path, "expected immediate integer, found %s", v)
		}
		if !storeInt(dst, ct.GoKind, v.Int()) {
			return errors.Overflow(errors.PhaseDecode, path, v.Int(), ct.GoType.String())
		}
		return nil

	case KindEnum:
		if !v.IsImmediate() {
			b, err := d.block(v, path)
			if err != nil {
				return err
			}
			return errors.UnknownVariant(errors.PhaseDecode, path, uint64(b.Tag()), 0, false)
		}
		idx, ok := ct.Tags.FromImmediate(v.Int())
		if !ok {
			return errors.UnknownVariant(errors.PhaseDecode, path, uint64(v.Int()), len(ct.Tags.Immediates), true)
		}
		if !storeInt(dst, ct.GoKind, int64(idx)) {
			return errors.Overflow(errors.PhaseDecode, path, idx, ct.GoType.String())
		}
		return nil

	case KindFloat:
		f, err := d.h.ReadDouble(v)
		if err != nil {
			return errors.WithPath(err, path)
		}
		storeFloat(dst, ct.GoKind, f)
		return nil

	case KindString, KindBytes:
		return d.decodeText(ct, v, dst, path)

	case KindOption:
		if v == value.None {
			*(*unsafe.Pointer)(dst) = nil
			return nil
		}
		b, err := d.block(v, path)
		if err != nil {
			return err
		}
		if b.Tag() != 0 || b.Size() != 1 {
			return errors.MalformedBlock(errors.PhaseDecode, path,
				"expected some block with tag 0 and size 1, found tag %d size %d", b.Tag(), b.Size())
		}
		if err := d.enter(b.Addr, path); err != nil {
			return err
		}
		defer d.leave(b.Addr)
		inner, err := d.field(b, 0, path)
		if err != nil {
			return err
		}
		p, err := d.pointee(ct.Elem, inner, child(path, "[some]"))
		if err != nil {
			return err
		}
		*(*unsafe.Pointer)(dst) = p
		return nil

	case KindBox:
		p, err := d.pointee(ct.Elem, v, path)
		if err != nil {
			return err
		}
		*(*unsafe.Pointer)(dst) = p
		return nil

	case KindList:
		return d.decodeList(ct, v, dst, path)

	case KindMap:
		return d.decodeMap(ct, v, dst, path)

	case KindProduct:
		return d.decodeProduct(ct, v, dst, path)

	case KindSum:
		return d.decodeSum(ct, v, dst, path)

	default:
		return errors.Unsupported(errors.PhaseDecode, "plan kind: "+ct.Kind.String())
	}
}

func (d *Decoder) decodeText(ct *CompiledType, v value.Value, dst unsafe.Pointer, path []string) error {
	data, err := d.strat.text(d.h, v)
	if err != nil {
		return errors.WithPath(err, path)
	}
	if len(data) > d.cfg.MaxStringSize {
		return errors.New(errors.PhaseDecode, errors.KindOverflow).
			Path(path...).
			Detail("string size %d exceeds maximum %d", len(data), d.cfg.MaxStringSize).
			Build()
	}
	if ct.Kind == KindString && d.cfg.ValidateUTF8 && !utf8.Valid(data) {
		return errors.InvalidUTF8(errors.PhaseDecode, path, data)
	}

	switch {
	case len(data) == 0:
		// Empty strings and byte slices decode to their zero values.
	case ct.GoKind == reflect.String:
		*(*string)(dst) = unsafe.String(unsafe.SliceData(data), len(data))
	default:
		*(*[]byte)(dst) = data
	}
	return nil
}

func (d *Decoder) decodeList(ct *CompiledType, v value.Value, dst unsafe.Pointer, path []string) error {
	var elems []value.Value
	var spine []uint32
	defer func() {
		for _, addr := range spine {
			d.leave(addr)
		}
	}()

	for cur := v; cur != value.Nil; {
		if cur.IsImmediate() {
			return errors.MalformedBlock(errors.PhaseDecode, path, "list terminated by %s", cur)
		}
		b, err := d.block(cur, path)
		if err != nil {
			return err
		}
		if b.Tag() != 0 || b.Size() != 2 {
			return errors.MalformedBlock(errors.PhaseDecode, path,
				"expected cons cell with tag 0 and size 2, found tag %d size %d", b.Tag(), b.Size())
		}
		if err := d.enter(b.Addr, path); err != nil {
			return err
		}
		spine = append(spine, b.Addr)
		if len(spine) > d.cfg.MaxListLength {
			return errors.New(errors.PhaseDecode, errors.KindOverflow).
				Path(path...).
				Detail("list length exceeds maximum %d", d.cfg.MaxListLength).
				Build()
		}
		head, err := d.field(b, 0, path)
		if err != nil {
			return err
		}
		if cur, err = d.field(b, 1, path); err != nil {
			return err
		}
		elems = append(elems, head)
	}

	n := len(elems)
	if n == 0 {
		storeSlice(dst, nil, 0)
		return nil
	}
	data, err := d.strat.makeSlice(ct.Elem.GoType, n)
	if err != nil {
		return errors.WithPath(err, path)
	}
	elemPath := child(path, "[elem]")
	size := ct.Elem.GoSize
	for i, elem := range elems {
		if err := d.decode(ct.Elem, elem, unsafe.Add(data, uintptr(i)*size), elemPath); err != nil {
			return err
		}
	}
	storeSlice(dst, data, n)
	return nil
}

type mapEntry struct {
	key, value value.Value
}

// decodeMap reads a balanced tree in key order into a slice of entries.
func (d *Decoder) decodeMap(ct *CompiledType, v value.Value, dst unsafe.Pointer, path []string) error {
	var entries []mapEntry
	if _, err := d.mapTree(v, 0, &entries, path); err != nil {
		return err
	}

	n := len(entries)
	if n == 0 {
		storeSlice(dst, nil, 0)
		return nil
	}
	entry := ct.GoType.Elem()
	data, err := d.strat.makeSlice(entry, n)
	if err != nil {
		return errors.WithPath(err, path)
	}
	kf, vf := ct.Fields[0], ct.Fields[1]
	for i, e := range entries {
		p := unsafe.Add(data, uintptr(i)*entry.Size())
		if err := d.decode(kf.Type, e.key, unsafe.Add(p, kf.GoOffset), child(path, kf.Name)); err != nil {
			return err
		}
		if err := d.decode(vf.Type, e.value, unsafe.Add(p, vf.GoOffset), child(path, vf.Name)); err != nil {
			return err
		}
	}
	storeSlice(dst, data, n)
	return nil
}

// mapTree appends the entries under v in order and returns the height of
// v. Node heights are checked against the subtrees they cover.
func (d *Decoder) mapTree(v value.Value, level int, entries *[]mapEntry, path []string) (int, error) {
	if v == value.Empty {
		return 0, nil
	}
	if level > d.cfg.MaxDepth {
		return 0, errors.New(errors.PhaseDecode, errors.KindOverflow).
			Path(path...).
			Detail("map tree exceeds maximum depth %d", d.cfg.MaxDepth).
			Build()
	}
	b, err := d.block(v, path)
	if err != nil {
		return 0, err
	}
	if b.Tag() != 0 || b.Size() != 5 {
		return 0, errors.MalformedBlock(errors.PhaseDecode, path,
			"expected map node with tag 0 and size 5, found tag %d size %d", b.Tag(), b.Size())
	}
	if err := d.enter(b.Addr, path); err != nil {
		return 0, err
	}
	defer d.leave(b.Addr)

	var f [5]value.Value
	for i := range f {
		if f[i], err = d.field(b, i, path); err != nil {
			return 0, err
		}
	}
	hl, err := d.mapTree(f[0], level+1, entries, path)
	if err != nil {
		return 0, err
	}
	if len(*entries) >= d.cfg.MaxListLength {
		return 0, errors.New(errors.PhaseDecode, errors.KindOverflow).
			Path(path...).
			Detail("map size exceeds maximum %d", d.cfg.MaxListLength).
			Build()
	}
	*entries = append(*entries, mapEntry{key: f[1], value: f[2]})
	hr, err := d.mapTree(f[3], level+1, entries, path)
	if err != nil {
		return 0, err
	}
	height := max(hl, hr) + 1
	if !f[4].IsImmediate() || f[4].Int() != int64(height) {
		return 0, errors.MalformedBlock(errors.PhaseDecode, path,
			"map node at 0x%x records height %s, subtrees give %d", b.Addr, f[4], height)
	}
	return height, nil
}

func (d *Decoder) decodeProduct(ct *CompiledType, v value.Value, dst unsafe.Pointer, path []string) error {
	if len(ct.Fields) == 0 {
		if v != value.Unit {
			return errors.MalformedBlock(errors.PhaseDecode, path, "expected empty product, found %s", v)
		}
		return nil
	}
	b, err := d.block(v, path)
	if err != nil {
		return err
	}
	if b.Tag() != 0 {
		return errors.MalformedBlock(errors.PhaseDecode, path, "expected product block with tag 0, found tag %d", b.Tag())
	}
	if int(b.Size()) != len(ct.Fields) {
		return errors.ArityMismatch(errors.PhaseDecode, path, len(ct.Fields), int(b.Size()))
	}
	if err := d.enter(b.Addr, path); err != nil {
		return err
	}
	defer d.leave(b.Addr)
	return d.fill(b, ct.Fields, dst, path)
}

func (d *Decoder) fill(b heap.Block, fields []CompiledField, dst unsafe.Pointer, path []string) error {
	for i, f := range fields {
		fieldPath := child(path, f.Name)
		fv, err := d.field(b, i, fieldPath)
		if err != nil {
			return err
		}
		if err := d.decode(f.Type, fv, unsafe.Add(dst, f.GoOffset), fieldPath); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) decodeSum(ct *CompiledType, v value.Value, dst unsafe.Pointer, path []string) error {
	if v.IsImmediate() {
		idx, ok := ct.Tags.FromImmediate(v.Int())
		if !ok {
			return errors.UnknownVariant(errors.PhaseDecode, path, uint64(v.Int()), len(ct.Tags.Immediates), true)
		}
		*(*unsafe.Pointer)(unsafe.Add(dst, ct.Cases[idx].GoOffset)) = UnitPtr
		return nil
	}

	b, err := d.block(v, path)
	if err != nil {
		return err
	}
	idx, ok := ct.Tags.FromTag(b.Tag())
	if !ok {
		return errors.UnknownVariant(errors.PhaseDecode, path, uint64(b.Tag()), len(ct.Tags.Blocks), false)
	}
	cs := &ct.Cases[idx]
	casePath := child(path, cs.Name)
	if int(b.Size()) != len(cs.Fields) {
		return errors.ArityMismatch(errors.PhaseDecode, casePath, len(cs.Fields), int(b.Size()))
	}
	slot := (*unsafe.Pointer)(unsafe.Add(dst, cs.GoOffset))

	key := decodeKey{plan: ct, addr: b.Addr, variant: idx + 1}
	share := d.strat.shares()
	if p, ok := d.memo[key]; ok && share {
		*slot = p
		return nil
	}
	if err := d.enter(b.Addr, path); err != nil {
		return err
	}
	defer d.leave(b.Addr)

	p, err := d.strat.alloc(cs.Payload)
	if err != nil {
		return errors.WithPath(err, casePath)
	}
	if share {
		d.memo[key] = p
	}
	if cs.Direct {
		fv, err := d.field(b, 0, casePath)
		if err != nil {
			return err
		}
		if err := d.decode(cs.Fields[0].Type, fv, p, casePath); err != nil {
			return err
		}
	} else if err := d.fill(b, cs.Fields, p, casePath); err != nil {
		return err
	}
	*slot = p
	return nil
}
