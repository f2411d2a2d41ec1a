package transcoder

import (
	"unsafe"

	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/heap"
	"github.com/wippyai/blockrep/value"
)

// Encoder writes Go values into a heap following compiled plans. Values
// reached through the same Go pointer are encoded once, so shared
// substructure stays shared and cyclic data terminates.
//
// An Encoder belongs to one heap and is not safe for concurrent use.
type Encoder struct {
	h     *heap.Heap
	cfg   Config
	memo  map[memoKey]value.Value
	depth int
}

// memoKey identifies a Go location encoded under one plan. variant is
// non-zero for the payload of a sum case.
type memoKey struct {
	ptr     unsafe.Pointer
	plan    *CompiledType
	variant int
}

func NewEncoder(h *heap.Heap, cfg Config) *Encoder {
	return &Encoder{
		h:    h,
		cfg:  cfg,
		memo: make(map[memoKey]value.Value),
	}
}

// Encode encodes the value at ptr, which must hold a ct.GoType.
func (e *Encoder) Encode(ct *CompiledType, ptr unsafe.Pointer) (value.Value, error) {
	if ptr == nil {
		return 0, errors.NilPointer(errors.PhaseEncode, nil, ct.GoType.String())
	}
	return e.pointee(ct, ptr, nil)
}

// Reset forgets every memoized pointer. Call it when the heap is reset.
func (e *Encoder) Reset() {
	clear(e.memo)
	e.depth = 0
}

func (e *Encoder) pointee(ct *CompiledType, p unsafe.Pointer, path []string) (value.Value, error) {
	key := memoKey{ptr: p, plan: ct}
	if v, ok := e.memo[key]; ok {
		return v, nil
	}
	v, err := e.encode(ct, p, path, key)
	if err != nil {
		return 0, err
	}
	e.memo[key] = v
	return v, nil
}

func (e *Encoder) encode(ct *CompiledType, ptr unsafe.Pointer, path []string, key memoKey) (value.Value, error) {
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > e.cfg.MaxDepth {
		return 0, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Path(path...).
			Detail("nesting exceeds maximum depth %d", e.cfg.MaxDepth).
			Build()
	}

	switch ct.Kind {
	case KindUnit:
		return value.Unit, nil

	case KindBool:
		return value.Bool(*(*bool)(ptr)), nil

	case KindInt, KindHandle:
		n, u, unsigned := loadInt(ptr, ct.GoKind)
		if unsigned {
			if !value.FitsUint(u) {
				return 0, errors.Overflow(errors.PhaseEncode, path, u, "63-bit immediate")
			}
			return value.Int(int64(u)), nil
		}
		if !value.FitsInt(n) {
			return 0, errors.Overflow(errors.PhaseEncode, path, n, "63-bit immediate")
		}
		return value.Int(n), nil

	case KindEnum:
		n, u, unsigned := loadInt(ptr, ct.GoKind)
		if unsigned {
			if u >= uint64(len(ct.Cases)) {
				return 0, errors.UnknownVariant(errors.PhaseEncode, path, u, len(ct.Cases), true)
			}
			n = int64(u)
		}
		if n < 0 || n >= int64(len(ct.Cases)) {
			return 0, errors.UnknownVariant(errors.PhaseEncode, path, uint64(n), len(ct.Cases), true)
		}
		return value.Int(int64(ct.Cases[n].Slot)), nil

	case KindFloat:
		return e.h.AllocDouble(loadFloat(ptr, ct.GoKind))

	case KindString, KindBytes:
		b := loadBytes(ptr, ct.GoKind)
		if len(b) > e.cfg.MaxStringSize {
			return 0, errors.New(errors.PhaseEncode, errors.KindOverflow).
				Path(path...).
				Detail("string size %d exceeds maximum %d", len(b), e.cfg.MaxStringSize).
				Build()
		}
		return e.h.AllocString(b)

	case KindOption:
		p := *(*unsafe.Pointer)(ptr)
		if p == nil {
			return value.None, nil
		}
		inner, err := e.pointee(ct.Elem, p, child(path, "[some]"))
		if err != nil {
			return 0, err
		}
		return e.block(0, []value.Value{inner}, key)

	case KindBox:
		p := *(*unsafe.Pointer)(ptr)
		if p == nil {
			return 0, errors.NilPointer(errors.PhaseEncode, path, ct.GoType.String())
		}
		return e.pointee(ct.Elem, p, path)

	case KindList:
		return e.encodeList(ct, ptr, path)

	case KindMap:
		return e.encodeMap(ct, ptr, path)

	case KindProduct:
		return e.encodeProduct(ct, ptr, path, key)

	case KindSum:
		return e.encodeSum(ct, ptr, path, key)

	default:
		return 0, errors.Unsupported(errors.PhaseEncode, "plan kind: "+ct.Kind.String())
	}
}

// block allocates a structured block holding fields.
func (e *Encoder) block(tag uint8, fields []value.Value, key memoKey) (value.Value, error) {
	v, err := e.h.AllocBlock(tag, uint32(len(fields)))
	if err != nil {
		return 0, err
	}
	for i, f := range fields {
		if err := e.h.SetField(v, uint32(i), f); err != nil {
			return 0, err
		}
	}
	if key.ptr != nil {
		e.memo[key] = v
	}
	return v, nil
}

func (e *Encoder) encodeList(ct *CompiledType, ptr unsafe.Pointer, path []string) (value.Value, error) {
	sh := loadSlice(ptr)
	if sh.Len > e.cfg.MaxListLength {
		return 0, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Path(path...).
			Detail("list length %d exceeds maximum %d", sh.Len, e.cfg.MaxListLength).
			Build()
	}

	elemPath := child(path, "[elem]")
	size := ct.Elem.GoSize
	acc := value.Nil
	cell := make([]value.Value, 2)
	for i := sh.Len - 1; i >= 0; i-- {
		elem, err := e.encode(ct.Elem, unsafe.Add(sh.Data, uintptr(i)*size), elemPath, memoKey{})
		if err != nil {
			return 0, err
		}
		cell[0], cell[1] = elem, acc
		if acc, err = e.block(0, cell, memoKey{}); err != nil {
			return 0, err
		}
	}
	return acc, nil
}

// encodeMap builds a height-balanced tree from entries sorted by key.
// Splitting at the midpoint keeps sibling heights within one of each
// other.
func (e *Encoder) encodeMap(ct *CompiledType, ptr unsafe.Pointer, path []string) (value.Value, error) {
	sh := loadSlice(ptr)
	if sh.Len > e.cfg.MaxListLength {
		return 0, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Path(path...).
			Detail("map size %d exceeds maximum %d", sh.Len, e.cfg.MaxListLength).
			Build()
	}

	size := ct.GoType.Elem().Size()
	keyField := ct.Fields[0]
	keys := comparer{maxDepth: e.cfg.MaxDepth}
	for i := 1; i < sh.Len; i++ {
		prev := unsafe.Add(sh.Data, uintptr(i-1)*size+keyField.GoOffset)
		cur := unsafe.Add(sh.Data, uintptr(i)*size+keyField.GoOffset)
		n, err := keys.compare(keyField.Type, prev, keyField.Type, cur, child(path, "key"))
		if err != nil {
			return 0, err
		}
		if n >= 0 {
			return 0, errors.New(errors.PhaseEncode, errors.KindInvalidInput).
				Path(path...).
				GoType(ct.GoType.String()).
				Detail("map keys not strictly ascending at entry %d", i).
				Build()
		}
	}

	v, _, err := e.mapNode(ct, sh.Data, size, 0, sh.Len, path)
	return v, err
}

func (e *Encoder) mapNode(ct *CompiledType, data unsafe.Pointer, size uintptr, lo, hi int, path []string) (value.Value, int, error) {
	if lo == hi {
		return value.Empty, 0, nil
	}
	mid := lo + (hi-lo)/2
	left, hl, err := e.mapNode(ct, data, size, lo, mid, path)
	if err != nil {
		return 0, 0, err
	}
	right, hr, err := e.mapNode(ct, data, size, mid+1, hi, path)
	if err != nil {
		return 0, 0, err
	}

	entry := unsafe.Add(data, uintptr(mid)*size)
	k, err := e.field(ct.Fields[0], entry, path)
	if err != nil {
		return 0, 0, err
	}
	v, err := e.field(ct.Fields[1], entry, path)
	if err != nil {
		return 0, 0, err
	}
	height := max(hl, hr) + 1
	node, err := e.block(0, []value.Value{left, k, v, right, value.Int(int64(height))}, memoKey{})
	if err != nil {
		return 0, 0, err
	}
	return node, height, nil
}

func (e *Encoder) encodeProduct(ct *CompiledType, ptr unsafe.Pointer, path []string, key memoKey) (value.Value, error) {
	if len(ct.Fields) == 0 {
		return value.Unit, nil
	}
	v, err := e.h.AllocBlock(0, uint32(len(ct.Fields)))
	if err != nil {
		return 0, err
	}
	if key.ptr != nil {
		e.memo[key] = v
	}
	if err := e.fill(v, ct.Fields, ptr, path); err != nil {
		return 0, err
	}
	return v, nil
}

func (e *Encoder) fill(v value.Value, fields []CompiledField, ptr unsafe.Pointer, path []string) error {
	for i, f := range fields {
		fv, err := e.field(f, ptr, path)
		if err != nil {
			return err
		}
		if err := e.h.SetField(v, uint32(i), fv); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) field(f CompiledField, ptr unsafe.Pointer, path []string) (value.Value, error) {
	return e.encode(f.Type, unsafe.Add(ptr, f.GoOffset), child(path, f.Name), memoKey{})
}

func (e *Encoder) encodeSum(ct *CompiledType, ptr unsafe.Pointer, path []string, key memoKey) (value.Value, error) {
	// A sum is a struct with one pointer per case; the first non-nil
	// pointer selects the case.
	for i := range ct.Cases {
		cs := &ct.Cases[i]
		p := *(*unsafe.Pointer)(unsafe.Add(ptr, cs.GoOffset))
		if p == nil {
			continue
		}
		if cs.Nullary {
			return value.Int(int64(cs.Slot)), nil
		}

		payloadKey := memoKey{ptr: p, plan: ct, variant: i + 1}
		if v, ok := e.memo[payloadKey]; ok {
			return v, nil
		}
		v, err := e.h.AllocBlock(uint8(cs.Slot), uint32(len(cs.Fields)))
		if err != nil {
			return 0, err
		}
		e.memo[payloadKey] = v
		if key.ptr != nil {
			e.memo[key] = v
		}

		casePath := child(path, cs.Name)
		if cs.Direct {
			fv, err := e.pointee(cs.Fields[0].Type, p, casePath)
			if err != nil {
				return 0, err
			}
			if err := e.h.SetField(v, 0, fv); err != nil {
				return 0, err
			}
			return v, nil
		}
		if err := e.fill(v, cs.Fields, p, casePath); err != nil {
			return 0, err
		}
		return v, nil
	}
	return 0, errors.New(errors.PhaseEncode, errors.KindNoActiveVariant).
		Path(path...).
		GoType(ct.GoType.String()).
		Detail("sum %s has no case set", ct.Name).
		Build()
}
