package transcoder

import (
	"bytes"
	"cmp"
	"unsafe"

	"github.com/wippyai/blockrep/errors"
)

// comparer orders two Go values bound to the same descriptor. The plans
// may bind different Go types, so owned and borrowed values compare
// directly.
type comparer struct {
	maxDepth int
	depth    int
}

// deref follows indirect boxes down to the value they hold.
func deref(ct *CompiledType, p unsafe.Pointer, path []string) (*CompiledType, unsafe.Pointer, error) {
	for ct.Kind == KindBox {
		p = *(*unsafe.Pointer)(p)
		if p == nil {
			return nil, nil, errors.NilPointer(errors.PhaseCompare, path, ct.GoType.String())
		}
		ct = ct.Elem
	}
	return ct, p, nil
}

// activeCase returns the declared index of the variant held at p and the
// address of its payload.
func activeCase(ct *CompiledType, p unsafe.Pointer, path []string) (*CompiledCase, unsafe.Pointer, error) {
	if ct.Kind == KindEnum {
		n, u, unsigned := loadInt(p, ct.GoKind)
		if unsigned {
			if u >= uint64(len(ct.Cases)) {
				return nil, nil, errors.UnknownVariant(errors.PhaseCompare, path, u, len(ct.Cases), true)
			}
			n = int64(u)
		}
		if n < 0 || n >= int64(len(ct.Cases)) {
			return nil, nil, errors.UnknownVariant(errors.PhaseCompare, path, uint64(n), len(ct.Cases), true)
		}
		return &ct.Cases[n], nil, nil
	}
	for i := range ct.Cases {
		cs := &ct.Cases[i]
		if payload := *(*unsafe.Pointer)(unsafe.Add(p, cs.GoOffset)); payload != nil {
			return cs, payload, nil
		}
	}
	return nil, nil, errors.New(errors.PhaseCompare, errors.KindNoActiveVariant).
		Path(path...).
		GoType(ct.GoType.String()).
		Build()
}

// entrySize is the Go size of one entry of a map plan.
func entrySize(ct *CompiledType) uintptr {
	return ct.GoType.Elem().Size()
}

// compareInts orders two integers loaded by loadInt.
func compareInts(an int64, au uint64, aUnsigned bool, bn int64, bu uint64, bUnsigned bool) int {
	switch {
	case !aUnsigned && !bUnsigned:
		return cmp.Compare(an, bn)
	case aUnsigned && bUnsigned:
		return cmp.Compare(au, bu)
	case aUnsigned:
		if bn < 0 {
			return 1
		}
		return cmp.Compare(au, uint64(bn))
	default:
		if an < 0 {
			return -1
		}
		return cmp.Compare(uint64(an), bu)
	}
}

func (c *comparer) compare(pa *CompiledType, a unsafe.Pointer, pb *CompiledType, b unsafe.Pointer, path []string) (int, error) {
	c.depth++
	defer func() { c.depth-- }()
	if c.depth > c.maxDepth {
		return 0, errors.New(errors.PhaseCompare, errors.KindOverflow).
			Path(path...).
			Detail("nesting exceeds maximum depth %d", c.maxDepth).
			Build()
	}

	pa, a, err := deref(pa, a, path)
	if err != nil {
		return 0, err
	}
	pb, b, err = deref(pb, b, path)
	if err != nil {
		return 0, err
	}

	switch pa.Kind {
	case KindUnit:
		return 0, nil

	case KindBool:
		x, y := *(*bool)(a), *(*bool)(b)
		switch {
		case x == y:
			return 0, nil
		case y:
			return -1, nil
		default:
			return 1, nil
		}

	case KindInt, KindHandle:
		an, au, aUnsigned := loadInt(a, pa.GoKind)
		bn, bu, bUnsigned := loadInt(b, pb.GoKind)
		return compareInts(an, au, aUnsigned, bn, bu, bUnsigned), nil

	case KindFloat:
		return cmp.Compare(loadFloat(a, pa.GoKind), loadFloat(b, pb.GoKind)), nil

	case KindString, KindBytes:
		return bytes.Compare(loadBytes(a, pa.GoKind), loadBytes(b, pb.GoKind)), nil

	case KindOption:
		x, y := *(*unsafe.Pointer)(a), *(*unsafe.Pointer)(b)
		switch {
		case x == nil && y == nil:
			return 0, nil
		case x == nil:
			return -1, nil
		case y == nil:
			return 1, nil
		}
		return c.compare(pa.Elem, x, pb.Elem, y, child(path, "[some]"))

	case KindList:
		x, y := loadSlice(a), loadSlice(b)
		elemPath := child(path, "[elem]")
		for i := 0; i < x.Len && i < y.Len; i++ {
			n, err := c.compare(
				pa.Elem, unsafe.Add(x.Data, uintptr(i)*pa.Elem.GoSize),
				pb.Elem, unsafe.Add(y.Data, uintptr(i)*pb.Elem.GoSize),
				elemPath)
			if err != nil || n != 0 {
				return n, err
			}
		}
		return cmp.Compare(x.Len, y.Len), nil

	case KindMap:
		x, y := loadSlice(a), loadSlice(b)
		sa, sb := entrySize(pa), entrySize(pb)
		for i := 0; i < x.Len && i < y.Len; i++ {
			n, err := c.fields(
				pa.Fields, unsafe.Add(x.Data, uintptr(i)*sa),
				pb.Fields, unsafe.Add(y.Data, uintptr(i)*sb),
				path)
			if err != nil || n != 0 {
				return n, err
			}
		}
		return cmp.Compare(x.Len, y.Len), nil

	case KindProduct:
		return c.fields(pa.Fields, a, pb.Fields, b, path)

	case KindSum, KindEnum:
		ca, payA, err := activeCase(pa, a, path)
		if err != nil {
			return 0, err
		}
		cb, payB, err := activeCase(pb, b, path)
		if err != nil {
			return 0, err
		}
		if n := cmp.Compare(ca.Index, cb.Index); n != 0 || ca.Nullary {
			return n, nil
		}
		return c.fields(ca.Fields, payA, cb.Fields, payB, child(path, ca.Name))

	default:
		return 0, errors.Unsupported(errors.PhaseCompare, "plan kind: "+pa.Kind.String())
	}
}

func (c *comparer) fields(fa []CompiledField, a unsafe.Pointer, fb []CompiledField, b unsafe.Pointer, path []string) (int, error) {
	for i := range fa {
		n, err := c.compare(
			fa[i].Type, unsafe.Add(a, fa[i].GoOffset),
			fb[i].Type, unsafe.Add(b, fb[i].GoOffset),
			child(path, fa[i].Name))
		if err != nil || n != 0 {
			return n, err
		}
	}
	return 0, nil
}
