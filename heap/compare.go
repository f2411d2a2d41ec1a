package heap

import (
	"bytes"
	"cmp"

	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/value"
)

// CompareBudget bounds the number of value pairs Compare visits, so that
// comparing two distinct cyclic images fails instead of looping.
var CompareBudget = 1 << 24

type pair struct {
	a, b value.Value
}

// Compare orders two encoded values the way the foreign runtime's
// polymorphic compare does: immediates before blocks, immediates by
// integer value, blocks by tag, strings bytewise, doubles numerically
// (NaN equal to itself and below every other float), other blocks by
// size and then field by field.
func (h *Heap) Compare(a, b value.Value) (int, error) {
	return Compare(h, a, h, b)
}

// Compare orders a in ha against b in hb. The heaps may differ.
func Compare(ha *Heap, a value.Value, hb *Heap, b value.Value) (int, error) {
	stack := []pair{{a, b}}
	steps := 0

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		steps++
		if steps > CompareBudget {
			return 0, errors.Overflow(errors.PhaseCompare, nil, steps, "compare budget")
		}

		if p.a == p.b && ha == hb {
			continue
		}

		switch {
		case p.a.IsImmediate() && p.b.IsImmediate():
			if c := cmp.Compare(p.a.Int(), p.b.Int()); c != 0 {
				return c, nil
			}
			continue
		case p.a.IsImmediate():
			return -1, nil
		case p.b.IsImmediate():
			return 1, nil
		}

		ba, err := ha.Block(p.a)
		if err != nil {
			return 0, err
		}
		bb, err := hb.Block(p.b)
		if err != nil {
			return 0, err
		}

		if c := cmp.Compare(ba.Tag(), bb.Tag()); c != 0 {
			return c, nil
		}

		switch tag := ba.Tag(); {
		case tag == value.TagString:
			sa, _, err := ha.ViewString(p.a)
			if err != nil {
				return 0, err
			}
			sb, _, err := hb.ViewString(p.b)
			if err != nil {
				return 0, err
			}
			if c := bytes.Compare(sa, sb); c != 0 {
				return c, nil
			}

		case tag == value.TagDouble:
			fa, err := ha.ReadDouble(p.a)
			if err != nil {
				return 0, err
			}
			fb, err := hb.ReadDouble(p.b)
			if err != nil {
				return 0, err
			}
			if c := cmp.Compare(fa, fb); c != 0 {
				return c, nil
			}

		case tag <= value.MaxStructuredTag:
			if c := cmp.Compare(ba.Size(), bb.Size()); c != 0 {
				return c, nil
			}
			for i := ba.Size(); i > 0; i-- {
				fa, err := ba.Field(i - 1)
				if err != nil {
					return 0, err
				}
				fb, err := bb.Field(i - 1)
				if err != nil {
					return 0, err
				}
				stack = append(stack, pair{fa, fb})
			}

		default:
			return 0, errors.New(errors.PhaseCompare, errors.KindUnsupported).
				Detail("cannot compare blocks with tag %d", tag).
				Build()
		}
	}
	return 0, nil
}
