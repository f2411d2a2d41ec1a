package transcoder

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/zeebo/blake3"

	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/internal/abi"
)

// hashKey domain-separates structural hashes from every other BLAKE3
// use. It is ASCII, zero-padded to the 32-byte key size.
var hashKey = [32]byte{
	'b', 'l', 'o', 'c', 'k', 'r', 'e', 'p', '.',
	'v', 'a', 'l', 'u', 'e', '.', 'h', 'a', 's', 'h',
}

// Stream markers. Integers above MaxInt64 carry their own marker so that
// signed and unsigned bindings of the same number hash alike.
const (
	markInt  byte = 0
	markUint byte = 1
)

// hasher writes the canonical structural stream of a value. Values that
// compare equal write identical streams.
type hasher struct {
	h        *blake3.Hasher
	buf      [9]byte
	maxDepth int
	depth    int
}

func newHasher(maxDepth int) *hasher {
	h, err := blake3.NewKeyed(hashKey[:])
	if err != nil {
		panic(err) // key length is fixed
	}
	return &hasher{h: h, maxDepth: maxDepth}
}

func (h *hasher) sum() uint64 {
	return binary.LittleEndian.Uint64(h.h.Sum(nil))
}

func (h *hasher) mark(b byte) {
	h.buf[0] = b
	_, _ = h.h.Write(h.buf[:1])
}

func (h *hasher) u64(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:8], v)
	_, _ = h.h.Write(h.buf[:8])
}

func (h *hasher) integer(n int64, u uint64, unsigned bool) {
	if unsigned && u > math.MaxInt64 {
		h.mark(markUint)
		h.u64(u)
		return
	}
	if unsigned {
		n = int64(u)
	}
	h.mark(markInt)
	h.u64(uint64(n))
}

func (h *hasher) bytes(b []byte) {
	h.u64(uint64(len(b)))
	_, _ = h.h.Write(b)
}

func (h *hasher) value(ct *CompiledType, p unsafe.Pointer, path []string) error {
	h.depth++
	defer func() { h.depth-- }()
	if h.depth > h.maxDepth {
		return errors.New(errors.PhaseCompare, errors.KindOverflow).
			Path(path...).
			Detail("nesting exceeds maximum depth %d", h.maxDepth).
			Build()
	}

	ct, p, err := deref(ct, p, path)
	if err != nil {
		return err
	}

	switch ct.Kind {
	case KindUnit:
	case KindBool:
		if *(*bool)(p) {
			h.mark(1)
		} else {
			h.mark(0)
		}
	case KindInt, KindHandle:
		h.integer(loadInt(p, ct.GoKind))
	case KindFloat:
		h.u64(abi.CanonicalizeF64(math.Float64bits(loadFloat(p, ct.GoKind))))
	case KindString, KindBytes:
		h.bytes(loadBytes(p, ct.GoKind))
	case KindOption:
		inner := *(*unsafe.Pointer)(p)
		if inner == nil {
			h.mark(0)
			return nil
		}
		h.mark(1)
		return h.value(ct.Elem, inner, child(path, "[some]"))
	case KindList:
		s := loadSlice(p)
		h.u64(uint64(s.Len))
		elemPath := child(path, "[elem]")
		for i := 0; i < s.Len; i++ {
			if err := h.value(ct.Elem, unsafe.Add(s.Data, uintptr(i)*ct.Elem.GoSize), elemPath); err != nil {
				return err
			}
		}
	case KindMap:
		s := loadSlice(p)
		h.u64(uint64(s.Len))
		size := entrySize(ct)
		for i := 0; i < s.Len; i++ {
			if err := h.fields(ct.Fields, unsafe.Add(s.Data, uintptr(i)*size), path); err != nil {
				return err
			}
		}
	case KindProduct:
		return h.fields(ct.Fields, p, path)
	case KindSum, KindEnum:
		cs, payload, err := activeCase(ct, p, path)
		if err != nil {
			return err
		}
		h.u64(uint64(cs.Index))
		if !cs.Nullary {
			return h.fields(cs.Fields, payload, child(path, cs.Name))
		}
	default:
		return errors.Unsupported(errors.PhaseCompare, "plan kind: "+ct.Kind.String())
	}
	return nil
}

func (h *hasher) fields(fields []CompiledField, p unsafe.Pointer, path []string) error {
	for _, f := range fields {
		if err := h.value(f.Type, unsafe.Add(p, f.GoOffset), child(path, f.Name)); err != nil {
			return err
		}
	}
	return nil
}
