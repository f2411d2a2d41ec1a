package transcoder

import (
	"reflect"
	"unicode/utf8"

	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/heap"
	"github.com/wippyai/blockrep/schema"
	"github.com/wippyai/blockrep/value"
)

// EncodeScalar encodes a leaf value without a compiled plan. s may be nil
// (unit), a bool, any integer, a float, a string, a []byte, or a pointer
// to one of those, which encodes as an option.
func EncodeScalar(h *heap.Heap, s any) (value.Value, error) {
	switch x := s.(type) {
	case nil:
		return value.Unit, nil
	case bool:
		return value.Bool(x), nil
	case float32:
		return h.AllocDouble(float64(x))
	case float64:
		return h.AllocDouble(x)
	case string:
		return h.AllocString([]byte(x))
	case []byte:
		return h.AllocString(x)
	}

	rv := reflect.ValueOf(s)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !value.FitsInt(rv.Int()) {
			return 0, errors.Overflow(errors.PhaseEncode, nil, rv.Int(), "63-bit immediate")
		}
		return value.Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if !value.FitsUint(rv.Uint()) {
			return 0, errors.Overflow(errors.PhaseEncode, nil, rv.Uint(), "63-bit immediate")
		}
		return value.Int(int64(rv.Uint())), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return value.None, nil
		}
		inner, err := EncodeScalar(h, rv.Elem().Interface())
		if err != nil {
			return 0, errors.WithPath(err, []string{"[some]"})
		}
		some, err := h.AllocBlock(0, 1)
		if err != nil {
			return 0, err
		}
		return some, h.SetField(some, 0, inner)
	}
	return 0, errors.Unsupported(errors.PhaseEncode, "scalar of type "+rv.Type().String())
}

// DecodeScalar decodes v as a leaf of desc. Units decode to nil, bools to
// bool, integers and handles to int64, floats to float64, strings to
// string and bytes to []byte. An option of one of those decodes to nil
// for none and to the inner value for some; options of units or options
// are ambiguous and rejected. Strings are always checked for valid UTF-8;
// use Codec.DecodeScalar to follow Config.ValidateUTF8 instead.
func DecodeScalar(h *heap.Heap, v value.Value, desc *schema.Descriptor) (any, error) {
	return decodeScalar(h, v, desc, true)
}

// DecodeScalar is DecodeScalar with the codec's UTF-8 policy, matching
// what a compiled plan would decode for the same string.
func (c *Codec) DecodeScalar(h *heap.Heap, v value.Value, desc *schema.Descriptor) (any, error) {
	return decodeScalar(h, v, desc, c.cfg.ValidateUTF8)
}

func decodeScalar(h *heap.Heap, v value.Value, desc *schema.Descriptor, validate bool) (any, error) {
	if desc == nil {
		return nil, errors.NilPointer(errors.PhaseDecode, nil, "*schema.Descriptor")
	}
	switch desc.Kind {
	case schema.KindUnit:
		if v != value.Unit {
			return nil, errors.MalformedBlock(errors.PhaseDecode, nil, "expected unit, found %s", v)
		}
		return nil, nil
	case schema.KindBool:
		switch v {
		case value.False:
			return false, nil
		case value.True:
			return true, nil
		}
		return nil, errors.MalformedBlock(errors.PhaseDecode, nil, "expected bool, found %s", v)
	case schema.KindInt, schema.KindHandle:
		if !v.IsImmediate() {
			return nil, errors.MalformedBlock(errors.PhaseDecode, nil, "expected immediate integer, found %s", v)
		}
		return v.Int(), nil
	case schema.KindFloat:
		return h.ReadDouble(v)
	case schema.KindString:
		b, err := h.ReadString(v)
		if err != nil {
			return nil, err
		}
		if validate && !utf8.Valid(b) {
			return nil, errors.InvalidUTF8(errors.PhaseDecode, nil, b)
		}
		return string(b), nil
	case schema.KindBytes:
		return h.ReadString(v)
	case schema.KindOption:
		elem := desc.Elem
		if elem == nil || elem.Kind == schema.KindUnit || elem.Kind == schema.KindOption {
			return nil, errors.Unsupported(errors.PhaseDecode, "ambiguous scalar "+desc.String())
		}
		if v == value.None {
			return nil, nil
		}
		b, err := h.Block(v)
		if err != nil {
			return nil, err
		}
		if b.Tag() != 0 || b.Size() != 1 {
			return nil, errors.MalformedBlock(errors.PhaseDecode, nil,
				"expected some block with tag 0 and size 1, found tag %d size %d", b.Tag(), b.Size())
		}
		inner, err := b.Field(0)
		if err != nil {
			return nil, err
		}
		out, err := decodeScalar(h, inner, elem, validate)
		if err != nil {
			return nil, errors.WithPath(err, []string{"[some]"})
		}
		return out, nil
	}
	return nil, errors.Unsupported(errors.PhaseDecode, "scalar of kind "+desc.Kind.String())
}
