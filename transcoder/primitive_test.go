package transcoder

import (
	"bytes"
	"math"
	"testing"

	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/schema"
	"github.com/wippyai/blockrep/value"
)

func TestScalar_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   any
		desc *schema.Descriptor
		want any
	}{
		{"unit", nil, schema.Unit(), nil},
		{"true", true, schema.Bool(), true},
		{"false", false, schema.Bool(), false},
		{"int8", int8(-7), schema.Int(), int64(-7)},
		{"uint16", uint16(65535), schema.Int(), int64(65535)},
		{"max", int64(value.MaxInt), schema.Int(), int64(value.MaxInt)},
		{"handle", uint32(3), schema.Handle(), int64(3)},
		{"float32", float32(0.5), schema.Float(), 0.5},
		{"float64", math.Inf(-1), schema.Float(), math.Inf(-1)},
		{"string", "héllo", schema.String(), "héllo"},
		{"empty string", "", schema.String(), ""},
		{"some int", ptr(42), schema.Option(schema.Int()), int64(42)},
		{"none", (*int)(nil), schema.Option(schema.Int()), nil},
		{"some string", ptr("x"), schema.Option(schema.String()), "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHeap()
			v, err := EncodeScalar(h, tt.in)
			if err != nil {
				t.Fatalf("EncodeScalar: %v", err)
			}
			got, err := DecodeScalar(h, v, tt.desc)
			if err != nil {
				t.Fatalf("DecodeScalar: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestScalar_Bytes(t *testing.T) {
	h := newHeap()
	in := []byte{0, 0xff, 'a'}
	v, err := EncodeScalar(h, in)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeScalar(h, v, schema.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if b, ok := got.([]byte); !ok || !bytes.Equal(b, in) {
		t.Errorf("got %#v, want %#v", got, in)
	}

	if _, err := DecodeScalar(h, v, schema.String()); errors.KindOf(err) != errors.KindInvalidUTF8 {
		t.Errorf("decode as string: got %v, want invalid utf8", err)
	}
}

func TestScalar_CodecUTF8Policy(t *testing.T) {
	h := newHeap()
	raw := []byte{'a', 0xff}
	v, err := EncodeScalar(h, raw)
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.ValidateUTF8 = false
	lax := newCodec(t, WithConfig(cfg))
	got, err := lax.DecodeScalar(h, v, schema.String())
	if err != nil {
		t.Fatalf("lax decode: %v", err)
	}
	if got != string(raw) {
		t.Errorf("got %q, want %q", got, raw)
	}
	if _, err := lax.DecodeScalar(h, v, schema.Option(schema.String())); errors.KindOf(err) != errors.KindMalformedBlock {
		t.Errorf("bare string as option: got %v, want malformed block", err)
	}

	cfg.ValidateUTF8 = true
	strict := newCodec(t, WithConfig(cfg))
	if _, err := strict.DecodeScalar(h, v, schema.String()); errors.KindOf(err) != errors.KindInvalidUTF8 {
		t.Errorf("strict decode: got %v, want invalid utf8", err)
	}
}

func TestScalar_Errors(t *testing.T) {
	h := newHeap()

	if _, err := EncodeScalar(h, int64(1)<<62); errors.KindOf(err) != errors.KindOverflow {
		t.Errorf("large int: got %v, want overflow", err)
	}
	if _, err := EncodeScalar(h, uint64(math.MaxUint64)); errors.KindOf(err) != errors.KindOverflow {
		t.Errorf("large uint: got %v, want overflow", err)
	}
	if _, err := EncodeScalar(h, struct{}{}); errors.KindOf(err) != errors.KindUnsupported {
		t.Errorf("struct: got %v, want unsupported", err)
	}

	tests := []struct {
		name string
		v    value.Value
		desc *schema.Descriptor
		kind errors.Kind
	}{
		{"bool out of range", value.Int(2), schema.Bool(), errors.KindMalformedBlock},
		{"unit mismatch", value.Int(1), schema.Unit(), errors.KindMalformedBlock},
		{"option of option", value.None, schema.Option(schema.Option(schema.Int())), errors.KindUnsupported},
		{"option of unit", value.None, schema.Option(schema.Unit()), errors.KindUnsupported},
		{"product", value.Unit, schema.Product("p"), errors.KindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeScalar(h, tt.v, tt.desc)
			if errors.KindOf(err) != tt.kind {
				t.Errorf("got %v, want %s", err, tt.kind)
			}
		})
	}

	blk, err := h.AllocBlock(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeScalar(h, blk, schema.Int()); errors.KindOf(err) != errors.KindMalformedBlock {
		t.Errorf("pointer as int: got %v, want malformed block", err)
	}
}
