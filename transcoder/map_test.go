package transcoder

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/wippyai/blockrep/arena"
	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/heap"
	"github.com/wippyai/blockrep/schema"
	"github.com/wippyai/blockrep/value"
)

func sampleVars(n int) []Var {
	if n == 0 {
		return nil
	}
	vars := make([]Var, n)
	for i := range vars {
		vars[i] = Var{Key: fmt.Sprintf("k%04d", i), Value: Point{X: i, Y: -i, Z: i * i}}
	}
	return vars
}

// treeHeight walks the node at v and returns its height, failing the test
// when a node breaks the balance the foreign runtime expects.
func treeHeight(t *testing.T, h *heap.Heap, v value.Value) int {
	t.Helper()
	if v == value.Empty {
		return 0
	}
	b := mustBlock(t, h, v)
	if b.Tag() != 0 || b.Size() != 5 {
		t.Fatalf("node tag %d size %d, want tag 0 size 5", b.Tag(), b.Size())
	}
	hl := treeHeight(t, h, mustField(t, b, 0))
	hr := treeHeight(t, h, mustField(t, b, 3))
	if d := hl - hr; d > 2 || d < -2 {
		t.Fatalf("unbalanced node: heights %d and %d", hl, hr)
	}
	height := max(hl, hr) + 1
	if got := mustField(t, b, 4); got != value.Int(int64(height)) {
		t.Fatalf("recorded height %s, want %d", got, height)
	}
	return height
}

func TestMap_RoundTrip(t *testing.T) {
	c := newCodec(t)

	for _, n := range []int{0, 1, 2, 3, 7, 100, 1000} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			h := newHeap()
			in := sampleVars(n)
			v, err := EncodeOwned(c, h, "vars", &in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			treeHeight(t, h, v)

			owned, err := DecodeOwned[[]Var](c, h, "vars", v)
			if err != nil {
				t.Fatalf("decode owned: %v", err)
			}
			if !reflect.DeepEqual(owned, in) {
				t.Errorf("owned = %v, want %v", owned, in)
			}

			a := arena.New()
			defer a.Release()
			borrowed, err := DecodeBorrowed[[]Var](c, h, "vars", v, a)
			if err != nil {
				t.Fatalf("decode borrowed: %v", err)
			}
			if !reflect.DeepEqual(*borrowed, in) {
				t.Errorf("borrowed = %v, want %v", *borrowed, in)
			}
		})
	}
}

func TestMap_Layout(t *testing.T) {
	c := newCodec(t)
	h := newHeap()

	var none []Var
	v, err := EncodeOwned(c, h, "vars", &none)
	if err != nil {
		t.Fatal(err)
	}
	if v != value.Empty {
		t.Errorf("empty map = %s, want imm(0)", v)
	}

	in := sampleVars(3)
	if v, err = EncodeOwned(c, h, "vars", &in); err != nil {
		t.Fatal(err)
	}
	root := mustBlock(t, h, v)
	key, err := h.ReadString(mustField(t, root, 1))
	if err != nil {
		t.Fatal(err)
	}
	if string(key) != "k0001" {
		t.Errorf("root key = %q, want k0001", key)
	}
	if got := mustField(t, root, 4); got != value.Int(2) {
		t.Errorf("root height = %s, want 2", got)
	}
	for _, i := range []uint32{0, 3} {
		side := mustBlock(t, h, mustField(t, root, i))
		if mustField(t, side, 0) != value.Empty || mustField(t, side, 3) != value.Empty {
			t.Errorf("field %d is not a leaf node", i)
		}
		if got := mustField(t, side, 4); got != value.Int(1) {
			t.Errorf("field %d height = %s, want 1", i, got)
		}
	}
}

func TestMap_KeyOrder(t *testing.T) {
	c := newCodec(t)

	tests := []struct {
		name string
		keys []string
	}{
		{"descending", []string{"b", "a"}},
		{"duplicate", []string{"a", "b", "b"}},
		{"unsorted tail", []string{"a", "c", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := make([]Var, len(tt.keys))
			for i, k := range tt.keys {
				vars[i].Key = k
			}
			_, err := EncodeOwned(c, newHeap(), "vars", &vars)
			if errors.KindOf(err) != errors.KindInvalidInput {
				t.Fatalf("got %v, want invalid input", err)
			}
		})
	}
}

func TestMap_Malformed(t *testing.T) {
	c := newCodec(t)
	h := newHeap()

	key, _ := EncodeScalar(h, "k")
	pt := Point{X: 1}
	val, err := EncodeOwned(c, h, "point", &pt)
	if err != nil {
		t.Fatal(err)
	}
	mk := func(size uint32, fields ...value.Value) value.Value {
		v, _ := h.AllocBlock(0, size)
		for i, f := range fields {
			_ = h.SetField(v, uint32(i), f)
		}
		return v
	}

	tests := []struct {
		name string
		v    value.Value
		want error
	}{
		{"node too small", mk(4, value.Empty, key, val, value.Empty), errors.ErrMalformedBlock},
		{"wrong height", mk(5, value.Empty, key, val, value.Empty, value.Int(3)), errors.ErrMalformedBlock},
		{"height is a block", mk(5, value.Empty, key, val, value.Empty, key), errors.ErrMalformedBlock},
		{"other immediate", value.Int(2), errors.ErrMalformedBlock},
		{"string as node", key, errors.ErrMalformedBlock},
	}

	self := mk(5, value.Empty, key, val, value.Empty, value.Int(2))
	_ = h.SetField(self, 0, self)
	tests = append(tests, struct {
		name string
		v    value.Value
		want error
	}{"cycle", self, errors.ErrCyclicValue})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOwned[[]Var](c, h, "vars", tt.v)
			if !stderrors.Is(err, tt.want) {
				t.Fatalf("owned: got %v, want %v", err, tt.want)
			}
			a := arena.New()
			defer a.Release()
			if _, err := DecodeBorrowed[[]Var](c, h, "vars", tt.v, a); !stderrors.Is(err, tt.want) {
				t.Fatalf("borrowed: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMap_SizeLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxListLength = 4
	c := newCodec(t, WithConfig(cfg))
	h := newHeap()

	vars := sampleVars(5)
	if _, err := EncodeOwned(c, h, "vars", &vars); errors.KindOf(err) != errors.KindOverflow {
		t.Fatalf("encode: got %v, want overflow", err)
	}

	v, err := EncodeOwned(newCodec(t), h, "vars", &vars)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeOwned[[]Var](c, h, "vars", v); errors.KindOf(err) != errors.KindOverflow {
		t.Fatalf("decode: got %v, want overflow", err)
	}
}

func TestMap_Views(t *testing.T) {
	c := newCodec(t)
	h := newHeap()

	in := sampleVars(20)
	v, err := EncodeOwned(c, h, "vars", &in)
	if err != nil {
		t.Fatal(err)
	}
	view, err := DecodeOwned[[]VarView](c, h, "vars", v)
	if err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view) != len(in) || string(view[7].Name) != "k0007" || view[7].P.Z != 49 {
		t.Fatalf("view = %+v", view)
	}

	eq, err := Equal(c, "vars", &in, &view)
	if err != nil || !eq {
		t.Errorf("Equal = %v, %v; want true", eq, err)
	}
	hi, err := Hash(c, "vars", &in)
	if err != nil {
		t.Fatal(err)
	}
	hv, err := Hash(c, "vars", &view)
	if err != nil {
		t.Fatal(err)
	}
	if hi != hv {
		t.Errorf("hashes differ: %x vs %x", hi, hv)
	}

	view[19].P.X++
	if n, err := Compare(c, "vars", &in, &view); err != nil || n != -1 {
		t.Errorf("Compare = %d, %v; want -1", n, err)
	}
	short := in[:19]
	if n, err := Compare(c, "vars", &short, &in); err != nil || n != -1 {
		t.Errorf("Compare prefix = %d, %v; want -1", n, err)
	}
}

func TestMap_Compile(t *testing.T) {
	c := NewCompiler(testSet())

	tests := []struct {
		name   string
		goType reflect.Type
		kind   errors.Kind
	}{
		{"slice of entries", reflect.TypeFor[[]Var](), ""},
		{"Go map", reflect.TypeFor[map[string]Point](), errors.KindTypeMismatch},
		{"slice of ints", reflect.TypeFor[[]int](), errors.KindTypeMismatch},
		{"entry without value", reflect.TypeFor[[]struct{ Key string }](), errors.KindFieldMissing},
		{"wrong key type", reflect.TypeFor[[]struct {
			Key   int
			Value Point
		}](), errors.KindTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := c.CompileNamed("vars", tt.goType)
			if tt.kind == "" {
				if err != nil {
					t.Fatalf("compile: %v", err)
				}
				if ct.Kind != KindMap || len(ct.Fields) != 2 {
					t.Errorf("plan kind %s with %d fields", ct.Kind, len(ct.Fields))
				}
				return
			}
			if errors.KindOf(err) != tt.kind {
				t.Fatalf("got %v, want %s", err, tt.kind)
			}
		})
	}
}

func TestMap_TrivialDrop(t *testing.T) {
	c := newCodec(t)
	if err := c.CheckTrivialDrop("vars", reflect.TypeFor[[]Var]()); err != nil {
		t.Errorf("vars: %v", err)
	}

	set := schema.NewSet(1).MustAdd("fds", schema.Map(schema.Int(), schema.Handle()))
	fds, err := New(set)
	if err != nil {
		t.Fatal(err)
	}
	type fd struct {
		Key   int
		Value uint32
	}
	if err := fds.CheckTrivialDrop("fds", reflect.TypeFor[[]fd]()); errors.KindOf(err) != errors.KindNotTrivialDrop {
		t.Fatalf("got %v, want not trivially droppable", err)
	}
}
