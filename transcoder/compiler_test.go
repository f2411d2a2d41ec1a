package transcoder

import (
	"reflect"
	"testing"

	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/schema"
)

func TestCompiler_NotFound(t *testing.T) {
	c := NewCompiler(testSet())
	_, err := c.CompileNamed("missing", reflect.TypeFor[Point]())
	if errors.KindOf(err) != errors.KindNotFound {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestCompiler_NilInputs(t *testing.T) {
	c := NewCompiler(testSet())
	if _, err := c.Compile(nil, reflect.TypeFor[Point]()); errors.KindOf(err) != errors.KindNilPointer {
		t.Errorf("nil descriptor: got %v", err)
	}
	if _, err := c.CompileNamed("point", nil); errors.KindOf(err) != errors.KindNilPointer {
		t.Errorf("nil Go type: got %v", err)
	}
	if _, err := NewCompiler(nil).CompileNamed("point", reflect.TypeFor[Point]()); errors.KindOf(err) != errors.KindNilPointer {
		t.Errorf("nil set: got %v", err)
	}
}

func TestCompiler_Mismatch(t *testing.T) {
	type badPoint struct {
		X string
		Y int
		Z int
	}
	type badMode struct {
		A *int
		B *struct{}
		C *int32
	}
	type valueMode struct {
		A struct{}
		B *struct{}
		C *int32
	}

	tests := []struct {
		name   string
		typ    string
		goType reflect.Type
		kind   errors.Kind
		path   []string
	}{
		{"field type", "point", reflect.TypeFor[badPoint](), errors.KindTypeMismatch, []string{"x"}},
		{"missing field", "env", reflect.TypeFor[Point](), errors.KindFieldMissing, nil},
		{"sum to int", "mode", reflect.TypeFor[int](), errors.KindTypeMismatch, nil},
		{"nullary pointee", "mode", reflect.TypeFor[badMode](), errors.KindTypeMismatch, []string{"a"}},
		{"case not pointer", "mode", reflect.TypeFor[valueMode](), errors.KindTypeMismatch, []string{"a"}},
		{"list to array", "ints", reflect.TypeFor[[3]int](), errors.KindTypeMismatch, nil},
		{"array length", "point", reflect.TypeFor[[2]int](), errors.KindTypeMismatch, nil},
		{"unit size", "empty", reflect.TypeFor[int](), errors.KindTypeMismatch, nil},
		{"option not pointer", "node", reflect.TypeFor[struct {
			Value int
			Next  Node
		}](), errors.KindTypeMismatch, []string{"next"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompiler(testSet()).CompileNamed(tt.typ, tt.goType)
			if errors.KindOf(err) != tt.kind {
				t.Fatalf("got %v, want %s", err, tt.kind)
			}
			if tt.path == nil {
				return
			}
			e, ok := err.(*errors.Error)
			if !ok {
				t.Fatalf("got %T, want *errors.Error", err)
			}
			if !reflect.DeepEqual(e.Path, tt.path) {
				t.Errorf("path = %v, want %v", e.Path, tt.path)
			}
		})
	}
}

func TestCompiler_Enum(t *testing.T) {
	c := NewCompiler(testSet())
	ct, err := c.CompileNamed("color", reflect.TypeFor[uint8]())
	if err != nil {
		t.Fatal(err)
	}
	if ct.Kind != KindEnum || len(ct.Cases) != 3 {
		t.Fatalf("kind=%s cases=%d, want enum with 3 cases", ct.Kind, len(ct.Cases))
	}
	for i, cs := range ct.Cases {
		if !cs.Nullary || cs.Slot != i {
			t.Errorf("case %d: nullary=%v slot=%d", i, cs.Nullary, cs.Slot)
		}
	}
}

func TestCompiler_FieldNames(t *testing.T) {
	set := schema.NewSet(1).MustAdd("limits", schema.Product("limits",
		schema.Named("max-size", schema.Int()),
		schema.Named("min_count", schema.Int()),
		schema.Named("name", schema.String())))

	type limits struct {
		MaxSize  int
		MinCount int
		Ignored  string `rep:"-"`
		Title    string `rep:"name"`
	}

	ct, err := NewCompiler(set).CompileNamed("limits", reflect.TypeFor[limits]())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"MaxSize", "MinCount", "Title"}
	for i, f := range ct.Fields {
		if f.GoName != want[i] {
			t.Errorf("field %s bound to %s, want %s", f.Name, f.GoName, want[i])
		}
	}
}

func TestCompiler_ArrayTuple(t *testing.T) {
	ct, err := NewCompiler(testSet()).CompileNamed("point", reflect.TypeFor[[3]int64]())
	if err != nil {
		t.Fatal(err)
	}
	if ct.Kind != KindProduct || ct.Arity() != 3 {
		t.Fatalf("kind=%s arity=%d", ct.Kind, ct.Arity())
	}
	for i, f := range ct.Fields {
		if f.GoOffset != uintptr(i*8) {
			t.Errorf("field %d offset = %d, want %d", i, f.GoOffset, i*8)
		}
	}
}

func TestCompiler_Boxes(t *testing.T) {
	type inlinePair struct {
		A Point
		B Point
	}

	c := NewCompiler(testSet())
	ct, err := c.CompileNamed("pair", reflect.TypeFor[inlinePair]())
	if err != nil {
		t.Fatal(err)
	}
	if k := ct.Fields[0].Type.Kind; k != KindProduct {
		t.Errorf("inline box kind = %s, want product", k)
	}

	ct, err = c.CompileNamed("pair", reflect.TypeFor[Pair]())
	if err != nil {
		t.Fatal(err)
	}
	box := ct.Fields[0].Type
	if box.Kind != KindBox || !box.Indirect || box.Elem.Kind != KindProduct {
		t.Errorf("pointer box = %s indirect=%v", box.Kind, box.Indirect)
	}
}

func TestCompiler_Cases(t *testing.T) {
	c := NewCompiler(testSet())
	ct, err := c.CompileNamed("shape", reflect.TypeFor[Shape]())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		slot    int
		nullary bool
		direct  bool
	}{
		{"circle", 0, false, true},
		{"empty", 0, true, false},
		{"rect", 1, false, false},
		{"dot", 1, true, false},
	}
	for i, tt := range tests {
		cs := ct.Cases[i]
		if cs.Name != tt.name || cs.Index != i || cs.Slot != tt.slot || cs.Nullary != tt.nullary || cs.Direct != tt.direct {
			t.Errorf("case %d = %+v, want %+v", i, cs, tt)
		}
	}
}

func TestCompiler_RecursivePlan(t *testing.T) {
	c := NewCompiler(testSet())
	ct, err := c.CompileNamed("tree", reflect.TypeFor[Tree]())
	if err != nil {
		t.Fatal(err)
	}
	nodeCase := ct.Cases[1]
	if nodeCase.Fields[0].Type != ct || nodeCase.Fields[2].Type != ct {
		t.Error("recursive fields do not share the root plan")
	}
}

func TestCompiler_Cache(t *testing.T) {
	c := NewCompiler(testSet())
	a, err := c.CompileNamed("env", reflect.TypeFor[Env]())
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.CompileNamed("env", reflect.TypeFor[Env]())
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second compile returned a different plan")
	}

	view, err := c.CompileNamed("env", reflect.TypeFor[EnvView]())
	if err != nil {
		t.Fatal(err)
	}
	if view == a {
		t.Error("different Go types share a plan")
	}
	if !c.Set().Sealed() {
		t.Error("set not sealed after compile")
	}
}
