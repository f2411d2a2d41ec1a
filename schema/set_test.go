package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/value"
)

func modeSet() *Set {
	return NewSet(1).
		MustAdd("mode", Sum("mode", Variant("a"), Variant("b"), Variant("c", Int()))).
		MustAdd("env", Product("env", Named("x", Int()), Named("m", Ref("mode"))))
}

func TestDescriptorString(t *testing.T) {
	tests := []struct {
		d    *Descriptor
		want string
	}{
		{Int(), "int"},
		{Option(List(String())), "option<list<string>>"},
		{Ref("tree"), "ref tree"},
		{Product("p", Named("x", Int()), Named("y", Box(Float()))), "product p{x:int,y:box<float>}"},
		{Tuple("", Int(), Bool()), "product {0:int,1:bool}"},
		{Sum("m", Variant("a"), Variant("c", Int())), "sum m{a|c(0:int)}"},
		{Sum("r", RecordVariant("pt", Named("x", Int()))), "sum r{pt(x:int)}"},
		{Enum("e", "x", "y"), "sum e{x|y}"},
		{Map(String(), List(Int())), "map<string,list<int>>"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, tt.d.String())
		})
	}
}

func TestBlockVariants(t *testing.T) {
	d := Sum("m", Variant("a"), Variant("b", Int()), Variant("c"), Variant("d", Int(), Int()))
	require.Equal(t, 2, d.BlockVariants())
	require.True(t, d.Variants[0].Nullary())
	require.False(t, d.Variants[1].Nullary())
}

func TestSetAddLookup(t *testing.T) {
	s := modeSet()
	d, ok := s.Lookup("env")
	require.True(t, ok)
	require.Equal(t, KindProduct, d.Kind)
	require.Equal(t, []string{"env", "mode"}, s.Names())

	err := s.Add("env", Int())
	require.Equal(t, errors.KindAlreadyExists, errors.KindOf(err))

	require.Error(t, s.Add("", Int()))
	require.Error(t, s.Add("nil", nil))

	anon := Product("", Named("x", Int()))
	require.NoError(t, s.Add("point", anon))
	require.Equal(t, "point", anon.Name)
}

func TestSetResolve(t *testing.T) {
	s := modeSet().MustAdd("alias", Ref("mode"))

	d, err := s.Resolve(Ref("alias"))
	require.NoError(t, err)
	require.Equal(t, KindSum, d.Kind)
	require.Equal(t, "mode", d.Name)

	_, err = s.Resolve(Ref("missing"))
	require.ErrorIs(t, err, errors.ErrSchemaMismatch)
}

func TestSetValidate(t *testing.T) {
	tooMany := Sum("big")
	for i := 0; i <= value.MaxBlockVariants; i++ {
		tooMany.Variants = append(tooMany.Variants, Variant("v"+string(rune('a'+i%26))+string(rune('a'+i/26)), Int()))
	}
	enough := Sum("ok")
	for i := 0; i < value.MaxBlockVariants; i++ {
		enough.Variants = append(enough.Variants, Variant("v"+string(rune('a'+i%26))+string(rune('a'+i/26)), Int()))
	}
	for i := 0; i < 300; i++ {
		enough.Variants = append(enough.Variants, Variant("n"+string(rune('a'+i%26))+string(rune('a'+i/26))))
	}

	tests := []struct {
		name string
		defs map[string]*Descriptor
		kind errors.Kind
	}{
		{"valid recursive", map[string]*Descriptor{
			"tree": Sum("tree", Variant("leaf"), Variant("node", Ref("tree"), Int(), Ref("tree"))),
		}, ""},
		{"boxed self through product", map[string]*Descriptor{
			"cell": Product("cell", Named("next", Option(Box(Ref("cell"))))),
		}, ""},
		{"246 block variants", map[string]*Descriptor{"ok": enough}, ""},
		{"dangling ref", map[string]*Descriptor{
			"p": Product("p", Named("x", Ref("nope"))),
		}, errors.KindSchemaMismatch},
		{"missing elem", map[string]*Descriptor{
			"l": {Kind: KindList},
		}, errors.KindSchemaMismatch},
		{"map", map[string]*Descriptor{
			"vars": Map(String(), Ref("vars")),
		}, ""},
		{"map without key", map[string]*Descriptor{
			"m": {Kind: KindMap, Elem: Int()},
		}, errors.KindSchemaMismatch},
		{"map dangling value", map[string]*Descriptor{
			"m": Map(Int(), Ref("nope")),
		}, errors.KindSchemaMismatch},
		{"unknown kind", map[string]*Descriptor{
			"k": {Kind: Kind(200)},
		}, errors.KindUnsupported},
		{"duplicate field", map[string]*Descriptor{
			"p": Product("p", Named("x", Int()), Named("x", Bool())),
		}, errors.KindSchemaMismatch},
		{"duplicate variant", map[string]*Descriptor{
			"s": Sum("s", Variant("a"), Variant("a", Int())),
		}, errors.KindSchemaMismatch},
		{"too many block variants", map[string]*Descriptor{"big": tooMany}, errors.KindUnsupported},
		{"self ref", map[string]*Descriptor{"r": Ref("r")}, errors.KindSchemaMismatch},
		{"ref box cycle", map[string]*Descriptor{
			"a": Box(Ref("b")),
			"b": Ref("a"),
		}, errors.KindSchemaMismatch},
		{"nil field type", map[string]*Descriptor{
			"p": Product("p", Named("x", nil)),
		}, errors.KindNilPointer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSet(1)
			for name, d := range tt.defs {
				require.NoError(t, s.Add(name, d))
			}
			err := s.Validate()
			if tt.kind == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Equal(t, tt.kind, errors.KindOf(err), err.Error())
		})
	}
}

func TestSeal(t *testing.T) {
	s := modeSet()
	require.False(t, s.Sealed())
	fp := s.Fingerprint()

	require.NoError(t, s.Seal())
	require.True(t, s.Sealed())
	require.NoError(t, s.Seal())
	require.Equal(t, fp, s.Fingerprint())

	require.Error(t, s.Add("late", Int()))

	bad := NewSet(1).MustAdd("p", Ref("missing"))
	require.Error(t, bad.Seal())
	require.False(t, bad.Sealed())
}

func TestFingerprint(t *testing.T) {
	a := modeSet().Fingerprint()
	require.False(t, a.IsZero())
	require.Len(t, a.String(), 64)
	require.Equal(t, a, modeSet().Fingerprint(), "fingerprint is deterministic")

	bumped := modeSet()
	bumped.Version = 2
	require.NotEqual(t, a, bumped.Fingerprint())

	reordered := NewSet(1).
		MustAdd("mode", Sum("mode", Variant("b"), Variant("a"), Variant("c", Int()))).
		MustAdd("env", Product("env", Named("x", Int()), Named("m", Ref("mode"))))
	require.NotEqual(t, a, reordered.Fingerprint(), "variant order is part of identity")

	insertion := NewSet(1).
		MustAdd("env", Product("env", Named("x", Int()), Named("m", Ref("mode")))).
		MustAdd("mode", Sum("mode", Variant("a"), Variant("b"), Variant("c", Int())))
	require.Equal(t, a, insertion.Fingerprint(), "insertion order is not")

	require.True(t, Fingerprint{}.IsZero())
}
