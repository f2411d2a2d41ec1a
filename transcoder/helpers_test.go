package transcoder

import (
	"testing"

	"github.com/wippyai/blockrep/heap"
	"github.com/wippyai/blockrep/memory"
	"github.com/wippyai/blockrep/schema"
	"github.com/wippyai/blockrep/value"
)

func testSet() *schema.Set {
	return schema.NewSet(1).
		MustAdd("mode", schema.Sum("mode",
			schema.Variant("a"),
			schema.Variant("b"),
			schema.Variant("c", schema.Int()))).
		MustAdd("color", schema.Enum("color", "red", "green", "blue")).
		MustAdd("point", schema.Product("point",
			schema.Named("x", schema.Int()),
			schema.Named("y", schema.Int()),
			schema.Named("z", schema.Int()))).
		MustAdd("env", schema.Product("env",
			schema.Named("name", schema.String()),
			schema.Named("count", schema.Int()),
			schema.Named("ratio", schema.Float()),
			schema.Named("enabled", schema.Bool()),
			schema.Named("tags", schema.List(schema.String())),
			schema.Named("blob", schema.Bytes()),
			schema.Named("limit", schema.Option(schema.Int())),
			schema.Named("mode", schema.Ref("mode")),
			schema.Named("color", schema.Ref("color")))).
		MustAdd("tree", schema.Sum("tree",
			schema.Variant("leaf"),
			schema.RecordVariant("node",
				schema.Named("left", schema.Ref("tree")),
				schema.Named("value", schema.Int()),
				schema.Named("right", schema.Ref("tree"))))).
		MustAdd("shape", schema.Sum("shape",
			schema.Variant("circle", schema.Float()),
			schema.Variant("empty"),
			schema.RecordVariant("rect",
				schema.Named("w", schema.Float()),
				schema.Named("h", schema.Float())),
			schema.Variant("dot"))).
		MustAdd("node", schema.Product("node",
			schema.Named("value", schema.Int()),
			schema.Named("next", schema.Option(schema.Ref("node"))))).
		MustAdd("pair", schema.Product("pair",
			schema.Named("a", schema.Box(schema.Ref("point"))),
			schema.Named("b", schema.Box(schema.Ref("point"))))).
		MustAdd("ints", schema.List(schema.Int())).
		MustAdd("vars", schema.Map(schema.String(), schema.Ref("point"))).
		MustAdd("empty", schema.Product("empty")).
		MustAdd("res", schema.Product("res", schema.Named("fd", schema.Handle())))
}

type Mode struct {
	A *struct{}
	B *struct{}
	C *int32
}

type Color uint8

const (
	Red Color = iota
	Green
	Blue
)

type Point struct {
	X, Y, Z int
}

type Env struct {
	Name    string
	Count   int64
	Ratio   float64
	Enabled bool
	Tags    []string
	Blob    []byte
	Limit   *uint32
	Mode    Mode
	Color   Color
}

// EnvView binds the env descriptor to different Go types.
type EnvView struct {
	Label   []byte `rep:"name"`
	Count   int32
	Ratio   float64
	Enabled bool
	Tags    [][]byte
	Blob    string
	Limit   *int64
	Mode    Mode
	Color   int
	Scratch string `rep:"-"`
}

type Tree struct {
	Leaf *struct{}
	Node *TreeNode
}

type TreeNode struct {
	Left  Tree
	Value int
	Right Tree
}

type Rect struct {
	W, H float64
}

type Shape struct {
	Circle *float64
	Empty  *struct{}
	Rect   *Rect
	Dot    *struct{}
}

type Node struct {
	Value int
	Next  *Node
}

type Pair struct {
	A *Point
	B *Point
}

type Var struct {
	Key   string
	Value Point
}

// VarView binds the vars descriptor to different Go types.
type VarView struct {
	Name []byte `rep:"key"`
	P    *Point `rep:"value"`
}

type Empty struct{}

type Res struct {
	FD uint32
}

func ptr[T any](v T) *T {
	return &v
}

func unit() *struct{} {
	return &struct{}{}
}

func leaf() Tree {
	return Tree{Leaf: unit()}
}

func node(l Tree, v int, r Tree) Tree {
	return Tree{Node: &TreeNode{Left: l, Value: v, Right: r}}
}

func sampleEnv() Env {
	return Env{
		Name:    "prod",
		Count:   -42,
		Ratio:   0.25,
		Enabled: true,
		Tags:    []string{"a", "bb", "ccc"},
		Blob:    []byte{0, 1, 2, 255},
		Limit:   ptr(uint32(7)),
		Mode:    Mode{C: ptr(int32(5))},
		Color:   Blue,
	}
}

func newHeap() *heap.Heap {
	return heap.New(memory.NewSlice(64))
}

func newCodec(t *testing.T, opts ...Option) *Codec {
	t.Helper()
	c, err := New(testSet(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func mustBlock(t *testing.T, h *heap.Heap, v value.Value) heap.Block {
	t.Helper()
	b, err := h.Block(v)
	if err != nil {
		t.Fatalf("Block(%s) error = %v", v, err)
	}
	return b
}

func mustField(t *testing.T, b heap.Block, i uint32) value.Value {
	t.Helper()
	f, err := b.Field(i)
	if err != nil {
		t.Fatalf("Field(%d) error = %v", i, err)
	}
	return f
}
