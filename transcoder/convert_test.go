package transcoder

import (
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/wippyai/blockrep/arena"
	"github.com/wippyai/blockrep/errors"
)

func TestConvert_RoundTrip(t *testing.T) {
	c := newCodec(t)
	a := arena.New()
	defer a.Release()

	env := sampleEnv()
	view, err := ToBorrowed[EnvView](c, "env", &env, a)
	if err != nil {
		t.Fatalf("ToBorrowed: %v", err)
	}
	if string(view.Label) != env.Name || view.Color != int(env.Color) || view.Scratch != "" {
		t.Fatalf("unexpected view %+v", view)
	}

	back, err := ToOwned[Env](c, "env", view)
	if err != nil {
		t.Fatalf("ToOwned: %v", err)
	}
	if !reflect.DeepEqual(back, env) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", back, env)
	}
}

func TestConvert_OwnedOutlivesArena(t *testing.T) {
	c := newCodec(t)
	a := arena.New()

	tree := node(leaf(), 1, node(leaf(), 2, leaf()))
	borrowed, err := ToBorrowed[Tree](c, "tree", &tree, a)
	if err != nil {
		t.Fatal(err)
	}
	owned, err := ToOwned[Tree](c, "tree", borrowed)
	if err != nil {
		t.Fatal(err)
	}
	a.Release()

	if !reflect.DeepEqual(owned, tree) {
		t.Error("owned copy changed after arena release")
	}
}

func TestConvert_BorrowedDoesNotAliasSource(t *testing.T) {
	c := newCodec(t)
	a := arena.New()
	defer a.Release()

	env := sampleEnv()
	borrowed, err := ToBorrowed[Env](c, "env", &env, a)
	if err != nil {
		t.Fatal(err)
	}
	env.Blob[0] = 42
	*env.Limit = 100
	if borrowed.Blob[0] != 0 || *borrowed.Limit != 7 {
		t.Error("borrowed value aliases its source")
	}
}

func TestConvert_Cycles(t *testing.T) {
	c := newCodec(t)
	a := arena.New()
	defer a.Release()

	n := &Node{Value: 1}
	n.Next = &Node{Value: 2, Next: n}
	borrowed, err := ToBorrowed[Node](c, "node", n, a)
	if err != nil {
		t.Fatalf("ToBorrowed: %v", err)
	}
	if borrowed.Next.Next != borrowed {
		t.Error("cycle lost in ToBorrowed")
	}

	_, err = ToOwned[Node](c, "node", borrowed)
	if !stderrors.Is(err, errors.ErrCyclicValue) {
		t.Fatalf("ToOwned: got %v, want cyclic value", err)
	}
}

func TestConvert_Errors(t *testing.T) {
	c := newCodec(t)
	a := arena.New()
	defer a.Release()

	if _, err := ToOwned[Env, Env](c, "env", nil); errors.KindOf(err) != errors.KindNilPointer {
		t.Errorf("nil source: got %v", err)
	}
	if _, err := ToBorrowed[Env](c, "env", &Env{}, nil); errors.KindOf(err) != errors.KindNilPointer {
		t.Errorf("nil arena: got %v", err)
	}
	if _, err := ToOwned[Point](c, "env", &Env{}); errors.KindOf(err) != errors.KindFieldMissing {
		t.Errorf("mismatched type: got %v", err)
	}
	if _, err := ToBorrowed[Env](c, "env", &Env{}, a); errors.KindOf(err) != errors.KindNoActiveVariant {
		t.Errorf("invalid source: got %v", err)
	}
	if a.Stats().Used != 0 {
		t.Errorf("arena used %d bytes after failures", a.Stats().Used)
	}
}
