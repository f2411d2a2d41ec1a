package layout

import (
	"reflect"
	"testing"

	"github.com/wippyai/blockrep/schema"
)

func TestTagTable(t *testing.T) {
	d := schema.Sum("mode",
		schema.Variant("a"),
		schema.Variant("b"),
		schema.Variant("c", schema.Int()),
		schema.Variant("d"),
		schema.Variant("e", schema.Int(), schema.Int()),
	)
	tt := NewTagTable(d.Variants)

	if want := []int{0, 1, 3}; !reflect.DeepEqual(tt.Immediates, want) {
		t.Errorf("Immediates = %v, want %v", tt.Immediates, want)
	}
	if want := []int{2, 4}; !reflect.DeepEqual(tt.Blocks, want) {
		t.Errorf("Blocks = %v, want %v", tt.Blocks, want)
	}
	if want := []int{0, 1, 0, 2, 1}; !reflect.DeepEqual(tt.Slots, want) {
		t.Errorf("Slots = %v, want %v", tt.Slots, want)
	}
	if want := []int{0, 0, 1, 0, 2}; !reflect.DeepEqual(tt.Arity, want) {
		t.Errorf("Arity = %v, want %v", tt.Arity, want)
	}

	tests := []struct {
		name      string
		immediate bool
		n         int64
		want      int
		ok        bool
	}{
		{"imm 0", true, 0, 0, true},
		{"imm 2", true, 2, 3, true},
		{"imm 3 out of range", true, 3, 0, false},
		{"imm negative", true, -1, 0, false},
		{"tag 0", false, 0, 2, true},
		{"tag 1", false, 1, 4, true},
		{"tag 2 out of range", false, 2, 0, false},
		{"string tag", false, 252, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got int
			var ok bool
			if tc.immediate {
				got, ok = tt.FromImmediate(tc.n)
			} else {
				got, ok = tt.FromTag(uint8(tc.n))
			}
			if ok != tc.ok || got != tc.want {
				t.Errorf("got (%d, %v), want (%d, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}

	if !tt.Nullary(3) || tt.Nullary(4) {
		t.Error("Nullary disagrees with the declared fields")
	}
}

func TestTagTableSeparateSpaces(t *testing.T) {
	// Mode = A | B | C of int: C is block tag 0, not 2.
	d := schema.Sum("mode", schema.Variant("a"), schema.Variant("b"), schema.Variant("c", schema.Int()))
	tt := NewTagTable(d.Variants)
	if tt.Slots[2] != 0 {
		t.Errorf("c tag = %d, want 0", tt.Slots[2])
	}
	if tt.Slots[1] != 1 {
		t.Errorf("b immediate = %d, want 1", tt.Slots[1])
	}
}

func TestCalculate(t *testing.T) {
	c := NewCalculator()

	p := schema.Product("p", schema.Named("x", schema.Int()), schema.Named("y", schema.String()))
	if got := c.Calculate(p).Arity; got != 2 {
		t.Errorf("product arity = %d, want 2", got)
	}
	if got := c.Calculate(schema.Product("empty")).Arity; got != 0 {
		t.Errorf("empty product arity = %d, want 0", got)
	}

	s := schema.Enum("e", "x", "y")
	info := c.Calculate(s)
	if info.Tags == nil || len(info.Tags.Immediates) != 2 {
		t.Fatalf("enum tag table = %+v", info.Tags)
	}
	if again := c.Calculate(s); again.Tags != info.Tags {
		t.Error("tag table not cached")
	}

	if got := c.Calculate(schema.Int()); got.Tags != nil || got.Arity != 0 {
		t.Errorf("scalar info = %+v", got)
	}
}
