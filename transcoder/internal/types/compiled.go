package types

import (
	"reflect"

	"github.com/wippyai/blockrep/schema"
	"github.com/wippyai/blockrep/transcoder/internal/layout"
)

// CompiledType is the plan binding one descriptor to one Go type.
// Plans may be cyclic when the descriptor is recursive.
type CompiledType struct {
	GoType reflect.Type
	Desc   *schema.Descriptor
	// Elem is the element plan of options, lists and boxes.
	Elem *CompiledType
	// Tags is the tag table of sums and enums.
	Tags *layout.TagTable
	Name string
	// Fields holds product fields; for maps, the key and value of one
	// entry.
	Fields []Field
	Cases  []Case
	GoSize uintptr
	GoKind reflect.Kind
	Kind   Kind
	// Indirect is set on boxes bound to a Go pointer.
	Indirect bool
}

// Field binds one product field or variant field to a Go location.
type Field struct {
	Type     *CompiledType
	Name     string
	GoName   string
	GoOffset uintptr
}

// Case binds one sum variant. For struct bound sums GoOffset locates the
// pointer field selecting the case and Payload is the pointee type; for
// enums only Name and Slot are used. Direct is set when the pointee of a
// single-field case is the field value itself.
type Case struct {
	Payload  reflect.Type
	Name     string
	Fields   []Field
	GoOffset uintptr
	Index    int
	Slot     int
	Nullary  bool
	Direct   bool
}

// Arity returns the block size of a product plan.
func (ct *CompiledType) Arity() int {
	return len(ct.Fields)
}

// IsPure reports whether values of this plan contain no Go pointers, so
// they can be copied with a plain memory move.
func (ct *CompiledType) IsPure() bool {
	return ct.isPure(make(map[*CompiledType]bool))
}

func (ct *CompiledType) isPure(seen map[*CompiledType]bool) bool {
	if seen[ct] {
		return false
	}
	seen[ct] = true
	switch ct.Kind {
	case KindUnit, KindBool, KindInt, KindFloat, KindHandle, KindEnum:
		return true
	case KindProduct:
		for _, f := range ct.Fields {
			if !f.Type.isPure(seen) {
				return false
			}
		}
		return true
	case KindBox:
		return !ct.Indirect && ct.Elem.isPure(seen)
	default:
		return false
	}
}
