package transcoder

import (
	"io"
	"reflect"

	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/schema"
	"go.uber.org/zap"
)

// Dropper is implemented by values that own a resource needing explicit
// release. Such values cannot be placed in an arena, which is freed
// without running any per-value cleanup.
type Dropper interface {
	Drop()
}

var (
	dropperType = reflect.TypeFor[Dropper]()
	closerType  = reflect.TypeFor[io.Closer]()
)

// CheckTrivialDrop compiles desc against goType and reports whether the
// resulting values can be released by discarding their arena. Every Go
// type reachable from goType is checked, including fields the descriptor
// does not bind.
func (c *Compiler) CheckTrivialDrop(desc *schema.Descriptor, goType reflect.Type) error {
	ct, err := c.Compile(desc, goType)
	if err != nil {
		return err
	}
	return c.checkTrivialDrop(ct)
}

func (c *Compiler) checkTrivialDrop(ct *CompiledType) error {
	if cached, ok := c.drops.Load(ct); ok {
		if cached == nil {
			return nil
		}
		return cached.(error)
	}
	err := planDrop(ct, nil, make(map[*CompiledType]bool))
	if err == nil {
		err = goDrop(ct.GoType, nil, make(map[reflect.Type]bool))
	}
	if err != nil {
		c.drops.Store(ct, err)
		Logger().Debug("binding is not trivially droppable",
			zap.Stringer("go_type", ct.GoType),
			zap.Error(err))
		return err
	}
	c.drops.Store(ct, nil)
	return nil
}

// planDrop rejects handles, which denote independently owned foreign
// resources.
func planDrop(ct *CompiledType, path []string, seen map[*CompiledType]bool) error {
	if seen[ct] {
		return nil
	}
	seen[ct] = true
	switch ct.Kind {
	case KindHandle:
		return errors.NotTrivialDrop(path, ct.GoType.String(), "handle owns a foreign resource")
	case KindOption:
		return planDrop(ct.Elem, child(path, "[some]"), seen)
	case KindList:
		return planDrop(ct.Elem, child(path, "[elem]"), seen)
	case KindBox:
		return planDrop(ct.Elem, path, seen)
	case KindProduct, KindMap:
		for _, f := range ct.Fields {
			if err := planDrop(f.Type, child(path, f.Name), seen); err != nil {
				return err
			}
		}
	case KindSum:
		for _, cs := range ct.Cases {
			for _, f := range cs.Fields {
				if err := planDrop(f.Type, child(path, cs.Name), seen); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func goDrop(t reflect.Type, path []string, seen map[reflect.Type]bool) error {
	if seen[t] {
		return nil
	}
	seen[t] = true

	switch {
	case t.Implements(dropperType) || reflect.PointerTo(t).Implements(dropperType):
		return errors.NotTrivialDrop(path, t.String(), "implements Drop")
	case t.Implements(closerType) || reflect.PointerTo(t).Implements(closerType):
		return errors.NotTrivialDrop(path, t.String(), "implements io.Closer")
	}

	switch t.Kind() {
	case reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return errors.NotTrivialDrop(path, t.String(), t.Kind().String()+" cannot be allocated in an arena")
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return goDrop(t.Elem(), path, seen)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if err := goDrop(f.Type, child(path, f.Name), seen); err != nil {
				return err
			}
		}
	}
	return nil
}
