package schema

import (
	"github.com/wippyai/blockrep/errors"
	"go.bytecodealliance.org/wit"
)

// FromWIT converts a WIT type into a descriptor named name.
//
// Integer types of every width and char become int, f32 and f64 become
// float, list<u8> becomes bytes, and result<T, E> becomes a sum with the
// variants ok and error. Resource handles (own, borrow) become handle.
// Flags, futures and streams have no counterpart and are rejected.
func FromWIT(name string, t wit.Type) (*Descriptor, error) {
	c := witConverter{seen: make(map[*wit.TypeDef]*Descriptor)}
	d, err := c.convert(t, []string{name})
	if err != nil {
		return nil, err
	}
	if d.Kind == KindProduct || d.Kind == KindSum {
		if d.Name == "" {
			d.Name = name
		}
		return d, nil
	}
	return Alias(name, d), nil
}

// AddWIT converts t and registers it in s under name.
func (s *Set) AddWIT(name string, t wit.Type) error {
	d, err := FromWIT(name, t)
	if err != nil {
		return err
	}
	return s.Add(name, d)
}

type witConverter struct {
	seen map[*wit.TypeDef]*Descriptor
}

func (c *witConverter) convert(t wit.Type, path []string) (*Descriptor, error) {
	switch t := t.(type) {
	case wit.Bool:
		return Bool(), nil
	case wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.U64, wit.S64, wit.Char:
		return Int(), nil
	case wit.F32, wit.F64:
		return Float(), nil
	case wit.String:
		return String(), nil
	case *wit.TypeDef:
		if d, ok := c.seen[t]; ok {
			return d, nil
		}
		d, err := c.convertTypeDef(t, path)
		if err != nil {
			return nil, err
		}
		c.seen[t] = d
		return d, nil
	case nil:
		return nil, errors.NilPointer(errors.PhaseSchema, path, "wit.Type")
	default:
		return nil, unsupportedWIT(path, t)
	}
}

func (c *witConverter) convertTypeDef(td *wit.TypeDef, path []string) (*Descriptor, error) {
	name := ""
	if td.Name != nil {
		name = *td.Name
	}

	switch kind := td.Kind.(type) {
	case *wit.Record:
		d := Product(name)
		for _, f := range kind.Fields {
			ft, err := c.convert(f.Type, child(path, f.Name))
			if err != nil {
				return nil, err
			}
			d.Fields = append(d.Fields, Named(f.Name, ft))
		}
		return d, nil

	case *wit.Tuple:
		types := make([]*Descriptor, len(kind.Types))
		for i, et := range kind.Types {
			t, err := c.convert(et, path)
			if err != nil {
				return nil, err
			}
			types[i] = t
		}
		return Tuple(name, types...), nil

	case *wit.Variant:
		d := Sum(name)
		for _, vc := range kind.Cases {
			if vc.Type == nil {
				d.Variants = append(d.Variants, Variant(vc.Name))
				continue
			}
			ct, err := c.convert(vc.Type, child(path, vc.Name))
			if err != nil {
				return nil, err
			}
			d.Variants = append(d.Variants, Variant(vc.Name, ct))
		}
		return d, nil

	case *wit.Enum:
		cases := make([]string, len(kind.Cases))
		for i, ec := range kind.Cases {
			cases[i] = ec.Name
		}
		return Enum(name, cases...), nil

	case *wit.Option:
		elem, err := c.convert(kind.Type, child(path, "[option]"))
		if err != nil {
			return nil, err
		}
		return Option(elem), nil

	case *wit.List:
		if _, ok := kind.Type.(wit.U8); ok {
			return Bytes(), nil
		}
		elem, err := c.convert(kind.Type, child(path, "[list]"))
		if err != nil {
			return nil, err
		}
		return List(elem), nil

	case *wit.Result:
		ok := Variant("ok")
		if kind.OK != nil {
			t, err := c.convert(kind.OK, child(path, "ok"))
			if err != nil {
				return nil, err
			}
			ok = Variant("ok", t)
		}
		fail := Variant("error")
		if kind.Err != nil {
			t, err := c.convert(kind.Err, child(path, "error"))
			if err != nil {
				return nil, err
			}
			fail = Variant("error", t)
		}
		return Sum(name, ok, fail), nil

	case *wit.Own, *wit.Borrow:
		return Handle(), nil

	case *wit.Flags:
		return nil, unsupportedWIT(path, kind)

	case wit.Type:
		return c.convert(kind, path)

	default:
		return nil, unsupportedWIT(path, kind)
	}
}

func unsupportedWIT(path []string, t any) error {
	return errors.New(errors.PhaseSchema, errors.KindUnsupported).
		Path(path...).
		Detail("WIT type %T has no block representation", t).
		Build()
}
