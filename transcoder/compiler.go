package transcoder

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/schema"
	"github.com/wippyai/blockrep/transcoder/internal/layout"
	"go.uber.org/zap"
)

// Compiler binds descriptors of one schema.Set to Go types. Plans are
// cached, so a Compiler is cheap to call repeatedly and safe for
// concurrent use.
type Compiler struct {
	set     *schema.Set
	layout  *layout.Calculator
	cache   sync.Map // cacheKey -> *CompiledType
	drops   sync.Map // *CompiledType -> error, nil when droppable
	sealErr error
	sealed  sync.Once
}

type cacheKey struct {
	desc   *schema.Descriptor
	goType reflect.Type
}

func NewCompiler(set *schema.Set) *Compiler {
	return &Compiler{
		set:    set,
		layout: layout.NewCalculator(),
	}
}

// Set returns the schema the compiler binds against.
func (c *Compiler) Set() *schema.Set {
	return c.set
}

// CompileNamed compiles the descriptor registered under name.
func (c *Compiler) CompileNamed(name string, goType reflect.Type) (*CompiledType, error) {
	if c.set == nil {
		return nil, errors.NilPointer(errors.PhaseCompile, nil, "*schema.Set")
	}
	desc, ok := c.set.Lookup(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseCompile, "type", name)
	}
	return c.Compile(desc, goType)
}

// Compile returns the plan binding desc to goType. The schema is sealed
// on the first call.
func (c *Compiler) Compile(desc *schema.Descriptor, goType reflect.Type) (*CompiledType, error) {
	if goType == nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindNilPointer).
			Detail("Go type cannot be nil").
			Build()
	}
	if desc == nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindNilPointer).
			Detail("descriptor cannot be nil").
			Build()
	}
	if err := c.seal(); err != nil {
		return nil, err
	}

	key := cacheKey{desc: desc, goType: goType}
	if cached, ok := c.cache.Load(key); ok {
		return cached.(*CompiledType), nil
	}

	building := make(map[cacheKey]*CompiledType)
	ct, err := c.compile(desc, goType, nil, building)
	if err != nil {
		return nil, err
	}
	for k, v := range building {
		c.cache.LoadOrStore(k, v)
	}
	actual, _ := c.cache.LoadOrStore(key, ct)

	Logger().Debug("compiled plan",
		zap.String("type", desc.TypeName()),
		zap.Stringer("go_type", goType),
		zap.Int("nodes", len(building)))
	return actual.(*CompiledType), nil
}

func (c *Compiler) seal() error {
	c.sealed.Do(func() {
		if c.set == nil {
			c.sealErr = errors.NilPointer(errors.PhaseCompile, nil, "*schema.Set")
			return
		}
		c.sealErr = c.set.Seal()
	})
	return c.sealErr
}

func (c *Compiler) compile(desc *schema.Descriptor, goType reflect.Type, path []string, building map[cacheKey]*CompiledType) (*CompiledType, error) {
	desc, err := c.set.Resolve(desc)
	if err != nil {
		return nil, errors.WithPath(err, path)
	}

	key := cacheKey{desc: desc, goType: goType}
	if cached, ok := c.cache.Load(key); ok {
		return cached.(*CompiledType), nil
	}
	if ct, ok := building[key]; ok {
		return ct, nil
	}

	ct := &CompiledType{
		GoType: goType,
		GoSize: goType.Size(),
		GoKind: goType.Kind(),
		Desc:   desc,
		Name:   desc.TypeName(),
	}

	switch desc.Kind {
	case schema.KindOption:
		if goType.Kind() != reflect.Pointer {
			return nil, mismatch(path, goType, desc, "pointer")
		}
		ct.Kind = KindOption
		building[key] = ct
		elem, err := c.compile(desc.Elem, goType.Elem(), child(path, "[some]"), building)
		if err != nil {
			return nil, err
		}
		ct.Elem = elem
		return ct, nil

	case schema.KindBox:
		if goType.Kind() != reflect.Pointer {
			// An inline box is the element itself.
			return c.compile(desc.Elem, goType, path, building)
		}
		return c.compileIndirect(ct, desc.Elem, key, path, building)
	}

	if goType.Kind() == reflect.Pointer {
		return c.compileIndirect(ct, desc, key, path, building)
	}

	switch desc.Kind {
	case schema.KindUnit:
		if goType.Size() != 0 {
			return nil, mismatch(path, goType, desc, "zero-size type")
		}
		ct.Kind = KindUnit
	case schema.KindBool:
		if goType.Kind() != reflect.Bool {
			return nil, mismatch(path, goType, desc, "bool")
		}
		ct.Kind = KindBool
	case schema.KindInt, schema.KindHandle:
		if !isIntKind(goType.Kind()) {
			return nil, mismatch(path, goType, desc, "integer")
		}
		ct.Kind = KindInt
		if desc.Kind == schema.KindHandle {
			ct.Kind = KindHandle
		}
	case schema.KindFloat:
		if goType.Kind() != reflect.Float32 && goType.Kind() != reflect.Float64 {
			return nil, mismatch(path, goType, desc, "float32 or float64")
		}
		ct.Kind = KindFloat
	case schema.KindString, schema.KindBytes:
		if goType.Kind() != reflect.String && !isByteSlice(goType) {
			return nil, mismatch(path, goType, desc, "string or []byte")
		}
		ct.Kind = KindString
		if desc.Kind == schema.KindBytes {
			ct.Kind = KindBytes
		}
	case schema.KindList:
		if goType.Kind() != reflect.Slice {
			return nil, mismatch(path, goType, desc, "slice")
		}
		ct.Kind = KindList
		building[key] = ct
		elem, err := c.compile(desc.Elem, goType.Elem(), child(path, "[elem]"), building)
		if err != nil {
			return nil, err
		}
		ct.Elem = elem
		return ct, nil
	case schema.KindMap:
		if goType.Kind() != reflect.Slice || goType.Elem().Kind() != reflect.Struct {
			return nil, mismatch(path, goType, desc, "slice of key/value structs")
		}
		ct.Kind = KindMap
		building[key] = ct
		fields, err := c.bindFields([]schema.Field{
			schema.Named("key", desc.Key),
			schema.Named("value", desc.Elem),
		}, goType.Elem(), path, building)
		if err != nil {
			return nil, err
		}
		ct.Fields = fields
		return ct, nil
	case schema.KindProduct:
		ct.Kind = KindProduct
		building[key] = ct
		fields, err := c.bindFields(desc.Fields, goType, path, building)
		if err != nil {
			return nil, err
		}
		ct.Fields = fields
		return ct, nil
	case schema.KindSum:
		ct.Tags = c.layout.Calculate(desc).Tags
		if isIntKind(goType.Kind()) {
			if len(ct.Tags.Blocks) > 0 {
				return nil, mismatch(path, goType, desc, "struct of variant pointers")
			}
			ct.Kind = KindEnum
			ct.Cases = make([]CompiledCase, len(desc.Variants))
			for i, v := range desc.Variants {
				ct.Cases[i] = CompiledCase{Name: v.Name, Index: i, Slot: ct.Tags.Slots[i], Nullary: true}
			}
			return ct, nil
		}
		ct.Kind = KindSum
		building[key] = ct
		cases, err := c.bindCases(desc, ct.Tags, goType, path, building)
		if err != nil {
			return nil, err
		}
		ct.Cases = cases
		return ct, nil
	default:
		return nil, errors.New(errors.PhaseCompile, errors.KindUnsupported).
			Path(path...).
			Detail("unsupported descriptor kind: %s", desc.Kind).
			Build()
	}
	return ct, nil
}

// compileIndirect builds a box plan for a Go pointer whose pointee binds
// elem.
func (c *Compiler) compileIndirect(ct *CompiledType, elem *schema.Descriptor, key cacheKey, path []string, building map[cacheKey]*CompiledType) (*CompiledType, error) {
	ct.Kind = KindBox
	ct.Indirect = true
	building[key] = ct
	inner, err := c.compile(elem, key.goType.Elem(), path, building)
	if err != nil {
		return nil, err
	}
	ct.Elem = inner
	return ct, nil
}

func (c *Compiler) bindFields(fields []schema.Field, goType reflect.Type, path []string, building map[cacheKey]*CompiledType) ([]CompiledField, error) {
	out := make([]CompiledField, 0, len(fields))
	switch goType.Kind() {
	case reflect.Struct:
		for _, f := range fields {
			goField, found := findGoField(goType, f.Name)
			if !found {
				return nil, errors.FieldMissing(errors.PhaseCompile, path, f.Name)
			}
			ft, err := c.compile(f.Type, goField.Type, child(path, f.Name), building)
			if err != nil {
				return nil, err
			}
			out = append(out, CompiledField{
				Type:     ft,
				Name:     f.Name,
				GoName:   goField.Name,
				GoOffset: goField.Offset,
			})
		}
	case reflect.Array:
		if goType.Len() != len(fields) {
			return nil, errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
				Path(path...).
				GoType(goType.String()).
				Detail("array has %d elements, descriptor has %d fields", goType.Len(), len(fields)).
				Build()
		}
		elem := goType.Elem()
		for i, f := range fields {
			ft, err := c.compile(f.Type, elem, child(path, f.Name), building)
			if err != nil {
				return nil, err
			}
			out = append(out, CompiledField{
				Type:     ft,
				Name:     f.Name,
				GoName:   "[" + strconv.Itoa(i) + "]",
				GoOffset: uintptr(i) * elem.Size(),
			})
		}
	default:
		return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), "struct or array")
	}
	return out, nil
}

func (c *Compiler) bindCases(desc *schema.Descriptor, tags *layout.TagTable, goType reflect.Type, path []string, building map[cacheKey]*CompiledType) ([]CompiledCase, error) {
	if goType.Kind() != reflect.Struct {
		return nil, mismatch(path, goType, desc, "struct of variant pointers")
	}

	cases := make([]CompiledCase, len(desc.Variants))
	for i, v := range desc.Variants {
		casePath := child(path, v.Name)
		goField, found := findGoField(goType, v.Name)
		if !found {
			return nil, errors.FieldMissing(errors.PhaseCompile, path, v.Name)
		}
		if goField.Type.Kind() != reflect.Pointer {
			return nil, errors.TypeMismatch(errors.PhaseCompile, casePath, goField.Type.String(), "pointer")
		}

		cc := CompiledCase{
			Payload:  goField.Type.Elem(),
			Name:     v.Name,
			GoOffset: goField.Offset,
			Index:    i,
			Slot:     tags.Slots[i],
			Nullary:  v.Nullary(),
		}

		switch {
		case cc.Nullary:
			if cc.Payload.Size() != 0 {
				return nil, errors.TypeMismatch(errors.PhaseCompile, casePath, goField.Type.String(), "pointer to a zero-size type")
			}
		case c.bindsDirectly(v, cc.Payload):
			ft, err := c.compile(v.Fields[0].Type, cc.Payload, casePath, building)
			if err != nil {
				return nil, err
			}
			cc.Fields = []CompiledField{{Type: ft, Name: v.Fields[0].Name, GoName: goField.Name}}
			cc.Direct = true
		default:
			fields, err := c.bindFields(v.Fields, cc.Payload, casePath, building)
			if err != nil {
				return nil, err
			}
			cc.Fields = fields
		}
		cases[i] = cc
	}
	return cases, nil
}

// bindsDirectly reports whether the pointee of a single-field variant is
// the field value itself rather than a struct holding it.
func (c *Compiler) bindsDirectly(v schema.Case, payload reflect.Type) bool {
	if len(v.Fields) != 1 {
		return false
	}
	if payload.Kind() != reflect.Struct {
		return true
	}
	field, err := c.set.Resolve(v.Fields[0].Type)
	if err != nil {
		return true
	}
	switch field.Kind {
	case schema.KindProduct, schema.KindSum, schema.KindUnit, schema.KindBox:
		return true
	}
	return false
}

// findGoField matches by: 1) rep:"name" tag, 2) case-insensitive, 3) kebab or
// snake case.
func findGoField(goType reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < goType.NumField(); i++ {
		field := goType.Field(i)
		if !field.IsExported() {
			continue
		}

		if tag := field.Tag.Get("rep"); tag != "" {
			if tag == "-" {
				continue
			}
			if tag == name {
				return field, true
			}
		}

		if strings.EqualFold(field.Name, name) {
			return field, true
		}

		if toCase(field.Name, '-') == name || toCase(field.Name, '_') == name {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

func toCase(s string, sep rune) string {
	var result strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				result.WriteRune(sep)
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isByteSlice(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func mismatch(path []string, goType reflect.Type, desc *schema.Descriptor, expected string) error {
	return errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
		Path(path...).
		GoType(goType.String()).
		SchemaType(desc.TypeName()).
		Detail("expected %s", expected).
		Build()
}

func child(path []string, name string) []string {
	return append(path[:len(path):len(path)], name)
}
