package schema

import (
	"bytes"
	"encoding/json"
	"os"
	"slices"

	"github.com/tidwall/jsonc"
	"github.com/wippyai/blockrep/errors"
)

// A schema file is JSON with comments and trailing commas:
//
//	{
//	  "version": 1,
//	  "types": {
//	    "mode": {"sum": [{"name": "a"}, {"name": "b"}, {"name": "c", "fields": ["int"]}]},
//	    "env":  {"product": [{"name": "x", "type": "int"}, {"name": "m", "type": "mode"}]},
//	    "ints": {"list": "int"},
//	    "vars": {"map": {"key": "string", "value": "int"}},
//	  },
//	}
//
// A type expression is a primitive name, the name of another type in the
// file, or an object with exactly one of the keys option, list, box, map,
// product, tuple, sum or enum.

type fileFormat struct {
	Types   map[string]json.RawMessage `json:"types"`
	Version uint32                     `json:"version"`
}

type fieldFormat struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

type mapFormat struct {
	Key   json.RawMessage `json:"key"`
	Value json.RawMessage `json:"value"`
}

type caseFormat struct {
	Name   string            `json:"name"`
	Fields []json.RawMessage `json:"fields"`
	Record []fieldFormat     `json:"record"`
}

var primitives = map[string]func() *Descriptor{
	"unit":   Unit,
	"bool":   Bool,
	"int":    Int,
	"float":  Float,
	"string": String,
	"bytes":  Bytes,
	"handle": Handle,
}

// ParseJSONC parses a schema file into a Set. The set is validated but not
// sealed.
func ParseJSONC(data []byte) (*Set, error) {
	var file fileFormat
	if err := strictUnmarshal(jsonc.ToJSON(data), &file); err != nil {
		return nil, errors.Wrap(errors.PhaseSchema, errors.KindInvalidData, err, "parsing schema file")
	}
	if len(file.Types) == 0 {
		return nil, errors.InvalidInput(errors.PhaseSchema, "schema file defines no types")
	}

	set := NewSet(file.Version)
	names := make([]string, 0, len(file.Types))
	for name := range file.Types {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		d, err := parseType(file.Types[name], []string{name})
		if err != nil {
			return nil, err
		}
		if d.Kind != KindProduct && d.Kind != KindSum {
			d = Alias(name, d)
		}
		if err := set.Add(name, d); err != nil {
			return nil, err
		}
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// LoadFile reads and parses a schema file.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseSchema, errors.KindNotFound).
			Detail("reading %s", path).
			Cause(err).
			Build()
	}
	set, err := ParseJSONC(data)
	if err != nil {
		return nil, errors.WithPath(err, []string{path})
	}
	return set, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseType(raw json.RawMessage, path []string) (*Descriptor, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, invalidType(path, "missing type expression")
	}

	if raw[0] == '"' {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, invalidType(path, err.Error())
		}
		if mk, ok := primitives[name]; ok {
			return mk(), nil
		}
		if name == "" {
			return nil, invalidType(path, "empty type name")
		}
		return Ref(name), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, invalidType(path, "type expression must be a string or an object")
	}
	if len(obj) != 1 {
		return nil, invalidType(path, "type object must have exactly one key")
	}

	var key string
	for k := range obj {
		key = k
	}
	body := obj[key]

	switch key {
	case "option", "list", "box":
		elem, err := parseType(body, child(path, "["+key+"]"))
		if err != nil {
			return nil, err
		}
		switch key {
		case "option":
			return Option(elem), nil
		case "list":
			return List(elem), nil
		default:
			return Box(elem), nil
		}

	case "map":
		var m mapFormat
		if err := strictUnmarshal(body, &m); err != nil {
			return nil, invalidType(path, err.Error())
		}
		k, err := parseType(m.Key, child(path, "[key]"))
		if err != nil {
			return nil, err
		}
		v, err := parseType(m.Value, child(path, "[value]"))
		if err != nil {
			return nil, err
		}
		return Map(k, v), nil

	case "product":
		var fields []fieldFormat
		if err := strictUnmarshal(body, &fields); err != nil {
			return nil, invalidType(path, err.Error())
		}
		fs, err := parseFields(fields, path)
		if err != nil {
			return nil, err
		}
		return Product("", fs...), nil

	case "tuple":
		types, err := parseTypes(body, path)
		if err != nil {
			return nil, err
		}
		return Tuple("", types...), nil

	case "enum":
		var cases []string
		if err := json.Unmarshal(body, &cases); err != nil {
			return nil, invalidType(path, err.Error())
		}
		return Enum("", cases...), nil

	case "sum":
		var cases []caseFormat
		if err := strictUnmarshal(body, &cases); err != nil {
			return nil, invalidType(path, err.Error())
		}
		d := Sum("")
		for _, c := range cases {
			if c.Name == "" {
				return nil, invalidType(path, "variant without a name")
			}
			casePath := child(path, c.Name)
			switch {
			case len(c.Fields) > 0 && len(c.Record) > 0:
				return nil, invalidType(casePath, "variant has both fields and record")
			case len(c.Record) > 0:
				fs, err := parseFields(c.Record, casePath)
				if err != nil {
					return nil, err
				}
				d.Variants = append(d.Variants, RecordVariant(c.Name, fs...))
			default:
				types := make([]*Descriptor, len(c.Fields))
				for i, f := range c.Fields {
					t, err := parseType(f, casePath)
					if err != nil {
						return nil, err
					}
					types[i] = t
				}
				d.Variants = append(d.Variants, Variant(c.Name, types...))
			}
		}
		return d, nil

	default:
		return nil, invalidType(path, "unknown type constructor "+key)
	}
}

func parseFields(fields []fieldFormat, path []string) ([]Field, error) {
	out := make([]Field, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, invalidType(path, "field without a name")
		}
		t, err := parseType(f.Type, child(path, f.Name))
		if err != nil {
			return nil, err
		}
		out[i] = Named(f.Name, t)
	}
	return out, nil
}

func parseTypes(body json.RawMessage, path []string) ([]*Descriptor, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, invalidType(path, err.Error())
	}
	types := make([]*Descriptor, len(raws))
	for i, r := range raws {
		t, err := parseType(r, path)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	return types, nil
}

func invalidType(path []string, detail string) error {
	return errors.New(errors.PhaseSchema, errors.KindInvalidData).
		Path(path...).
		Detail("%s", detail).
		Build()
}
