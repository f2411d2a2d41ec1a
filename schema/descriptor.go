package schema

import (
	"strconv"
	"strings"
)

// Kind discriminates descriptors.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUnit
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindOption
	KindList
	KindBox
	KindProduct
	KindSum
	KindRef
	KindHandle
	KindMap
	kindCount
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindUnit:    "unit",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindString:  "string",
	KindBytes:   "bytes",
	KindOption:  "option",
	KindList:    "list",
	KindBox:     "box",
	KindProduct: "product",
	KindSum:     "sum",
	KindRef:     "ref",
	KindHandle:  "handle",
	KindMap:     "map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsScalar reports whether values of kind k carry no nested descriptors.
func (k Kind) IsScalar() bool {
	switch k {
	case KindUnit, KindBool, KindInt, KindFloat, KindString, KindBytes, KindHandle:
		return true
	}
	return false
}

// Descriptor describes the shape of one value. Descriptors are immutable
// once added to a Set.
type Descriptor struct {
	Elem     *Descriptor
	Key      *Descriptor
	Name     string
	Target   string
	Fields   []Field
	Variants []Case
	Kind     Kind
}

// Field is one named, ordered component of a product or variant.
type Field struct {
	Type *Descriptor
	Name string
}

// Case is one variant of a sum. A case without fields is nullary.
type Case struct {
	Name   string
	Fields []Field
}

// Nullary reports whether the case carries no fields.
func (c Case) Nullary() bool {
	return len(c.Fields) == 0
}

func Unit() *Descriptor   { return &Descriptor{Kind: KindUnit} }
func Bool() *Descriptor   { return &Descriptor{Kind: KindBool} }
func Int() *Descriptor    { return &Descriptor{Kind: KindInt} }
func Float() *Descriptor  { return &Descriptor{Kind: KindFloat} }
func String() *Descriptor { return &Descriptor{Kind: KindString} }
func Bytes() *Descriptor  { return &Descriptor{Kind: KindBytes} }

// Handle describes an independently owned foreign resource, encoded as
// an immediate identifier.
func Handle() *Descriptor { return &Descriptor{Kind: KindHandle} }

func Option(elem *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindOption, Elem: elem}
}

func List(elem *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindList, Elem: elem}
}

// Map describes an ordered association from key to elem, encoded as the
// foreign runtime's balanced binary tree: the empty map is the immediate 0
// and a node is a block of tag 0 holding the left subtree, key, value,
// right subtree and height.
func Map(key, elem *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindMap, Key: key, Elem: elem}
}

// Box describes an indirection that is transparent in the encoding.
func Box(elem *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindBox, Elem: elem}
}

// Ref names another descriptor of the same Set.
func Ref(target string) *Descriptor {
	return &Descriptor{Kind: KindRef, Target: target}
}

// Named builds a product or record-variant field.
func Named(name string, t *Descriptor) Field {
	return Field{Name: name, Type: t}
}

func Product(name string, fields ...Field) *Descriptor {
	return &Descriptor{Kind: KindProduct, Name: name, Fields: fields}
}

// Tuple builds a product whose fields are named by position.
func Tuple(name string, types ...*Descriptor) *Descriptor {
	return Product(name, positional(types)...)
}

func Sum(name string, cases ...Case) *Descriptor {
	return &Descriptor{Kind: KindSum, Name: name, Variants: cases}
}

// Enum builds a sum of nullary variants.
func Enum(name string, cases ...string) *Descriptor {
	d := &Descriptor{Kind: KindSum, Name: name, Variants: make([]Case, len(cases))}
	for i, c := range cases {
		d.Variants[i] = Case{Name: c}
	}
	return d
}

// Variant builds a case whose fields are named by position.
func Variant(name string, types ...*Descriptor) Case {
	return Case{Name: name, Fields: positional(types)}
}

func RecordVariant(name string, fields ...Field) Case {
	return Case{Name: name, Fields: fields}
}

// Alias returns a copy of d carrying name.
func Alias(name string, d *Descriptor) *Descriptor {
	cp := *d
	cp.Name = name
	return &cp
}

func positional(types []*Descriptor) []Field {
	fields := make([]Field, len(types))
	for i, t := range types {
		fields[i] = Field{Name: strconv.Itoa(i), Type: t}
	}
	return fields
}

// BlockVariants returns the number of non-nullary variants of a sum.
func (d *Descriptor) BlockVariants() int {
	n := 0
	for _, c := range d.Variants {
		if !c.Nullary() {
			n++
		}
	}
	return n
}

// TypeName returns the name used in diagnostics.
func (d *Descriptor) TypeName() string {
	if d == nil {
		return "<nil>"
	}
	if d.Kind == KindRef {
		return d.Target
	}
	if d.Name != "" {
		return d.Name
	}
	return d.Kind.String()
}

// String renders the canonical description of d. Two descriptors with the
// same canonical description encode values identically.
func (d *Descriptor) String() string {
	var b strings.Builder
	d.write(&b)
	return b.String()
}

func (d *Descriptor) write(b *strings.Builder) {
	if d == nil {
		b.WriteString("<nil>")
		return
	}
	switch d.Kind {
	case KindOption, KindList, KindBox:
		b.WriteString(d.Kind.String())
		b.WriteByte('<')
		d.Elem.write(b)
		b.WriteByte('>')
	case KindMap:
		b.WriteString("map<")
		d.Key.write(b)
		b.WriteByte(',')
		d.Elem.write(b)
		b.WriteByte('>')
	case KindRef:
		b.WriteString("ref ")
		b.WriteString(d.Target)
	case KindProduct:
		b.WriteString("product ")
		b.WriteString(d.Name)
		writeFields(b, '{', '}', d.Fields)
	case KindSum:
		b.WriteString("sum ")
		b.WriteString(d.Name)
		b.WriteByte('{')
		for i, c := range d.Variants {
			if i > 0 {
				b.WriteByte('|')
			}
			b.WriteString(c.Name)
			if !c.Nullary() {
				writeFields(b, '(', ')', c.Fields)
			}
		}
		b.WriteByte('}')
	default:
		b.WriteString(d.Kind.String())
	}
}

func writeFields(b *strings.Builder, open, end byte, fields []Field) {
	b.WriteByte(open)
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Name)
		b.WriteByte(':')
		f.Type.write(b)
	}
	b.WriteByte(end)
}
