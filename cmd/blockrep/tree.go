package main

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/blockrep/heap"
	"github.com/wippyai/blockrep/schema"
	"github.com/wippyai/blockrep/value"
)

// maxPreview bounds how much of a string block is shown inline.
const maxPreview = 64

// node is one line of a rendered value tree.
type node struct {
	label    string
	typ      string
	text     string
	children []*node
	addr     uint32
	err      error
}

// walker renders heap values as trees. Blocks already rendered are shown
// as back references, which also terminates cycles.
type walker struct {
	h    *heap.Heap
	set  *schema.Set
	seen map[value.Value]bool
}

func newWalker(h *heap.Heap, set *schema.Set) *walker {
	return &walker{h: h, set: set, seen: make(map[value.Value]bool)}
}

// typed renders v as a value of desc.
func (w *walker) typed(label string, v value.Value, desc *schema.Descriptor) *node {
	desc, err := w.set.Resolve(desc)
	if err != nil {
		return &node{label: label, err: err}
	}
	n := &node{label: label, typ: typeName(desc)}

	switch desc.Kind {
	case schema.KindUnit:
		n.text = "()"
	case schema.KindBool:
		n.text = strconv.FormatBool(v == value.True)
	case schema.KindInt, schema.KindHandle:
		n.text = v.String()
		if v.IsImmediate() {
			n.text = strconv.FormatInt(v.Int(), 10)
		}
	case schema.KindFloat:
		f, err := w.h.ReadDouble(v)
		n.err = err
		n.text = strconv.FormatFloat(f, 'g', -1, 64)
	case schema.KindString, schema.KindBytes:
		b, err := w.h.ReadString(v)
		n.err = err
		n.text = preview(b, desc.Kind == schema.KindString)
	case schema.KindBox:
		return w.typed(label, v, desc.Elem)
	case schema.KindOption:
		if v == value.None {
			n.text = "none"
			break
		}
		w.block(n, v, func(b heap.Block) {
			f, err := b.Field(0)
			if err != nil {
				n.err = err
				return
			}
			n.children = append(n.children, w.typed("some", f, desc.Elem))
		})
	case schema.KindList:
		n.text = "[]"
		for i := 0; v != value.Nil; i++ {
			if w.seen[v] {
				n.children = append(n.children, &node{label: "tail", text: backRef(v)})
				break
			}
			w.seen[v] = true
			cell, err := w.h.Block(v)
			if err != nil {
				n.err = err
				break
			}
			head, err := cell.Field(0)
			if err == nil {
				v, err = cell.Field(1)
			}
			if err != nil {
				n.err = err
				break
			}
			n.children = append(n.children, w.typed("["+strconv.Itoa(i)+"]", head, desc.Elem))
			n.text = "len " + strconv.Itoa(i+1)
		}
	case schema.KindMap:
		w.mapEntries(n, v, desc)
		n.text = "size " + strconv.Itoa(len(n.children))
	case schema.KindProduct:
		if len(desc.Fields) == 0 {
			n.text = "{}"
			break
		}
		w.block(n, v, func(b heap.Block) {
			w.fields(n, b, desc.Fields)
		})
	case schema.KindSum:
		w.sum(n, v, desc)
	default:
		n.text = v.String()
	}
	return n
}

// mapEntries appends the entries of the tree at v to n in key order.
func (w *walker) mapEntries(n *node, v value.Value, desc *schema.Descriptor) {
	if v == value.Empty || n.err != nil {
		return
	}
	if w.seen[v] {
		n.children = append(n.children, &node{label: "node", text: backRef(v)})
		return
	}
	w.seen[v] = true
	b, err := w.h.Block(v)
	if err != nil {
		n.err = err
		return
	}
	var f [4]value.Value
	for i := range f {
		if f[i], err = b.Field(uint32(i)); err != nil {
			n.err = err
			return
		}
	}
	w.mapEntries(n, f[0], desc)
	entry := &node{label: "[" + strconv.Itoa(len(n.children)) + "]", typ: "entry"}
	entry.children = []*node{w.typed("key", f[1], desc.Key), w.typed("value", f[2], desc.Elem)}
	n.children = append(n.children, entry)
	w.mapEntries(n, f[3], desc)
}

func (w *walker) sum(n *node, v value.Value, desc *schema.Descriptor) {
	var nullary, blocks []int
	for i, c := range desc.Variants {
		if c.Nullary() {
			nullary = append(nullary, i)
		} else {
			blocks = append(blocks, i)
		}
	}
	if v.IsImmediate() {
		k := v.Int()
		if k < 0 || k >= int64(len(nullary)) {
			n.err = fmt.Errorf("immediate %d is not a nullary variant", k)
			return
		}
		n.text = desc.Variants[nullary[k]].Name
		return
	}
	w.block(n, v, func(b heap.Block) {
		if int(b.Tag()) >= len(blocks) {
			n.err = fmt.Errorf("tag %d is not a variant", b.Tag())
			return
		}
		c := desc.Variants[blocks[b.Tag()]]
		n.text = c.Name
		w.fields(n, b, c.Fields)
	})
}

func (w *walker) fields(n *node, b heap.Block, fields []schema.Field) {
	if int(b.Size()) != len(fields) {
		n.err = fmt.Errorf("block has %d fields, descriptor has %d", b.Size(), len(fields))
		return
	}
	for i, f := range fields {
		fv, err := b.Field(uint32(i))
		if err != nil {
			n.err = err
			return
		}
		n.children = append(n.children, w.typed(f.Name, fv, f.Type))
	}
}

// block resolves v and calls fn unless v was rendered before.
func (w *walker) block(n *node, v value.Value, fn func(heap.Block)) {
	if w.seen[v] {
		n.text = strings.TrimSpace(n.text + " " + backRef(v))
		return
	}
	w.seen[v] = true
	b, err := w.h.Block(v)
	if err != nil {
		n.err = err
		return
	}
	n.addr = b.Addr
	fn(b)
}

// raw renders v from block headers alone.
func (w *walker) raw(label string, v value.Value) *node {
	n := &node{label: label}
	if v.IsImmediate() {
		n.typ = "imm"
		n.text = strconv.FormatInt(v.Int(), 10)
		return n
	}
	if w.seen[v] {
		n.text = backRef(v)
		return n
	}
	w.seen[v] = true
	b, err := w.h.Block(v)
	if err != nil {
		n.err = err
		return n
	}
	n.addr = b.Addr
	switch b.Tag() {
	case value.TagString:
		data, err := w.h.ReadString(v)
		n.typ, n.text, n.err = "string", preview(data, utf8.Valid(data)), err
	case value.TagDouble:
		f, err := w.h.ReadDouble(v)
		n.typ, n.text, n.err = "double", strconv.FormatFloat(f, 'g', -1, 64), err
	default:
		n.typ = fmt.Sprintf("tag %d", b.Tag())
		n.text = fmt.Sprintf("size %d", b.Size())
		for i := uint32(0); i < b.Size(); i++ {
			f, err := b.Field(i)
			if err != nil {
				n.err = err
				break
			}
			n.children = append(n.children, w.raw("["+strconv.Itoa(int(i))+"]", f))
		}
	}
	return n
}

func typeName(d *schema.Descriptor) string {
	if d.Name != "" {
		return d.Name
	}
	switch d.Kind {
	case schema.KindOption, schema.KindList:
		if d.Elem != nil {
			return d.Kind.String() + "<" + elemName(d.Elem) + ">"
		}
	case schema.KindMap:
		if d.Key != nil && d.Elem != nil {
			return "map<" + elemName(d.Key) + "," + elemName(d.Elem) + ">"
		}
	}
	return d.Kind.String()
}

func elemName(d *schema.Descriptor) string {
	if d.Kind == schema.KindRef {
		return d.Target
	}
	return typeName(d)
}

func preview(b []byte, text bool) string {
	if !text {
		if len(b) > maxPreview/2 {
			return fmt.Sprintf("%x… (%d bytes)", b[:maxPreview/2], len(b))
		}
		return fmt.Sprintf("%x", b)
	}
	if len(b) > maxPreview {
		return strconv.Quote(string(b[:maxPreview])) + "… (" + strconv.Itoa(len(b)) + " bytes)"
	}
	return strconv.Quote(string(b))
}

func backRef(v value.Value) string {
	return fmt.Sprintf("&0x%x", v.Addr())
}

// flatten lists n and its descendants depth first.
func flatten(n *node, depth int, out []line) []line {
	out = append(out, line{node: n, depth: depth})
	for _, c := range n.children {
		out = flatten(c, depth+1, out)
	}
	return out
}

type line struct {
	node  *node
	depth int
}
