// Package blockrep bridges Go values and a foreign managed runtime's
// block-based value representation.
//
// The foreign runtime stores every value in one machine word. A word with
// the low bit set is an immediate (a small integer, a boolean, a constant
// constructor); a word with the low bit clear points at the first field of
// a block, which is preceded by a header word carrying the block's size in
// words and an 8-bit tag.
//
// # Architecture Overview
//
//	blockrep/            Root package with the Memory interfaces
//	├── value/           Encoded value words, headers, immediates
//	├── memory/          Memory backends (Go slice, wazero linear memory)
//	├── heap/            Foreign value image: block allocation and reads
//	├── arena/           Bump allocator backing borrowed decodes
//	├── schema/          Value descriptors, descriptor sets, importers
//	├── transcoder/      Go <-> block encoding, owned/borrowed decoding,
//	│                    conversion, equality, ordering and hashing
//	├── image/           Portable heap snapshots (CBOR, lz4/zstd)
//	├── config/          YAML configuration
//	├── errors/          Structured error types
//	└── cmd/blockrep/    Image inspection CLI
//
// # Quick Start
//
//	set := schema.NewSet(1).MustAdd("mode", schema.Sum("mode",
//	    schema.Variant("a"),
//	    schema.Variant("b"),
//	    schema.Variant("c", schema.Int()),
//	))
//
//	codec, err := transcoder.New(set)
//	h := heap.New(memory.NewSlice(0))
//
//	v, err := transcoder.EncodeOwned(codec, h, "mode", &Mode{C: ptr(int32(5))})
//	out, err := transcoder.DecodeOwned[Mode](codec, h, "mode", v)
//
//	a := arena.New()
//	defer a.Release()
//	ref, err := transcoder.DecodeBorrowed[Mode](codec, h, "mode", v, a)
//
// # Owned and Borrowed Values
//
// Owned values are ordinary Go allocations and outlive any decode session.
// Borrowed values are carved out of an arena.Arena together with every
// string, slice and pointer they reference; they are valid until the arena
// is reset or released. Types decoded as borrowed must be trivially
// droppable: no maps, channels, funcs, interfaces or types that own a
// resource needing release.
//
// # Thread Safety
//
// schema.Set (once sealed) and transcoder.Codec are safe for concurrent
// use. heap.Heap and arena.Arena belong to a single decode session and must
// not be shared between goroutines.
package blockrep
