// Package transcoder converts Go values to and from the block
// representation held in a heap.Heap.
//
// This package binds schema descriptors to Go types and moves values
// across the boundary in both directions. Decoded values come in two
// families: owned values live in ordinary Go memory, borrowed values are
// allocated in an arena.Arena and are freed all at once.
//
// # Representation
//
//	Descriptor        Go binding                    Encoded form
//	─────────────────────────────────────────────────────────────────
//	unit              struct{}                      imm 0
//	bool              bool                          imm 0 / imm 1
//	int, handle       any integer kind              imm n (63 bit)
//	float             float32, float64              double block
//	string, bytes     string, []byte                string block
//	option<T>         *T                            imm 0 / block{T}
//	list<T>           []T                           cons cells, imm 0
//	map<K,V>          []struct{Key K; Value V}      balanced tree, imm 0
//	box<T>            *T or T                       T
//	product           struct, [N]T                  block tag 0
//	sum               struct of case pointers       imm or tagged block
//	enum              integer kind                  imm slot
//
// Nullary variants are numbered among themselves as immediates 0..N-1.
// Variants with fields are numbered separately as block tags 0..M-1.
//
// # Key Types
//
//	Codec         - Entry point holding the compiler, limits and metrics
//	Compiler      - Binds descriptors to Go types and caches the plans
//	CompiledType  - Plan for one (descriptor, Go type) pair
//	Encoder       - Writes Go values into a heap
//	Decoder       - Reads heap values into owned or borrowed Go values
//
// # Flows
//
//	EncodeOwned(codec, heap, "env", &v)          → value.Value
//	DecodeOwned[Env](codec, heap, "env", v)      → Env
//	DecodeBorrowed[Env](codec, heap, "env", v, a) → *Env in a
//	ToBorrowed[Env](codec, "env", &v, a)         → *Env in a
//	ToOwned[Env](codec, "env", borrowed)         → Env
//
// Conversions go through a pooled scratch heap, so the owned and borrowed
// Go types may differ as long as both bind the same descriptor.
//
// # Sharing and Cycles
//
// The encoder memoizes Go pointers, so shared substructure is written
// once and cyclic Go graphs produce cyclic heap graphs. Borrowed decoding
// preserves both sharing and cycles. Owned decoding copies every
// reference into an independent tree and rejects cycles with
// errors.KindCyclicValue.
//
// # Arenas
//
// Only trivially droppable types may be decoded into an arena: no maps,
// channels, funcs, interfaces, handles or types implementing Dropper or
// io.Closer. A failed borrowed decode rolls the arena back to where it
// started.
//
// # Thread Safety
//
// Codec and Compiler are safe for concurrent use. Encoder and Decoder
// hold per-call state and are not. Heaps and arenas are not safe for
// concurrent use.
package transcoder
