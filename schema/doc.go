// Package schema describes the shape of values exchanged with the foreign
// runtime.
//
// A Descriptor is one of unit, bool, int, float, string, bytes, option,
// list, map, box, product, sum, ref or handle. Products and sums list their
// fields and variants in declaration order, and that order is part of the
// encoding: fields are stored by position, nullary variants are numbered
// by their index among nullary variants, and variants with fields are
// tagged by their index among variants with fields.
//
// Descriptors live in a Set, where refs name other members so that types
// can be recursive:
//
//	set := schema.NewSet(1)
//	set.MustAdd("mode", schema.Sum("mode",
//		schema.Variant("a"),
//		schema.Variant("b"),
//		schema.Variant("c", schema.Int()),
//	))
//	set.MustAdd("tree", schema.Sum("tree",
//		schema.Variant("leaf"),
//		schema.Variant("node", schema.Ref("tree"), schema.Int(), schema.Ref("tree")),
//	))
//
// Sets can also be loaded from JSONC files (ParseJSONC, LoadFile) or
// imported from WIT (FromWIT). A Set is sealed on first use by the
// transcoder; its Fingerprint identifies the encoding of every member.
package schema
