package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseCompile Phase = "compile" // descriptor/Go type binding
	PhaseEncode  Phase = "encode"  // Go to block
	PhaseDecode  Phase = "decode"  // block to Go
	PhaseConvert Phase = "convert" // owned <-> borrowed
	PhaseCompare Phase = "compare" // equality, ordering, hashing
	PhaseAlloc   Phase = "alloc"   // arena and heap allocation
	PhaseSchema  Phase = "schema"  // descriptor validation and import
	PhaseImage   Phase = "image"   // heap snapshots
	PhaseConfig  Phase = "config"  // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindMalformedBlock   Kind = "malformed_block"
	KindArityMismatch    Kind = "arity_mismatch"
	KindUnknownVariant   Kind = "unknown_variant"
	KindArenaExhausted   Kind = "arena_exhausted"
	KindSchemaMismatch   Kind = "schema_mismatch"
	KindTypeMismatch     Kind = "type_mismatch"
	KindUnsupported      Kind = "unsupported"
	KindOverflow         Kind = "overflow"
	KindInvalidUTF8      Kind = "invalid_utf8"
	KindCyclicValue      Kind = "cyclic_value"
	KindNotTrivialDrop   Kind = "not_trivially_droppable"
	KindFieldMissing     Kind = "field_missing"
	KindNilPointer       Kind = "nil_pointer"
	KindNotFound         Kind = "not_found"
	KindInvalidInput     Kind = "invalid_input"
	KindInvalidData      Kind = "invalid_data"
	KindAlreadyExists    Kind = "already_exists"
	KindNoActiveVariant  Kind = "no_active_variant"
	KindCompressionError Kind = "compression"
)

// Kind-only targets for errors.Is. They match any phase.
var (
	ErrMalformedBlock = &Error{Kind: KindMalformedBlock}
	ErrArityMismatch  = &Error{Kind: KindArityMismatch}
	ErrUnknownVariant = &Error{Kind: KindUnknownVariant}
	ErrArenaExhausted = &Error{Kind: KindArenaExhausted}
	ErrSchemaMismatch = &Error{Kind: KindSchemaMismatch}
	ErrCyclicValue    = &Error{Kind: KindCyclicValue}
	ErrNotTrivialDrop = &Error{Kind: KindNotTrivialDrop}
)

// Error is the structured error type used throughout blockrep
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	GoType     string
	SchemaType string
	Detail     string
	Path       []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.SchemaType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.SchemaType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", schema type ")
			b.WriteString(e.SchemaType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("schema type ")
			b.WriteString(e.SchemaType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.SchemaType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// SchemaType sets the descriptor name or kind
func (b *Builder) SchemaType(t string) *Builder {
	b.err.SchemaType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, schemaType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindTypeMismatch,
		Path:       path,
		GoType:     goType,
		SchemaType: schemaType,
	}
}

// MalformedBlock creates a block shape error
func MalformedBlock(phase Phase, path []string, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMalformedBlock,
		Path:   path,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// ArityMismatch creates a field count disagreement error
func ArityMismatch(phase Phase, path []string, want, got int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindArityMismatch,
		Path:   path,
		Detail: fmt.Sprintf("expected %d fields, block has %d", want, got),
		Value:  got,
	}
}

// UnknownVariant creates an out-of-range tag error. immediate tells whether
// the tag came from an immediate or from a block header.
func UnknownVariant(phase Phase, path []string, tag uint64, count int, immediate bool) *Error {
	space := "block tag"
	if immediate {
		space = "immediate"
	}
	limit := "empty"
	if count > 0 {
		limit = fmt.Sprintf("0..%d", count-1)
	}
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownVariant,
		Path:   path,
		Detail: fmt.Sprintf("%s %d out of range (%s)", space, tag, limit),
		Value:  tag,
	}
}

// ArenaExhausted creates an allocation capacity error
func ArenaExhausted(phase Phase, size, align, used, capacity uint64) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindArenaExhausted,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d): %d of %d bytes in use",
			size, align, used, capacity),
	}
}

// SchemaMismatch creates a descriptor disagreement error
func SchemaMismatch(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindSchemaMismatch,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// FieldMissing creates a missing field error
func FieldMissing(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required field %q not found", fieldName),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		GoType: goType,
		Detail: "nil pointer",
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindOverflow,
		Path:       path,
		SchemaType: targetType,
		Detail:     fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:      value,
	}
}

// CyclicValue creates an error for data that revisits a block on the
// current path when the target representation cannot express sharing.
func CyclicValue(phase Phase, path []string, addr uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCyclicValue,
		Path:   path,
		Detail: fmt.Sprintf("block at 0x%x is its own ancestor", addr),
		Value:  addr,
	}
}

// NotTrivialDrop creates an error for a type that owns a resource needing
// release and therefore cannot live in an arena.
func NotTrivialDrop(path []string, goType, reason string) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindNotTrivialDrop,
		Path:   path,
		GoType: goType,
		Detail: reason,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// WithPath returns err with path prepended when err is an *Error without a
// path; other errors are returned unchanged.
func WithPath(err error, path []string) error {
	e, ok := err.(*Error)
	if !ok || len(e.Path) > 0 || len(path) == 0 {
		return err
	}
	cp := *e
	cp.Path = append([]string(nil), path...)
	return &cp
}
