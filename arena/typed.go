package arena

import (
	"reflect"
	"unsafe"
)

// Make allocates a zeroed T in the arena.
func Make[T any](a *Arena) (*T, error) {
	var zero T
	p, err := a.Alloc(unsafe.Sizeof(zero), unsafe.Alignof(zero))
	if err != nil {
		return nil, err
	}
	return (*T)(p), nil
}

// MakeSlice allocates a zeroed []T of length and capacity n in the arena.
func MakeSlice[T any](a *Arena, n int) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	var zero T
	p, err := a.Alloc(unsafe.Sizeof(zero)*uintptr(n), unsafe.Alignof(zero))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(p), n), nil
}

// As returns the allocation at off viewed as a T.
func As[T any](a *Arena, off Offset) *T {
	return (*T)(a.Pointer(off))
}

// String copies s into the arena.
func String(a *Arena, s string) (string, error) {
	if len(s) == 0 {
		return "", nil
	}
	p, err := a.Alloc(uintptr(len(s)), 1)
	if err != nil {
		return "", err
	}
	copy(unsafe.Slice((*byte)(p), len(s)), s)
	return unsafe.String((*byte)(p), len(s)), nil
}

// CopyBytes copies b into the arena.
func CopyBytes(a *Arena, b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	p, err := a.Alloc(uintptr(len(b)), 1)
	if err != nil {
		return nil, err
	}
	out := unsafe.Slice((*byte)(p), len(b))
	copy(out, b)
	return out, nil
}

// AllocType allocates a zeroed value of type t and returns its address.
func (a *Arena) AllocType(t reflect.Type) (unsafe.Pointer, error) {
	return a.Alloc(t.Size(), uintptr(t.Align()))
}

// AllocArray allocates n zeroed elements of type elem and returns the
// address of the first.
func (a *Arena) AllocArray(elem reflect.Type, n int) (unsafe.Pointer, error) {
	size, ok := mulUintptr(elem.Size(), uintptr(n))
	if !ok {
		return nil, a.exhausted(^uintptr(0), uintptr(elem.Align()))
	}
	return a.Alloc(size, uintptr(elem.Align()))
}

func mulUintptr(a, b uintptr) (uintptr, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	return c, c/b == a
}
