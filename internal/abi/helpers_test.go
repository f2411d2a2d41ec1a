package abi

import (
	"math"
	"testing"
)

func TestSafeMulU32(t *testing.T) {
	tests := []struct {
		name   string
		a, b   uint32
		want   uint32
		wantOK bool
	}{
		{"zero * zero", 0, 0, 0, true},
		{"zero * max", 0, math.MaxUint32, 0, true},
		{"one * one", 1, 1, 1, true},
		{"words to bytes", 1024, WordSize, 8192, true},
		{"max * one", math.MaxUint32, 1, math.MaxUint32, true},
		{"overflow", math.MaxUint32, 2, 0, false},
		{"edge case ok", 65536, 65535, 65536 * 65535, true},
		{"edge case overflow", 65536, 65537, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SafeMulU32(tt.a, tt.b)
			if ok != tt.wantOK {
				t.Errorf("SafeMulU32(%d, %d) ok = %v, want %v", tt.a, tt.b, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("SafeMulU32(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSafeAddU32(t *testing.T) {
	tests := []struct {
		name   string
		a, b   uint32
		want   uint32
		wantOK bool
	}{
		{"zero + zero", 0, 0, 0, true},
		{"one + one", 1, 1, 2, true},
		{"max + zero", math.MaxUint32, 0, math.MaxUint32, true},
		{"max + one", math.MaxUint32, 1, 0, false},
		{"large address + size ok", 0xFFFF0000, 0x0000FFFF, 0xFFFFFFFF, true},
		{"large address + size overflow", 0xFFFF0000, 0x00010000, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SafeAddU32(tt.a, tt.b)
			if ok != tt.wantOK {
				t.Errorf("SafeAddU32(%d, %d) ok = %v, want %v", tt.a, tt.b, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("SafeAddU32(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAlignUintptr(t *testing.T) {
	tests := []struct {
		name   string
		offset uint32
		align  uint32
		want   uint32
	}{
		{"align 0", 5, 0, 5},
		{"offset 5 align 1", 5, 1, 5},
		{"offset 3 align 4", 3, 4, 4},
		{"offset 0 align 8", 0, 8, 0},
		{"offset 1 align 8", 1, 8, 8},
		{"offset 8 align 8", 8, 8, 8},
		{"offset 9 align 8", 9, 8, 16},
		{"offset 17 align 16", 17, 16, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AlignUintptr(uintptr(tt.offset), uintptr(tt.align)); got != uintptr(tt.want) {
				t.Errorf("AlignUintptr(%d, %d) = %d, want %d", tt.offset, tt.align, got, tt.want)
			}
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []uintptr{1, 2, 4, 8, 16, 4096} {
		if !IsPowerOfTwo(n) {
			t.Errorf("IsPowerOfTwo(%d) = false", n)
		}
	}
	for _, n := range []uintptr{0, 3, 6, 12, 4095} {
		if IsPowerOfTwo(n) {
			t.Errorf("IsPowerOfTwo(%d) = true", n)
		}
	}
}

func TestCanonicalizeF64(t *testing.T) {
	tests := []struct {
		name string
		bits uint64
		want uint64
	}{
		{"zero", 0, 0},
		{"one", 0x3ff0000000000000, 0x3ff0000000000000},
		{"negative zero", 0x8000000000000000, 0},
		{"infinity", 0x7ff0000000000000, 0x7ff0000000000000},
		{"negative infinity", 0xfff0000000000000, 0xfff0000000000000},
		{"canonical NaN", CanonicalNaN64, CanonicalNaN64},
		{"quiet NaN", 0x7ff8123456789abc, CanonicalNaN64},
		{"signaling NaN", 0x7ff0000000000001, CanonicalNaN64},
		{"negative NaN", 0xfff8000000000000, CanonicalNaN64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalizeF64(tt.bits)
			if got != tt.want {
				t.Errorf("CanonicalizeF64(0x%016x) = 0x%016x, want 0x%016x", tt.bits, got, tt.want)
			}
		})
	}
}
