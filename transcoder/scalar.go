package transcoder

import (
	"math"
	"reflect"
	"unsafe"
)

// loadInt reads the integer of Go kind k at ptr. Unsigned kinds report
// their value in u with unsigned set.
func loadInt(ptr unsafe.Pointer, k reflect.Kind) (n int64, u uint64, unsigned bool) {
	switch k {
	case reflect.Int:
		return int64(*(*int)(ptr)), 0, false
	case reflect.Int8:
		return int64(*(*int8)(ptr)), 0, false
	case reflect.Int16:
		return int64(*(*int16)(ptr)), 0, false
	case reflect.Int32:
		return int64(*(*int32)(ptr)), 0, false
	case reflect.Int64:
		return *(*int64)(ptr), 0, false
	case reflect.Uint:
		return 0, uint64(*(*uint)(ptr)), true
	case reflect.Uint8:
		return 0, uint64(*(*uint8)(ptr)), true
	case reflect.Uint16:
		return 0, uint64(*(*uint16)(ptr)), true
	case reflect.Uint32:
		return 0, uint64(*(*uint32)(ptr)), true
	case reflect.Uint64:
		return 0, *(*uint64)(ptr), true
	case reflect.Uintptr:
		return 0, uint64(*(*uintptr)(ptr)), true
	}
	return 0, 0, false
}

// storeInt writes n into the integer of Go kind k at ptr and reports
// false when n does not fit.
func storeInt(ptr unsafe.Pointer, k reflect.Kind, n int64) bool {
	switch k {
	case reflect.Int:
		if n < math.MinInt || n > math.MaxInt {
			return false
		}
		*(*int)(ptr) = int(n)
	case reflect.Int8:
		if n < math.MinInt8 || n > math.MaxInt8 {
			return false
		}
		*(*int8)(ptr) = int8(n)
	case reflect.Int16:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return false
		}
		*(*int16)(ptr) = int16(n)
	case reflect.Int32:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return false
		}
		*(*int32)(ptr) = int32(n)
	case reflect.Int64:
		*(*int64)(ptr) = n
	case reflect.Uint:
		if n < 0 || uint64(n) > math.MaxUint {
			return false
		}
		*(*uint)(ptr) = uint(n)
	case reflect.Uint8:
		if n < 0 || n > math.MaxUint8 {
			return false
		}
		*(*uint8)(ptr) = uint8(n)
	case reflect.Uint16:
		if n < 0 || n > math.MaxUint16 {
			return false
		}
		*(*uint16)(ptr) = uint16(n)
	case reflect.Uint32:
		if n < 0 || n > math.MaxUint32 {
			return false
		}
		*(*uint32)(ptr) = uint32(n)
	case reflect.Uint64:
		if n < 0 {
			return false
		}
		*(*uint64)(ptr) = uint64(n)
	case reflect.Uintptr:
		if n < 0 || uint64(n) > uint64(^uintptr(0)) {
			return false
		}
		*(*uintptr)(ptr) = uintptr(n)
	default:
		return false
	}
	return true
}

func loadFloat(ptr unsafe.Pointer, k reflect.Kind) float64 {
	if k == reflect.Float32 {
		return float64(*(*float32)(ptr))
	}
	return *(*float64)(ptr)
}

func storeFloat(ptr unsafe.Pointer, k reflect.Kind, f float64) {
	if k == reflect.Float32 {
		*(*float32)(ptr) = float32(f)
		return
	}
	*(*float64)(ptr) = f
}

// loadBytes returns the contents of a string or []byte at ptr without
// copying.
func loadBytes(ptr unsafe.Pointer, k reflect.Kind) []byte {
	if k == reflect.String {
		s := *(*string)(ptr)
		return unsafe.Slice(unsafe.StringData(s), len(s))
	}
	return *(*[]byte)(ptr)
}

// sliceHeader mirrors the runtime layout of a slice.
type sliceHeader struct {
	Data unsafe.Pointer
	Len  int
	Cap  int
}

func loadSlice(ptr unsafe.Pointer) sliceHeader {
	return *(*sliceHeader)(ptr)
}

func storeSlice(ptr unsafe.Pointer, data unsafe.Pointer, n int) {
	*(*sliceHeader)(ptr) = sliceHeader{Data: data, Len: n, Cap: n}
}
