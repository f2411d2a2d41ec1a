package types

type Kind uint8

const (
	KindUnit Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindHandle
	KindOption
	KindList
	KindBox
	KindProduct
	KindSum
	KindEnum
	KindMap
)

var kindNames = [...]string{
	KindUnit:    "unit",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindString:  "string",
	KindBytes:   "bytes",
	KindHandle:  "handle",
	KindOption:  "option",
	KindList:    "list",
	KindBox:     "box",
	KindProduct: "product",
	KindSum:     "sum",
	KindEnum:    "enum",
	KindMap:     "map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsScalar reports whether k is encoded without nested values.
func (k Kind) IsScalar() bool {
	return k <= KindHandle
}

// IsImmediate reports whether every value of kind k is an immediate.
func (k Kind) IsImmediate() bool {
	switch k {
	case KindUnit, KindBool, KindInt, KindHandle, KindEnum:
		return true
	default:
		return false
	}
}
