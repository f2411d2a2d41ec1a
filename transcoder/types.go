package transcoder

import (
	"github.com/wippyai/blockrep/transcoder/internal/types"
)

type TypeKind = types.Kind

const (
	KindUnit    = types.KindUnit
	KindBool    = types.KindBool
	KindInt     = types.KindInt
	KindFloat   = types.KindFloat
	KindString  = types.KindString
	KindBytes   = types.KindBytes
	KindHandle  = types.KindHandle
	KindOption  = types.KindOption
	KindList    = types.KindList
	KindBox     = types.KindBox
	KindProduct = types.KindProduct
	KindSum     = types.KindSum
	KindEnum    = types.KindEnum
	KindMap     = types.KindMap
)

type CompiledType = types.CompiledType
type CompiledField = types.Field
type CompiledCase = types.Case
