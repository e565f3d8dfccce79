package model

// TypeCode is the ECMA-335 element-type tag both Mono and IL2CPP store
// inline in a field's type-info word. It is the cheapest signal
// ValueDecoder has for choosing how to interpret a field's bytes,
// well ahead of resolving a class name.
type TypeCode uint32

const (
	TypeEnd         TypeCode = 0x00
	TypeVoid        TypeCode = 0x01
	TypeBoolean     TypeCode = 0x02
	TypeChar        TypeCode = 0x03
	TypeI1          TypeCode = 0x04
	TypeU1          TypeCode = 0x05
	TypeI2          TypeCode = 0x06
	TypeU2          TypeCode = 0x07
	TypeI4          TypeCode = 0x08
	TypeU4          TypeCode = 0x09
	TypeI8          TypeCode = 0x0a
	TypeU8          TypeCode = 0x0b
	TypeR4          TypeCode = 0x0c
	TypeR8          TypeCode = 0x0d
	TypeString      TypeCode = 0x0e
	TypePtr         TypeCode = 0x0f
	TypeByRef       TypeCode = 0x10
	TypeValueType   TypeCode = 0x11
	TypeClass       TypeCode = 0x12
	TypeVar         TypeCode = 0x13
	TypeArray       TypeCode = 0x14
	TypeGenericInst TypeCode = 0x15
	TypeTypedByRef  TypeCode = 0x16
	TypeI           TypeCode = 0x18
	TypeU           TypeCode = 0x19
	TypeFnPtr       TypeCode = 0x1b
	TypeObject      TypeCode = 0x1c
	TypeSZArray     TypeCode = 0x1d
	TypeMVar        TypeCode = 0x1e
	TypeCMOD_REQD   TypeCode = 0x1f
	TypeCMOD_OPT    TypeCode = 0x20
	TypeInternal    TypeCode = 0x21
	TypeModifier    TypeCode = 0x40
	TypeSentinel    TypeCode = 0x41
	TypePinned      TypeCode = 0x45
	TypeEnum        TypeCode = 0x55
)

// FromRawTypeCode maps an unrecognized raw value to TypeEnd rather than
// erroring — an unknown element type is treated as opaque, not fatal.
func FromRawTypeCode(v uint32) TypeCode {
	switch TypeCode(v) {
	case TypeVoid, TypeBoolean, TypeChar, TypeI1, TypeU1, TypeI2, TypeU2,
		TypeI4, TypeU4, TypeI8, TypeU8, TypeR4, TypeR8, TypeString, TypePtr,
		TypeByRef, TypeValueType, TypeClass, TypeVar, TypeArray, TypeGenericInst,
		TypeTypedByRef, TypeI, TypeU, TypeFnPtr, TypeObject, TypeSZArray, TypeMVar,
		TypeCMOD_REQD, TypeCMOD_OPT, TypeInternal, TypeModifier, TypeSentinel,
		TypePinned, TypeEnum:
		return TypeCode(v)
	default:
		return TypeEnd
	}
}

func (c TypeCode) IsPrimitive() bool {
	switch c {
	case TypeBoolean, TypeChar, TypeI1, TypeU1, TypeI2, TypeU2, TypeI4, TypeU4,
		TypeI8, TypeU8, TypeR4, TypeR8, TypeI, TypeU:
		return true
	default:
		return false
	}
}

func (c TypeCode) IsReference() bool {
	switch c {
	case TypeClass, TypeObject, TypeSZArray, TypeArray, TypeString, TypeGenericInst:
		return true
	default:
		return false
	}
}

// clrNames gives the canonical CLR type name for every TypeCode that
// doesn't need a class pointer resolved to be named.
var clrNames = map[TypeCode]string{
	TypeVoid:    "System.Void",
	TypeBoolean: "System.Boolean",
	TypeChar:    "System.Char",
	TypeI1:      "System.SByte",
	TypeU1:      "System.Byte",
	TypeI2:      "System.Int16",
	TypeU2:      "System.UInt16",
	TypeI4:      "System.Int32",
	TypeU4:      "System.UInt32",
	TypeI8:      "System.Int64",
	TypeU8:      "System.UInt64",
	TypeR4:      "System.Single",
	TypeR8:      "System.Double",
	TypeString:  "System.String",
	TypeObject:  "System.Object",
	TypeI:       "System.IntPtr",
	TypeU:       "System.UIntPtr",
}

// CLRName returns the canonical name for primitive/well-known type
// codes, or "" for codes (CLASS, VALUETYPE, ARRAY, GENERICINST) that
// need the backend to resolve a class pointer for their real name.
func (c TypeCode) CLRName() string {
	return clrNames[c]
}

func (c TypeCode) String() string {
	if name, ok := clrNames[c]; ok {
		return name
	}
	switch c {
	case TypeValueType:
		return "VALUETYPE"
	case TypeClass:
		return "CLASS"
	case TypeArray:
		return "ARRAY"
	case TypeSZArray:
		return "SZARRAY"
	case TypeGenericInst:
		return "GENERICINST"
	case TypeEnum:
		return "ENUM"
	case TypePtr:
		return "PTR"
	default:
		return "END"
	}
}

// TypeInfo is the decoded shape of one field or by-val-arg type-info
// word: a pointer to type-specific data plus an attribute bitmask, the
// same layout Mono and IL2CPP both use for a field's type slot.
type TypeInfo struct {
	Addr  uint64
	Data  uint64
	Attrs uint32
	Code  TypeCode
}

const (
	fieldAttrStatic = 0x10
	fieldAttrConst  = 0x40
)

func (t TypeInfo) IsStatic() bool { return t.Attrs&fieldAttrStatic != 0 }
func (t TypeInfo) IsConst() bool  { return t.Attrs&fieldAttrConst != 0 }
