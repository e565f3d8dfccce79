// Package value implements ValueDecoder: turning a FieldDescriptor and
// a containing block's address into a model.TypedValue. Every read
// failure or invariant violation degrades to model.Null rather than
// propagating an error — structural reads never get a second chance at
// a consistent object graph, so a bad field is absorbed, not fatal.
package value

import (
	"strings"

	"github.com/kestrelre/manascope/backend"
	"github.com/kestrelre/manascope/memio"
	"github.com/kestrelre/manascope/model"
)

const ptrSize = 8

// arraySanityBound rejects an array length read off a corrupted or
// mid-write header rather than looping for minutes decoding garbage.
const arraySanityBound = 1 << 20

// Decoder decodes field values against one attached backend.
type Decoder struct {
	reader *memio.Reader
	be     backend.Backend
}

func New(reader *memio.Reader, be backend.Backend) *Decoder {
	return &Decoder{reader: reader, be: be}
}

// DecodeField reads and decodes field f of a block (instance or static
// storage) starting at base.
func (d *Decoder) DecodeField(f model.FieldDescriptor, base uint64) (model.TypedValue, error) {
	addr := base + uint64(f.Offset)
	return d.decode(f.TypeCode, f.TypeName, f.TypeAddress, addr), nil
}

// decode dispatches on code, the ECMA-335 element type carried by a
// field or array-element type-info word. typeAddr carries whatever
// info.Data meant for that code when the type info was read: a class
// pointer for CLASS/VALUETYPE, a generic-class pointer for GENERICINST,
// an element type-info address for SZARRAY/ARRAY.
func (d *Decoder) decode(code model.TypeCode, typeName string, typeAddr, addr uint64) model.TypedValue {
	switch code {
	case model.TypeBoolean:
		b, err := d.reader.ReadU8(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueBool, Bool: b != 0}

	case model.TypeI1:
		b, err := d.reader.ReadU8(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueInt32, Int32: int32(int8(b))}
	case model.TypeU1:
		b, err := d.reader.ReadU8(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueUInt32, UInt32: uint32(b)}

	case model.TypeChar, model.TypeI2:
		v, err := d.reader.ReadU16(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueInt32, Int32: int32(int16(v))}
	case model.TypeU2:
		v, err := d.reader.ReadU16(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueUInt32, UInt32: uint32(v)}

	case model.TypeI4:
		v, err := d.reader.ReadI32(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueInt32, Int32: v}
	case model.TypeU4:
		v, err := d.reader.ReadU32(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueUInt32, UInt32: v}

	case model.TypeI8:
		v, err := d.reader.ReadI64(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueInt64, Int64: v}
	case model.TypeU8:
		v, err := d.reader.ReadU64(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueUInt64, UInt64: v}

	case model.TypeI:
		v, err := d.reader.ReadI64(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueInt64, Int64: v}
	case model.TypeU:
		v, err := d.reader.ReadU64(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueUInt64, UInt64: v}

	case model.TypeR4:
		v, err := d.reader.ReadFloat32(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueFloat, Float32: v}
	case model.TypeR8:
		v, err := d.reader.ReadFloat64(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueDouble, Float64: v}

	case model.TypeString:
		ptr, err := d.reader.ReadPtr(addr)
		if err != nil || ptr == 0 {
			return model.Null
		}
		s, err := d.reader.ReadManagedString(ptr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueString, Str: s}

	case model.TypeSZArray, model.TypeArray:
		return d.decodeArray(typeAddr, addr)

	case model.TypeGenericInst:
		if strings.Contains(typeName, "Dictionary") {
			ptr, err := d.reader.ReadPtr(addr)
			if err != nil {
				return model.Null
			}
			return d.decodeDictionary(ptr, typeAddr)
		}
		ptr, err := d.reader.ReadPtr(addr)
		if err != nil {
			return model.Null
		}
		return model.NullOrPointer(ptr, typeName)

	case model.TypeValueType:
		return d.decodeValueType(typeAddr, addr, typeName)

	case model.TypeClass, model.TypeObject:
		ptr, err := d.reader.ReadPtr(addr)
		if err != nil {
			return model.Null
		}
		return model.NullOrPointer(ptr, typeName)

	default:
		ptr, err := d.reader.ReadPtr(addr)
		if err != nil {
			return model.Null
		}
		return model.NullOrPointer(ptr, typeName)
	}
}

// decodeValueType handles the VALUETYPE row of §4.5's table: an enum
// decodes as its underlying primitive width, laid out inline; any other
// struct decodes as a one-level-deep field summary, matching the
// terminal object shape a path resolution produces.
func (d *Decoder) decodeValueType(classAddr, addr uint64, typeName string) model.TypedValue {
	if classAddr == 0 {
		return model.Null
	}
	cls, err := d.be.ResolveClass(classAddr)
	if err != nil {
		return model.Null
	}
	if cls.IsEnum {
		return d.decodeEnumUnderlying(cls, addr)
	}
	return d.decodeObjectFields(cls, addr)
}

// decodeEnumUnderlying reads cls.InstanceSize bytes at addr as a signed
// integer — real Mono/IL2CPP enums store their by-val-arg's own
// underlying type, but the instance size alone is enough to read the
// value back correctly for every width Unity actually emits.
func (d *Decoder) decodeEnumUnderlying(cls *model.ManagedType, addr uint64) model.TypedValue {
	switch cls.InstanceSize {
	case 1:
		v, err := d.reader.ReadU8(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueInt32, Int32: int32(int8(v))}
	case 2:
		v, err := d.reader.ReadU16(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueInt32, Int32: int32(int16(v))}
	case 8:
		v, err := d.reader.ReadI64(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueInt64, Int64: v}
	default:
		v, err := d.reader.ReadI32(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueInt32, Int32: v}
	}
}

// decodeObjectFields builds the one-level-deep field summary §4.6 calls
// the terminal shape for a cursor landing on neither a primitive nor a
// dictionary. addr is the field block itself: for an inline struct
// that's the field's own address; for a boxed/heap instance it's the
// instance pointer.
func (d *Decoder) decodeObjectFields(cls *model.ManagedType, addr uint64) model.TypedValue {
	fields, err := d.be.Fields(cls)
	if err != nil {
		fields = nil
	}
	out := &model.ObjectValue{ClassName: cls.Name, Namespace: cls.Namespace, Address: addr}
	for _, f := range fields {
		block := addr
		if f.IsStatic {
			block = cls.StaticStorageAddress
		}
		v, _ := d.DecodeField(f, block)
		out.Fields = append(out.Fields, model.ObjectField{Name: f.Name, Type: f.TypeName, IsStatic: f.IsStatic, Value: v})
	}
	return model.TypedValue{Kind: model.ValueObject, Object: out}
}

// DecodeObject is the exported entry point PathResolver's terminal step
// uses to build the one-level-deep object summary for a live instance.
func (d *Decoder) DecodeObject(cls *model.ManagedType, instanceAddr uint64) model.TypedValue {
	return d.decodeObjectFields(cls, instanceAddr)
}

// DecodeDictionaryAt is PathResolver's terminal-step entry point for a
// cursor that landed on a dictionary-shaped instance directly (rather
// than through a field whose declared type already told DecodeField to
// take the dictionary branch).
func (d *Decoder) DecodeDictionaryAt(dictAddr uint64, cls *model.ManagedType) model.TypedValue {
	return d.decodeDictionary(dictAddr, cls.ElementTypeAddress)
}

// decodeArray decodes an SZARRAY/ARRAY field: elemTypeInfoAddr is the
// address of the element's own type-info word (FieldDescriptor.TypeAddress
// for an array field), addr is the field slot holding the array header
// pointer.
func (d *Decoder) decodeArray(elemTypeInfoAddr, addr uint64) model.TypedValue {
	header, err := d.reader.ReadPtr(addr)
	if err != nil || header == 0 {
		return model.Null
	}
	length, err := d.reader.ReadI32(header + ptrSize*3)
	if err != nil || length < 0 || length > arraySanityBound {
		return model.Null
	}

	elem, err := d.be.ReadTypeInfo(elemTypeInfoAddr)
	if err != nil {
		elem = model.TypeInfo{Code: model.TypeObject}
	}
	elemName := elem.Code.CLRName()
	if elemName == "" {
		elemName = elem.Code.String()
	}

	stride := uint64(ptrSize)
	if elem.Code.IsPrimitive() || elem.Code == model.TypeBoolean {
		stride = primitiveWidth(elem.Code)
	} else if elem.Code == model.TypeValueType {
		if cls, err := d.be.ResolveClass(elem.Data); err == nil && cls.InstanceSize > 0 {
			stride = uint64(cls.InstanceSize)
		}
	}

	elementsStart := header + ptrSize*4
	out := make([]model.TypedValue, 0, length)
	for i := int32(0); i < length; i++ {
		elemAddr := elementsStart + uint64(i)*stride
		out = append(out, d.decode(elem.Code, elemName, elem.Data, elemAddr))
	}
	return model.TypedValue{Kind: model.ValueArray, Array: out}
}

func primitiveWidth(code model.TypeCode) uint64 {
	switch code {
	case model.TypeBoolean, model.TypeI1, model.TypeU1:
		return 1
	case model.TypeChar, model.TypeI2, model.TypeU2:
		return 2
	case model.TypeI4, model.TypeU4, model.TypeR4:
		return 4
	case model.TypeI8, model.TypeU8, model.TypeR8, model.TypeI, model.TypeU:
		return 8
	default:
		return uint64(ptrSize)
	}
}
