package value

import "github.com/kestrelre/manascope/model"

// entryStride matches spec's fixed 16-byte dictionary entry layout:
// {hashCode int32 @0, next int32 @4, key @8, value @12}. Both key and
// value are always read as 4-byte slots regardless of their resolved
// generic argument type — the entry layout itself is fixed-width.
const entryStride = 16

// decodeDictionary decodes dictAddr structurally, per §4.5: it never
// trusts field metadata for a generic instantiation's own layout,
// reading the backing array directly instead. genericClassPtr is the
// dictionary field's own generic-class pointer, used only to resolve
// the key/value element types for interpreting the fixed-width slots —
// when that resolution fails, the key defaults to a 4-byte unsigned
// read and the value to a 4-byte signed read, matching the reference
// <uint,int> shape.
func (d *Decoder) decodeDictionary(dictAddr, genericClassPtr uint64) model.TypedValue {
	if dictAddr == 0 {
		return model.Null
	}

	keyCode, valCode := model.TypeU4, model.TypeI4
	if genericClassPtr != 0 {
		if args, err := d.be.GenericArguments(&model.ManagedType{ElementTypeAddress: genericClassPtr}); err == nil && len(args) == 2 {
			keyCode, valCode = args[0].Code, args[1].Code
		}
	}

	entriesPtr, err := d.reader.ReadPtr(dictAddr + 0x18)
	if err != nil {
		return model.TypedValue{Kind: model.ValueDictionary}
	}

	length, lenErr := d.reader.ReadI32(entriesPtr + 0x18)
	if lenErr != nil || length <= 0 || length > model.MaxDictionaryEntries {
		if fallback, err := d.reader.ReadPtr(dictAddr + 0x10); err == nil && fallback != 0 {
			entriesPtr = fallback
			length, lenErr = d.reader.ReadI32(entriesPtr + 0x18)
		}
	}
	if lenErr != nil || length <= 0 || length > model.MaxDictionaryEntries {
		// The CardsAndQuantity IL2CPP shape keeps the same entries
		// pointer but stores its count inline on the container rather
		// than on the entries array header.
		if inline, err := d.reader.ReadI32(dictAddr + 0x20); err == nil && inline > 0 && inline <= model.MaxDictionaryEntries {
			length = inline
		} else {
			return model.TypedValue{Kind: model.ValueDictionary}
		}
	}

	entriesStart := entriesPtr + uint64(ptrSize)*4
	entries := make([]model.DictEntry, 0, length)
	for i := int32(0); i < length; i++ {
		entryAddr := entriesStart + uint64(i)*entryStride
		hashCode, err := d.reader.ReadI32(entryAddr)
		if err != nil || hashCode < 0 {
			continue
		}
		key := decodeDictScalar(d.reader, keyCode, entryAddr+8)
		val := decodeDictScalar(d.reader, valCode, entryAddr+12)
		entries = append(entries, model.DictEntry{Key: key, Value: val})
	}
	return model.TypedValue{Kind: model.ValueDictionary, Dict: entries}
}

// decodeDictScalar reads a fixed 4-byte dictionary slot, interpreting
// its bits per code. Any reference-typed key/value would not fit this
// layout at all, so anything other than a small integer or float falls
// back to an unsigned 32-bit read.
func decodeDictScalar(r interface {
	ReadU32(addr uint64) (uint32, error)
	ReadI32(addr uint64) (int32, error)
	ReadFloat32(addr uint64) (float32, error)
}, code model.TypeCode, addr uint64) model.TypedValue {
	switch code {
	case model.TypeI4, model.TypeI2, model.TypeI1:
		v, err := r.ReadI32(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueInt32, Int32: v}
	case model.TypeR4:
		v, err := r.ReadFloat32(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueFloat, Float32: v}
	default:
		v, err := r.ReadU32(addr)
		if err != nil {
			return model.Null
		}
		return model.TypedValue{Kind: model.ValueUInt32, UInt32: v}
	}
}
