package model

// ValueKind tags which alternative of TypedValue is populated.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueInt32
	ValueInt64
	ValueUInt32
	ValueUInt64
	ValueFloat
	ValueDouble
	ValueString
	ValuePointer
	ValueArray
	ValueDictionary
	ValueObject
)

// TypedValue is the sum type every decode operation ultimately
// produces. Only the field matching Kind is meaningful; the zero value
// of the others is unused.
type TypedValue struct {
	Kind ValueKind

	Bool    bool
	Int32   int32
	Int64   int64
	UInt32  uint32
	UInt64  uint64
	Float32 float32
	Float64 float64
	Str     string

	Pointer PointerValue
	Array   []TypedValue
	Dict    []DictEntry
	Object  *ObjectValue
}

// PointerValue is a reference-typed decode result. Address == 0 always
// decodes as ValueNull instead, never as a PointerValue — see
// model.NullOrPointer.
type PointerValue struct {
	Address   uint64
	ClassName string // best-effort, may be empty
}

// DictEntry is one occupied slot of a structurally-decoded dictionary.
type DictEntry struct {
	Key   TypedValue
	Value TypedValue
}

// ObjectValue is a one-level-deep field dump of an instance, produced
// as the terminal shape of a path resolution that lands on neither a
// primitive nor a dictionary.
type ObjectValue struct {
	ClassName string
	Namespace string
	Address   uint64
	Fields    []ObjectField
}

// ObjectField is one decoded field within an ObjectValue.
type ObjectField struct {
	Name     string
	Type     string
	IsStatic bool
	Value    TypedValue
}

// Null is the shared ValueNull instance.
var Null = TypedValue{Kind: ValueNull}

// MinValidAddress is the poisoned-pointer threshold from spec.md §3:
// addresses below this are never dereferenced.
const MinValidAddress = 0x10000

// NullOrPointer builds a TypedValue that is Null when addr is 0 or
// below MinValidAddress, and a Pointer otherwise. Every code path that
// turns a raw address into a TypedValue must go through here so the
// "Pointer.address == 0 ∨ ≥ 0x10000" invariant holds everywhere.
func NullOrPointer(addr uint64, className string) TypedValue {
	if addr == 0 {
		return Null
	}
	if addr < MinValidAddress {
		return Null
	}
	return TypedValue{Kind: ValuePointer, Pointer: PointerValue{Address: addr, ClassName: className}}
}

// MaxDictionaryEntries bounds structurally-decoded dictionaries per
// spec.md §3's invariant 0 ≤ len ≤ 100_000.
const MaxDictionaryEntries = 100_000
