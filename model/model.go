// Package model holds the data shapes shared by every backend: the
// class/field descriptors reconstructed from a target runtime's
// metadata, and the TypedValue sum type ValueDecoder produces.
package model

// Kind names which runtime backend a session is attached with. It is
// fixed at attach and never switches for the lifetime of a Session.
type Kind int

const (
	KindUnknown Kind = iota
	KindMono
	KindIl2cpp
)

func (k Kind) String() string {
	switch k {
	case KindMono:
		return "mono"
	case KindIl2cpp:
		return "il2cpp"
	default:
		return "unknown"
	}
}

// ManagedType describes a class or value type resolved from the
// target's metadata. It is created lazily the first time a class
// pointer is resolved and cached by RuntimeAddress for the lifetime of
// the owning session.
type ManagedType struct {
	Name                string
	Namespace           string
	RuntimeAddress      uint64
	IsStatic            bool
	IsEnum              bool
	IsValueType         bool
	ElementTypeAddress  uint64 // set for arrays/generics; 0 otherwise
	FieldTableAddress   uint64
	StaticStorageAddress uint64
	InstanceSize        int32
	FieldCount          int32
	Opaque              bool // true when FieldCount failed the sanity guard
}

// FullName renders "Namespace.Name", or just Name when Namespace is empty.
func (t *ManagedType) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// FieldDescriptor describes one field declared by a ManagedType. Its
// lifetime equals the owning ManagedType's.
type FieldDescriptor struct {
	Name           string
	TypeName       string
	TypeCode       TypeCode
	TypeAddress    uint64 // resolvable class address for CLASS/VALUETYPE/SZARRAY/ARRAY/GENERICINST; 0 for primitives
	DeclaringType  uint64
	Offset         int32
	IsStatic       bool
	IsConst        bool
	TypeAttributes uint32
}

const staticAttributeBit = 0x10

// StaticFromAttributes reports whether attribute bit 0x10 is set,
// matching the target runtime's field-attribute encoding.
func StaticFromAttributes(attrs uint32) bool {
	return attrs&staticAttributeBit != 0
}

// AssemblyRef names one assembly enumerated at attach.
type AssemblyRef struct {
	Name         string
	ImageAddress uint64
}

// SessionMetrics accumulates diagnostic counters over a session's
// lifetime. No operation's contract depends on these; they exist for
// telemetry and CLI reporting only.
type SessionMetrics struct {
	ReadsAttempted     uint64
	ReadsFailed        uint64
	BytesRead          uint64
	HeapScanCandidates uint64
}
