// Package backend declares the capability set both the Mono and
// IL2CPP backends implement, and the RuntimeLocator that discovers
// which one a target process is running and where its anchors live.
// Backend dispatch is the only dynamic-dispatch point in the module —
// once chosen at attach, a Session's backend never switches.
package backend

import (
	"github.com/kestrelre/manascope/model"
)

// Anchors holds the addresses RuntimeLocator resolved for a session.
// Exactly one of the two groups is populated, matching Kind.
type Anchors struct {
	Kind model.Kind

	// Mono
	MonoModuleBase   uint64
	MonoRootDomain   uint64

	// IL2CPP
	Il2cppModuleBase    uint64
	Il2cppDataSegment   uint64
	Il2cppTypeInfoTable uint64
	Il2cppMetadataBase  uint64
}

// Backend is the capability set spec.md §9 calls for:
// {enumerate_assemblies, resolve_class, find_root_instance, decode_field}
// plus the bits of bookkeeping every caller of those needs (class
// fields, instance-to-class resolution).
type Backend interface {
	Kind() model.Kind

	// EnumerateAssemblies walks the runtime's assembly list once.
	EnumerateAssemblies() ([]model.AssemblyRef, error)

	// EnumerateClasses walks every class defined in the given image
	// (Mono: image's class-cache hash table; IL2CPP: type-defs whose
	// declaring image matches), de-duplicated by pointer.
	EnumerateClasses(imageAddr uint64) ([]uint64, error)

	// ResolveClass reads and caches the ManagedType at classAddr.
	ResolveClass(classAddr uint64) (*model.ManagedType, error)

	// ResolveClassByName looks up a class by exact namespace and name
	// within one image: Mono's image pointer, or IL2CPP's metadata image
	// index (0 is the first image, not "any image").
	ResolveClassByName(imageAddr uint64, namespace, name string) (*model.ManagedType, error)

	// Fields lists the fields declared directly by t, applying the
	// opaque-generic guard (field_count == 0 or ≥ 1000 marks the type
	// opaque and returns no fields).
	Fields(t *model.ManagedType) ([]model.FieldDescriptor, error)

	// ClassOfInstance recovers the class pointer from an instance's
	// leading vtable word and resolves it.
	ClassOfInstance(instanceAddr uint64) (*model.ManagedType, error)

	// FindRootInstance returns the live instance pointer of rootClass
	// found by IL2CPP's heap scan. The Mono backend does not implement
	// it and always returns an error; a Mono root instance is read from
	// the class's singleton static field instead.
	FindRootInstance(rootClass *model.ManagedType) (uint64, error)

	// GenericArguments resolves t's own generic type arguments when t
	// is a closed generic instantiation (t.ElementTypeAddress != 0),
	// e.g. recovering <System.UInt32, System.Int32> for a concrete
	// Dictionary<uint,int> class pointer, so ValueDecoder can decode
	// its entries without hardcoding key/value shapes.
	GenericArguments(t *model.ManagedType) ([]model.TypeInfo, error)

	// ReadTypeInfo decodes the {data, attrs} type-info word at addr —
	// the same shape a field's own type slot has. ValueDecoder uses it
	// to resolve an array field's element type, addressed by
	// FieldDescriptor.TypeAddress for SZARRAY/ARRAY fields.
	ReadTypeInfo(addr uint64) (model.TypeInfo, error)
}
