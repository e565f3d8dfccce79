// Package mono implements the Mono capability set of package backend:
// walking a MonoDomain's assembly list, an image's class-cache hash
// table, and a MonoClass's field table, using only foreign memory
// reads. Every offset it consumes comes from an offsets.Table looked
// up by runtime version — nothing here hardcodes a struct layout.
package mono

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kestrelre/manascope/memio"
	"github.com/kestrelre/manascope/merrors"
	"github.com/kestrelre/manascope/model"
	"github.com/kestrelre/manascope/offsets"
)

const ptrSize = 8

// opaqueFieldCountCeiling guards against a MonoClass with a corrupted
// or not-yet-initialized field count: real user classes rarely declare
// more than a few hundred fields.
const opaqueFieldCountCeiling = 1000

// classCacheSize bounds the resolved-class cache so a session attached
// for a long time against a target with heavy generic-type churn can't
// grow it without limit; an eviction just costs a re-read next time,
// which is always safe since ManagedType is a pure function of the
// class pointer's current bytes.
const classCacheSize = 4096

// Backend implements backend.Backend against a classical Mono runtime.
type Backend struct {
	reader     *memio.Reader
	offsets    offsets.Table
	rootDomain uint64

	classCache *lru.Cache[uint64, *model.ManagedType]
}

func New(reader *memio.Reader, table offsets.Table, rootDomain uint64) *Backend {
	cache, _ := lru.New[uint64, *model.ManagedType](classCacheSize)
	return &Backend{
		reader:     reader,
		offsets:    table,
		rootDomain: rootDomain,
		classCache: cache,
	}
}

func (b *Backend) Kind() model.Kind { return model.KindMono }

func (b *Backend) off(name string) (int64, error) { return b.offsets.Field(name) }

// EnumerateAssemblies walks the root domain's referenced_assemblies
// GSList: each node is {data *MonoAssembly @0, next *GSList @ptrSize}.
func (b *Backend) EnumerateAssemblies() ([]model.AssemblyRef, error) {
	refAsm, err := b.off(offsets.MonoReferencedAssemblies)
	if err != nil {
		return nil, err
	}
	assemblyImageOff, err := b.off(offsets.MonoAssemblyImage)
	if err != nil {
		return nil, err
	}

	head, err := b.reader.ReadPtr(uint64(int64(b.rootDomain) + refAsm))
	if err != nil {
		return nil, merrors.Newf(merrors.KindReadError, "mono: reading domain assembly list: %v", err)
	}

	var out []model.AssemblyRef
	for node := head; node != 0; {
		assembly, err := b.reader.ReadPtr(node)
		if err != nil {
			break
		}
		nameAddr, err := b.reader.ReadPtr(assembly + ptrSize*2)
		if err == nil && nameAddr != 0 {
			name, err := b.reader.ReadCString(nameAddr, 1024)
			if err == nil && name != "" {
				imageAddr, _ := b.reader.ReadPtr(assembly + uint64(assemblyImageOff))
				out = append(out, model.AssemblyRef{Name: name, ImageAddress: imageAddr})
			}
		}
		node, err = b.reader.ReadPtr(node + ptrSize)
		if err != nil {
			break
		}
	}
	return out, nil
}

// EnumerateClasses walks an image's class-cache hash table: a fixed
// bucket array where each bucket heads a next_class_cache-linked chain
// of MonoClass pointers. Each class pointer is returned once.
func (b *Backend) EnumerateClasses(imageAddr uint64) ([]uint64, error) {
	classCacheOff, err := b.off(offsets.MonoImageClassCache)
	if err != nil {
		return nil, err
	}
	sizeOff, err := b.off(offsets.MonoHashTableSize)
	if err != nil {
		return nil, err
	}
	tableOff, err := b.off(offsets.MonoHashTableTable)
	if err != nil {
		return nil, err
	}
	nextOff, err := b.off(offsets.MonoTypeDefNextClassCache)
	if err != nil {
		return nil, err
	}

	base := imageAddr + uint64(classCacheOff)
	size, err := b.reader.ReadU32(base + uint64(sizeOff))
	if err != nil {
		return nil, merrors.Newf(merrors.KindReadError, "mono: reading class cache size: %v", err)
	}
	table, err := b.reader.ReadPtr(base + uint64(tableOff))
	if err != nil {
		return nil, merrors.Newf(merrors.KindReadError, "mono: reading class cache table: %v", err)
	}

	var out []uint64
	seen := make(map[uint64]struct{})
	for bucket := uint32(0); bucket < size*ptrSize; bucket += ptrSize {
		def, err := b.reader.ReadPtr(table + uint64(bucket))
		if err != nil {
			continue
		}
		for def != 0 {
			if _, dup := seen[def]; dup {
				break
			}
			seen[def] = struct{}{}
			out = append(out, def)
			def, err = b.reader.ReadPtr(def + uint64(nextOff))
			if err != nil {
				break
			}
		}
	}
	return out, nil
}

func (b *Backend) ResolveClassByName(imageAddr uint64, namespace, name string) (*model.ManagedType, error) {
	classes, err := b.EnumerateClasses(imageAddr)
	if err != nil {
		return nil, err
	}
	for _, addr := range classes {
		t, err := b.ResolveClass(addr)
		if err != nil {
			continue
		}
		if t.Name == name && t.Namespace == namespace {
			return t, nil
		}
	}
	return nil, merrors.Newf(merrors.KindClassNotFound, "mono: class %s.%s not found", namespace, name)
}

func (b *Backend) ResolveClass(classAddr uint64) (*model.ManagedType, error) {
	if t, ok := b.classCache.Get(classAddr); ok {
		return t, nil
	}

	bitFieldsOff, err := b.off(offsets.MonoTypeDefBitFields)
	if err != nil {
		return nil, err
	}
	fieldCountOff, err := b.off(offsets.MonoTypeDefFieldCount)
	if err != nil {
		return nil, err
	}
	nameOff, err := b.off(offsets.MonoTypeDefName)
	if err != nil {
		return nil, err
	}
	namespaceOff, err := b.off(offsets.MonoTypeDefNamespace)
	if err != nil {
		return nil, err
	}
	sizeOff, err := b.off(offsets.MonoTypeDefSize)
	if err != nil {
		return nil, err
	}
	fieldsOff, err := b.off(offsets.MonoTypeDefFields)
	if err != nil {
		return nil, err
	}
	runtimeInfoOff, err := b.off(offsets.MonoTypeDefRuntimeInfo)
	if err != nil {
		return nil, err
	}
	domainVTablesOff, err := b.off(offsets.MonoRuntimeInfoDomainVTable)
	if err != nil {
		return nil, err
	}
	vtableOff, err := b.off(offsets.MonoVTable)
	if err != nil {
		return nil, err
	}
	byValArgOff, err := b.off(offsets.MonoTypeDefByValArg)
	if err != nil {
		return nil, err
	}

	bitFields, err := b.reader.ReadU32(classAddr + uint64(bitFieldsOff))
	if err != nil {
		return nil, merrors.Newf(merrors.KindReadError, "mono: reading class bit fields: %v", err)
	}
	fieldCount, err := b.reader.ReadI32(classAddr + uint64(fieldCountOff))
	if err != nil {
		return nil, merrors.Newf(merrors.KindReadError, "mono: reading field count: %v", err)
	}
	namePtr, _ := b.reader.ReadPtr(classAddr + uint64(nameOff))
	name, _ := b.reader.ReadCString(namePtr, 1024)
	namespacePtr, _ := b.reader.ReadPtr(classAddr + uint64(namespaceOff))
	namespace, _ := b.reader.ReadCString(namespacePtr, 1024)
	size, _ := b.reader.ReadI32(classAddr + uint64(sizeOff))
	fieldTable, _ := b.reader.ReadPtr(classAddr + uint64(fieldsOff))

	var staticStorage uint64
	if runtimeInfoPtr, err := b.reader.ReadPtr(classAddr + uint64(runtimeInfoOff)); err == nil && runtimeInfoPtr != 0 {
		if vtable, err := b.reader.ReadPtr(runtimeInfoPtr + uint64(domainVTablesOff)); err == nil && vtable != 0 {
			staticStorage = vtable + uint64(vtableOff)
		}
	}

	// A GENERICINST by-val-arg type-info's Data is the MonoGenericClass*
	// backing this closed instantiation (e.g. Dictionary<uint,int>).
	var genericClass uint64
	if byValArg, err := b.readTypeInfo(classAddr + uint64(byValArgOff)); err == nil && byValArg.Code == model.TypeGenericInst {
		genericClass = byValArg.Data
	}

	t := &model.ManagedType{
		Name:                 name,
		Namespace:            namespace,
		RuntimeAddress:       classAddr,
		IsEnum:               bitFields&0x8 != 0,
		IsValueType:          bitFields&0x4 != 0,
		ElementTypeAddress:   genericClass,
		FieldTableAddress:    fieldTable,
		StaticStorageAddress: staticStorage,
		InstanceSize:         size,
		FieldCount:           fieldCount,
		Opaque:               fieldCount == 0 || fieldCount >= opaqueFieldCountCeiling,
	}
	b.classCache.Add(classAddr, t)
	return t, nil
}

// Fields decodes t's directly-declared field table: field_count entries
// of type_def_field_size bytes each, {type_ptr, name_ptr, parent, offset, token}.
func (b *Backend) Fields(t *model.ManagedType) ([]model.FieldDescriptor, error) {
	if t.Opaque || t.FieldTableAddress == 0 {
		return nil, nil
	}
	fieldSize, err := b.off(offsets.MonoTypeDefFieldSize)
	if err != nil {
		return nil, err
	}
	typeOff, err := b.off(offsets.MonoFieldRecordTypePtr)
	if err != nil {
		return nil, err
	}
	nameOff, err := b.off(offsets.MonoFieldRecordNamePtr)
	if err != nil {
		return nil, err
	}
	offsetOff, err := b.off(offsets.MonoFieldRecordOffset)
	if err != nil {
		return nil, err
	}

	out := make([]model.FieldDescriptor, 0, t.FieldCount)
	for i := int32(0); i < t.FieldCount; i++ {
		fieldAddr := t.FieldTableAddress + uint64(i)*uint64(fieldSize)
		typePtr, err := b.reader.ReadPtr(fieldAddr + uint64(typeOff))
		if err != nil || typePtr == 0 {
			continue
		}
		info, err := b.readTypeInfo(typePtr)
		if err != nil {
			continue
		}
		namePtr, _ := b.reader.ReadPtr(fieldAddr + uint64(nameOff))
		name, _ := b.reader.ReadCString(namePtr, 512)
		offsetVal, _ := b.reader.ReadI32(fieldAddr + uint64(offsetOff))

		typeName, err := b.typeName(info)
		if err != nil {
			typeName = info.Code.String()
		}

		out = append(out, model.FieldDescriptor{
			Name:           name,
			TypeName:       typeName,
			TypeCode:       info.Code,
			TypeAddress:    info.Data,
			DeclaringType:  t.RuntimeAddress,
			Offset:         offsetVal,
			IsStatic:       info.IsStatic(),
			IsConst:        info.IsConst(),
			TypeAttributes: info.Attrs,
		})
	}
	return out, nil
}

// ReadTypeInfo exposes readTypeInfo for callers outside the package
// (value.Decoder resolving an array field's element type).
func (b *Backend) ReadTypeInfo(addr uint64) (model.TypeInfo, error) {
	return b.readTypeInfo(addr)
}

// readTypeInfo decodes the {data, attrs} pair Mono's MonoType/TypeInfo
// slot packs at addr: data at addr+0, attrs (with the raw type code in
// bits 16-23) at addr+ptrSize.
func (b *Backend) readTypeInfo(addr uint64) (model.TypeInfo, error) {
	data, err := b.reader.ReadPtr(addr)
	if err != nil {
		return model.TypeInfo{}, err
	}
	attrs, err := b.reader.ReadU32(addr + ptrSize)
	if err != nil {
		return model.TypeInfo{}, err
	}
	code := model.FromRawTypeCode((attrs >> 16) & 0xff)
	return model.TypeInfo{Addr: addr, Data: data, Attrs: attrs, Code: code}, nil
}

// typeName resolves a readable name for info: primitives and other
// well-known codes get their canonical CLR name; CLASS/VALUETYPE
// resolve the class pointed to by info.Data; SZARRAY/ARRAY name their
// element type with a "[]" suffix; GENERICINST names the open generic
// plus its resolved type arguments.
func (b *Backend) typeName(info model.TypeInfo) (string, error) {
	if name := info.Code.CLRName(); name != "" {
		return name, nil
	}
	switch info.Code {
	case model.TypeClass, model.TypeValueType:
		cls, err := b.ResolveClass(info.Data)
		if err != nil {
			return "", err
		}
		return cls.FullName(), nil
	case model.TypeSZArray, model.TypeArray:
		elem, err := b.readTypeInfo(info.Data)
		if err != nil {
			return "", err
		}
		elemName, err := b.typeName(elem)
		if err != nil {
			elemName = elem.Code.String()
		}
		return elemName + "[]", nil
	case model.TypeGenericInst:
		return b.genericInstName(info)
	default:
		return info.Code.String(), nil
	}
}

// genericInstName follows original_source's read_generic_args: info.Data
// is a MonoGenericClass*, resolved the same way genericArgs resolves it.
func (b *Backend) genericInstName(info model.TypeInfo) (string, error) {
	monoClass, err := b.reader.ReadPtr(info.Data)
	if err != nil {
		return "", err
	}
	openGeneric, err := b.ResolveClass(monoClass)
	if err != nil {
		return "", err
	}
	args, err := b.genericArgs(info.Data)
	if err != nil {
		return openGeneric.FullName() + "<>", nil
	}

	name := openGeneric.FullName() + "<"
	for i, a := range args {
		if i > 0 {
			name += ", "
		}
		argName, err := b.typeName(a)
		if err != nil {
			argName = a.Code.String()
		}
		name += argName
	}
	return name + ">", nil
}

// genericArgs resolves a MonoGenericClass*'s type arguments: its first
// word is the open generic MonoClass*, its context (at +ptrSize) holds
// a MonoGenericInst* whose argument count sits 4 pointers into the open
// class's generic_container and whose argument type pointers start 8
// bytes into the instance.
func (b *Backend) genericArgs(monoGenericClass uint64) ([]model.TypeInfo, error) {
	genericContainerOff, err := b.off(offsets.MonoTypeDefGenericContainer)
	if err != nil {
		return nil, err
	}

	monoClass, err := b.reader.ReadPtr(monoGenericClass)
	if err != nil {
		return nil, err
	}
	container, err := b.reader.ReadPtr(monoClass + uint64(genericContainerOff))
	if err != nil || container == 0 {
		return nil, nil
	}
	inst, err := b.reader.ReadPtr(monoGenericClass + ptrSize)
	if err != nil {
		return nil, nil
	}
	argCount, err := b.reader.ReadU32(container + 4*ptrSize)
	if err != nil {
		return nil, nil
	}

	args := make([]model.TypeInfo, 0, argCount)
	for i := uint32(0); i < argCount; i++ {
		argPtr, err := b.reader.ReadPtr(inst + 0x8 + uint64(i)*ptrSize)
		if err != nil {
			continue
		}
		argInfo, err := b.readTypeInfo(argPtr)
		if err != nil {
			continue
		}
		args = append(args, argInfo)
	}
	return args, nil
}

// GenericArguments resolves t's own closed generic type arguments via
// the MonoGenericClass* ResolveClass captured in t.ElementTypeAddress.
func (b *Backend) GenericArguments(t *model.ManagedType) ([]model.TypeInfo, error) {
	if t.ElementTypeAddress == 0 {
		return nil, nil
	}
	return b.genericArgs(t.ElementTypeAddress)
}

// ClassOfInstance recovers the class pointer stored as the instance's
// leading vtable word, then resolves the vtable's owning MonoClass —
// a MonoVTable's own first word is the MonoClass it was built for.
func (b *Backend) ClassOfInstance(instanceAddr uint64) (*model.ManagedType, error) {
	vtable, err := b.reader.ReadPtr(instanceAddr)
	if err != nil {
		return nil, merrors.Newf(merrors.KindReadError, "mono: reading instance vtable: %v", err)
	}
	classAddr, err := b.reader.ReadPtr(vtable)
	if err != nil {
		return nil, merrors.Newf(merrors.KindReadError, "mono: reading vtable class: %v", err)
	}
	return b.ResolveClass(classAddr)
}

// FindRootInstance is not implemented for Mono: unlike IL2CPP, a Mono
// root object is always reached through a resolved static field
// (session.GetStaticField), not a heap scan.
func (b *Backend) FindRootInstance(rootClass *model.ManagedType) (uint64, error) {
	return 0, fmt.Errorf("mono: FindRootInstance is not supported; resolve a static field instead")
}
