package il2cpp

import (
	"fmt"

	"github.com/apex/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kestrelre/manascope/memio"
	"github.com/kestrelre/manascope/merrors"
	"github.com/kestrelre/manascope/model"
	"github.com/kestrelre/manascope/offsets"
	"github.com/kestrelre/manascope/telemetry"
)

const ptrSize = 8

// opaqueFieldCountCeiling mirrors mono.Backend's guard against a
// corrupted field count.
const opaqueFieldCountCeiling = 1000

// classCacheSize mirrors mono.Backend's cache bound.
const classCacheSize = 4096

// Backend implements backend.Backend against an IL2CPP-compiled runtime.
type Backend struct {
	reader        *memio.Reader
	offsets       offsets.Table
	typeInfoTable uint64
	metadata      *Metadata

	classCache *lru.Cache[uint64, *model.ManagedType]

	log                *log.Entry
	heapScanCandidates uint64
}

// New builds a Backend anchored at typeInfoTable, parsing the metadata
// blob at metadataBase for assembly/name resolution.
func New(reader *memio.Reader, table offsets.Table, typeInfoTable, metadataBase uint64) (*Backend, error) {
	md, err := Open(reader, metadataBase)
	if err != nil {
		return nil, err
	}
	cache, _ := lru.New[uint64, *model.ManagedType](classCacheSize)
	return &Backend{
		reader:        reader,
		offsets:       table,
		typeInfoTable: typeInfoTable,
		metadata:      md,
		classCache:    cache,
		log:           telemetry.Component("il2cpp"),
	}, nil
}

// HeapScanCandidates reports the running total of 8-byte-aligned words
// FindRootInstance has matched against a class pointer prefilter across
// every scan performed by this Backend, for session-level metrics.
func (b *Backend) HeapScanCandidates() uint64 { return b.heapScanCandidates }

func (b *Backend) Kind() model.Kind { return model.KindIl2cpp }

func (b *Backend) off(name string) (int64, error) { return b.offsets.Field(name) }

// classPtrAt resolves the runtime Il2CppClass* stored at global
// type-definition index i in s_TypeInfoTable.
func (b *Backend) classPtrAt(i int) (uint64, error) {
	return b.reader.ReadPtr(b.typeInfoTable + uint64(i)*ptrSize)
}

// EnumerateAssemblies lists every image in the metadata blob, using the
// image's own index into the metadata's image table as the synthetic
// ImageAddress: IL2CPP has no runtime image pointer, but every image
// record carries a TypeStart/TypeCount range into the same global
// type-definition index space s_TypeInfoTable is keyed by, so an index
// is all EnumerateClasses needs.
func (b *Backend) EnumerateAssemblies() ([]model.AssemblyRef, error) {
	count := b.metadata.ImageCount()
	out := make([]model.AssemblyRef, 0, count)
	for i := 0; i < count; i++ {
		img, err := b.metadata.Image(i)
		if err != nil {
			continue
		}
		name, err := b.metadata.String(img.NameIndex)
		if err != nil || name == "" {
			continue
		}
		out = append(out, model.AssemblyRef{Name: name, ImageAddress: uint64(i)})
	}
	return out, nil
}

// EnumerateClasses resolves every runtime Il2CppClass* declared by the
// image at metadata index imageAddr, via that image's TypeStart/TypeCount
// slice of the global type-definition index.
func (b *Backend) EnumerateClasses(imageAddr uint64) ([]uint64, error) {
	img, err := b.metadata.Image(int(imageAddr))
	if err != nil {
		return nil, merrors.Newf(merrors.KindAssemblyNotFound, "il2cpp: image index %d: %v", imageAddr, err)
	}
	out := make([]uint64, 0, img.TypeCount)
	seen := make(map[uint64]struct{}, img.TypeCount)
	for i := int32(0); i < int32(img.TypeCount); i++ {
		classAddr, err := b.classPtrAt(int(img.TypeStart + i))
		if err != nil || classAddr == 0 {
			continue
		}
		if _, dup := seen[classAddr]; dup {
			continue
		}
		seen[classAddr] = struct{}{}
		out = append(out, classAddr)
	}
	return out, nil
}

// ResolveClassByName finds a class by exact namespace and name match
// within the image at imageAddr. It walks the image's slice of the
// global type-definition table comparing metadata strings the way
// original_source's find_type_in_namespace does, and only resolves the
// runtime Il2CppClass* for the one entry that actually matches — cheaper
// and more faithful than fully decoding every class in the image just to
// read its runtime name string back out of process memory.
func (b *Backend) ResolveClassByName(imageAddr uint64, namespace, name string) (*model.ManagedType, error) {
	img, err := b.metadata.Image(int(imageAddr))
	if err != nil {
		return nil, merrors.Newf(merrors.KindAssemblyNotFound, "il2cpp: image index %d: %v", imageAddr, err)
	}
	defCount := b.metadata.TypeDefinitionCount()
	for i := int32(0); i < int32(img.TypeCount); i++ {
		globalIndex := int(img.TypeStart + i)
		if globalIndex < 0 || globalIndex >= defCount {
			continue
		}
		td, err := b.metadata.TypeDefinition(globalIndex)
		if err != nil {
			continue
		}
		tName, err := b.metadata.String(td.NameIndex)
		if err != nil || tName != name {
			continue
		}
		tNamespace, err := b.metadata.String(td.NamespaceIndex)
		if err != nil || tNamespace != namespace {
			continue
		}
		classAddr, err := b.classPtrAt(globalIndex)
		if err != nil || classAddr == 0 {
			continue
		}
		return b.ResolveClass(classAddr)
	}
	return nil, merrors.Newf(merrors.KindClassNotFound, "il2cpp: class %s.%s not found in image %d", namespace, name, imageAddr)
}

func (b *Backend) ResolveClass(classAddr uint64) (*model.ManagedType, error) {
	if t, ok := b.classCache.Get(classAddr); ok {
		return t, nil
	}

	flagsOff, err := b.off(offsets.Il2cppClassFlags)
	if err != nil {
		return nil, err
	}
	fieldCountOff, err := b.off(offsets.Il2cppClassFieldCount)
	if err != nil {
		return nil, err
	}
	nameOff, err := b.off(offsets.Il2cppClassName)
	if err != nil {
		return nil, err
	}
	namespaceOff, err := b.off(offsets.Il2cppClassNamespace)
	if err != nil {
		return nil, err
	}
	sizeOff, err := b.off(offsets.Il2cppClassInstanceSize)
	if err != nil {
		return nil, err
	}
	fieldsOff, err := b.off(offsets.Il2cppClassFields)
	if err != nil {
		return nil, err
	}
	staticFieldsOff, err := b.off(offsets.Il2cppClassStaticFields)
	if err != nil {
		return nil, err
	}
	genericClassOff, err := b.off(offsets.Il2cppClassGenericClass)
	if err != nil {
		return nil, err
	}

	flags, err := b.reader.ReadU32(classAddr + uint64(flagsOff))
	if err != nil {
		return nil, merrors.Newf(merrors.KindReadError, "il2cpp: reading class flags: %v", err)
	}
	fieldCount, err := b.reader.ReadI32(classAddr + uint64(fieldCountOff))
	if err != nil {
		return nil, merrors.Newf(merrors.KindReadError, "il2cpp: reading field count: %v", err)
	}
	namePtr, _ := b.reader.ReadPtr(classAddr + uint64(nameOff))
	name, _ := b.reader.ReadCString(namePtr, 1024)
	namespacePtr, _ := b.reader.ReadPtr(classAddr + uint64(namespaceOff))
	namespace, _ := b.reader.ReadCString(namespacePtr, 1024)
	size, _ := b.reader.ReadI32(classAddr + uint64(sizeOff))
	fieldTable, _ := b.reader.ReadPtr(classAddr + uint64(fieldsOff))
	staticFields, _ := b.reader.ReadPtr(classAddr + uint64(staticFieldsOff))
	genericClass, _ := b.reader.ReadPtr(classAddr + uint64(genericClassOff))

	t := &model.ManagedType{
		Name:                 name,
		Namespace:            namespace,
		RuntimeAddress:       classAddr,
		IsEnum:               flags&0x8 != 0,
		IsValueType:          flags&0x4 != 0,
		ElementTypeAddress:   genericClass,
		FieldTableAddress:    fieldTable,
		StaticStorageAddress: staticFields,
		InstanceSize:         size,
		FieldCount:           fieldCount,
		Opaque:               fieldCount == 0 || fieldCount >= opaqueFieldCountCeiling,
	}
	b.classCache.Add(classAddr, t)
	return t, nil
}

// Fields decodes t's Il2CppFieldInfo table: field_count entries of
// field_stride bytes each, {name_ptr, type_ptr, parent, offset}.
func (b *Backend) Fields(t *model.ManagedType) ([]model.FieldDescriptor, error) {
	if t.Opaque || t.FieldTableAddress == 0 {
		return nil, nil
	}
	strideOff, err := b.off(offsets.Il2cppFieldStride)
	if err != nil {
		return nil, err
	}
	typeOff, err := b.off(offsets.Il2cppFieldType)
	if err != nil {
		return nil, err
	}
	nameOff, err := b.off(offsets.Il2cppFieldName)
	if err != nil {
		return nil, err
	}
	offsetOff, err := b.off(offsets.Il2cppFieldOffset)
	if err != nil {
		return nil, err
	}

	out := make([]model.FieldDescriptor, 0, t.FieldCount)
	for i := int32(0); i < t.FieldCount; i++ {
		fieldAddr := t.FieldTableAddress + uint64(i)*uint64(strideOff)
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

// readTypeInfo decodes an Il2CppType word: data at addr+0, attrs at
// addr+8. attrs is the same ECMA-335 bitfield layout Mono uses
// (attrs:16, type:8, ...), so the type code sits in bits 16-23 here too.
func (b *Backend) readTypeInfo(addr uint64) (model.TypeInfo, error) {
	dataOff, err := b.off(offsets.Il2cppTypeData)
	if err != nil {
		return model.TypeInfo{}, err
	}
	attrsOff, err := b.off(offsets.Il2cppTypeAttrs)
	if err != nil {
		return model.TypeInfo{}, err
	}
	data, err := b.reader.ReadPtr(addr + uint64(dataOff))
	if err != nil {
		return model.TypeInfo{}, err
	}
	attrs, err := b.reader.ReadU32(addr + uint64(attrsOff))
	if err != nil {
		return model.TypeInfo{}, err
	}
	code := model.FromRawTypeCode((attrs >> 16) & 0xFF)
	return model.TypeInfo{Addr: addr, Data: data, Attrs: attrs, Code: code}, nil
}

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

// genericInstName follows original_source's Il2CppTypeDef::read_generic_args:
// info.Data (== the class's own class_generic_class field) points at an
// Il2CppGenericClass whose first word is the open generic class's own
// by-val-arg type, resolved via the class itself rather than a separate
// MonoClass-style indirection.
func (b *Backend) genericInstName(info model.TypeInfo) (string, error) {
	openClassAddr, err := b.reader.ReadPtr(info.Data)
	if err != nil {
		return "", err
	}
	openGeneric, err := b.ResolveClass(openClassAddr)
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

// genericArgs resolves an Il2CppGenericClass*'s type arguments: its
// generic_class_context field holds a pointer whose first word is the
// class-level Il2CppGenericInst*, whose argc/argv give the resolved
// argument type pointers.
func (b *Backend) genericArgs(genericClassPtr uint64) ([]model.TypeInfo, error) {
	contextOff, err := b.off(offsets.Il2cppGenericClassContext)
	if err != nil {
		return nil, err
	}
	argcOff, err := b.off(offsets.Il2cppGenericInstArgc)
	if err != nil {
		return nil, err
	}
	argvOff, err := b.off(offsets.Il2cppGenericInstArgv)
	if err != nil {
		return nil, err
	}

	contextPtr, err := b.reader.ReadPtr(genericClassPtr + uint64(contextOff))
	if err != nil || contextPtr == 0 {
		return nil, nil
	}
	classInst, err := b.reader.ReadPtr(contextPtr)
	if err != nil || classInst == 0 {
		return nil, nil
	}
	argc, err := b.reader.ReadU32(classInst + uint64(argcOff))
	if err != nil {
		return nil, nil
	}
	argv, err := b.reader.ReadPtr(classInst + uint64(argvOff))
	if err != nil {
		return nil, nil
	}

	args := make([]model.TypeInfo, 0, argc)
	for i := uint32(0); i < argc; i++ {
		typePtr, err := b.reader.ReadPtr(argv + uint64(i)*ptrSize)
		if err != nil || typePtr == 0 {
			continue
		}
		info, err := b.readTypeInfo(typePtr)
		if err != nil {
			continue
		}
		args = append(args, info)
	}
	return args, nil
}

// GenericArguments resolves t's own closed generic type arguments from
// the Il2CppGenericClass* captured in t.ElementTypeAddress at ResolveClass time.
func (b *Backend) GenericArguments(t *model.ManagedType) ([]model.TypeInfo, error) {
	if t.ElementTypeAddress == 0 {
		return nil, nil
	}
	return b.genericArgs(t.ElementTypeAddress)
}

// ClassOfInstance recovers the class pointer stored as an IL2CPP
// object's leading word directly — unlike Mono, there is no vtable
// indirection: an Il2CppObject's klass field IS the class pointer.
func (b *Backend) ClassOfInstance(instanceAddr uint64) (*model.ManagedType, error) {
	classAddr, err := b.reader.ReadPtr(instanceAddr)
	if err != nil {
		return nil, merrors.Newf(merrors.KindReadError, "il2cpp: reading instance class pointer: %v", err)
	}
	return b.ResolveClass(classAddr)
}

// FindRootInstance scans every heap region at 8-byte stride for an
// address A where read_ptr(A) == rootClass's own address and
// read_ptr(A+16) != that address — the second check rejects
// Il2CppFieldInfo records, which repeat the class pointer as their
// "parent" field at the same relative position a live instance would
// hold unrelated data.
func (b *Backend) FindRootInstance(rootClass *model.ManagedType) (uint64, error) {
	scanner := b.reader.Handle()
	regions, err := scanner.HeapRegions()
	if err != nil {
		return 0, fmt.Errorf("il2cpp: listing heap regions: %w", err)
	}

	target := rootClass.RuntimeAddress
	const chunkSize = 1 << 20
	buf := make([]byte, chunkSize)
	for ri, region := range regions {
		for off := uint64(0); off < region.Size; off += chunkSize {
			n := chunkSize
			remaining := region.Size - off
			if uint64(n) > remaining {
				n = int(remaining)
			}
			if n < 24 {
				continue
			}
			got, err := scanner.Read(region.Base+off, buf[:n])
			if err != nil || got < 24 {
				continue
			}
			chunk := buf[:got]
			for i := 0; i+8 <= len(chunk); i += 8 {
				if b.reader.Order().Uint64(chunk[i:i+8]) != target {
					continue
				}
				b.heapScanCandidates++
				candidate := region.Base + off + uint64(i)
				// Re-read A+16 live rather than trust chunk[i+16:i+24]: a
				// candidate near the tail of a chunkSize read must not
				// skip the FieldInfo disambiguation just because the next
				// word fell past this chunk's boundary.
				if parent, err := b.reader.ReadPtr(candidate + 16); err == nil && parent == target {
					continue
				}
				return candidate, nil
			}
		}
		telemetry.HeapScanProgress(b.log, ri+1, len(regions), b.heapScanCandidates)
	}
	return 0, merrors.Newf(merrors.KindInstanceNotFound, "il2cpp: no live instance of %s found on heap", rootClass.FullName())
}
