package il2cpp

import (
	"encoding/binary"
	"testing"

	"github.com/kestrelre/manascope/memio"
	"github.com/kestrelre/manascope/offsets"
	"github.com/kestrelre/manascope/procmem"
)

type layout struct {
	img           *procmem.FakeImage
	table         offsets.Table
	metadataBase  uint64
	typeInfoTable uint64
	class         uint64
}

func buildIl2cppLayout(t *testing.T) *layout {
	t.Helper()
	const base = uint64(0x20_0000)
	img := procmem.NewFakeImage(base, 0x10000)
	table, ok := offsets.Il2cpp.ForVersion("2021")
	if !ok {
		t.Fatal("missing 2021 il2cpp offsets")
	}

	l := &layout{
		img:           img,
		table:         table,
		metadataBase:  base + 0x100,
		typeInfoTable: base + 0x2000,
		class:         base + 0x3000,
	}

	putPtr := func(addr uint64, v uint64) {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		img.Write(addr, b)
	}
	putU32 := func(addr uint64, v uint32) {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		img.Write(addr, b)
	}
	putI32 := func(addr uint64, v int32) { putU32(addr, uint32(v)) }
	putStr := func(addr uint64, s string) {
		img.Write(addr, append([]byte(s), 0))
	}

	stringsBase := base + 0x4000
	imagesBase := base + 0x5000
	typeDefsBase := base + 0x5200

	putStr(stringsBase, "Assembly-CSharp.dll")
	// "PlayerState" and "Game.Model" share the same string table as the
	// assembly name, at the offsets the type-definition record below
	// points at.
	const (
		playerStateNameIndex = 21 // len("Assembly-CSharp.dll\x00")
		gameModelNsIndex     = 33 // playerStateNameIndex + len("PlayerState\x00")
	)
	putStr(stringsBase+playerStateNameIndex, "PlayerState")
	putStr(stringsBase+gameModelNsIndex, "Game.Model")

	// image record: name_index=0, type_start=0, type_count=1.
	putI32(imagesBase+0, 0)
	putI32(imagesBase+8, 0)
	putU32(imagesBase+12, 1)

	// type-definition record 0: PlayerState/Game.Model, matching l.class.
	putI32(typeDefsBase+0, playerStateNameIndex)
	putI32(typeDefsBase+4, gameModelNsIndex)

	header := make([]byte, 256)
	binary.LittleEndian.PutUint32(header[0:4], offsets.Il2cppMetadataMagic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(offsets.Il2cppMetadataVersion))
	writePair := func(index int, off, size uint32) {
		at := 8 + index*8
		binary.LittleEndian.PutUint32(header[at:at+4], off)
		binary.LittleEndian.PutUint32(header[at+4:at+8], size)
	}
	writePair(2, uint32(stringsBase-l.metadataBase), 48)
	writePair(19, uint32(typeDefsBase-l.metadataBase), 88)
	writePair(20, uint32(imagesBase-l.metadataBase), 40)
	img.Write(l.metadataBase, header)

	putPtr(l.typeInfoTable, l.class)

	classNameAddr := base + 0x6000
	classNamespaceAddr := base + 0x6020
	putStr(classNameAddr, "PlayerState")
	putStr(classNamespaceAddr, "Game.Model")
	putPtr(l.class+uint64(table[offsets.Il2cppClassName]), classNameAddr)
	putPtr(l.class+uint64(table[offsets.Il2cppClassNamespace]), classNamespaceAddr)
	putU32(l.class+uint64(table[offsets.Il2cppClassFlags]), 0)
	putI32(l.class+uint64(table[offsets.Il2cppClassFieldCount]), 2)
	putI32(l.class+uint64(table[offsets.Il2cppClassInstanceSize]), 16)

	field0 := base + 0x7000
	field1 := field0 + uint64(table[offsets.Il2cppFieldStride])
	putPtr(l.class+uint64(table[offsets.Il2cppClassFields]), field0)

	field0NameAddr := base + 0x7100
	putStr(field0NameAddr, "Gold")
	type0 := base + 0x7200
	putPtr(field0+uint64(table[offsets.Il2cppFieldType]), type0)
	putPtr(field0+uint64(table[offsets.Il2cppFieldName]), field0NameAddr)
	putI32(field0+uint64(table[offsets.Il2cppFieldOffset]), 0x10)
	putPtr(type0+uint64(table[offsets.Il2cppTypeData]), 0)
	putU32(type0+uint64(table[offsets.Il2cppTypeAttrs]), 0x09<<16) // System.UInt32, no static/const

	field1NameAddr := base + 0x7140
	putStr(field1NameAddr, "<IsAlive>k__BackingField")
	type1 := base + 0x7210
	putPtr(field1+uint64(table[offsets.Il2cppFieldType]), type1)
	putPtr(field1+uint64(table[offsets.Il2cppFieldName]), field1NameAddr)
	putI32(field1+uint64(table[offsets.Il2cppFieldOffset]), 0x14)
	putPtr(type1+uint64(table[offsets.Il2cppTypeData]), 0)
	putU32(type1+uint64(table[offsets.Il2cppTypeAttrs]), 0x02<<16|0x10) // System.Boolean, static

	return l
}

func newHandle(t *testing.T, img *procmem.FakeImage) *procmem.Fake {
	t.Helper()
	fake := procmem.NewFake()
	fake.Memory[1] = img
	return fake
}

func newBackend(t *testing.T, l *layout) *Backend {
	t.Helper()
	fake := newHandle(t, l.img)
	handle, err := fake.Open(1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	reader := memio.New(handle, memio.Width64)
	be, err := New(reader, l.table, l.typeInfoTable, l.metadataBase)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return be
}

func TestEnumerateAssembliesAndClasses(t *testing.T) {
	l := buildIl2cppLayout(t)
	be := newBackend(t, l)

	asms, err := be.EnumerateAssemblies()
	if err != nil {
		t.Fatalf("EnumerateAssemblies: %v", err)
	}
	if len(asms) != 1 || asms[0].Name != "Assembly-CSharp.dll" {
		t.Fatalf("assemblies = %+v", asms)
	}

	classes, err := be.EnumerateClasses(asms[0].ImageAddress)
	if err != nil {
		t.Fatalf("EnumerateClasses: %v", err)
	}
	if len(classes) != 1 || classes[0] != l.class {
		t.Fatalf("classes = %+v", classes)
	}
}

func TestResolveClassAndFields(t *testing.T) {
	l := buildIl2cppLayout(t)
	be := newBackend(t, l)

	cls, err := be.ResolveClass(l.class)
	if err != nil {
		t.Fatalf("ResolveClass: %v", err)
	}
	if cls.FullName() != "Game.Model.PlayerState" {
		t.Fatalf("FullName = %q", cls.FullName())
	}
	if cls.FieldCount != 2 || cls.Opaque {
		t.Fatalf("FieldCount/Opaque = %d/%v", cls.FieldCount, cls.Opaque)
	}

	fields, err := be.Fields(cls)
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("len(fields) = %d, want 2", len(fields))
	}
	if fields[0].Name != "Gold" || fields[0].TypeName != "System.UInt32" || fields[0].IsStatic {
		t.Fatalf("field0 = %+v", fields[0])
	}
	if fields[1].Name != "<IsAlive>k__BackingField" || fields[1].TypeName != "System.Boolean" || !fields[1].IsStatic {
		t.Fatalf("field1 = %+v", fields[1])
	}
}

func TestResolveClassByName(t *testing.T) {
	l := buildIl2cppLayout(t)
	be := newBackend(t, l)

	cls, err := be.ResolveClassByName(0, "Game.Model", "PlayerState")
	if err != nil {
		t.Fatalf("ResolveClassByName: %v", err)
	}
	if cls.RuntimeAddress != l.class {
		t.Fatalf("RuntimeAddress = %#x, want %#x", cls.RuntimeAddress, l.class)
	}

	if _, err := be.ResolveClassByName(0, "Game.Model", "NoSuchClass"); err == nil {
		t.Fatalf("ResolveClassByName: expected error for unknown class")
	}
}

func TestClassOfInstance(t *testing.T) {
	l := buildIl2cppLayout(t)
	be := newBackend(t, l)

	instance := l.img.Base + 0x8000
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, l.class)
	l.img.Write(instance, b)

	cls, err := be.ClassOfInstance(instance)
	if err != nil {
		t.Fatalf("ClassOfInstance: %v", err)
	}
	if cls.RuntimeAddress != l.class {
		t.Fatalf("RuntimeAddress = %#x, want %#x", cls.RuntimeAddress, l.class)
	}
}

// buildGenericLayout writes a closed Dictionary<uint,int>-shaped class:
// an open generic Il2CppClass, an Il2CppGenericClass tying it to a
// two-argument Il2CppGenericInst, and a closed class whose
// class_generic_class field points at that Il2CppGenericClass.
func buildGenericLayout(t *testing.T, l *layout) (dictClass uint64) {
	t.Helper()
	img := l.img
	table := l.table
	base := img.Base

	putPtr := func(addr uint64, v uint64) {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		img.Write(addr, b)
	}
	putU32 := func(addr uint64, v uint32) {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		img.Write(addr, b)
	}
	putI32 := func(addr uint64, v int32) { putU32(addr, uint32(v)) }
	putStr := func(addr uint64, s string) {
		img.Write(addr, append([]byte(s), 0))
	}

	openClass := base + 0xC000
	genericClass := base + 0xC100
	context := base + 0xC200
	classInst := base + 0xC300
	argType0 := base + 0xC400
	argType1 := base + 0xC410
	nameAddr := base + 0xC500
	namespaceAddr := base + 0xC520

	putStr(nameAddr, "Dictionary`2")
	putStr(namespaceAddr, "System.Collections.Generic")
	putPtr(openClass+uint64(table[offsets.Il2cppClassName]), nameAddr)
	putPtr(openClass+uint64(table[offsets.Il2cppClassNamespace]), namespaceAddr)
	putU32(openClass+uint64(table[offsets.Il2cppClassFlags]), 0)
	putI32(openClass+uint64(table[offsets.Il2cppClassFieldCount]), 0)

	putPtr(genericClass, openClass)
	putPtr(genericClass+uint64(table[offsets.Il2cppGenericClassContext]), context)
	putPtr(context, classInst)
	putU32(classInst+uint64(table[offsets.Il2cppGenericInstArgc]), 2)
	putPtr(classInst+uint64(table[offsets.Il2cppGenericInstArgv]), base+0xC420)
	putPtr(base+0xC420, argType0)
	putPtr(base+0xC420+8, argType1)
	putPtr(argType0+uint64(table[offsets.Il2cppTypeData]), 0)
	putU32(argType0+uint64(table[offsets.Il2cppTypeAttrs]), 0x09<<16) // System.UInt32
	putPtr(argType1+uint64(table[offsets.Il2cppTypeData]), 0)
	putU32(argType1+uint64(table[offsets.Il2cppTypeAttrs]), 0x08<<16) // System.Int32

	dictClass = base + 0xC600
	dictNameAddr := base + 0xC700
	dictNamespaceAddr := base + 0xC720
	putStr(dictNameAddr, "Dictionary`2")
	putStr(dictNamespaceAddr, "System.Collections.Generic")
	putPtr(dictClass+uint64(table[offsets.Il2cppClassName]), dictNameAddr)
	putPtr(dictClass+uint64(table[offsets.Il2cppClassNamespace]), dictNamespaceAddr)
	putU32(dictClass+uint64(table[offsets.Il2cppClassFlags]), 0)
	putI32(dictClass+uint64(table[offsets.Il2cppClassFieldCount]), 0)
	putPtr(dictClass+uint64(table[offsets.Il2cppClassGenericClass]), genericClass)

	return dictClass
}

func TestGenericArguments(t *testing.T) {
	l := buildIl2cppLayout(t)
	dictClass := buildGenericLayout(t, l)
	be := newBackend(t, l)

	cls, err := be.ResolveClass(dictClass)
	if err != nil {
		t.Fatalf("ResolveClass: %v", err)
	}
	if cls.ElementTypeAddress == 0 {
		t.Fatalf("ElementTypeAddress not populated for closed generic")
	}

	args, err := be.GenericArguments(cls)
	if err != nil {
		t.Fatalf("GenericArguments: %v", err)
	}
	if len(args) != 2 {
		t.Fatalf("len(args) = %d, want 2", len(args))
	}
	if args[0].Code.CLRName() != "System.UInt32" || args[1].Code.CLRName() != "System.Int32" {
		t.Fatalf("args = %+v", args)
	}
}

func TestFindRootInstance(t *testing.T) {
	l := buildIl2cppLayout(t)
	cls, err := newBackend(t, l).ResolveClass(l.class)
	if err != nil {
		t.Fatalf("ResolveClass: %v", err)
	}
	be := newBackend(t, l)

	heapBase := l.img.Base + 0x9000
	l.img.Heap = []procmem.Segment{{Base: heapBase, Size: 0x1000}}

	// A FieldInfo-shaped decoy: class pointer repeats at +16 too, and
	// must be skipped.
	decoy := heapBase + 0x40
	writePtr := func(addr, v uint64) {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		l.img.Write(addr, b)
	}
	writePtr(decoy, l.class)
	writePtr(decoy+16, l.class)

	instance := heapBase + 0x100
	writePtr(instance, l.class)
	writePtr(instance+16, 0)

	got, err := be.FindRootInstance(cls)
	if err != nil {
		t.Fatalf("FindRootInstance: %v", err)
	}
	if got != instance {
		t.Fatalf("FindRootInstance = %#x, want %#x", got, instance)
	}
}
