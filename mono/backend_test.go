package mono

import (
	"encoding/binary"
	"testing"

	"github.com/kestrelre/manascope/memio"
	"github.com/kestrelre/manascope/offsets"
	"github.com/kestrelre/manascope/procmem"
)

// layout builds a minimal but structurally faithful Mono heap: one
// root domain with one referenced assembly, one image with a one-slot
// class cache holding one class with two fields.
type layout struct {
	img       *procmem.FakeImage
	table     offsets.Table
	domain    uint64
	assembly  uint64
	image     uint64
	class     uint64
	field0    uint64
	field1    uint64
	typeInfo0 uint64
	typeInfo1 uint64
}

func buildMonoLayout(t *testing.T) *layout {
	t.Helper()
	const base = uint64(0x10_0000)
	img := procmem.NewFakeImage(base, 0x10000)
	table, ok := offsets.Mono.ForVersion("2021")
	if !ok {
		t.Fatal("missing 2021 mono offsets")
	}

	l := &layout{
		img:       img,
		table:     table,
		domain:    base + 0x100,
		assembly:  base + 0x200,
		image:     base + 0x300,
		class:     base + 0x400,
		field0:    base + 0x540,
		field1:    base + 0x560,
		typeInfo0: base + 0x600,
		typeInfo1: base + 0x610,
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
	putStr := func(addr uint64, s string) {
		img.Write(addr, append([]byte(s), 0))
	}

	// GSList head: domain.referenced_assemblies -> node -> {assembly, next=0}
	node := base + 0x700
	putPtr(l.domain+uint64(table[offsets.MonoReferencedAssemblies]), node)
	putPtr(node, l.assembly)
	putPtr(node+8, 0)

	nameAddr := base + 0x800
	putStr(nameAddr, "Assembly-CSharp")
	putPtr(l.assembly+8*2, nameAddr) // name ptr at assembly+ptrSize*2
	putPtr(l.assembly+uint64(table[offsets.MonoAssemblyImage]), l.image)

	// class cache: 1-slot hash table pointing at l.class, next_class_cache=0
	cacheBase := l.image + uint64(table[offsets.MonoImageClassCache])
	hashTable := base + 0x900
	putU32(cacheBase+uint64(table[offsets.MonoHashTableSize]), 1)
	putPtr(cacheBase+uint64(table[offsets.MonoHashTableTable]), hashTable)
	putPtr(hashTable, l.class)
	putPtr(l.class+uint64(table[offsets.MonoTypeDefNextClassCache]), 0)

	// class definition
	classNameAddr := base + 0xA00
	classNamespaceAddr := base + 0xA20
	putStr(classNameAddr, "PlayerState")
	putStr(classNamespaceAddr, "Game.Model")
	putPtr(l.class+uint64(table[offsets.MonoTypeDefName]), classNameAddr)
	putPtr(l.class+uint64(table[offsets.MonoTypeDefNamespace]), classNamespaceAddr)
	putU32(l.class+uint64(table[offsets.MonoTypeDefBitFields]), 0)
	putU32(l.class+uint64(table[offsets.MonoTypeDefFieldCount]), 2)
	putU32(l.class+uint64(table[offsets.MonoTypeDefSize]), 16)
	putPtr(l.class+uint64(table[offsets.MonoTypeDefFields]), l.field0)

	// field 0: System.Int32 "Gold" at offset 0x10
	field0NameAddr := base + 0xB00
	putStr(field0NameAddr, "Gold")
	putPtr(l.field0, l.typeInfo0) // type_ptr @ field+0
	putPtr(l.field0+8, field0NameAddr)
	putU32(l.field0+8*3, 0x10)
	putPtr(l.typeInfo0, 0)                                             // data
	putU32(l.typeInfo0+8, uint32(0x08)<<16)                            // type code I4, no static/const

	// field 1: static System.Boolean "<IsAlive>k__BackingField" at offset 0x14
	field1NameAddr := base + 0xB40
	putStr(field1NameAddr, "<IsAlive>k__BackingField")
	putPtr(l.field1, l.typeInfo1)
	putPtr(l.field1+8, field1NameAddr)
	putU32(l.field1+8*3, 0x14)
	putPtr(l.typeInfo1, 0)
	putU32(l.typeInfo1+8, uint32(0x02)<<16|0x10) // type code BOOLEAN, static bit set

	return l
}

func newHandle(t *testing.T, img *procmem.FakeImage) *procmem.Fake {
	t.Helper()
	fake := procmem.NewFake()
	fake.Memory[1] = img
	return fake
}

func TestEnumerateAssembliesAndClasses(t *testing.T) {
	l := buildMonoLayout(t)
	fake := newHandle(t, l.img)
	handle, err := fake.Open(1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	reader := memio.New(handle, memio.Width64)
	be := New(reader, l.table, l.domain)

	asms, err := be.EnumerateAssemblies()
	if err != nil {
		t.Fatalf("EnumerateAssemblies: %v", err)
	}
	if len(asms) != 1 || asms[0].Name != "Assembly-CSharp" {
		t.Fatalf("assemblies = %+v", asms)
	}
	if asms[0].ImageAddress != l.image {
		t.Fatalf("image addr = %#x, want %#x", asms[0].ImageAddress, l.image)
	}

	classes, err := be.EnumerateClasses(l.image)
	if err != nil {
		t.Fatalf("EnumerateClasses: %v", err)
	}
	if len(classes) != 1 || classes[0] != l.class {
		t.Fatalf("classes = %+v", classes)
	}
}

func TestResolveClassAndFields(t *testing.T) {
	l := buildMonoLayout(t)
	fake := newHandle(t, l.img)
	handle, err := fake.Open(1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	reader := memio.New(handle, memio.Width64)
	be := New(reader, l.table, l.domain)

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
	if fields[0].Name != "Gold" || fields[0].TypeName != "System.Int32" || fields[0].IsStatic {
		t.Fatalf("field0 = %+v", fields[0])
	}
	if fields[1].Name != "<IsAlive>k__BackingField" || fields[1].TypeName != "System.Boolean" || !fields[1].IsStatic {
		t.Fatalf("field1 = %+v", fields[1])
	}
}

// buildGenericLayout extends the base layout with a closed
// Dictionary<uint,int>-shaped class: an open generic MonoClass, a
// generic_container with argc=2, a MonoGenericInst with two argument
// type-info pointers, and a MonoGenericClass tying them together.
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
	putStr := func(addr uint64, s string) {
		img.Write(addr, append([]byte(s), 0))
	}

	openClass := base + 0x2000
	container := base + 0x2100
	inst := base + 0x2200
	genericClass := base + 0x2300
	argType0 := base + 0x2400
	argType1 := base + 0x2410
	byValArg := base + 0x2500
	nameAddr := base + 0x2600
	namespaceAddr := base + 0x2620

	putStr(nameAddr, "Dictionary`2")
	putStr(namespaceAddr, "System.Collections.Generic")
	putPtr(openClass+uint64(table[offsets.MonoTypeDefName]), nameAddr)
	putPtr(openClass+uint64(table[offsets.MonoTypeDefNamespace]), namespaceAddr)
	putU32(openClass+uint64(table[offsets.MonoTypeDefBitFields]), 0)
	putU32(openClass+uint64(table[offsets.MonoTypeDefFieldCount]), 0)
	putPtr(openClass+uint64(table[offsets.MonoTypeDefGenericContainer]), container)

	putU32(container+4*8, 2) // argc

	putPtr(inst+0x8, argType0)
	putPtr(inst+0x8+8, argType1)

	putPtr(argType0, 0)
	putU32(argType0+8, uint32(0x09)<<16) // System.UInt32
	putPtr(argType1, 0)
	putU32(argType1+8, uint32(0x08)<<16) // System.Int32

	putPtr(genericClass, openClass)
	putPtr(genericClass+8, inst)

	putPtr(byValArg, genericClass)
	putU32(byValArg+8, uint32(0x15)<<16) // GENERICINST

	dictClass = base + 0x2700
	dictNameAddr := base + 0x2800
	dictNamespaceAddr := base + 0x2820
	putStr(dictNameAddr, "Dictionary`2")
	putStr(dictNamespaceAddr, "System.Collections.Generic")
	putPtr(dictClass+uint64(table[offsets.MonoTypeDefName]), dictNameAddr)
	putPtr(dictClass+uint64(table[offsets.MonoTypeDefNamespace]), dictNamespaceAddr)
	putU32(dictClass+uint64(table[offsets.MonoTypeDefBitFields]), 0)
	putU32(dictClass+uint64(table[offsets.MonoTypeDefFieldCount]), 0)
	// dictClass's own by-val-arg is a GENERICINST pointing at genericClass,
	// but genericClass's first word must point back at an *open* MonoClass
	// distinct from dictClass to keep ResolveClass's cache well-formed.
	putPtr(dictClass+uint64(table[offsets.MonoTypeDefByValArg]), byValArg)

	return dictClass
}

func TestGenericArguments(t *testing.T) {
	l := buildMonoLayout(t)
	dictClass := buildGenericLayout(t, l)
	fake := newHandle(t, l.img)
	handle, err := fake.Open(1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	reader := memio.New(handle, memio.Width64)
	be := New(reader, l.table, l.domain)

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

func TestClassOfInstance(t *testing.T) {
	l := buildMonoLayout(t)
	fake := newHandle(t, l.img)
	handle, err := fake.Open(1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	reader := memio.New(handle, memio.Width64)
	be := New(reader, l.table, l.domain)

	vtable := uint64(0x10_9000)
	instance := uint64(0x10_9100)
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, l.class)
	l.img.Write(vtable, b)
	binary.LittleEndian.PutUint64(b, vtable)
	l.img.Write(instance, b)

	cls, err := be.ClassOfInstance(instance)
	if err != nil {
		t.Fatalf("ClassOfInstance: %v", err)
	}
	if cls.RuntimeAddress != l.class {
		t.Fatalf("RuntimeAddress = %#x, want %#x", cls.RuntimeAddress, l.class)
	}
}
