package pathresolver

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/kestrelre/manascope/memio"
	"github.com/kestrelre/manascope/model"
	"github.com/kestrelre/manascope/procmem"
	"github.com/kestrelre/manascope/value"
)

type classKey struct{ namespace, name string }

type fakeBackend struct {
	classes         map[uint64]*model.ManagedType
	byName          map[classKey]*model.ManagedType
	fieldsOf        map[uint64][]model.FieldDescriptor
	instanceClasses map[uint64]*model.ManagedType
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		classes:         map[uint64]*model.ManagedType{},
		byName:          map[classKey]*model.ManagedType{},
		fieldsOf:        map[uint64][]model.FieldDescriptor{},
		instanceClasses: map[uint64]*model.ManagedType{},
	}
}

func (f *fakeBackend) Kind() model.Kind                                  { return model.KindMono }
func (f *fakeBackend) EnumerateAssemblies() ([]model.AssemblyRef, error) { return nil, nil }
func (f *fakeBackend) EnumerateClasses(uint64) ([]uint64, error)         { return nil, nil }

func (f *fakeBackend) ResolveClass(addr uint64) (*model.ManagedType, error) {
	if t, ok := f.classes[addr]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("fakeBackend: class 0x%x not registered", addr)
}

func (f *fakeBackend) ResolveClassByName(_ uint64, namespace, name string) (*model.ManagedType, error) {
	if t, ok := f.byName[classKey{namespace, name}]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("fakeBackend: class %s.%s not registered", namespace, name)
}

func (f *fakeBackend) Fields(t *model.ManagedType) ([]model.FieldDescriptor, error) {
	return f.fieldsOf[t.RuntimeAddress], nil
}

func (f *fakeBackend) ClassOfInstance(addr uint64) (*model.ManagedType, error) {
	if t, ok := f.instanceClasses[addr]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("fakeBackend: no instance registered at 0x%x", addr)
}

func (f *fakeBackend) FindRootInstance(*model.ManagedType) (uint64, error) {
	return 0, fmt.Errorf("fakeBackend: FindRootInstance not supported")
}

func (f *fakeBackend) GenericArguments(*model.ManagedType) ([]model.TypeInfo, error) { return nil, nil }

func (f *fakeBackend) ReadTypeInfo(addr uint64) (model.TypeInfo, error) {
	return model.TypeInfo{}, fmt.Errorf("fakeBackend: no type info at 0x%x", addr)
}

func putI32(img *procmem.FakeImage, addr uint64, v int32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	img.Write(addr, b)
}

func putU32(img *procmem.FakeImage, addr uint64, v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	img.Write(addr, b)
}

func putPtr(img *procmem.FakeImage, addr uint64, v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	img.Write(addr, b)
}

// buildFixture wires a GameManager singleton (static Instance backing
// field) with a Gold int and a Player pointer to a PlayerState instance
// carrying a managed-string Name field, mirroring the singleton +
// nested-object shape spec.md §4.6 describes.
func buildFixture(t *testing.T) (*Resolver, *procmem.FakeImage) {
	t.Helper()
	fake := procmem.NewFake()
	img := procmem.NewFakeImage(0x100000, 0x4000)
	fake.Memory[1] = img
	handle, err := fake.Open(1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	reader := memio.New(handle, memio.Width64)
	base := img.Base

	gameManagerClassAddr := base + 0x10
	gameManagerStaticAddr := base + 0x20
	instanceAddr := base + 0x100
	playerStateClassAddr := base + 0x200
	playerAddr := base + 0x300
	nameStrAddr := base + 0x400

	be := newFakeBackend()
	gameManagerClass := &model.ManagedType{
		RuntimeAddress:       gameManagerClassAddr,
		Name:                 "GameManager",
		Namespace:            "Game",
		StaticStorageAddress: gameManagerStaticAddr,
	}
	playerStateClass := &model.ManagedType{
		RuntimeAddress: playerStateClassAddr,
		Name:           "PlayerState",
		Namespace:      "Game",
	}
	be.classes[gameManagerClassAddr] = gameManagerClass
	be.classes[playerStateClassAddr] = playerStateClass
	be.byName[classKey{"Game", "GameManager"}] = gameManagerClass
	be.instanceClasses[instanceAddr] = gameManagerClass
	be.instanceClasses[playerAddr] = playerStateClass

	be.fieldsOf[gameManagerClassAddr] = []model.FieldDescriptor{
		{Name: instanceBackingField, TypeCode: model.TypeClass, IsStatic: true, Offset: 0},
		{Name: "Gold", TypeCode: model.TypeI4, Offset: 0x10},
		{Name: "Player", TypeCode: model.TypeClass, Offset: 0x18},
	}
	be.fieldsOf[playerStateClassAddr] = []model.FieldDescriptor{
		{Name: "Name", TypeCode: model.TypeString, Offset: 0x10},
	}

	putPtr(img, gameManagerStaticAddr+0, instanceAddr)
	putI32(img, instanceAddr+0x10, 555)
	putPtr(img, instanceAddr+0x18, playerAddr)

	units := []uint16{'A', 'n', 'a'}
	putU32(img, nameStrAddr+16, uint32(len(units)))
	raw := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(raw[i*2:], u)
	}
	img.Write(nameStrAddr+20, raw)
	putPtr(img, playerAddr+0x10, nameStrAddr)

	dec := value.New(reader, be)
	return New(be, reader, dec), img
}

func TestResolveDirectField(t *testing.T) {
	r, _ := buildFixture(t)
	v, err := r.Resolve(0, "Game", "GameManager", []string{"Gold"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.Kind != model.ValueInt32 || v.Int32 != 555 {
		t.Fatalf("got %+v", v)
	}
}

func TestResolveNestedField(t *testing.T) {
	r, _ := buildFixture(t)
	v, err := r.Resolve(0, "Game", "GameManager", []string{"Player", "Name"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.Kind != model.ValueString || v.Str != "Ana" {
		t.Fatalf("got %+v", v)
	}
}

func TestResolveMissingSegment(t *testing.T) {
	r, _ := buildFixture(t)
	_, err := r.Resolve(0, "Game", "GameManager", []string{"NoSuchField"})
	if err == nil {
		t.Fatalf("expected error for missing segment")
	}
}

func TestResolveTerminalObject(t *testing.T) {
	r, _ := buildFixture(t)
	v, err := r.Resolve(0, "Game", "GameManager", []string{"Player"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.Kind != model.ValueObject || v.Object == nil {
		t.Fatalf("got %+v", v)
	}
	if v.Object.ClassName != "PlayerState" || len(v.Object.Fields) != 1 {
		t.Fatalf("object = %+v", v.Object)
	}
	if v.Object.Fields[0].Value.Str != "Ana" {
		t.Fatalf("nested field = %+v", v.Object.Fields[0])
	}
}
