package backend

import (
	"encoding/binary"
	"testing"

	"github.com/kestrelre/manascope/model"
	"github.com/kestrelre/manascope/offsets"
	"github.com/kestrelre/manascope/procmem"
)

func TestLocateMono(t *testing.T) {
	const moduleBase = uint64(0x400000)
	const trampAddr = moduleBase + 0x100
	const rootDomainPtrSlot = moduleBase + 0x2000
	const rootDomainAddr = uint64(0x7f0000000000)

	img := procmem.NewFakeImage(moduleBase, 0x4000)
	img.Segments[offsets.MonoLibraryName] = []procmem.Segment{{Base: moduleBase, Size: 0x4000}}

	// mov rax, [rip+disp]; test rax, rax
	// disp is relative to the byte after this 7-byte instruction.
	instrEnd := trampAddr + 7
	disp := int32(int64(rootDomainPtrSlot) - int64(instrEnd))
	code := []byte{0x48, 0x8B, 0x05, 0, 0, 0, 0, 0x48, 0x85, 0xC0}
	binary.LittleEndian.PutUint32(code[3:], uint32(disp))
	img.Write(trampAddr, code)

	ptrBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(ptrBuf, rootDomainAddr)
	img.Write(rootDomainPtrSlot, ptrBuf)

	fake := procmem.NewFake()
	fake.Memory[1] = img
	fake.Processes = []procmem.ProcessInfo{{PID: 1, Name: "game"}}

	handle, err := fake.Open(1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	loc := &RuntimeLocator{Handle: handle}
	anchors, err := loc.Locate()
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if anchors.Kind != model.KindMono {
		t.Fatalf("Kind = %v, want Mono", anchors.Kind)
	}
	if anchors.MonoRootDomain != rootDomainAddr {
		t.Fatalf("MonoRootDomain = %#x, want %#x", anchors.MonoRootDomain, rootDomainAddr)
	}
}

func TestLocateIl2cpp(t *testing.T) {
	const moduleBase = uint64(0x500000)

	const metadataBase = moduleBase + 0x40000

	img := procmem.NewFakeImage(moduleBase, 0x50000)
	// The type-info table and metadata pointer live in the module's
	// second writable data segment; the first is a filler here to
	// exercise that segs[1] (not segs[0]) is the one read.
	img.Segments["GameAssembly.so"] = []procmem.Segment{
		{Base: moduleBase - 0x1000, Size: 0x1000},
		{Base: moduleBase, Size: 0x30000},
	}
	img.Write(moduleBase+0x24360, []byte{0xAF, 0x1B, 0xB1, 0xFA})

	metadataPtr := make([]byte, 8)
	binary.LittleEndian.PutUint64(metadataPtr, metadataBase)
	img.Write(moduleBase+0x24340, metadataPtr)
	img.Write(metadataBase, []byte{0xAF, 0x1B, 0xB1, 0xFA})

	fake := procmem.NewFake()
	fake.Memory[2] = img
	fake.Processes = []procmem.ProcessInfo{{PID: 2, Name: "game"}}

	handle, err := fake.Open(2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	loc := &RuntimeLocator{Handle: handle}
	anchors, err := loc.Locate()
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if anchors.Kind != model.KindIl2cpp {
		t.Fatalf("Kind = %v, want Il2cpp", anchors.Kind)
	}
	if anchors.Il2cppTypeInfoTable != moduleBase+0x24360 {
		t.Fatalf("Il2cppTypeInfoTable = %#x, want %#x", anchors.Il2cppTypeInfoTable, moduleBase+0x24360)
	}
	if anchors.Il2cppMetadataBase != metadataBase {
		t.Fatalf("Il2cppMetadataBase = %#x, want %#x", anchors.Il2cppMetadataBase, metadataBase)
	}
}
