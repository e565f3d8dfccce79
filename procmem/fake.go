package procmem

import "sort"

// Fake is an in-memory ProcessMemory used by tests. It models one
// process's address space as a
// flat byte slice with a base address, plus a table of named module
// segments carved out of that space.
type Fake struct {
	Processes []ProcessInfo
	Privilege bool

	// Memory maps a process id to its address-space image.
	Memory map[uint32]*FakeImage
}

// FakeImage is one process's simulated address space.
type FakeImage struct {
	Base     uint64
	Bytes    []byte
	Segments map[string][]Segment
	// Heap lists the regions HeapRegions reports, set directly by tests
	// that exercise a heap scan.
	Heap []Segment
}

// NewFakeImage creates an image of size n starting at base, zero-filled.
func NewFakeImage(base uint64, n int) *FakeImage {
	return &FakeImage{Base: base, Bytes: make([]byte, n), Segments: map[string][]Segment{}}
}

// Write copies data into the image at addr, extending the backing slice
// if needed.
func (img *FakeImage) Write(addr uint64, data []byte) {
	off := addr - img.Base
	need := off + uint64(len(data))
	if need > uint64(len(img.Bytes)) {
		grown := make([]byte, need)
		copy(grown, img.Bytes)
		img.Bytes = grown
	}
	copy(img.Bytes[off:], data)
}

func (img *FakeImage) read(addr uint64, buf []byte) (int, error) {
	if addr < img.Base || addr-img.Base >= uint64(len(img.Bytes)) {
		return 0, &ErrModuleNotFound{Module: "out of range"}
	}
	off := addr - img.Base
	n := copy(buf, img.Bytes[off:])
	return n, nil
}

func NewFake() *Fake {
	return &Fake{Privilege: true, Memory: map[uint32]*FakeImage{}}
}

func (f *Fake) Open(pid uint32) (Handle, error) {
	img, ok := f.Memory[pid]
	if !ok {
		return nil, &ErrModuleNotFound{Module: "pid not registered"}
	}
	return &fakeHandle{fake: f, img: img}, nil
}

func (f *Fake) ListProcesses() ([]ProcessInfo, error) {
	out := make([]ProcessInfo, len(f.Processes))
	copy(out, f.Processes)
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

func (f *Fake) IsPrivileged() bool { return f.Privilege }

type fakeHandle struct {
	fake *Fake
	img  *FakeImage
}

func (h *fakeHandle) Read(addr uint64, buf []byte) (int, error) {
	return h.img.read(addr, buf)
}

func (h *fakeHandle) ModuleDataSegments(moduleName string) ([]Segment, error) {
	segs, ok := h.img.Segments[moduleName]
	if !ok {
		return nil, &ErrModuleNotFound{Module: moduleName}
	}
	return segs, nil
}

func (h *fakeHandle) ModuleBase(moduleName string) (uint64, error) {
	segs, ok := h.img.Segments[moduleName]
	if !ok || len(segs) == 0 {
		return 0, &ErrModuleNotFound{Module: moduleName}
	}
	return segs[0].Base, nil
}

func (h *fakeHandle) HeapRegions() ([]Segment, error) {
	return h.img.Heap, nil
}

func (h *fakeHandle) Close() error { return nil }
