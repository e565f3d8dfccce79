package memio

import (
	"testing"

	"github.com/kestrelre/manascope/procmem"
)

func newTestReader(t *testing.T) (*Reader, *procmem.FakeImage) {
	t.Helper()
	img := procmem.NewFakeImage(0x10000, 4096)
	fake := procmem.NewFake()
	fake.Memory[1] = img
	handle, err := fake.Open(1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return New(handle, Width64), img
}

func TestReadPrimitives(t *testing.T) {
	r, img := newTestReader(t)

	img.Write(0x10000, []byte{0x2a})
	if v, err := r.ReadU8(0x10000); err != nil || v != 0x2a {
		t.Fatalf("ReadU8 = %v, %v", v, err)
	}

	img.Write(0x10010, []byte{0x78, 0x56, 0x34, 0x12})
	v32, err := r.ReadU32(0x10010)
	if err != nil || v32 != 0x12345678 {
		t.Fatalf("ReadU32 = %#x, %v", v32, err)
	}

	img.Write(0x10020, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	v64, err := r.ReadU64(0x10020)
	if err != nil || v64 != 0x0807060504030201 {
		t.Fatalf("ReadU64 = %#x, %v", v64, err)
	}
}

func TestReadPtrWidening(t *testing.T) {
	r, img := newTestReader(t)
	img.Write(0x10030, []byte{0xef, 0xbe, 0xad, 0xde, 0, 0, 0, 0})

	ptr, err := r.ReadPtr(0x10030)
	if err != nil || ptr != 0xdeadbeef {
		t.Fatalf("ReadPtr = %#x, %v", ptr, err)
	}

	r32 := New(mustHandle(t), Width32)
	_ = r32
}

func mustHandle(t *testing.T) procmem.Handle {
	t.Helper()
	fake := procmem.NewFake()
	fake.Memory[2] = procmem.NewFakeImage(0, 16)
	h, err := fake.Open(2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return h
}

func TestReadCString(t *testing.T) {
	r, img := newTestReader(t)
	img.Write(0x10040, []byte("hello\x00garbage"))

	s, err := r.ReadCString(0x10040, 32)
	if err != nil {
		t.Fatalf("ReadCString: %v", err)
	}
	if s != "hello" {
		t.Fatalf("ReadCString = %q, want %q", s, "hello")
	}
}

func TestReadManagedString(t *testing.T) {
	r, img := newTestReader(t)

	// vtable(8) + monitor(8) skipped; length at +16, chars at +20.
	base := uint64(0x10100)
	buf := make([]byte, 20)
	buf[16] = 3 // length = 3 UTF-16 units
	buf = append(buf, []byte{'h', 0, 'i', 0, '!', 0}...)
	img.Write(base, buf)

	s, err := r.ReadManagedString(base)
	if err != nil {
		t.Fatalf("ReadManagedString: %v", err)
	}
	if s != "hi!" {
		t.Fatalf("ReadManagedString = %q, want %q", s, "hi!")
	}
}

func TestReadManagedStringNullAddress(t *testing.T) {
	r, _ := newTestReader(t)
	s, err := r.ReadManagedString(0)
	if err != nil || s != "" {
		t.Fatalf("ReadManagedString(0) = %q, %v", s, err)
	}
}

func TestReadBytesShortReadIsError(t *testing.T) {
	r, _ := newTestReader(t)
	_, err := r.ReadBytes(0x10ff8, 16) // straddles end of the fake image
	if err == nil {
		t.Fatalf("expected error reading past end of image")
	}
}
