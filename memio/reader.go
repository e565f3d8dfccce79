// Package memio implements MemoryReader: typed reads of primitives,
// pointers, and fixed byte spans against a foreign process's address
// space, on top of the ProcessMemory capability. Every read is
// synchronous and blocking; a failed read is non-fatal here — it
// surfaces as an error the caller decides whether to absorb.
package memio

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"

	"github.com/kestrelre/manascope/procmem"
	"golang.org/x/sync/singleflight"
)

// PointerWidth is the target process's pointer size in bytes. The read
// path is preserved for 32-bit targets even though every pinned offset
// table in this module assumes 64-bit.
type PointerWidth int

const (
	Width64 PointerWidth = 8
	Width32 PointerWidth = 4
)

// ReadError wraps an underlying ProcessMemory failure or short read.
type ReadError struct {
	Addr uint64
	Len  int
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %d bytes at 0x%x: %v", e.Len, e.Addr, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Reader is a MemoryReader bound to one attached process handle.
type Reader struct {
	handle procmem.Handle
	width  PointerWidth
	order  binary.ByteOrder

	// group collapses concurrent reads of the same (addr, len) issued
	// by racing goroutines resolving different read_data paths against
	// the same attached session. It never changes what is returned,
	// only how many times the underlying syscall runs.
	group singleflight.Group
}

func New(handle procmem.Handle, width PointerWidth) *Reader {
	return &Reader{handle: handle, width: width, order: binary.LittleEndian}
}

func (r *Reader) PointerWidth() PointerWidth { return r.width }

// Handle exposes the underlying ProcessMemory handle for backends that
// need a capability memio itself doesn't wrap, such as il2cpp's heap
// scan (procmem.Handle.HeapRegions).
func (r *Reader) Handle() procmem.Handle { return r.handle }

// Order exposes the reader's byte order for callers decoding a raw
// buffer they read in bulk themselves, rather than through ReadU64.
func (r *Reader) Order() binary.ByteOrder { return r.order }

func (r *Reader) ReadBytes(addr uint64, n int) ([]byte, error) {
	key := fmt.Sprintf("%x:%d", addr, n)
	v, err, _ := r.group.Do(key, func() (any, error) {
		buf := make([]byte, n)
		got, err := r.handle.Read(addr, buf)
		if err != nil {
			return nil, &ReadError{Addr: addr, Len: n, Err: err}
		}
		if got != n {
			return nil, &ReadError{Addr: addr, Len: n, Err: fmt.Errorf("short read: got %d of %d bytes", got, n)}
		}
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (r *Reader) ReadU8(addr uint64) (uint8, error) {
	b, err := r.ReadBytes(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadU16(addr uint64) (uint16, error) {
	b, err := r.ReadBytes(addr, 2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *Reader) ReadU32(addr uint64) (uint32, error) {
	b, err := r.ReadBytes(addr, 4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *Reader) ReadU64(addr uint64) (uint64, error) {
	b, err := r.ReadBytes(addr, 8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r *Reader) ReadI32(addr uint64) (int32, error) {
	v, err := r.ReadU32(addr)
	return int32(v), err
}

func (r *Reader) ReadI64(addr uint64) (int64, error) {
	v, err := r.ReadU64(addr)
	return int64(v), err
}

func (r *Reader) ReadFloat32(addr uint64) (float32, error) {
	v, err := r.ReadU32(addr)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *Reader) ReadFloat64(addr uint64) (float64, error) {
	v, err := r.ReadU64(addr)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadPtr reads a pointer-width value, widened to uint64 regardless of
// target pointer width.
func (r *Reader) ReadPtr(addr uint64) (uint64, error) {
	if r.width == Width32 {
		v, err := r.ReadU32(addr)
		return uint64(v), err
	}
	return r.ReadU64(addr)
}

// ReadCString reads a NUL-terminated 8-bit string, stopping at maxLen
// bytes even if no NUL byte was found.
func (r *Reader) ReadCString(addr uint64, maxLen int) (string, error) {
	if addr == 0 {
		return "", nil
	}
	const chunk = 64
	out := make([]byte, 0, chunk)
	for len(out) < maxLen {
		n := chunk
		if len(out)+n > maxLen {
			n = maxLen - len(out)
		}
		b, err := r.ReadBytes(addr+uint64(len(out)), n)
		if err != nil {
			if len(out) > 0 {
				break
			}
			return "", err
		}
		if idx := indexByte(b, 0); idx >= 0 {
			out = append(out, b[:idx]...)
			return string(out), nil
		}
		out = append(out, b...)
	}
	return string(out), nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// ReadManagedString decodes a managed string object: a 4-byte
// little-endian length at addr + ptrSize*2, followed by that many
// UTF-16 code units starting at addr + ptrSize*2 + 4.
func (r *Reader) ReadManagedString(addr uint64) (string, error) {
	if addr == 0 {
		return "", nil
	}
	lenAddr := addr + uint64(r.width)*2
	length, err := r.ReadU32(lenAddr)
	if err != nil {
		return "", err
	}
	if length > 1<<20 {
		return "", fmt.Errorf("managed string length %d exceeds sanity bound", length)
	}
	charsAddr := lenAddr + 4
	raw, err := r.ReadBytes(charsAddr, int(length)*2)
	if err != nil {
		return "", err
	}
	units := make([]uint16, length)
	for i := range units {
		units[i] = r.order.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(units)), nil
}
