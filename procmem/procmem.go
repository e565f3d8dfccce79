// Package procmem implements the ProcessMemory capability the core
// backends consume: attach to a process by pid, read raw bytes at an
// address, enumerate running processes, and report whether the current
// context is privileged enough to do any of that. manascope's core
// (memio, mono, il2cpp, session) depends only on the ProcessMemory and
// Handle interfaces declared here, never on a concrete OS
// implementation, so a caller embedding manascope can supply their own
// OS binding instead.
package procmem

import "fmt"

// ProcessInfo names one running process as reported by the OS.
type ProcessInfo struct {
	PID  uint32
	Name string
}

// ProcessMemory is the external collaborator manascope's core reads
// through. Implementations live in this package (real OS-backed) or in
// tests (an in-memory fake); the core never assumes a platform.
type ProcessMemory interface {
	// Open attaches to pid, returning a Handle for subsequent reads.
	Open(pid uint32) (Handle, error)
	// ListProcesses enumerates currently running processes.
	ListProcesses() ([]ProcessInfo, error)
	// IsPrivileged reports whether the current context can read
	// arbitrary process memory (elevated token on Windows, ptrace
	// capability or matching euid on Linux).
	IsPrivileged() bool
}

// Handle is a live attachment to one process.
type Handle interface {
	// Read fills buf with bytes read from addr, returning the number
	// of bytes actually read. Short reads are only an error if the OS
	// call itself failed; a partial page overlap is not special-cased
	// here — callers decide what a short read means.
	Read(addr uint64, buf []byte) (int, error)
	// ModuleDataSegments returns the (base, size) of every writable
	// data segment belonging to the named module loaded in this
	// process, in load order.
	ModuleDataSegments(moduleName string) ([]Segment, error)
	// ModuleBase returns the load base of the named module, or an
	// error if it is not loaded.
	ModuleBase(moduleName string) (uint64, error)
	// HeapRegions returns every mapped region classified as private,
	// writable, and anonymous (backed by no file) — the address ranges
	// an IL2CPP root-instance scan walks, since managed objects live on
	// the runtime's own heap rather than in a named module's data
	// segment.
	HeapRegions() ([]Segment, error)
	// Close releases the OS handle.
	Close() error
}

// Segment is a contiguous mapped region of a module's address space.
type Segment struct {
	Base uint64
	Size uint64
}

// ErrModuleNotFound is returned by ModuleBase/ModuleDataSegments when
// the named module is not loaded in the target process.
type ErrModuleNotFound struct {
	Module string
}

func (e *ErrModuleNotFound) Error() string {
	return fmt.Sprintf("module %q not loaded in target process", e.Module)
}
