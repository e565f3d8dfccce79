//go:build windows

package procmem

import (
	"fmt"
	"sort"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows is the ProcessMemory implementation for the Win32 API,
// grounded on the same OpenProcess/ReadProcessMemory/Toolhelp32
// sequence Unity and IL2CPP game-memory tools use in the wild. It
// never writes to the target and never injects code — only
// PROCESS_QUERY_INFORMATION | PROCESS_VM_READ access is requested.
type Windows struct{}

func New() *Windows { return &Windows{} }

func (Windows) IsPrivileged() bool {
	var token windows.Token
	err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token)
	if err != nil {
		return false
	}
	defer token.Close()

	var luid windows.LUID
	name, _ := syscall.UTF16PtrFromString("SeDebugPrivilege")
	if err := windows.LookupPrivilegeValue(nil, name, &luid); err != nil {
		return false
	}

	tp := windows.Tokenprivileges{PrivilegeCount: 1}
	tp.Privileges[0] = windows.LUIDAndAttributes{Luid: luid, Attributes: windows.SE_PRIVILEGE_ENABLED}
	return windows.AdjustTokenPrivileges(token, false, &tp, 0, nil, nil) == nil
}

func (Windows) ListProcesses() ([]ProcessInfo, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var procs []ProcessInfo
	if err := windows.Process32First(snap, &entry); err != nil {
		return nil, fmt.Errorf("Process32First: %w", err)
	}
	for {
		name := windows.UTF16ToString(entry.ExeFile[:])
		procs = append(procs, ProcessInfo{PID: entry.ProcessID, Name: name})
		if err := windows.Process32Next(snap, &entry); err != nil {
			break
		}
	}

	sort.Slice(procs, func(i, j int) bool { return procs[i].PID < procs[j].PID })
	return procs, nil
}

func (w *Windows) Open(pid uint32) (Handle, error) {
	const access = windows.PROCESS_QUERY_INFORMATION | windows.PROCESS_VM_READ
	h, err := windows.OpenProcess(access, false, pid)
	if err != nil {
		return nil, fmt.Errorf("OpenProcess(%d): %w", pid, err)
	}
	return &windowsHandle{proc: h, pid: pid}, nil
}

type windowsHandle struct {
	proc windows.Handle
	pid  uint32
}

func (h *windowsHandle) Read(addr uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var read uintptr
	err := windows.ReadProcessMemory(h.proc, uintptr(addr), &buf[0], uintptr(len(buf)), &read)
	if err != nil {
		return 0, fmt.Errorf("ReadProcessMemory(0x%x, %d): %w", addr, len(buf), err)
	}
	return int(read), nil
}

func (h *windowsHandle) ModuleBase(moduleName string) (uint64, error) {
	mods, err := enumModules(h.proc, h.pid)
	if err != nil {
		return 0, err
	}
	for _, m := range mods {
		if strings.EqualFold(m.name, moduleName) {
			return m.base, nil
		}
	}
	return 0, &ErrModuleNotFound{Module: moduleName}
}

// ModuleDataSegments walks the loaded module's PE section table and
// returns every writable, non-discardable section as a data segment —
// the Windows analog of a Mach-O __DATA segment or an ELF PT_LOAD
// writable segment.
func (h *windowsHandle) ModuleDataSegments(moduleName string) ([]Segment, error) {
	mods, err := enumModules(h.proc, h.pid)
	if err != nil {
		return nil, err
	}
	var mod *moduleEntry
	for i := range mods {
		if strings.EqualFold(mods[i].name, moduleName) {
			mod = &mods[i]
			break
		}
	}
	if mod == nil {
		return nil, &ErrModuleNotFound{Module: moduleName}
	}

	header := make([]byte, mod.size)
	if _, err := h.Read(mod.base, header); err != nil {
		return nil, fmt.Errorf("reading module header for %s: %w", moduleName, err)
	}
	sections, err := peSections(header)
	if err != nil {
		return nil, fmt.Errorf("parsing PE sections for %s: %w", moduleName, err)
	}

	const imageScnMemWrite = 0x80000000
	var segs []Segment
	for _, s := range sections {
		if s.characteristics&imageScnMemWrite != 0 {
			segs = append(segs, Segment{Base: mod.base + uint64(s.virtualAddress), Size: uint64(s.virtualSize)})
		}
	}
	return segs, nil
}

type moduleEntry struct {
	name string
	base uint64
	size uint32
}

func enumModules(proc windows.Handle, pid uint32) ([]moduleEntry, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, pid)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot(modules): %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var mods []moduleEntry
	if err := windows.Module32First(snap, &entry); err != nil {
		return nil, fmt.Errorf("Module32First: %w", err)
	}
	for {
		mods = append(mods, moduleEntry{
			name: windows.UTF16ToString(entry.Module[:]),
			base: uint64(uintptr(unsafe.Pointer(entry.ModBaseAddr))),
			size: entry.ModBaseSize,
		})
		if err := windows.Module32Next(snap, &entry); err != nil {
			break
		}
	}
	return mods, nil
}

// memPrivate is MEM_PRIVATE, not exported by golang.org/x/sys/windows.
const memPrivate = 0x20000

// HeapRegions walks the process's virtual address space with
// VirtualQueryEx and returns every committed, writable, private
// region — memory the loader didn't map from a file, which is where a
// managed runtime's GC heap lives.
func (h *windowsHandle) HeapRegions() ([]Segment, error) {
	var segs []Segment
	var addr uintptr
	var mbi windows.MemoryBasicInformation
	for {
		err := windows.VirtualQueryEx(h.proc, addr, &mbi, unsafe.Sizeof(mbi))
		if err != nil {
			break
		}
		if mbi.RegionSize == 0 {
			break
		}
		if mbi.State == windows.MEM_COMMIT && mbi.Type == memPrivate &&
			mbi.Protect&(windows.PAGE_READWRITE|windows.PAGE_EXECUTE_READWRITE) != 0 {
			segs = append(segs, Segment{Base: uint64(mbi.BaseAddress), Size: uint64(mbi.RegionSize)})
		}
		next := addr + mbi.RegionSize
		if next <= addr {
			break
		}
		addr = next
	}
	return segs, nil
}

func (h *windowsHandle) Close() error {
	return windows.CloseHandle(h.proc)
}
