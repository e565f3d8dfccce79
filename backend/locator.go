package backend

import (
	"encoding/binary"
	"fmt"

	"github.com/kestrelre/manascope/memio"
	"github.com/kestrelre/manascope/model"
	"github.com/kestrelre/manascope/offsets"
	"github.com/kestrelre/manascope/procmem"
	"github.com/kestrelre/manascope/scan"
)

// monoRootDomainPattern matches the opening of mono_get_root_domain's
// x86-64 trampoline: `mov rax, [rip+disp]; test rax, rax`, the same
// shape original_source's RIP_PLUS_OFFSET_OFFSET/RIP_VALUE_OFFSET
// constants were derived from.
var monoRootDomainPattern = scan.MustCompile(`{ 48 8B 05 ?? ?? ?? ?? 48 85 C0 }`)

// RuntimeLocator finds which backend a target process runs and where
// its anchors sit, by probing for known module names rather than
// parsing on-disk container headers — the process's own loader has
// already done that work by the time manascope attaches.
type RuntimeLocator struct {
	Handle procmem.Handle

	// Preferred forces which backend's module names are probed first.
	// KindUnknown (the zero value) auto-detects: Mono, then IL2CPP.
	Preferred model.Kind
}

func (l *RuntimeLocator) Locate() (*Anchors, error) {
	tryMono := func() (*Anchors, error) {
		base, err := l.Handle.ModuleBase(offsets.MonoLibraryName)
		if err != nil {
			return nil, err
		}
		return l.locateMono(base)
	}
	tryIl2cpp := func() (*Anchors, error) {
		for _, name := range offsets.Il2cppLibraryNames {
			if base, err := l.Handle.ModuleBase(name); err == nil {
				return l.locateIl2cpp(base, name)
			}
		}
		return nil, fmt.Errorf("backend: no il2cpp module found")
	}

	if l.Preferred == model.KindIl2cpp {
		if a, err := tryIl2cpp(); err == nil {
			return a, nil
		}
		return tryMono()
	}
	if a, err := tryMono(); err == nil {
		return a, nil
	}
	if a, err := tryIl2cpp(); err == nil {
		return a, nil
	}
	return nil, fmt.Errorf("backend: no known runtime module found in target process")
}

func (l *RuntimeLocator) locateMono(moduleBase uint64) (*Anchors, error) {
	segs, err := l.Handle.ModuleDataSegments(offsets.MonoLibraryName)
	if err != nil {
		return nil, fmt.Errorf("backend: mono data segments: %w", err)
	}

	for _, seg := range segs {
		buf := make([]byte, seg.Size)
		if _, err := l.Handle.Read(seg.Base, buf); err != nil {
			continue
		}
		for _, at := range monoRootDomainPattern.FindAll(buf) {
			trampAddr := seg.Base + uint64(at)
			code := buf[at:min(at+16, len(buf))]
			rootDomainPtrAddr, err := scan.ResolveRIPRelative(code, trampAddr)
			if err != nil {
				continue
			}
			ptrBuf := make([]byte, 8)
			if _, err := l.Handle.Read(rootDomainPtrAddr, ptrBuf); err != nil {
				continue
			}
			rootDomain := binary.LittleEndian.Uint64(ptrBuf)
			if rootDomain == 0 {
				continue
			}
			return &Anchors{
				Kind:           model.KindMono,
				MonoModuleBase: moduleBase,
				MonoRootDomain: rootDomain,
			}, nil
		}
	}
	return nil, fmt.Errorf("backend: mono root domain trampoline not found")
}

func (l *RuntimeLocator) locateIl2cpp(moduleBase uint64, moduleName string) (*Anchors, error) {
	segs, err := l.Handle.ModuleDataSegments(moduleName)
	if err != nil {
		return nil, fmt.Errorf("backend: il2cpp data segments: %w", err)
	}
	// The type-info table and global-metadata pointer live in
	// GameAssembly's second writable data segment, not its first —
	// the pinned 0x24360 anchor is measured from that segment's base.
	if len(segs) < 2 {
		return nil, fmt.Errorf("backend: il2cpp module has fewer than 2 writable data segments")
	}
	dataSeg := segs[1]

	table, ok := offsets.Il2cpp.ForVersion("2021")
	if !ok {
		return nil, fmt.Errorf("backend: no il2cpp offsets for default version")
	}
	tableOff, err := table.Field(offsets.Il2cppGlobalTypeInfoTable)
	if err != nil {
		return nil, err
	}
	metadataOff, err := table.Field(offsets.Il2cppGlobalGlobalMetadata)
	if err != nil {
		return nil, err
	}

	reader := memio.New(l.Handle, memio.Width64)
	typeInfoTableAddr := dataSeg.Base + uint64(tableOff)
	if _, err := reader.ReadBytes(typeInfoTableAddr, 4); err != nil {
		return nil, fmt.Errorf("backend: reading il2cpp type-info anchor: %w", err)
	}
	metadataBase, err := reader.ReadPtr(dataSeg.Base + uint64(metadataOff))
	if err != nil {
		return nil, fmt.Errorf("backend: reading il2cpp global metadata pointer: %w", err)
	}
	metadataHeader, err := reader.ReadBytes(metadataBase, 4)
	if err != nil {
		return nil, fmt.Errorf("backend: reading il2cpp metadata header: %w", err)
	}
	if !scan.HasMagic(metadataHeader, offsets.Il2cppMetadataMagic) {
		return nil, fmt.Errorf("backend: il2cpp metadata pointer at pinned offset %#x has no valid magic; offset table may not match this build", metadataOff)
	}

	return &Anchors{
		Kind:                model.KindIl2cpp,
		Il2cppModuleBase:    moduleBase,
		Il2cppDataSegment:   dataSeg.Base,
		Il2cppTypeInfoTable: typeInfoTableAddr,
		Il2cppMetadataBase:  metadataBase,
	}, nil
}
