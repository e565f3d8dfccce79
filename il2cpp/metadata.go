// Package il2cpp implements the IL2CPP capability set of package
// backend: resolving Il2CppClass pointers out of the pinned
// s_TypeInfoTable, decoding Il2CppFieldInfo tables, and parsing the
// global-metadata blob for assembly and type-definition names. Every
// read goes through a memio.Reader against the live process — manascope
// never opens a global-metadata.dat file, since a read-only introspector
// only ever sees what's already mapped into the target.
package il2cpp

import (
	"encoding/binary"
	"fmt"

	"github.com/kestrelre/manascope/memio"
	"github.com/kestrelre/manascope/offsets"
	"github.com/kestrelre/manascope/scan"
)

// v31 header indices and struct sizes, mirroring the on-disk
// global-metadata.dat layout byte-for-byte since the in-memory blob is
// the same bytes the game loaded from that file.
const (
	headerStringsIndex         = 2
	headerTypeDefinitionsIndex = 19
	headerImagesIndex          = 20

	sizeTypeDefinition  = 88
	sizeImageDefinition = 40
)

// TypeDefinition is one v31 Il2CppTypeDefinition record. ResolveClassByName
// walks these by NameIndex/NamespaceIndex to find a class's global
// type-definition index before touching the runtime Il2CppClass at all,
// the way original_source's find_type_in_namespace does.
type TypeDefinition struct {
	NameIndex             int32
	NamespaceIndex        int32
	ByValTypeIndex        int32
	DeclaringTypeIndex    int32
	ParentIndex           int32
	ElementTypeIndex      int32
	GenericContainerIndex int32
	Flags                 uint32
	FieldStart            int32
	MethodStart           int32
	FieldCount            uint16
	BitField              uint32
	Token                 uint32
}

// ImageDefinition is one v31 Il2CppImageDefinition record.
type ImageDefinition struct {
	NameIndex       int32
	AssemblyIndex   int32
	TypeStart       int32
	TypeCount       uint32
	EntryPointIndex int32
	Token           uint32
}

// Metadata reads a version-31 global-metadata blob directly out of
// target process memory, anchored at the global_metadata pointer
// RuntimeLocator resolved.
type Metadata struct {
	reader *memio.Reader
	base   uint64

	stringsOffset, stringsSize          uint64
	typeDefinitionsOffset, typeDefsSize uint64
	imagesOffset, imagesSize            uint64
}

// Open validates the header magic/version and reads the offset/size
// index needed to locate strings, type definitions, and images.
func Open(reader *memio.Reader, base uint64) (*Metadata, error) {
	header, err := reader.ReadBytes(base, 256)
	if err != nil {
		return nil, fmt.Errorf("il2cpp: reading metadata header: %w", err)
	}
	if !scan.HasMagic(header, offsets.Il2cppMetadataMagic) {
		return nil, fmt.Errorf("il2cpp: bad metadata magic %#x", binary.LittleEndian.Uint32(header[0:4]))
	}
	version := int32(binary.LittleEndian.Uint32(header[4:8]))
	if version != offsets.Il2cppMetadataVersion {
		return nil, fmt.Errorf("il2cpp: unsupported metadata version %d", version)
	}

	pair := func(index int) (uint64, uint64) {
		off := 8 + index*8
		o := int32(binary.LittleEndian.Uint32(header[off : off+4]))
		s := int32(binary.LittleEndian.Uint32(header[off+4 : off+8]))
		return uint64(o), uint64(s)
	}

	m := &Metadata{reader: reader, base: base}
	m.stringsOffset, m.stringsSize = pair(headerStringsIndex)
	m.typeDefinitionsOffset, m.typeDefsSize = pair(headerTypeDefinitionsIndex)
	m.imagesOffset, m.imagesSize = pair(headerImagesIndex)
	return m, nil
}

// String reads a NUL-terminated entry from the string table at index.
func (m *Metadata) String(index int32) (string, error) {
	if index < 0 {
		return "", nil
	}
	addr := m.base + m.stringsOffset + uint64(index)
	return m.reader.ReadCString(addr, 1024)
}

func (m *Metadata) TypeDefinitionCount() int {
	return int(m.typeDefsSize) / sizeTypeDefinition
}

func (m *Metadata) TypeDefinition(i int) (TypeDefinition, error) {
	addr := m.base + m.typeDefinitionsOffset + uint64(i)*sizeTypeDefinition
	buf, err := m.reader.ReadBytes(addr, sizeTypeDefinition)
	if err != nil {
		return TypeDefinition{}, err
	}
	le := binary.LittleEndian
	return TypeDefinition{
		NameIndex:             int32(le.Uint32(buf[0:4])),
		NamespaceIndex:        int32(le.Uint32(buf[4:8])),
		ByValTypeIndex:        int32(le.Uint32(buf[8:12])),
		DeclaringTypeIndex:    int32(le.Uint32(buf[12:16])),
		ParentIndex:           int32(le.Uint32(buf[16:20])),
		ElementTypeIndex:      int32(le.Uint32(buf[20:24])),
		GenericContainerIndex: int32(le.Uint32(buf[24:28])),
		Flags:                 le.Uint32(buf[28:32]),
		FieldStart:            int32(le.Uint32(buf[32:36])),
		MethodStart:           int32(le.Uint32(buf[36:40])),
		BitField:              le.Uint32(buf[64:68]),
		Token:                 le.Uint32(buf[68:72]),
		FieldCount:            le.Uint16(buf[76:78]),
	}, nil
}

func (m *Metadata) ImageCount() int {
	return int(m.imagesSize) / sizeImageDefinition
}

func (m *Metadata) Image(i int) (ImageDefinition, error) {
	addr := m.base + m.imagesOffset + uint64(i)*sizeImageDefinition
	buf, err := m.reader.ReadBytes(addr, sizeImageDefinition)
	if err != nil {
		return ImageDefinition{}, err
	}
	le := binary.LittleEndian
	return ImageDefinition{
		NameIndex:       int32(le.Uint32(buf[0:4])),
		AssemblyIndex:   int32(le.Uint32(buf[4:8])),
		TypeStart:       int32(le.Uint32(buf[8:12])),
		TypeCount:       le.Uint32(buf[12:16]),
		EntryPointIndex: int32(le.Uint32(buf[24:28])),
		Token:           le.Uint32(buf[28:32]),
	}, nil
}
