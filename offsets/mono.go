package offsets

import "github.com/kestrelre/manascope/model"

// Mono field names. Values below match Unity's classical Mono runtime
// struct layout as pinned for the confirmed builds; see spec.md §6.
const (
	MonoAssemblyImage           = "assembly_image"
	MonoReferencedAssemblies    = "referenced_assemblies"
	MonoImageClassCache         = "image_class_cache"
	MonoHashTableSize           = "hash_table_size"
	MonoHashTableTable          = "hash_table_table"
	MonoTypeDefFieldSize        = "type_def_field_size"
	MonoTypeDefBitFields        = "type_def_bit_fields"
	MonoTypeDefClassKind        = "type_def_class_kind"
	MonoTypeDefParent           = "type_def_parent"
	MonoTypeDefNestedIn         = "type_def_nested_in"
	MonoTypeDefName             = "type_def_name"
	MonoTypeDefNamespace        = "type_def_namespace"
	MonoTypeDefVTableSize       = "type_def_vtable_size"
	MonoTypeDefSize             = "type_def_size"
	MonoTypeDefFields           = "type_def_fields"
	MonoTypeDefByValArg         = "type_def_by_val_arg"
	MonoTypeDefRuntimeInfo      = "type_def_runtime_info"
	MonoTypeDefFieldCount       = "type_def_field_count"
	MonoTypeDefNextClassCache   = "type_def_next_class_cache"
	MonoTypeDefMonoGenericClass = "type_def_mono_generic_class"
	MonoTypeDefGenericContainer = "type_def_generic_container"
	MonoRuntimeInfoDomainVTable = "runtime_info_domain_vtables"
	MonoVTable                  = "vtable"

	// Field-record layout, constant across the versions below.
	MonoFieldRecordNamePtr = "field_record_name_ptr"
	MonoFieldRecordTypePtr = "field_record_type_ptr"
	MonoFieldRecordParent  = "field_record_parent"
	MonoFieldRecordOffset  = "field_record_offset"
	MonoFieldRecordToken   = "field_record_token"
	MonoFieldRecordStride  = "field_record_stride"

	MonoTypeAttrs = "type_attrs"

	// Root-domain discovery.
	MonoRootDomainRipPlusOffsetOffset = "root_domain_rip_plus_offset_offset"
	MonoRootDomainRipValueOffset      = "root_domain_rip_value_offset"
)

// MonoLibraryName is the module name Unity's classical Mono runtime is
// loaded under.
const MonoLibraryName = "mono-2.0-bdwgc"

// Mono is the versioned offset set for the Mono backend.
var Mono = &Set{
	Kind: model.KindMono,
	Versions: map[string]Table{
		"2019": {
			MonoAssemblyImage:                  0x60,
			MonoReferencedAssemblies:           0x98,
			MonoImageClassCache:                0x4c0,
			MonoHashTableSize:                  0x18,
			MonoHashTableTable:                 0x20,
			MonoTypeDefFieldSize:               0x20,
			MonoTypeDefBitFields:               0x20,
			MonoTypeDefClassKind:               0x1b,
			MonoTypeDefParent:                  0x30,
			MonoTypeDefNestedIn:                0x38,
			MonoTypeDefName:                    0x48,
			MonoTypeDefNamespace:               0x50,
			MonoTypeDefVTableSize:              0x5C,
			MonoTypeDefSize:                    0x88,
			MonoTypeDefFields:                  0x90,
			MonoTypeDefByValArg:                0xB0,
			MonoTypeDefRuntimeInfo:             0xC8,
			MonoTypeDefFieldCount:              0xD8,
			MonoTypeDefNextClassCache:          0x100,
			MonoTypeDefMonoGenericClass:        0xD8,
			MonoTypeDefGenericContainer:        0x108,
			MonoRuntimeInfoDomainVTable:        0x8,
			MonoVTable:                         0x48,
			MonoFieldRecordNamePtr:             0x8,
			MonoFieldRecordTypePtr:             0x0,
			MonoFieldRecordParent:              0x10,
			MonoFieldRecordOffset:              0x18,
			MonoFieldRecordToken:               0x1c,
			MonoFieldRecordStride:              0x20,
			MonoTypeAttrs:                      0x8,
			MonoRootDomainRipPlusOffsetOffset:  0x3,
			MonoRootDomainRipValueOffset:       0x7,
		},
		"2021": {
			MonoAssemblyImage:                 0x60,
			MonoReferencedAssemblies:          0xa0,
			MonoImageClassCache:               0x4d0,
			MonoHashTableSize:                 0x18,
			MonoHashTableTable:                0x20,
			MonoTypeDefFieldSize:              0x20,
			MonoTypeDefBitFields:              0x20,
			MonoTypeDefClassKind:              0x1b,
			MonoTypeDefParent:                 0x30,
			MonoTypeDefNestedIn:               0x38,
			MonoTypeDefName:                   0x48,
			MonoTypeDefNamespace:              0x50,
			MonoTypeDefVTableSize:             0x5C,
			MonoTypeDefSize:                   0x90,
			MonoTypeDefFields:                 0x98,
			MonoTypeDefByValArg:               0xB8,
			MonoTypeDefRuntimeInfo:            0xD0,
			MonoTypeDefFieldCount:             0xE0,
			MonoTypeDefNextClassCache:         0x108,
			MonoTypeDefMonoGenericClass:       0xE0,
			MonoTypeDefGenericContainer:       0x110,
			MonoRuntimeInfoDomainVTable:       0x8,
			MonoVTable:                        0x48,
			MonoFieldRecordNamePtr:            0x8,
			MonoFieldRecordTypePtr:            0x0,
			MonoFieldRecordParent:             0x10,
			MonoFieldRecordOffset:             0x18,
			MonoFieldRecordToken:              0x1c,
			MonoFieldRecordStride:             0x20,
			MonoTypeAttrs:                     0x8,
			MonoRootDomainRipPlusOffsetOffset: 0x3,
			MonoRootDomainRipValueOffset:      0x7,
		},
		// 2022.3 has not been observed to differ from 2021.3.
		"2022": {
			MonoAssemblyImage:                 0x60,
			MonoReferencedAssemblies:          0xa0,
			MonoImageClassCache:               0x4d0,
			MonoHashTableSize:                 0x18,
			MonoHashTableTable:                0x20,
			MonoTypeDefFieldSize:              0x20,
			MonoTypeDefBitFields:              0x20,
			MonoTypeDefClassKind:              0x1b,
			MonoTypeDefParent:                 0x30,
			MonoTypeDefNestedIn:               0x38,
			MonoTypeDefName:                   0x48,
			MonoTypeDefNamespace:              0x50,
			MonoTypeDefVTableSize:             0x5C,
			MonoTypeDefSize:                   0x90,
			MonoTypeDefFields:                 0x98,
			MonoTypeDefByValArg:               0xB8,
			MonoTypeDefRuntimeInfo:            0xD0,
			MonoTypeDefFieldCount:             0xE0,
			MonoTypeDefNextClassCache:         0x108,
			MonoTypeDefMonoGenericClass:       0xE0,
			MonoTypeDefGenericContainer:       0x110,
			MonoRuntimeInfoDomainVTable:       0x8,
			MonoVTable:                        0x48,
			MonoFieldRecordNamePtr:            0x8,
			MonoFieldRecordTypePtr:            0x0,
			MonoFieldRecordParent:             0x10,
			MonoFieldRecordOffset:             0x18,
			MonoFieldRecordToken:              0x1c,
			MonoFieldRecordStride:             0x20,
			MonoTypeAttrs:                     0x8,
			MonoRootDomainRipPlusOffsetOffset: 0x3,
			MonoRootDomainRipValueOffset:      0x7,
		},
	},
}
