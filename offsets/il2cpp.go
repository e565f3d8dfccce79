package offsets

import "github.com/kestrelre/manascope/model"

// IL2CPP field names.
const (
	Il2cppGlobalMetadataRegistration = "global_metadata_registration"
	Il2cppGlobalCodeRegistration     = "global_code_registration"
	Il2cppGlobalGlobalMetadata       = "global_global_metadata"
	Il2cppGlobalTypeInfoTable        = "global_type_info_table"

	Il2cppClassImage        = "class_image"
	Il2cppClassName         = "class_name"
	Il2cppClassNamespace    = "class_namespace"
	Il2cppClassParent       = "class_parent"
	Il2cppClassFields       = "class_fields"
	Il2cppClassFieldCount   = "class_field_count"
	Il2cppClassStaticFields = "class_static_fields"
	Il2cppClassMethods      = "class_methods"
	Il2cppClassInstanceSize = "class_instance_size"
	Il2cppClassFlags        = "class_flags"
	Il2cppClassTypeDefIndex = "class_type_definition"
	Il2cppClassGenericClass = "class_generic_class"

	Il2cppFieldName   = "field_name"
	Il2cppFieldType   = "field_type"
	Il2cppFieldParent = "field_parent"
	Il2cppFieldOffset = "field_offset"
	Il2cppFieldStride = "field_stride"

	Il2cppTypeData  = "type_data"
	Il2cppTypeAttrs = "type_attrs"

	Il2cppGenericClassType    = "generic_class_type"
	Il2cppGenericClassContext = "generic_class_context"
	Il2cppGenericInstArgc     = "generic_inst_argc"
	Il2cppGenericInstArgv     = "generic_inst_argv"

	Il2cppStringLength = "string_length"
	Il2cppStringChars  = "string_chars"

	Il2cppArrayLength   = "array_length"
	Il2cppArrayElements = "array_elements"
)

// Il2cppLibraryName is the module name IL2CPP-built games load their
// generated native code under, per platform. The core is
// platform-agnostic and tries each in turn.
var Il2cppLibraryNames = []string{"GameAssembly.dll", "GameAssembly.so", "GameAssembly.dylib"}

// Il2cppMetadataMagic is the version-31 global-metadata header magic
// (little-endian 0xFAB11BAF), used as a sanity check before trusting a
// pinned data-segment offset.
const Il2cppMetadataMagic uint32 = 0xFAB11BAF

// Il2cppMetadataVersion is the only metadata layout this module decodes.
const Il2cppMetadataVersion = 31

// Il2cpp is the versioned offset set for the IL2CPP backend. Field
// names/values mirror the reference implementation's per-Unity-version
// Il2CppOffsets presets.
var Il2cpp = &Set{
	Kind: model.KindIl2cpp,
	Versions: map[string]Table{
		"2019": {
			Il2cppGlobalMetadataRegistration: 0x24330,
			Il2cppGlobalCodeRegistration:     0x24338,
			Il2cppGlobalGlobalMetadata:       0x24340,
			Il2cppGlobalTypeInfoTable:        0x24360,
			Il2cppClassImage:                 0x0,
			Il2cppClassName:                  0x10,
			Il2cppClassNamespace:             0x18,
			Il2cppClassParent:                0x50,
			Il2cppClassFields:                0x78,
			Il2cppClassFieldCount:            0x114,
			Il2cppClassStaticFields:          0xB0,
			Il2cppClassMethods:               0x80,
			Il2cppClassInstanceSize:          0xF8,
			Il2cppClassFlags:                 0xF4,
			Il2cppClassTypeDefIndex:          0x60,
			Il2cppClassGenericClass:          0x8,
			Il2cppFieldName:                  0x0,
			Il2cppFieldType:                  0x8,
			Il2cppFieldParent:                0x10,
			Il2cppFieldOffset:                0x18,
			Il2cppFieldStride:                0x20,
			Il2cppTypeData:                   0x0,
			Il2cppTypeAttrs:                  0x8,
			Il2cppGenericClassType:           0x0,
			Il2cppGenericClassContext:        0x8,
			Il2cppGenericInstArgc:            0x0,
			Il2cppGenericInstArgv:            0x8,
			Il2cppStringLength:               0x10,
			Il2cppStringChars:                0x14,
			Il2cppArrayLength:                0x18,
			Il2cppArrayElements:              0x20,
		},
		"2021": {
			Il2cppGlobalMetadataRegistration: 0x24330,
			Il2cppGlobalCodeRegistration:     0x24338,
			Il2cppGlobalGlobalMetadata:       0x24340,
			Il2cppGlobalTypeInfoTable:        0x24360,
			Il2cppClassImage:                 0x0,
			Il2cppClassName:                  0x10,
			Il2cppClassNamespace:             0x18,
			Il2cppClassParent:                0x48,
			Il2cppClassFields:                0x80,
			Il2cppClassFieldCount:            0x124,
			Il2cppClassStaticFields:          0xA8,
			Il2cppClassMethods:               0x88,
			Il2cppClassInstanceSize:          0xF8,
			Il2cppClassFlags:                 0xFC,
			Il2cppClassTypeDefIndex:          0x68,
			Il2cppClassGenericClass:          0x50,
			Il2cppFieldName:                  0x0,
			Il2cppFieldType:                  0x8,
			Il2cppFieldParent:                0x10,
			Il2cppFieldOffset:                0x18,
			Il2cppFieldStride:                0x20,
			Il2cppTypeData:                   0x0,
			Il2cppTypeAttrs:                  0x8,
			Il2cppGenericClassType:           0x0,
			Il2cppGenericClassContext:        0x8,
			Il2cppGenericInstArgc:            0x0,
			Il2cppGenericInstArgv:            0x8,
			Il2cppStringLength:               0x10,
			Il2cppStringChars:                0x14,
			Il2cppArrayLength:                0x18,
			Il2cppArrayElements:              0x20,
		},
		// 2022.x has not been observed to differ from 2021.x.
		"2022": {
			Il2cppGlobalMetadataRegistration: 0x24330,
			Il2cppGlobalCodeRegistration:     0x24338,
			Il2cppGlobalGlobalMetadata:       0x24340,
			Il2cppGlobalTypeInfoTable:        0x24360,
			Il2cppClassImage:                 0x0,
			Il2cppClassName:                  0x10,
			Il2cppClassNamespace:             0x18,
			Il2cppClassParent:                0x48,
			Il2cppClassFields:                0x80,
			Il2cppClassFieldCount:            0x124,
			Il2cppClassStaticFields:          0xA8,
			Il2cppClassMethods:               0x88,
			Il2cppClassInstanceSize:          0xF8,
			Il2cppClassFlags:                 0xFC,
			Il2cppClassTypeDefIndex:          0x68,
			Il2cppClassGenericClass:          0x50,
			Il2cppFieldName:                  0x0,
			Il2cppFieldType:                  0x8,
			Il2cppFieldParent:                0x10,
			Il2cppFieldOffset:                0x18,
			Il2cppFieldStride:                0x20,
			Il2cppTypeData:                   0x0,
			Il2cppTypeAttrs:                  0x8,
			Il2cppGenericClassType:           0x0,
			Il2cppGenericClassContext:        0x8,
			Il2cppGenericInstArgc:            0x0,
			Il2cppGenericInstArgv:            0x8,
			Il2cppStringLength:               0x10,
			Il2cppStringChars:                0x14,
			Il2cppArrayLength:                0x18,
			Il2cppArrayElements:              0x20,
		},
	},
}
