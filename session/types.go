package session

import "github.com/kestrelre/manascope/model"

// ClassInfo is the summary get_assembly_classes returns per class: just
// enough to let a caller pick one before paying for get_class_details'
// full field walk.
type ClassInfo struct {
	Name           string
	Namespace      string
	RuntimeAddress uint64
	IsEnum         bool
	IsValueType    bool
}

// ClassDetails is get_class_details' full answer: the class descriptor,
// its declared fields, and — for a static singleton shape — the
// resolved static-instance pointers a caller can feed to get_instance.
type ClassDetails struct {
	ClassInfo
	InstanceSize    int32
	FieldCount      int32
	Opaque          bool
	Fields          []model.FieldDescriptor
	StaticInstances []uint64
}

// InstanceData is get_instance's answer: a one-level-deep field dump of
// the instance at the given address, in the exact shape
// PathResolver's terminal object summary uses.
type InstanceData struct {
	ClassName string
	Namespace string
	Address   uint64
	Fields    []model.ObjectField
}

// DictionaryData is get_dictionary's answer: the structurally-decoded
// entry list plus the class name it was decoded against, for CLI
// display.
type DictionaryData struct {
	ClassName string
	Entries   []model.DictEntry
}

func classInfoOf(t *model.ManagedType) ClassInfo {
	return ClassInfo{
		Name:           t.Name,
		Namespace:      t.Namespace,
		RuntimeAddress: t.RuntimeAddress,
		IsEnum:         t.IsEnum,
		IsValueType:    t.IsValueType,
	}
}
