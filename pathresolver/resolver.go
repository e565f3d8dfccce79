// Package pathresolver implements PathResolver: walking a named chain
// of fields from a root class's singleton (Mono) or heap-scanned
// (IL2CPP) instance down to a terminal value. It never attaches a
// session itself — that's session.Session's job — it only assumes an
// already-resolved backend, reader and decoder for one attached process.
package pathresolver

import (
	"strings"

	"github.com/kestrelre/manascope/backend"
	"github.com/kestrelre/manascope/memio"
	"github.com/kestrelre/manascope/merrors"
	"github.com/kestrelre/manascope/model"
	"github.com/kestrelre/manascope/value"
)

// instanceBackingField is the conventional mangled name of the backing
// field for a singleton `Instance` property, the bootstrap cursor
// spec.md §4.6 calls for on the Mono side.
const instanceBackingField = "<Instance>k__BackingField"

// Resolver walks paths against one attached backend.
type Resolver struct {
	be     backend.Backend
	reader *memio.Reader
	dec    *value.Decoder
}

func New(be backend.Backend, reader *memio.Reader, dec *value.Decoder) *Resolver {
	return &Resolver{be: be, reader: reader, dec: dec}
}

// Resolve walks segments from rootNamespace.rootClass (looked up in the
// image at rootImage) down to a terminal value, per spec.md §4.6.
func (r *Resolver) Resolve(rootImage uint64, rootNamespace, rootClass string, segments []string) (model.TypedValue, error) {
	cls, err := r.be.ResolveClassByName(rootImage, rootNamespace, rootClass)
	if err != nil {
		return model.Null, err
	}

	cursorAddr, cursorClass, err := r.bootstrap(cls)
	if err != nil {
		return model.Null, err
	}

	for i, seg := range segments {
		fields, err := r.be.Fields(cursorClass)
		if err != nil {
			return model.Null, merrors.PathSegment(seg)
		}
		field, ok := findField(fields, seg)
		if !ok {
			return model.Null, merrors.PathSegment(seg)
		}

		block := cursorAddr
		if field.IsStatic {
			block = cursorClass.StaticStorageAddress
		}
		val, _ := r.dec.DecodeField(field, block)

		if val.Kind == model.ValueDictionary {
			return val, nil
		}

		isLast := i == len(segments)-1

		if val.Kind != model.ValuePointer {
			if isLast {
				return val, nil
			}
			return model.Null, merrors.PathSegment(seg)
		}

		cursorAddr = val.Pointer.Address
		if newClass, err := r.be.ClassOfInstance(cursorAddr); err == nil {
			cursorClass = newClass
		}
	}

	return r.terminal(cursorAddr, cursorClass)
}

// bootstrap recovers the root live instance: for Mono, the value of a
// singleton `Instance` static field; for IL2CPP, the heap scan.
func (r *Resolver) bootstrap(cls *model.ManagedType) (uint64, *model.ManagedType, error) {
	var cursorAddr uint64

	if r.be.Kind() == model.KindIl2cpp {
		addr, err := r.be.FindRootInstance(cls)
		if err != nil {
			return 0, nil, err
		}
		cursorAddr = addr
	} else {
		fields, err := r.be.Fields(cls)
		if err != nil {
			return 0, nil, merrors.PathSegment(instanceBackingField)
		}
		field, ok := findField(fields, instanceBackingField)
		if !ok || !field.IsStatic {
			return 0, nil, merrors.PathSegment(instanceBackingField)
		}
		val, _ := r.dec.DecodeField(field, cls.StaticStorageAddress)
		if val.Kind != model.ValuePointer {
			return 0, nil, merrors.PathSegment(instanceBackingField)
		}
		cursorAddr = val.Pointer.Address
	}

	cursorClass, err := r.be.ClassOfInstance(cursorAddr)
	if err != nil {
		cursorClass = cls
	}
	return cursorAddr, cursorClass, nil
}

// terminal implements §4.6 step 5: a cursor landing on a
// dictionary-shaped instance decodes structurally; otherwise it's a
// one-level-deep object field summary.
func (r *Resolver) terminal(cursorAddr uint64, cursorClass *model.ManagedType) (model.TypedValue, error) {
	if cursorAddr == 0 || cursorClass == nil {
		return model.Null, nil
	}
	if looksLikeDictionary(cursorClass) {
		return r.dec.DecodeDictionaryAt(cursorAddr, cursorClass), nil
	}
	return r.dec.DecodeObject(cursorClass, cursorAddr), nil
}

// looksLikeDictionary matches both a genuine Dictionary<K,V> instantiation
// and the IL2CPP CardsAndQuantity drop-in shape spec.md §4.5 calls out.
func looksLikeDictionary(cls *model.ManagedType) bool {
	return strings.Contains(cls.Name, "Dictionary") || strings.Contains(cls.Name, "CardsAndQuantity")
}

// findField matches by exact, case-sensitive name — including the
// verbatim "<Prop>k__BackingField" mangling spec.md §4.6 requires
// callers to pass through unmodified.
func findField(fields []model.FieldDescriptor, name string) (model.FieldDescriptor, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return model.FieldDescriptor{}, false
}
