// Package offsets holds the pinned structure offsets each backend
// reads foreign memory at, keyed by (backend, runtime_version) the way
// spec.md §9 calls for, so that supporting a new game build is a data
// change here, not a code change anywhere else. The versioning scheme
// mirrors the teacher's ModuleDataOffsets table: a version string maps
// to a flat field-name → offset table, with lookups falling back to the
// nearest known version at or below the requested one.
package offsets

import (
	"fmt"
	"sort"

	"github.com/kestrelre/manascope/model"
)

// Table is one backend/version's flat offset map.
type Table map[string]int64

// Set is every known version's Table for one backend, plus the field
// lookups convenience methods below use.
type Set struct {
	Kind     model.Kind
	Versions map[string]Table
}

func (s *Set) sortedVersions() []string {
	vs := make([]string, 0, len(s.Versions))
	for v := range s.Versions {
		vs = append(vs, v)
	}
	sort.Strings(vs)
	return vs
}

// ForVersion returns the Table for the exact version if known, or the
// nearest known version at or below it. Returns ok=false if version is
// below every known version, per spec.md §9's guidance to refuse
// unknown builds rather than silently misdecode.
func (s *Set) ForVersion(version string) (Table, bool) {
	if t, ok := s.Versions[version]; ok {
		return t, true
	}
	versions := s.sortedVersions()
	var best string
	for _, v := range versions {
		if v <= version {
			best = v
		}
	}
	if best == "" {
		return nil, false
	}
	return s.Versions[best], true
}

// Field looks up a single field's offset, returning an error naming
// the field so a bad OffsetTable entry is diagnosable.
func (t Table) Field(name string) (int64, error) {
	v, ok := t[name]
	if !ok {
		return 0, fmt.Errorf("offsets: unknown field %q", name)
	}
	return v, nil
}
