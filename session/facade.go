package session

import (
	"github.com/kestrelre/manascope/merrors"
	"github.com/kestrelre/manascope/model"
)

// GetAssemblies enumerates the target's loaded assemblies once per
// attach, caching the result in assembly-cache in first-seen order so
// repeated calls and get_assembly_classes see stable output.
func (s *Session) GetAssemblies() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAttached(); err != nil {
		return nil, err
	}
	if s.assemblies.Len() > 0 {
		names := make([]string, 0, s.assemblies.Len())
		for _, k := range s.assemblies.Keys() {
			names = append(names, k.(string))
		}
		return names, nil
	}
	return s.getAssembliesLocked()
}

func (s *Session) lookupAssembly(name string) (model.AssemblyRef, bool) {
	v, ok := s.assemblies.Get(name)
	if !ok {
		return model.AssemblyRef{}, false
	}
	return v.(model.AssemblyRef), true
}

// GetAssemblyClasses enumerates every class the named assembly's image
// declares.
func (s *Session) GetAssemblyClasses(asm string) ([]ClassInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAttached(); err != nil {
		return nil, err
	}
	if s.assemblies.Len() == 0 {
		if _, err := s.getAssembliesLocked(); err != nil {
			return nil, err
		}
	}
	ref, ok := s.lookupAssembly(asm)
	if !ok {
		return nil, merrors.AssemblyNotFound
	}
	addrs, err := s.be.EnumerateClasses(ref.ImageAddress)
	if err != nil {
		return nil, merrors.Newf(merrors.KindReadError, "session: enumerating classes in %q: %v", asm, err)
	}
	out := make([]ClassInfo, 0, len(addrs))
	for _, addr := range addrs {
		t, err := s.be.ResolveClass(addr)
		if err != nil {
			continue
		}
		out = append(out, classInfoOf(t))
	}
	return out, nil
}

func (s *Session) getAssembliesLocked() ([]string, error) {
	refs, err := s.be.EnumerateAssemblies()
	if err != nil {
		return nil, merrors.Newf(merrors.KindReadError, "session: enumerating assemblies: %v", err)
	}
	for _, ref := range refs {
		s.assemblies.Set(ref.Name, ref)
	}
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	return names, nil
}

// GetClassDetails resolves cls (bare name or "Namespace.Name") within
// asm's image and returns its full field list plus any resolved
// static-singleton instance pointers.
func (s *Session) GetClassDetails(asm, cls string) (ClassDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAttached(); err != nil {
		return ClassDetails{}, err
	}
	if s.assemblies.Len() == 0 {
		if _, err := s.getAssembliesLocked(); err != nil {
			return ClassDetails{}, err
		}
	}
	ref, ok := s.lookupAssembly(asm)
	if !ok {
		return ClassDetails{}, merrors.AssemblyNotFound
	}
	ns, name := splitNamespace(cls)
	t, err := s.be.ResolveClassByName(ref.ImageAddress, ns, name)
	if err != nil {
		return ClassDetails{}, merrors.ClassNotFound
	}
	fields, err := s.be.Fields(t)
	if err != nil {
		fields = nil
	}
	return ClassDetails{
		ClassInfo:       classInfoOf(t),
		InstanceSize:    t.InstanceSize,
		FieldCount:      t.FieldCount,
		Opaque:          t.Opaque,
		Fields:          fields,
		StaticInstances: s.staticInstancePointers(t, fields),
	}, nil
}

// staticInstancePointers decodes every static reference-typed field
// declared by t and returns the ones that decoded to a live pointer —
// the shape a singleton's "<Instance>k__BackingField" takes.
func (s *Session) staticInstancePointers(t *model.ManagedType, fields []model.FieldDescriptor) []uint64 {
	if t.StaticStorageAddress == 0 {
		return nil
	}
	var out []uint64
	for _, f := range fields {
		if !f.IsStatic {
			continue
		}
		v, err := s.dec.DecodeField(f, t.StaticStorageAddress)
		if err != nil || v.Kind != model.ValuePointer {
			continue
		}
		out = append(out, v.Pointer.Address)
	}
	return out
}

// findClassByName searches every enumerated assembly's image for a
// class named ns.name, since read_data's root class isn't scoped to a
// single assembly the way get_class_details is. It returns the image
// address the class was actually found in, so callers can hand it
// straight to PathResolver without re-guessing which image to search.
func (s *Session) findClassByName(ns, name string) (uint64, *model.ManagedType, error) {
	if s.assemblies.Len() == 0 {
		if _, err := s.getAssembliesLocked(); err != nil {
			return 0, nil, err
		}
	}
	for _, k := range s.assemblies.Keys() {
		ref, _ := s.lookupAssembly(k.(string))
		if t, err := s.be.ResolveClassByName(ref.ImageAddress, ns, name); err == nil {
			return ref.ImageAddress, t, nil
		}
	}
	return 0, nil, merrors.ClassNotFound
}

// GetInstance decodes the instance at addr one level deep, recovering
// its runtime class from the instance's own vtable word.
func (s *Session) GetInstance(addr uint64) (InstanceData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAttached(); err != nil {
		return InstanceData{}, err
	}
	if addr < model.MinValidAddress {
		return InstanceData{}, merrors.BadAddress
	}
	t, err := s.be.ClassOfInstance(addr)
	if err != nil {
		return InstanceData{}, merrors.BadAddress
	}
	val := s.dec.DecodeObject(t, addr)
	if val.Kind != model.ValueObject || val.Object == nil {
		return InstanceData{}, merrors.BadAddress
	}
	return InstanceData{
		ClassName: val.Object.ClassName,
		Namespace: val.Object.Namespace,
		Address:   val.Object.Address,
		Fields:    val.Object.Fields,
	}, nil
}

// GetInstanceField decodes a single named field of the instance at addr.
func (s *Session) GetInstanceField(addr uint64, name string) (model.TypedValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAttached(); err != nil {
		return model.Null, err
	}
	if addr < model.MinValidAddress {
		return model.Null, merrors.BadAddress
	}
	t, err := s.be.ClassOfInstance(addr)
	if err != nil {
		return model.Null, merrors.BadAddress
	}
	fields, err := s.be.Fields(t)
	if err != nil {
		return model.Null, merrors.FieldNotFound
	}
	f, ok := findField(fields, name)
	if !ok || f.IsStatic {
		return model.Null, merrors.FieldNotFound
	}
	v, _ := s.dec.DecodeField(f, addr)
	return v, nil
}

// GetStaticField decodes a single named static field declared by the
// class at classAddr.
func (s *Session) GetStaticField(classAddr uint64, name string) (model.TypedValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAttached(); err != nil {
		return model.Null, err
	}
	t, err := s.be.ResolveClass(classAddr)
	if err != nil {
		return model.Null, merrors.ClassNotFound
	}
	fields, err := s.be.Fields(t)
	if err != nil {
		return model.Null, merrors.FieldNotFound
	}
	f, ok := findField(fields, name)
	if !ok || !f.IsStatic {
		return model.Null, merrors.FieldNotFound
	}
	v, _ := s.dec.DecodeField(f, t.StaticStorageAddress)
	return v, nil
}

// GetDictionary structurally decodes the dictionary-shaped instance at
// addr. Its class must look dictionary-shaped (name contains
// "Dictionary" or matches the IL2CPP CardsAndQuantity drop-in) or the
// call fails closed with NotADictionary rather than guessing.
func (s *Session) GetDictionary(addr uint64) (DictionaryData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAttached(); err != nil {
		return DictionaryData{}, err
	}
	if addr < model.MinValidAddress {
		return DictionaryData{}, merrors.NotADictionary
	}
	t, err := s.be.ClassOfInstance(addr)
	if err != nil || !looksLikeDictionary(t) {
		return DictionaryData{}, merrors.NotADictionary
	}
	val := s.dec.DecodeDictionaryAt(addr, t)
	return DictionaryData{ClassName: t.Name, Entries: val.Dict}, nil
}

// ReadData resolves path starting from the root class named name (bare
// name or "Namespace.Name"). An empty path is always
// PathSegmentMissing, since there is no field to name; the check is
// made here, before PathResolver, which would return the root's object
// summary for an empty path.
func (s *Session) ReadData(name string, path []string) (model.TypedValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAttached(); err != nil {
		return model.Null, err
	}
	if len(path) == 0 {
		return model.Null, merrors.New(merrors.KindPathSegmentMissing, "no path specified")
	}
	ns, cls := splitNamespace(name)
	imageAddr, _, err := s.findClassByName(ns, cls)
	if err != nil {
		return model.Null, merrors.ClassNotFound
	}
	val, err := s.res.Resolve(imageAddr, ns, cls, path)
	s.syncHeapScanMetrics()
	return val, err
}

// heapScanCounter is implemented by backends whose root-instance
// resolution scans the heap (currently only il2cpp.Backend); mono
// resolves its root from a static field and has nothing to report.
type heapScanCounter interface {
	HeapScanCandidates() uint64
}

func (s *Session) syncHeapScanMetrics() {
	if counter, ok := s.be.(heapScanCounter); ok {
		s.metrics.HeapScanCandidates = counter.HeapScanCandidates()
	}
}

func findField(fields []model.FieldDescriptor, name string) (model.FieldDescriptor, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return model.FieldDescriptor{}, false
}
