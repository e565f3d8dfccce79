// Package session implements the Facade component: the state machine
// and cache ownership behind manascope's public operations table,
// dispatching to whichever backend RuntimeLocator found at attach.
package session

import (
	"strings"
	"sync"

	"github.com/elliotchance/orderedmap"
	"github.com/google/uuid"

	"github.com/kestrelre/manascope/backend"
	"github.com/kestrelre/manascope/config"
	"github.com/kestrelre/manascope/il2cpp"
	"github.com/kestrelre/manascope/memio"
	"github.com/kestrelre/manascope/merrors"
	"github.com/kestrelre/manascope/model"
	"github.com/kestrelre/manascope/mono"
	"github.com/kestrelre/manascope/offsets"
	"github.com/kestrelre/manascope/pathresolver"
	"github.com/kestrelre/manascope/procmem"
	"github.com/kestrelre/manascope/telemetry"
	"github.com/kestrelre/manascope/value"
)

// Session is one attachment to a target process. Calls on a single
// Session are serialized by mu — re-entrant calls are unsupported, per
// the single-threaded cooperative scheduling model. Distinct Sessions
// (distinct processes) may be driven concurrently.
type Session struct {
	mu sync.Mutex

	id     uuid.UUID
	state  State
	memory procmem.ProcessMemory
	cfg    *config.Config

	pid    uint32
	handle procmem.Handle
	reader *memio.Reader
	be     backend.Backend
	dec    *value.Decoder
	res    *pathresolver.Resolver

	assemblies *orderedmap.OrderedMap
	metrics    model.SessionMetrics
}

// New builds a Session bound to memory, an external ProcessMemory
// collaborator, using cfg for the target process name and offset-table
// version pin. The Session starts Detached; call Init to attach.
func New(memory procmem.ProcessMemory, cfg *config.Config) *Session {
	if cfg == nil {
		cfg = &config.Config{RuntimeVersion: config.DefaultRuntimeVersion}
	}
	return &Session{
		id:     uuid.New(),
		state:  StateDetached,
		memory: memory,
		cfg:    cfg,
	}
}

// IsPrivileged reports whether the current process can read arbitrary
// foreign memory at all, independent of any particular target.
func (s *Session) IsPrivileged() bool {
	return s.memory.IsPrivileged()
}

// FindProcess reports whether a process named name is currently running.
func (s *Session) FindProcess(name string) bool {
	procs, err := s.memory.ListProcesses()
	if err != nil {
		return false
	}
	for _, p := range procs {
		if p.Name == name {
			return true
		}
	}
	return false
}

// IsInitialized reports whether the Session is Attached and can serve
// read operations.
func (s *Session) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAttached
}

// Init attaches to the named process, locates its runtime, and builds
// the matching backend. It fails closed: any error along the way
// leaves the Session Detached, never half-attached.
func (s *Session) Init(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAttached {
		return merrors.AlreadyAttached
	}
	s.state = StateAttaching
	log := telemetry.ForSession(s.id).WithField("process", name)

	if !s.memory.IsPrivileged() {
		s.state = StateDetached
		return merrors.NotPrivileged
	}

	procs, err := s.memory.ListProcesses()
	if err != nil {
		s.state = StateDetached
		return merrors.Newf(merrors.KindProcessNotFound, "session: listing processes: %v", err)
	}
	var pid uint32
	found := false
	for _, p := range procs {
		if p.Name == name {
			pid, found = p.PID, true
			break
		}
	}
	if !found {
		s.state = StateDetached
		return merrors.ProcessNotFound
	}

	handle, err := s.memory.Open(pid)
	if err != nil {
		s.state = StateDetached
		return merrors.Newf(merrors.KindProcessNotFound, "session: opening pid %d: %v", pid, err)
	}

	reader := memio.New(handle, memio.Width64)
	loc := &backend.RuntimeLocator{Handle: handle, Preferred: s.cfg.BackendOverride}
	anchors, err := loc.Locate()
	if err != nil {
		handle.Close()
		s.state = StateDetached
		return merrors.Newf(merrors.KindRuntimeNotFound, "session: %v", err)
	}

	be, err := buildBackend(reader, anchors, s.cfg.RuntimeVersion)
	if err != nil {
		handle.Close()
		s.state = StateDetached
		return merrors.Newf(merrors.KindRuntimeNotFound, "session: %v", err)
	}

	s.pid = pid
	s.handle = handle
	s.reader = reader
	s.be = be
	s.dec = value.New(reader, be)
	s.res = pathresolver.New(be, reader, s.dec)
	s.assemblies = orderedmap.NewOrderedMap()
	s.metrics = model.SessionMetrics{}
	s.state = StateAttached

	log.WithField("backend", anchors.Kind.String()).WithField("pid", pid).Info("attached")
	return nil
}

// buildBackend constructs the Mono or IL2CPP backend named by
// anchors.Kind, selecting an offset table for runtimeVersion with
// nearest-below fallback.
func buildBackend(reader *memio.Reader, anchors *backend.Anchors, runtimeVersion string) (backend.Backend, error) {
	switch anchors.Kind {
	case model.KindMono:
		table, ok := offsets.Mono.ForVersion(runtimeVersion)
		if !ok {
			return nil, merrors.Newf(merrors.KindRuntimeNotFound, "no mono offsets for version %q", runtimeVersion)
		}
		return mono.New(reader, table, anchors.MonoRootDomain), nil
	case model.KindIl2cpp:
		table, ok := offsets.Il2cpp.ForVersion(runtimeVersion)
		if !ok {
			return nil, merrors.Newf(merrors.KindRuntimeNotFound, "no il2cpp offsets for version %q", runtimeVersion)
		}
		return il2cpp.New(reader, table, anchors.Il2cppTypeInfoTable, anchors.Il2cppMetadataBase)
	default:
		return nil, merrors.Newf(merrors.KindRuntimeNotFound, "session: unrecognized runtime kind")
	}
}

// Close releases the process handle and returns the Session to
// Detached. Idempotent: closing an already-Detached Session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDetached {
		return nil
	}
	s.state = StateClosing
	if s.handle != nil {
		s.handle.Close()
	}
	telemetry.ForSession(s.id).WithField("pid", s.pid).Info("detached")

	s.handle = nil
	s.reader = nil
	s.be = nil
	s.dec = nil
	s.res = nil
	s.assemblies = nil
	s.pid = 0
	s.state = StateDetached
	return nil
}

func (s *Session) requireAttached() error {
	if s.state != StateAttached {
		return merrors.NotInitialized
	}
	return nil
}

// splitNamespace splits "Namespace.Class" at the last dot; a name with
// no dot is treated as a bare class name in the empty namespace.
func splitNamespace(full string) (namespace, name string) {
	i := strings.LastIndex(full, ".")
	if i < 0 {
		return "", full
	}
	return full[:i], full[i+1:]
}

func looksLikeDictionary(t *model.ManagedType) bool {
	return strings.Contains(t.Name, "Dictionary") || strings.Contains(t.Name, "CardsAndQuantity")
}
