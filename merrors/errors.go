// Package merrors defines the error kinds surfaced by manascope's public
// operations. Structural read failures inside a traversal are absorbed
// locally (a field decodes to Null); only user-directed operations that
// cannot continue return one of these.
package merrors

import "fmt"

// Kind identifies a class of failure. Compare with errors.Is against the
// sentinel values below, not by inspecting Kind directly.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotPrivileged
	KindProcessNotFound
	KindRuntimeNotFound
	KindNotInitialized
	KindAssemblyNotFound
	KindClassNotFound
	KindFieldNotFound
	KindPathSegmentMissing
	KindBadAddress
	KindReadError
	KindNotADictionary
	KindAlreadyAttached
	KindInstanceNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNotPrivileged:
		return "NotPrivileged"
	case KindProcessNotFound:
		return "ProcessNotFound"
	case KindRuntimeNotFound:
		return "RuntimeNotFound"
	case KindNotInitialized:
		return "NotInitialized"
	case KindAssemblyNotFound:
		return "AssemblyNotFound"
	case KindClassNotFound:
		return "ClassNotFound"
	case KindFieldNotFound:
		return "FieldNotFound"
	case KindPathSegmentMissing:
		return "PathSegmentMissing"
	case KindBadAddress:
		return "BadAddress"
	case KindReadError:
		return "ReadError"
	case KindNotADictionary:
		return "NotADictionary"
	case KindAlreadyAttached:
		return "AlreadyAttached"
	case KindInstanceNotFound:
		return "InstanceNotFound"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by manascope operations.
// Segment is populated only for KindPathSegmentMissing, naming the path
// element traversal aborted on.
type Error struct {
	Kind    Kind
	Segment string
	msg     string
}

func (e *Error) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("%s: %s (segment %q)", e.Kind, e.msg, e.Segment)
	}
	if e.msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.msg)
	}
	return e.Kind.String()
}

// Is lets errors.Is(err, merrors.NotInitialized) match regardless of msg.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// PathSegment builds a PathSegmentMissing error naming the failed segment.
func PathSegment(name string) *Error {
	return &Error{Kind: KindPathSegmentMissing, Segment: name, msg: "field not found on cursor"}
}

// Sentinels for errors.Is comparisons against a bare kind.
var (
	NotPrivileged      = &Error{Kind: KindNotPrivileged}
	ProcessNotFound    = &Error{Kind: KindProcessNotFound}
	RuntimeNotFound    = &Error{Kind: KindRuntimeNotFound}
	NotInitialized     = &Error{Kind: KindNotInitialized}
	AssemblyNotFound   = &Error{Kind: KindAssemblyNotFound}
	ClassNotFound      = &Error{Kind: KindClassNotFound}
	FieldNotFound      = &Error{Kind: KindFieldNotFound}
	BadAddress         = &Error{Kind: KindBadAddress}
	ReadError          = &Error{Kind: KindReadError}
	NotADictionary     = &Error{Kind: KindNotADictionary}
	AlreadyAttached    = &Error{Kind: KindAlreadyAttached}
	InstanceNotFound   = &Error{Kind: KindInstanceNotFound}
)
