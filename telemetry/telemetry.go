// Package telemetry wraps apex/log with the fields every manascope
// operation logs against: a session correlation id and the lifecycle
// stage (attach, detach, heap-scan progress). It never logs field
// values themselves, since those are the whole point of a read-only
// introspector attaching to someone else's process.
package telemetry

import (
	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/google/uuid"
)

func init() {
	log.SetHandler(clihandler.Default)
}

// SetLevel applies level (debug, info, warn, error, fatal) to the
// package-wide logger, falling back to info on a bad value.
func SetLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "fatal":
		log.SetLevel(log.FatalLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// ForSession returns a logger entry tagged with a session's
// correlation id, so every log line from one attach can be grepped
// together without exposing the target's process id as an identity.
func ForSession(id uuid.UUID) *log.Entry {
	return log.WithField("session", id.String())
}

// Component returns a logger entry tagged with a backend component
// name, for logging that happens below the session layer and so has
// no session id to attach to (session.Session builds its backend
// without handing its id down).
func Component(name string) *log.Entry {
	return log.WithField("component", name)
}

// HeapScanProgress logs a heap-scan checkpoint: candidates is the
// running count of 8-byte-aligned words matching the class pointer
// prefilter, regions is how many mapped regions have been walked so far.
func HeapScanProgress(entry *log.Entry, regions, totalRegions int, candidates uint64) {
	entry.WithFields(log.Fields{
		"regions":      regions,
		"totalRegions": totalRegions,
		"candidates":   candidates,
	}).Debug("heap scan progress")
}
