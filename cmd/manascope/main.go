// Command manascope is the CLI front end over the session package: one
// subcommand per public operation, each attaching, performing a single
// read, and printing the result — a short-lived process, not a REPL.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/profile"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// startProfile starts a CPU profile when --profile is set, returning
// the stop function to defer. Grounded on blacktop-ipsw's own
// pkg/profile wiring: profile.Start(profile.CPUProfile, profile.NoShutdownHook, profile.Quiet).
func startProfile(enabled bool) func() {
	if !enabled {
		return func() {}
	}
	p := profile.Start(profile.CPUProfile, profile.NoShutdownHook, profile.Quiet)
	return p.Stop
}
