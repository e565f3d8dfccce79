package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kestrelre/manascope/config"
	"github.com/kestrelre/manascope/merrors"
	"github.com/kestrelre/manascope/procmem"
	"github.com/kestrelre/manascope/session"
	"github.com/kestrelre/manascope/telemetry"
)

var (
	flagProcess        string
	flagRuntimeVersion string
	flagBackend        string
	flagLogLevel       string
	flagProfile        bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "manascope",
		Short:         "Read-only introspection into a running Mono/IL2CPP process",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&flagProcess, "process", "", "target process name")
	root.PersistentFlags().StringVar(&flagRuntimeVersion, "runtime-version", "", "offset-table version pin (defaults to "+config.DefaultRuntimeVersion+")")
	root.PersistentFlags().StringVar(&flagBackend, "backend", "", "force backend: mono or il2cpp (default: auto-detect)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn, error, fatal")
	root.PersistentFlags().BoolVar(&flagProfile, "profile", false, "capture a CPU profile for this invocation")

	v := viper.New()
	v.BindPFlag("process", root.PersistentFlags().Lookup("process"))
	v.BindPFlag("runtime_version", root.PersistentFlags().Lookup("runtime-version"))
	v.BindPFlag("backend", root.PersistentFlags().Lookup("backend"))
	v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newAttachCmd(v),
		newAssembliesCmd(v),
		newClassesCmd(v),
		newClassCmd(v),
		newInstanceCmd(v),
		newFieldCmd(v),
		newDictCmd(v),
		newPathCmd(v),
		newBrowseCmd(v),
	)
	return root
}

// buildConfig resolves the effective Config from viper (flags, env,
// defaults, in that BindPFlag precedence).
func buildConfig(v *viper.Viper) *config.Config {
	return config.Load(v)
}

// attachSession opens a Session against cfg.ProcessName and returns it
// attached, or an error a subcommand's RunE can return directly.
func attachSession(cfg *config.Config) (*session.Session, func(), error) {
	telemetry.SetLevel(cfg.LogLevel)
	stopProfile := startProfile(flagProfile)
	s := session.New(procmem.Default(), cfg)
	if err := s.Init(cfg.ProcessName); err != nil {
		stopProfile()
		return nil, func() {}, err
	}
	cleanup := func() {
		s.Close()
		stopProfile()
	}
	return s, cleanup, nil
}

// parseAddr parses a hex ("0x...") or decimal address literal.
func parseAddr(lit string) (uint64, error) {
	lit = strings.TrimSpace(lit)
	base := 10
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
		lit = lit[2:]
		base = 16
	}
	v, err := strconv.ParseUint(lit, base, 64)
	if err != nil {
		return 0, merrors.Newf(merrors.KindBadAddress, "parsing address %q: %v", lit, err)
	}
	return v, nil
}

// splitDotted mirrors session's own "Namespace.Class" convention for
// arguments accepted straight from the command line.
func splitDotted(full string) (namespace, name string) {
	i := strings.LastIndex(full, ".")
	if i < 0 {
		return "", full
	}
	return full[:i], full[i+1:]
}
