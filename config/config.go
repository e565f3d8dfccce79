// Package config loads manascope's process/session configuration —
// target process name, backend override, offset-table version pin, and
// log level — from flags, environment, and defaults, with viper's usual
// precedence order (explicit set > flag > env > default). No config
// file is read.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/kestrelre/manascope/model"
)

// DefaultRuntimeVersion is used when nothing pins a Unity version.
// Both backends carry a "2021" offset table; their "2022" tables
// repeat its values.
const DefaultRuntimeVersion = "2021"

// Config is the resolved configuration for one attach.
type Config struct {
	ProcessName     string
	BackendOverride model.Kind // KindUnknown lets RuntimeLocator auto-detect
	RuntimeVersion  string
	LogLevel        string
}

// Load resolves a Config from v, or from a fresh viper.Viper reading
// only environment variables (MANASCOPE_*) and defaults if v is nil.
// Callers wiring cmd/manascope pass a viper already bound to cobra flags.
func Load(v *viper.Viper) *Config {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix("manascope")
	v.AutomaticEnv()
	v.SetDefault("runtime_version", DefaultRuntimeVersion)
	v.SetDefault("log_level", "info")
	v.SetDefault("backend", "")

	cfg := &Config{
		ProcessName:    v.GetString("process"),
		RuntimeVersion: v.GetString("runtime_version"),
		LogLevel:       v.GetString("log_level"),
	}
	switch strings.ToLower(v.GetString("backend")) {
	case "mono":
		cfg.BackendOverride = model.KindMono
	case "il2cpp":
		cfg.BackendOverride = model.KindIl2cpp
	default:
		cfg.BackendOverride = model.KindUnknown
	}
	return cfg
}
