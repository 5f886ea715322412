// Package platform decides device quirks once at startup so the rest of the
// code branches on capability flags instead of checking the runtime itself.
package platform

import (
	"runtime"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/famish99/musicradio/internal/config"
)

// Capabilities are the flags components consult
type Capabilities struct {
	// PreferMetadataPreload streams tracks instead of buffering them fully
	PreferMetadataPreload bool
	// ShorterLoadTimeout uses playback.short_load_timeout
	ShorterLoadTimeout bool
	// UpdateEvents means new versions are announced by a watcher
	UpdateEvents bool
}

// Env is what Probe inspects; tests supply their own
type Env struct {
	GOOS   string
	GOARCH string
	// CanWatch reports whether a filesystem watcher can be created
	CanWatch func() bool
}

// HostEnv describes the running process
func HostEnv() Env {
	return Env{
		GOOS:     runtime.GOOS,
		GOARCH:   runtime.GOARCH,
		CanWatch: canWatch,
	}
}

func canWatch() bool {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false
	}
	w.Close()
	return true
}

// Probe returns the capabilities of the host for cfg
func Probe(cfg *config.Config) Capabilities {
	return ProbeEnv(cfg, HostEnv())
}

// ProbeEnv computes capabilities for an explicit environment
func ProbeEnv(cfg *config.Config, env Env) Capabilities {
	constrained := isConstrained(env)

	switch cfg.Playback.Quirks {
	case "on":
		constrained = true
	case "off":
		constrained = false
	}

	caps := Capabilities{
		PreferMetadataPreload: constrained,
		ShorterLoadTimeout:    constrained,
		UpdateEvents:          cfg.Update.ManifestPath != "" && env.CanWatch != nil && env.CanWatch(),
	}

	log.Debug().
		Str("os", env.GOOS).
		Str("arch", env.GOARCH).
		Bool("metadata_preload", caps.PreferMetadataPreload).
		Bool("short_timeout", caps.ShorterLoadTimeout).
		Bool("update_events", caps.UpdateEvents).
		Msg("Platform capabilities")
	return caps
}

// isConstrained matches small single-board and embedded Linux targets
func isConstrained(env Env) bool {
	if env.GOOS != "linux" {
		return false
	}
	switch {
	case env.GOARCH == "arm", env.GOARCH == "arm64", env.GOARCH == "riscv64":
		return true
	case strings.HasPrefix(env.GOARCH, "mips"):
		return true
	}
	return false
}
