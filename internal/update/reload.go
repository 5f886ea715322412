package update

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// Reloader restarts the application on the activated version
type Reloader interface {
	Reload() error
}

// ReloaderFunc adapts a function to Reloader
type ReloaderFunc func() error

func (f ReloaderFunc) Reload() error { return f() }

// ExecReloader replaces the running process with a fresh one
type ExecReloader struct {
	// Path is the binary to start; defaults to the running executable
	Path string
	// BeforeExec releases resources (audio device, listeners, database)
	BeforeExec func()
}

func (r *ExecReloader) Reload() error {
	path := r.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate executable: %w", err)
		}
		path = exe
	}

	if r.BeforeExec != nil {
		r.BeforeExec()
	}

	log.Info().Msgf("Reloading %s", path)
	return execSelf(path, os.Args, os.Environ())
}
