package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Manifest describes the newest deployed release
type Manifest struct {
	Version string `json:"version"`
	// Path is the release binary, relative to the manifest's directory
	Path string `json:"path"`
}

// ErrNoPendingUpdate is returned when there is nothing to activate
var ErrNoPendingUpdate = errors.New("no pending update")

// ManifestManager watches a release manifest with fsnotify and activates
// releases by re-pointing a symlink
type ManifestManager struct {
	manifestPath string
	currentLink  string

	mu      sync.Mutex
	running string
	pending *Manifest

	ready chan VersionReady
}

// NewManifestManager watches manifestPath; running is the version of this
// process
func NewManifestManager(manifestPath, currentLink, running string) *ManifestManager {
	return &ManifestManager{
		manifestPath: filepath.Clean(manifestPath),
		currentLink:  currentLink,
		running:      running,
		ready:        make(chan VersionReady, 1),
	}
}

func (m *ManifestManager) Enabled() bool {
	return m.manifestPath != "" && m.manifestPath != "."
}

func (m *ManifestManager) VersionReady() <-chan VersionReady {
	return m.ready
}

// Run watches the manifest's directory until ctx is done. Watching the
// directory catches manifests replaced by rename.
func (m *ManifestManager) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(m.manifestPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.manifestPath, err)
	}
	log.Debug().Msgf("Watching release manifest %s", m.manifestPath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != m.manifestPath {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if manifest, ok := m.refresh(); ok {
				m.announce(ctx, manifest)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Manifest watcher error")
		}
	}
}

func (m *ManifestManager) announce(ctx context.Context, manifest *Manifest) {
	select {
	case m.ready <- VersionReady{Version: manifest.Version}:
	case <-ctx.Done():
	}
}

// CheckForUpdate re-reads the manifest
func (m *ManifestManager) CheckForUpdate(ctx context.Context) (bool, error) {
	manifest, err := m.read()
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if manifest.Version == m.running {
		return false, nil
	}
	m.pending = manifest
	return true, nil
}

// refresh reads the manifest and records a new version; ok reports whether
// it was not seen before
func (m *ManifestManager) refresh() (*Manifest, bool) {
	manifest, err := m.read()
	if err != nil {
		// Writers may be mid-update; the next event retries
		log.Debug().Err(err).Msg("Skipping unreadable manifest")
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if manifest.Version == m.running {
		return nil, false
	}
	if m.pending != nil && m.pending.Version == manifest.Version {
		return nil, false
	}
	m.pending = manifest
	log.Info().Msgf("Release %s staged", manifest.Version)
	return manifest, true
}

// ActivateUpdate atomically points the current link at the pending release
func (m *ManifestManager) ActivateUpdate(ctx context.Context) error {
	m.mu.Lock()
	pending := m.pending
	m.mu.Unlock()

	if pending == nil {
		if _, err := m.CheckForUpdate(ctx); err != nil {
			return err
		}
		m.mu.Lock()
		pending = m.pending
		m.mu.Unlock()
	}
	if pending == nil {
		return ErrNoPendingUpdate
	}
	if m.currentLink == "" {
		return fmt.Errorf("no current link configured")
	}

	target := pending.Path
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(m.manifestPath), target)
	}
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("release %s: %w", pending.Version, err)
	}

	tmp := m.currentLink + ".tmp"
	os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	if err := os.Rename(tmp, m.currentLink); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to switch link: %w", err)
	}

	m.mu.Lock()
	m.running = pending.Version
	m.pending = nil
	m.mu.Unlock()

	log.Info().Msgf("Activated release %s", pending.Version)
	return nil
}

func (m *ManifestManager) read() (*Manifest, error) {
	data, err := os.ReadFile(m.manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if manifest.Version == "" || manifest.Path == "" {
		return nil, fmt.Errorf("manifest missing version or path")
	}
	return &manifest, nil
}
