package playlist

import (
	"fmt"
	"math/rand"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/famish99/musicradio/internal/config"
)

// Track represents a single audio track
type Track struct {
	ID       int
	Title    string
	Filename string
}

// Playlist is the static, immutable list of tracks for a deployment
type Playlist struct {
	mu       sync.RWMutex
	tracks   []Track
	basePath string
	current  int
	intn     func(n int) int
}

// NewPlaylist creates a playlist resolving files against basePath
func NewPlaylist(basePath string, tracks []Track) *Playlist {
	return &Playlist{
		tracks:   append([]Track(nil), tracks...),
		basePath: basePath,
		current:  -1,
		intn:     rand.Intn,
	}
}

// FromConfig builds the playlist from the configured songs
func FromConfig(cfg *config.Config) *Playlist {
	tracks := make([]Track, 0, len(cfg.Audio.Songs))
	for _, s := range cfg.Audio.Songs {
		tracks = append(tracks, Track{ID: s.ID, Title: s.Title, Filename: s.Filename})
	}
	return NewPlaylist(cfg.Audio.BasePath, tracks)
}

// SetRandom replaces the index source used by Random; intn must return a value in [0, n)
func (p *Playlist) SetRandom(intn func(n int) int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intn = intn
}

// URL resolves the location of a track as "{basePath}/{filename}"
func (p *Playlist) URL(t Track) string {
	p.mu.RLock()
	base := p.basePath
	p.mu.RUnlock()
	return JoinURL(base, t.Filename)
}

// JoinURL joins a base path (directory or http(s) URL) and a file name
func JoinURL(base, filename string) string {
	if base == "" {
		return filename
	}
	if IsRemote(base) {
		u, err := url.Parse(base)
		if err == nil {
			u.Path = path.Join(u.Path, filename)
			return u.String()
		}
		return strings.TrimSuffix(base, "/") + "/" + filename
	}
	return filepath.Join(base, filename)
}

// IsRemote reports whether a location must be fetched over HTTP
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Random selects a uniformly random track and makes it current
func (p *Playlist) Random() (*Track, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.tracks) == 0 {
		return nil, -1, fmt.Errorf("playlist is empty")
	}

	index := p.intn(len(p.tracks))
	if index < 0 || index >= len(p.tracks) {
		return nil, -1, fmt.Errorf("random index out of range: %d", index)
	}

	p.current = index
	t := p.tracks[index]
	return &t, index, nil
}

// Length returns the number of tracks
func (p *Playlist) Length() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tracks)
}

// GetAll returns all tracks
func (p *Playlist) GetAll() []Track {
	p.mu.RLock()
	defer p.mu.RUnlock()

	// Return a copy to prevent external modification
	tracks := make([]Track, len(p.tracks))
	copy(tracks, p.tracks)
	return tracks
}

// CurrentIndex returns the current track index
func (p *Playlist) CurrentIndex() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}
