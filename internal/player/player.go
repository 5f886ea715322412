package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/famish99/musicradio/internal/backends"
	"github.com/famish99/musicradio/internal/config"
	"github.com/famish99/musicradio/internal/observable"
	"github.com/famish99/musicradio/internal/platform"
	"github.com/famish99/musicradio/internal/playlist"
)

// Cache is the offline store consulted before loading a track
type Cache interface {
	Lookup(url string) (string, bool)
	Add(ctx context.Context, url string) (string, error)
	// Invalidate drops a cached copy that failed to load
	Invalidate(url string) error
}

// Options carries the Player's collaborators
type Options struct {
	// Factory creates media elements; required
	Factory backends.Factory
	// Cache enables offline preloading; may be nil
	Cache        Cache
	Capabilities platform.Capabilities
	// Clock drives the load timeout; defaults to the wall clock
	Clock clock.Clock
	// Random overrides the playlist's index source
	Random func(n int) int
}

// Player owns the single live media session and rotates random tracks
type Player struct {
	mu          sync.Mutex
	pl          *playlist.Playlist
	newElement  backends.Factory
	cache       Cache
	clock       clock.Clock
	preload     backends.Preload
	loadTimeout time.Duration

	session *session
	started bool
	stopped bool

	// Offline preloading
	preloadCancel context.CancelFunc
	preloadDone   chan struct{}

	// State streams; subscribers must not call back into the Player
	currentTrack *observable.Value[*playlist.Track]
	isLoading    *observable.Value[bool]
	isPlaying    *observable.Value[bool]
	lastError    *observable.Value[error]
}

// NewPlayer creates a player for the configured playlist
func NewPlayer(cfg *config.Config, opts Options) (*Player, error) {
	if opts.Factory == nil {
		return nil, fmt.Errorf("media element factory is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	pl := playlist.FromConfig(cfg)
	if opts.Random != nil {
		pl.SetRandom(opts.Random)
	}

	loadTimeout := cfg.Playback.LoadTimeout
	if opts.Capabilities.ShorterLoadTimeout {
		loadTimeout = cfg.Playback.ShortLoadTimeout
	}
	if loadTimeout <= 0 {
		return nil, fmt.Errorf("load timeout must be positive, got %v", loadTimeout)
	}

	preload := backends.PreloadAuto
	if opts.Capabilities.PreferMetadataPreload {
		preload = backends.PreloadMetadata
	}

	return &Player{
		pl:           pl,
		newElement:   opts.Factory,
		cache:        opts.Cache,
		clock:        opts.Clock,
		preload:      preload,
		loadTimeout:  loadTimeout,
		currentTrack: observable.New[*playlist.Track](nil),
		isLoading:    observable.NewComparable(false),
		isPlaying:    observable.NewComparable(false),
		lastError:    observable.New[error](nil),
	}, nil
}

// CurrentTrack emits the active track on every selection
func (p *Player) CurrentTrack() *observable.Value[*playlist.Track] { return p.currentTrack }

// IsLoading is true from load start until the track is playable or the
// load timeout elapses
func (p *Player) IsLoading() *observable.Value[bool] { return p.isLoading }

// IsPlaying reflects actual playback, including forced stops
func (p *Player) IsPlaying() *observable.Value[bool] { return p.isPlaying }

// LastError holds the latest *LoadError or *PlaybackBlockedError, nil
// after a successful start
func (p *Player) LastError() *observable.Value[error] { return p.lastError }

// Tracks returns the playlist
func (p *Player) Tracks() []playlist.Track { return p.pl.GetAll() }

// Playlist returns the underlying playlist
func (p *Player) Playlist() *playlist.Playlist { return p.pl }

// LoadTimeout returns the effective load timeout
func (p *Player) LoadTimeout() time.Duration { return p.loadTimeout }

// Start selects the first track without playing it and begins caching the
// playlist for offline use
func (p *Player) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("player already started")
	}
	p.started = true

	p.advance(false, 0)

	if p.cache != nil {
		preloadCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		p.preloadCancel = cancel
		p.preloadDone = done
		urls := make([]string, 0, p.pl.Length())
		for _, track := range p.pl.GetAll() {
			urls = append(urls, p.pl.URL(track))
		}
		go func() {
			defer close(done)
			p.preloadAll(preloadCtx, urls)
		}()
	}
	p.mu.Unlock()
	return nil
}

// Stop tears down the live session, cancels preloading and detaches every
// subscriber. The Player cannot be restarted.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.teardown()
	p.isLoading.Update(false)
	p.isPlaying.Update(false)

	cancel, done := p.preloadCancel, p.preloadDone
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	p.currentTrack.Close()
	p.isLoading.Close()
	p.isPlaying.Close()
	p.lastError.Close()
	log.Info().Msg("Player stopped")
}

// SelectRandomTrack replaces the live session with a random track. With
// autoPlay, playback starts once the track is playable.
func (p *Player) SelectRandomTrack(autoPlay bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.advance(autoPlay, 0)
}

// ForceReload selects a new random track unconditionally, recovering from
// a load that appears stuck
func (p *Player) ForceReload() {
	log.Info().Msg("Force reloading track")
	p.SelectRandomTrack(false)
}

// TogglePlayback pauses when playing and otherwise tries to start.
// A refused start returns and publishes a *PlaybackBlockedError.
func (p *Player) TogglePlayback() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.session
	if s == nil {
		return ErrNoTrack
	}
	if s.state == StatePlaying || s.starting {
		return p.pause(s)
	}
	return p.play(s)
}

// Play starts or resumes playback; no-op while loading or already playing
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.session
	if s == nil {
		return ErrNoTrack
	}
	if s.state == StatePlaying || s.starting {
		return nil
	}
	return p.play(s)
}

// Pause pauses playback (can be resumed with Play)
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.session
	if s == nil {
		return nil
	}
	return p.pause(s)
}

// play attempts to start s; caller holds p.mu
func (p *Player) play(s *session) error {
	switch s.state {
	case StateLoading:
		log.Info().Msg("Audio still loading, please wait...")
		return nil
	case StateFailed:
		return s.lastErr
	}

	log.Debug().Msgf("Attempting to play track %d", s.track.ID)
	if err := s.element.Play(); err != nil {
		if errors.Is(err, backends.ErrPlaybackBlocked) {
			return p.blocked(s, err)
		}

		p.isPlaying.Update(false)
		loadErr := &LoadError{Track: s.track, Err: err}
		log.Error().Err(err).Msgf("Error playing track %d", s.track.ID)
		p.lastError.Set(loadErr)
		return loadErr
	}

	if !s.canPlay {
		// Ready by timeout: the element starts once buffered and reports
		// EventPlaying or EventError
		s.starting = true
		log.Info().Msgf("Track %d will start once buffered", s.track.ID)
		return nil
	}
	p.playing(s)
	return nil
}

// playing records that audio output for s has started; caller holds p.mu
func (p *Player) playing(s *session) {
	s.state = StatePlaying
	s.starting = false
	s.played = true
	if p.lastError.Get() != nil {
		p.lastError.Set(nil)
	}
	p.isPlaying.Update(true)
	log.Info().Msgf("Playing track %d: %s", s.track.ID, s.track.Title)
}

// blocked publishes a refused start. The session stays playable so a
// later user request can try again. Caller holds p.mu.
func (p *Player) blocked(s *session, err error) error {
	s.starting = false
	if s.state == StatePlaying {
		s.state = StatePaused
	}
	p.isPlaying.Update(false)

	blocked := &PlaybackBlockedError{Track: s.track, Err: err}
	log.Warn().Err(err).Msg("Audio play blocked, user interaction required")
	p.lastError.Set(blocked)
	return blocked
}

// pause pauses s; caller holds p.mu
func (p *Player) pause(s *session) error {
	// A pause during loading cancels a pending auto-play or deferred start
	s.autoPlay = false
	s.starting = false

	err := s.element.Pause()
	if s.state == StatePlaying {
		s.state = StatePaused
		log.Info().Msg("Pausing playback")
	}
	p.isPlaying.Update(false)
	return err
}

// advance tears down the live session and starts a random track. A track
// that fails to start is replaced while retries remain. Caller holds p.mu.
func (p *Player) advance(autoPlay bool, retries int) {
	for {
		p.teardown()

		track, index, err := p.pl.Random()
		if err != nil {
			log.Warn().Err(err).Msg("No track to select")
			p.isLoading.Update(false)
			p.isPlaying.Update(false)
			return
		}
		log.Info().Msgf("Selected track %d at index %d: %s (autoplay %v)", track.ID, index, track.Title, autoPlay)

		s, err := p.startSession(track, autoPlay, retries)
		if err == nil {
			return
		}
		p.fail(s, err)
		if retries <= 0 {
			return
		}
		retries--
	}
}

// teardown stops and releases the live session; caller holds p.mu
func (p *Player) teardown() {
	s := p.session
	if s == nil {
		return
	}
	p.session = nil

	if s.loadTimer != nil {
		s.loadTimer.Stop()
	}
	if err := s.element.Pause(); err != nil {
		log.Warn().Err(err).Str("session", s.id.String()).Msg("Pause during teardown failed")
	}
	if err := s.element.Release(); err != nil {
		log.Warn().Err(err).Str("session", s.id.String()).Msg("Release during teardown failed")
	}
	s.state = StateIdle
	log.Debug().Str("session", s.id.String()).Msg("Session released")
}

// fail terminates s with a load error; caller holds p.mu
func (p *Player) fail(s *session, err error) {
	if s.loadTimer != nil {
		s.loadTimer.Stop()
	}
	loadErr := &LoadError{Track: s.track, Err: err}
	s.state = StateFailed
	s.starting = false
	s.lastErr = loadErr

	log.Error().Err(err).Str("session", s.id.String()).Msgf("Audio loading error for track %d", s.track.ID)
	p.isLoading.Update(false)
	p.isPlaying.Update(false)
	p.lastError.Set(loadErr)

	// A cached copy that fails is fetched again next time
	if s.src.Path != "" && p.cache != nil {
		if err := p.cache.Invalidate(s.src.URL); err != nil {
			log.Warn().Err(err).Msgf("Failed to invalidate cached track %d", s.track.ID)
		}
	}
}

// markReady moves a loading session to ready and honours auto-play;
// caller holds p.mu
func (p *Player) markReady(s *session, reason string) {
	if s.state != StateLoading {
		return
	}
	if s.loadTimer != nil {
		s.loadTimer.Stop()
	}
	s.state = StateReady
	p.isLoading.Update(false)
	log.Info().Str("session", s.id.String()).Msgf("Audio %s ready to play (%s)", s.track.Filename, reason)

	if s.autoPlay {
		// Errors are published on LastError
		_ = p.play(s)
	}
}
