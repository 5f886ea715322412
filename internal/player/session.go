package player

import (
	"errors"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/famish99/musicradio/internal/backends"
	"github.com/famish99/musicradio/internal/playlist"
)

// session binds one media element to one track
type session struct {
	id        uuid.UUID
	track     *playlist.Track
	element   backends.MediaElement
	src       backends.Source
	state     PlaybackState
	autoPlay  bool
	canPlay   bool // the element reported EventCanPlay
	starting  bool // a deferred Play awaits EventPlaying
	played    bool
	retries   int // replacements allowed if this track fails before playing
	loadTimer *clock.Timer
	lastErr   error
}

// startSession builds and loads a session for track and makes it live;
// caller holds p.mu and has torn down the previous session
func (p *Player) startSession(track *playlist.Track, autoPlay bool, retries int) (*session, error) {
	s := &session{
		id:       uuid.New(),
		track:    track,
		element:  p.newElement(),
		state:    StateLoading,
		autoPlay: autoPlay,
		retries:  retries,
	}
	p.session = s

	p.currentTrack.Set(track)
	p.isPlaying.Update(false)
	p.isLoading.Update(true)

	src := p.source(track)
	s.src = src
	log.Debug().
		Str("session", s.id.String()).
		Str("source", src.Location()).
		Str("preload", p.preload.String()).
		Msg("Loading track")

	if err := s.element.Load(src, p.preload, func(ev backends.Event) { p.handleEvent(s, ev) }); err != nil {
		return s, err
	}

	s.loadTimer = p.clock.AfterFunc(p.loadTimeout, func() { p.onLoadTimeout(s) })
	return s, nil
}

// source prefers the cached copy of a track
func (p *Player) source(track *playlist.Track) backends.Source {
	url := p.pl.URL(*track)
	if p.cache != nil {
		if path, ok := p.cache.Lookup(url); ok {
			return backends.Source{URL: url, Path: path}
		}
	}
	return backends.Source{URL: url}
}

func (p *Player) handleEvent(s *session, ev backends.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != s {
		log.Debug().Str("session", s.id.String()).Msgf("Ignoring %s from released session", ev.Type)
		return
	}

	switch ev.Type {
	case backends.EventLoadStart:
		if s.state == StateLoading {
			p.isLoading.Update(true)
		}

	case backends.EventCanPlay:
		s.canPlay = true
		p.markReady(s, "canplay")

	case backends.EventPlaying:
		if s.starting {
			p.playing(s)
		}

	case backends.EventEnded:
		log.Info().Msgf("Track %d finished", s.track.ID)
		s.state = StateEnded
		p.isPlaying.Update(false)
		// Load and play next random track
		p.advance(true, p.pl.Length()-1)

	case backends.EventError:
		if s.state == StateFailed {
			return
		}
		if errors.Is(ev.Err, backends.ErrPlaybackBlocked) {
			// Errors are published on LastError
			_ = p.blocked(s, ev.Err)
			return
		}
		p.fail(s, ev.Err)
		if s.retries > 0 && !s.played {
			log.Info().Msgf("Skipping failed track %d", s.track.ID)
			p.advance(true, s.retries-1)
		}
	}
}

func (p *Player) onLoadTimeout(s *session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != s || s.state != StateLoading {
		return
	}
	log.Warn().Msgf("Load timeout after %v, proceeding without canplay", p.loadTimeout)
	p.markReady(s, "timeout")
}
