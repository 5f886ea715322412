package player

import (
	"errors"
	"fmt"

	"github.com/famish99/musicradio/internal/playlist"
)

// ErrNoTrack is returned by playback controls before any track is loaded
var ErrNoTrack = errors.New("no track loaded")

// LoadError means a track failed to load or decode. Selecting another
// track recovers.
type LoadError struct {
	Track *playlist.Track
	Err   error
}

func (e *LoadError) Error() string {
	if e.Track == nil {
		return fmt.Sprintf("load failed: %v", e.Err)
	}
	return fmt.Sprintf("failed to load track %d (%s): %v", e.Track.ID, e.Track.Filename, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PlaybackBlockedError means the output refused to start playback until a
// user explicitly asks again.
type PlaybackBlockedError struct {
	Track *playlist.Track
	Err   error
}

func (e *PlaybackBlockedError) Error() string {
	if e.Track == nil {
		return fmt.Sprintf("playback blocked: %v", e.Err)
	}
	return fmt.Sprintf("playback of track %d blocked: %v", e.Track.ID, e.Err)
}

func (e *PlaybackBlockedError) Unwrap() error { return e.Err }
