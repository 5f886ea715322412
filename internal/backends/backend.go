package backends

import (
	"errors"
	"time"
)

// ErrPlaybackBlocked is returned by Play when the output refuses to start
// without further user action
var ErrPlaybackBlocked = errors.New("playback blocked")

// Preload hints how much of a source the element fetches before CanPlay
type Preload int

const (
	// PreloadAuto buffers the whole track before signalling CanPlay
	PreloadAuto Preload = iota
	// PreloadMetadata reads only the header and streams the rest
	PreloadMetadata
)

func (p Preload) String() string {
	switch p {
	case PreloadAuto:
		return "auto"
	case PreloadMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// EventType enumerates media element lifecycle events
type EventType int

const (
	EventLoadStart EventType = iota
	EventCanPlay
	// EventPlaying reports that a Play deferred during loading has started
	EventPlaying
	EventEnded
	EventError
)

func (e EventType) String() string {
	switch e {
	case EventLoadStart:
		return "loadstart"
	case EventCanPlay:
		return "canplay"
	case EventPlaying:
		return "playing"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to a Handler; Err is set for EventError
type Event struct {
	Type EventType
	Err  error
}

// Handler receives element events in order from a goroutine owned by the
// element. Events still queued when Release is called are dropped.
type Handler func(Event)

// Source identifies the media to load. Path is a local file (a cache hit)
// and takes precedence over URL.
type Source struct {
	URL  string
	Path string
}

// Location returns the path if set, otherwise the URL
func (s Source) Location() string {
	if s.Path != "" {
		return s.Path
	}
	return s.URL
}

// MediaElement is a single playable audio element
type MediaElement interface {
	// Load starts loading src asynchronously. An error means loading could
	// not begin at all; later failures arrive as EventError.
	Load(src Source, preload Preload, h Handler) error

	// Playback control. Play before the element can play defers the start
	// and returns nil; the outcome then arrives as EventPlaying or as an
	// EventError that may wrap ErrPlaybackBlocked.
	Play() error  // Start or resume; may return ErrPlaybackBlocked
	Pause() error // Pause; no-op when not playing

	// Release stops event delivery and frees the element's resources. It
	// must not wait for a handler that is already running.
	Release() error

	// Timing returns elapsed and total duration; total is zero when unknown
	Timing() (elapsed, total time.Duration)
}

// Factory creates a new media element
type Factory func() MediaElement
