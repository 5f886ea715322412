package player

import "time"

// PlaybackState is the lifecycle state of the live session
type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateEnded
	StateFailed
)

func (s PlaybackState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// GetState returns the state of the live session
func (p *Player) GetState() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return StateIdle
	}
	return p.session.state
}

// PlaybackTiming contains current playback timing information
type PlaybackTiming struct {
	Elapsed   time.Duration
	Duration  time.Duration
	Remaining time.Duration
}

// Timing returns timing for the live session.
// Returns nil while loading or when the duration is unknown.
func (p *Player) Timing() *PlaybackTiming {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.session
	if s == nil || s.state == StateLoading || s.state == StateFailed {
		return nil
	}

	elapsed, duration := s.element.Timing()
	if duration <= 0 {
		return nil
	}
	if elapsed > duration {
		elapsed = duration
	}

	return &PlaybackTiming{
		Elapsed:   elapsed,
		Duration:  duration,
		Remaining: duration - elapsed,
	}
}
