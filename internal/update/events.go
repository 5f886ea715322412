package update

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// VersionReady announces that a new version has been staged
type VersionReady struct {
	Version string
}

// VersionManager is a platform capability that announces and activates
// new versions
type VersionManager interface {
	Enabled() bool
	VersionReady() <-chan VersionReady
	CheckForUpdate(ctx context.Context) (bool, error)
	ActivateUpdate(ctx context.Context) error
}

// runner is implemented by managers that need a background loop
type runner interface {
	Run(ctx context.Context) error
}

// EventSource adapts a VersionManager to UpdateSource
type EventSource struct {
	mgr VersionManager
}

// NewEventSource creates an event-driven source
func NewEventSource(mgr VersionManager) *EventSource {
	return &EventSource{mgr: mgr}
}

func (s *EventSource) Name() string { return "events" }

func (s *EventSource) Watch(ctx context.Context, ready func(version string)) error {
	if r, ok := s.mgr.(runner); ok {
		go func() {
			if err := r.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Version manager stopped")
			}
		}()
	}

	events := s.mgr.VersionReady()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			ready(ev.Version)
		}
	}
}

func (s *EventSource) Check(ctx context.Context) (bool, error) {
	return s.mgr.CheckForUpdate(ctx)
}

func (s *EventSource) Activate(ctx context.Context) error {
	return s.mgr.ActivateUpdate(ctx)
}

func (s *EventSource) PollInterval() time.Duration { return 0 }
