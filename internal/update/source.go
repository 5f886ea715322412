package update

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/famish99/musicradio/internal/config"
	"github.com/famish99/musicradio/internal/platform"
)

// UpdateSource detects and activates new application versions
type UpdateSource interface {
	// Name identifies the source in logs
	Name() string
	// Watch blocks until ctx is done, calling ready for every version the
	// source is told about
	Watch(ctx context.Context, ready func(version string)) error
	// Check asks whether a newer version is pending
	Check(ctx context.Context) (bool, error)
	// Activate makes the pending version the one the next start runs
	Activate(ctx context.Context) error
	// PollInterval is how often Check should run; zero disables polling
	PollInterval() time.Duration
}

// SelectSource picks the event-driven source when the platform supports it
// and falls back to fingerprint polling
func SelectSource(cfg *config.Config, caps platform.Capabilities, mgr VersionManager, fingerprints FingerprintStore) UpdateSource {
	if caps.UpdateEvents && mgr != nil && mgr.Enabled() {
		log.Info().Msg("Update detection: version events")
		return NewEventSource(mgr)
	}
	if cfg.Update.VersionURL != "" && fingerprints != nil {
		log.Info().Msgf("Update detection: polling %s every %v", cfg.Update.VersionURL, cfg.Update.PollInterval)
		return NewPollingSource(cfg.Update.VersionURL, fingerprints, cfg.Update.PollInterval)
	}
	log.Info().Msg("Update detection disabled")
	return NoopSource{}
}

// NoopSource never reports an update
type NoopSource struct{}

func (NoopSource) Name() string { return "none" }

func (NoopSource) Watch(ctx context.Context, ready func(string)) error {
	<-ctx.Done()
	return nil
}

func (NoopSource) Check(context.Context) (bool, error) { return false, nil }
func (NoopSource) Activate(context.Context) error      { return nil }
func (NoopSource) PollInterval() time.Duration         { return 0 }
