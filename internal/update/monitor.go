package update

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/famish99/musicradio/internal/observable"
)

// Options carries the Monitor's collaborators
type Options struct {
	Source UpdateSource
	// Connectivity may be nil, in which case the host is assumed online
	Connectivity ConnectivitySource
	Reloader     Reloader
	// SafetyInterval forces a check on long-lived processes
	SafetyInterval time.Duration
	Clock          clock.Clock
	// CheckTimeout bounds each version check
	CheckTimeout time.Duration
}

// Monitor tracks connectivity and new application versions
type Monitor struct {
	source         UpdateSource
	conn           ConnectivitySource
	reloader       Reloader
	clock          clock.Clock
	safetyInterval time.Duration
	checkTimeout   time.Duration

	isOnline        *observable.Value[bool]
	updateAvailable *observable.Value[bool]

	// Set once ApplyUpdate runs; nothing changes state afterwards
	applying atomic.Bool

	// wg.Add happens under mu and only while not stopped
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewMonitor creates a monitor; Start launches its background work
func NewMonitor(opts Options) (*Monitor, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("update source is required")
	}
	if opts.Reloader == nil {
		return nil, fmt.Errorf("reloader is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 30 * time.Second
	}

	return &Monitor{
		source:          opts.Source,
		conn:            opts.Connectivity,
		reloader:        opts.Reloader,
		clock:           opts.Clock,
		safetyInterval:  opts.SafetyInterval,
		checkTimeout:    opts.CheckTimeout,
		isOnline:        observable.New(true),
		updateAvailable: observable.NewComparable(false),
	}, nil
}

// IsOnline emits on connectivity transitions
func (m *Monitor) IsOnline() *observable.Value[bool] { return m.isOnline }

// UpdateAvailable is true from detection until an activation succeeds
func (m *Monitor) UpdateAvailable() *observable.Value[bool] { return m.updateAvailable }

// SourceName names the active update source
func (m *Monitor) SourceName() string { return m.source.Name() }

// Start seeds connectivity, runs an initial check and launches the
// watchers and tickers
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("monitor already started")
	}
	if m.stopped {
		m.mu.Unlock()
		return fmt.Errorf("monitor stopped")
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	ctx = m.ctx
	m.mu.Unlock()

	// Dial without holding mu
	online := true
	if m.conn != nil {
		online = m.conn.Online(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}

	m.isOnline.Set(online)
	log.Info().Msgf("Online status: %v", online)

	m.goWithContext(func() {
		err := m.source.Watch(ctx, func(version string) {
			if m.applying.Load() {
				return
			}
			log.Info().Msgf("New version ready: %s", version)
			m.markAvailable()
		})
		if err != nil {
			log.Error().Err(err).Msgf("Update source %s stopped", m.source.Name())
		}
	})

	if m.conn != nil {
		m.goWithContext(func() {
			m.conn.Watch(ctx, online, func(online bool) {
				m.isOnline.Set(online)
				log.Info().Msgf("Online status: %v", online)
			})
		})
	}

	m.goWithContext(func() { m.schedule(ctx) })
	return nil
}

// goWithContext runs fn tracked by wg; caller holds m.mu
func (m *Monitor) goWithContext(fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn()
	}()
}

// schedule runs the initial check, the source's poll and the safety net
func (m *Monitor) schedule(ctx context.Context) {
	var pollC, safetyC <-chan time.Time
	if interval := m.source.PollInterval(); interval > 0 {
		poll := m.clock.Ticker(interval)
		defer poll.Stop()
		pollC = poll.C
	}
	if m.safetyInterval > 0 {
		safety := m.clock.Ticker(m.safetyInterval)
		defer safety.Stop()
		safetyC = safety.C
	}

	m.CheckForUpdates(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollC:
			m.CheckForUpdates(ctx)
		case <-safetyC:
			log.Debug().Msg("Safety-net update check")
			m.CheckForUpdates(ctx)
		}
	}
}

// Stop cancels background work and detaches every subscriber
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	m.isOnline.Close()
	m.updateAvailable.Close()
}

// CheckForUpdates asks the source for a newer version. It is safe to call
// concurrently; failures are logged and never returned.
func (m *Monitor) CheckForUpdates(ctx context.Context) {
	if m.applying.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	available, err := m.source.Check(ctx)
	if err != nil {
		checkErr := &UpdateCheckError{Source: m.source.Name(), Err: err}
		log.Warn().Err(checkErr).Msg("Update check failed")
		return
	}
	if available && !m.applying.Load() {
		m.markAvailable()
	}
}

// Resume checks for updates in the background; call it when the user
// returns to the app
func (m *Monitor) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := m.ctx
	if m.stopped || ctx == nil {
		return
	}
	log.Debug().Msg("Resumed, checking for updates")
	m.goWithContext(func() { m.CheckForUpdates(ctx) })
}

// ApplyUpdate activates the pending version and reloads exactly once, even
// when activation fails. Only the first call has any effect.
func (m *Monitor) ApplyUpdate(ctx context.Context) {
	if !m.applying.CompareAndSwap(false, true) {
		log.Warn().Msg("Update already being applied")
		return
	}

	if err := m.source.Activate(ctx); err != nil {
		applyErr := &UpdateApplyError{Err: err}
		log.Error().Err(applyErr).Msg("Reloading on the current version")
	} else {
		m.updateAvailable.Update(false)
	}

	if err := m.reloader.Reload(); err != nil {
		log.Error().Err(err).Msg("Reload failed")
	}
}

// Applying reports whether ApplyUpdate has been called
func (m *Monitor) Applying() bool { return m.applying.Load() }

func (m *Monitor) markAvailable() {
	if m.updateAvailable.Update(true) {
		log.Info().Msg("Update available")
	}
}
