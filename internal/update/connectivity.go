package update

import (
	"context"
	"net"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

// ConnectivitySource reports whether the network is reachable
type ConnectivitySource interface {
	// Online probes once
	Online(ctx context.Context) bool
	// Watch blocks until ctx is done, calling changed on every transition
	// relative to initial
	Watch(ctx context.Context, initial bool, changed func(online bool))
}

// DialFunc matches net.Dialer.DialContext
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DialProbe considers the host online when a TCP dial succeeds
type DialProbe struct {
	Address  string
	Interval time.Duration
	Timeout  time.Duration
	Dial     DialFunc
	Clock    clock.Clock
}

// NewDialProbe probes address every interval
func NewDialProbe(address string, interval time.Duration) *DialProbe {
	d := &net.Dialer{}
	return &DialProbe{
		Address:  address,
		Interval: interval,
		Timeout:  3 * time.Second,
		Dial:     d.DialContext,
		Clock:    clock.New(),
	}
}

func (p *DialProbe) Online(ctx context.Context) bool {
	if p.Address == "" {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	conn, err := p.Dial(ctx, "tcp", p.Address)
	if err != nil {
		log.Debug().Err(err).Msgf("Connectivity probe to %s failed", p.Address)
		return false
	}
	conn.Close()
	return true
}

func (p *DialProbe) Watch(ctx context.Context, initial bool, changed func(online bool)) {
	if p.Interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := p.Clock.Ticker(p.Interval)
	defer ticker.Stop()

	last := initial
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			online := p.Online(ctx)
			if ctx.Err() != nil {
				return
			}
			if online != last {
				last = online
				changed(online)
			}
		}
	}
}
