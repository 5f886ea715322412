package httpapi

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/famish99/musicradio/internal/playlist"
)

// streamEvents sends a "state" server-sent event on connect and after every
// state change. Bursts of changes collapse into one event.
func (s *Server) streamEvents(c *gin.Context) {
	changed := make(chan struct{}, 1)
	signal := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}

	unsubscribe := []func(){
		s.player.CurrentTrack().Subscribe(func(*playlist.Track) { signal() }),
		s.player.IsLoading().Subscribe(func(bool) { signal() }),
		s.player.IsPlaying().Subscribe(func(bool) { signal() }),
		s.player.LastError().Subscribe(func(error) { signal() }),
	}
	if s.monitor != nil {
		unsubscribe = append(unsubscribe,
			s.monitor.IsOnline().Subscribe(func(bool) { signal() }),
			s.monitor.UpdateAvailable().Subscribe(func(bool) { signal() }),
		)
	}
	defer func() {
		for _, fn := range unsubscribe {
			fn()
		}
	}()

	log.Debug().Msgf("Event stream opened by %s", c.ClientIP())

	c.Header("Cache-Control", "no-cache")
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-changed:
			c.SSEvent("state", s.snapshot())
			return true
		case <-ctx.Done():
			return false
		}
	})

	log.Debug().Msgf("Event stream closed by %s", c.ClientIP())
}
