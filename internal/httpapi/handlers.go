package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/famish99/musicradio/internal/player"
)

type trackResponse struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type timingResponse struct {
	Elapsed   float64 `json:"elapsed"`
	Duration  float64 `json:"duration"`
	Remaining float64 `json:"remaining"`
}

type stateResponse struct {
	Track   *trackResponse  `json:"track"`
	State   string          `json:"state"`
	Loading bool            `json:"loading"`
	Playing bool            `json:"playing"`
	Timing  *timingResponse `json:"timing,omitempty"`
	Error   string          `json:"error,omitempty"`
	Blocked bool            `json:"blocked,omitempty"`

	Online          bool   `json:"online"`
	UpdateAvailable bool   `json:"update_available"`
	UpdateSource    string `json:"update_source,omitempty"`
}

// snapshot reads the current state; it takes the player's lock, so it
// must not run inside a subscriber
func (s *Server) snapshot() stateResponse {
	p := s.player
	resp := stateResponse{
		State:   p.GetState().String(),
		Loading: p.IsLoading().Get(),
		Playing: p.IsPlaying().Get(),
		Online:  true,
	}

	if track := p.CurrentTrack().Get(); track != nil {
		resp.Track = &trackResponse{ID: track.ID, Title: track.Title, URL: p.Playlist().URL(*track)}
	}
	if timing := p.Timing(); timing != nil {
		resp.Timing = &timingResponse{
			Elapsed:   timing.Elapsed.Seconds(),
			Duration:  timing.Duration.Seconds(),
			Remaining: timing.Remaining.Seconds(),
		}
	}
	if err := p.LastError().Get(); err != nil {
		resp.Error = err.Error()
		var blocked *player.PlaybackBlockedError
		resp.Blocked = errors.As(err, &blocked)
	}

	if s.monitor != nil {
		resp.Online = s.monitor.IsOnline().Get()
		resp.UpdateAvailable = s.monitor.UpdateAvailable().Get()
		resp.UpdateSource = s.monitor.SourceName()
	}
	return resp
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) getTracks(c *gin.Context) {
	pl := s.player.Playlist()
	tracks := pl.GetAll()

	resp := make([]trackResponse, 0, len(tracks))
	for _, t := range tracks {
		resp = append(resp, trackResponse{ID: t.ID, Title: t.Title, URL: pl.URL(t)})
	}
	c.JSON(http.StatusOK, gin.H{"tracks": resp})
}

func (s *Server) togglePlayback(c *gin.Context) {
	if err := s.player.TogglePlayback(); err != nil {
		playbackError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) nextTrack(c *gin.Context) {
	s.player.SelectRandomTrack(true)
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) forceReload(c *gin.Context) {
	s.player.ForceReload()
	c.JSON(http.StatusOK, s.snapshot())
}

// playbackError maps player errors onto status codes. A blocked start is a
// conflict the client resolves by asking the user to tap play.
func playbackError(c *gin.Context, err error) {
	var blocked *player.PlaybackBlockedError
	var loadErr *player.LoadError
	switch {
	case errors.As(err, &blocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "blocked": true})
	case errors.Is(err, player.ErrNoTrack):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &loadErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) requireMonitor(c *gin.Context) bool {
	if s.monitor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "update monitor disabled"})
		return false
	}
	return true
}

func (s *Server) checkForUpdates(c *gin.Context) {
	if !s.requireMonitor(c) {
		return
	}
	s.monitor.CheckForUpdates(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"update_available": s.monitor.UpdateAvailable().Get()})
}

// applyUpdate answers before activating, since a successful reload replaces
// the process
func (s *Server) applyUpdate(c *gin.Context) {
	if !s.requireMonitor(c) {
		return
	}
	if s.monitor.Applying() {
		c.JSON(http.StatusConflict, gin.H{"error": "update already being applied"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "applying"})
	c.Writer.Flush()

	go s.monitor.ApplyUpdate(context.Background())
}

func (s *Server) resume(c *gin.Context) {
	if s.monitor != nil {
		s.monitor.Resume()
	}
	c.Status(http.StatusNoContent)
}
