package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/famish99/musicradio/internal/player"
	"github.com/famish99/musicradio/internal/update"
)

// Server exposes the player and update monitor over HTTP
type Server struct {
	addr    string
	player  *player.Player
	monitor *update.Monitor
	engine  *gin.Engine

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	// Cancelled on Shutdown so event streams end
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// NewServer builds the router. The monitor may be nil, which disables the
// update endpoints.
func NewServer(addr string, p *player.Player, m *update.Monitor) *Server {
	s := &Server{
		addr:    addr,
		player:  p,
		monitor: m,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	api := r.Group("/api")
	api.GET("/state", s.getState)
	api.GET("/tracks", s.getTracks)
	api.GET("/events", s.streamEvents)

	api.POST("/playback/toggle", s.togglePlayback)
	api.POST("/playback/next", s.nextTrack)
	api.POST("/playback/reload", s.forceReload)

	api.POST("/update/check", s.checkForUpdates)
	api.POST("/update/apply", s.applyUpdate)
	api.POST("/app/resume", s.resume)

	s.engine = r
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler { return s.engine }

// Addr returns the listening address once started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start listens and serves in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return fmt.Errorf("http server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	srv := &http.Server{
		Handler:     s.engine,
		BaseContext: func(net.Listener) context.Context { return s.baseCtx },
	}
	s.srv = srv
	s.listener = listener

	log.Info().Msgf("HTTP API listening on %s", listener.Addr())

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()
	return nil
}

// Shutdown ends event streams and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.baseCancel()

	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
