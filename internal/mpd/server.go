package mpd

import (
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/famish99/musicradio/internal/player"
	"github.com/famish99/musicradio/internal/playlist"
	"github.com/famish99/musicradio/internal/update"
)

// Server implements MPD protocol server
type Server struct {
	mu          sync.Mutex
	listener    net.Listener
	player      *player.Player
	monitor     *update.Monitor
	addr        string
	running     bool
	enabledTags map[string]bool // Track which tag types are enabled
	tagTypesMu  sync.RWMutex    // Protects enabledTags

	// Observable subscriptions released on Stop
	unsubscribe []func()

	// Idle connection management
	idleMu    sync.RWMutex
	idleConns map[*idleConnection]bool
}

// NewServer creates a new MPD protocol server. The monitor may be nil.
func NewServer(addr string, p *player.Player, m *update.Monitor) *Server {
	// Initialize with all tags enabled by default
	enabledTags := map[string]bool{
		"title": true,
		"name":  true,
	}

	s := &Server{
		addr:        addr,
		player:      p,
		monitor:     m,
		enabledTags: enabledTags,
		idleConns:   make(map[*idleConnection]bool),
	}

	// Player and update state changes wake idle clients
	s.unsubscribe = append(s.unsubscribe,
		p.CurrentTrack().Subscribe(func(*playlist.Track) { s.NotifySubsystemChange("player") }),
		p.IsPlaying().Subscribe(func(bool) { s.NotifySubsystemChange("player") }),
		p.IsLoading().Subscribe(func(bool) { s.NotifySubsystemChange("player") }),
	)
	if m != nil {
		s.unsubscribe = append(s.unsubscribe,
			m.UpdateAvailable().Subscribe(func(bool) { s.NotifySubsystemChange("update") }),
			m.IsOnline().Subscribe(func(bool) { s.NotifySubsystemChange("output") }),
		)
	}

	return s
}

// Addr returns the listening address once started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start starts the MPD server
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start MPD server: %w", err)
	}

	s.listener = listener
	s.running = true

	log.Info().Msgf("MPD server listening on %s", listener.Addr())

	go s.acceptLoop(listener)

	return nil
}

// Stop stops the MPD server and detaches it from player state
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.unsubscribe = nil

	if !s.running {
		return nil
	}

	s.running = false
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return
			}
			log.Warn().Err(err).Msg("Accept error")
			continue
		}

		go s.handleConnection(conn)
	}
}
