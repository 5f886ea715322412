package mpd

import (
	"github.com/rs/zerolog/log"
)

// idleConnection represents a connection waiting in idle mode
type idleConnection struct {
	subsystems map[string]bool // Subsystems to watch (empty = all)
	notify     chan string     // Channel to send subsystem changes
}

func newIdleConnection(subsystems []string) *idleConnection {
	idle := &idleConnection{
		subsystems: make(map[string]bool, len(subsystems)),
		notify:     make(chan string, 16),
	}
	for _, sub := range subsystems {
		idle.subsystems[sub] = true
	}
	return idle
}

// changed drains every pending notification after the first, dropping
// duplicates, and formats the idle response
func (idle *idleConnection) changed(first string) string {
	seen := map[string]bool{first: true}
	response := "changed: " + first + "\n"
	for {
		select {
		case sub := <-idle.notify:
			if !seen[sub] {
				seen[sub] = true
				response += "changed: " + sub + "\n"
			}
		default:
			return response + "OK\n"
		}
	}
}

// registerIdle registers an idle connection to receive notifications
func (s *Server) registerIdle(idle *idleConnection) {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	s.idleConns[idle] = true
	log.Debug().Msgf("Registered idle connection (total: %d)", len(s.idleConns))
}

// unregisterIdle removes an idle connection from notifications
func (s *Server) unregisterIdle(idle *idleConnection) {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	delete(s.idleConns, idle)
	log.Debug().Msgf("Unregistered idle connection (total: %d)", len(s.idleConns))
}

// NotifySubsystemChange notifies all idle connections about a subsystem
// change. It never blocks.
func (s *Server) NotifySubsystemChange(subsystem string) {
	s.idleMu.RLock()
	defer s.idleMu.RUnlock()

	for idle := range s.idleConns {
		// Check if this connection is watching this subsystem
		if len(idle.subsystems) == 0 || idle.subsystems[subsystem] {
			select {
			case idle.notify <- subsystem:
			default:
				log.Warn().Msg("Idle notification channel full")
			}
		}
	}
}
