package mpd

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog/log"
)

// handleConnection handles a single MPD client connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	log.Info().Msgf("New MPD client connected: %s", conn.RemoteAddr())

	// Send MPD greeting
	if _, err := fmt.Fprintf(conn, "OK MPD %s\n", protocolVersion); err != nil {
		return
	}

	// Lines are read on their own goroutine so idle can wait on both the
	// client and subsystem notifications
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Debug().Err(err).Msg("Connection error")
		}
	}()

	var idle *idleConnection
	defer func() {
		if idle != nil {
			s.unregisterIdle(idle)
		}
	}()

	inCommandList := false
	commandListOk := false // Track if we need list_OK after each command
	var commandList []string

	for {
		var notify <-chan string
		if idle != nil {
			notify = idle.notify
		}

		var line string
		select {
		case subsystem := <-notify:
			s.unregisterIdle(idle)
			response := idle.changed(subsystem)
			idle = nil
			if !s.write(conn, response) {
				return
			}
			continue
		case l, ok := <-lines:
			if !ok {
				log.Info().Msgf("MPD client disconnected: %s", conn.RemoteAddr())
				return
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}
		log.Debug().Msgf("MPD command: %s", line)

		// Only noidle is accepted while idling
		if idle != nil {
			if strings.ToLower(line) == "noidle" {
				s.unregisterIdle(idle)
				idle = nil
				if !s.write(conn, "OK\n") {
					return
				}
			} else {
				log.Warn().Msgf("Ignoring %q while idle", line)
			}
			continue
		}

		// Handle command list mode
		switch line {
		case "command_list_begin", "command_list_ok_begin":
			inCommandList = true
			commandListOk = line == "command_list_ok_begin"
			commandList = commandList[:0]
			continue
		case "command_list_end":
			if inCommandList {
				response := s.runCommandList(commandList, commandListOk)
				inCommandList = false
				commandList = commandList[:0]
				if !s.write(conn, response) {
					return
				}
			}
			continue
		}

		if inCommandList {
			commandList = append(commandList, line)
			continue
		}

		parts := strings.Fields(line)
		switch strings.ToLower(parts[0]) {
		case "idle":
			idle = newIdleConnection(lowerAll(unquoteAll(parts[1:])))
			s.registerIdle(idle)
			continue
		case "noidle":
			if !s.write(conn, "OK\n") {
				return
			}
			continue
		case "close":
			log.Info().Msgf("MPD client closed connection: %s", conn.RemoteAddr())
			return
		}

		if !s.write(conn, s.handleCommand(line)) {
			return
		}
	}
}

// runCommandList executes buffered commands, stopping at the first error
func (s *Server) runCommandList(commands []string, listOk bool) string {
	var responses strings.Builder
	for i, line := range commands {
		response := s.handleCommand(line)
		if strings.HasPrefix(response, "ACK ") {
			// Report the failing command's position in the list
			responses.WriteString(strings.Replace(response, "@0]", fmt.Sprintf("@%d]", i), 1))
			return responses.String()
		}
		// Buffer response (strip the final OK)
		responses.WriteString(strings.TrimSuffix(response, "OK\n"))
		if listOk {
			responses.WriteString("list_OK\n")
		}
	}
	responses.WriteString("OK\n")
	return responses.String()
}

func (s *Server) write(conn net.Conn, response string) bool {
	if _, err := fmt.Fprint(conn, response); err != nil {
		log.Debug().Err(err).Msg("Write to MPD client failed")
		return false
	}
	return true
}

func lowerAll(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = strings.ToLower(arg)
	}
	return out
}
