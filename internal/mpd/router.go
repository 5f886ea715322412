package mpd

import (
	"fmt"
	"strconv"
	"strings"
)

// protocolVersion is announced in the greeting
const protocolVersion = "0.25.0"

// handleCommand processes a single MPD command
func (s *Server) handleCommand(line string) string {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "OK\n"
	}

	command := strings.ToLower(parts[0])
	args := unquoteAll(parts[1:])

	switch command {
	case "ping":
		return "OK\n"

	case "play":
		return s.cmdPlay(args)

	case "pause":
		return s.cmdPause(args)

	case "stop":
		return s.cmdStop(args)

	case "next":
		return s.cmdNext(args)

	case "status":
		return s.cmdStatus(args)

	case "playlistinfo":
		return s.cmdPlaylistInfo(args)

	case "currentsong":
		return s.cmdCurrentSong(args)

	case "tagtypes":
		return s.cmdTagTypes(args)

	case "outputs":
		return s.cmdOutputs(args)

	case "decoders":
		return s.cmdDecoders(args)

	case "update":
		return s.cmdUpdate(args)

	case "single", "consume", "repeat", "random":
		return s.cmdMode(command, args)

	default:
		return ack(errUnknown, command, "unknown command")
	}
}

// MPD ACK error codes
const (
	errArg     = 2
	errUnknown = 5
	errNoExist = 50
	errSystem  = 52
)

func ack(code int, command, message string) string {
	return fmt.Sprintf("ACK [%d@0] {%s} %s\n", code, command, message)
}

// unquoteAll strips the double quotes clients put around arguments
func unquoteAll(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if unquoted, err := strconv.Unquote(arg); err == nil {
			arg = unquoted
		}
		out[i] = arg
	}
	return out
}
