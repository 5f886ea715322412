package mpd

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/famish99/musicradio/internal/player"
)

// cmdPlay handles the 'play' command. The playlist is a shuffled radio,
// so a position argument is accepted and ignored.
func (s *Server) cmdPlay(_ []string) string {
	if err := s.player.Play(); err != nil {
		return playbackAck("play", err)
	}
	return "OK\n"
}

// cmdPause handles the 'pause' command
// pause [0|1] - without an argument, toggles
func (s *Server) cmdPause(args []string) string {
	var err error
	if len(args) == 0 {
		err = s.player.TogglePlayback()
	} else {
		switch args[0] {
		case "1":
			err = s.player.Pause()
		case "0":
			err = s.player.Play()
		default:
			return ack(errArg, "pause", "invalid argument")
		}
	}

	if err != nil {
		return playbackAck("pause", err)
	}
	return "OK\n"
}

// cmdStop handles the 'stop' command; the live track is kept so play resumes it
func (s *Server) cmdStop(_ []string) string {
	if err := s.player.Pause(); err != nil {
		log.Warn().Err(err).Msg("Stop failed")
		return ack(errSystem, "stop", err.Error())
	}
	return "OK\n"
}

// cmdNext handles the 'next' command by switching to another random track
func (s *Server) cmdNext(_ []string) string {
	s.player.SelectRandomTrack(true)
	return "OK\n"
}

func playbackAck(command string, err error) string {
	if errors.Is(err, player.ErrNoTrack) {
		return ack(errNoExist, command, err.Error())
	}
	return ack(errSystem, command, err.Error())
}
