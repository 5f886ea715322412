package mpd

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/famish99/musicradio/internal/player"
)

// cmdStatus handles the 'status' command
func (s *Server) cmdStatus(_ []string) string {
	pl := s.player.Playlist()

	var status strings.Builder
	status.WriteString("volume: 100\n")
	status.WriteString("repeat: 1\n")
	status.WriteString("random: 1\n")
	status.WriteString("single: 0\n")
	status.WriteString("consume: 0\n")
	status.WriteString("playlist: 1\n")
	status.WriteString(fmt.Sprintf("playlistlength: %d\n", pl.Length()))
	status.WriteString(fmt.Sprintf("state: %s\n", mpdState(s.player.GetState())))

	if track := s.player.CurrentTrack().Get(); track != nil {
		status.WriteString(fmt.Sprintf("song: %d\n", pl.CurrentIndex()))
		status.WriteString(fmt.Sprintf("songid: %d\n", track.ID))
	}

	// Add timing information if available
	if timing := s.player.Timing(); timing != nil {
		// Legacy "time" field (format: elapsed:total)
		status.WriteString(fmt.Sprintf("time: %d:%d\n", int(timing.Elapsed.Seconds()), int(timing.Duration.Seconds())))
		status.WriteString(fmt.Sprintf("elapsed: %.3f\n", timing.Elapsed.Seconds()))
		status.WriteString(fmt.Sprintf("duration: %.3f\n", timing.Duration.Seconds()))
	}

	if err := s.player.LastError().Get(); err != nil {
		status.WriteString(fmt.Sprintf("error: %s\n", err))
	}

	status.WriteString("OK\n")

	return status.String()
}

// mpdState maps a session state onto MPD's play/pause/stop
func mpdState(state player.PlaybackState) string {
	switch state {
	case player.StatePlaying:
		return "play"
	case player.StatePaused:
		return "pause"
	default:
		return "stop"
	}
}

// cmdOutputs handles the 'outputs' command
// Reports the local speaker; the online attribute mirrors connectivity
func (s *Server) cmdOutputs(_ []string) string {
	online := 1
	if s.monitor != nil && !s.monitor.IsOnline().Get() {
		online = 0
	}

	var response strings.Builder
	response.WriteString("outputid: 0\n")
	response.WriteString("outputname: Speaker\n")
	response.WriteString("plugin: beep\n")
	response.WriteString("outputenabled: 1\n")
	response.WriteString(fmt.Sprintf("attribute: online=%d\n", online))
	response.WriteString("OK\n")

	return response.String()
}

// cmdUpdate handles the 'update' command by checking for a new release
func (s *Server) cmdUpdate(_ []string) string {
	if s.monitor == nil {
		return ack(errSystem, "update", "update monitor disabled")
	}

	go s.monitor.CheckForUpdates(context.Background())

	return "updating_db: 1\nOK\n"
}

// cmdMode handles 'single', 'consume', 'repeat' and 'random'
// The radio always repeats at random; the modes are accepted but fixed
func (s *Server) cmdMode(command string, args []string) string {
	if len(args) == 0 {
		return ack(errArg, command, "missing argument")
	}

	// Validate argument
	if args[0] != "0" && args[0] != "1" {
		return ack(errArg, command, "invalid argument")
	}

	log.Debug().Msgf("%s mode set to: %s (ignored)", command, args[0])

	return "OK\n"
}
