package mpd

import (
	"strings"
)

// cmdPlaylistInfo handles the 'playlistinfo' command
func (s *Server) cmdPlaylistInfo(_ []string) string {
	pl := s.player.Playlist()
	tracks := pl.GetAll()

	var info strings.Builder
	for i := range tracks {
		info.WriteString(s.formatTrackInfo(&tracks[i], pl.URL(tracks[i]), i, nil))
	}
	info.WriteString("OK\n")

	return info.String()
}

// cmdCurrentSong handles the 'currentsong' command
func (s *Server) cmdCurrentSong(_ []string) string {
	track := s.player.CurrentTrack().Get()
	if track == nil {
		return "OK\n" // No current song
	}

	pl := s.player.Playlist()

	var info strings.Builder
	info.WriteString(s.formatTrackInfo(track, pl.URL(*track), pl.CurrentIndex(), s.player.Timing()))
	info.WriteString("OK\n")

	return info.String()
}
