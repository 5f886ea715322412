package mpd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/famish99/musicradio/internal/decoder"
	"github.com/famish99/musicradio/internal/player"
	"github.com/famish99/musicradio/internal/playlist"
)

// formatTrackInfo renders one song block. Tags are filtered by tagtypes;
// timing is only known for the live track.
func (s *Server) formatTrackInfo(track *playlist.Track, uri string, pos int, timing *player.PlaybackTiming) string {
	var b strings.Builder
	fmt.Fprintf(&b, "file: %s\n", uri)

	s.tagTypesMu.RLock()
	if s.enabledTags["title"] && track.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", track.Title)
	}
	if s.enabledTags["name"] && track.Filename != "" {
		fmt.Fprintf(&b, "Name: %s\n", track.Filename)
	}
	s.tagTypesMu.RUnlock()

	if timing != nil {
		fmt.Fprintf(&b, "Time: %d\n", int(timing.Duration.Seconds()))
		fmt.Fprintf(&b, "duration: %.3f\n", timing.Duration.Seconds())
	}
	fmt.Fprintf(&b, "Pos: %d\nId: %d\n", pos, track.ID)
	return b.String()
}

// cmdTagTypes lists the enabled song tags or changes the set
func (s *Server) cmdTagTypes(args []string) string {
	if len(args) == 0 {
		s.tagTypesMu.RLock()
		defer s.tagTypesMu.RUnlock()

		var b strings.Builder
		tags := make([]string, 0, len(s.enabledTags))
		for tag := range s.enabledTags {
			tags = append(tags, tag)
		}
		slices.Sort(tags)
		for _, tag := range tags {
			if s.enabledTags[tag] {
				fmt.Fprintf(&b, "tagtype: %s\n", tag)
			}
		}
		b.WriteString("OK\n")
		return b.String()
	}

	sub := strings.ToLower(args[0])
	switch sub {
	case "clear", "all":
		s.setAllTags(sub == "all")
	case "enable", "disable":
		s.setTags(args[1:], sub == "enable")
	default:
		return ack(errArg, "tagtypes", "unknown subcommand: "+sub)
	}
	return "OK\n"
}

func (s *Server) setAllTags(on bool) {
	s.tagTypesMu.Lock()
	defer s.tagTypesMu.Unlock()
	for tag := range s.enabledTags {
		s.enabledTags[tag] = on
	}
}

// setTags only touches tags the server can produce
func (s *Server) setTags(names []string, on bool) {
	s.tagTypesMu.Lock()
	defer s.tagTypesMu.Unlock()
	for _, name := range names {
		tag := strings.ToLower(name)
		if _, known := s.enabledTags[tag]; known {
			s.enabledTags[tag] = on
		}
	}
}

// cmdDecoders reports the beep decoders and the ffmpeg fallback
func (s *Server) cmdDecoders(_ []string) string {
	var b strings.Builder
	for _, p := range decoder.Plugins {
		fmt.Fprintf(&b, "plugin: %s\n", p.Name)
		for _, suffix := range p.Suffixes {
			fmt.Fprintf(&b, "suffix: %s\n", suffix)
		}
	}
	b.WriteString("OK\n")
	return b.String()
}
