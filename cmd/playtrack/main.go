// Command playtrack plays a single file or URL through the speaker backend,
// logging every media event. It is a manual check for audio output.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/famish99/musicradio/internal/backends"
	"github.com/famish99/musicradio/internal/backends/beep"
	"github.com/famish99/musicradio/internal/decoder"
	"github.com/famish99/musicradio/internal/playlist"
)

var (
	audioFile  = flag.String("file", "", "Audio file or URL to play (required)")
	trackTitle = flag.String("title", "Test Track", "Track title")
	metadata   = flag.Bool("metadata", false, "Stream instead of buffering the whole track")
)

func main() {
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	// Validate required arguments
	if *audioFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -file <path_or_url> [-title <title>] [-metadata]\n", os.Args[0])
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Msgf("=== Playing %q ===", *trackTitle)
	log.Info().Msgf("File: %s", *audioFile)
	probe(ctx, *audioFile)

	if err := play(ctx, *audioFile); err != nil {
		log.Fatal().Err(err).Msg("Playback failed")
	}
	log.Info().Msg("Playback completed successfully!")
}

// probe logs what ffprobe knows about the source; failures are not fatal
func probe(ctx context.Context, source string) {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if d, err := decoder.ProbeDuration(probeCtx, source); err != nil {
		log.Warn().Err(err).Msg("Duration unavailable")
	} else {
		log.Info().Msgf("Duration: %v", d)
	}

	tags, err := decoder.ProbeMetadata(probeCtx, source)
	if err != nil {
		log.Warn().Err(err).Msg("Metadata unavailable")
		return
	}
	for k, v := range tags {
		log.Info().Msgf("  %s: %s", k, v)
	}
}

func play(ctx context.Context, source string) error {
	element := beep.NewFactory(beep.Options{})()
	defer beep.CloseSpeaker()
	defer element.Release()

	preload := backends.PreloadAuto
	if *metadata {
		preload = backends.PreloadMetadata
	}

	events := make(chan backends.Event, 8)
	src := backends.Source{URL: source}
	if !playlist.IsRemote(source) {
		src = backends.Source{Path: source}
	}
	if err := element.Load(src, preload, func(ev backends.Event) { events <- ev }); err != nil {
		return err
	}

	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Interrupted")
			return nil

		case ev := <-events:
			log.Info().Msgf("Event %s after %v", ev.Type, time.Since(start).Round(time.Millisecond))
			switch ev.Type {
			case backends.EventCanPlay:
				if err := element.Play(); err != nil {
					return err
				}
			case backends.EventEnded:
				return nil
			case backends.EventError:
				return ev.Err
			}

		case <-progress.C:
			elapsed, total := element.Timing()
			log.Info().Msgf("Position %v / %v", elapsed.Round(time.Second), total.Round(time.Second))
		}
	}
}
