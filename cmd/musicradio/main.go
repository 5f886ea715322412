package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/famish99/musicradio/internal/backends/beep"
	"github.com/famish99/musicradio/internal/cache"
	"github.com/famish99/musicradio/internal/config"
	"github.com/famish99/musicradio/internal/httpapi"
	"github.com/famish99/musicradio/internal/mpd"
	"github.com/famish99/musicradio/internal/platform"
	"github.com/famish99/musicradio/internal/player"
	"github.com/famish99/musicradio/internal/store"
	"github.com/famish99/musicradio/internal/update"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath  = flag.String("config", getDefaultConfigPath(), "Path to configuration file")
	variant     = flag.String("variant", "", "Deployment variant ("+fmt.Sprint(config.Variants())+")")
	mpdAddr     = flag.String("mpd-addr", "", "MPD server listen address (overrides config)")
	httpAddr    = flag.String("http-addr", "", "HTTP API listen address (overrides config)")
	listTracks  = flag.Bool("list-tracks", false, "List the configured tracks and exit")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	setupLogging("info")

	// A .env next to the binary is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogging(cfg.Log.Level)

	if *listTracks {
		printTracks(cfg)
		return
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("musicradio failed")
	}
}

// loadConfig layers the file, the environment and then the flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if *variant != "" {
		if err := cfg.ApplyVariant(*variant); err != nil {
			return nil, err
		}
	}
	if *mpdAddr != "" {
		cfg.Server.MPDAddr = *mpdAddr
	}
	if *httpAddr != "" {
		cfg.Server.HTTPAddr = *httpAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func printTracks(cfg *config.Config) {
	fmt.Printf("%s (%d tracks)\n\n", cfg.App.Title, len(cfg.Audio.Songs))
	for _, song := range cfg.Audio.Songs {
		fmt.Printf("%3d. %s\n     %s\n", song.ID, song.Title, song.Filename)
	}
}

// run wires the daemon and blocks until a shutdown signal
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Msgf("Starting %s %s", cfg.App.Title, version)

	caps := platform.Probe(cfg)
	log.Info().Msgf("Capabilities: metadata preload %v, short timeout %v, update events %v",
		caps.PreferMetadataPreload, caps.ShorterLoadTimeout, caps.UpdateEvents)

	// The cache and the store are optional; playback works without them
	var trackCache player.Cache
	diskCache, err := cache.NewDiskCache(cfg.Cache.Directory, cfg.Cache.Bucket, int64(cfg.Cache.MaxSizeMB)<<20)
	if err != nil {
		log.Warn().Err(err).Msg("Offline cache disabled")
	} else {
		trackCache = diskCache
		log.Info().Msgf("Cache bucket %s: %d tracks, %d bytes", diskCache.Bucket(), diskCache.Len(), diskCache.Size())
		pruned, err := diskCache.PruneBuckets()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to prune old cache buckets")
		}
		for _, bucket := range pruned {
			log.Info().Msgf("Removed old cache bucket %s", bucket)
		}
	}

	var fingerprints update.FingerprintStore
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Warn().Err(err).Msg("Local store unavailable, version polling disabled")
	} else {
		fingerprints = db
	}

	p, err := player.NewPlayer(cfg, player.Options{
		Factory:      beep.NewFactory(beep.Options{}),
		Cache:        trackCache,
		Capabilities: caps,
	})
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}

	manager := update.NewManifestManager(cfg.Update.ManifestPath, cfg.Update.CurrentLink, version)
	source := update.SelectSource(cfg, caps, manager, fingerprints)

	var (
		mpdServer  *mpd.Server
		httpServer *httpapi.Server
		monitor    *update.Monitor
		once       sync.Once
	)
	shutdown := func() {
		once.Do(func() {
			log.Info().Msg("Shutting down...")
			if httpServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("HTTP shutdown failed")
				}
				cancel()
			}
			if mpdServer != nil {
				if err := mpdServer.Stop(); err != nil {
					log.Warn().Err(err).Msg("MPD shutdown failed")
				}
			}
			if monitor != nil {
				monitor.Stop()
			}
			p.Stop()
			beep.CloseSpeaker()
			if db != nil {
				if err := db.Close(); err != nil {
					log.Warn().Err(err).Msg("Failed to close store")
				}
			}
		})
	}
	defer shutdown()

	execReloader := &update.ExecReloader{Path: cfg.Update.CurrentLink, BeforeExec: shutdown}
	monitor, err = update.NewMonitor(update.Options{
		Source:       source,
		Connectivity: update.NewDialProbe(cfg.Connectivity.ProbeAddress, cfg.Connectivity.Interval),
		Reloader: update.ReloaderFunc(func() error {
			err := execReloader.Reload()
			// Exec only returns on failure, after everything was torn down
			stop()
			return err
		}),
		SafetyInterval: cfg.Update.SafetyInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to create update monitor: %w", err)
	}

	if err := p.Start(ctx); err != nil {
		return err
	}
	if err := monitor.Start(ctx); err != nil {
		return err
	}

	if cfg.Server.MPDAddr != "" {
		mpdServer = mpd.NewServer(cfg.Server.MPDAddr, p, monitor)
		if err := mpdServer.Start(); err != nil {
			return err
		}
	}
	if cfg.Server.HTTPAddr != "" {
		httpServer = httpapi.NewServer(cfg.Server.HTTPAddr, p, monitor)
		if err := httpServer.Start(); err != nil {
			return err
		}
	}

	// Returning to the app re-checks for updates
	resume := make(chan os.Signal, 1)
	if len(resumeSignals) > 0 {
		signal.Notify(resume, resumeSignals...)
		defer signal.Stop(resume)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-resume:
			monitor.Resume()
		}
	}
}

func getDefaultConfigPath() string {
	// Check common locations
	locations := []string{
		"./musicradio.yaml",
		"./config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "musicradio", "config.yaml"),
		"/etc/musicradio/config.yaml",
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	// Default to first location if none exist
	return locations[0]
}
