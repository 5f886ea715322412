package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	App          AppConfig          `yaml:"app"`
	Audio        AudioConfig        `yaml:"audio"`
	Cache        CacheConfig        `yaml:"cache"`
	Playback     PlaybackConfig     `yaml:"playback"`
	Update       UpdateConfig       `yaml:"update"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Store        StoreConfig        `yaml:"store"`
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
}

// AppConfig identifies the deployment
type AppConfig struct {
	Title   string `yaml:"title"`
	Variant string `yaml:"variant,omitempty"`
}

// AudioConfig holds the playlist and where its files live
type AudioConfig struct {
	// BasePath is a directory or an http(s) URL prefix
	BasePath string  `yaml:"base_path"`
	Songs    []Track `yaml:"songs"`
}

// Track is one configured song
type Track struct {
	ID       int    `yaml:"id"`
	Title    string `yaml:"title"`
	Filename string `yaml:"filename"`
}

// CacheConfig represents cache settings
type CacheConfig struct {
	Directory string `yaml:"directory"`
	Bucket    string `yaml:"bucket"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// PlaybackConfig represents playback settings
type PlaybackConfig struct {
	LoadTimeout      time.Duration `yaml:"load_timeout"`
	ShortLoadTimeout time.Duration `yaml:"short_load_timeout"`
	// Quirks forces capability flags: "auto", "on" or "off"
	Quirks string `yaml:"quirks"`
}

// UpdateConfig configures new-version detection
type UpdateConfig struct {
	// ManifestPath enables event-driven detection when set
	ManifestPath string `yaml:"manifest_path,omitempty"`
	// CurrentLink is the symlink re-pointed on activation
	CurrentLink string `yaml:"current_link,omitempty"`
	// VersionURL is the document fingerprinted by the polling fallback
	VersionURL     string        `yaml:"version_url,omitempty"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	SafetyInterval time.Duration `yaml:"safety_interval"`
}

// ConnectivityConfig configures the online/offline probe
type ConnectivityConfig struct {
	ProbeAddress string        `yaml:"probe_address"`
	Interval     time.Duration `yaml:"interval"`
}

// StoreConfig locates the local key/value database
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds listen addresses for the control surfaces
type ServerConfig struct {
	MPDAddr  string `yaml:"mpd_addr"`
	HTTPAddr string `yaml:"http_addr"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	cfg := &Config{
		Cache: CacheConfig{
			Directory: filepath.Join(home, ".cache", "musicradio"),
			Bucket:    "music-cache-v1",
			MaxSizeMB: 512,
		},
		Playback: PlaybackConfig{
			LoadTimeout:      10 * time.Second,
			ShortLoadTimeout: 3 * time.Second,
			Quirks:           "auto",
		},
		Update: UpdateConfig{
			PollInterval:   5 * time.Minute,
			SafetyInterval: 6 * time.Hour,
		},
		Connectivity: ConnectivityConfig{
			ProbeAddress: "1.1.1.1:53",
			Interval:     15 * time.Second,
		},
		Store: StoreConfig{
			Path: filepath.Join(home, ".local", "share", "musicradio", "state.db"),
		},
		Server: ServerConfig{
			MPDAddr:  "localhost:6600",
			HTTPAddr: "localhost:8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
	// The default variant always exists
	_ = cfg.ApplyVariant(DefaultVariant)
	return cfg
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, return default config
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Apply the named variant first so explicit file values override it
	var head struct {
		App struct {
			Variant string `yaml:"variant"`
		} `yaml:"app"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if head.App.Variant != "" {
		if err := cfg.ApplyVariant(head.App.Variant); err != nil {
			return nil, err
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with
func (c *Config) Validate() error {
	if c.Playback.LoadTimeout <= 0 {
		return fmt.Errorf("playback.load_timeout must be positive")
	}
	if c.Playback.ShortLoadTimeout <= 0 {
		return fmt.Errorf("playback.short_load_timeout must be positive")
	}
	switch c.Playback.Quirks {
	case "", "auto", "on", "off":
	default:
		return fmt.Errorf("playback.quirks must be auto, on or off, got %q", c.Playback.Quirks)
	}
	if c.Update.SafetyInterval <= 0 {
		return fmt.Errorf("update.safety_interval must be positive")
	}
	if c.Update.PollInterval < 0 {
		return fmt.Errorf("update.poll_interval must not be negative")
	}
	if c.Cache.Bucket == "" {
		return fmt.Errorf("cache.bucket must be set")
	}

	seen := make(map[int]bool, len(c.Audio.Songs))
	for _, song := range c.Audio.Songs {
		if seen[song.ID] {
			return fmt.Errorf("duplicate track id: %d", song.ID)
		}
		if song.Filename == "" {
			return fmt.Errorf("track %d has no filename", song.ID)
		}
		seen[song.ID] = true
	}
	return nil
}
