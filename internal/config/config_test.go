package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.App.Title != "Music" {
		t.Errorf("App.Title = %q, want %q", cfg.App.Title, "Music")
	}
	if cfg.Cache.Bucket != "music-cache-v1" {
		t.Errorf("Cache.Bucket = %q, want music-cache-v1", cfg.Cache.Bucket)
	}
	if cfg.Playback.LoadTimeout != 10*time.Second {
		t.Errorf("Playback.LoadTimeout = %v, want 10s", cfg.Playback.LoadTimeout)
	}
	if len(cfg.Audio.Songs) != 1 {
		t.Errorf("len(Audio.Songs) = %d, want 1", len(cfg.Audio.Songs))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadConfig_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "musicradio.yaml")
	data := `
app:
  title: Test Radio
audio:
  base_path: https://cdn.example.com/music
  songs:
    - {id: 1, title: One, filename: one.mp3}
    - {id: 2, title: Two, filename: two.flac}
playback:
  load_timeout: 4s
update:
  version_url: https://example.com/index.html
  poll_interval: 30s
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.App.Title != "Test Radio" {
		t.Errorf("App.Title = %q, want Test Radio", cfg.App.Title)
	}
	if cfg.Audio.BasePath != "https://cdn.example.com/music" {
		t.Errorf("Audio.BasePath = %q", cfg.Audio.BasePath)
	}
	if len(cfg.Audio.Songs) != 2 || cfg.Audio.Songs[1].Filename != "two.flac" {
		t.Errorf("Audio.Songs = %+v", cfg.Audio.Songs)
	}
	if cfg.Playback.LoadTimeout != 4*time.Second {
		t.Errorf("Playback.LoadTimeout = %v, want 4s", cfg.Playback.LoadTimeout)
	}
	// Unset values keep their defaults
	if cfg.Playback.ShortLoadTimeout != 3*time.Second {
		t.Errorf("Playback.ShortLoadTimeout = %v, want 3s", cfg.Playback.ShortLoadTimeout)
	}
	if cfg.Update.PollInterval != 30*time.Second {
		t.Errorf("Update.PollInterval = %v, want 30s", cfg.Update.PollInterval)
	}
}

func TestLoadConfig_VariantThenOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "musicradio.yaml")
	data := "app:\n  variant: vanh\n  title: Custom\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.App.Title != "Custom" {
		t.Errorf("App.Title = %q, want Custom", cfg.App.Title)
	}
	if cfg.Audio.BasePath != "assets/music/vanh" {
		t.Errorf("Audio.BasePath = %q, want assets/music/vanh", cfg.Audio.BasePath)
	}
	if cfg.Audio.Songs[0].Filename != "rain.mp3" {
		t.Errorf("Audio.Songs[0].Filename = %q, want rain.mp3", cfg.Audio.Songs[0].Filename)
	}
}

func TestLoadConfig_UnknownVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "musicradio.yaml")
	if err := os.WriteFile(path, []byte("app:\n  variant: nope\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for unknown variant")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero load timeout", func(c *Config) { c.Playback.LoadTimeout = 0 }},
		{"bad quirks", func(c *Config) { c.Playback.Quirks = "sometimes" }},
		{"duplicate ids", func(c *Config) {
			c.Audio.Songs = []Track{{ID: 1, Filename: "a.mp3"}, {ID: 1, Filename: "b.mp3"}}
		}},
		{"missing filename", func(c *Config) { c.Audio.Songs = []Track{{ID: 3}} }},
		{"empty bucket", func(c *Config) { c.Cache.Bucket = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestValidate_EmptyPlaylistAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audio.Songs = nil
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvVariant:     "yen",
		EnvLogLevel:    "debug",
		EnvLoadTimeout: "2s",
		EnvVersionURL:  "https://example.com/",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.App.Title != "Yen's Music" {
		t.Errorf("App.Title = %q", cfg.App.Title)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Playback.LoadTimeout != 2*time.Second {
		t.Errorf("Playback.LoadTimeout = %v, want 2s", cfg.Playback.LoadTimeout)
	}
	if cfg.Update.VersionURL != "https://example.com/" {
		t.Errorf("Update.VersionURL = %q", cfg.Update.VersionURL)
	}
}

func TestApplyEnv_BadDuration(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == EnvLoadTimeout {
			return "soon", true
		}
		return "", false
	})
	if err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestVariants(t *testing.T) {
	got := Variants()
	want := []string{"default", "nam", "vanh", "yen"}
	if len(got) != len(want) {
		t.Fatalf("Variants() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Variants()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
