package config

import (
	"fmt"
	"time"
)

// Environment variables that override file values
const (
	EnvVariant      = "MUSICRADIO_VARIANT"
	EnvBasePath     = "MUSICRADIO_BASE_PATH"
	EnvLogLevel     = "MUSICRADIO_LOG_LEVEL"
	EnvVersionURL   = "MUSICRADIO_VERSION_URL"
	EnvLoadTimeout  = "MUSICRADIO_LOAD_TIMEOUT"
	EnvHTTPAddr     = "MUSICRADIO_HTTP_ADDR"
	EnvManifestPath = "MUSICRADIO_MANIFEST"
)

// ApplyEnv applies environment overrides using lookup (usually os.LookupEnv)
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvVariant); ok && v != "" {
		if err := c.ApplyVariant(v); err != nil {
			return err
		}
	}
	if v, ok := lookup(EnvBasePath); ok && v != "" {
		c.Audio.BasePath = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvVersionURL); ok {
		c.Update.VersionURL = v
	}
	if v, ok := lookup(EnvManifestPath); ok {
		c.Update.ManifestPath = v
	}
	if v, ok := lookup(EnvHTTPAddr); ok {
		c.Server.HTTPAddr = v
	}
	if v, ok := lookup(EnvLoadTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvLoadTimeout, err)
		}
		c.Playback.LoadTimeout = d
	}
	return nil
}
