package decoder

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Plugin names a decoder and the suffixes it accepts
type Plugin struct {
	Name     string
	Suffixes []string
	// Transcoded plugins convert to WAV through ffmpeg first
	Transcoded bool
}

// Plugins lists the in-process decoders followed by the ffmpeg fallback
var Plugins = []Plugin{
	{Name: "mp3", Suffixes: []string{"mp3"}},
	{Name: "wav", Suffixes: []string{"wav"}},
	{Name: "flac", Suffixes: []string{"flac"}},
	{Name: "vorbis", Suffixes: []string{"ogg", "oga"}},
	{Name: "ffmpeg", Suffixes: []string{"aac", "m4a", "opus", "aif", "aiff", "wma", "ape"}, Transcoded: true},
}

// nativeExtensions are decoded in-process; everything else goes through ffmpeg
var nativeExtensions = func() map[string]bool {
	native := make(map[string]bool)
	for _, p := range Plugins {
		if p.Transcoded {
			continue
		}
		for _, suffix := range p.Suffixes {
			native["."+suffix] = true
		}
	}
	return native
}()

// Ext returns the lower-case extension of a file path or URL
func Ext(source string) string {
	if isURL(source) {
		if u, err := url.Parse(source); err == nil {
			return strings.ToLower(path.Ext(u.Path))
		}
	}
	return strings.ToLower(filepath.Ext(source))
}

// NeedsTranscode reports whether source must be converted before decoding
func NeedsTranscode(source string) bool {
	return !nativeExtensions[Ext(source)]
}

// TranscodeToWAV decodes source (file or URL) into a WAV file at outputPath.
// The output file is removed on failure.
func TranscodeToWAV(ctx context.Context, source string, outputPath string) error {
	if err := checkSource(source); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-v", "error",
		"-i", source,
		"-vn",
		"-f", "wav",
		"-y", // Overwrite output file
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("ffmpeg failed: %w\nstderr: %s", err, stderr.String())
	}
	return nil
}

// ProbeDuration returns the container duration reported by ffprobe
func ProbeDuration(ctx context.Context, source string) (time.Duration, error) {
	if err := checkSource(source); err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "default=noprint_wrappers=1:nokey=1",
		"-show_entries", "format=duration",
		source,
	)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w\nstderr: %s", err, stderr.String())
	}
	return parseDuration(out.String())
}

// ProbeMetadata extracts metadata tags from an audio file using ffprobe.
// Returns a map of lower-cased tag names to values.
func ProbeMetadata(ctx context.Context, source string) (map[string]string, error) {
	if err := checkSource(source); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "default=noprint_wrappers=1",
		"-show_entries", "format_tags",
		source,
	)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w\nstderr: %s", err, stderr.String())
	}
	return parseTags(out.String()), nil
}

func parseDuration(out string) (time.Duration, error) {
	value := strings.TrimSpace(out)
	if value == "" || value == "N/A" {
		return 0, fmt.Errorf("duration not available")
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	return time.Duration(math.Round(seconds*1e6)) * time.Microsecond, nil
}

func parseTags(out string) map[string]string {
	metadata := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Split on first '=' to handle values that contain '='
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.ToLower(strings.TrimPrefix(parts[0], "TAG:"))
		value := strings.TrimSpace(parts[1])
		if value != "" {
			metadata[key] = value
		}
	}
	return metadata
}

// checkSource fails early for missing local files; ffmpeg handles URLs itself
func checkSource(source string) error {
	if isURL(source) {
		return nil
	}
	if _, err := os.Stat(source); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", source)
		}
		return fmt.Errorf("cannot access file: %w", err)
	}
	return nil
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
