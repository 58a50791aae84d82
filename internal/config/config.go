package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	// Devices selects the Amlogic nodes driven by the decoder sink.
	Devices DevicesConfig `koanf:"devices"`

	// Window is the initial video area, also restored when leaving
	// fullscreen.
	Window WindowConfig `koanf:"window"`

	Fetch  FetchConfig  `koanf:"fetch"`
	Log    LogConfig    `koanf:"log"`
	Resume ResumeConfig `koanf:"resume"`
	Mpris  MprisConfig  `koanf:"mpris"`
}

// DevicesConfig holds the decoder device node paths.
type DevicesConfig struct {
	Codec   string `koanf:"codec"`   // HEVC stream port
	Control string `koanf:"control"` // video control port
}

// WindowConfig holds the default window geometry.
type WindowConfig struct {
	X      int    `koanf:"x"`
	Y      int    `koanf:"y"`
	Width  uint32 `koanf:"width"`
	Height uint32 `koanf:"height"`
}

// FetchConfig controls remote media downloads.
type FetchConfig struct {
	TimeoutSeconds int `koanf:"timeout_seconds"` // whole-download timeout (default: 60)
}

// LogConfig controls the log sink.
type LogConfig struct {
	Level string `koanf:"level"` // logrus level name (default: "info")
	File  string `koanf:"file"`  // empty means the state directory default
}

// ResumeConfig controls playback position persistence.
type ResumeConfig struct {
	Enabled *bool `koanf:"enabled"` // default: true
}

// MprisConfig controls the D-Bus media controls.
type MprisConfig struct {
	Enabled *bool `koanf:"enabled"` // default: true
}

func Load() (*Config, error) {
	return loadFrom(getConfigPaths())
}

func loadFrom(paths []string) (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		Devices: DevicesConfig{
			Codec:   "/dev/amstream_hevc",
			Control: "/dev/amvideo",
		},
		Window: WindowConfig{Width: 1920, Height: 1080},
		Fetch:  FetchConfig{TimeoutSeconds: 60},
		Log:    LogConfig{Level: "info"},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.Log.File != "" {
		cfg.Log.File = expandPath(cfg.Log.File)
	}
	if cfg.Fetch.TimeoutSeconds <= 0 {
		cfg.Fetch.TimeoutSeconds = 60
	}
	if cfg.Window.Width == 0 {
		cfg.Window.Width = 1920
	}
	if cfg.Window.Height == 0 {
		cfg.Window.Height = 1080
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/amlview/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "amlview", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// FetchTimeout returns the remote download timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// ResumeEnabled reports whether playback positions should be persisted.
func (c *Config) ResumeEnabled() bool {
	return c.Resume.Enabled == nil || *c.Resume.Enabled
}

// MprisEnabled reports whether the D-Bus media controls should be
// exported.
func (c *Config) MprisEnabled() bool {
	return c.Mpris.Enabled == nil || *c.Mpris.Enabled
}
