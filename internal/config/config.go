// Package config loads the front-end's settings from a TOML or YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/cbegin/athenacl-go/internal/playback"
)

const appDir = "athenacl"

type Config struct {
	SampleRate int     `toml:"sample_rate" yaml:"sample_rate"`
	Tempo      int     `toml:"tempo" yaml:"tempo"`
	Volume     float64 `toml:"volume" yaml:"volume"`
	TickMillis int     `toml:"tick_ms" yaml:"tick_ms"`
	PrefsPath  string  `toml:"prefs" yaml:"prefs"`
	LogLevel   string  `toml:"log_level" yaml:"log_level"`
	LogFile    string  `toml:"log_file" yaml:"log_file"`
	AllowExec  bool    `toml:"allow_exec" yaml:"allow_exec"`
	Banner     bool    `toml:"banner" yaml:"banner"`
	WatchMedia bool    `toml:"watch_media" yaml:"watch_media"`
}

func Default() Config {
	return Config{
		SampleRate: 48000,
		Tempo:      playback.DefaultTempo,
		Volume:     1,
		TickMillis: 100,
		PrefsPath:  defaultPath("prefs.db"),
		LogLevel:   "info",
		Banner:     true,
		WatchMedia: true,
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string { return defaultPath("config.toml") }

func defaultPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join("."+appDir, name)
	}
	return filepath.Join(dir, appDir, name)
}

// Load reads path over the defaults. A missing file is not an error; an
// empty path means DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("config: %s: unknown format (want .toml, .yaml or .yml)", path)
	}
	if err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	d := Default()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Tempo == 0 {
		c.Tempo = d.Tempo
	}
	c.Tempo = playback.ClampTempo(c.Tempo)
	c.Volume = min(max(c.Volume, 0), 2)
	if c.TickMillis <= 0 {
		c.TickMillis = d.TickMillis
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickMillis) * time.Millisecond
}

// Write encodes c as TOML.
func (c Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
