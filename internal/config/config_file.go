// File: internal/config/config_file.go
// Author: momentics <momentics@gmail.com>

package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config with TOML-friendly types.
type FileConfig struct {
	ListenAddr     string `toml:"listen_addr"`
	Backlog        int    `toml:"backlog"`
	BufferSize     int    `toml:"buffer_size"`
	MaxConnections *int   `toml:"max_connections"`
	Backend        string `toml:"backend"`
	PollTimeout    string `toml:"poll_timeout"`
	MaxEvents      int    `toml:"max_events"`
	ControlAddr    string `toml:"control_addr"`
	LogLevel       string `toml:"log_level"`
	LogFormat      string `toml:"log_format"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.arithd/config.toml, or "" without a home
// directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".arithd", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies file values not overridden by explicitly set flags.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("backend", fc.Backend, &cfg.Backend)
	s.setString("control-addr", fc.ControlAddr, &cfg.ControlAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	s.setInt("backlog", fc.Backlog, &cfg.Backlog)
	s.setInt("buffer-size", fc.BufferSize, &cfg.BufferSize)
	s.setInt("max-events", fc.MaxEvents, &cfg.MaxEvents)
	s.setIntPtr("max-connections", fc.MaxConnections, &cfg.MaxConnections)

	return s.setDuration("poll-timeout", fc.PollTimeout, &cfg.PollTimeout)
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
