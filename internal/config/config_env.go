// File: internal/config/config_env.go
// Author: momentics <momentics@gmail.com>

package config

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "ARITHD_"

// ApplyEnvConfig applies ARITHD_* variables not overridden by explicitly set
// flags.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", os.Getenv(EnvPrefix+"LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("backend", os.Getenv(EnvPrefix+"BACKEND"), &cfg.Backend)
	s.setString("control-addr", os.Getenv(EnvPrefix+"CONTROL_ADDR"), &cfg.ControlAddr)
	s.setString("log-level", os.Getenv(EnvPrefix+"LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv(EnvPrefix+"LOG_FORMAT"), &cfg.LogFormat)

	for _, v := range []struct {
		flag, env string
		dst       *int
	}{
		{"backlog", "BACKLOG", &cfg.Backlog},
		{"buffer-size", "BUFFER_SIZE", &cfg.BufferSize},
		{"max-connections", "MAX_CONNECTIONS", &cfg.MaxConnections},
		{"max-events", "MAX_EVENTS", &cfg.MaxEvents},
	} {
		if err := s.setIntFromString(v.flag, os.Getenv(EnvPrefix+v.env), v.dst); err != nil {
			return err
		}
	}

	return s.setDuration("poll-timeout", os.Getenv(EnvPrefix+"POLL_TIMEOUT"), &cfg.PollTimeout)
}
