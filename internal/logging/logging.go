// Package logging
// Author: momentics <momentics@gmail.com>
//
// zerolog construction for the server and CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options describes the logger to build.
type Options struct {
	Level  string    // trace, debug, info, warn, error; default info
	Format string    // console or json; default console
	Out    io.Writer // default os.Stderr
}

// New builds a timestamped logger and applies the level globally, so that a
// later SetLevel affects every logger derived from it.
func New(opts Options) (zerolog.Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	switch strings.ToLower(opts.Format) {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", opts.Format)
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(out).With().Timestamp().Logger(), nil
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	if lvl == zerolog.NoLevel {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// SetLevel changes the global level at runtime.
func SetLevel(s string) error {
	lvl, err := ParseLevel(s)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
