// File: internal/config/watcher.go
// Author: momentics <momentics@gmail.com>

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-arith/control"
	"github.com/momentics/hioload-arith/internal/logging"
)

// DefaultDebounce coalesces the burst of events editors produce on save.
const DefaultDebounce = 100 * time.Millisecond

// Watcher re-reads the config file when it changes. Only the log level is
// applied live; other changes are published to the store and reported as
// needing a restart.
type Watcher struct {
	path    string
	changed map[string]bool
	store   *control.ConfigStore
	log     zerolog.Logger

	// Debounce delays the reload after the last file event.
	Debounce time.Duration

	mu       sync.Mutex
	current  Config
	debounce *time.Timer
}

// NewWatcher watches path. current is the effective configuration at
// startup; changed lists flags set on the command line, which keep
// precedence over the file.
func NewWatcher(path string, current Config, changed map[string]bool, store *control.ConfigStore, log zerolog.Logger) *Watcher {
	return &Watcher{
		path:     path,
		changed:  changed,
		store:    store,
		log:      log,
		Debounce: DefaultDebounce,
		current:  current,
	}
}

// Current returns the last applied configuration.
func (w *Watcher) Current() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run watches the file's directory until ctx is done. Watching the directory
// survives editors that replace the file instead of writing it in place.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer fw.Close()

	dir, name := filepath.Split(w.path)
	if dir == "" {
		dir = "."
	}
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("config watcher: watch %s: %w", dir, err)
	}
	w.log.Debug().Str("path", w.path).Msg("watching config file")

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.debounce != nil {
				w.debounce.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.Debounce, func() {
		if err := w.Reload(); err != nil {
			w.log.Warn().Err(err).Str("path", w.path).Msg("config reload rejected")
		}
	})
}

// Reload re-reads the file and applies it. Invalid files leave the current
// configuration untouched.
func (w *Watcher) Reload() error {
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.current
	if err := ApplyFileConfig(&next, fc, w.changed); err != nil {
		return err
	}
	if err := ApplyEnvConfig(&next, w.changed); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}

	if next.LogLevel != w.current.LogLevel {
		if err := logging.SetLevel(next.LogLevel); err != nil {
			return err
		}
		w.log.Info().Str("from", w.current.LogLevel).Str("to", next.LogLevel).Msg("log level reloaded")
	}
	if keys := restartKeys(w.current, next); len(keys) > 0 {
		w.log.Warn().Strs("keys", keys).Msg("config changed, restart required to apply")
	}
	w.current = next
	if w.store != nil {
		w.store.SetConfig(next.Snapshot())
	}
	return nil
}

// restartKeys lists changed settings that are not applied live.
func restartKeys(old, next Config) []string {
	a, b := old.Snapshot(), next.Snapshot()
	var keys []string
	for k, v := range b {
		if k == "log_level" {
			continue
		}
		if a[k] != v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
