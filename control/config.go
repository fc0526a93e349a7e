// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with dynamic update and hot-reload propagation.

package control

import (
	"maps"
	"reflect"
	"sync"
)

// ConfigStore is a key/value snapshot of the effective configuration.
// Reload listeners run after every SetConfig.
type ConfigStore struct {
	mu     sync.RWMutex
	config map[string]any
	hooks  reloadHooks
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config: make(map[string]any),
	}
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return maps.Clone(cs.config)
}

// Get returns a single value.
func (cs *ConfigStore) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.config[key]
	return v, ok
}

// SetConfig merges newCfg and notifies reload listeners with the keys that
// actually changed. Nothing is dispatched when no value changed.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	cs.mu.Lock()
	changed := make(map[string]any)
	for k, v := range newCfg {
		if old, ok := cs.config[k]; ok && reflect.DeepEqual(old, v) {
			continue
		}
		cs.config[k] = v
		changed[k] = v
	}
	hooks := cs.hooks.clone()
	cs.mu.Unlock()

	if len(changed) > 0 {
		hooks.dispatch(changed)
	}
}

// OnReload registers a listener called with the changed keys.
func (cs *ConfigStore) OnReload(fn func(changed map[string]any)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.hooks = append(cs.hooks, fn)
}
