package store

import (
	"log/slog"
	"sync"
)

// Model is a flat state container mutated by direct actions and merges.
type Model struct {
	logger *slog.Logger

	mu      sync.RWMutex
	state   map[string]any
	actions map[string]func(payload any)
}

// NewModel creates a Model seeded with initial state.
func NewModel(initial map[string]any, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	state := make(map[string]any, len(initial))
	for k, v := range initial {
		state[k] = v
	}
	return &Model{
		logger:  logger,
		state:   state,
		actions: make(map[string]func(any)),
	}
}

// Define installs a named action.
func (m *Model) Define(name string, fn func(payload any)) {
	m.mu.Lock()
	m.actions[name] = fn
	m.mu.Unlock()
}

// Action looks up a named action.
func (m *Model) Action(name string) (func(payload any), bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.actions[name]
	return fn, ok
}

// Patch merges partial into the state. Nested maps are merged recursively.
func (m *Model) Patch(partial map[string]any) {
	m.mu.Lock()
	merge(m.state, partial)
	m.mu.Unlock()
	m.logger.Debug("model patched", "keys", len(partial))
}

// Get returns the top-level value for key.
func (m *Model) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.state[key]
	return v, ok
}

// State returns a deep copy of the state.
func (m *Model) State() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyMap(m.state)
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		sm, srcIsMap := v.(map[string]any)
		dm, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			merge(dm, sm)
			continue
		}
		if srcIsMap {
			dst[k] = copyMap(sm)
			continue
		}
		dst[k] = v
	}
}
