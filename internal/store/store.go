package store

import (
	"log/slog"
	"strings"
	"sync"
)

// MutationFunc changes the state of one namespace.
type MutationFunc func(state map[string]any, payload any)

// ActionFunc runs an action. Actions change state only through Commit.
type ActionFunc func(s *Store, payload any)

// Store is a namespaced state container driven by mutations and actions.
type Store struct {
	logger *slog.Logger

	mu        sync.RWMutex
	state     map[string]any
	mutations map[string]MutationFunc
	actions   map[string]ActionFunc
	listeners []func(name string, payload any)
}

// New creates an empty Store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:    logger,
		state:     make(map[string]any),
		mutations: make(map[string]MutationFunc),
		actions:   make(map[string]ActionFunc),
	}
}

// RegisterMutation installs fn under path ("SET_MSG" or "chat/SET_MSG").
func (s *Store) RegisterMutation(path string, fn MutationFunc) {
	s.mu.Lock()
	s.mutations[path] = fn
	s.mu.Unlock()
}

// RegisterAction installs fn under path.
func (s *Store) RegisterAction(path string, fn ActionFunc) {
	s.mu.Lock()
	s.actions[path] = fn
	s.mu.Unlock()
}

// OnCommit registers fn to run after every applied mutation.
func (s *Store) OnCommit(fn func(name string, payload any)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Commit applies the named mutation. Unknown mutations are logged and
// ignored.
func (s *Store) Commit(name string, payload any) {
	listeners, ok := s.apply(name, payload)
	if !ok {
		s.logger.Warn("unknown mutation", "mutation", name)
		return
	}
	for _, l := range listeners {
		l(name, payload)
	}
}

// apply runs a mutation under the write lock and returns the commit
// listeners to notify.
func (s *Store) apply(name string, payload any) ([]func(string, any), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn, ok := s.mutations[name]
	if !ok {
		return nil, false
	}
	fn(s.namespace(name), payload)
	return s.listeners, true
}

// Dispatch runs the named action. Unknown actions are logged and ignored.
func (s *Store) Dispatch(path string, payload any) {
	s.mu.RLock()
	fn, ok := s.actions[path]
	s.mu.RUnlock()
	if !ok {
		s.logger.Warn("unknown action", "action", path)
		return
	}
	fn(s, payload)
}

// Get returns the value at a slash-separated path ("chat/message").
func (s *Store) Get(path string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cur any = s.state
	for _, key := range strings.Split(path, "/") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// State returns a deep copy of the whole state tree.
func (s *Store) State() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.state)
}

// namespace returns (creating if needed) the state map that owns the
// mutation at path. Caller holds s.mu.
func (s *Store) namespace(path string) map[string]any {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return s.state
	}

	cur := s.state
	for _, key := range strings.Split(path[:idx], "/") {
		cur = child(cur, key)
	}
	return cur
}

func copyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		if m, ok := v.(map[string]any); ok {
			dst[k] = copyMap(m)
			continue
		}
		dst[k] = v
	}
	return dst
}
