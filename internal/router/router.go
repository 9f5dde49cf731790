package router

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
)

// Router turns socket events into calls on a state sink.
type Router struct {
	cfg    Config
	target Target
	logger *slog.Logger

	mu           sync.RWMutex
	routed       int64
	skipped      int64
	unhandled    int64
	decodeErrors int64
}

// NewRouter creates a Router for target.
func NewRouter(cfg Config, target Target, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if target.kind == KindUnknown && cfg.Handler == nil {
		logger.Warn("state sink has unknown shape, routing disabled")
	}
	return &Router{
		cfg:    cfg,
		target: target,
		logger: logger,
	}
}

// Target returns the sink this router calls into.
func (r *Router) Target() Target {
	return r.target
}

// Stats returns current routing counters.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Routed:       r.routed,
		Skipped:      r.skipped,
		Unhandled:    r.unhandled,
		DecodeErrors: r.decodeErrors,
	}
}

// Route delivers event under label to the sink. Labels without the SOCKET_
// prefix are ignored. Sink panics are recovered and logged.
func (r *Router) Route(label string, event any) {
	if !strings.HasPrefix(label, EventPrefix) {
		r.count(&r.skipped)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("state sink panicked", "label", label, "panic", rec)
		}
	}()

	if r.cfg.Handler != nil {
		r.cfg.Handler(label, event, r.routeDefault)
		return
	}
	r.routeDefault(label, event)
}

// routeDefault is the built-in routing policy.
func (r *Router) routeDefault(label string, event any) {
	if !strings.HasPrefix(label, EventPrefix) {
		r.count(&r.skipped)
		return
	}

	method, target, payload := "commit", label, event

	if r.cfg.Format == FormatJSON {
		if body, ok := messageText(event); ok {
			if decoded, env, ok := r.decode(body); ok {
				payload = decoded
				switch {
				case env.Mutation != "":
					target = joinPath(env.Namespace, env.Mutation)
				case env.Action != "":
					method = "dispatch"
					target = joinPath(env.Namespace, env.Action)
				}
			}
		}
	}

	if mapped, ok := r.cfg.Mutations[target]; ok && mapped != "" {
		target = mapped
	}

	switch r.target.kind {
	case KindCommitter:
		if method == "dispatch" {
			r.target.committer.Dispatch(target, payload)
		} else {
			r.target.committer.Commit(target, payload)
		}
		r.count(&r.routed)

	case KindPatcher:
		action, ok := r.target.patcher.Action(target)
		if !ok || action == nil {
			r.logger.Warn("state sink has no action for event", "label", label, "action", target)
			r.count(&r.unhandled)
			return
		}
		action(payload)
		r.count(&r.routed)

	default:
		r.logger.Debug("no state sink, dropping event", "label", label)
		r.count(&r.unhandled)
	}
}

// decode parses a JSON message body. Bodies that are not JSON are left to
// the caller to route as raw events.
func (r *Router) decode(body []byte) (any, envelope, bool) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		r.logger.Debug("message is not json, routing raw", "error", err)
		r.count(&r.decodeErrors)
		return nil, envelope{}, false
	}

	var env envelope
	if obj, ok := decoded.(map[string]any); ok {
		env.Namespace, _ = obj["namespace"].(string)
		env.Mutation, _ = obj["mutation"].(string)
		env.Action, _ = obj["action"].(string)
	}
	return decoded, env, true
}

func (r *Router) count(n *int64) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}

// messageText extracts a textual message body from event.
func messageText(event any) ([]byte, bool) {
	switch v := event.(type) {
	case Payload:
		return v.MessageText()
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}

// joinPath joins non-empty path segments with "/".
func joinPath(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}
