package connection

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rickgao/sockbridge/internal/listener"
)

// ReactiveState is what a Reactive publishes to its watchers.
type ReactiveState struct {
	Status      Status
	Connected   bool
	LastMessage any
	LastError   error
}

// Reactive wraps a Manager with observable state for a single use site. It
// does not route to a state sink; inbound messages are decoded and kept as
// LastMessage.
type Reactive struct {
	m      Manager
	format string
	logger *slog.Logger

	mu          sync.RWMutex
	lastMessage any
	lastErr     error
	watchers    map[int]func(ReactiveState)
	nextWatcher int

	closeOnce sync.Once
	done      chan struct{}
}

// NewReactive creates a Reactive over a new Manager. It connects unless
// cfg.ConnectManually is set. Any router option is ignored.
func NewReactive(cfg ManagerConfig, logger *slog.Logger, opts ...Option) *Reactive {
	if logger == nil {
		logger = slog.Default()
	}

	manual := cfg.ConnectManually
	cfg.ConnectManually = true

	reg := listener.NewRegistry(logger)
	opts = append(opts, WithRegistry(reg), WithRouter(nil))

	r := &Reactive{
		m:        NewManager(cfg, logger, opts...),
		format:   cfg.Format,
		logger:   logger,
		watchers: make(map[int]func(ReactiveState)),
		done:     make(chan struct{}),
	}

	reg.Subscribe(LabelOpen, func(...any) {
		r.mu.Lock()
		r.lastErr = nil
		r.mu.Unlock()
		r.notify()
	})
	reg.Subscribe(LabelConnecting, func(...any) { r.notify() })
	reg.Subscribe(LabelClose, func(...any) { r.notify() })
	reg.Subscribe(LabelError, func(args ...any) {
		if ev, ok := eventArg(args); ok {
			r.mu.Lock()
			r.lastErr = ev.Err
			r.mu.Unlock()
		}
		r.notify()
	})
	reg.Subscribe(LabelMessage, func(args ...any) {
		if ev, ok := eventArg(args); ok {
			r.mu.Lock()
			r.lastMessage = Decode(ev.Type, ev.Data, r.format)
			r.mu.Unlock()
		}
		r.notify()
	})
	reg.Subscribe(LabelReconnectError, func(...any) { r.notify() })

	if !manual {
		r.m.Connect()
	}
	return r
}

// Manager returns the underlying Manager.
func (r *Reactive) Manager() Manager {
	return r.m
}

// Status returns the current connection status.
func (r *Reactive) Status() Status {
	return r.m.Status()
}

// Connected reports whether the status is Connected.
func (r *Reactive) Connected() bool {
	return r.m.Status() == StatusConnected
}

// LastMessage returns the most recent decoded inbound message.
func (r *Reactive) LastMessage() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastMessage
}

// LastError returns the most recent error, cleared on open.
func (r *Reactive) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// State returns the current observable state.
func (r *Reactive) State() ReactiveState {
	status := r.m.Status()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ReactiveState{
		Status:      status,
		Connected:   status == StatusConnected,
		LastMessage: r.lastMessage,
		LastError:   r.lastErr,
	}
}

// Watch registers fn to be called after every state change. The returned
// function removes it.
func (r *Reactive) Watch(fn func(ReactiveState)) (cancel func()) {
	r.mu.Lock()
	id := r.nextWatcher
	r.nextWatcher++
	r.watchers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.watchers, id)
		r.mu.Unlock()
	}
}

// Send encodes msg and writes it. Strings go out as text, byte slices as
// binary, and with format json other values are marshalled.
func (r *Reactive) Send(msg any) error {
	if r.m.Status() != StatusConnected {
		r.logger.Warn("send rejected: socket not connected")
		return ErrNotConnected
	}
	typ, data, err := Encode(msg, r.format)
	if err != nil {
		return err
	}
	return r.m.SendMessage(typ, data)
}

// Connect opens the connection.
func (r *Reactive) Connect() {
	r.m.Connect()
}

// Disconnect closes the connection. The Reactive can be reconnected.
func (r *Reactive) Disconnect() {
	r.m.Disconnect()
}

// Close tears the Reactive down. Only the first call disconnects.
func (r *Reactive) Close() {
	r.closeOnce.Do(func() {
		r.m.Disconnect()
		close(r.done)
	})
}

// Done is closed once Close has run.
func (r *Reactive) Done() <-chan struct{} {
	return r.done
}

// Bind closes the Reactive when ctx ends.
func (r *Reactive) Bind(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			r.Close()
		case <-r.done:
		}
	}()
}

func (r *Reactive) notify() {
	state := r.State()

	r.mu.RLock()
	fns := make([]func(ReactiveState), 0, len(r.watchers))
	for _, fn := range r.watchers {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(state)
	}
}

func eventArg(args []any) (Event, bool) {
	if len(args) == 0 {
		return Event{}, false
	}
	ev, ok := args[0].(Event)
	return ev, ok
}
