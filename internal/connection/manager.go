package connection

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/sockbridge/internal/listener"
	"github.com/rickgao/sockbridge/internal/router"
)

// Manager owns one socket connection, its status, and its reconnect policy.
// Events are routed to an optional state sink router and an optional
// listener registry.
type Manager interface {
	// Address returns the normalized target address.
	Address() string

	// Status returns the current status.
	Status() Status

	// State returns a snapshot of the observable state.
	State() Snapshot

	// Connect opens a connection unless one is already open or connecting.
	Connect()

	// Disconnect closes the connection and suppresses reconnection.
	Disconnect()

	// Send writes a text message.
	Send(data []byte) error

	// SendMessage writes one message of the given type.
	SendMessage(typ MessageType, data []byte) error

	// SendJSON marshals v and sends it as a text message.
	SendJSON(v any) error

	// Emit dispatches an application-defined label to listeners and the
	// state sink router.
	Emit(label string, args ...any)
}

// manager implements Manager.
//
// All transport callbacks, timer fires, and public calls update state under
// one mutex and queue their events; a single drainer delivers queued events
// in order, outside the lock. Listeners may call back into the manager.
type manager struct {
	cfg       ManagerConfig
	addr      string
	logger    *slog.Logger
	transport Transport
	scheduler Scheduler
	router    *router.Router
	registry  *listener.Registry

	mu            sync.Mutex
	status        Status
	handle        Handle
	gen           uint64 // bumped whenever the current handle is discarded
	lastErr       error
	attempts      int
	explicitClose bool
	pending       bool // Connect arrived while the old handle was closing
	timer         Timer
	timerSeq      uint64

	queue    []func()
	draining bool
}

// Option configures a Manager.
type Option func(*manager)

// WithTransport sets the transport. Defaults to a gorilla websocket
// transport with DefaultTransportConfig.
func WithTransport(t Transport) Option {
	return func(m *manager) {
		m.transport = t
	}
}

// WithScheduler sets the scheduler used for reconnect delays.
func WithScheduler(s Scheduler) Option {
	return func(m *manager) {
		m.scheduler = s
	}
}

// WithRouter routes SOCKET_* events into a state sink.
func WithRouter(r *router.Router) Option {
	return func(m *manager) {
		m.router = r
	}
}

// WithRegistry dispatches events to listeners.
func WithRegistry(r *listener.Registry) Option {
	return func(m *manager) {
		m.registry = r
	}
}

// NewManager creates a Manager and, unless cfg.ConnectManually is set,
// starts connecting.
func NewManager(cfg ManagerConfig, logger *slog.Logger, opts ...Option) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &manager{
		cfg:       cfg,
		addr:      NormalizeAddress(cfg.URL, cfg.Secure),
		logger:    logger,
		scheduler: clockScheduler{},
		status:    StatusDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.transport == nil {
		m.transport = NewWebSocketTransport(DefaultTransportConfig(), logger)
	}

	if !cfg.ConnectManually {
		m.Connect()
	}
	return m
}

func (m *manager) Address() string {
	return m.addr
}

func (m *manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *manager) State() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Status:    m.status,
		Connected: m.status == StatusConnected,
		LastError: m.lastErr,
		Attempts:  m.attempts,
	}
	if m.handle != nil {
		s.HandleID = m.handle.ID()
	}
	return s
}

// Connect resets the reconnect budget and opens a connection. It does
// nothing, budget included, while a handle is open or connecting. If the
// previous handle has failed but not yet reported its close, the new
// connection is opened when that close arrives.
func (m *manager) Connect() {
	m.mu.Lock()
	if h := m.handle; h != nil {
		if h.IsOpen() || m.status == StatusConnecting {
			m.logger.Debug("connect skipped: handle already active", "handle", h.ID())
			m.mu.Unlock()
			return
		}
		m.explicitClose = false
		m.attempts = 0
		m.pending = true
		m.logger.Debug("connect deferred until handle closes", "handle", h.ID())
		m.mu.Unlock()
		return
	}
	m.attempts = 0
	m.cancelTimerLocked()
	m.connectLocked()
	m.mu.Unlock()
	m.drain()
}

// Disconnect closes the connection and suppresses reconnection. A pending
// reconnect is cancelled. The status is Disconnected when it returns.
func (m *manager) Disconnect() {
	m.mu.Lock()
	m.explicitClose = true
	m.pending = false
	m.cancelTimerLocked()

	h := m.handle
	m.handle = nil
	m.gen++

	prev := m.status
	m.status = StatusDisconnected
	if prev != StatusDisconnected {
		ev := m.newEvent(EventClose, h)
		ev.Close = CloseInfo{Code: CloseNormal, Reason: "client disconnect", Clean: true}
		m.enqueueEvent(ev)
	}
	m.mu.Unlock()

	if h != nil {
		if err := h.Close(); err != nil {
			m.logger.Debug("close handle", "handle", h.ID(), "error", err)
		}
	}
	m.logger.Info("socket disconnected", "url", m.addr)
	m.drain()
}

// Send writes a text message. It fails with ErrNotConnected unless the
// status is Connected.
func (m *manager) Send(data []byte) error {
	return m.SendMessage(TextMessage, data)
}

// SendJSON marshals v and sends it as a text message.
func (m *manager) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return m.SendMessage(TextMessage, data)
}

// SendMessage writes one message of the given type.
func (m *manager) SendMessage(typ MessageType, data []byte) error {
	m.mu.Lock()
	h, status := m.handle, m.status
	m.mu.Unlock()

	if status != StatusConnected || h == nil {
		m.logger.Warn("send rejected: socket not connected", "status", status)
		return ErrNotConnected
	}
	if err := h.Send(typ, data); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Emit dispatches an application-defined label to listeners and the state
// sink router. The router ignores labels without the SOCKET_ prefix.
func (m *manager) Emit(label string, args ...any) {
	var payload any
	if len(args) > 0 {
		payload = args[0]
	}

	m.mu.Lock()
	m.queue = append(m.queue, func() {
		if m.router != nil {
			m.router.Route(label, payload)
		}
		if m.registry != nil {
			m.registry.Dispatch(label, args...)
		}
	})
	m.mu.Unlock()
	m.drain()
}

// connectLocked starts a connection attempt. Caller holds m.mu.
func (m *manager) connectLocked() {
	if m.handle != nil && (m.handle.IsOpen() || m.status == StatusConnecting) {
		m.logger.Debug("connect skipped: handle already active", "handle", m.handle.ID())
		return
	}

	m.explicitClose = false
	m.status = StatusConnecting
	m.gen++
	gen := m.gen
	m.enqueueStatus(StatusConnecting)

	h, err := m.transport.Open(m.addr, m.cfg.Protocol, m.handlers(gen))
	if err != nil {
		m.status = StatusError
		m.lastErr = err
		m.logger.Error("socket open failed", "url", m.addr, "error", err)

		ev := m.newEvent(EventError, nil)
		ev.Err = err
		m.enqueueEvent(ev)
		return
	}

	m.handle = h
	m.logger.Debug("socket connecting", "url", m.addr, "handle", h.ID())
}

func (m *manager) handlers(gen uint64) Handlers {
	return Handlers{
		OnOpen:    func() { m.onOpen(gen) },
		OnClose:   func(info CloseInfo) { m.onClose(gen, info) },
		OnError:   func(err error) { m.onError(gen, err) },
		OnMessage: func(typ MessageType, data []byte) { m.onMessage(gen, typ, data) },
	}
}

func (m *manager) onOpen(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.status = StatusConnected
	m.lastErr = nil
	m.attempts = 0
	m.enqueueEvent(m.newEvent(EventOpen, m.handle))
	m.mu.Unlock()

	m.logger.Info("socket connected", "url", m.addr)
	m.drain()
}

func (m *manager) onClose(gen uint64, info CloseInfo) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}

	h := m.handle
	m.handle = nil
	m.gen++
	m.status = StatusDisconnected

	ev := m.newEvent(EventClose, h)
	ev.Close = info
	m.enqueueEvent(ev)

	if m.pending {
		m.pending = false
		m.connectLocked()
	} else if !m.explicitClose && m.cfg.Reconnection {
		max := m.cfg.ReconnectionAttempts
		if max <= 0 || m.attempts < max {
			m.attempts++
			rev := m.newEvent(EventReconnect, h)
			rev.Attempt = m.attempts
			m.enqueueEvent(rev)
			m.scheduleLocked()
			m.logger.Info("socket closed, reconnecting",
				"code", info.Code,
				"attempt", m.attempts,
				"delay", m.cfg.ReconnectionDelay,
			)
		} else {
			m.enqueueEvent(m.newEvent(EventReconnectError, h))
			m.logger.Error("socket reconnect attempts exhausted", "attempts", m.attempts)
		}
	}
	m.mu.Unlock()
	m.drain()
}

func (m *manager) onError(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.status = StatusError
	m.lastErr = err
	ev := m.newEvent(EventError, m.handle)
	ev.Err = err
	m.enqueueEvent(ev)
	m.mu.Unlock()

	m.logger.Warn("socket error", "url", m.addr, "error", err)
	m.drain()
}

func (m *manager) onMessage(gen uint64, typ MessageType, data []byte) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	ev := m.newEvent(EventMessage, m.handle)
	ev.Type = typ
	ev.Data = data
	m.enqueueEvent(ev)
	m.mu.Unlock()
	m.drain()
}

// scheduleLocked arms the reconnect timer. Caller holds m.mu.
func (m *manager) scheduleLocked() {
	m.cancelTimerLocked()
	seq := m.timerSeq
	m.timer = m.scheduler.AfterFunc(m.cfg.ReconnectionDelay, func() {
		m.reconnect(seq)
	})
}

// cancelTimerLocked stops any pending reconnect. Caller holds m.mu.
func (m *manager) cancelTimerLocked() {
	m.timerSeq++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// reconnect runs when the reconnect timer fires. A timer that lost a race
// with Disconnect or Connect finds its sequence stale and does nothing.
func (m *manager) reconnect(seq uint64) {
	m.mu.Lock()
	if seq != m.timerSeq || m.explicitClose {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.logger.Info("attempting reconnection", "url", m.addr, "attempt", m.attempts)
	m.connectLocked()
	m.mu.Unlock()
	m.drain()
}

// newEvent builds an event stamped with the handle that produced it.
func (m *manager) newEvent(label string, h Handle) Event {
	ev := Event{Label: label, Time: time.Now()}
	if h != nil {
		ev.HandleID = h.ID()
	}
	return ev
}

// enqueueEvent queues ev for delivery. Caller holds m.mu.
func (m *manager) enqueueEvent(ev Event) {
	m.queue = append(m.queue, func() { m.deliver(ev) })
}

// enqueueStatus tells listeners about a status change that has no socket
// event of its own. Caller holds m.mu.
func (m *manager) enqueueStatus(status Status) {
	if m.registry == nil {
		return
	}
	m.queue = append(m.queue, func() { m.registry.Dispatch(LabelConnecting, status) })
}

// deliver routes ev to the sink router and the listener registry.
func (m *manager) deliver(ev Event) {
	if m.router != nil {
		m.router.Route(ev.Label, ev)
	}
	if m.registry != nil {
		if label, ok := listenerLabels[ev.Label]; ok {
			m.registry.Dispatch(label, ev)
		}
	}
}

// drain delivers queued events in order. Only one goroutine drains at a
// time; events queued meanwhile are picked up by the active drainer.
func (m *manager) drain() {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	for len(m.queue) > 0 {
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		m.run(fn)
		m.mu.Lock()
	}
	m.draining = false
	m.mu.Unlock()
}

func (m *manager) run(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error("event delivery panicked", "panic", rec)
		}
	}()
	fn()
}
