package connection

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// CoderTransport opens handles with coder/websocket.
type CoderTransport struct {
	cfg    TransportConfig
	logger *slog.Logger
	header http.Header
}

// NewCoderTransport creates a coder/websocket-backed transport.
func NewCoderTransport(cfg TransportConfig, logger *slog.Logger) *CoderTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &CoderTransport{cfg: cfg, logger: logger, header: http.Header{}}
}

// SetHeader adds a header sent with every handshake.
func (t *CoderTransport) SetHeader(key, value string) {
	t.header.Set(key, value)
}

// Open validates addr and starts dialing in the background.
func (t *CoderTransport) Open(addr, protocol string, h Handlers) (Handle, error) {
	if _, err := parseSocketURL(addr); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := &coderHandle{
		id:       uuid.NewString(),
		cfg:      t.cfg,
		logger:   t.logger,
		handlers: h,
		ctx:      ctx,
		cancel:   cancel,
	}

	opts := &websocket.DialOptions{HTTPHeader: t.header.Clone()}
	if protocol != "" {
		opts.Subprotocols = []string{protocol}
	}

	go ch.run(addr, opts)
	return ch, nil
}

type coderHandle struct {
	id       string
	cfg      TransportConfig
	logger   *slog.Logger
	handlers Handlers
	ctx      context.Context
	cancel   context.CancelFunc

	mu     sync.RWMutex
	conn   *websocket.Conn
	open   bool
	closed bool

	closeOnce sync.Once
}

func (h *coderHandle) ID() string {
	return h.id
}

func (h *coderHandle) IsOpen() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.open
}

func (h *coderHandle) Send(typ MessageType, data []byte) error {
	h.mu.RLock()
	conn, open := h.conn, h.open
	h.mu.RUnlock()
	if !open {
		return ErrHandleClosed
	}

	ctx := h.ctx
	if h.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.WriteTimeout)
		defer cancel()
	}
	return conn.Write(ctx, websocket.MessageType(typ), data)
}

func (h *coderHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.open = false
	conn := h.conn
	h.mu.Unlock()

	if conn == nil {
		h.cancel()
		return nil
	}
	err := conn.Close(websocket.StatusNormalClosure, "client close")
	h.cancel()
	return err
}

func (h *coderHandle) run(addr string, opts *websocket.DialOptions) {
	dialCtx := h.ctx
	if h.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(dialCtx, h.cfg.HandshakeTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(dialCtx, addr, opts)
	if err != nil {
		if h.isClosed() {
			h.reportClose(CloseInfo{Code: CloseNormal, Clean: true})
			return
		}
		h.reportError(err)
		h.reportClose(CloseInfo{Code: CloseAbnormal, Reason: err.Error()})
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.CloseNow()
		h.reportClose(CloseInfo{Code: CloseNormal, Clean: true})
		return
	}
	h.conn = conn
	h.open = true
	h.mu.Unlock()

	h.logger.Debug("websocket connected", "url", addr, "handle", h.id, "transport", "coder")
	if h.handlers.OnOpen != nil {
		h.handlers.OnOpen()
	}

	if h.cfg.PingInterval > 0 {
		go h.pingLoop(conn)
	}
	h.readLoop(conn)
}

func (h *coderHandle) readLoop(conn *websocket.Conn) {
	for {
		typ, data, err := conn.Read(h.ctx)
		if err != nil {
			h.mu.Lock()
			h.open = false
			h.mu.Unlock()

			var ce websocket.CloseError
			switch {
			case errors.As(err, &ce):
				h.reportClose(CloseInfo{
					Code:   int(ce.Code),
					Reason: ce.Reason,
					Clean:  ce.Code == websocket.StatusNormalClosure,
				})
			case h.isClosed():
				h.reportClose(CloseInfo{Code: CloseNormal, Clean: true})
			default:
				conn.CloseNow()
				h.reportError(err)
				h.reportClose(CloseInfo{Code: CloseAbnormal, Reason: err.Error()})
			}
			return
		}
		if h.handlers.OnMessage != nil {
			h.handlers.OnMessage(MessageType(typ), data)
		}
	}
}

// pingLoop fails the connection when a pong does not arrive within
// PongTimeout.
func (h *coderHandle) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			ctx := h.ctx
			var cancel context.CancelFunc = func() {}
			if h.cfg.PongTimeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, h.cfg.PongTimeout)
			}
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				if !h.isClosed() {
					h.logger.Warn("ping failed, closing connection", "handle", h.id, "error", err)
					conn.Close(websocket.StatusGoingAway, "ping timeout")
				}
				return
			}
		}
	}
}

func (h *coderHandle) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

func (h *coderHandle) reportError(err error) {
	if h.handlers.OnError != nil {
		h.handlers.OnError(err)
	}
}

func (h *coderHandle) reportClose(info CloseInfo) {
	h.closeOnce.Do(func() {
		if h.handlers.OnClose != nil {
			h.handlers.OnClose(info)
		}
	})
}
