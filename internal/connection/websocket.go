package connection

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketTransport opens handles with gorilla/websocket.
type WebSocketTransport struct {
	cfg    TransportConfig
	logger *slog.Logger
	header http.Header
}

// NewWebSocketTransport creates a gorilla-backed transport.
func NewWebSocketTransport(cfg TransportConfig, logger *slog.Logger) *WebSocketTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketTransport{cfg: cfg, logger: logger, header: http.Header{}}
}

// SetHeader adds a header sent with every handshake.
func (t *WebSocketTransport) SetHeader(key, value string) {
	t.header.Set(key, value)
}

// Open validates addr and starts dialing in the background.
func (t *WebSocketTransport) Open(addr, protocol string, h Handlers) (Handle, error) {
	if _, err := parseSocketURL(addr); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	wh := &wsHandle{
		id:       uuid.NewString(),
		cfg:      t.cfg,
		logger:   t.logger,
		handlers: h,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.cfg.HandshakeTimeout,
	}
	if protocol != "" {
		dialer.Subprotocols = []string{protocol}
	}

	go wh.run(ctx, &dialer, addr, t.header.Clone())
	return wh, nil
}

type wsHandle struct {
	id       string
	cfg      TransportConfig
	logger   *slog.Logger
	handlers Handlers
	cancel   context.CancelFunc
	done     chan struct{}

	writeMu sync.Mutex

	mu     sync.RWMutex
	conn   *websocket.Conn
	open   bool
	closed bool

	closeOnce sync.Once
}

func (h *wsHandle) ID() string {
	return h.id
}

func (h *wsHandle) IsOpen() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.open
}

func (h *wsHandle) Send(typ MessageType, data []byte) error {
	h.mu.RLock()
	conn, open := h.conn, h.open
	h.mu.RUnlock()
	if !open {
		return ErrHandleClosed
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if h.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	}
	return conn.WriteMessage(int(typ), data)
}

func (h *wsHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.open = false
	conn := h.conn
	h.mu.Unlock()

	h.cancel()
	close(h.done)

	if conn == nil {
		return nil
	}
	h.writeMu.Lock()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	h.writeMu.Unlock()
	return conn.Close()
}

func (h *wsHandle) run(ctx context.Context, dialer *websocket.Dialer, addr string, header http.Header) {
	conn, _, err := dialer.DialContext(ctx, addr, header)
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
		conn.Close()
		h.reportClose(CloseInfo{Code: CloseNormal, Clean: true})
		return
	}
	h.conn = conn
	h.open = true
	h.mu.Unlock()

	if h.cfg.PongTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		})
	}

	h.logger.Debug("websocket connected", "url", addr, "handle", h.id)
	if h.handlers.OnOpen != nil {
		h.handlers.OnOpen()
	}

	if h.cfg.PingInterval > 0 {
		go h.pingLoop(conn)
	}
	h.readLoop(conn)
}

// readLoop delivers messages until the connection fails or is closed.
func (h *wsHandle) readLoop(conn *websocket.Conn) {
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			h.mu.Lock()
			h.open = false
			h.mu.Unlock()
			conn.Close()

			var ce *websocket.CloseError
			switch {
			case errors.As(err, &ce):
				h.reportClose(CloseInfo{
					Code:   ce.Code,
					Reason: ce.Text,
					Clean:  ce.Code == websocket.CloseNormalClosure,
				})
			case h.isClosed():
				h.reportClose(CloseInfo{Code: CloseNormal, Clean: true})
			default:
				h.reportError(err)
				h.reportClose(CloseInfo{Code: CloseAbnormal, Reason: err.Error()})
			}
			return
		}

		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		if h.handlers.OnMessage != nil {
			h.handlers.OnMessage(MessageType(typ), data)
		}
	}
}

// pingLoop keeps the connection alive; the pong handler extends the read
// deadline.
func (h *wsHandle) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), h.writeDeadline())
			h.writeMu.Unlock()
			if err != nil {
				h.logger.Debug("failed to send ping", "handle", h.id, "error", err)
				return
			}
		}
	}
}

func (h *wsHandle) writeDeadline() time.Time {
	if h.cfg.WriteTimeout > 0 {
		return time.Now().Add(h.cfg.WriteTimeout)
	}
	return time.Now().Add(time.Second)
}

func (h *wsHandle) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

func (h *wsHandle) reportError(err error) {
	if h.handlers.OnError != nil {
		h.handlers.OnError(err)
	}
}

func (h *wsHandle) reportClose(info CloseInfo) {
	h.closeOnce.Do(func() {
		if h.handlers.OnClose != nil {
			h.handlers.OnClose(info)
		}
	})
}
