package connection

import (
	"fmt"
	"net/url"
	"time"
)

// Handlers receive transport events for one handle. A handle reports at most
// one OnOpen and exactly one OnClose, which is always its last callback.
type Handlers struct {
	OnOpen    func()
	OnClose   func(CloseInfo)
	OnError   func(error)
	OnMessage func(MessageType, []byte)
}

// Handle is a single live transport connection.
type Handle interface {
	// ID uniquely identifies the handle.
	ID() string

	// Send writes one message.
	Send(typ MessageType, data []byte) error

	// Close closes the connection. It is safe to call more than once.
	Close() error

	// IsOpen reports whether the handshake has completed and the
	// connection has not closed.
	IsOpen() bool
}

// Transport opens handles. Open must return without blocking on the network
// and must not invoke any handler before it returns; the outcome of the
// connection attempt is reported through h. A returned error means the
// handle could not be constructed at all.
type Transport interface {
	Open(addr, protocol string, h Handlers) (Handle, error)
}

// TransportConfig holds settings shared by the websocket transports.
type TransportConfig struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration // 0 disables keepalive pings
	PongTimeout      time.Duration // 0 disables read deadlines
}

// DefaultTransportConfig returns sensible defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		PongTimeout:      60 * time.Second,
	}
}

// parseSocketURL validates a ws:// or wss:// address.
func parseSocketURL(addr string) (*url.URL, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidAddress, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidAddress, addr)
	}
	return u, nil
}
