package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected   = errors.New("not connected")
	ErrInvalidAddress = errors.New("invalid socket address")
	ErrHandleClosed   = errors.New("handle closed")
	ErrUnencodable    = errors.New("message cannot be encoded")
)

// Status is the connection state of a Manager.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Labels routed to a state sink.
const (
	EventOpen           = "SOCKET_ONOPEN"
	EventClose          = "SOCKET_ONCLOSE"
	EventError          = "SOCKET_ONERROR"
	EventMessage        = "SOCKET_ONMESSAGE"
	EventReconnect      = "SOCKET_RECONNECT"
	EventReconnectError = "SOCKET_RECONNECT_ERROR"
)

// Labels dispatched to a listener registry.
const (
	LabelOpen           = "onopen"
	LabelClose          = "onclose"
	LabelError          = "onerror"
	LabelMessage        = "onmessage"
	LabelReconnect      = "reconnect"
	LabelReconnectError = "reconnect_error"

	// LabelConnecting carries the new Status when a connection attempt
	// starts. It has no SOCKET_* counterpart.
	LabelConnecting = "connecting"
)

var listenerLabels = map[string]string{
	EventOpen:           LabelOpen,
	EventClose:          LabelClose,
	EventError:          LabelError,
	EventMessage:        LabelMessage,
	EventReconnect:      LabelReconnect,
	EventReconnectError: LabelReconnectError,
}

// MessageType is the websocket frame type. Values match RFC 6455 opcodes.
type MessageType int

const (
	TextMessage   MessageType = 1
	BinaryMessage MessageType = 2
)

// Close codes used when the local side reports a close.
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

// CloseInfo describes how a handle closed.
type CloseInfo struct {
	Code   int
	Reason string
	Clean  bool
}

// Event is a single socket event as seen by sinks and listeners.
type Event struct {
	Label    string
	HandleID string
	Time     time.Time

	// Message events
	Type MessageType
	Data []byte

	// Error events
	Err error

	// Close events
	Close CloseInfo

	// Reconnect events
	Attempt int
}

// MessageText returns the body of an inbound text message.
func (e Event) MessageText() ([]byte, bool) {
	return e.Data, e.Label == EventMessage && e.Type == TextMessage
}

// ReconnectAttempt returns the attempt number of a reconnect event.
func (e Event) ReconnectAttempt() int {
	return e.Attempt
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	URL      string // ws://, wss://, http(s):// or protocol-relative //host/path
	Protocol string // optional sub-protocol
	Secure   bool   // hosting page is secure; resolves //host to wss://

	ConnectManually bool // skip the initial Connect in the constructor

	Reconnection         bool
	ReconnectionAttempts int           // 0 = unbounded
	ReconnectionDelay    time.Duration // fixed delay between attempts

	Format string // "json" enables structured encode/decode
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectionDelay: time.Second,
	}
}

// Snapshot is the observable state of a Manager.
type Snapshot struct {
	Status    Status
	Connected bool
	LastError error
	Attempts  int
	HandleID  string
}
