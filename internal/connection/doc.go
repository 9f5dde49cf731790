// Package connection implements the socket connection manager.
//
// A Manager owns one transport handle at a time:
//   - Normalizes the configured address (protocol-relative, http(s) to ws(s))
//   - Tracks status: disconnected, connecting, connected, error
//   - Reconnects after a fixed delay, up to a bounded or unbounded budget
//   - Routes SOCKET_* events to a state sink router and lifecycle labels
//     (onopen, onclose, connecting, ...) to a listener registry
//
// Events are delivered in order from a single drain loop, so listeners may
// call Connect, Disconnect or Send without deadlocking.
//
// Reactive wraps a Manager for a single use site and exposes the latest
// status, message and error instead of routing to a sink.
package connection
