// Package listener implements the listener registry for socket events.
//
// Consumers register callbacks under an event label ("onopen", "onclose",
// "onerror", "onmessage", "reconnect", "reconnect_error", or any
// application-chosen label). The connection manager dispatches to the
// registry without knowing who is listening.
//
// Two registration styles are supported:
//   - Add/Remove keyed by (callback, owner) identity
//   - Subscribe/Unsubscribe keyed by an opaque Token
package listener
