package store

// Socket lifecycle labels, mirrored from the connection package so that
// store users need not import it.
const (
	SocketOpen           = "SOCKET_ONOPEN"
	SocketClose          = "SOCKET_ONCLOSE"
	SocketError          = "SOCKET_ONERROR"
	SocketMessage        = "SOCKET_ONMESSAGE"
	SocketReconnect      = "SOCKET_RECONNECT"
	SocketReconnectError = "SOCKET_RECONNECT_ERROR"
)

// Keys maintained by RegisterSocketModule under the "socket" namespace.
const (
	KeyConnected      = "isConnected"
	KeyMessage        = "message"
	KeyError          = "error"
	KeyReconnectError = "reconnectError"
	KeyReconnectCount = "reconnectCount"
)

// attempter is implemented by reconnect events.
type attempter interface {
	ReconnectAttempt() int
}

// RegisterSocketModule installs the conventional SOCKET_* mutations. They
// keep connection state under "socket/...".
func RegisterSocketModule(s *Store) {
	s.RegisterMutation(SocketOpen, func(state map[string]any, _ any) {
		sock := child(state, "socket")
		sock[KeyConnected] = true
		sock[KeyReconnectError] = false
		sock[KeyError] = nil
	})
	s.RegisterMutation(SocketClose, func(state map[string]any, _ any) {
		child(state, "socket")[KeyConnected] = false
	})
	s.RegisterMutation(SocketError, func(state map[string]any, payload any) {
		child(state, "socket")[KeyError] = payload
	})
	s.RegisterMutation(SocketMessage, func(state map[string]any, payload any) {
		child(state, "socket")[KeyMessage] = payload
	})
	s.RegisterMutation(SocketReconnect, func(state map[string]any, payload any) {
		if a, ok := payload.(attempter); ok {
			child(state, "socket")[KeyReconnectCount] = a.ReconnectAttempt()
		}
	})
	s.RegisterMutation(SocketReconnectError, func(state map[string]any, _ any) {
		child(state, "socket")[KeyReconnectError] = true
	})
}

// child returns state[key] as a map, creating it if absent.
func child(state map[string]any, key string) map[string]any {
	m, ok := state[key].(map[string]any)
	if !ok {
		m = make(map[string]any)
		state[key] = m
	}
	return m
}
