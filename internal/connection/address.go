package connection

import "strings"

// NormalizeAddress resolves a protocol-relative address ("//host/path")
// against the hosting page's scheme and maps http(s) to ws(s). Other
// addresses are returned unchanged.
func NormalizeAddress(addr string, secure bool) string {
	switch {
	case strings.HasPrefix(addr, "//"):
		if secure {
			return "wss:" + addr
		}
		return "ws:" + addr
	case strings.HasPrefix(addr, "https://"):
		return "wss://" + strings.TrimPrefix(addr, "https://")
	case strings.HasPrefix(addr, "http://"):
		return "ws://" + strings.TrimPrefix(addr, "http://")
	default:
		return addr
	}
}
