package connection

import (
	"encoding/json"
	"fmt"
)

// FormatJSON enables structured encode/decode.
const FormatJSON = "json"

// Encode turns msg into a frame. Strings are sent as text and byte slices as
// binary; with format json any other value is marshalled to text.
func Encode(msg any, format string) (MessageType, []byte, error) {
	switch v := msg.(type) {
	case string:
		return TextMessage, []byte(v), nil
	case []byte:
		return BinaryMessage, v, nil
	case json.RawMessage:
		return TextMessage, v, nil
	}

	if format != FormatJSON {
		return 0, nil, fmt.Errorf("%w: %T without json format", ErrUnencodable, msg)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
	}
	return TextMessage, data, nil
}

// Decode turns an inbound frame into a value. With format json, text that
// parses as JSON becomes the decoded value and anything else falls back to
// the raw string. Binary frames are returned as bytes.
//
// Decoded JSON uses the generic shapes of encoding/json: objects become
// map[string]any, arrays []any, and numbers float64. Encode then Decode
// gives back the original only for values already in those shapes; a
// struct or an int comes back as a map or a float64.
func Decode(typ MessageType, data []byte, format string) any {
	if typ == BinaryMessage {
		return data
	}
	if format == FormatJSON {
		var v any
		if err := json.Unmarshal(data, &v); err == nil {
			return v
		}
	}
	return string(data)
}
