package connection

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		msg      any
		format   string
		wantType MessageType
		want     string
		wantErr  error
	}{
		{"string", "hi", "", TextMessage, "hi", nil},
		{"bytes", []byte{0x01}, "", BinaryMessage, "\x01", nil},
		{"raw json", json.RawMessage(`{"a":1}`), "", TextMessage, `{"a":1}`, nil},
		{"struct with json", struct {
			A int `json:"a"`
		}{1}, FormatJSON, TextMessage, `{"a":1}`, nil},
		{"map with json", map[string]any{"k": "v"}, FormatJSON, TextMessage, `{"k":"v"}`, nil},
		{"struct without json", struct{ A int }{1}, "", 0, "", ErrUnencodable},
		{"unmarshalable", make(chan int), FormatJSON, 0, "", ErrUnencodable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, data, err := Encode(tt.msg, tt.format)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if typ != tt.wantType || string(data) != tt.want {
				t.Errorf("Encode = (%d, %q), want (%d, %q)", typ, data, tt.wantType, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		typ    MessageType
		data   string
		format string
		want   any
	}{
		{"json object", TextMessage, `{"a":[1,"b"]}`, FormatJSON, map[string]any{"a": []any{float64(1), "b"}}},
		{"json string", TextMessage, `"s"`, FormatJSON, "s"},
		{"malformed", TextMessage, `{"a":`, FormatJSON, `{"a":`},
		{"no format", TextMessage, `{"a":1}`, "", `{"a":1}`},
		{"binary", BinaryMessage, "ab", FormatJSON, []byte("ab")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.typ, []byte(tt.data), tt.format)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	// Only generic JSON shapes survive a round trip.
	values := []any{
		map[string]any{"chat": map[string]any{"text": "hi", "n": float64(3)}},
		[]any{"a", true, nil},
		"plain",
		float64(42),
	}

	for _, v := range values {
		typ, data, err := Encode(v, FormatJSON)
		if err != nil {
			t.Fatalf("Encode(%v): %v", v, err)
		}
		// strings go out verbatim and come back through the raw-text fallback
		got := Decode(typ, data, FormatJSON)
		if !reflect.DeepEqual(got, v) {
			t.Errorf("round trip %#v = %#v", v, got)
		}
	}
}

func TestEncodeDecode_NumbersBecomeFloat(t *testing.T) {
	typ, data, err := Encode(map[string]any{"n": 3}, FormatJSON)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got := Decode(typ, data, FormatJSON)
	want := map[string]any{"n": float64(3)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode = %#v, want %#v", got, want)
	}
}
