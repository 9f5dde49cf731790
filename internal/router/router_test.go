package router

import (
	"log/slog"
	"reflect"
	"testing"
)

type call struct {
	Method  string
	Name    string
	Payload any
}

// mockCommitter records Commit and Dispatch calls.
type mockCommitter struct {
	calls []call
}

func (m *mockCommitter) Commit(name string, payload any) {
	m.calls = append(m.calls, call{"commit", name, payload})
}

func (m *mockCommitter) Dispatch(path string, payload any) {
	m.calls = append(m.calls, call{"dispatch", path, payload})
}

// mockPatcher exposes a fixed action table.
type mockPatcher struct {
	actions map[string]func(any)
	patched []map[string]any
}

func (m *mockPatcher) Patch(partial map[string]any) {
	m.patched = append(m.patched, partial)
}

func (m *mockPatcher) Action(name string) (func(any), bool) {
	fn, ok := m.actions[name]
	return fn, ok
}

// both commits and patches; the merge primitive decides its kind.
type both struct {
	mockCommitter
	mockPatcher
}

// textEvent is a minimal Payload implementation.
type textEvent struct {
	data []byte
	text bool
}

func (e textEvent) MessageText() ([]byte, bool) { return e.data, e.text }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"committer", &mockCommitter{}, KindCommitter},
		{"patcher", &mockPatcher{}, KindPatcher},
		{"both prefers patcher", &both{}, KindPatcher},
		{"plain struct", struct{}{}, KindUnknown},
		{"string", "store", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.v); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
			if got := Detect(tt.v).Kind(); got != tt.want {
				t.Errorf("Detect().Kind() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRoute_NamespacedAction(t *testing.T) {
	sink := &mockCommitter{}
	r := NewRouter(Config{Format: FormatJSON}, CommitterTarget(sink), slog.Default())

	ev := textEvent{data: []byte(`{"namespace":"chat","action":"newMessage","text":"hi"}`), text: true}
	r.Route("SOCKET_ONMESSAGE", ev)

	if len(sink.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(sink.calls))
	}
	got := sink.calls[0]
	if got.Method != "dispatch" || got.Name != "chat/newMessage" {
		t.Errorf("got %s(%q), want dispatch(\"chat/newMessage\")", got.Method, got.Name)
	}
	want := map[string]any{"namespace": "chat", "action": "newMessage", "text": "hi"}
	if !reflect.DeepEqual(got.Payload, want) {
		t.Errorf("payload = %v, want %v", got.Payload, want)
	}
}

func TestRoute_NamespacedMutation(t *testing.T) {
	sink := &mockCommitter{}
	r := NewRouter(Config{Format: FormatJSON}, CommitterTarget(sink), nil)

	r.Route("SOCKET_ONMESSAGE", textEvent{data: []byte(`{"namespace":"chat","mutation":"SET_MSG"}`), text: true})

	if len(sink.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(sink.calls))
	}
	if got := sink.calls[0]; got.Method != "commit" || got.Name != "chat/SET_MSG" {
		t.Errorf("got %s(%q), want commit(\"chat/SET_MSG\")", got.Method, got.Name)
	}
}

func TestRoute_MutationWinsOverAction(t *testing.T) {
	sink := &mockCommitter{}
	r := NewRouter(Config{Format: FormatJSON}, CommitterTarget(sink), nil)

	r.Route("SOCKET_ONMESSAGE", textEvent{data: []byte(`{"namespace":"a","mutation":"M","action":"A"}`), text: true})

	if got := sink.calls[0]; got.Method != "commit" || got.Name != "a/M" {
		t.Errorf("got %s(%q), want commit(\"a/M\")", got.Method, got.Name)
	}
}

func TestRoute_NoNamespace(t *testing.T) {
	sink := &mockCommitter{}
	r := NewRouter(Config{Format: FormatJSON}, CommitterTarget(sink), nil)

	r.Route("SOCKET_ONMESSAGE", textEvent{data: []byte(`{"action":"ping"}`), text: true})

	if got := sink.calls[0]; got.Method != "dispatch" || got.Name != "ping" {
		t.Errorf("got %s(%q), want dispatch(\"ping\")", got.Method, got.Name)
	}
}

func TestRoute_FallbackToLabel(t *testing.T) {
	tests := []struct {
		name   string
		format string
		event  any
	}{
		{"not json", FormatJSON, textEvent{data: []byte("hello"), text: true}},
		{"json without routing fields", FormatJSON, textEvent{data: []byte(`{"text":"hi"}`), text: true}},
		{"format disabled", "", textEvent{data: []byte(`{"namespace":"chat","action":"x"}`), text: true}},
		{"non-message event", FormatJSON, textEvent{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &mockCommitter{}
			r := NewRouter(Config{Format: tt.format}, CommitterTarget(sink), nil)

			r.Route("SOCKET_ONMESSAGE", tt.event)

			if len(sink.calls) != 1 {
				t.Fatalf("calls = %d, want 1", len(sink.calls))
			}
			if got := sink.calls[0]; got.Method != "commit" || got.Name != "SOCKET_ONMESSAGE" {
				t.Errorf("got %s(%q), want commit(\"SOCKET_ONMESSAGE\")", got.Method, got.Name)
			}
		})
	}
}

func TestRoute_RawPayloadWhenNotJSON(t *testing.T) {
	sink := &mockCommitter{}
	r := NewRouter(Config{Format: FormatJSON}, CommitterTarget(sink), nil)

	ev := textEvent{data: []byte("{broken"), text: true}
	r.Route("SOCKET_ONMESSAGE", ev)

	if !reflect.DeepEqual(sink.calls[0].Payload, ev) {
		t.Errorf("payload = %v, want raw event", sink.calls[0].Payload)
	}
	if s := r.Stats(); s.DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1", s.DecodeErrors)
	}
}

func TestRoute_MutationMap(t *testing.T) {
	sink := &mockCommitter{}
	cfg := Config{
		Format: FormatJSON,
		Mutations: map[string]string{
			"SOCKET_ONOPEN": "connectionOpened",
			"chat/SET_MSG":  "chat/setMessage",
		},
	}
	r := NewRouter(cfg, CommitterTarget(sink), nil)

	r.Route("SOCKET_ONOPEN", nil)
	r.Route("SOCKET_ONCLOSE", nil)
	r.Route("SOCKET_ONMESSAGE", textEvent{data: []byte(`{"namespace":"chat","mutation":"SET_MSG"}`), text: true})

	want := []string{"connectionOpened", "SOCKET_ONCLOSE", "chat/setMessage"}
	if len(sink.calls) != len(want) {
		t.Fatalf("calls = %d, want %d", len(sink.calls), len(want))
	}
	for i, name := range want {
		if sink.calls[i].Name != name {
			t.Errorf("call %d name = %q, want %q", i, sink.calls[i].Name, name)
		}
	}
}

func TestRoute_SkipsUnprefixedLabels(t *testing.T) {
	committer := &mockCommitter{}
	var patcherCalled bool
	patcher := &mockPatcher{actions: map[string]func(any){
		"OTHER_EVENT": func(any) { patcherCalled = true },
	}}
	var handlerCalled bool

	routers := []*Router{
		NewRouter(Config{}, CommitterTarget(committer), nil),
		NewRouter(Config{}, PatcherTarget(patcher), nil),
		NewRouter(Config{Handler: func(string, any, NextFunc) { handlerCalled = true }}, Target{}, nil),
	}
	for _, r := range routers {
		r.Route("OTHER_EVENT", "payload")
		if s := r.Stats(); s.Skipped != 1 {
			t.Errorf("Skipped = %d, want 1", s.Skipped)
		}
	}

	if len(committer.calls) != 0 {
		t.Errorf("committer received %v", committer.calls)
	}
	if patcherCalled || len(patcher.patched) != 0 {
		t.Error("patcher should not be invoked")
	}
	if handlerCalled {
		t.Error("custom handler should not be invoked")
	}
}

func TestRoute_Patcher(t *testing.T) {
	var got any
	p := &mockPatcher{actions: map[string]func(any){
		"SOCKET_ONOPEN": func(payload any) { got = payload },
	}}
	r := NewRouter(Config{}, PatcherTarget(p), nil)

	r.Route("SOCKET_ONOPEN", "opened")
	if got != "opened" {
		t.Errorf("action payload = %v, want opened", got)
	}

	// Missing action is a warning, not a failure.
	r.Route("SOCKET_ONCLOSE", "closed")
	if s := r.Stats(); s.Routed != 1 || s.Unhandled != 1 {
		t.Errorf("Stats = %+v, want Routed=1 Unhandled=1", s)
	}
}

func TestRoute_UnknownTarget(t *testing.T) {
	r := NewRouter(Config{Format: FormatJSON}, Detect(struct{}{}), nil)

	r.Route("SOCKET_ONMESSAGE", textEvent{data: []byte(`{"action":"x"}`), text: true})

	if s := r.Stats(); s.Unhandled != 1 || s.Routed != 0 {
		t.Errorf("Stats = %+v, want Unhandled=1", s)
	}
}

func TestRoute_CustomHandler(t *testing.T) {
	sink := &mockCommitter{}

	t.Run("handler without next", func(t *testing.T) {
		var labels []string
		cfg := Config{Handler: func(label string, event any, next NextFunc) {
			labels = append(labels, label)
		}}
		r := NewRouter(cfg, CommitterTarget(sink), nil)

		r.Route("SOCKET_ONOPEN", nil)

		if len(labels) != 1 || labels[0] != "SOCKET_ONOPEN" {
			t.Errorf("handler labels = %v", labels)
		}
		if len(sink.calls) != 0 {
			t.Errorf("default routing ran without next: %v", sink.calls)
		}
	})

	t.Run("handler calls next", func(t *testing.T) {
		sink.calls = nil
		cfg := Config{Handler: func(label string, event any, next NextFunc) {
			next(label, "rewritten")
		}}
		r := NewRouter(cfg, CommitterTarget(sink), nil)

		r.Route("SOCKET_ONOPEN", "original")

		if len(sink.calls) != 1 || sink.calls[0].Payload != "rewritten" {
			t.Errorf("calls = %v, want one commit with rewritten payload", sink.calls)
		}
	})
}

func TestRoute_SinkPanicRecovered(t *testing.T) {
	p := &mockPatcher{actions: map[string]func(any){
		"SOCKET_ONERROR": func(any) { panic("sink failure") },
	}}
	r := NewRouter(Config{}, PatcherTarget(p), nil)

	r.Route("SOCKET_ONERROR", nil)
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"chat", "send"}, "chat/send"},
		{[]string{"", "send"}, "send"},
		{[]string{"a", "", "b"}, "a/b"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := joinPath(tt.parts...); got != tt.want {
			t.Errorf("joinPath(%v) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}
