package router

// EventPrefix marks socket lifecycle labels. Labels without it are never
// routed to a state sink.
const EventPrefix = "SOCKET_"

// FormatJSON enables content-based routing of inbound messages.
const FormatJSON = "json"

// Kind classifies a state sink.
type Kind int

const (
	KindUnknown Kind = iota
	KindCommitter
	KindPatcher
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindCommitter:
		return "committer"
	case KindPatcher:
		return "patcher"
	default:
		return "unknown"
	}
}

// Committer is a centralized-mutation state container.
type Committer interface {
	// Commit applies the named mutation.
	Commit(name string, payload any)

	// Dispatch runs the named action. Path may be namespaced ("chat/send").
	Dispatch(path string, payload any)
}

// Patcher is a direct-action state container.
type Patcher interface {
	// Patch merges partial into the container's state.
	Patch(partial map[string]any)

	// Action looks up a named action.
	Action(name string) (func(payload any), bool)
}

// Target is a state sink tagged with its kind.
type Target struct {
	kind      Kind
	committer Committer
	patcher   Patcher
}

// CommitterTarget wraps c as a Committer sink.
func CommitterTarget(c Committer) Target {
	if c == nil {
		return Target{}
	}
	return Target{kind: KindCommitter, committer: c}
}

// PatcherTarget wraps p as a Patcher sink.
func PatcherTarget(p Patcher) Target {
	if p == nil {
		return Target{}
	}
	return Target{kind: KindPatcher, patcher: p}
}

// Detect builds a Target from v using Classify.
func Detect(v any) Target {
	switch Classify(v) {
	case KindPatcher:
		return PatcherTarget(v.(Patcher))
	case KindCommitter:
		return CommitterTarget(v.(Committer))
	default:
		return Target{}
	}
}

// Kind returns the target's kind.
func (t Target) Kind() Kind { return t.kind }

// Classify reports which sink shape v has. A merge primitive makes it a
// Patcher even if it also commits.
func Classify(v any) Kind {
	if v == nil {
		return KindUnknown
	}
	if _, ok := v.(Patcher); ok {
		return KindPatcher
	}
	if _, ok := v.(Committer); ok {
		return KindCommitter
	}
	return KindUnknown
}

// NextFunc performs the default routing for an event.
type NextFunc func(label string, event any)

// HandlerFunc overrides routing. Calling next runs the default policy.
type HandlerFunc func(label string, event any, next NextFunc)

// Payload is implemented by events that may carry an inbound message body.
type Payload interface {
	// MessageText returns the textual body and true for inbound text messages.
	MessageText() ([]byte, bool)
}

// Config configures a Router.
type Config struct {
	// Format enables structured routing when set to FormatJSON.
	Format string

	// Mutations overrides the target name for a label.
	Mutations map[string]string

	// Handler, if set, receives every routed event.
	Handler HandlerFunc
}

// Stats contains routing counters.
type Stats struct {
	Routed       int64
	Skipped      int64
	Unhandled    int64
	DecodeErrors int64
}

// envelope is the routing-relevant shape of a JSON message.
type envelope struct {
	Namespace string
	Mutation  string
	Action    string
}
