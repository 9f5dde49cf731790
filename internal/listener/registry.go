package listener

import (
	"log/slog"
	"reflect"
	"sync"
	"unsafe"

	"github.com/google/uuid"
)

// Callback is invoked on dispatch with the entry's owner as receiver context.
type Callback func(owner any, args ...any)

// Handler is the callback form used by Subscribe.
type Handler func(args ...any)

// Token identifies a subscription created by Subscribe.
type Token string

// entry is a single registered listener.
type entry struct {
	cb    Callback
	fn    unsafe.Pointer // closure of cb, used for identity matching
	owner any
	token Token
}

// Registry maps event labels to ordered listener entries.
type Registry struct {
	mu      sync.RWMutex
	entries map[string][]entry
	tokens  map[Token]string // token -> label
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string][]entry),
		tokens:  make(map[Token]string),
		logger:  logger,
	}
}

// Add appends a listener for label. It returns false and leaves the registry
// untouched if cb is nil.
func (r *Registry) Add(label string, cb Callback, owner any) bool {
	if cb == nil {
		r.logger.Warn("listener rejected: callback is nil", "label", label)
		return false
	}

	r.mu.Lock()
	r.entries[label] = append(r.entries[label], entry{
		cb:    cb,
		fn:    funcIdentity(cb),
		owner: owner,
	})
	r.mu.Unlock()
	return true
}

// Remove deletes the first listener for label whose callback and owner both
// match by identity. A method value is a new callback each time it is
// evaluated; pass the same value given to Add.
func (r *Registry) Remove(label string, cb Callback, owner any) bool {
	if cb == nil {
		return false
	}
	fn := funcIdentity(cb)

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.entries[label]
	for i, e := range list {
		if e.token != "" || e.fn != fn || !sameOwner(e.owner, owner) {
			continue
		}
		r.removeAt(label, i)
		return true
	}
	return false
}

// Subscribe registers h under label and returns a token for Unsubscribe.
func (r *Registry) Subscribe(label string, h Handler) Token {
	if h == nil {
		return ""
	}
	tok := Token(uuid.NewString())

	r.mu.Lock()
	r.entries[label] = append(r.entries[label], entry{
		cb:    func(_ any, args ...any) { h(args...) },
		token: tok,
	})
	r.tokens[tok] = label
	r.mu.Unlock()
	return tok
}

// Unsubscribe removes the subscription identified by tok.
func (r *Registry) Unsubscribe(tok Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	label, ok := r.tokens[tok]
	if !ok {
		return false
	}
	delete(r.tokens, tok)
	for i, e := range r.entries[label] {
		if e.token == tok {
			r.removeAt(label, i)
			return true
		}
	}
	return false
}

// Dispatch calls every listener for label in insertion order. It returns
// false if label had no listeners. Listeners added or removed during
// dispatch take effect on the next call.
func (r *Registry) Dispatch(label string, args ...any) bool {
	r.mu.RLock()
	list := r.entries[label]
	snapshot := make([]entry, len(list))
	copy(snapshot, list)
	r.mu.RUnlock()

	if len(snapshot) == 0 {
		return false
	}
	for _, e := range snapshot {
		r.invoke(label, e, args)
	}
	return true
}

// Len returns the number of listeners registered for label.
func (r *Registry) Len(label string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[label])
}

// Labels returns every label with at least one listener.
func (r *Registry) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	labels := make([]string, 0, len(r.entries))
	for label, list := range r.entries {
		if len(list) > 0 {
			labels = append(labels, label)
		}
	}
	return labels
}

// invoke runs a single callback, isolating panics from the rest of dispatch.
func (r *Registry) invoke(label string, e entry, args []any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("listener panicked",
				"label", label,
				"panic", rec,
			)
		}
	}()
	e.cb(e.owner, args...)
}

// removeAt deletes entry i of label. Caller holds r.mu.
func (r *Registry) removeAt(label string, i int) {
	list := r.entries[label]
	next := make([]entry, 0, len(list)-1)
	next = append(next, list[:i]...)
	next = append(next, list[i+1:]...)
	if len(next) == 0 {
		delete(r.entries, label)
		return
	}
	r.entries[label] = next
}

// funcIdentity returns the address of cb's closure. Every closure gets its
// own, while a plain function has one shared for all references.
func funcIdentity(cb Callback) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&cb))
}

// sameOwner compares owners by identity. Owners of non-comparable types
// never match.
func sameOwner(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
