package journal

import (
	"log/slog"

	"github.com/rickgao/sockbridge/internal/router"
)

// Committer records every commit and dispatch before passing it to next.
type Committer struct {
	next   router.Committer
	w      *Writer
	logger *slog.Logger
}

// Wrap returns a Committer journaling calls to next through w.
func Wrap(next router.Committer, w *Writer, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{next: next, w: w, logger: logger}
}

// Commit journals and forwards a mutation.
func (c *Committer) Commit(name string, payload any) {
	c.record(KindCommit, name, payload)
	c.next.Commit(name, payload)
}

// Dispatch journals and forwards an action.
func (c *Committer) Dispatch(path string, payload any) {
	c.record(KindDispatch, path, payload)
	c.next.Dispatch(path, payload)
}

func (c *Committer) record(kind, target string, payload any) {
	if err := c.w.Record(kind, target, payload); err != nil {
		c.logger.Debug("journal record skipped", "kind", kind, "target", target, "error", err)
	}
}
