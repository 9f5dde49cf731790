package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Kinds of journaled calls.
const (
	KindCommit   = "commit"
	KindDispatch = "dispatch"
)

// ErrClosed is returned by Record after Stop.
var ErrClosed = errors.New("journal closed")

// Batcher sends a batch of queued statements. *pgxpool.Pool satisfies it.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config holds journal writer settings.
type Config struct {
	Table         string
	BatchSize     int
	FlushInterval time.Duration
	QueueLimit    int // 0 = unbounded
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Table:         "socket_journal",
		BatchSize:     500,
		FlushInterval: time.Second,
		QueueLimit:    100000,
	}
}

// Entry is one journaled commit or dispatch.
type Entry struct {
	ID         uuid.UUID
	Kind       string
	Target     string
	Payload    []byte // JSON
	RecordedAt time.Time
}

// Stats counts writer activity.
type Stats struct {
	Recorded int64
	Dropped  int64
	Inserted int64
	Flushes  int64
	Errors   int64
}

// Writer batches entries into Postgres.
type Writer struct {
	cfg    Config
	db     Batcher
	logger *slog.Logger
	insert string

	queue *queue[Entry]

	ctx      context.Context
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	batch   []Entry
	metrics Stats
}

// NewWriter creates a Writer. Call Start to begin flushing.
func NewWriter(cfg Config, db Batcher, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Table == "" {
		cfg.Table = DefaultConfig().Table
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Writer{
		cfg:    cfg,
		db:     db,
		logger: logger,
		insert: fmt.Sprintf(
			`INSERT INTO %s (id, kind, target, payload, recorded_at) VALUES ($1, $2, $3, $4, $5)`,
			pgx.Identifier{cfg.Table}.Sanitize(),
		),
		queue: newQueue[Entry](cfg.BatchSize, cfg.QueueLimit),
		stop:  make(chan struct{}),
		batch: make([]Entry, 0, cfg.BatchSize),
	}
}

// Start begins consuming entries and flushing them to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.consumeLoop()

	if w.cfg.FlushInterval > 0 {
		w.wg.Add(1)
		go w.flushLoop()
	}

	w.logger.Info("journal writer started",
		"table", w.cfg.Table,
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains queued entries, writes them, and stops the loops.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")
	w.queue.close()
	w.stopOnce.Do(func() { close(w.stop) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
		err = ctx.Err()
	}

	if w.cancel != nil {
		w.cancel()
	}

	// Anything the loops did not reach.
	w.mu.Lock()
	w.batch = append(w.batch, w.queue.drain(0)...)
	w.mu.Unlock()
	w.flush(context.Background())

	w.logger.Info("journal writer stopped", "inserted", w.Stats().Inserted)
	return err
}

// Record queues an entry. Payloads that cannot be marshalled are stored as
// their %v text.
func (w *Writer) Record(kind, target string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprintf("%v", payload))
	}

	entry := Entry{
		ID:         uuid.New(),
		Kind:       kind,
		Target:     target,
		Payload:    data,
		RecordedAt: time.Now().UTC(),
	}
	if !w.queue.push(entry) {
		return ErrClosed
	}
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() Stats {
	pushed, dropped := w.queue.counters()

	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.metrics
	s.Recorded = pushed
	s.Dropped = dropped
	return s
}

func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		entry, ok := w.queue.pop()
		if !ok {
			w.flush(context.WithoutCancel(w.ctx))
			return
		}

		w.mu.Lock()
		w.batch = append(w.batch, entry)
		full := len(w.batch) >= w.cfg.BatchSize
		w.mu.Unlock()

		if full {
			w.flush(w.ctx)
		}
	}
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

// flush writes the current batch.
func (w *Writer) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.batch) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]Entry, 0, w.cfg.BatchSize)
	w.mu.Unlock()

	start := time.Now()
	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("journal insert failed", "error", err, "count", len(batch))
		w.mu.Lock()
		w.metrics.Errors++
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.metrics.Inserted += int64(len(batch))
	w.metrics.Flushes++
	w.mu.Unlock()

	w.logger.Debug("flushed journal",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

func (w *Writer) batchInsert(ctx context.Context, entries []Entry) error {
	if w.db == nil {
		return errors.New("no database")
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(w.insert, e.ID, e.Kind, e.Target, e.Payload, e.RecordedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("exec insert: %w", err)
		}
	}
	return nil
}
