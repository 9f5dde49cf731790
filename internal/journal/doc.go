// Package journal records state sink traffic in PostgreSQL.
//
// A Committer wraps the real sink and queues one Entry per Commit or
// Dispatch. The Writer flushes entries with pgx batches when a batch fills or
// the flush interval elapses, and drains the queue on Stop.
//
// Entries are append-only:
//
//	id UUID, kind TEXT, target TEXT, payload JSONB, recorded_at TIMESTAMPTZ
package journal
