package runqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries   = 3
	defaultClaimTimeout = 5 * time.Minute
)

// Queue is the distributed work queue: document claiming with
// exactly-once semantics under contention (FOR UPDATE SKIP LOCKED),
// idempotent enqueue keyed on (run_id, doc_id, source_name), and
// exponential-backoff retry, grounded on the original WorkQueue class.
type Queue struct {
	pool         *pgxpool.Pool
	log          *logrus.Entry
	workerID     string
	maxRetries   int
	claimTimeout time.Duration
	hint         *ClaimHint // optional, may be nil
}

// Option configures a Queue at construction.
type Option func(*Queue)

func WithMaxRetries(n int) Option { return func(q *Queue) { q.maxRetries = n } }

func WithClaimTimeout(d time.Duration) Option { return func(q *Queue) { q.claimTimeout = d } }

func WithClaimHint(h *ClaimHint) Option { return func(q *Queue) { q.hint = h } }

// NewQueue builds a Queue bound to one worker identity.
func NewQueue(pool *pgxpool.Pool, workerID string, log *logrus.Entry, opts ...Option) *Queue {
	q := &Queue{
		pool:         pool,
		workerID:     workerID,
		maxRetries:   defaultMaxRetries,
		claimTimeout: defaultClaimTimeout,
		log:          log.WithField("component", "work_queue").WithField("worker_id", workerID),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) MaxRetries() int { return q.maxRetries }

// AddDocument enqueues a document idempotently: a second call for the same
// (run_id, doc_id, source_name) updates link_depth to the minimum of the
// existing and new value rather than inserting a duplicate row.
func (q *Queue) AddDocument(ctx context.Context, runID, docID, sourceName, sourceType string, priority, linkDepth int, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("runqueue: marshal metadata: %w", err)
	}
	_, err = q.pool.Exec(ctx, `
		INSERT INTO document_queue (run_id, doc_id, source_name, source_type, status, priority, link_depth, retry_count, max_retries, scheduled_for, created_at, metadata)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6, 0, $7, now(), now(), $8)
		ON CONFLICT (run_id, doc_id, source_name) DO UPDATE SET
			link_depth = LEAST(document_queue.link_depth, EXCLUDED.link_depth)
	`, runID, docID, sourceName, sourceType, priority, linkDepth, q.maxRetries, metaJSON)
	if err != nil {
		return fmt.Errorf("runqueue: add document: %w", err)
	}
	if q.hint != nil {
		q.hint.Notify(ctx, runID)
	}
	return nil
}

// AddLinkedDocument records the parent→child edge (idempotently) and
// enqueues the child at linkDepth (callers pass the parent's depth plus
// one), mirroring add_linked_document.
func (q *Queue) AddLinkedDocument(ctx context.Context, runID, parentDocID, childDocID, sourceName string, linkDepth int) (bool, error) {
	tag, err := q.pool.Exec(ctx, `
		INSERT INTO document_dependencies (run_id, parent_doc_id, child_doc_id, source_name, discovered_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT DO NOTHING
	`, runID, parentDocID, childDocID, sourceName)
	if err != nil {
		return false, fmt.Errorf("runqueue: add dependency edge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Edge already recorded; still make sure the child is queued (it
		// may have been discovered by another worker but not yet claimed).
	}
	if err := q.AddDocument(ctx, runID, childDocID, sourceName, "linked", 0, linkDepth, nil); err != nil {
		return false, err
	}
	return true, nil
}

// ClaimedDocument is the row shape ClaimNext returns; it exposes enough of the
// queue row for the worker to act on (link depth, retry count, metadata).
type ClaimedDocument struct {
	QueueID    int64
	RunID      string
	DocID      string
	SourceName string
	SourceType string
	LinkDepth  int
	RetryCount int
	MaxRetries int
	Metadata   map[string]any
}

// ClaimNext claims the highest-priority claimable document for runID: first
// a pending or retry item whose scheduled_for has arrived, falling back to a
// processing item whose claim has gone stale (claimed_at older than
// claimTimeout). Both passes use FOR UPDATE SKIP LOCKED so concurrent
// workers never claim the same row twice. Returns ErrNoWork if nothing is
// claimable right now.
func (q *Queue) ClaimNext(ctx context.Context, runID string) (*ClaimedDocument, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("runqueue: claim begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row, err := q.selectClaimable(ctx, tx, runID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNoWork
	}

	var metaJSON []byte
	_, err = tx.Exec(ctx, `
		UPDATE document_queue SET status = 'processing', claimed_at = now(), claimed_by = $2
		WHERE queue_id = $1
	`, row.QueueID, q.workerID)
	if err != nil {
		return nil, fmt.Errorf("runqueue: claim update: %w", err)
	}

	err = tx.QueryRow(ctx, `SELECT metadata FROM document_queue WHERE queue_id = $1`, row.QueueID).Scan(&metaJSON)
	if err != nil {
		return nil, fmt.Errorf("runqueue: claim reread metadata: %w", err)
	}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &row.Metadata)
	}

	if err := q.bumpWorkerStat(ctx, tx, runID, "processing"); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("runqueue: claim commit: %w", err)
	}
	return row, nil
}

func (q *Queue) selectClaimable(ctx context.Context, tx pgx.Tx, runID string) (*ClaimedDocument, error) {
	row := tx.QueryRow(ctx, `
		SELECT queue_id, run_id, doc_id, source_name, source_type, link_depth, retry_count, max_retries
		FROM document_queue
		WHERE run_id = $1 AND status IN ('pending', 'retry') AND scheduled_for <= now()
		ORDER BY priority DESC, link_depth ASC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, runID)
	doc, err := scanClaimed(row)
	if err == nil {
		return doc, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("runqueue: select pending: %w", err)
	}

	row = tx.QueryRow(ctx, `
		SELECT queue_id, run_id, doc_id, source_name, source_type, link_depth, retry_count, max_retries
		FROM document_queue
		WHERE run_id = $1 AND status = 'processing' AND claimed_at < now() - $2::interval
		ORDER BY priority DESC, link_depth ASC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, runID, fmt.Sprintf("%d seconds", int(q.claimTimeout.Seconds())))
	doc, err = scanClaimed(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("runqueue: select stale: %w", err)
	}
	return doc, nil
}

func scanClaimed(row pgx.Row) (*ClaimedDocument, error) {
	var d ClaimedDocument
	err := row.Scan(&d.QueueID, &d.RunID, &d.DocID, &d.SourceName, &d.SourceType, &d.LinkDepth, &d.RetryCount, &d.MaxRetries)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// MarkCompleted transitions a claimed item to completed, only if claimedBy
// still matches q.workerID (a stale-claim reclaim may have already moved it
// to a different worker).
func (q *Queue) MarkCompleted(ctx context.Context, runID string, queueID int64, contentHash string, fileSize int64) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("runqueue: mark completed begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE document_queue SET status = 'completed', completed_at = now(), content_hash = $3, file_size = $4
		WHERE queue_id = $1 AND claimed_by = $2 AND status = 'processing'
	`, queueID, q.workerID, contentHash, fileSize)
	if err != nil {
		return fmt.Errorf("runqueue: mark completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkerMismatch
	}

	_, err = tx.Exec(ctx, `UPDATE processing_runs SET docs_complete = docs_complete + 1 WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("runqueue: bump run complete count: %w", err)
	}
	if err := q.bumpWorkerStat(ctx, tx, runID, "completed"); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// MarkFailed either schedules a retry with exponential backoff
// (60 * 2^retry_count seconds) or, once max_retries is exhausted, finalizes
// the item as failed. Callers that determine the error is critical (see
// IsCriticalError) should route to the dead-letter queue instead of
// calling MarkFailed.
func (q *Queue) MarkFailed(ctx context.Context, runID string, queueID int64, errMsg string, errDetails map[string]any) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("runqueue: mark failed begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var retryCount, maxRetries int
	err = tx.QueryRow(ctx, `SELECT retry_count, max_retries FROM document_queue WHERE queue_id = $1`, queueID).
		Scan(&retryCount, &maxRetries)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("runqueue: mark failed: queue item %d not found", queueID)
	}
	if err != nil {
		return fmt.Errorf("runqueue: mark failed lookup: %w", err)
	}

	detailsJSON, err := json.Marshal(errDetails)
	if err != nil {
		return fmt.Errorf("runqueue: marshal error details: %w", err)
	}

	if RetriesExhausted(retryCount, maxRetries) {
		_, err = tx.Exec(ctx, `
			UPDATE document_queue SET status = 'failed', retry_count = retry_count + 1, error_message = $2, metadata = metadata || jsonb_build_object('error_details', $3::jsonb)
			WHERE queue_id = $1
		`, queueID, errMsg, detailsJSON)
		if err != nil {
			return fmt.Errorf("runqueue: finalize failed: %w", err)
		}
		_, err = tx.Exec(ctx, `UPDATE processing_runs SET docs_failed = docs_failed + 1 WHERE run_id = $1`, runID)
		if err != nil {
			return fmt.Errorf("runqueue: bump run failed count: %w", err)
		}
	} else {
		delay := RetryDelay(retryCount)
		_, err = tx.Exec(ctx, `
			UPDATE document_queue SET status = 'retry', retry_count = retry_count + 1, scheduled_for = now() + $2::interval, error_message = $3
			WHERE queue_id = $1
		`, queueID, fmt.Sprintf("%d seconds", int(delay.Seconds())), errMsg)
		if err != nil {
			return fmt.Errorf("runqueue: schedule retry: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// RetryDelay implements the 60 * 2^n backoff schedule: retryCount 0 → 60s,
// 1 → 120s, 2 → 240s, ...
func RetryDelay(retryCount int) time.Duration {
	return time.Duration(60) * time.Second * time.Duration(1<<uint(retryCount))
}

// RetriesExhausted reports whether a row already at retryCount has used up
// its retry budget: a row may reach processing at most maxRetries+1 times
// before it is finalized as failed.
func RetriesExhausted(retryCount, maxRetries int) bool {
	return retryCount >= maxRetries
}

// GetQueueStatus aggregates counts by status for completion polling.
func (q *Queue) GetQueueStatus(ctx context.Context, runID string) (QueueStatusCounts, error) {
	var c QueueStatusCounts
	err := q.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'retry')
		FROM document_queue WHERE run_id = $1
	`, runID).Scan(&c.Pending, &c.Processing, &c.Completed, &c.Failed, &c.Retry)
	if err != nil {
		return QueueStatusCounts{}, fmt.Errorf("runqueue: get queue status: %w", err)
	}
	return c, nil
}

// ListCompletedDocIDs returns the doc_ids of every completed item in runID,
// the input set for C6's post-processing cross-document relationship pass
// (spec.md §4.5 step 5).
func (q *Queue) ListCompletedDocIDs(ctx context.Context, runID string) ([]string, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT DISTINCT doc_id FROM document_queue WHERE run_id = $1 AND status = 'completed'
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("runqueue: list completed doc ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("runqueue: scan completed doc id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (q *Queue) bumpWorkerStat(ctx context.Context, tx pgx.Tx, runID, status string) error {
	_, err := tx.Exec(ctx, `
		UPDATE run_workers SET status = $3, last_heartbeat = now() WHERE run_id = $1 AND worker_id = $2
	`, runID, q.workerID, status)
	if err != nil {
		return fmt.Errorf("runqueue: bump worker stat: %w", err)
	}
	return nil
}
