package runqueue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// RunCoordinator derives deterministic run identity from configuration and
// manages the processing_runs / run_workers tables, grounded on the
// original RunCoordinator's get_run_id_from_config / ensure_run_exists /
// register_worker trio.
type RunCoordinator struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

func NewRunCoordinator(pool *pgxpool.Pool, log *logrus.Entry) *RunCoordinator {
	return &RunCoordinator{pool: pool, log: log.WithField("component", "run_coordinator")}
}

// ComputeRunID hashes the processing-relevant config subset (content
// sources, storage, embedding, relationship detection — never worker-local
// fields like ports or worker counts) to a 16-hex-character run identity.
// Two configs differing only in worker-local fields must hash identical.
func ComputeRunID(processingRelevant map[string]any) (string, error) {
	canonical, err := json.Marshal(processingRelevant)
	if err != nil {
		return "", fmt.Errorf("runqueue: canonicalize config: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16], nil
}

// EnsureRunExists inserts a processing_runs row if one doesn't already
// exist for runID, idempotently (ON CONFLICT DO NOTHING), so concurrent
// coordinators racing to start the same run never collide.
func (c *RunCoordinator) EnsureRunExists(ctx context.Context, runID, configHash string) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO processing_runs (run_id, config_hash, status, started_at, worker_count, docs_queued, docs_complete, docs_failed)
		VALUES ($1, $2, 'active', now(), 0, 0, 0, 0)
		ON CONFLICT (run_id) DO NOTHING
	`, runID, configHash)
	if err != nil {
		return fmt.Errorf("runqueue: ensure run exists: %w", err)
	}
	return nil
}

// RegisterWorker upserts a run_workers row and recomputes the run's active
// worker_count from distinct active workers, matching register_worker.
func (c *RunCoordinator) RegisterWorker(ctx context.Context, runID, workerID string) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("runqueue: register worker begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO run_workers (run_id, worker_id, status, registered_at, last_heartbeat)
		VALUES ($1, $2, 'active', now(), now())
		ON CONFLICT (run_id, worker_id) DO UPDATE SET status = 'active', last_heartbeat = now()
	`, runID, workerID)
	if err != nil {
		return fmt.Errorf("runqueue: upsert worker: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE processing_runs SET worker_count = (
			SELECT COUNT(DISTINCT worker_id) FROM run_workers WHERE run_id = $1 AND status = 'active'
		) WHERE run_id = $1
	`, runID)
	if err != nil {
		return fmt.Errorf("runqueue: update worker count: %w", err)
	}

	return tx.Commit(ctx)
}

// Heartbeat touches the worker's last_heartbeat in run_workers so stale
// workers can be detected by their age. The run row is not touched.
func (c *RunCoordinator) Heartbeat(ctx context.Context, runID, workerID string) error {
	_, err := c.pool.Exec(ctx, `
		UPDATE run_workers SET last_heartbeat = now() WHERE run_id = $1 AND worker_id = $2
	`, runID, workerID)
	if err != nil {
		return fmt.Errorf("runqueue: heartbeat: %w", err)
	}
	return nil
}

// GetRun loads a run's current row.
func (c *RunCoordinator) GetRun(ctx context.Context, runID string) (ProcessingRun, error) {
	var r ProcessingRun
	err := c.pool.QueryRow(ctx, `
		SELECT run_id, config_hash, status, started_at, completed_at, worker_count, docs_queued, docs_complete, docs_failed
		FROM processing_runs WHERE run_id = $1
	`, runID).Scan(&r.RunID, &r.ConfigHash, &r.Status, &r.StartedAt, &r.CompletedAt, &r.WorkerCount, &r.DocsQueued, &r.DocsComplete, &r.DocsFailed)
	if err == pgx.ErrNoRows {
		return ProcessingRun{}, ErrRunNotFound
	}
	if err != nil {
		return ProcessingRun{}, fmt.Errorf("runqueue: get run: %w", err)
	}
	return r, nil
}

// CompleteRun sets a run's status to completed and stamps completed_at. It
// does not check the queue itself; Coordinator.Run calls it after its
// completion wait, including when that wait timed out.
func (c *RunCoordinator) CompleteRun(ctx context.Context, runID string) error {
	_, err := c.pool.Exec(ctx, `
		UPDATE processing_runs SET status = 'completed', completed_at = now() WHERE run_id = $1
	`, runID)
	if err != nil {
		return fmt.Errorf("runqueue: complete run: %w", err)
	}
	return nil
}
