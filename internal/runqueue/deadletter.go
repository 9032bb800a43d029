package runqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DeadLetterQueue holds items that exhausted their retry budget or hit a
// critical error, grounded on document_processor.py's dead-letter move.
type DeadLetterQueue struct {
	pool *pgxpool.Pool
}

func NewDeadLetterQueue(pool *pgxpool.Pool) *DeadLetterQueue {
	return &DeadLetterQueue{pool: pool}
}

// MoveToDeadLetter finalizes the source queue_id as failed and records a
// dead_letter_items row with the error details, in one transaction so a
// crash between the two writes can't lose the item.
func (d *DeadLetterQueue) MoveToDeadLetter(ctx context.Context, runID string, queueID int64, errMsg string, errDetails map[string]any) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("runqueue: dlq begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var docID, sourceName string
	err = tx.QueryRow(ctx, `SELECT doc_id, source_name FROM document_queue WHERE queue_id = $1`, queueID).Scan(&docID, &sourceName)
	if err != nil {
		return fmt.Errorf("runqueue: dlq lookup: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE document_queue SET status = 'failed', error_message = $2 WHERE queue_id = $1`, queueID, errMsg)
	if err != nil {
		return fmt.Errorf("runqueue: dlq finalize source: %w", err)
	}

	detailsJSON, err := json.Marshal(errDetails)
	if err != nil {
		return fmt.Errorf("runqueue: marshal dlq error details: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO dead_letter_items (queue_id, run_id, doc_id, source_name, error_message, error_details, moved_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, queueID, runID, docID, sourceName, errMsg, detailsJSON)
	if err != nil {
		return fmt.Errorf("runqueue: dlq insert: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE processing_runs SET docs_failed = docs_failed + 1 WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("runqueue: dlq bump run failed count: %w", err)
	}

	return tx.Commit(ctx)
}

// List returns the dead-letter items recorded for a run, for DLQ
// inspection (the admin API exposes this read-only).
func (d *DeadLetterQueue) List(ctx context.Context, runID string) ([]DeadLetterItem, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT queue_id, run_id, doc_id, source_name, error_message, error_details, moved_at
		FROM dead_letter_items WHERE run_id = $1 ORDER BY moved_at DESC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("runqueue: dlq list: %w", err)
	}
	defer rows.Close()

	var out []DeadLetterItem
	for rows.Next() {
		var item DeadLetterItem
		var detailsJSON []byte
		if err := rows.Scan(&item.QueueID, &item.RunID, &item.DocID, &item.SourceName, &item.ErrorMessage, &detailsJSON, &item.MovedAt); err != nil {
			return nil, fmt.Errorf("runqueue: dlq scan: %w", err)
		}
		if len(detailsJSON) > 0 {
			_ = json.Unmarshal(detailsJSON, &item.ErrorDetails)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// criticalErrorTypes mirrors _is_critical_error's exception-class-name
// list: errors unlikely to be fixed by a blind retry.
var criticalErrorTypes = map[string]bool{
	"UnsupportedFileFormatError": true,
	"InvalidDocumentFormatError": true,
	"CorruptedFileError":         true,
	"ParserConfigurationError":   true,
	"UnsupportedDocumentTypeError": true,
	"PermissionError":           true,
	"AuthenticationError":       true,
	"AccessDeniedError":         true,
	"ConfigurationError":        true,
	"InvalidConfigError":        true,
}

var criticalErrorSubstrings = []string{
	"permission denied",
	"access denied",
	"authentication failed",
	"invalid format",
	"corrupted file",
	"unsupported format",
}

// IsCriticalError reports whether an error type name or message indicates
// a condition a retry cannot fix, so the worker should route straight to
// the dead-letter queue regardless of remaining retry budget.
func IsCriticalError(errType string, err error) bool {
	if criticalErrorTypes[errType] {
		return true
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range criticalErrorSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
