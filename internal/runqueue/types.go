// Package runqueue implements the distributed work-queue engine: run
// identity and lifecycle (RunCoordinator), document claiming with
// exactly-once semantics and retry/backoff (Queue), and the dead-letter
// queue (DeadLetterQueue). All three share one Postgres connection pool and
// the same row-locking discipline the original RunCoordinator/WorkQueue
// pair used.
package runqueue

import "time"

// QueueStatus is one of the document_queue row's lifecycle states.
type QueueStatus string

const (
	StatusPending    QueueStatus = "pending"
	StatusProcessing QueueStatus = "processing"
	StatusCompleted  QueueStatus = "completed"
	StatusFailed     QueueStatus = "failed"
	StatusRetry      QueueStatus = "retry"
)

// ProcessingRun is one coordinated pass over a set of content sources,
// identified by a hash of its processing-relevant configuration.
type ProcessingRun struct {
	RunID        string
	ConfigHash   string
	Status       string
	StartedAt    time.Time
	CompletedAt  *time.Time
	WorkerCount  int
	DocsQueued   int64
	DocsComplete int64
	DocsFailed   int64
}

// Worker is one registered participant in a run.
type Worker struct {
	RunID         string
	WorkerID      string
	Status        string
	RegisteredAt  time.Time
	LastHeartbeat time.Time
}

// QueueItem is one row of document_queue: a unit of claimable work.
type QueueItem struct {
	QueueID     int64
	RunID       string
	DocID       string
	SourceName  string
	SourceType  string
	Status      QueueStatus
	Priority    int
	LinkDepth   int
	RetryCount  int
	MaxRetries  int
	ScheduledFor time.Time
	ClaimedAt   *time.Time
	ClaimedBy   string
	CreatedAt   time.Time
	CompletedAt *time.Time
	ContentHash string
	FileSize    int64
	ErrorMessage string
	Metadata    map[string]any
}

// Dependency records a parent→child link-following edge, used for
// idempotent re-discovery of the same link across workers/runs.
type Dependency struct {
	RunID        string
	ParentDocID  string
	ChildDocID   string
	SourceName   string
	DiscoveredAt time.Time
}

// DeadLetterItem is a queue item that exhausted its retry budget or hit a
// critical, non-retryable error.
type DeadLetterItem struct {
	QueueID      int64
	RunID        string
	DocID        string
	SourceName   string
	ErrorMessage string
	ErrorDetails map[string]any
	MovedAt      time.Time
}

// QueueStatusCounts is the aggregate view returned by GetQueueStatus.
type QueueStatusCounts struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
	Retry      int64
}

// Done reports whether a run has no outstanding work left, the completion
// condition the processing coordinator polls for.
func (c QueueStatusCounts) Done() bool {
	return c.Pending+c.Processing+c.Retry == 0
}
