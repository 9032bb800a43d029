package runqueue

import "errors"

// ErrNoWork is returned by Queue.ClaimNext when nothing is claimable right
// now; worker.Processor.Run treats it as the end of its loop and returns
// without error, not as a failure.
var ErrNoWork = errors.New("runqueue: no claimable work")

// ErrWorkerMismatch is returned when MarkCompleted is called with a worker
// ID that does not match the claim on record (MarkFailed does not check the
// claim holder) — another worker's
// reclaim raced ahead of a stale claim holder.
var ErrWorkerMismatch = errors.New("runqueue: claim held by a different worker")

// ErrRunNotFound is returned when an operation references a run_id that has
// no processing_runs row.
var ErrRunNotFound = errors.New("runqueue: run not found")
