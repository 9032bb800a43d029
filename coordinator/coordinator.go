// Package coordinator implements the processing coordinator (C6):
// discovery and seed-enqueue of configured content sources, completion
// polling, and the post-processing trigger, grounded on original_source's
// coordinate_processing_run and this repository's runqueue/contentsource
// packages.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"corpusforge.dev/internal/contentsource"
	"corpusforge.dev/internal/metrics"
	"corpusforge.dev/internal/runqueue"
)

const (
	// checkInterval is how often the completion loop polls queue status,
	// per spec.md §4.5 step 4.
	checkInterval = 30 * time.Second
	// logInterval is how often the completion loop logs progress while
	// waiting, independent of the poll cadence.
	logInterval = 60 * time.Second
	// maxWaitTime bounds the completion loop; past this the coordinator
	// logs an error and proceeds rather than waiting forever.
	maxWaitTime = 3600 * time.Second
)

// SourceConfig is one configured content source the coordinator seeds
// documents from.
type SourceConfig struct {
	Name         string
	Config       contentsource.Config
	MaxLinkDepth int // 0 means "use the per-call override or default"
}

// PostProcessor runs cross-document relationship discovery over a run's
// completed documents, invoked only if embeddings are enabled. Failures are
// logged, not propagated, per spec.md §4.5 step 5.
type PostProcessor interface {
	ProcessCompletedRun(ctx context.Context, runID string, docIDs []string) error
}

// Coordinator orchestrates one processing run: materializing the run,
// seeding the queue from configured sources, waiting for completion, and
// triggering post-processing.
type Coordinator struct {
	runs          *runqueue.RunCoordinator
	queue         *runqueue.Queue
	sources       *contentsource.Registry
	postProcessor PostProcessor
	embeddingsOn  bool
	metrics       *metrics.Metrics
	log           *logrus.Entry
}

// New builds a Coordinator. postProcessor and embeddingsOn may be
// zero-valued together to disable post-processing entirely.
func New(runs *runqueue.RunCoordinator, queue *runqueue.Queue, sources *contentsource.Registry, postProcessor PostProcessor, embeddingsOn bool, log *logrus.Entry) *Coordinator {
	return &Coordinator{
		runs:          runs,
		queue:         queue,
		sources:       sources,
		postProcessor: postProcessor,
		embeddingsOn:  embeddingsOn,
		log:           log.WithField("component", "processing_coordinator"),
	}
}

// WithMetrics reports queue-depth gauges to m on every completion-poll
// cycle, returning the Coordinator for chaining at construction time.
func (c *Coordinator) WithMetrics(m *metrics.Metrics) *Coordinator {
	c.metrics = m
	return c
}

// Stats is the aggregate result of one coordinated run, per spec.md §4.5
// step 6.
type Stats struct {
	RunID       string
	DocsQueued  int64
	DocsComplete int64
	DocsFailed  int64
	TimedOut    bool
	Runtime     time.Duration
}

// Run executes coordinate_processing_run: it materializes the run, seeds
// every configured source, waits for quiescence, and triggers
// post-processing. onSeeded, if non-nil, is invoked with the run's id once
// every source has been registered and seed-enqueued — callers running
// workers in the same process (rather than joining an already-seeded run
// from a separate "worker" invocation) should start them from this
// callback, so they never race ClaimNext against registration.
func (c *Coordinator) Run(ctx context.Context, processingConfig map[string]any, sourceConfigs []SourceConfig, maxLinkDepthOverride int, onSeeded func(runID string)) (Stats, error) {
	start := time.Now()

	runID, err := runqueue.ComputeRunID(processingConfig)
	if err != nil {
		return Stats{}, fmt.Errorf("coordinator: compute run id: %w", err)
	}
	configHash := runID // the run id already is the config hash truncated; stored as both per schema

	if err := c.runs.EnsureRunExists(ctx, runID, configHash); err != nil {
		return Stats{}, fmt.Errorf("coordinator: ensure run exists: %w", err)
	}

	log := c.log.WithField("run_id", runID)

	for _, sc := range sourceConfigs {
		if err := c.seedSource(ctx, runID, sc, maxLinkDepthOverride, log); err != nil {
			log.WithError(err).WithField("source_name", sc.Name).Error("failed to seed source")
		}
	}

	if onSeeded != nil {
		onSeeded(runID)
	}

	timedOut := c.waitForCompletion(ctx, runID, log)

	run, err := c.runs.GetRun(ctx, runID)
	if err != nil {
		return Stats{}, fmt.Errorf("coordinator: get run: %w", err)
	}

	if c.embeddingsOn && c.postProcessor != nil {
		if err := c.runPostProcessing(ctx, runID, log); err != nil {
			log.WithError(err).Warn("post-processing failed")
		}
	}

	if err := c.runs.CompleteRun(ctx, runID); err != nil {
		log.WithError(err).Warn("failed to mark run completed")
	}

	return Stats{
		RunID:        runID,
		DocsQueued:   run.DocsQueued,
		DocsComplete: run.DocsComplete,
		DocsFailed:   run.DocsFailed,
		TimedOut:     timedOut,
		Runtime:      time.Since(start),
	}, nil
}

// seedSource instantiates sc's source via the factory, registers it, lists
// its documents, and enqueues each as a seed (link_depth=0), per spec.md
// §4.5 step 3.
func (c *Coordinator) seedSource(ctx context.Context, runID string, sc SourceConfig, maxLinkDepthOverride int, log *logrus.Entry) error {
	source, err := contentsource.New(sc.Config)
	if err != nil {
		return fmt.Errorf("instantiate source: %w", err)
	}
	c.sources.Unregister(sc.Name)
	if err := c.sources.Register(sc.Name, source); err != nil {
		return fmt.Errorf("register source: %w", err)
	}

	docs, err := source.List(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	maxLinkDepth := sc.MaxLinkDepth
	if maxLinkDepthOverride > 0 {
		maxLinkDepth = maxLinkDepthOverride
	}

	for _, d := range docs {
		metadata := map[string]any{
			"source_config": sc.Config.Settings,
		}
		if maxLinkDepth > 0 {
			// Left unset at 0 so the worker applies its own default depth.
			metadata["max_link_depth"] = maxLinkDepth
		}
		if err := c.queue.AddDocument(ctx, runID, d.ID, sc.Name, string(sc.Config.Type), 0, 0, metadata); err != nil {
			log.WithError(err).WithField("doc_id", d.ID).Warn("failed to enqueue seed document")
		}
	}
	log.WithField("source_name", sc.Name).WithField("count", len(docs)).Info("seeded source")
	return nil
}

// waitForCompletion polls the queue until quiescent or maxWaitTime elapses,
// per spec.md §4.5 step 4. Returns true if it timed out.
func (c *Coordinator) waitForCompletion(ctx context.Context, runID string, log *logrus.Entry) bool {
	deadline := time.Now().Add(maxWaitTime)
	lastLog := time.Now()

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		status, err := c.queue.GetQueueStatus(ctx, runID)
		if err != nil {
			log.WithError(err).Warn("failed to poll queue status")
		} else if status.Done() {
			return false
		} else {
			if c.metrics != nil {
				c.metrics.SetQueueDepth(float64(status.Pending), float64(status.Processing), float64(status.Completed), float64(status.Failed), float64(status.Retry))
			}
			if time.Since(lastLog) >= logInterval {
				log.WithFields(logrus.Fields{
					"pending":    status.Pending,
					"processing": status.Processing,
					"retry":      status.Retry,
					"completed":  status.Completed,
					"failed":     status.Failed,
				}).Info("waiting for run completion")
				lastLog = time.Now()
			}
		}

		if time.Now().After(deadline) {
			log.Error("completion wait timed out, proceeding")
			return true
		}

		select {
		case <-ctx.Done():
			return true
		case <-ticker.C:
		}
	}
}

func (c *Coordinator) runPostProcessing(ctx context.Context, runID string, log *logrus.Entry) error {
	docIDs, err := c.queue.ListCompletedDocIDs(ctx, runID)
	if err != nil {
		return fmt.Errorf("list completed documents: %w", err)
	}
	log.WithField("doc_count", len(docIDs)).Info("running post-processing")
	return c.postProcessor.ProcessCompletedRun(ctx, runID, docIDs)
}
