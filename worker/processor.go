// Package worker implements the document processor (C5): the per-claim
// processing loop that pulls items from the work queue, fetches content
// through a content source, parses it, detects relationships, persists the
// result, and discovers links — grounded on original_source's
// DocumentProcessor.process_next_document and this repository's
// contentsource/runqueue/parser/relationships/storage packages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"corpusforge.dev/internal/contentsource"
	"corpusforge.dev/internal/metrics"
	"corpusforge.dev/internal/ontology"
	"corpusforge.dev/internal/parser"
	"corpusforge.dev/internal/relationships"
	"corpusforge.dev/internal/runqueue"
	"corpusforge.dev/internal/storage"
)

// defaultMaxLinkDepth is used when a claimed item's metadata carries no
// explicit max_link_depth, matching the "default 1" in spec.md §4.4 step 9.
const defaultMaxLinkDepth = 1

// heartbeatEvery is how many completions elapse between heartbeats, per
// spec.md §4.4 step 12.
const heartbeatEvery = 10

// Processor is one worker process instance: it claims and processes queue
// items against one run until the queue has no more claimable work or
// maxDocuments is reached.
type Processor struct {
	id          string
	queue       *runqueue.Queue
	dlq         *runqueue.DeadLetterQueue
	coordinator *runqueue.RunCoordinator
	backend     storage.Backend
	sources     *contentsource.Registry
	detector    relationships.Detector
	embedding   ontology.EmbeddingProvider
	embedModel  string
	metrics     *metrics.Metrics
	log         *logrus.Entry

	completions int
}

// Option configures a Processor at construction.
type Option func(*Processor)

// WithEmbeddings enables per-element embedding generation (spec.md §4.4
// step 8) using provider, recorded against modelName.
func WithEmbeddings(provider ontology.EmbeddingProvider, modelName string) Option {
	return func(p *Processor) {
		p.embedding = provider
		p.embedModel = modelName
	}
}

// WithMetrics reports claim/completion/failure counts to m. A Processor
// built without this option runs with metrics disabled (m stays nil, and
// every increment site below is guarded).
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// New builds a Processor bound to one worker identity and run-scoped
// collaborators.
func New(
	workerID string,
	queue *runqueue.Queue,
	dlq *runqueue.DeadLetterQueue,
	coordinator *runqueue.RunCoordinator,
	backend storage.Backend,
	sources *contentsource.Registry,
	detector relationships.Detector,
	log *logrus.Entry,
	opts ...Option,
) *Processor {
	p := &Processor{
		id:          workerID,
		queue:       queue,
		dlq:         dlq,
		coordinator: coordinator,
		backend:     backend,
		sources:     sources,
		detector:    detector,
		log:         log.WithField("component", "document_processor").WithField("worker_id", workerID),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stats is the tally of one Run call.
type Stats struct {
	Claimed   int
	Completed int
	Failed    int
	DeadLet   int
	ShortCircuited int
}

// Run executes the main loop described in spec.md §4.4: claim, process,
// repeat, until the queue reports ErrNoWork or maxDocuments is reached (0
// means unbounded).
func (p *Processor) Run(ctx context.Context, runID string, maxDocuments int) (Stats, error) {
	var stats Stats
	for {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if maxDocuments > 0 && stats.Claimed >= maxDocuments {
			return stats, nil
		}

		item, err := p.queue.ClaimNext(ctx, runID)
		if errors.Is(err, runqueue.ErrNoWork) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("worker: claim: %w", err)
		}
		stats.Claimed++
		if p.metrics != nil {
			p.metrics.DocumentsClaimed.Inc()
		}

		outcome, err := p.processOne(ctx, item)
		switch {
		case err != nil:
			return stats, err
		case outcome == outcomeDeadLettered:
			stats.DeadLet++
			if p.metrics != nil {
				p.metrics.DocumentsDeadLettered.Inc()
			}
		case outcome == outcomeFailed:
			stats.Failed++
			if p.metrics != nil {
				p.metrics.DocumentsRetried.Inc()
			}
		case outcome == outcomeShortCircuited:
			stats.ShortCircuited++
			stats.Completed++
			if p.metrics != nil {
				p.metrics.DocumentsShortCircuited.Inc()
				p.metrics.DocumentsCompleted.Inc()
			}
		default:
			stats.Completed++
			if p.metrics != nil {
				p.metrics.DocumentsCompleted.Inc()
			}
		}

		if stats.Completed > 0 && stats.Completed%heartbeatEvery == 0 {
			if hbErr := p.coordinator.Heartbeat(ctx, runID, p.id); hbErr != nil {
				p.log.WithError(hbErr).Warn("heartbeat failed")
			}
		}
	}
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeShortCircuited
	outcomeFailed
	outcomeDeadLettered
)

// processOne runs steps 2-11 of spec.md §4.4 for one claimed item.
func (p *Processor) processOne(ctx context.Context, item *runqueue.ClaimedDocument) (outcome, error) {
	entryLog := p.log.WithField("doc_id", item.DocID).WithField("source_name", item.SourceName)

	source, ok := p.sources.Get(item.SourceName)
	if !ok {
		err := fmt.Errorf("worker: no content source registered for %q", item.SourceName)
		return p.fail(ctx, item, "SourceResolutionError", err, entryLog)
	}

	fetched, err := source.Fetch(ctx, item.DocID)
	if err != nil {
		return p.fail(ctx, item, "FetchError", err, entryLog)
	}

	if short, shortErr := p.changeIsNoop(ctx, source, item, fetched); shortErr == nil && short {
		if err := p.queue.MarkCompleted(ctx, item.RunID, item.QueueID, fetched.ContentHash, int64(len(fetched.Content))); err != nil {
			return outcomeFailed, fmt.Errorf("worker: mark completed (short-circuit): %w", err)
		}
		return outcomeShortCircuited, nil
	} else if shortErr != nil {
		// Fail-open per spec.md §4.4 step 4: change-detection errors are
		// logged and processing continues as if the document changed.
		entryLog.WithError(shortErr).Warn("change detection failed, continuing")
	}

	contentType := fetched.ContentType
	content := fetched.Content
	parsed, err := p.parse(ctx, item.DocID, contentType, content)
	if err != nil {
		errType := "ParseError"
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			errType = "UnsupportedFileFormatError"
		}
		return p.fail(ctx, item, errType, err, entryLog)
	}

	doc := storage.Document{
		DocID:       item.DocID,
		SourceName:  item.SourceName,
		Title:       parsed.Title,
		ContentHash: fetched.ContentHash,
		Metadata:    fetched.Metadata,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	relElements := make([]relationships.Element, 0, len(parsed.Elements))
	storeElements := make([]storage.Element, 0, len(parsed.Elements))
	for _, el := range parsed.Elements {
		relElements = append(relElements, relationships.Element{
			ElementID:        el.ElementID,
			DocID:            item.DocID,
			ElementType:      el.ElementType,
			Text:             el.ContentPreview,
			ParentID:         el.ParentID,
			DocumentPosition: el.DocumentPosition,
		})
		storeElements = append(storeElements, storage.Element{
			ElementID:        el.ElementID,
			DocID:            item.DocID,
			ElementType:      el.ElementType,
			ContentPreview:   el.ContentPreview,
			ParentID:         el.ParentID,
			DocumentPosition: el.DocumentPosition,
			Attributes:       el.Attributes,
		})
	}
	relLinks := make([]relationships.Link, 0, len(parsed.Links))
	for _, l := range parsed.Links {
		relLinks = append(relLinks, relationships.Link{
			SourceElementID: l.SourceElementID,
			TargetElementID: l.TargetElementID,
			LinkType:        l.LinkType,
		})
	}

	discovered, err := p.detector.DetectRelationships(ctx, doc, relElements, relLinks)
	if err != nil {
		return p.fail(ctx, item, "RelationshipDetectionError", err, entryLog)
	}
	storeRels := make([]storage.Relationship, 0, len(discovered))
	for _, r := range discovered {
		storeRels = append(storeRels, storage.Relationship{
			SourceElementID:  r.SourceElementID,
			TargetElementID:  r.TargetElementID,
			RelationshipType: r.RelationshipType,
			Domain:           r.Domain,
			Confidence:       r.Confidence,
			Metadata:         r.Metadata,
		})
	}

	storeDates := make([]storage.ElementDate, 0, len(parsed.ElementDates))
	for _, d := range parsed.ElementDates {
		storeDates = append(storeDates, storage.ElementDate{
			ElementID: d.ElementID,
			DateValue: d.DateValue,
			DateType:  d.DateType,
			Text:      d.Text,
		})
	}

	if err := p.backend.StoreDocument(ctx, doc, storeElements, storeRels, storeDates); err != nil {
		return p.fail(ctx, item, "PersistenceError", err, entryLog)
	}
	if err := p.backend.UpdateProcessingHistory(ctx, item.DocID, fetched.ContentHash); err != nil {
		entryLog.WithError(err).Warn("update processing history failed")
	}

	if p.embedding != nil {
		if err := p.embedElements(ctx, storeElements); err != nil {
			entryLog.WithError(err).Warn("embedding generation failed")
		}
	}

	if err := p.discoverLinks(ctx, item, source, content); err != nil {
		entryLog.WithError(err).Warn("link discovery failed")
	}

	if err := p.queue.MarkCompleted(ctx, item.RunID, item.QueueID, fetched.ContentHash, int64(len(content))); err != nil {
		return outcomeFailed, fmt.Errorf("worker: mark completed: %w", err)
	}
	return outcomeCompleted, nil
}

// changeIsNoop implements spec.md §4.4 step 4: the document is unchanged if
// the source reports no change since the stored last_modified, or the fetch
// content hash matches the stored hash.
func (p *Processor) changeIsNoop(ctx context.Context, source contentsource.Source, item *runqueue.ClaimedDocument, fetched contentsource.FetchedDocument) (bool, error) {
	info, err := p.backend.GetLastProcessedInfo(ctx, item.DocID)
	if err != nil {
		return false, err
	}
	if info == nil {
		return false, nil
	}
	if fetched.ContentHash != "" && fetched.ContentHash == info.ContentHash {
		return true, nil
	}
	changed, err := source.HasChanged(ctx, item.DocID, info.LastModified)
	if err != nil {
		return false, err
	}
	return !changed, nil
}

func (p *Processor) parse(ctx context.Context, docID, contentType string, content []byte) (parser.ParsedDocument, error) {
	ct := parser.Registry(contentType)
	pr, err := parser.New(ct)
	if err != nil {
		return parser.ParsedDocument{}, err
	}
	return pr.Parse(ctx, docID, content)
}

func (p *Processor) embedElements(ctx context.Context, elements []storage.Element) error {
	for _, el := range elements {
		if el.ContentPreview == "" {
			continue
		}
		vec, err := p.embedding.Embed(ctx, el.ContentPreview)
		if err != nil {
			return fmt.Errorf("worker: embed %s: %w", el.ElementID, err)
		}
		if err := p.backend.StoreEmbedding(ctx, storage.Embedding{
			ElementID: el.ElementID,
			Vector:    vec,
			Model:     p.embedModel,
		}); err != nil {
			return fmt.Errorf("worker: store embedding %s: %w", el.ElementID, err)
		}
	}
	return nil
}

// discoverLinks implements spec.md §4.4 step 9.
func (p *Processor) discoverLinks(ctx context.Context, item *runqueue.ClaimedDocument, source contentsource.Source, content []byte) error {
	maxDepth := defaultMaxLinkDepth
	if v, ok := item.Metadata["max_link_depth"]; ok {
		if f, ok := v.(float64); ok {
			maxDepth = int(f)
		} else if i, ok := v.(int); ok {
			maxDepth = i
		}
	}
	if item.LinkDepth >= maxDepth {
		return nil
	}

	linked, err := source.FollowLinks(ctx, content, item.DocID, item.LinkDepth, nil)
	if err != nil {
		return err
	}
	for _, l := range linked {
		if _, err := p.queue.AddLinkedDocument(ctx, item.RunID, item.DocID, l.ID, item.SourceName, item.LinkDepth+1); err != nil {
			return err
		}
	}
	return nil
}

// fail implements spec.md §4.4 step 11: build error_details, then route to
// the DLQ if critical or retries already exhausted, else schedule a retry.
func (p *Processor) fail(ctx context.Context, item *runqueue.ClaimedDocument, errType string, cause error, log *logrus.Entry) (outcome, error) {
	details := map[string]any{
		"error_type": errType,
		"worker_id":  p.id,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	critical := runqueue.IsCriticalError(errType, cause) || errors.Is(cause, storage.ErrNotFound)
	exhausted := runqueue.RetriesExhausted(item.RetryCount, item.MaxRetries)

	if critical || exhausted {
		log.WithError(cause).WithField("critical", critical).Error("moving to dead-letter queue")
		if err := p.dlq.MoveToDeadLetter(ctx, item.RunID, item.QueueID, cause.Error(), details); err != nil {
			return outcomeFailed, fmt.Errorf("worker: move to dead letter: %w", err)
		}
		return outcomeDeadLettered, nil
	}

	log.WithError(cause).Warn("scheduling retry")
	if err := p.queue.MarkFailed(ctx, item.RunID, item.QueueID, cause.Error(), details); err != nil {
		return outcomeFailed, fmt.Errorf("worker: mark failed: %w", err)
	}
	return outcomeFailed, nil
}
