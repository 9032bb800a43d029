// Package app wires the concrete collaborators (storage backend, work
// queue, content-source registry, relationship detector, embedding
// provider) that the coordinator and worker packages depend on through
// interfaces, so the cli package has one place to assemble a runnable
// pipeline from a config.Config.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"corpusforge.dev/coordinator"
	"corpusforge.dev/internal/config"
	"corpusforge.dev/internal/contentsource"
	"corpusforge.dev/internal/embedding"
	"corpusforge.dev/internal/logging"
	"corpusforge.dev/internal/metrics"
	"corpusforge.dev/internal/ontology"
	"corpusforge.dev/internal/relationships"
	"corpusforge.dev/internal/runqueue"
	"corpusforge.dev/internal/storage"
	"corpusforge.dev/internal/storage/postgres"
)

// App is every long-lived collaborator a coordinator or worker run needs.
// Close releases the pool and any optional connections.
type App struct {
	Config      *config.Config
	Log         *logrus.Entry
	Pool        *pgxpool.Pool
	Backend     storage.Backend
	Runs        *runqueue.RunCoordinator
	DLQ         *runqueue.DeadLetterQueue
	Sources     *contentsource.Registry
	Embedding   ontology.EmbeddingProvider
	EmbedModel  string
	Detector    relationships.Detector
	Metrics     *metrics.Metrics
	hint        *runqueue.ClaimHint
}

// New connects to Postgres, loads ontologies, and assembles the detector
// pipeline. Redis and embeddings are both optional: their absence disables
// claim-hint acceleration and embedding generation respectively, never
// correctness.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.New("corpusforge", logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.WithFields(logrus.Fields{"database": cfg.Redacted()["database"], "redis": cfg.Redacted()["redis"]}).Info("starting corpusforge")

	pool, err := pgxpool.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("app: connect database: %w", err)
	}

	backend, err := postgres.New(ctx, cfg.Database, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: init storage backend: %w", err)
	}

	runs := runqueue.NewRunCoordinator(pool, log)

	a := &App{
		Config:  cfg,
		Log:     log,
		Pool:    pool,
		Backend: backend,
		Runs:    runs,
		DLQ:     runqueue.NewDeadLetterQueue(pool),
		Sources: contentsource.NewRegistry(),
		Metrics: metrics.New("corpusforge"),
	}

	if cfg.Embedding.Enabled {
		provider := embedding.NewOllamaProvider(cfg.Embedding.Endpoint, cfg.Embedding.Model)
		a.Embedding = provider
		a.EmbedModel = provider.Name()
	}

	ontologies, err := loadOntologies(log, cfg.Ontology.Paths)
	if err != nil {
		backend.Close()
		pool.Close()
		return nil, err
	}

	detectors := []relationships.Detector{relationships.NewExplicitLinkDetector(), relationships.NewStructuralRelationshipDetector()}
	if len(ontologies) > 0 {
		domainDetector := relationships.NewDomainRelationshipDetector(ontologies, a.Embedding, backend).WithMetrics(a.Metrics)
		detectors = append(detectors, domainDetector)
	}
	a.Detector = relationships.NewCompositeDetector(detectors...)

	if cfg.Redis != "" {
		hint, err := runqueue.NewClaimHint(ctx, cfg.Redis, "corpusforge:claim-hint", log)
		if err != nil {
			log.WithError(err).Warn("claim hint unavailable, falling back to plain polling")
		} else {
			a.hint = hint
		}
	}

	return a, nil
}

// NewQueue builds a Queue bound to workerID, wired with this App's optional
// claim hint.
func (a *App) NewQueue(workerID string) *runqueue.Queue {
	opts := []runqueue.Option{runqueue.WithMaxRetries(a.Config.Run.MaxRetries)}
	if a.hint != nil {
		opts = append(opts, runqueue.WithClaimHint(a.hint))
	}
	return runqueue.NewQueue(a.Pool, workerID, a.Log, opts...)
}

// PostProcessor builds the cross-document relationship post-processor, or
// a true nil interface if embeddings are disabled (post-processing is
// meaningless without them per spec.md §4.5 step 5) — returned through the
// named interface type so Coordinator.Run's nil check behaves correctly
// rather than wrapping a nil *CrossDocumentContainerDetector.
func (a *App) PostProcessor() coordinator.PostProcessor {
	if a.Embedding == nil {
		return nil
	}
	return relationships.NewCrossDocumentContainerDetector(a.Backend)
}

// Close releases every connection this App opened.
func (a *App) Close() {
	if a.hint != nil {
		a.hint.Close()
	}
	a.Backend.Close()
	a.Pool.Close()
}

func loadOntologies(log *logrus.Entry, paths []string) ([]*ontology.Ontology, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	loader := ontology.NewLoader(log)
	out := make([]*ontology.Ontology, 0, len(paths))
	for _, p := range paths {
		ont, err := loader.LoadFromFile(p)
		if err != nil {
			return nil, fmt.Errorf("app: load ontology %s: %w", p, err)
		}
		out = append(out, ont)
	}
	return out, nil
}
