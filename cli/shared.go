package cli

import (
	"corpusforge.dev/internal/app"
	"corpusforge.dev/internal/config"
	"corpusforge.dev/internal/runqueue"
	"corpusforge.dev/worker"
)

// computeRunID derives the deterministic run identity from cfg's
// processing-relevant subset, the same computation coordinator.Run performs
// internally — exposed here so "worker" can join a run the coordinator (or
// another host's coordinator) already created.
func computeRunID(cfg *config.Config) (string, error) {
	return runqueue.ComputeRunID(cfg.ProcessingRelevant())
}

// workerOptions builds the worker.Option set implied by cfg: embedding
// generation when enabled, plus metrics reporting (always, since Metrics
// is cheap to construct and the admin API's /metrics route is opt-in
// independent of whether the collectors themselves are fed).
func workerOptions(a *app.App) []worker.Option {
	opts := []worker.Option{worker.WithMetrics(a.Metrics)}
	if a.Embedding != nil {
		opts = append(opts, worker.WithEmbeddings(a.Embedding, a.EmbedModel))
	}
	return opts
}
