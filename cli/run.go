package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"corpusforge.dev/coordinator"
	"corpusforge.dev/internal/adminapi"
	"corpusforge.dev/internal/app"
	"corpusforge.dev/internal/config"
	"corpusforge.dev/worker"
)

var (
	runMaxLinkDepthFlag int
	runWorkerCountFlag  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Coordinate one processing run end-to-end",
	Long: `run seeds the work queue from every configured content source, then
runs one or more in-process workers to quiescence, matching
coordinate_processing_run's single-command usage (spec.md §4.5). For a
fleet spanning multiple hosts, start the coordinator once with
--worker-count=0 and run "corpusforge worker" on each host instead.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runMaxLinkDepthFlag, "max-link-depth", 0, "override every source's configured max_link_depth (0 = use each source's own setting)")
	runCmd.Flags().IntVar(&runWorkerCountFlag, "worker-count", 1, "number of in-process workers to run alongside the coordinator")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sourceConfigs := make([]coordinator.SourceConfig, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sourceConfigs = append(sourceConfigs, coordinator.SourceConfig{
			Name:         s.Name,
			Config:       s.FactoryConfig(),
			MaxLinkDepth: s.MaxLinkDepth,
		})
	}

	coordQueue := a.NewQueue("coordinator-" + shortID())
	coord := coordinator.New(a.Runs, coordQueue, a.Sources, a.PostProcessor(), cfg.Embedding.Enabled, a.Log).WithMetrics(a.Metrics)

	if cfg.Admin.Enabled {
		runID, err := computeRunID(cfg)
		if err != nil {
			return fmt.Errorf("run: compute run id for admin API: %w", err)
		}
		admin := adminapi.New(coordQueue, a.DLQ, runID, a.Metrics.Registry, a.Log)
		go func() {
			if err := admin.Start(cfg.Admin.Addr); err != nil {
				a.Log.WithError(err).Warn("admin API stopped")
			}
		}()
		defer admin.Shutdown(ctx)
	}

	onSeeded := func(runID string) {
		if runWorkerCountFlag > 0 {
			startEmbeddedWorkers(ctx, a, runID, runWorkerCountFlag)
		}
	}

	stats, err := coord.Run(ctx, cfg.ProcessingRelevant(), sourceConfigs, runMaxLinkDepthFlag, onSeeded)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	a.Log.WithFields(map[string]any{
		"run_id":        stats.RunID,
		"docs_queued":   stats.DocsQueued,
		"docs_complete": stats.DocsComplete,
		"docs_failed":   stats.DocsFailed,
		"timed_out":     stats.TimedOut,
		"runtime":       stats.Runtime,
	}).Info("run finished")
	return nil
}

// startEmbeddedWorkers starts n workers against runID, so "run" stays
// useful as a single-process demo without requiring separate "worker"
// invocations. It is invoked after seeding completes (see onSeeded above)
// so workers never race ClaimNext against source registration.
func startEmbeddedWorkers(ctx context.Context, a *app.App, runID string, n int) {
	for i := 0; i < n; i++ {
		go func(idx int) {
			workerID := fmt.Sprintf("embedded-%s-%d", shortID(), idx)
			proc := worker.New(workerID, a.NewQueue(workerID), a.DLQ, a.Runs, a.Backend, a.Sources, a.Detector, a.Log, workerOptions(a)...)
			if err := a.Runs.RegisterWorker(ctx, runID, workerID); err != nil {
				a.Log.WithError(err).Warn("embedded worker: register failed")
				return
			}
			if _, err := proc.Run(ctx, runID, 0); err != nil {
				a.Log.WithError(err).Warn("embedded worker exited with error")
			}
		}(i)
	}
}

func shortID() string {
	return uuid.NewString()[:8]
}
