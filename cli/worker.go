package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"corpusforge.dev/internal/adminapi"
	"corpusforge.dev/internal/app"
	"corpusforge.dev/internal/config"
	"corpusforge.dev/worker"
)

var (
	workerIDFlag       string
	workerMaxDocsFlag  int
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run one worker process against an existing run",
	Long: `worker computes the same deterministic run_id a coordinator
invocation with identical configuration would, registers itself, and claims
and processes documents (spec.md §4.4) until the queue has no more
claimable work. Run it on as many hosts as needed; the database is the only
shared state (spec.md §5).`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&workerIDFlag, "worker-id", "", "worker identity (default: a generated id)")
	workerCmd.Flags().IntVar(&workerMaxDocsFlag, "max-documents", 0, "stop after this many claims (0 = unbounded)")
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	workerID := workerIDFlag
	if workerID == "" {
		workerID = "worker-" + shortID()
	}

	runID, err := computeRunID(cfg)
	if err != nil {
		return err
	}
	if err := a.Runs.EnsureRunExists(ctx, runID, runID); err != nil {
		return fmt.Errorf("worker: ensure run exists: %w", err)
	}
	if err := a.Runs.RegisterWorker(ctx, runID, workerID); err != nil {
		return fmt.Errorf("worker: register: %w", err)
	}

	if cfg.Admin.Enabled {
		admin := adminapi.New(a.NewQueue(workerID+"-admin"), a.DLQ, runID, a.Metrics.Registry, a.Log)
		go func() {
			if err := admin.Start(cfg.Admin.Addr); err != nil {
				a.Log.WithError(err).Warn("admin API stopped")
			}
		}()
		defer admin.Shutdown(ctx)
	}

	proc := worker.New(workerID, a.NewQueue(workerID), a.DLQ, a.Runs, a.Backend, a.Sources, a.Detector, a.Log, workerOptions(a)...)
	stats, err := proc.Run(ctx, runID, workerMaxDocsFlag)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	a.Log.WithFields(map[string]any{
		"run_id":    runID,
		"claimed":   stats.Claimed,
		"completed": stats.Completed,
		"failed":    stats.Failed,
		"dead_letter": stats.DeadLet,
	}).Info("worker finished")
	return nil
}
