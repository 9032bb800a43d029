package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"corpusforge.dev/internal/app"
	"corpusforge.dev/internal/config"
	"corpusforge.dev/internal/runqueue"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect the dead-letter queue for this configuration's run",
	Long:  `dlq lists the items that exhausted their retry budget or hit a critical error (spec.md §4.3).`,
	RunE:  runDLQ,
}

func runDLQ(cmd *cobra.Command, args []string) error {
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

	runID, err := computeRunID(cfg)
	if err != nil {
		return err
	}

	dlq := runqueue.NewDeadLetterQueue(a.Pool)
	items, err := dlq.List(ctx, runID)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		fmt.Println("no dead-letter items for this run")
		return nil
	}
	for _, item := range items {
		fmt.Printf("%s\t%s\t%s\t%s\n", item.DocID, item.SourceName, item.MovedAt.Format("2006-01-02T15:04:05Z07:00"), item.ErrorMessage)
	}
	return nil
}
