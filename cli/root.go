// Package cli provides corpusforge's command-line interface: configuration
// loading via viper and command dispatch via cobra, grounded on the
// teacher's cli/root.go initConfig/viper wiring (the HTTP/RabbitMQ/CouchDB
// machinery that wiring used to serve is not part of this repository's
// domain and was not carried over).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"corpusforge.dev/common"
	"corpusforge.dev/version"
)

var cfgFile string

// RootCmd is the entrypoint cobra.Command main.go executes.
var RootCmd = &cobra.Command{
	Use:   "corpusforge",
	Short: "Distributed document-processing pipeline",
	Long: `corpusforge claims documents from a shared Postgres-backed work queue,
fetches and parses them, discovers structural and domain relationships, and
persists the result, coordinating any number of worker processes against
one run.`,
	Version: version.GetModuleVersion(),
}

func init() {
	defaultCfgFile := common.GetEnv("CORPUSFORGE_CONFIG", "")
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultCfgFile, "config file (default: $CORPUSFORGE_CONFIG, then $HOME/.corpusforge.yaml or ./.corpusforge.yaml)")
	RootCmd.AddCommand(runCmd, workerCmd, dlqCmd)
}

// Execute runs RootCmd, printing any error to stderr and exiting non-zero.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
