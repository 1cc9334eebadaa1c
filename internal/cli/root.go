// Package cli provides the command-line interface for qwen.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tddg/qwen-code/internal/config"
	"github.com/tddg/qwen-code/internal/metrics"
	"github.com/tddg/qwen-code/internal/telemetry"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	modelFlag string

	// Global config and shared collaborators
	cfg         config.Config
	logger      *slog.Logger
	closeLogger func() error
	recorder    *telemetry.Recorder
	collector   *metrics.Collector
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "qwen",
	Short: "Terminal chat client for Qwen coder models",
	Long: `Qwen is a terminal chat client for Qwen coder models and other
OpenAI-compatible providers.

Conversations are held in a single session with strict turn ordering;
behavior telemetry is appended to local JSONL files for usage analysis.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		if modelFlag != "" {
			cfg.Model = modelFlag
		}

		l, closer := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		logger = l
		closeLogger = closer

		recorder = telemetry.New(cfg.TelemetryDir, cfg.SessionID, cfg.TelemetryEnabled, logger)
		collector = metrics.NewCollector()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogger != nil {
			if err := closeLogger(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "override the configured model")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(logsCmd)
}
