package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"squeeze/internal/batch"
	"squeeze/internal/config"
	"squeeze/internal/observability"
)

var (
	logLevel string
	logFile  string

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "squeeze",
	Short: "squeeze 🗜 - batch JPEG compression with a shared quality",
	Long:  "squeeze 🗜 re-encodes a batch of images as JPEG at one quality setting and bundles the results into a zip archive.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-file") {
			loaded.LogFile = logFile
		}

		l, err := observability.NewLogger(loaded.LogLevel, loaded.LogFile)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// batchConfig maps the environment config onto store settings.
func batchConfig(c *config.Config) batch.Config {
	return batch.Config{
		Quality:      c.Quality,
		BudgetKB:     c.BudgetKB(),
		Workers:      c.Workers,
		Stagger:      c.Stagger(),
		DiscardStale: c.DiscardStale,
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
}
