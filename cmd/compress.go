package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"squeeze/internal/archive"
	"squeeze/internal/batch"
	"squeeze/internal/codec"
	"squeeze/internal/loader"
	"squeeze/internal/observability"
	"squeeze/internal/tui"
)

var (
	compressQuality     int
	compressOutputDir   string
	compressBudgetMB    int
	compressWorkers     int
	compressSeparate    bool
	compressMetricsAddr string
	compressNoTUI       bool
)

var compressCmd = &cobra.Command{
	Use:   "compress [flags] <path>...",
	Short: "Re-encode images as JPEG and bundle them into a zip archive",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("quality") {
			cfg.Quality = compressQuality
		}
		if cmd.Flags().Changed("budget-mb") {
			cfg.BudgetMB = compressBudgetMB
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers = compressWorkers
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		outputDir := compressOutputDir
		if outputDir == "" {
			outputDir = "compressed"
		}
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		files, err := loader.Load(ctx, args, loader.Options{Exclude: outputDir, Workers: cfg.Workers, BudgetKB: cfg.BudgetKB()})
		if err != nil {
			return err
		}

		metrics := observability.NewMetrics()
		if compressMetricsAddr != "" {
			stop := serveMetrics(compressMetricsAddr, metrics)
			defer stop()
		}

		storeLogger := logger
		opts := []batch.Option{batch.WithMetrics(metrics)}

		var updates chan batch.Update
		if !compressNoTUI && interactive() {
			// stderr belongs to the progress view unless logs go to a file.
			if cfg.LogFile == "" {
				storeLogger = zap.NewNop()
			}
			updates = make(chan batch.Update, 64)
			opts = append(opts, batch.WithUpdates(updates))
		}
		opts = append(opts, batch.WithLogger(storeLogger))

		store, err := batch.NewStore(batchConfig(cfg), codec.NewEncoder(), opts...)
		if err != nil {
			return err
		}

		var uiDone <-chan struct{}
		if updates == nil {
			done := make(chan struct{})
			close(done)
			uiDone = done
		} else {
			program := tea.NewProgram(tui.NewModel(updates, cfg.Quality))
			uiDone = watchProgress(program.Run, updates, cancel)
		}

		report := store.Ingest(files)
		if err := store.Wait(ctx); err != nil {
			return fmt.Errorf("compression interrupted: %w", err)
		}
		if updates != nil {
			close(updates)
		}
		<-uiDone

		for _, rej := range report.Rejected {
			fmt.Fprintf(os.Stdout, "%s %s %s\n",
				skipStyle.Render("skipped"),
				lipgloss.NewStyle().Foreground(tui.ColorInk).Render(rej.Name),
				dimStyle.Render(rejectionReason(rej.Err)),
			)
		}

		records := store.Snapshot()
		for _, rec := range records {
			if rec.Status == batch.StatusErrored {
				fmt.Fprintf(os.Stdout, "%s %s %s\n",
					errorStyle.Render("failed"),
					lipgloss.NewStyle().Foreground(tui.ColorInk).Render(rec.Name),
					dimStyle.Render(rec.Error),
				)
			}
		}

		quality := store.Quality()
		var written string
		if compressSeparate {
			n, err := writeSeparate(outputDir, records, quality)
			if err != nil {
				return err
			}
			written = fmt.Sprintf("%d files in %s", n, absPath(outputDir))
		} else {
			path := filepath.Join(outputDir, archive.ArchiveName(quality))
			err := writeArchive(path, records, quality)
			metrics.IncArchiveBuilt(err)
			if err != nil {
				return err
			}
			written = absPath(path)
		}

		fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.StatsRows(store.Stats())))
		fmt.Fprintf(os.Stdout, "Compressed output written to: %s\n", written)
		logger.Info("batch complete",
			zap.Int("quality", quality),
			zap.Int("accepted", len(report.Accepted)),
			zap.Int("rejected", len(report.Rejected)),
		)
		return nil
	},
}

// watchProgress runs the progress view until it exits, then keeps draining
// updates so the store never blocks on a send. Only a user quit calls
// interrupt; a view that fails to start leaves the batch running.
func watchProgress(run func() (tea.Model, error), updates <-chan batch.Update, interrupt func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		final, err := run()
		if err != nil {
			logger.Warn("progress view unavailable", zap.Error(err))
		} else if m, ok := final.(tui.Model); ok && m.Interrupted() {
			interrupt()
		}
		for range updates {
		}
	}()
	return done
}

// interactive reports whether both ends of the terminal are attached.
func interactive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// writeArchive builds into a temporary file next to path and renames it
// into place, so a failed run never leaves a truncated archive.
func writeArchive(path string, records []batch.Record, quality int) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".squeeze-*.zip")
	if err != nil {
		return fmt.Errorf("%w: %v", archive.ErrSerialize, err)
	}
	defer os.Remove(tmp.Name())

	if err := archive.Write(tmp, records, quality); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", archive.ErrSerialize, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("%w: %v", archive.ErrSerialize, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", archive.ErrSerialize, err)
	}
	return nil
}

func writeSeparate(dir string, records []batch.Record, quality int) (int, error) {
	written := 0
	for _, rec := range records {
		name, data, err := archive.Single(rec, quality)
		if errors.Is(err, archive.ErrNotCompressed) {
			continue
		}
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func serveMetrics(addr string, metrics *observability.Metrics) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, batch.ErrBudgetExceeded):
		return "over batch budget"
	case errors.Is(err, batch.ErrUnsupportedType):
		return "not an image"
	default:
		return err.Error()
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

var (
	skipStyle  = lipgloss.NewStyle().Foreground(tui.ColorWarn)
	errorStyle = lipgloss.NewStyle().Foreground(tui.ColorError)
	dimStyle   = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	compressCmd.Flags().IntVarP(&compressQuality, "quality", "q", batch.DefaultQuality, "JPEG quality percent (1-100)")
	compressCmd.Flags().StringVarP(&compressOutputDir, "output", "o", "", "destination folder (default \"compressed\")")
	compressCmd.Flags().IntVar(&compressBudgetMB, "budget-mb", 50, "maximum summed size of accepted originals")
	compressCmd.Flags().IntVar(&compressWorkers, "workers", 4, "concurrent decode/encode tasks")
	compressCmd.Flags().BoolVar(&compressSeparate, "separate", false, "write one JPEG per image instead of a zip archive")
	compressCmd.Flags().StringVar(&compressMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	compressCmd.Flags().BoolVar(&compressNoTUI, "no-tui", false, "disable the progress view (also off when not attached to a terminal)")

	rootCmd.AddCommand(compressCmd)
}
