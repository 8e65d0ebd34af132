package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
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
	sweepQualities []int
	sweepOutputDir string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep [flags] <path>...",
	Short: "Compare batch size across several quality settings",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(sweepQualities) == 0 {
			return fmt.Errorf("--qualities needs at least one value")
		}
		for _, q := range sweepQualities {
			if q < batch.MinQuality || q > batch.MaxQuality {
				return fmt.Errorf("%w: %d", batch.ErrInvalidQuality, q)
			}
		}
		if sweepOutputDir != "" {
			if err := os.MkdirAll(sweepOutputDir, 0o755); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		files, err := loader.Load(ctx, args, loader.Options{Exclude: sweepOutputDir, Workers: cfg.Workers, BudgetKB: cfg.BudgetKB()})
		if err != nil {
			return err
		}

		bc := batchConfig(cfg)
		bc.Quality = sweepQualities[0]
		// Re-encodes run back to back; nobody is watching a preview here.
		bc.Stagger = 0

		metrics := observability.NewMetrics()
		store, err := batch.NewStore(bc, codec.NewEncoder(), batch.WithLogger(logger), batch.WithMetrics(metrics))
		if err != nil {
			return err
		}

		report := store.Ingest(files)
		for _, rej := range report.Rejected {
			fmt.Fprintf(os.Stdout, "%s %s %s\n", skipStyle.Render("skipped"), rej.Name, dimStyle.Render(rejectionReason(rej.Err)))
		}
		if len(report.Accepted) == 0 {
			return fmt.Errorf("no images to compress")
		}

		rows := [][]string{}
		for i, q := range sweepQualities {
			if i > 0 {
				if err := store.SetQuality(q); err != nil {
					return err
				}
			}
			if err := store.Wait(ctx); err != nil {
				return fmt.Errorf("sweep interrupted: %w", err)
			}

			st := store.Stats()
			rows = append(rows, []string{
				fmt.Sprintf("Q%d", q),
				tui.FormatKB(st.CompressedTotalKB),
				tui.FormatKB(st.SavedKB),
				fmt.Sprintf("%.1f%%", st.ReductionPercent),
				fmt.Sprintf("%d", st.Errored),
			})
			logger.Debug("sweep step", zap.Int("quality", q), zap.Float64("compressedKB", st.CompressedTotalKB))

			if sweepOutputDir != "" {
				path := filepath.Join(sweepOutputDir, archive.ArchiveName(q))
				err := writeArchive(path, store.Snapshot(), q)
				metrics.IncArchiveBuilt(err)
				if err != nil {
					return err
				}
			}
		}

		st := store.Stats()
		fmt.Fprintf(os.Stdout, "%s %s\n",
			sweepTitleStyle.Render(fmt.Sprintf("%d images", st.Count)),
			dimStyle.Render("original "+tui.FormatKB(st.OriginalTotalKB)),
		)
		fmt.Fprintln(os.Stdout, renderTable([]string{"Quality", "Compressed", "Saved", "Reduction", "Errors"}, rows))
		if sweepOutputDir != "" {
			fmt.Fprintf(os.Stdout, "Archives written to: %s\n", absPath(sweepOutputDir))
		}
		return nil
	},
}

func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	render := func(cells []string, style lipgloss.Style) string {
		out := ""
		for i, cell := range cells {
			if i > 0 {
				out += "  "
			}
			out += style.Width(widths[i]).Render(cell)
		}
		return out
	}

	out := render(header, sweepHeaderStyle)
	for _, row := range rows {
		out += "\n" + render(row, sweepCellStyle)
	}
	return out
}

var (
	sweepTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	sweepHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccentAlt)
	sweepCellStyle   = lipgloss.NewStyle().Foreground(tui.ColorInk)
)

func init() {
	sweepCmd.Flags().IntSliceVar(&sweepQualities, "qualities", []int{90, 70, 50, 30}, "quality settings to compare, in order")
	sweepCmd.Flags().StringVarP(&sweepOutputDir, "output", "o", "", "also write one archive per quality into this folder")

	rootCmd.AddCommand(sweepCmd)
}
