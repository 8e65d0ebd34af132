package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"squeeze/internal/codec"
	"squeeze/internal/loader"
	"squeeze/internal/metadata"
	"squeeze/internal/tui"
	"squeeze/pkg/imgutil"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <path>...",
	Short: "Report format, dimensions and identifying metadata without compressing",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		files, err := loader.Load(ctx, args, loader.Options{Workers: cfg.Workers})
		if err != nil {
			return err
		}

		enc := codec.NewEncoder()
		for i, f := range files {
			if i > 0 {
				fmt.Fprintln(os.Stdout)
			}
			fmt.Fprintf(os.Stdout, "%s %s\n",
				inspectFileStyle.Render(f.Name),
				dimStyle.Render(tui.FormatKB(f.SizeKB())),
			)

			kind := imgutil.Detect(f.Data)
			if kind == imgutil.KindUnknown {
				fmt.Fprintf(os.Stdout, "  %s %s\n", inspectBulletStyle.Render("-"), dimStyle.Render("not an image"))
				continue
			}

			preview, err := enc.Decode(ctx, f.Data)
			if err != nil {
				fmt.Fprintf(os.Stdout, "  %s %s\n", inspectBulletStyle.Render("-"), errorStyle.Render(err.Error()))
			} else {
				fmt.Fprintf(os.Stdout, "  %s %s\n", inspectBulletStyle.Render("-"),
					inspectValueStyle.Render(fmt.Sprintf("%s %dx%d", kind, preview.Width, preview.Height)))
			}

			analysis, err := metadata.Inspect(kind, f.Data)
			if err != nil {
				logger.Debug("metadata scan failed", zap.String("file", f.Name), zap.Error(err))
			}
			categories := analysis.Categories()
			if len(categories) == 0 {
				fmt.Fprintf(os.Stdout, "  %s %s\n", inspectBulletStyle.Render("-"), dimStyle.Render("no identifying metadata"))
				continue
			}
			fmt.Fprintf(os.Stdout, "  %s\n", inspectCategoryStyle.Render("Identifying metadata:"))
			for _, category := range categories {
				value := category
				switch {
				case category == "Device Model" && analysis.Model != "":
					value += ": " + analysis.Model
				case category == "Timestamp" && analysis.Timestamp != "":
					value += ": " + analysis.Timestamp
				}
				fmt.Fprintf(os.Stdout, "    %s %s\n", inspectBulletStyle.Render("-"), inspectValueStyle.Render(value))
			}
		}
		return nil
	},
}

var (
	inspectFileStyle     = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	inspectCategoryStyle = lipgloss.NewStyle().Foreground(tui.ColorAccentAlt)
	inspectValueStyle    = lipgloss.NewStyle().Foreground(tui.ColorInk)
	inspectBulletStyle   = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}
