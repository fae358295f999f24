package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	parseCongress []int
	parseUpload   bool
)

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse raw bill status XML into the billstatus-parsed table",
	Long: `Parse reads usc-<congress>-billstatus-xml.parquet, parses every bill status
document and writes usc-<congress>-billstatus-parsed.parquet.

A malformed document aborts the congress and nothing is written for it.
With --upload the table is also published to <namespace>/usc-<congress>-billstatus-parsed.

Example:
  congressprep parse --congress 113,114
  congressprep parse --congress 118 --upload`,
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().IntSliceVar(&parseCongress, "congress", nil, "congress numbers (default from config)")
	parseCmd.Flags().BoolVar(&parseUpload, "upload", false, "publish each written table")
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("upload") {
		cfg.Upload.Enabled = parseUpload
	}

	congresses, err := congressList(parseCongress, cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, cfg.Upload.Enabled)
	if err != nil {
		return err
	}
	defer a.close()

	for _, cn := range congresses {
		if verbose {
			fmt.Fprintf(os.Stderr, "⚙️  Parsing congress %d...\n", cn)
		}

		report, err := a.pipeline.ParseSession(ctx, cn)
		if err != nil {
			return fmt.Errorf("parse congress %d failed: %w", cn, err)
		}

		if report.OutputPath == "" {
			fmt.Fprintf(os.Stderr, "- congress %d: no bill status rows, nothing written\n", cn)
			continue
		}
		fmt.Fprintf(os.Stderr, "✓ congress %d: %d rows → %s\n", cn, report.Rows, report.OutputPath)
		if report.Published != "" {
			fmt.Fprintf(os.Stderr, "✓ published %s\n", report.Published)
		}
	}

	return nil
}
