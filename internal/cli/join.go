package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	joinCongress    []int
	joinUpload      bool
	joinShowMissing bool
)

// joinCmd represents the join command
var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join parsed bill statuses with their text versions",
	Long: `Join reads usc-<congress>-billstatus-parsed.parquet and
usc-<congress>-textversions.parquet, attaches every referenced text version
(newest first, undated last) with its plain text to its bill, and writes
usc-<congress>-unified-v1.parquet.

References without a matching text version are counted and reported.
A text version file name matching more than one row aborts the congress.

Example:
  congressprep join --congress 113
  congressprep join --congress 113,114,115 --upload --show-missing`,
	RunE: runJoin,
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().IntSliceVar(&joinCongress, "congress", nil, "congress numbers (default from config)")
	joinCmd.Flags().BoolVar(&joinUpload, "upload", false, "publish each written table")
	joinCmd.Flags().BoolVar(&joinShowMissing, "show-missing", false, "list every unresolved text version URL")
}

func runJoin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("upload") {
		cfg.Upload.Enabled = joinUpload
	}

	congresses, err := congressList(joinCongress, cfg)
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
			fmt.Fprintf(os.Stderr, "⚙️  Joining congress %d...\n", cn)
		}

		report, err := a.pipeline.JoinSession(ctx, cn)
		if err != nil {
			return fmt.Errorf("join congress %d failed: %w", cn, err)
		}

		fmt.Fprintf(os.Stderr, "✓ congress %d: %d bills, %d text versions joined, %d missing → %s\n",
			cn, report.Bills, report.Joined, report.MissingTotal(), report.OutputPath)
		if joinShowMissing {
			for _, m := range report.Missing {
				fmt.Fprintf(os.Stderr, "    missing %s (x%d)\n", m.URL, m.Count)
			}
		}
		if report.Published != "" {
			fmt.Fprintf(os.Stderr, "✓ published %s\n", report.Published)
		}
	}

	return nil
}
