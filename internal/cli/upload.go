package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hyperdemocracy/congressprep/internal/model"
	"github.com/spf13/cobra"
)

var (
	uploadCongress []int
	uploadKinds    []string
	uploadTarget   string
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Publish written tables into the aggregate dataset repo",
	Long: `Upload publishes README.md from the base dir and then, for each congress
and kind, usc-<congress>-<kind>.parquet to data/<kind>/ in the aggregate
dataset repo (<namespace>/<aggregate_repo>). Files that do not exist locally
are skipped.

Kinds: ` + kindNames() + `

Example:
  congressprep upload --congress 113,114 --kinds unified_v1
  congressprep upload --kinds billstatus_parsed,unified_v1 --target gcs`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().IntSliceVar(&uploadCongress, "congress", nil, "congress numbers (default from config)")
	uploadCmd.Flags().StringSliceVar(&uploadKinds, "kinds", nil, "artifact kinds to upload (default from config)")
	uploadCmd.Flags().StringVar(&uploadTarget, "target", "", "publish target: hub or gcs (default from config)")
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if uploadTarget != "" {
		cfg.Upload.Target = uploadTarget
	}

	congresses, err := congressList(uploadCongress, cfg)
	if err != nil {
		return err
	}

	names := cfg.Upload.Kinds
	if len(uploadKinds) > 0 {
		names = uploadKinds
	}
	kinds, err := model.ParseArtifactKinds(names)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	if verbose {
		fmt.Fprintf(os.Stderr, "Uploading %s for congresses %v\n", strings.Join(names, ", "), congresses)
	}

	report, err := a.pipeline.UploadArtifacts(ctx, congresses, kinds)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	for _, p := range report.Uploaded {
		fmt.Fprintf(os.Stderr, "✓ %s/%s\n", report.Repo, p)
	}
	for _, p := range report.Skipped {
		fmt.Fprintf(os.Stderr, "- skipped %s (not found)\n", p)
	}

	return nil
}

func kindNames() string {
	names := make([]string, 0, len(model.ArtifactKinds))
	for _, k := range model.ArtifactKinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
