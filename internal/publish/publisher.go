// Package publish pushes written tables to a remote dataset store.
package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperdemocracy/congressprep/internal/logger"
	"github.com/hyperdemocracy/congressprep/internal/model"
)

// Publisher uploads local files into named dataset repositories.
// Uploading the same file to the same destination twice is harmless.
type Publisher interface {
	// EnsureRepo creates repo ("namespace/name") if it does not exist
	EnsureRepo(ctx context.Context, repo string) error

	// UploadFile stores localPath at pathInRepo inside repo
	UploadFile(ctx context.Context, localPath, repo, pathInRepo string) error
}

// New returns the publisher selected by cfg.Upload.Target
func New(ctx context.Context, cfg *model.Config, log *logger.Logger) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Upload.Target)) {
	case "", "hub":
		return NewHubPublisher(cfg.Hub, log)
	case "gcs":
		return NewGCSPublisher(ctx, cfg.GCS, log)
	default:
		return nil, fmt.Errorf("unknown upload target: %s (supported: hub, gcs)", cfg.Upload.Target)
	}
}

// splitRepo splits "namespace/name" into its parts
func splitRepo(repo string) (namespace, name string, err error) {
	namespace, name, ok := strings.Cut(repo, "/")
	if !ok || namespace == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repo id %q (want namespace/name)", repo)
	}
	return namespace, name, nil
}
