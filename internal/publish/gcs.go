package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/hyperdemocracy/congressprep/internal/logger"
	"github.com/hyperdemocracy/congressprep/internal/model"
)

// GCSPublisher stores dataset repositories as object prefixes in one bucket
type GCSPublisher struct {
	client  *storage.Client
	bucket  string
	project string
	prefix  string
	log     *logger.Logger
}

// NewGCSPublisher creates a Cloud Storage client from cfg.
// With an emulator host set, requests go unauthenticated to the emulator.
func NewGCSPublisher(ctx context.Context, cfg model.GCSConfig, log *logger.Logger) (*GCSPublisher, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	client, err := storage.NewClient(ctx, clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	log.Info("object storage initialized", "bucket", cfg.Bucket, "prefix", cfg.Prefix, "emulator_host", cfg.EmulatorHost)

	return &GCSPublisher{
		client:  client,
		bucket:  cfg.Bucket,
		project: cfg.Project,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		log:     log.With("publisher", "gcs"),
	}, nil
}

// EnsureRepo creates the bucket when it is missing. Repos themselves are
// just object prefixes and need no setup.
func (g *GCSPublisher) EnsureRepo(ctx context.Context, repo string) error {
	if _, _, err := splitRepo(repo); err != nil {
		return err
	}

	bucket := g.client.Bucket(g.bucket)
	_, err := bucket.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("inspect bucket %s: %w", g.bucket, err)
	}

	if g.project == "" {
		return fmt.Errorf("bucket %s does not exist and no project is configured to create it", g.bucket)
	}
	if err := bucket.Create(ctx, g.project, nil); err != nil {
		return fmt.Errorf("create bucket %s: %w", g.bucket, err)
	}

	g.log.Info("created bucket", "bucket", g.bucket, "project", g.project)
	return nil
}

// UploadFile streams localPath into <prefix>/<repo>/<pathInRepo>
func (g *GCSPublisher) UploadFile(ctx context.Context, localPath, repo, pathInRepo string) error {
	if _, _, err := splitRepo(repo); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	key := objectKey(g.prefix, repo, pathInRepo)
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentTypeForKey(key)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", g.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", g.bucket, key, err)
	}

	g.log.Info("uploaded file", "bucket", g.bucket, "key", key)
	return nil
}

// Close releases the storage client
func (g *GCSPublisher) Close() error {
	return g.client.Close()
}

// clientOptions points the client at the emulator when one is configured,
// otherwise at Cloud Storage with the configured credentials
func clientOptions(cfg model.GCSConfig) []option.ClientOption {
	if host := emulatorEndpoint(cfg.EmulatorHost); host != "" {
		return []option.ClientOption{
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
		}
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return append(opts, option.WithScopes(storage.ScopeReadWrite))
}

// emulatorEndpoint turns "localhost:4443" into "http://localhost:4443/storage/v1/"
func emulatorEndpoint(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return host + "/storage/v1/"
}

func objectKey(prefix, repo, pathInRepo string) string {
	return strings.TrimPrefix(path.Join(prefix, repo, pathInRepo), "/")
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".md":
		return "text/markdown; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
