package publish

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hyperdemocracy/congressprep/internal/logger"
	"github.com/hyperdemocracy/congressprep/internal/model"
)

const (
	lfsContentType = "application/vnd.git-lfs+json"
	sampleSize     = 512
)

// sleepFunc is used for retry backoff; overridden in tests
var sleepFunc = sleepContext

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// errRequestSetup marks failures before anything was sent
var errRequestSetup = errors.New("request setup")

// HTTPError is a non-2xx response from the hub
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// HubPublisher uploads files to a dataset hub over its HTTP API
type HubPublisher struct {
	endpoint   string
	token      string
	revision   string
	maxRetries int
	client     *http.Client
	limiter    *Limiter
	log        *logger.Logger
}

// NewHubPublisher creates a hub publisher from cfg
func NewHubPublisher(cfg model.HubConfig, log *logger.Logger) (*HubPublisher, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("hub endpoint is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	revision := cfg.Revision
	if revision == "" {
		revision = "main"
	}

	limiter := NewLimiter(cfg.RequestsPerSecond, cfg.BurstSize)
	for host, rps := range cfg.HostRates {
		limiter.SetHostRate(host, rps, cfg.BurstSize)
	}

	return &HubPublisher{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		token:      cfg.Token,
		revision:   revision,
		maxRetries: maxRetries,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: newProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
			},
		},
		limiter: limiter,
		log:     log.With("publisher", "hub"),
	}, nil
}

// EnsureRepo creates the dataset repository. An existing repo is not an error.
func (h *HubPublisher) EnsureRepo(ctx context.Context, repo string) error {
	namespace, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"type":         "dataset",
		"name":         name,
		"organization": namespace,
	})
	if err != nil {
		return err
	}

	_, err = h.do(ctx, hubRequest{
		method:      http.MethodPost,
		url:         h.endpoint + "/api/repos/create",
		contentType: "application/json",
		auth:        true,
		body:        bytesBody(payload),
	})

	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusConflict {
		h.log.Debug("repo exists", "repo", repo)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create repo %s: %w", repo, err)
	}

	h.log.Info("created repo", "repo", repo)
	return nil
}

// UploadFile commits localPath to pathInRepo on the configured revision
func (h *HubPublisher) UploadFile(ctx context.Context, localPath, repo, pathInRepo string) error {
	if _, _, err := splitRepo(repo); err != nil {
		return err
	}

	info, err := describeFile(localPath)
	if err != nil {
		return err
	}

	mode, err := h.preupload(ctx, repo, pathInRepo, info)
	if err != nil {
		return fmt.Errorf("preupload %s: %w", pathInRepo, err)
	}

	var op map[string]interface{}
	switch mode {
	case "lfs":
		if err := h.uploadLFS(ctx, repo, localPath, info); err != nil {
			return fmt.Errorf("lfs upload %s: %w", pathInRepo, err)
		}
		op = map[string]interface{}{
			"key": "lfsFile",
			"value": map[string]interface{}{
				"path": pathInRepo,
				"algo": "sha256",
				"oid":  info.oid,
				"size": info.size,
			},
		}
	default:
		content, err := os.ReadFile(localPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", localPath, err)
		}
		op = map[string]interface{}{
			"key": "file",
			"value": map[string]interface{}{
				"path":     pathInRepo,
				"content":  base64.StdEncoding.EncodeToString(content),
				"encoding": "base64",
			},
		}
	}

	if err := h.commit(ctx, repo, "Upload "+pathInRepo, op); err != nil {
		return fmt.Errorf("commit %s: %w", pathInRepo, err)
	}

	h.log.Info("uploaded file", "repo", repo, "path", pathInRepo, "size", info.size, "mode", mode)
	return nil
}

type fileInfo struct {
	size   int64
	oid    string // sha256 hex
	sample []byte
}

func describeFile(path string) (fileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return fileInfo{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	hasher := sha256.New()
	var sample bytes.Buffer
	size, err := io.Copy(io.MultiWriter(hasher, &limitedWriter{w: &sample, n: sampleSize}), f)
	if err != nil {
		return fileInfo{}, fmt.Errorf("hash %s: %w", path, err)
	}

	return fileInfo{
		size:   size,
		oid:    hex.EncodeToString(hasher.Sum(nil)),
		sample: sample.Bytes(),
	}, nil
}

// limitedWriter keeps the first n bytes and discards the rest
type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.n > 0 {
		keep := p
		if len(keep) > l.n {
			keep = keep[:l.n]
		}
		if _, err := l.w.Write(keep); err != nil {
			return 0, err
		}
		l.n -= len(keep)
	}
	return len(p), nil
}

func (h *HubPublisher) preupload(ctx context.Context, repo, pathInRepo string, info fileInfo) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"files": []map[string]interface{}{{
			"path":   pathInRepo,
			"sample": base64.StdEncoding.EncodeToString(info.sample),
			"size":   info.size,
		}},
	})
	if err != nil {
		return "", err
	}

	body, err := h.do(ctx, hubRequest{
		method:      http.MethodPost,
		url:         fmt.Sprintf("%s/api/datasets/%s/preupload/%s", h.endpoint, repo, h.revision),
		contentType: "application/json",
		auth:        true,
		body:        bytesBody(payload),
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Files []struct {
			Path       string `json:"path"`
			UploadMode string `json:"uploadMode"`
		} `json:"files"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode preupload response: %w", err)
	}
	for _, f := range resp.Files {
		if f.Path == pathInRepo {
			return f.UploadMode, nil
		}
	}
	return "", fmt.Errorf("preupload response missing %s", pathInRepo)
}

type lfsAction struct {
	Href   string            `json:"href"`
	Header map[string]string `json:"header"`
}

func (h *HubPublisher) uploadLFS(ctx context.Context, repo, localPath string, info fileInfo) error {
	payload, err := json.Marshal(map[string]interface{}{
		"operation": "upload",
		"transfers": []string{"basic"},
		"objects": []map[string]interface{}{{
			"oid":  info.oid,
			"size": info.size,
		}},
		"hash_algo": "sha256",
	})
	if err != nil {
		return err
	}

	body, err := h.do(ctx, hubRequest{
		method:      http.MethodPost,
		url:         fmt.Sprintf("%s/datasets/%s.git/info/lfs/objects/batch", h.endpoint, repo),
		contentType: lfsContentType,
		header:      map[string]string{"Accept": lfsContentType},
		auth:        true,
		body:        bytesBody(payload),
	})
	if err != nil {
		return err
	}

	var batch struct {
		Objects []struct {
			OID     string `json:"oid"`
			Actions *struct {
				Upload *lfsAction `json:"upload"`
				Verify *lfsAction `json:"verify"`
			} `json:"actions"`
			Error *struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		} `json:"objects"`
	}
	if err := json.Unmarshal(body, &batch); err != nil {
		return fmt.Errorf("decode lfs batch response: %w", err)
	}
	if len(batch.Objects) != 1 {
		return fmt.Errorf("lfs batch returned %d objects", len(batch.Objects))
	}

	obj := batch.Objects[0]
	if obj.Error != nil {
		return fmt.Errorf("lfs batch error %d: %s", obj.Error.Code, obj.Error.Message)
	}
	if obj.Actions == nil || obj.Actions.Upload == nil {
		h.log.Debug("lfs object already stored", "oid", info.oid)
		return nil
	}

	upload := obj.Actions.Upload
	if _, err := h.do(ctx, hubRequest{
		method:      http.MethodPut,
		url:         upload.Href,
		contentType: "application/octet-stream",
		header:      upload.Header,
		body:        fileBody(localPath),
	}); err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	if verify := obj.Actions.Verify; verify != nil {
		payload, err := json.Marshal(map[string]interface{}{"oid": info.oid, "size": info.size})
		if err != nil {
			return err
		}
		if _, err := h.do(ctx, hubRequest{
			method:      http.MethodPost,
			url:         verify.Href,
			contentType: lfsContentType,
			header:      verify.Header,
			auth:        true,
			body:        bytesBody(payload),
		}); err != nil {
			return fmt.Errorf("verify object: %w", err)
		}
	}

	return nil
}

func (h *HubPublisher) commit(ctx context.Context, repo, summary string, ops ...map[string]interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	header := map[string]interface{}{
		"key": "header",
		"value": map[string]interface{}{
			"summary":     summary,
			"description": "",
		},
	}
	if err := enc.Encode(header); err != nil {
		return err
	}
	for _, op := range ops {
		if err := enc.Encode(op); err != nil {
			return err
		}
	}

	_, err := h.do(ctx, hubRequest{
		method:      http.MethodPost,
		url:         fmt.Sprintf("%s/api/datasets/%s/commit/%s", h.endpoint, repo, h.revision),
		contentType: "application/x-ndjson",
		auth:        true,
		body:        bytesBody(buf.Bytes()),
	})
	return err
}

type hubRequest struct {
	method      string
	url         string
	contentType string
	header      map[string]string
	auth        bool
	body        func() (io.ReadCloser, int64, error)
}

func bytesBody(b []byte) func() (io.ReadCloser, int64, error) {
	return func() (io.ReadCloser, int64, error) {
		return io.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
	}
}

func fileBody(path string) func() (io.ReadCloser, int64, error) {
	return func() (io.ReadCloser, int64, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, err
		}
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, 0, err
		}
		return f, info.Size(), nil
	}
}

// do sends req, retrying transient failures with exponential backoff.
// It returns the response body of the first 2xx response.
func (h *HubPublisher) do(ctx context.Context, req hubRequest) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < h.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			h.log.Warn("retrying hub request", "method", req.method, "url", req.url, "attempt", attempt+1, "backoff", backoff, "error", lastErr)
			if err := sleepFunc(ctx, backoff); err != nil {
				return nil, err
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := h.send(ctx, req)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", h.maxRetries, lastErr)
}

func (h *HubPublisher) send(ctx context.Context, req hubRequest) ([]byte, error) {
	if err := h.limiter.Wait(ctx, req.url); err != nil {
		return nil, err
	}

	var body io.ReadCloser
	var length int64
	if req.body != nil {
		var err error
		body, length, err = req.body()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errRequestSetup, err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		if body != nil {
			_ = body.Close()
		}
		return nil, fmt.Errorf("%w: %v", errRequestSetup, err)
	}
	httpReq.ContentLength = length
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	for k, v := range req.header {
		httpReq.Header.Set(k, v)
	}
	if req.auth && h.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Method:     req.method,
			URL:        req.url,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(respBody)), 200),
		}
	}
	return respBody, nil
}

// isRetryable reports whether err is a rate limit, server or transport error
func isRetryable(err error) bool {
	if errors.Is(err, errRequestSetup) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
