package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperdemocracy/congressprep/internal/cache"
	"github.com/hyperdemocracy/congressprep/internal/logger"
	"github.com/hyperdemocracy/congressprep/internal/model"
	"github.com/hyperdemocracy/congressprep/internal/pipeline"
	"github.com/hyperdemocracy/congressprep/internal/publish"
	"github.com/hyperdemocracy/congressprep/internal/textversion"
	"github.com/spf13/viper"
)

// loadConfig merges defaults, config file, env vars and bound flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Hub token is read from the environment like other API keys
	if cfg.Hub.Token == "" {
		cfg.Hub.Token = os.Getenv("HF_TOKEN")
	}
	return cfg, nil
}

// app holds what a command needs to run sessions
type app struct {
	cfg       *model.Config
	log       *logger.Logger
	publisher publish.Publisher
	pipeline  *pipeline.Pipeline
}

// newApp builds the logger, extractor cache, publisher and pipeline for cfg.
// A publisher is only created when needPublisher is set.
func newApp(ctx context.Context, cfg *model.Config, needPublisher bool) (*app, error) {
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var extractor textversion.TextExtractor = textversion.NewExtractor()
	if c := cache.New(cfg.Cache); c != nil {
		extractor = textversion.NewCachedExtractor(extractor, c)
	}

	var pub publish.Publisher
	if needPublisher {
		if target := strings.ToLower(cfg.Upload.Target); (target == "" || target == "hub") && cfg.Hub.Token == "" {
			return nil, fmt.Errorf("HF_TOKEN environment variable not set")
		}
		pub, err = publish.New(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("init publisher: %w", err)
		}
	}

	return &app{
		cfg:       cfg,
		log:       log,
		publisher: pub,
		pipeline:  pipeline.NewPipeline(cfg, extractor, pub, log),
	}, nil
}

func (a *app) close() {
	if c, ok := a.publisher.(io.Closer); ok {
		_ = c.Close()
	}
	a.log.Sync()
}

// congressList returns the flag value when set, otherwise the configured numbers
func congressList(flagValue []int, cfg *model.Config) ([]int, error) {
	nums := cfg.Congress.Numbers
	if len(flagValue) > 0 {
		nums = flagValue
	}
	if len(nums) == 0 {
		return nil, fmt.Errorf("no congress numbers given (use --congress)")
	}
	for _, n := range nums {
		if n <= 0 {
			return nil, fmt.Errorf("invalid congress number: %d", n)
		}
	}
	return nums, nil
}
