package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds everything a run needs. It is built from defaults, the config
// file, CONGRESSPREP_* env vars and CLI flags, then passed into the pipeline.
type Config struct {
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Congress CongressConfig `yaml:"congress" mapstructure:"congress"`
	Upload   UploadConfig   `yaml:"upload" mapstructure:"upload"`
	Hub      HubConfig      `yaml:"hub" mapstructure:"hub"`
	GCS      GCSConfig      `yaml:"gcs" mapstructure:"gcs"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates the local table files
type PathsConfig struct {
	BaseDir string `yaml:"base_dir" mapstructure:"base_dir"` // directory holding usc-*.parquet files and README.md
}

// CongressConfig selects the sessions to process
type CongressConfig struct {
	Numbers []int `yaml:"numbers" mapstructure:"numbers"`
}

// UploadConfig controls publishing of written tables
type UploadConfig struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	Target  string   `yaml:"target" mapstructure:"target"` // hub, gcs
	Kinds   []string `yaml:"kinds" mapstructure:"kinds"`   // artifact kinds for the upload command
}

// HubConfig configures the dataset hub publisher
type HubConfig struct {
	Endpoint          string             `yaml:"endpoint" mapstructure:"endpoint"`
	Namespace         string             `yaml:"namespace" mapstructure:"namespace"`
	AggregateRepo     string             `yaml:"aggregate_repo" mapstructure:"aggregate_repo"`
	Revision          string             `yaml:"revision" mapstructure:"revision"`
	Token             string             `yaml:"-" mapstructure:"token"` // from HF_TOKEN, never rendered
	Timeout           time.Duration      `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries        int                `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64            `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int                `yaml:"burst_size" mapstructure:"burst_size"`
	HostRates         map[string]float64 `yaml:"host_rates,omitempty" mapstructure:"host_rates"` // per-host requests_per_second, e.g. the LFS storage host
	HTTPProxy         string             `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string             `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// GCSConfig configures the Cloud Storage publisher
type GCSConfig struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Project         string `yaml:"project" mapstructure:"project"` // required to create a missing bucket
	Prefix          string `yaml:"prefix" mapstructure:"prefix"`
	CredentialsFile string `yaml:"credentials_file,omitempty" mapstructure:"credentials_file"`
	EmulatorHost    string `yaml:"emulator_host,omitempty" mapstructure:"emulator_host"`
}

// CacheConfig configures the extracted-text cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// LogConfig configures the structured logger
type LogConfig struct {
	Mode    string `yaml:"mode" mapstructure:"mode"` // dev, prod
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	cacheDir := filepath.Join(os.TempDir(), "congressprep-cache")
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".congressprep", "cache")
	}

	return &Config{
		Paths: PathsConfig{
			BaseDir: "./congress-hf",
		},
		Congress: CongressConfig{
			Numbers: []int{113, 114, 115, 116, 117, 118},
		},
		Upload: UploadConfig{
			Enabled: false,
			Target:  "hub",
			Kinds:   []string{string(ArtifactUnifiedV1)},
		},
		Hub: HubConfig{
			Endpoint:          "https://huggingface.co",
			Namespace:         "hyperdemocracy",
			AggregateRepo:     "us-congress",
			Revision:          "main",
			Timeout:           5 * time.Minute,
			MaxRetries:        3,
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		GCS: GCSConfig{
			Prefix: "datasets",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       cacheDir,
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Log: LogConfig{
			Mode: "dev",
		},
	}
}
