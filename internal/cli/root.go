package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/hyperdemocracy/congressprep/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	baseDir string
)

// version is set at build time with -ldflags "-X .../internal/cli.version=..."
var version = "v0.1.0"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "congressprep",
	Short: "congressprep - prepare US Congress bill datasets",
	Long: `congressprep turns scraped bill status and text version tables into
dataset tables and publishes them to a dataset hub.

  parse   parse raw bill status XML into the billstatus-parsed table
  join    join parsed bill statuses with their text versions (unified-v1)
  upload  publish written tables into the aggregate dataset repo

All tables live as usc-<congress>-<kind>.parquet files under --base-dir.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("congressprep %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.congressprep/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", "", "directory holding the parquet tables (default from config)")

	// Bind flags to viper
	_ = viper.BindPFlag("log.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("paths.base_dir", rootCmd.PersistentFlags().Lookup("base-dir"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(model.DefaultConfig())

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.congressprep")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match CONGRESSPREP_*, e.g. CONGRESSPREP_HUB_NAMESPACE
	viper.SetEnvPrefix("CONGRESSPREP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so env vars can override it
func setDefaults(d *model.Config) {
	viper.SetDefault("paths.base_dir", d.Paths.BaseDir)
	viper.SetDefault("congress.numbers", d.Congress.Numbers)

	viper.SetDefault("upload.enabled", d.Upload.Enabled)
	viper.SetDefault("upload.target", d.Upload.Target)
	viper.SetDefault("upload.kinds", d.Upload.Kinds)

	viper.SetDefault("hub.endpoint", d.Hub.Endpoint)
	viper.SetDefault("hub.namespace", d.Hub.Namespace)
	viper.SetDefault("hub.aggregate_repo", d.Hub.AggregateRepo)
	viper.SetDefault("hub.revision", d.Hub.Revision)
	viper.SetDefault("hub.token", "")
	viper.SetDefault("hub.timeout", d.Hub.Timeout)
	viper.SetDefault("hub.max_retries", d.Hub.MaxRetries)
	viper.SetDefault("hub.requests_per_second", d.Hub.RequestsPerSecond)
	viper.SetDefault("hub.burst_size", d.Hub.BurstSize)
	viper.SetDefault("hub.http_proxy", "")
	viper.SetDefault("hub.https_proxy", "")

	viper.SetDefault("gcs.bucket", d.GCS.Bucket)
	viper.SetDefault("gcs.project", d.GCS.Project)
	viper.SetDefault("gcs.prefix", d.GCS.Prefix)
	viper.SetDefault("gcs.credentials_file", d.GCS.CredentialsFile)
	viper.SetDefault("gcs.emulator_host", d.GCS.EmulatorHost)

	viper.SetDefault("cache.enabled", d.Cache.Enabled)
	viper.SetDefault("cache.dir", d.Cache.Dir)
	viper.SetDefault("cache.memory_ttl", d.Cache.MemoryTTL)
	viper.SetDefault("cache.disk_ttl", d.Cache.DiskTTL)

	viper.SetDefault("log.mode", d.Log.Mode)
	viper.SetDefault("log.verbose", d.Log.Verbose)
}
