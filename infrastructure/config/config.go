package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pkgdeploy-cli/domain"
)

// Config is the resolved tool configuration. Precedence is flags over
// environment variables over the config file over defaults.
type Config struct {
	// DataDir is the root for transaction records, logs and descriptors
	DataDir string `mapstructure:"data_dir"`

	// PlatformDir holds the platform descriptor files
	PlatformDir string `mapstructure:"platform_dir"`

	// WebhookURL receives terminal transaction notifications; empty
	// disables delivery
	WebhookURL string `mapstructure:"webhook_url"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`

	// NoColor disables colored terminal output
	NoColor bool `mapstructure:"no_color"`

	Concurrency int           `mapstructure:"concurrency"`
	VerifyCap   time.Duration `mapstructure:"verify_cap"`

	// StagingTargets names the platforms that form the staging gate of a
	// staged pipeline
	StagingTargets []string `mapstructure:"staging_targets"`
}

// Load reads the configuration from file and environment.
// Environment variables use the PKGDEPLOY_ prefix: PKGDEPLOY_DATA_DIR,
// PKGDEPLOY_WEBHOOK_URL and so on.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("log_level", "info")
	v.SetDefault("concurrency", 5)
	v.SetDefault("verify_cap", 5*time.Minute)

	v.SetEnvPrefix("PKGDEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, domain.NewConfigurationError("cannot read config file "+configFile, err)
		}
	} else {
		v.SetConfigName("pkgdeploy")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultDataDir())
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, domain.NewConfigurationError("cannot read config file", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, domain.NewConfigurationError("invalid configuration", err)
	}

	if cfg.PlatformDir == "" {
		cfg.PlatformDir = filepath.Join(cfg.DataDir, "platforms")
	}
	return &cfg, nil
}

// defaultDataDir places state under the user's home directory
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pkgdeploy"
	}
	return filepath.Join(home, ".pkgdeploy")
}
