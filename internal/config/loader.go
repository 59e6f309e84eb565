package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// NewFileLoader creates a loader that reads an explicit config file instead
// of searching .shadow/.
func NewFileLoader(configFile string) Loader {
	return &loader{
		rootDir:    filepath.Dir(configFile),
		configFile: configFile,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (SHADOW_*)
// 2. Config file (.shadow/config.yml or .shadow/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, ".shadow"))
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("SHADOW")
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., SHADOW_OUTPUT_FORMAT)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("library")

	v.BindEnv("extract.jobs")
	v.BindEnv("extract.read_timeout")
	v.BindEnv("extract.include_synthetic")
	v.BindEnv("extract.include_anonymous")

	v.BindEnv("output.format")
	v.BindEnv("output.dir")
	v.BindEnv("output.database")
	v.BindEnv("output.report")

	v.BindEnv("cache.max_entries")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("library", defaults.Library)

	v.SetDefault("input.paths", defaults.Input.Paths)
	v.SetDefault("input.include", defaults.Input.Include)
	v.SetDefault("input.ignore", defaults.Input.Ignore)

	v.SetDefault("extract.jobs", defaults.Extract.Jobs)
	v.SetDefault("extract.read_timeout", defaults.Extract.ReadTimeout)
	v.SetDefault("extract.include_synthetic", defaults.Extract.IncludeSynthetic)
	v.SetDefault("extract.include_anonymous", defaults.Extract.IncludeAnonymous)

	v.SetDefault("output.format", defaults.Output.Format)
	v.SetDefault("output.dir", defaults.Output.Dir)
	v.SetDefault("output.database", defaults.Output.Database)
	v.SetDefault("output.report", defaults.Output.Report)

	v.SetDefault("cache.max_entries", defaults.Cache.MaxEntries)
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
