package config

import (
	"path/filepath"
	"time"
)

// Output formats.
const (
	FormatText   = "text"   // one <package>.java file per package under output.dir
	FormatStdout = "stdout" // all packages to standard output
	FormatSQLite = "sqlite" // symbol index database at output.database
)

// Config represents the complete shadow configuration.
// It can be loaded from .shadow/config.yml with environment variable overrides.
type Config struct {
	Library string        `yaml:"library" mapstructure:"library"` // library name; defaults to the first input's base name
	Input   InputConfig   `yaml:"input" mapstructure:"input"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
}

// InputConfig defines where artifacts come from.
type InputConfig struct {
	Paths   []string `yaml:"paths" mapstructure:"paths"`     // directories, jars or single files
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns for artifacts
	Ignore  []string `yaml:"ignore" mapstructure:"ignore"`   // glob patterns to skip
}

// ExtractConfig tunes the reader stage and what the shadow keeps.
type ExtractConfig struct {
	Jobs             int           `yaml:"jobs" mapstructure:"jobs"`                           // parallel readers, 0 = GOMAXPROCS
	ReadTimeout      time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`           // per-artifact bound
	IncludeSynthetic bool          `yaml:"include_synthetic" mapstructure:"include_synthetic"` // keep compiler-generated members
	IncludeAnonymous bool          `yaml:"include_anonymous" mapstructure:"include_anonymous"` // keep anonymous classes
}

// OutputConfig defines where stubs are written.
type OutputConfig struct {
	Format   string `yaml:"format" mapstructure:"format"`     // "text", "stdout" or "sqlite"
	Dir      string `yaml:"dir" mapstructure:"dir"`           // text format root
	Database string `yaml:"database" mapstructure:"database"` // sqlite format path
	Report   string `yaml:"report" mapstructure:"report"`     // optional YAML run report path
}

// CacheConfig bounds the parsed-artifact cache used across watch passes.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Library: "",
		Input: InputConfig{
			Paths: []string{"."},
			Include: []string{
				"**/*.class",
				"**/*.jar",
				"**/*.java",
			},
			Ignore: []string{
				".git/**",
				".shadow/**",
				"META-INF/versions/**",
				"**/META-INF/versions/**",
			},
		},
		Extract: ExtractConfig{
			Jobs:             0,
			ReadTimeout:      10 * time.Second,
			IncludeSynthetic: false,
			IncludeAnonymous: false,
		},
		Output: OutputConfig{
			Format:   FormatText,
			Dir:      filepath.Join(".shadow", "stubs"),
			Database: filepath.Join(".shadow", "symbols.db"),
			Report:   "",
		},
		Cache: CacheConfig{
			MaxEntries: 100_000,
		},
	}
}

// LibraryName returns the configured library name, falling back to the
// base name of the first input path.
func (c *Config) LibraryName() string {
	if c.Library != "" {
		return c.Library
	}
	if len(c.Input.Paths) == 0 {
		return "library"
	}
	abs, err := filepath.Abs(c.Input.Paths[0])
	if err != nil {
		return filepath.Base(c.Input.Paths[0])
	}
	return filepath.Base(abs)
}
