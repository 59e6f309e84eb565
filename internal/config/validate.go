package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrNoInput indicates no input paths were configured
	ErrNoInput = errors.New("no input paths")

	// ErrInvalidPattern indicates an include or ignore glob that does not compile
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// ErrInvalidJobs indicates a negative reader count
	ErrInvalidJobs = errors.New("invalid jobs")

	// ErrInvalidTimeout indicates a non-positive read timeout
	ErrInvalidTimeout = errors.New("invalid read timeout")

	// ErrInvalidFormat indicates an unsupported output format
	ErrInvalidFormat = errors.New("invalid output format")

	// ErrEmptyOutput indicates the selected format has no destination
	ErrEmptyOutput = errors.New("empty output destination")

	// ErrInvalidCacheSettings indicates invalid cache configuration
	ErrInvalidCacheSettings = errors.New("invalid cache settings")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateInput(&cfg.Input); err != nil {
		errs = append(errs, err)
	}

	if err := validateExtract(&cfg.Extract); err != nil {
		errs = append(errs, err)
	}

	if err := validateOutput(&cfg.Output); err != nil {
		errs = append(errs, err)
	}

	if cfg.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("%w: max_entries cannot be negative, got %d", ErrInvalidCacheSettings, cfg.Cache.MaxEntries))
	}

	return joinErrors(errs)
}

func validateInput(cfg *InputConfig) error {
	var errs []error

	if len(cfg.Paths) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one path required", ErrNoInput))
	}

	for _, pattern := range append(append([]string{}, cfg.Include...), cfg.Ignore...) {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err))
		}
	}

	return joinErrors(errs)
}

func validateExtract(cfg *ExtractConfig) error {
	var errs []error

	if cfg.Jobs < 0 {
		errs = append(errs, fmt.Errorf("%w: jobs cannot be negative, got %d", ErrInvalidJobs, cfg.Jobs))
	}

	if cfg.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: read_timeout must be positive, got %s", ErrInvalidTimeout, cfg.ReadTimeout))
	}

	return joinErrors(errs)
}

func validateOutput(cfg *OutputConfig) error {
	format := strings.ToLower(cfg.Format)
	switch format {
	case FormatText:
		if strings.TrimSpace(cfg.Dir) == "" {
			return fmt.Errorf("%w: output.dir is required for format %q", ErrEmptyOutput, format)
		}
	case FormatSQLite:
		if strings.TrimSpace(cfg.Database) == "" {
			return fmt.Errorf("%w: output.database is required for format %q", ErrEmptyOutput, format)
		}
	case FormatStdout:
	default:
		return fmt.Errorf("%w: must be 'text', 'stdout' or 'sqlite', got '%s'", ErrInvalidFormat, cfg.Format)
	}
	return nil
}

// joinErrors combines multiple errors into a single error that still
// matches each sentinel with errors.Is.
func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return fmt.Errorf("validation failed: %w", errors.Join(errs...))
}
