package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mvp-joe/class-shadow/internal/config"
	"github.com/mvp-joe/class-shadow/internal/discovery"
	"github.com/mvp-joe/class-shadow/internal/pipeline"
	"github.com/mvp-joe/class-shadow/internal/sink"
	"github.com/mvp-joe/class-shadow/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	outFlag     string
	formatFlag  string
	libraryFlag string
	reportFlag  string
	jobsFlag    int
	quietFlag   bool
	watchFlag   bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [paths...]",
	Short: "Extract the structural shadow of a library",
	Long: `Extract reads every class file, jar archive and Java source under the given
paths (default: input.paths from .shadow/config.yml) and writes one stub file
per package. Every field is declared with the same placeholder type.

A pass is all or nothing: if the library has cyclic nesting, or the pass is
interrupted, the previous output is left untouched.

Examples:
  # Shadow the classes under build/classes into .shadow/stubs
  shadow extract build/classes

  # Shadow a jar to standard output
  shadow extract --format stdout lib/guava.jar

  # Keep a symbol index database up to date while the build runs
  shadow extract --format sqlite --out symbols.db --watch target/classes
`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Output directory (text) or database file (sqlite)")
	extractCmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Output format: text, stdout or sqlite")
	extractCmd.Flags().StringVar(&libraryFlag, "library", "", "Library name recorded with the pass")
	extractCmd.Flags().StringVar(&reportFlag, "report", "", "Write a YAML run report to this file")
	extractCmd.Flags().IntVarP(&jobsFlag, "jobs", "j", 0, "Parallel artifact readers (0 = number of CPUs)")
	extractCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	extractCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch the inputs and re-extract on change")
}

// extractOverrides holds command-line values that take precedence over the
// loaded configuration. Nil pointers leave the configured value alone.
type extractOverrides struct {
	Paths   []string
	Out     *string
	Format  *string
	Library *string
	Report  *string
	Jobs    *int
}

// extractOptions controls how a loaded configuration is executed.
type extractOptions struct {
	Watch  bool
	Quiet  bool
	Stdout io.Writer // stub output for the stdout format
	Stderr io.Writer // progress output
	Logger *zap.Logger
}

func runExtract(cmd *cobra.Command, args []string) error {
	// Cancel the pass on Ctrl+C; the sink keeps its previous output
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	overrides := extractOverrides{Paths: args}
	flags := cmd.Flags()
	if flags.Changed("out") {
		overrides.Out = &outFlag
	}
	if flags.Changed("format") {
		overrides.Format = &formatFlag
	}
	if flags.Changed("library") {
		overrides.Library = &libraryFlag
	}
	if flags.Changed("report") {
		overrides.Report = &reportFlag
	}
	if flags.Changed("jobs") {
		overrides.Jobs = &jobsFlag
	}

	cfg, err := loadExtractConfig(cfgFile, overrides)
	if err != nil {
		return err
	}

	return executeExtract(ctx, cfg, extractOptions{
		Watch:  watchFlag,
		Quiet:  quietFlag,
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
		Logger: logger,
	})
}

// loadExtractConfig loads .shadow/config.yml from the working directory (or
// configFile when set), applies the overrides and validates the result.
func loadExtractConfig(configFile string, o extractOverrides) (*config.Config, error) {
	var loader config.Loader
	if configFile != "" {
		loader = config.NewFileLoader(configFile)
	} else {
		rootDir, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		loader = config.NewLoader(rootDir)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	applyOverrides(cfg, o)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, o extractOverrides) {
	if len(o.Paths) > 0 {
		cfg.Input.Paths = o.Paths
	}
	if o.Format != nil {
		cfg.Output.Format = *o.Format
	}
	if o.Out != nil {
		// --out names whatever the chosen format writes to
		if cfg.Output.Format == config.FormatSQLite {
			cfg.Output.Database = *o.Out
		} else {
			cfg.Output.Dir = *o.Out
		}
	}
	if o.Library != nil {
		cfg.Library = *o.Library
	}
	if o.Report != nil {
		cfg.Output.Report = *o.Report
	}
	if o.Jobs != nil {
		cfg.Extract.Jobs = *o.Jobs
	}
}

// executeExtract runs one pass, then keeps re-running it on input changes
// when opts.Watch is set.
func executeExtract(ctx context.Context, cfg *config.Config, opts extractOptions) error {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// Output written below an input path must never be read back as input
	outputs := outputPaths(cfg)
	disc, err := discovery.New(cfg.Input.Include, cfg.Input.Ignore, discovery.WithExclude(outputs...))
	if err != nil {
		return fmt.Errorf("failed to create discovery: %w", err)
	}

	cache, err := pipeline.NewArtifactCache(cfg.Cache.MaxEntries)
	if err != nil {
		return fmt.Errorf("failed to create artifact cache: %w", err)
	}
	defer cache.Close()

	out, closeSink, err := openSink(cfg, opts.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSink(); err != nil {
			log.Warn("failed to close output", zap.Error(err))
		}
	}()

	var progress pipeline.ProgressReporter = &pipeline.NoOpProgressReporter{}
	if !opts.Quiet {
		progress = NewCLIProgressReporter(opts.Stderr, false)
	}

	p := pipeline.New(
		pipeline.WithLibrary(cfg.LibraryName()),
		pipeline.WithJobs(cfg.Extract.Jobs),
		pipeline.WithReadTimeout(cfg.Extract.ReadTimeout),
		pipeline.WithSynthetic(cfg.Extract.IncludeSynthetic),
		pipeline.WithAnonymous(cfg.Extract.IncludeAnonymous),
		pipeline.WithLogger(log),
		pipeline.WithProgress(progress),
		pipeline.WithCache(cache),
	)

	pass := func(ctx context.Context) error {
		lib, err := disc.Discover(ctx, cfg.Input.Paths)
		if err != nil {
			return fmt.Errorf("failed to discover artifacts: %w", err)
		}
		defer lib.Close()

		report, err := p.Run(ctx, lib.Sources, out)
		if cfg.Output.Report != "" && report != nil {
			if werr := report.WriteFile(cfg.Output.Report); werr != nil {
				log.Warn("failed to write report", zap.String("path", cfg.Output.Report), zap.Error(werr))
			}
		}
		return err
	}

	if err := pass(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("extraction cancelled")
		}
		return fmt.Errorf("extraction failed: %w", err)
	}

	if !opts.Watch {
		return nil
	}

	fw, err := watcher.NewFileWatcher(cfg.Input.Paths, watcher.DefaultExtensions,
		watcher.WithLogger(log),
		watcher.WithSkipDirs(outputs...))
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	coordinator := watcher.NewWatchCoordinator(fw, func(ctx context.Context, changed []string) error {
		log.Debug("re-extracting", zap.Strings("changed", changed))
		return pass(ctx)
	}, log)

	if !opts.Quiet {
		fmt.Fprintln(opts.Stderr, "Watching for changes (Ctrl+C to stop)...")
	}
	if err := coordinator.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch mode failed: %w", err)
	}
	return nil
}

// outputPaths lists the locations a pass writes to for cfg.
func outputPaths(cfg *config.Config) []string {
	var paths []string
	switch cfg.Output.Format {
	case config.FormatText:
		paths = append(paths, cfg.Output.Dir)
	case config.FormatSQLite:
		paths = append(paths, cfg.Output.Database)
	}
	if cfg.Output.Report != "" {
		paths = append(paths, cfg.Output.Report)
	}
	return paths
}

// openSink builds the sink for cfg.Output.Format. The returned close function
// is always non-nil.
func openSink(cfg *config.Config, stdout io.Writer) (sink.Sink, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Output.Format {
	case config.FormatText:
		return sink.NewDir(cfg.Output.Dir), noop, nil
	case config.FormatStdout:
		return sink.NewWriter(stdout), noop, nil
	case config.FormatSQLite:
		db, err := sink.OpenSQLite(cfg.Output.Database)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open symbol database: %w", err)
		}
		return db, db.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", config.ErrInvalidFormat, cfg.Output.Format)
	}
}
