package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mvp-joe/class-shadow/internal/config"
	"github.com/mvp-joe/class-shadow/internal/sink"
	"github.com/mvp-joe/class-shadow/internal/stub"
	"github.com/spf13/cobra"
)

var (
	lookupDatabaseFlag string
	lookupLibraryFlag  string
)

// lookupCmd represents the lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup <qualified-name>",
	Short: "Show a class stored in the symbol database",
	Long: `Lookup reads a class from the database written by 'shadow extract --format sqlite'
and prints its package, enclosing class and fields.

Examples:
  shadow lookup java.util.concurrent.locks.ReentrantLock
  shadow lookup --database symbols.db 'java.util.concurrent.locks.ReentrantLock$Sync'
`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().StringVar(&lookupDatabaseFlag, "database", "", "Symbol database (default: output.database)")
	lookupCmd.Flags().StringVar(&lookupLibraryFlag, "library", "", "Library name (default: configured library)")
}

func runLookup(cmd *cobra.Command, args []string) error {
	var overrides extractOverrides
	if cmd.Flags().Changed("library") {
		overrides.Library = &lookupLibraryFlag
	}
	cfg, err := loadExtractConfig(cfgFile, overrides)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("database") {
		cfg.Output.Database = lookupDatabaseFlag
	}
	return executeLookup(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
}

func executeLookup(ctx context.Context, cfg *config.Config, qualifiedName string, w io.Writer) error {
	db, err := sink.OpenSQLite(cfg.Output.Database)
	if err != nil {
		return fmt.Errorf("failed to open symbol database: %w", err)
	}
	defer db.Close()

	library := cfg.LibraryName()
	pass, err := db.LatestPass(ctx, library)
	if err != nil {
		if errors.Is(err, sink.ErrNotFound) {
			return fmt.Errorf("no pass stored for library %q; run 'shadow extract --format sqlite' first", library)
		}
		return err
	}

	rec, err := db.Lookup(ctx, library, qualifiedName)
	if err != nil {
		return err
	}

	pkg := rec.Package
	if pkg == "" {
		pkg = "(default)"
	}
	fmt.Fprintf(w, "%s\n", rec.QualifiedName)
	fmt.Fprintf(w, "  Package:  %s\n", pkg)
	if rec.Parent != "" {
		fmt.Fprintf(w, "  Enclosed: %s\n", rec.Parent)
	}
	fmt.Fprintf(w, "  Pass:     %s (%s)\n", pass.ID, pass.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Fields:   %d\n", len(rec.Fields))
	for _, f := range rec.Fields {
		fmt.Fprintf(w, "    %s %s;\n", stub.Placeholder, f)
	}
	return nil
}
