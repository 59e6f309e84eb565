package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvp-joe/class-shadow/internal/stub"
)

// ErrNotFound is returned by lookups for unknown libraries or classes.
var ErrNotFound = errors.New("not found")

const createPassesTable = `
CREATE TABLE IF NOT EXISTS passes (
    id TEXT PRIMARY KEY,
    library TEXT NOT NULL,
    created_at TEXT NOT NULL,
    package_count INTEGER NOT NULL,
    class_count INTEGER NOT NULL,
    field_count INTEGER NOT NULL
)`

const createClassesTable = `
CREATE TABLE IF NOT EXISTS classes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pass_id TEXT NOT NULL REFERENCES passes(id) ON DELETE CASCADE,
    library TEXT NOT NULL,
    package TEXT NOT NULL,
    qualified_name TEXT NOT NULL,
    name TEXT NOT NULL,
    parent_name TEXT,
    UNIQUE (library, qualified_name)
)`

const createFieldsTable = `
CREATE TABLE IF NOT EXISTS fields (
    class_id INTEGER NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (class_id, name)
)`

// SQLite stores each pass as a queryable symbol index. A pass replaces every
// row of its library inside one transaction.
type SQLite struct {
	db     *sql.DB
	ownsDB bool
}

// ClassRecord is one stored class with its fields in emission order.
type ClassRecord struct {
	PassID        string
	Package       string
	QualifiedName string
	Name          string
	Parent        string // qualified name of the enclosing class, empty at top level
	Fields        []string
}

// PassRecord summarises the latest pass of a library.
type PassRecord struct {
	ID        string
	Library   string
	CreatedAt time.Time
	Packages  int
	Classes   int
	Fields    int
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	s, err := NewSQLite(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewSQLite wraps an existing connection and creates the schema if needed.
// The caller keeps ownership of db.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	tables := []struct {
		name string
		ddl  string
	}{
		{"passes", createPassesTable},
		{"classes", createClassesTable},
		{"fields", createFieldsTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return nil, fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}
	if _, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_classes_package ON classes(library, package)"); err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database if it was opened by OpenSQLite.
func (s *SQLite) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Emit(ctx context.Context, b Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	if err := deleteLibrary(ctx, tx, b.Library); err != nil {
		return err
	}

	classes, fields := stub.Count(b.Packages)
	passSQL, passArgs, err := sq.Insert("passes").
		Columns("id", "library", "created_at", "package_count", "class_count", "field_count").
		Values(b.PassID, b.Library, time.Now().UTC().Format(time.RFC3339), len(b.Packages), classes, fields).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx, passSQL, passArgs...); err != nil {
		return fmt.Errorf("failed to insert pass %s: %w", b.PassID, err)
	}

	// Build the queries once with Squirrel, then prepare them for the batch
	classSQL, _, err := sq.Insert("classes").
		Columns("pass_id", "library", "package", "qualified_name", "name", "parent_name").
		Values("", "", "", "", "", nil).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL: %w", err)
	}
	fieldSQL, _, err := sq.Insert("fields").
		Columns("class_id", "name", "type", "position").
		Values(0, "", "", 0).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL: %w", err)
	}

	classStmt, err := tx.PrepareContext(ctx, classSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer classStmt.Close()

	fieldStmt, err := tx.PrepareContext(ctx, fieldSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer fieldStmt.Close()

	var insert func(pkg string, u *stub.Unit, parent sql.NullString) error
	insert = func(pkg string, u *stub.Unit, parent sql.NullString) error {
		res, err := classStmt.ExecContext(ctx, b.PassID, b.Library, pkg, u.QualifiedName, u.Name, parent)
		if err != nil {
			return fmt.Errorf("failed to insert class %s: %w", u.QualifiedName, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read id of class %s: %w", u.QualifiedName, err)
		}
		for i, f := range u.Fields {
			if _, err := fieldStmt.ExecContext(ctx, id, f.Name, f.Type, i); err != nil {
				return fmt.Errorf("failed to insert field %s.%s: %w", u.QualifiedName, f.Name, err)
			}
		}
		self := sql.NullString{String: u.QualifiedName, Valid: true}
		for _, n := range u.Nested {
			if err := insert(pkg, n, self); err != nil {
				return err
			}
		}
		return nil
	}

	for _, pu := range b.Packages {
		for _, u := range pu.Units {
			if err := insert(pu.Package, u, sql.NullString{}); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pass %s: %w", b.PassID, err)
	}
	return nil
}

func deleteLibrary(ctx context.Context, tx *sql.Tx, library string) error {
	classIDs := sq.Select("id").From("classes").Where(sq.Eq{"library": library})

	deletes := []sq.Sqlizer{
		sq.Delete("fields").Where(sq.Expr("class_id IN (?)", classIDs)),
		sq.Delete("classes").Where(sq.Eq{"library": library}),
		sq.Delete("passes").Where(sq.Eq{"library": library}),
	}
	for _, d := range deletes {
		query, args, err := d.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build SQL: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to clear library %s: %w", library, err)
		}
	}
	return nil
}

// LatestPass returns the pass currently stored for library.
func (s *SQLite) LatestPass(ctx context.Context, library string) (*PassRecord, error) {
	query, args, err := sq.Select("id", "library", "created_at", "package_count", "class_count", "field_count").
		From("passes").
		Where(sq.Eq{"library": library}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL: %w", err)
	}

	var rec PassRecord
	var created string
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&rec.ID, &rec.Library, &created, &rec.Packages, &rec.Classes, &rec.Fields)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("library %s: %w", library, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pass: %w", err)
	}
	rec.CreatedAt, err = time.Parse(time.RFC3339, created)
	if err != nil {
		return nil, fmt.Errorf("pass %s has invalid created_at %q: %w", rec.ID, created, err)
	}
	return &rec, nil
}

// Lookup returns one stored class by qualified name.
func (s *SQLite) Lookup(ctx context.Context, library, qualifiedName string) (*ClassRecord, error) {
	query, args, err := sq.Select("id", "pass_id", "package", "qualified_name", "name", "parent_name").
		From("classes").
		Where(sq.Eq{"library": library, "qualified_name": qualifiedName}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL: %w", err)
	}

	var (
		id     int64
		rec    ClassRecord
		parent sql.NullString
	)
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&id, &rec.PassID, &rec.Package, &rec.QualifiedName, &rec.Name, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("class %s: %w", qualifiedName, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query class: %w", err)
	}
	rec.Parent = parent.String

	fieldQuery, fieldArgs, err := sq.Select("name").
		From("fields").
		Where(sq.Eq{"class_id": id}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, fieldQuery, fieldArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		rec.Fields = append(rec.Fields, name)
	}
	return &rec, rows.Err()
}

// Count returns the number of stored classes for library.
func (s *SQLite) Count(ctx context.Context, library string) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From("classes").Where(sq.Eq{"library": library}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count classes: %w", err)
	}
	return n, nil
}
