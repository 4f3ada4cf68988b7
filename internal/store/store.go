package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DBName is the index file kept in the cache directory.
const DBName = "index.db"

// Querier abstracts *sql.DB and *sql.Tx so store methods work in both contexts.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store wraps the SQLite index of analysed Gradle builds.
type Store struct {
	db     *sql.DB
	q      Querier // active querier: db or tx
	dbPath string
}

// DefaultCacheDir returns the default cache directory for the index.
func DefaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, ".cache", "gradle-model-mcp"), nil
}

// Open opens or creates the index in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir cache: %w", err)
	}
	return OpenPath(filepath.Join(dir, DBName))
}

// OpenPath opens a SQLite database at the given path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{db: db, dbPath: dbPath}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// OpenMemory opens an in-memory SQLite database (for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	s := &Store{db: db, dbPath: ":memory:"}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// WithTransaction executes fn within a single SQLite transaction.
// The callback receives a transaction-scoped Store; the receiver keeps
// using the plain connection.
func (s *Store) WithTransaction(ctx context.Context, fn func(txStore *Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, dbPath: s.dbPath}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path, or ":memory:".
func (s *Store) Path() string { return s.dbPath }

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		name TEXT PRIMARY KEY,
		indexed_at TEXT NOT NULL,
		root_path TEXT NOT NULL,
		root_name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS file_hashes (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		rel_path TEXT NOT NULL,
		hash TEXT NOT NULL,
		PRIMARY KEY (project, rel_path)
	);

	CREATE TABLE IF NOT EXISTS modules (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		path TEXT NOT NULL,
		dir TEXT NOT NULL,
		build_file TEXT NOT NULL,
		language TEXT NOT NULL,
		PRIMARY KEY (project, path)
	);

	CREATE TABLE IF NOT EXISTS plugins (
		project TEXT NOT NULL,
		module TEXT NOT NULL,
		plugin_id TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT '',
		applied INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (project, module) REFERENCES modules(project, path) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_plugins_id ON plugins(project, plugin_id);

	CREATE TABLE IF NOT EXISTS repositories (
		project TEXT NOT NULL,
		module TEXT NOT NULL,
		scope TEXT NOT NULL,
		type TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (project, module) REFERENCES modules(project, path) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS dependencies (
		project TEXT NOT NULL,
		module TEXT NOT NULL,
		scope TEXT NOT NULL,
		configuration TEXT NOT NULL,
		kind TEXT NOT NULL,
		notation TEXT NOT NULL,
		group_name TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (project, module) REFERENCES modules(project, path) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_dependencies_group_name ON dependencies(project, group_name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Now returns the current time in ISO 8601 format.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
