// Package sqlite implements the storage interface using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	// Import SQLite driver
	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/promptvault/promptvault/internal/storage/sqlite/migrations"
)

// busyTimeoutMillis bounds how long a writer waits on a locked database
// before the driver reports SQLITE_BUSY.
const busyTimeoutMillis = 5000

// Store implements the storage.Storage interface using SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
	closed atomic.Bool

	// reopenMu serializes Restore's close/swap/reopen against in-flight
	// queries. Normal operations hold the read side.
	reopenMu sync.RWMutex
}

// setupWASMCache configures WASM compilation caching to reduce SQLite
// startup time. Falls back to an in-memory cache if the filesystem cache
// directory cannot be created.
func setupWASMCache() {
	var cache wazero.CompilationCache
	if userCache, err := os.UserCacheDir(); err == nil {
		dir := filepath.Join(userCache, "promptvault", "wasm")
		if c, err := wazero.NewCompilationCacheWithDir(dir); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
}

func init() {
	setupWASMCache()
}

// connString builds the driver DSN for a database path, applying the
// concurrency pragmas every connection needs: foreign keys on, bounded
// busy wait, SQLite-native time format.
func connString(path string) string {
	if path == ":memory:" {
		// Shared in-memory database with a named identifier. WAL mode doesn't
		// work for in-memory databases, so journaling stays at the default.
		return fmt.Sprintf("file:memdb?mode=memory&cache=shared&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_time_format=sqlite", busyTimeoutMillis)
	}
	if strings.HasPrefix(path, "file:") {
		if strings.Contains(path, "_pragma=foreign_keys") {
			return path
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return fmt.Sprintf("%s%s_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_time_format=sqlite", path, sep, busyTimeoutMillis)
	}
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_time_format=sqlite", path, busyTimeoutMillis)
}

// openDB opens and configures a database handle: pool sizing, WAL mode,
// base schema, migrations. Shared by New and Restore's reopen path.
func openDB(path string) (*sql.DB, error) {
	isInMemory := path == ":memory:" ||
		(strings.HasPrefix(path, "file:") && strings.Contains(path, "mode=memory"))

	if !isInMemory && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", connString(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if isInMemory {
		// In-memory databases are isolated per connection; force a single
		// connection so all queries see the same data.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		// WAL supports 1 writer + unlimited readers; a bounded pool prevents
		// goroutine pile-up on write lock contention.
		db.SetMaxOpenConns(runtime.NumCPU() + 1)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(0)
	}

	if !isInMemory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Base tables are always re-applied; every statement is IF NOT EXISTS.
	if _, err := db.Exec(schemaTables); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Step failures are logged and tolerated; the schema probe in New is
	// the gate that decides whether the surviving schema is usable.
	if err := migrations.Run(db); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: schema migration incomplete: %v\n", err)
	}

	// Indexes come last: on legacy files several of them cover columns the
	// migrations just added.
	if _, err := db.Exec(schemaIndexes); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return db, nil
}

// New creates a SQLite-backed prompt store at path, creating or migrating
// the on-disk file as needed. Use ":memory:" for an ephemeral database.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	// Verify schema compatibility after migrations. A failed probe gets one
	// migration retry before giving up: a process interrupted mid-migration
	// leaves structure the idempotent steps can finish on the next pass.
	if err := verifySchemaCompatibility(db); err != nil {
		if retryErr := migrations.Run(db); retryErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migration retry failed after schema probe failure: %w (original: %w)", retryErr, err)
		}
		if err := verifySchemaCompatibility(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("schema probe failed after migration retry: %w. Database may be corrupted or from an incompatible version. Run 'pv check' to diagnose", err)
		}
	}

	absPath := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		absPath, err = filepath.Abs(path)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
	}

	return &Store{db: db, dbPath: absPath}, nil
}

// verifySchemaCompatibility probes the columns the query layer depends on.
// Catches partially-migrated or foreign databases before they surface as
// confusing query errors.
func verifySchemaCompatibility(db *sql.DB) error {
	probes := []string{
		`SELECT id, text, hash, category, notes, rating, created_at, updated_at FROM prompts LIMIT 0`,
		`SELECT id, prompt_id, image_path, filename, generation_time, file_size, width, height, format, workflow_data, prompt_metadata, parameters FROM generated_images LIMIT 0`,
		`SELECT id, name FROM tags LIMIT 0`,
		`SELECT prompt_id, tag_id FROM prompt_tags LIMIT 0`,
	}
	for _, probe := range probes {
		if _, err := db.Exec(probe); err != nil {
			return fmt.Errorf("schema probe failed: %w", err)
		}
	}
	return nil
}

// Close checkpoints the WAL and closes the database connection.
// Without the checkpoint, writes may be stranded in the -wal sidecar file
// and the main database file would not stand alone.
func (s *Store) Close() error {
	s.closed.Store(true)
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Path returns the absolute path to the database file.
func (s *Store) Path() string {
	return s.dbPath
}

// IsClosed returns true if Close() has been called on this store.
func (s *Store) IsClosed() bool {
	return s.closed.Load()
}
