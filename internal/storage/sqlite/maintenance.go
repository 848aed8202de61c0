package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/promptvault/promptvault/internal/storage"
)

// maxConsistencyIssues bounds the human-readable issue list; the report
// still carries the full count.
const maxConsistencyIssues = 100

// GetStatistics summarizes the store for diagnostics.
func (s *Store) GetStatistics(ctx context.Context) (*storage.Statistics, error) {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()

	stats := &storage.Statistics{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prompts`).Scan(&stats.TotalPrompts); err != nil {
		return nil, wrapDBError("count prompts", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generated_images`).Scan(&stats.TotalImages); err != nil {
		return nil, wrapDBError("count images", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT category) FROM prompts WHERE category != ''`).Scan(&stats.DistinctCategories); err != nil {
		return nil, wrapDBError("count categories", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`).Scan(&stats.DistinctTags); err != nil {
		return nil, wrapDBError("count tags", err)
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `SELECT AVG(rating) FROM prompts WHERE rating IS NOT NULL`).Scan(&avg); err != nil {
		return nil, wrapDBError("average rating", err)
	}
	if avg.Valid {
		stats.AverageRating = &avg.Float64
	}

	if s.dbPath != ":memory:" {
		if info, err := os.Stat(s.dbPath); err == nil {
			stats.DatabaseSizeBytes = info.Size()
		}
	}

	return stats, nil
}

// CheckConsistency detects referential and legacy-data problems: image rows
// whose prompt_id doesn't resolve, and pre-migration tag JSON that fails to
// parse. Read-only; fixing is left to cleanup operations.
func (s *Store) CheckConsistency(ctx context.Context) (*storage.ConsistencyReport, error) {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()

	report := &storage.ConsistencyReport{}
	add := func(issue string) {
		report.TotalIssues++
		if len(report.Issues) < maxConsistencyIssues {
			report.Issues = append(report.Issues, issue)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT gi.id, gi.prompt_id, gi.filename
		FROM generated_images gi
		LEFT JOIN prompts p ON p.id = gi.prompt_id
		WHERE p.id IS NULL
	`)
	if err != nil {
		return nil, wrapDBError("find orphaned images", err)
	}
	for rows.Next() {
		var id, promptID int64
		var filename string
		if err := rows.Scan(&id, &promptID, &filename); err != nil {
			_ = rows.Close()
			return nil, err
		}
		add(fmt.Sprintf("image %d (%s) references missing prompt %d", id, filename, promptID))
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	hasLegacy, err := s.hasLegacyTagsColumn(ctx)
	if err != nil {
		return nil, err
	}
	if hasLegacy {
		rows, err := s.db.QueryContext(ctx, `SELECT id, tags FROM prompts WHERE tags IS NOT NULL AND tags != '' AND tags != '[]'`)
		if err != nil {
			return nil, wrapDBError("read legacy tags", err)
		}
		for rows.Next() {
			var id int64
			var blob string
			if err := rows.Scan(&id, &blob); err != nil {
				_ = rows.Close()
				return nil, err
			}
			var names []string
			if err := json.Unmarshal([]byte(blob), &names); err != nil {
				add(fmt.Sprintf("prompt %d has unparseable legacy tag data", id))
			}
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func (s *Store) hasLegacyTagsColumn(ctx context.Context) (bool, error) {
	var has bool
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0 FROM pragma_table_info('prompts') WHERE name = 'tags'
	`).Scan(&has)
	if err != nil {
		return false, wrapDBError("check legacy tags column", err)
	}
	return has, nil
}

// Backup copies the database file to destPath. Safe to call while the
// store is in use: the WAL is checkpointed first so the main file stands
// alone, then the bytes are copied without holding the write lock.
func (s *Store) Backup(ctx context.Context, destPath string) error {
	if s.dbPath == ":memory:" {
		return fmt.Errorf("cannot back up an in-memory database")
	}

	s.reopenMu.RLock()
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(FULL)"); err != nil {
		s.reopenMu.RUnlock()
		return wrapDBError("checkpoint before backup", err)
	}
	s.reopenMu.RUnlock()

	return copyFile(s.dbPath, destPath)
}

// Restore replaces the live database with an uploaded file.
//
// The uploaded file is validated before anything changes: it must open as a
// SQLite database and carry a prompts table with the columns the query
// layer needs. The current database is backed up first; if the swap or the
// reopen fails, the pre-restore backup is put back.
func (s *Store) Restore(ctx context.Context, uploadedPath string) error {
	if s.dbPath == ":memory:" {
		return fmt.Errorf("cannot restore over an in-memory database")
	}

	if err := validateDatabaseFile(uploadedPath); err != nil {
		return fmt.Errorf("uploaded database rejected: %w", err)
	}

	preRestore := storage.BackupName(s.dbPath, time.Now())
	if err := s.Backup(ctx, preRestore); err != nil {
		return fmt.Errorf("pre-restore backup failed: %w", err)
	}

	// Block all queries while the file is swapped out underneath the pool.
	s.reopenMu.Lock()
	defer s.reopenMu.Unlock()

	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close before restore: %w", err)
	}

	// Drop stale sidecar files so the incoming database starts clean.
	_ = os.Remove(s.dbPath + "-wal")
	_ = os.Remove(s.dbPath + "-shm")

	if err := copyFile(uploadedPath, s.dbPath); err != nil {
		// Put the original back before reopening.
		_ = copyFile(preRestore, s.dbPath)
		db, reopenErr := openDB(s.dbPath)
		if reopenErr != nil {
			return fmt.Errorf("restore failed and reopen failed: %w (restore error: %v)", reopenErr, err)
		}
		s.db = db
		return fmt.Errorf("restore failed, previous database restored: %w", err)
	}

	db, err := openDB(s.dbPath)
	if err != nil {
		// The uploaded file passed validation but won't open through the
		// full schema path; roll back to the pre-restore backup.
		_ = copyFile(preRestore, s.dbPath)
		db, reopenErr := openDB(s.dbPath)
		if reopenErr != nil {
			return fmt.Errorf("restore rollback failed: %w (restore error: %v)", reopenErr, err)
		}
		s.db = db
		return fmt.Errorf("restored database failed to open, previous database restored: %w", err)
	}
	s.db = db
	return nil
}

// validateDatabaseFile opens path read-only and probes for the prompts
// table with the required columns.
func validateDatabaseFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	db, err := sql.Open("sqlite3", connString(path))
	if err != nil {
		return fmt.Errorf("open uploaded file: %w", err)
	}
	defer func() { _ = db.Close() }()

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'prompts'`).Scan(&name)
	if err == sql.ErrNoRows {
		return fmt.Errorf("no prompts table")
	}
	if err != nil {
		return fmt.Errorf("not a readable database: %w", err)
	}

	for _, col := range []string{"id", "text", "created_at"} {
		var has bool
		if err := db.QueryRow(`SELECT COUNT(*) > 0 FROM pragma_table_info('prompts') WHERE name = ?`, col).Scan(&has); err != nil {
			return err
		}
		if !has {
			return fmt.Errorf("prompts table missing required column %q", col)
		}
	}
	return nil
}

// Vacuum rebuilds the database file to reclaim space. Safe online, but it
// takes the write lock for the duration; callers should schedule it during
// low traffic.
func (s *Store) Vacuum(ctx context.Context) error {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()

	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return wrapDBError("vacuum", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	return out.Close()
}
