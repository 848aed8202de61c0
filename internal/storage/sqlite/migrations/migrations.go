// Package migrations brings pre-existing databases up to the current schema.
//
// Every step is independently idempotent: the "already applied?" check
// introspects actual structure (pragma_table_info, pragma_index_list, row
// counts), never a version counter, so an interrupted process can safely
// re-run the whole sequence. A failure in one step is collected and logged
// but does not stop later steps; base table creation in the schema constant
// is always re-attempted with IF NOT EXISTS semantics.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
)

type step struct {
	name string
	fn   func(*sql.DB) error
}

// Run executes the full migration sequence against db. It returns a joined
// error describing every failed step; callers decide whether the surviving
// schema is usable (the store probes it after Run).
func Run(db *sql.DB) error {
	steps := []step{
		{"prompt_columns", MigratePromptColumns},
		{"image_unique_backfill", MigrateImageUniqueBackfill},
		{"drop_workflow_name", MigrateDropWorkflowName},
		{"image_prompt_id_type", MigrateImagePromptIDType},
		{"tag_normalization", MigrateTagNormalization},
	}

	// Disable foreign keys for the duration of the sequence. With them on,
	// dropping a table during a shadow rebuild fires ON DELETE CASCADE into
	// the junction and image tables. Run executes before the pool serves
	// concurrent traffic, so the pragma lands on the connection the steps
	// reuse.
	if _, err := db.Exec(`PRAGMA foreign_keys=OFF`); err != nil {
		return fmt.Errorf("failed to disable foreign keys: %w", err)
	}
	defer func() {
		_, _ = db.Exec(`PRAGMA foreign_keys=ON`)
	}()

	var errs []error
	for _, st := range steps {
		if err := st.fn(db); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: migration %s failed: %v\n", st.name, err)
			errs = append(errs, fmt.Errorf("migration %s: %w", st.name, err))
		}
	}
	return errors.Join(errs...)
}

// columnExists reports whether table has a column named col.
func columnExists(db *sql.DB, table, col string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info(?)
		WHERE name = ?
	`, table, col).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s.%s column: %w", table, col, err)
	}
	return exists, nil
}

// columnType returns the declared type of table.col, or "" if the column
// does not exist.
func columnType(db *sql.DB, table, col string) (string, error) {
	var typ sql.NullString
	err := db.QueryRow(`
		SELECT type
		FROM pragma_table_info(?)
		WHERE name = ?
	`, table, col).Scan(&typ)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to check %s.%s type: %w", table, col, err)
	}
	return typ.String, nil
}

// uniqueIndexExists reports whether table carries a UNIQUE index over
// exactly the given columns, in order. Covers both named indexes and the
// autoindexes SQLite creates for inline UNIQUE constraints.
func uniqueIndexExists(db *sql.DB, table string, cols ...string) (bool, error) {
	rows, err := db.Query(`SELECT name FROM pragma_index_list(?) WHERE "unique" = 1`, table)
	if err != nil {
		return false, fmt.Errorf("failed to list indexes on %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	for _, name := range names {
		indexCols, err := indexColumns(db, name)
		if err != nil {
			return false, err
		}
		if equalStrings(indexCols, cols) {
			return true, nil
		}
	}
	return false, nil
}

func indexColumns(db *sql.DB, index string) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM pragma_index_info(?) ORDER BY seqno`, index)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect index %s: %w", index, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
