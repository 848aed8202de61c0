package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateImageUniqueBackfill enforces UNIQUE(prompt_id, filename) on
// generated_images for databases that predate the constraint.
//
// Older versions happily inserted the same file against the same prompt
// multiple times. The backfill deletes duplicates keeping the highest id
// (most recent link) per group, then rebuilds the table with the inline
// constraint. SQLite cannot add a constraint to an existing table, so this
// follows the shadow-table pattern: create the new shape, copy, drop,
// rename, recreate the indexes lost with the old table.
func MigrateImageUniqueBackfill(db *sql.DB) error {
	exists, err := uniqueIndexExists(db, "generated_images", "prompt_id", "filename")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = db.Exec(`SAVEPOINT image_unique_backfill`)
	if err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	released := false
	defer func() {
		if !released {
			_, _ = db.Exec(`ROLLBACK TO SAVEPOINT image_unique_backfill`)
			_, _ = db.Exec(`RELEASE SAVEPOINT image_unique_backfill`)
		}
	}()

	// Delete duplicate links, keeping the most recent row per group.
	_, err = db.Exec(`
		DELETE FROM generated_images
		WHERE id NOT IN (
			SELECT MAX(id) FROM generated_images GROUP BY prompt_id, filename
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to delete duplicate image links: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS generated_images_new (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prompt_id INTEGER NOT NULL,
			image_path TEXT NOT NULL,
			filename TEXT NOT NULL,
			generation_time DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			file_size INTEGER NOT NULL DEFAULT 0,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			format TEXT NOT NULL DEFAULT '',
			workflow_data TEXT NOT NULL DEFAULT '{}',
			prompt_metadata TEXT NOT NULL DEFAULT '{}',
			parameters TEXT NOT NULL DEFAULT '{}',
			UNIQUE (prompt_id, filename),
			FOREIGN KEY (prompt_id) REFERENCES prompts(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create new generated_images table: %w", err)
	}

	// Copy whatever columns the legacy table has; missing metadata columns
	// fall back to defaults via the optional-column expressions.
	copySQL, err := buildImageCopySQL(db, "generated_images_new", "prompt_id")
	if err != nil {
		return err
	}
	if _, err := db.Exec(copySQL); err != nil {
		return fmt.Errorf("failed to copy image rows: %w", err)
	}

	if _, err := db.Exec(`DROP TABLE generated_images`); err != nil {
		return fmt.Errorf("failed to drop old generated_images table: %w", err)
	}
	if _, err := db.Exec(`ALTER TABLE generated_images_new RENAME TO generated_images`); err != nil {
		return fmt.Errorf("failed to rename new generated_images table: %w", err)
	}

	if err := recreateImageIndexes(db); err != nil {
		return err
	}

	if _, err := db.Exec(`RELEASE SAVEPOINT image_unique_backfill`); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	released = true
	return nil
}

// buildImageCopySQL assembles the INSERT..SELECT that copies legacy image
// rows into a shadow table, substituting defaults for columns the legacy
// table lacks. promptIDExpr lets the type-fix migration inject a CAST.
func buildImageCopySQL(db *sql.DB, dest, promptIDExpr string) (string, error) {
	optional := []struct {
		col string
		def string
	}{
		{"generation_time", "CURRENT_TIMESTAMP"},
		{"file_size", "0"},
		{"width", "0"},
		{"height", "0"},
		{"format", "''"},
		{"workflow_data", "'{}'"},
		{"prompt_metadata", "'{}'"},
		{"parameters", "'{}'"},
	}

	selectCols := []string{"id", promptIDExpr, "image_path", "filename"}
	for _, opt := range optional {
		exists, err := columnExists(db, "generated_images", opt.col)
		if err != nil {
			return "", err
		}
		if exists {
			selectCols = append(selectCols, opt.col)
		} else {
			selectCols = append(selectCols, opt.def)
		}
	}

	// #nosec G201 - interpolated values are column names and literals, not user input
	return fmt.Sprintf(`
		INSERT INTO %s (
			id, prompt_id, image_path, filename, generation_time,
			file_size, width, height, format,
			workflow_data, prompt_metadata, parameters
		)
		SELECT %s FROM generated_images
	`, dest, joinCols(selectCols)), nil
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func recreateImageIndexes(db *sql.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_images_prompt_id ON generated_images(prompt_id)`,
		`CREATE INDEX IF NOT EXISTS idx_images_image_path ON generated_images(image_path)`,
		`CREATE INDEX IF NOT EXISTS idx_images_generation_time ON generated_images(generation_time)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
