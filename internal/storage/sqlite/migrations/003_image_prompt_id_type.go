package migrations

import (
	"database/sql"
	"fmt"
	"strings"
)

// MigrateImagePromptIDType fixes generated_images.prompt_id stored as TEXT.
//
// A historical bug bound the prompt id as a string, so older databases
// declare the column TEXT and carry values like "42". The rebuild casts to
// INTEGER and joins against prompts, which drops both rows whose value
// doesn't cast (CAST of a non-numeric string yields 0, matching no prompt)
// and rows whose id no longer references a live prompt.
func MigrateImagePromptIDType(db *sql.DB) error {
	typ, err := columnType(db, "generated_images", "prompt_id")
	if err != nil {
		return err
	}
	if typ == "" || strings.EqualFold(typ, "INTEGER") {
		return nil
	}

	_, err = db.Exec(`SAVEPOINT image_prompt_id_type`)
	if err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	released := false
	defer func() {
		if !released {
			_, _ = db.Exec(`ROLLBACK TO SAVEPOINT image_prompt_id_type`)
			_, _ = db.Exec(`RELEASE SAVEPOINT image_prompt_id_type`)
		}
	}()

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS generated_images_typed (
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
		return fmt.Errorf("failed to create typed generated_images table: %w", err)
	}

	copySQL, err := buildImageCopySQL(db, "generated_images_typed", "CAST(generated_images.prompt_id AS INTEGER)")
	if err != nil {
		return err
	}
	// Restrict the copy to rows whose cast id references a live prompt.
	copySQL += ` WHERE CAST(generated_images.prompt_id AS INTEGER) IN (SELECT id FROM prompts)`
	if _, err := db.Exec(copySQL); err != nil {
		return fmt.Errorf("failed to copy image rows with cast: %w", err)
	}

	if _, err := db.Exec(`DROP TABLE generated_images`); err != nil {
		return fmt.Errorf("failed to drop old generated_images table: %w", err)
	}
	if _, err := db.Exec(`ALTER TABLE generated_images_typed RENAME TO generated_images`); err != nil {
		return fmt.Errorf("failed to rename typed generated_images table: %w", err)
	}

	if err := recreateImageIndexes(db); err != nil {
		return err
	}

	if _, err := db.Exec(`RELEASE SAVEPOINT image_prompt_id_type`); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	released = true
	return nil
}
