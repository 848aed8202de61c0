package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateDropWorkflowName removes the deprecated workflow_name column from
// the prompts table. Workflow identity moved onto the image rows long ago;
// the column on prompts was never populated consistently.
//
// SQLite's DROP COLUMN support is recent, so the table is recreated without
// the column. A legacy denormalized tags column, if present, is carried
// across unchanged: the tag normalization step still needs to read it.
func MigrateDropWorkflowName(db *sql.DB) error {
	hasWorkflowName, err := columnExists(db, "prompts", "workflow_name")
	if err != nil {
		return err
	}
	if !hasWorkflowName {
		return nil
	}

	hasLegacyTags, err := columnExists(db, "prompts", "tags")
	if err != nil {
		return err
	}

	_, err = db.Exec(`SAVEPOINT drop_workflow_name`)
	if err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	released := false
	defer func() {
		if !released {
			_, _ = db.Exec(`ROLLBACK TO SAVEPOINT drop_workflow_name`)
			_, _ = db.Exec(`RELEASE SAVEPOINT drop_workflow_name`)
		}
	}()

	legacyTagsDDL := ""
	legacyTagsCol := ""
	legacyTagsExpr := ""
	if hasLegacyTags {
		legacyTagsDDL = ",\n\t\t\ttags TEXT NOT NULL DEFAULT '[]'"
		legacyTagsCol = ", tags"
		legacyTagsExpr = ", COALESCE(tags, '[]')"
	}

	// #nosec G201 - interpolated values are column definitions, not user input
	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS prompts_new (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL CHECK(length(text) <= 10000),
			hash TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			rating INTEGER CHECK(rating IS NULL OR (rating >= 1 AND rating <= 5)),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP%s
		)
	`, legacyTagsDDL)
	if _, err := db.Exec(createSQL); err != nil {
		return fmt.Errorf("failed to create new prompts table: %w", err)
	}

	// #nosec G201 - interpolated values are column names, not user input
	copySQL := fmt.Sprintf(`
		INSERT INTO prompts_new (id, text, hash, category, notes, rating, created_at, updated_at%s)
		SELECT id, text, hash, category, notes, rating, created_at, COALESCE(updated_at, created_at)%s
		FROM prompts
	`, legacyTagsCol, legacyTagsExpr)
	if _, err := db.Exec(copySQL); err != nil {
		return fmt.Errorf("failed to copy prompt rows: %w", err)
	}

	if _, err := db.Exec(`DROP TABLE prompts`); err != nil {
		return fmt.Errorf("failed to drop old prompts table: %w", err)
	}
	if _, err := db.Exec(`ALTER TABLE prompts_new RENAME TO prompts`); err != nil {
		return fmt.Errorf("failed to rename new prompts table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_prompts_text ON prompts(text)`,
		`CREATE INDEX IF NOT EXISTS idx_prompts_category ON prompts(category)`,
		`CREATE INDEX IF NOT EXISTS idx_prompts_created_at ON prompts(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_prompts_rating ON prompts(rating)`,
		`CREATE INDEX IF NOT EXISTS idx_prompts_hash ON prompts(hash)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if _, err := db.Exec(`RELEASE SAVEPOINT drop_workflow_name`); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	released = true
	return nil
}
