package migrations

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
)

// MigratePromptColumns adds modern columns missing from legacy prompts
// tables (hash, category, notes, rating, updated_at) and backfills the
// deduplication hash from existing text.
//
// Legacy databases predate the hash column entirely; ALTER TABLE ADD COLUMN
// is cheap and safe here because none of the added columns need a rebuild.
// The UNIQUE(hash) constraint only exists on tables created by the current
// base schema; for migrated tables, dedup relies on the hash lookup in
// SavePrompt and on CleanupDuplicatePrompts.
func MigratePromptColumns(db *sql.DB) error {
	adds := []struct {
		col string
		ddl string
	}{
		{"hash", `ALTER TABLE prompts ADD COLUMN hash TEXT NOT NULL DEFAULT ''`},
		{"category", `ALTER TABLE prompts ADD COLUMN category TEXT NOT NULL DEFAULT ''`},
		{"notes", `ALTER TABLE prompts ADD COLUMN notes TEXT NOT NULL DEFAULT ''`},
		{"rating", `ALTER TABLE prompts ADD COLUMN rating INTEGER`},
		{"updated_at", `ALTER TABLE prompts ADD COLUMN updated_at DATETIME`},
	}

	for _, add := range adds {
		exists, err := columnExists(db, "prompts", add.col)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := db.Exec(add.ddl); err != nil {
			return fmt.Errorf("failed to add prompts.%s: %w", add.col, err)
		}
	}

	// Backfill hashes for rows that predate the column. Hashing happens in
	// Go because SQLite has no sha256 built in.
	rows, err := db.Query(`SELECT id, text FROM prompts WHERE hash = '' OR hash IS NULL`)
	if err != nil {
		return fmt.Errorf("failed to find unhashed prompts: %w", err)
	}
	type pending struct {
		id   int64
		hash string
	}
	var updates []pending
	for rows.Next() {
		var id int64
		var text string
		if err := rows.Scan(&id, &text); err != nil {
			_ = rows.Close()
			return err
		}
		sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
		updates = append(updates, pending{id: id, hash: hex.EncodeToString(sum[:])})
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, u := range updates {
		if _, err := db.Exec(`UPDATE prompts SET hash = ? WHERE id = ?`, u.hash, u.id); err != nil {
			return fmt.Errorf("failed to backfill hash for prompt %d: %w", u.id, err)
		}
	}

	// updated_at backfill: mirror created_at where the new column is NULL.
	if _, err := db.Exec(`UPDATE prompts SET updated_at = created_at WHERE updated_at IS NULL`); err != nil {
		return fmt.Errorf("failed to backfill updated_at: %w", err)
	}

	return nil
}
