package migrations

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// MigrateTagNormalization materializes the legacy denormalized tags column
// (a JSON array of strings per prompt) into the tags vocabulary table and
// the prompt_tags junction table.
//
// Guarded by "vocabulary table already has rows": once any tag exists the
// junction table is the source of truth and the legacy column is never read
// again. Prompts whose JSON fails to parse are skipped with a warning
// rather than aborting the whole migration; CheckConsistency reports them.
func MigrateTagNormalization(db *sql.DB) error {
	hasLegacyTags, err := columnExists(db, "prompts", "tags")
	if err != nil {
		return err
	}
	if !hasLegacyTags {
		return nil
	}

	var tagCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tags`).Scan(&tagCount); err != nil {
		return fmt.Errorf("failed to count tags: %w", err)
	}
	if tagCount > 0 {
		return nil
	}

	rows, err := db.Query(`SELECT id, tags FROM prompts WHERE tags IS NOT NULL AND tags != '' AND tags != '[]'`)
	if err != nil {
		return fmt.Errorf("failed to read legacy tags: %w", err)
	}

	type promptTags struct {
		promptID int64
		names    []string
	}
	var memberships []promptTags
	distinct := map[string]bool{}
	skipped := 0

	for rows.Next() {
		var promptID int64
		var blob string
		if err := rows.Scan(&promptID, &blob); err != nil {
			_ = rows.Close()
			return err
		}
		var names []string
		if err := json.Unmarshal([]byte(blob), &names); err != nil {
			skipped++
			continue
		}
		var kept []string
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			distinct[name] = true
			kept = append(kept, name)
		}
		if len(kept) > 0 {
			memberships = append(memberships, promptTags{promptID: promptID, names: kept})
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if len(distinct) == 0 {
		return nil
	}

	_, err = db.Exec(`SAVEPOINT tag_normalization`)
	if err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	released := false
	defer func() {
		if !released {
			_, _ = db.Exec(`ROLLBACK TO SAVEPOINT tag_normalization`)
			_, _ = db.Exec(`RELEASE SAVEPOINT tag_normalization`)
		}
	}()

	for name := range distinct {
		if _, err := db.Exec(`INSERT OR IGNORE INTO tags (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("failed to insert tag %q: %w", name, err)
		}
	}

	for _, m := range memberships {
		for _, name := range m.names {
			_, err := db.Exec(`
				INSERT OR IGNORE INTO prompt_tags (prompt_id, tag_id)
				SELECT ?, id FROM tags WHERE name = ?
			`, m.promptID, name)
			if err != nil {
				return fmt.Errorf("failed to link prompt %d to tag %q: %w", m.promptID, name, err)
			}
		}
	}

	if _, err := db.Exec(`RELEASE SAVEPOINT tag_normalization`); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	released = true

	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "Warning: tag normalization skipped %d prompts with unparseable tag data\n", skipped)
	}
	return nil
}
