package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/promptvault/promptvault/internal/storage"
	"github.com/promptvault/promptvault/internal/types"
)

// ListTags returns the full tag vocabulary sorted by name. Tags with zero
// linked prompts are included: vocabulary entries persist until deleted
// explicitly.
func (s *Store) ListTags(ctx context.Context) ([]types.Tag, error) {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, wrapDBError("list tags", err)
	}
	defer func() { _ = rows.Close() }()

	var tags []types.Tag
	for rows.Next() {
		var t types.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// ListTagCounts returns tags with their prompt usage counts, filtered,
// sorted, and paginated per opts.
func (s *Store) ListTagCounts(ctx context.Context, opts storage.TagListOptions) ([]types.TagCount, error) {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()

	query := `
		SELECT t.name, COUNT(pt.prompt_id)
		FROM tags t
		LEFT JOIN prompt_tags pt ON pt.tag_id = t.id
	`
	args := []any{}
	if opts.Search != "" {
		query += ` WHERE lower(t.name) LIKE ?`
		args = append(args, "%"+strings.ToLower(opts.Search)+"%")
	}
	query += ` GROUP BY t.id`

	switch opts.Sort {
	case storage.TagSortCount:
		query += ` ORDER BY COUNT(pt.prompt_id) DESC, t.name`
	default:
		query += ` ORDER BY t.name`
	}

	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list tag counts", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []types.TagCount
	for rows.Next() {
		var tc types.TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// SetPromptTags replaces a prompt's full tag list. New names are added to
// the vocabulary as needed; junction rows not in the new list are removed.
func (s *Store) SetPromptTags(ctx context.Context, promptID int64, tags []string) error {
	return s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		var exists bool
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) > 0 FROM prompts WHERE id = ?`, promptID).Scan(&exists); err != nil {
			return wrapDBError("check prompt exists", err)
		}
		if !exists {
			return fmt.Errorf("set tags for prompt %d: %w", promptID, ErrNotFound)
		}
		return setPromptTagsOn(ctx, conn, promptID, tags)
	})
}

// setPromptTagsOn diffs the prompt's current membership against the desired
// list on an existing transaction connection. Empty and whitespace-only
// names are dropped; everything else is exact, case-sensitive.
func setPromptTagsOn(ctx context.Context, q querier, promptID int64, tags []string) error {
	desired := map[string]bool{}
	var ordered []string
	for _, name := range tags {
		name = strings.TrimSpace(name)
		if name == "" || desired[name] {
			continue
		}
		desired[name] = true
		ordered = append(ordered, name)
	}

	current, err := loadPromptTags(ctx, q, promptID)
	if err != nil {
		return err
	}

	for _, name := range current {
		if !desired[name] {
			_, err := q.ExecContext(ctx, `
				DELETE FROM prompt_tags
				WHERE prompt_id = ? AND tag_id = (SELECT id FROM tags WHERE name = ?)
			`, promptID, name)
			if err != nil {
				return wrapDBError("remove stale tag link", err)
			}
		}
	}

	currentSet := map[string]bool{}
	for _, name := range current {
		currentSet[name] = true
	}
	for _, name := range ordered {
		if currentSet[name] {
			continue
		}
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO tags (name) VALUES (?)`, name); err != nil {
			return wrapDBError("insert tag", err)
		}
		_, err := q.ExecContext(ctx, `
			INSERT OR IGNORE INTO prompt_tags (prompt_id, tag_id)
			SELECT ?, id FROM tags WHERE name = ?
		`, promptID, name)
		if err != nil {
			return wrapDBError("insert tag link", err)
		}
	}
	return nil
}

// RenameTag renames a tag across all prompts. If the target name already
// exists as a different tag, the rename degrades to a merge: links repoint
// to the existing target and the old vocabulary row is removed.
func (s *Store) RenameTag(ctx context.Context, oldName, newName string) (types.TagMutationResult, error) {
	var result types.TagMutationResult
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return result, &types.ValidationError{Field: "tag", Reason: "new tag name is required"}
	}
	if newName == oldName {
		return result, nil
	}

	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		var oldID int64
		err := conn.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, oldName).Scan(&oldID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("rename tag %q: %w", oldName, ErrNotFound)
		}
		if err != nil {
			return wrapDBError("look up tag", err)
		}

		if err := conn.QueryRowContext(ctx, `
			SELECT COUNT(DISTINCT prompt_id) FROM prompt_tags WHERE tag_id = ?
		`, oldID).Scan(&result.PromptsAffected); err != nil {
			return wrapDBError("count affected prompts", err)
		}

		var newID int64
		err = conn.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, newName).Scan(&newID)
		switch {
		case err == sql.ErrNoRows:
			// Plain rename: the vocabulary row keeps its id and links.
			if _, err := conn.ExecContext(ctx, `UPDATE tags SET name = ? WHERE id = ?`, newName, oldID); err != nil {
				return wrapDBError("rename tag", err)
			}
		case err == nil:
			// Target exists: merge instead of creating a duplicate name.
			if err := repointTagLinks(ctx, conn, oldID, newID); err != nil {
				return err
			}
			if _, err := conn.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, oldID); err != nil {
				return wrapDBError("delete merged tag", err)
			}
		default:
			return wrapDBError("look up target tag", err)
		}

		result.PromptsSkipped, err = countCorruptLegacyTags(ctx, conn)
		return err
	})
	if err != nil {
		return types.TagMutationResult{}, err
	}
	return result, nil
}

// DeleteTag removes a tag from the vocabulary and all its junction rows.
// The prompts themselves are untouched.
func (s *Store) DeleteTag(ctx context.Context, name string) (types.TagMutationResult, error) {
	var result types.TagMutationResult
	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		var id int64
		err := conn.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id)
		if err == sql.ErrNoRows {
			return fmt.Errorf("delete tag %q: %w", name, ErrNotFound)
		}
		if err != nil {
			return wrapDBError("look up tag", err)
		}

		if err := conn.QueryRowContext(ctx, `
			SELECT COUNT(DISTINCT prompt_id) FROM prompt_tags WHERE tag_id = ?
		`, id).Scan(&result.PromptsAffected); err != nil {
			return wrapDBError("count affected prompts", err)
		}

		if _, err := conn.ExecContext(ctx, `DELETE FROM prompt_tags WHERE tag_id = ?`, id); err != nil {
			return wrapDBError("delete tag links", err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id); err != nil {
			return wrapDBError("delete tag", err)
		}

		result.PromptsSkipped, err = countCorruptLegacyTags(ctx, conn)
		return err
	})
	if err != nil {
		return types.TagMutationResult{}, err
	}
	return result, nil
}

// MergeTags repoints every link from the source tags to the target tag,
// creating the target if needed, and deletes the source vocabulary rows.
// A prompt already carrying the target never ends up with duplicate links.
func (s *Store) MergeTags(ctx context.Context, sources []string, target string) (types.TagMutationResult, error) {
	var result types.TagMutationResult
	target = strings.TrimSpace(target)
	if target == "" {
		return result, &types.ValidationError{Field: "tag", Reason: "merge target is required"}
	}

	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, `INSERT OR IGNORE INTO tags (name) VALUES (?)`, target); err != nil {
			return wrapDBError("ensure target tag", err)
		}
		var targetID int64
		if err := conn.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, target).Scan(&targetID); err != nil {
			return wrapDBError("look up target tag", err)
		}

		affected := map[int64]bool{}
		for _, source := range sources {
			if source == target {
				continue
			}
			var sourceID int64
			err := conn.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, source).Scan(&sourceID)
			if err == sql.ErrNoRows {
				continue // merging a nonexistent source is a no-op
			}
			if err != nil {
				return wrapDBError("look up source tag", err)
			}

			rows, err := conn.QueryContext(ctx, `SELECT prompt_id FROM prompt_tags WHERE tag_id = ?`, sourceID)
			if err != nil {
				return wrapDBError("list source tag links", err)
			}
			for rows.Next() {
				var promptID int64
				if err := rows.Scan(&promptID); err != nil {
					_ = rows.Close()
					return err
				}
				affected[promptID] = true
			}
			if err := rows.Close(); err != nil {
				return err
			}

			if err := repointTagLinks(ctx, conn, sourceID, targetID); err != nil {
				return err
			}
			if _, err := conn.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, sourceID); err != nil {
				return wrapDBError("delete source tag", err)
			}
		}
		result.PromptsAffected = len(affected)

		var err error
		result.PromptsSkipped, err = countCorruptLegacyTags(ctx, conn)
		return err
	})
	if err != nil {
		return types.TagMutationResult{}, err
	}
	return result, nil
}

// repointTagLinks moves junction rows from one tag id to another, dropping
// rows that would duplicate an existing (prompt, target) pair.
func repointTagLinks(ctx context.Context, q querier, fromID, toID int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO prompt_tags (prompt_id, tag_id)
		SELECT prompt_id, ? FROM prompt_tags WHERE tag_id = ?
	`, toID, fromID)
	if err != nil {
		return wrapDBError("repoint tag links", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM prompt_tags WHERE tag_id = ?`, fromID); err != nil {
		return wrapDBError("delete repointed tag links", err)
	}
	return nil
}

// UntaggedPrompts returns prompts with zero junction rows, newest first.
func (s *Store) UntaggedPrompts(ctx context.Context, limit, offset int) ([]*types.Prompt, error) {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()

	query := fmt.Sprintf(`
		SELECT %s FROM prompts
		WHERE id NOT IN (SELECT DISTINCT prompt_id FROM prompt_tags)
		ORDER BY created_at DESC, id DESC
	`, promptColumns)
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
		if offset > 0 {
			query += ` OFFSET ?`
			args = append(args, offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list untagged prompts", err)
	}
	defer func() { _ = rows.Close() }()
	return s.collectPrompts(ctx, rows)
}

// countCorruptLegacyTags counts prompts whose pre-migration tags column
// holds unparseable JSON. Databases born on the current schema have no such
// column and always report zero. Bulk tag mutations surface the count so
// callers know some prompts sit outside the normalized model.
func countCorruptLegacyTags(ctx context.Context, q querier) (int, error) {
	var hasLegacy bool
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0 FROM pragma_table_info('prompts') WHERE name = 'tags'
	`).Scan(&hasLegacy)
	if err != nil {
		return 0, wrapDBError("check legacy tags column", err)
	}
	if !hasLegacy {
		return 0, nil
	}

	rows, err := q.QueryContext(ctx, `SELECT tags FROM prompts WHERE tags IS NOT NULL AND tags != '' AND tags != '[]'`)
	if err != nil {
		return 0, wrapDBError("read legacy tags", err)
	}
	defer func() { _ = rows.Close() }()

	corrupt := 0
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return 0, err
		}
		var names []string
		if err := json.Unmarshal([]byte(blob), &names); err != nil {
			corrupt++
		}
	}
	return corrupt, rows.Err()
}
