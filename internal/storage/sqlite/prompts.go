package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/promptvault/promptvault/internal/types"
)

const promptColumns = `id, text, hash, category, notes, rating, created_at, updated_at`

// SavePrompt stores a new prompt, or updates metadata on the existing row
// when the normalized text already exists. Returns the id of the row the
// text now lives under. Deduplication keys on the hash of trimmed,
// lowercased text, so re-submitting the same prompt with different casing
// or padding never creates a second row.
func (s *Store) SavePrompt(ctx context.Context, prompt *types.Prompt) (int64, error) {
	if err := prompt.Validate(); err != nil {
		return 0, err
	}
	prompt.ComputeHash()

	now := time.Now().UTC()
	if prompt.CreatedAt.IsZero() {
		prompt.CreatedAt = now
	}
	if prompt.UpdatedAt.IsZero() {
		prompt.UpdatedAt = now
	}

	var id int64
	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		var existingID int64
		err := conn.QueryRowContext(ctx, `SELECT id FROM prompts WHERE hash = ?`, prompt.Hash).Scan(&existingID)
		switch {
		case err == nil:
			// Duplicate submission: refresh metadata on the existing row.
			_, err = conn.ExecContext(ctx, `
				UPDATE prompts
				SET category = CASE WHEN ? != '' THEN ? ELSE category END,
				    notes    = CASE WHEN ? != '' THEN ? ELSE notes END,
				    rating   = COALESCE(?, rating),
				    updated_at = ?
				WHERE id = ?
			`, prompt.Category, prompt.Category, prompt.Notes, prompt.Notes, prompt.Rating, now, existingID)
			if err != nil {
				return wrapDBError("update existing prompt", err)
			}
			id = existingID
		case err == sql.ErrNoRows:
			res, err := conn.ExecContext(ctx, `
				INSERT INTO prompts (text, hash, category, notes, rating, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, prompt.Text, prompt.Hash, prompt.Category, prompt.Notes, prompt.Rating, prompt.CreatedAt, prompt.UpdatedAt)
			if err != nil {
				if isConstraintErr(err) {
					// Lost a race with another writer on the hash. Fall back
					// to treating it as the duplicate path.
					qerr := conn.QueryRowContext(ctx, `SELECT id FROM prompts WHERE hash = ?`, prompt.Hash).Scan(&id)
					if qerr != nil {
						return wrapDBError("resolve conflicting prompt", qerr)
					}
					return nil
				}
				return wrapDBError("insert prompt", err)
			}
			id, err = res.LastInsertId()
			if err != nil {
				return wrapDBError("read inserted prompt id", err)
			}
		default:
			return wrapDBError("look up prompt by hash", err)
		}

		if len(prompt.Tags) > 0 {
			if err := setPromptTagsOn(ctx, conn, id, prompt.Tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	prompt.ID = id
	return id, nil
}

// GetPrompt retrieves a prompt by id with its tags resolved.
func (s *Store) GetPrompt(ctx context.Context, id int64) (*types.Prompt, error) {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()
	return s.getPromptWhere(ctx, `id = ?`, id)
}

// GetPromptByHash retrieves a prompt by its deduplication fingerprint.
func (s *Store) GetPromptByHash(ctx context.Context, hash string) (*types.Prompt, error) {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()
	return s.getPromptWhere(ctx, `hash = ?`, hash)
}

func (s *Store) getPromptWhere(ctx context.Context, where string, arg any) (*types.Prompt, error) {
	// #nosec G201 - where clause is a compile-time constant
	query := fmt.Sprintf(`SELECT %s FROM prompts WHERE %s`, promptColumns, where)
	prompt, err := scanPrompt(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, wrapDBError("get prompt", err)
	}
	tags, err := loadPromptTags(ctx, s.db, prompt.ID)
	if err != nil {
		return nil, err
	}
	prompt.Tags = tags
	return prompt, nil
}

// RecentPrompts returns the newest prompts, most recent first.
func (s *Store) RecentPrompts(ctx context.Context, limit int) ([]*types.Prompt, error) {
	return s.SearchPrompts(ctx, types.PromptFilter{Limit: limit})
}

// PromptsByCategory returns prompts in an exact category, newest first.
func (s *Store) PromptsByCategory(ctx context.Context, category string, limit int) ([]*types.Prompt, error) {
	return s.SearchPrompts(ctx, types.PromptFilter{Category: category, Limit: limit})
}

// TopRatedPrompts returns rated prompts ordered by rating then recency.
// Unrated prompts are excluded.
func (s *Store) TopRatedPrompts(ctx context.Context, limit int) ([]*types.Prompt, error) {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()

	query := fmt.Sprintf(`
		SELECT %s FROM prompts
		WHERE rating IS NOT NULL
		ORDER BY rating DESC, created_at DESC
	`, promptColumns)
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list top rated prompts", err)
	}
	defer func() { _ = rows.Close() }()
	return s.collectPrompts(ctx, rows)
}

// UpdatePrompt applies a partial metadata update. Only supplied fields
// change; updated_at always refreshes. Reports whether a row was affected.
func (s *Store) UpdatePrompt(ctx context.Context, id int64, params types.UpdatePromptParams) (bool, error) {
	if err := params.Validate(); err != nil {
		return false, err
	}

	affected := false
	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		sets := []string{`updated_at = ?`}
		args := []any{time.Now().UTC()}

		if params.Text != nil {
			sets = append(sets, `text = ?`, `hash = ?`)
			args = append(args, *params.Text, types.HashText(*params.Text))
		}
		if params.Category != nil {
			sets = append(sets, `category = ?`)
			args = append(args, *params.Category)
		}
		if params.Notes != nil {
			sets = append(sets, `notes = ?`)
			args = append(args, *params.Notes)
		}
		if params.Rating != nil {
			sets = append(sets, `rating = ?`)
			args = append(args, *params.Rating)
		}
		args = append(args, id)

		// #nosec G201 - set expressions are compile-time constants
		query := fmt.Sprintf(`UPDATE prompts SET %s WHERE id = ?`, joinSets(sets))
		res, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			if isConstraintErr(err) && params.Text != nil {
				return fmt.Errorf("update prompt %d: %w: another prompt already has this text", id, ErrConflict)
			}
			return wrapDBError("update prompt", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return wrapDBError("read affected rows", err)
		}
		affected = n > 0
		if !affected {
			return nil
		}

		if params.Tags != nil {
			if err := setPromptTagsOn(ctx, conn, id, *params.Tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return affected, nil
}

// DeletePrompt removes a prompt, its image links, and its tag memberships.
// Image rows are deleted explicitly rather than relying on the cascade, so
// behavior holds even on legacy tables rebuilt without the constraint.
// Reports whether a prompt row was affected.
func (s *Store) DeletePrompt(ctx context.Context, id int64) (bool, error) {
	affected := false
	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, `DELETE FROM generated_images WHERE prompt_id = ?`, id); err != nil {
			return wrapDBError("delete prompt images", err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM prompt_tags WHERE prompt_id = ?`, id); err != nil {
			return wrapDBError("delete prompt tag links", err)
		}
		res, err := conn.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, id)
		if err != nil {
			return wrapDBError("delete prompt", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return wrapDBError("read affected rows", err)
		}
		affected = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return affected, nil
}

// CleanupDuplicatePrompts collapses prompts that share the same normalized
// text, keeping the oldest (lowest id) per group and deleting the rest with
// their images and tag links. Returns the number of prompts removed.
//
// Duplicates only arise in databases that predate the hash column; new
// writes dedupe at save time.
func (s *Store) CleanupDuplicatePrompts(ctx context.Context) (int, error) {
	removed := 0
	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT id FROM prompts
			WHERE id NOT IN (
				SELECT MIN(id) FROM prompts GROUP BY lower(trim(text))
			)
		`)
		if err != nil {
			return wrapDBError("find duplicate prompts", err)
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		if err := rows.Close(); err != nil {
			return err
		}

		for _, id := range ids {
			if _, err := conn.ExecContext(ctx, `DELETE FROM generated_images WHERE prompt_id = ?`, id); err != nil {
				return wrapDBError("delete duplicate prompt images", err)
			}
			if _, err := conn.ExecContext(ctx, `DELETE FROM prompt_tags WHERE prompt_id = ?`, id); err != nil {
				return wrapDBError("delete duplicate prompt tag links", err)
			}
			if _, err := conn.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, id); err != nil {
				return wrapDBError("delete duplicate prompt", err)
			}
		}
		removed = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row rowScanner) (*types.Prompt, error) {
	var p types.Prompt
	var rating sql.NullInt64
	err := row.Scan(&p.ID, &p.Text, &p.Hash, &p.Category, &p.Notes, &rating, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Rating = nullableRating(rating)
	return &p, nil
}

// collectPrompts drains rows and resolves each prompt's tags.
func (s *Store) collectPrompts(ctx context.Context, rows *sql.Rows) ([]*types.Prompt, error) {
	var prompts []*types.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range prompts {
		tags, err := loadPromptTags(ctx, s.db, p.ID)
		if err != nil {
			return nil, err
		}
		p.Tags = tags
	}
	return prompts, nil
}

// loadPromptTags resolves a prompt's tag names, sorted for determinism.
func loadPromptTags(ctx context.Context, q querier, promptID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT t.name
		FROM prompt_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.prompt_id = ?
		ORDER BY t.name
	`, promptID)
	if err != nil {
		return nil, wrapDBError("load prompt tags", err)
	}
	defer func() { _ = rows.Close() }()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

func joinSets(sets []string) string {
	out := ""
	for i, set := range sets {
		if i > 0 {
			out += ", "
		}
		out += set
	}
	return out
}
