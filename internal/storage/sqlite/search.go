package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/promptvault/promptvault/internal/types"
)

// SearchPrompts finds prompts matching every supplied filter, newest first.
// An absent filter field doesn't constrain; an empty filter lists all
// prompts. Tag filters use AND semantics: a prompt matches only when linked
// to every listed tag.
func (s *Store) SearchPrompts(ctx context.Context, filter types.PromptFilter) ([]*types.Prompt, error) {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()

	whereClauses := []string{}
	args := []any{}

	if filter.TextContains != "" {
		// LIKE is case-insensitive for ASCII by default; lower() both sides
		// to keep the contract explicit.
		whereClauses = append(whereClauses, "lower(text) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.TextContains)+"%")
	}

	if filter.Category != "" {
		whereClauses = append(whereClauses, "category = ?")
		args = append(args, filter.Category)
	}

	if tags := dedupeTags(filter.Tags); len(tags) > 0 {
		// Every listed tag must be present: count the matching junction rows
		// and require the full set. The HAVING bound must count each tag
		// once, so repeated names in the filter collapse first.
		placeholders := make([]string, len(tags))
		for i, tag := range tags {
			placeholders[i] = "?"
			args = append(args, tag)
		}
		whereClauses = append(whereClauses, fmt.Sprintf(`
			id IN (
				SELECT pt.prompt_id
				FROM prompt_tags pt
				JOIN tags t ON t.id = pt.tag_id
				WHERE t.name IN (%s)
				GROUP BY pt.prompt_id
				HAVING COUNT(DISTINCT t.name) = ?
			)`, strings.Join(placeholders, ",")))
		args = append(args, len(tags))
	}

	if filter.RatingMin != nil {
		whereClauses = append(whereClauses, "rating >= ?")
		args = append(args, *filter.RatingMin)
	}
	if filter.RatingMax != nil {
		whereClauses = append(whereClauses, "rating <= ?")
		args = append(args, *filter.RatingMax)
	}

	// Bind time.Time directly so the driver formats bounds exactly as it
	// formatted the stored values; the comparison is lexical.
	if filter.CreatedAfter != nil {
		whereClauses = append(whereClauses, "created_at >= ?")
		args = append(args, *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		whereClauses = append(whereClauses, "created_at <= ?")
		args = append(args, *filter.CreatedBefore)
	}

	query := fmt.Sprintf(`SELECT %s FROM prompts`, promptColumns)
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	} else if filter.Offset > 0 {
		// SQLite requires a LIMIT before OFFSET; -1 means unlimited.
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("search prompts", err)
	}
	defer func() { _ = rows.Close() }()

	return s.collectPrompts(ctx, rows)
}

// dedupeTags drops repeated tag names while keeping first-seen order.
func dedupeTags(tags []string) []string {
	if len(tags) < 2 {
		return tags
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
