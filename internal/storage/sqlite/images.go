package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/promptvault/promptvault/internal/types"
)

const imageColumns = `id, prompt_id, image_path, filename, generation_time, file_size, width, height, format, workflow_data, prompt_metadata, parameters`

// LinkImage records a generated artifact against the prompt that produced
// it and returns the image row id. Linking the same (prompt, filename) pair
// again updates the existing row instead of creating a duplicate, so the
// watcher can safely re-report files it has already seen.
func (s *Store) LinkImage(ctx context.Context, img *types.GeneratedImage) (int64, error) {
	if img.PromptID == 0 {
		return 0, &types.ValidationError{Field: "prompt_id", Reason: "prompt id is required"}
	}
	if img.ImagePath == "" {
		return 0, &types.ValidationError{Field: "image_path", Reason: "image path is required"}
	}
	if img.Filename == "" {
		img.Filename = filepath.Base(img.ImagePath)
	}
	if img.GenerationTime.IsZero() {
		img.GenerationTime = time.Now().UTC()
	}

	workflow, err := marshalMetadata(img.WorkflowData)
	if err != nil {
		return 0, fmt.Errorf("serialize workflow data: %w", err)
	}
	metadata, err := marshalMetadata(img.PromptMetadata)
	if err != nil {
		return 0, fmt.Errorf("serialize prompt metadata: %w", err)
	}
	params, err := marshalMetadata(img.Parameters)
	if err != nil {
		return 0, fmt.Errorf("serialize parameters: %w", err)
	}

	var id int64
	err = s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		var exists bool
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) > 0 FROM prompts WHERE id = ?`, img.PromptID).Scan(&exists); err != nil {
			return wrapDBError("check prompt exists", err)
		}
		if !exists {
			return fmt.Errorf("link image to prompt %d: %w", img.PromptID, ErrNotFound)
		}

		// UPSERT keyed on the (prompt_id, filename) uniqueness invariant.
		// RETURNING id covers both paths; last_insert_rowid() would be stale
		// on the conflict-update path.
		err := conn.QueryRowContext(ctx, `
			INSERT INTO generated_images (
				prompt_id, image_path, filename, generation_time,
				file_size, width, height, format,
				workflow_data, prompt_metadata, parameters
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (prompt_id, filename) DO UPDATE SET
				image_path = excluded.image_path,
				generation_time = excluded.generation_time,
				file_size = excluded.file_size,
				width = excluded.width,
				height = excluded.height,
				format = excluded.format,
				workflow_data = excluded.workflow_data,
				prompt_metadata = excluded.prompt_metadata,
				parameters = excluded.parameters
			RETURNING id
		`, img.PromptID, img.ImagePath, img.Filename, img.GenerationTime,
			img.FileSize, img.Width, img.Height, img.Format,
			workflow, metadata, params).Scan(&id)
		if err != nil {
			return wrapDBError("link image", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	img.ID = id
	return id, nil
}

// ImagesForPrompt lists all images linked to a prompt, newest first.
func (s *Store) ImagesForPrompt(ctx context.Context, promptID int64) ([]*types.GeneratedImage, error) {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()

	query := fmt.Sprintf(`
		SELECT %s FROM generated_images
		WHERE prompt_id = ?
		ORDER BY generation_time DESC, id DESC
	`, imageColumns)
	rows, err := s.db.QueryContext(ctx, query, promptID)
	if err != nil {
		return nil, wrapDBError("list prompt images", err)
	}
	defer func() { _ = rows.Close() }()
	return collectImages(rows, false)
}

// RecentImages lists the newest images across all prompts. When
// withPromptText is set, each image carries its prompt's text for gallery
// display.
func (s *Store) RecentImages(ctx context.Context, limit int, withPromptText bool) ([]*types.GeneratedImage, error) {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()

	var query string
	if withPromptText {
		query = `
			SELECT gi.id, gi.prompt_id, gi.image_path, gi.filename, gi.generation_time,
			       gi.file_size, gi.width, gi.height, gi.format,
			       gi.workflow_data, gi.prompt_metadata, gi.parameters, p.text
			FROM generated_images gi
			JOIN prompts p ON p.id = gi.prompt_id
			ORDER BY gi.generation_time DESC, gi.id DESC
		`
	} else {
		query = fmt.Sprintf(`
			SELECT %s FROM generated_images
			ORDER BY generation_time DESC, id DESC
		`, imageColumns)
	}

	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list recent images", err)
	}
	defer func() { _ = rows.Close() }()
	return collectImages(rows, withPromptText)
}

// SearchImages finds images whose prompt text contains the given substring,
// case-insensitively, newest first.
func (s *Store) SearchImages(ctx context.Context, promptText string, limit int) ([]*types.GeneratedImage, error) {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()

	query := `
		SELECT gi.id, gi.prompt_id, gi.image_path, gi.filename, gi.generation_time,
		       gi.file_size, gi.width, gi.height, gi.format,
		       gi.workflow_data, gi.prompt_metadata, gi.parameters, p.text
		FROM generated_images gi
		JOIN prompts p ON p.id = gi.prompt_id
		WHERE lower(p.text) LIKE ?
		ORDER BY gi.generation_time DESC, gi.id DESC
	`
	args := []any{"%" + strings.ToLower(promptText) + "%"}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("search images", err)
	}
	defer func() { _ = rows.Close() }()
	return collectImages(rows, true)
}

// GetImage retrieves a single image row by id.
func (s *Store) GetImage(ctx context.Context, id int64) (*types.GeneratedImage, error) {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()

	query := fmt.Sprintf(`SELECT %s FROM generated_images WHERE id = ?`, imageColumns)
	img, err := scanImage(s.db.QueryRowContext(ctx, query, id), false)
	if err != nil {
		return nil, wrapDBError("get image", err)
	}
	return img, nil
}

// DeleteImage removes a single image row. Reports whether a row was affected.
func (s *Store) DeleteImage(ctx context.Context, id int64) (bool, error) {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM generated_images WHERE id = ?`, id)
	if err != nil {
		return false, wrapDBError("delete image", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapDBError("read affected rows", err)
	}
	return n > 0, nil
}

// CleanupMissingFiles deletes image rows whose file no longer exists on
// disk and returns the count removed. The filesystem check happens outside
// the write transaction so a slow disk doesn't hold the write lock.
func (s *Store) CleanupMissingFiles(ctx context.Context) (int, error) {
	s.reopenMu.RLock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, image_path FROM generated_images`)
	if err != nil {
		s.reopenMu.RUnlock()
		return 0, wrapDBError("list image paths", err)
	}

	var stale []int64
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			_ = rows.Close()
			s.reopenMu.RUnlock()
			return 0, err
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			stale = append(stale, id)
		}
	}
	if err := rows.Close(); err != nil {
		s.reopenMu.RUnlock()
		return 0, err
	}
	s.reopenMu.RUnlock()

	if len(stale) == 0 {
		return 0, nil
	}

	removed := 0
	err = s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		for _, id := range stale {
			res, err := conn.ExecContext(ctx, `DELETE FROM generated_images WHERE id = ?`, id)
			if err != nil {
				return wrapDBError("delete orphan image", err)
			}
			if n, err := res.RowsAffected(); err == nil {
				removed += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// marshalMetadata serializes an opaque metadata blob, normalizing
// non-finite floats first so json.Marshal cannot fail on NaN values coming
// out of generation parameters.
func marshalMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	sanitized := types.SanitizeJSON(m)
	data, err := json.Marshal(sanitized)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMetadata(blob string) map[string]any {
	if blob == "" || blob == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(blob), &m); err != nil {
		return nil // corrupted blobs degrade to empty metadata, not errors
	}
	return m
}

func scanImage(row rowScanner, withPromptText bool) (*types.GeneratedImage, error) {
	var img types.GeneratedImage
	var workflow, metadata, params string
	dest := []any{
		&img.ID, &img.PromptID, &img.ImagePath, &img.Filename, &img.GenerationTime,
		&img.FileSize, &img.Width, &img.Height, &img.Format,
		&workflow, &metadata, &params,
	}
	if withPromptText {
		dest = append(dest, &img.PromptText)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	img.WorkflowData = unmarshalMetadata(workflow)
	img.PromptMetadata = unmarshalMetadata(metadata)
	img.Parameters = unmarshalMetadata(params)
	return &img, nil
}

func collectImages(rows *sql.Rows, withPromptText bool) ([]*types.GeneratedImage, error) {
	var images []*types.GeneratedImage
	for rows.Next() {
		img, err := scanImage(rows, withPromptText)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}
