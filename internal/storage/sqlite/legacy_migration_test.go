package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/promptvault/promptvault/internal/types"
)

// newLegacyDatabase writes a database file shaped like the oldest schema
// this code ever shipped: prompts with workflow_name and a denormalized
// JSON tags column, no hash, and an image table with TEXT prompt ids and
// no uniqueness constraint.
func newLegacyDatabase(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite3", connString(path))
	if err != nil {
		t.Fatalf("open legacy db: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			t.Fatalf("close legacy db: %v", cerr)
		}
	}()

	ddl := []string{
		`CREATE TABLE prompts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			workflow_name TEXT,
			tags TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE generated_images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prompt_id TEXT NOT NULL,
			image_path TEXT NOT NULL,
			filename TEXT NOT NULL
		)`,
	}
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("create legacy schema: %v", err)
		}
	}

	inserts := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO prompts (id, text, workflow_name, tags) VALUES (?, ?, ?, ?)`,
			[]any{1, "  A Castle At Dawn  ", "default.json", `["fantasy", "castle"]`}},
		{`INSERT INTO prompts (id, text, workflow_name, tags) VALUES (?, ?, ?, ?)`,
			[]any{2, "portrait of a fox", "default.json", `corrupt{{not json`}},
		{`INSERT INTO prompts (id, text, workflow_name, tags) VALUES (?, ?, NULL, NULL)`,
			[]any{3, "untagged landscape"}},
		// Duplicate (prompt_id, filename) pair; the later link must win.
		{`INSERT INTO generated_images (id, prompt_id, image_path, filename) VALUES (?, ?, ?, ?)`,
			[]any{1, "1", "/old/castle.png", "castle.png"}},
		{`INSERT INTO generated_images (id, prompt_id, image_path, filename) VALUES (?, ?, ?, ?)`,
			[]any{2, "1", "/new/castle.png", "castle.png"}},
		{`INSERT INTO generated_images (id, prompt_id, image_path, filename) VALUES (?, ?, ?, ?)`,
			[]any{3, "2", "/out/fox.png", "fox.png"}},
	}
	for _, ins := range inserts {
		if _, err := db.Exec(ins.query, ins.args...); err != nil {
			t.Fatalf("seed legacy data: %v", err)
		}
	}
	return path
}

func TestLegacyDatabaseMigration(t *testing.T) {
	path := newLegacyDatabase(t)
	store := newTestStore(t, path)
	ctx := context.Background()

	// Hash backfill normalizes before hashing, so the padded mixed-case
	// legacy text is findable by its canonical hash.
	p, err := store.GetPromptByHash(ctx, types.HashText("a castle at dawn"))
	if err != nil {
		t.Fatalf("GetPromptByHash after migration: %v", err)
	}
	if p.ID != 1 {
		t.Errorf("prompt id = %d, want 1", p.ID)
	}
	if got := joinSets(p.Tags); got != "castle, fantasy" {
		t.Errorf("migrated tags = %q, want %q", got, "castle, fantasy")
	}

	// workflow_name is gone; modern columns exist and updated_at mirrors
	// created_at for migrated rows.
	var hasWorkflowName bool
	err = store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0 FROM pragma_table_info('prompts') WHERE name = 'workflow_name'
	`).Scan(&hasWorkflowName)
	if err != nil {
		t.Fatalf("inspect prompts columns: %v", err)
	}
	if hasWorkflowName {
		t.Error("workflow_name column survived the migration")
	}
	if p.UpdatedAt.IsZero() {
		t.Error("updated_at was not backfilled")
	}

	// Corrupt tag JSON is skipped, not fatal; the prompt itself survives.
	fox, err := store.GetPrompt(ctx, 2)
	if err != nil {
		t.Fatalf("GetPrompt(2): %v", err)
	}
	if len(fox.Tags) != 0 {
		t.Errorf("prompt with corrupt legacy tags got tags %v", fox.Tags)
	}

	// Duplicate image links collapse to the most recent row, and prompt_id
	// comes out as a usable integer key.
	images, err := store.ImagesForPrompt(ctx, 1)
	if err != nil {
		t.Fatalf("ImagesForPrompt: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("got %d images for prompt 1 after dedup, want 1", len(images))
	}
	if images[0].ImagePath != "/new/castle.png" {
		t.Errorf("kept image path = %q, want the most recent link", images[0].ImagePath)
	}

	// The migrated database accepts modern writes, including the upsert
	// that depends on the new unique constraint.
	if _, err := store.LinkImage(ctx, &types.GeneratedImage{PromptID: 1, ImagePath: "/newer/castle.png", Filename: "castle.png"}); err != nil {
		t.Fatalf("LinkImage on migrated db: %v", err)
	}
	images, err = store.ImagesForPrompt(ctx, 1)
	if err != nil {
		t.Fatalf("ImagesForPrompt: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("upsert created a duplicate on migrated db: %d rows", len(images))
	}
}

func TestLegacyMigrationIsIdempotent(t *testing.T) {
	path := newLegacyDatabase(t)

	open := func() *Store {
		store, err := New(context.Background(), path)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return store
	}
	dumpSchema := func(store *Store) string {
		rows, err := store.db.Query(`
			SELECT type || '|' || name || '|' || COALESCE(sql, '')
			FROM sqlite_master
			WHERE name NOT LIKE 'sqlite_%'
			ORDER BY type, name
		`)
		if err != nil {
			t.Fatalf("dump schema: %v", err)
		}
		defer func() { _ = rows.Close() }()
		var out string
		for rows.Next() {
			var line string
			if err := rows.Scan(&line); err != nil {
				t.Fatalf("scan schema row: %v", err)
			}
			out += line + "\n"
		}
		return out
	}
	countRows := func(store *Store, table string) int {
		var n int
		if err := store.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		return n
	}

	store := open()
	first := dumpSchema(store)
	firstTags := countRows(store, "prompt_tags")
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Opening again re-runs the full migration sequence; every step's guard
	// must recognize its work and leave schema and data untouched.
	store = open()
	defer func() { _ = store.Close() }()
	if second := dumpSchema(store); second != first {
		t.Errorf("schema changed on second migration run:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
	if n := countRows(store, "prompt_tags"); n != firstTags {
		t.Errorf("prompt_tags rows changed on second run: %d -> %d", firstTags, n)
	}
}

func TestImagePromptIDTypeMigration(t *testing.T) {
	// A mid-vintage database: unique constraint already present, but
	// prompt_id still TEXT. The type-fix rebuild must cast ids and drop
	// rows whose cast does not resolve to an existing prompt.
	path := filepath.Join(t.TempDir(), "midvintage.db")
	db, err := sql.Open("sqlite3", connString(path))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	stmts := []string{
		`CREATE TABLE prompts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE generated_images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prompt_id TEXT NOT NULL,
			image_path TEXT NOT NULL,
			filename TEXT NOT NULL,
			UNIQUE (prompt_id, filename)
		)`,
		`INSERT INTO prompts (id, text) VALUES (1, 'kept prompt')`,
		`INSERT INTO generated_images (prompt_id, image_path, filename) VALUES ('1', '/out/kept.png', 'kept.png')`,
		`INSERT INTO generated_images (prompt_id, image_path, filename) VALUES ('999', '/out/ghost.png', 'ghost.png')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("build fixture: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}

	store := newTestStore(t, path)
	ctx := context.Background()

	var typ string
	err = store.db.QueryRowContext(ctx, `
		SELECT type FROM pragma_table_info('generated_images') WHERE name = 'prompt_id'
	`).Scan(&typ)
	if err != nil {
		t.Fatalf("inspect prompt_id type: %v", err)
	}
	if typ != "INTEGER" {
		t.Errorf("prompt_id type = %q, want INTEGER", typ)
	}

	images, err := store.ImagesForPrompt(ctx, 1)
	if err != nil {
		t.Fatalf("ImagesForPrompt: %v", err)
	}
	if len(images) != 1 || images[0].Filename != "kept.png" {
		t.Errorf("images for prompt 1 = %+v, want only kept.png", images)
	}

	var orphans int
	err = store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generated_images WHERE prompt_id = 999`).Scan(&orphans)
	if err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	if orphans != 0 {
		t.Errorf("%d orphaned image rows survived the type migration", orphans)
	}
}
