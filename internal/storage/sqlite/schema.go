package sqlite

// Table creation runs before the migration sequence, index creation after:
// several indexes cover columns the migrations add to legacy tables.
const schemaTables = `
-- Prompts table
CREATE TABLE IF NOT EXISTS prompts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    text TEXT NOT NULL CHECK(length(text) <= 10000),
    hash TEXT NOT NULL UNIQUE,
    category TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    rating INTEGER CHECK(rating IS NULL OR (rating >= 1 AND rating <= 5)),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Generated images table (artifacts linked to the prompt that produced them)
CREATE TABLE IF NOT EXISTS generated_images (
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
);

-- Tag vocabulary table
CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

-- Prompt/tag junction table
CREATE TABLE IF NOT EXISTS prompt_tags (
    prompt_id INTEGER NOT NULL,
    tag_id INTEGER NOT NULL,
    PRIMARY KEY (prompt_id, tag_id),
    FOREIGN KEY (prompt_id) REFERENCES prompts(id) ON DELETE CASCADE,
    FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
);
`

const schemaIndexes = `
CREATE INDEX IF NOT EXISTS idx_prompts_text ON prompts(text);
CREATE INDEX IF NOT EXISTS idx_prompts_category ON prompts(category);
CREATE INDEX IF NOT EXISTS idx_prompts_created_at ON prompts(created_at);
CREATE INDEX IF NOT EXISTS idx_prompts_rating ON prompts(rating);
-- Note: hash uniqueness already creates an index; idx_prompts_hash kept for
-- databases that predate the UNIQUE constraint.
CREATE INDEX IF NOT EXISTS idx_prompts_hash ON prompts(hash);

CREATE INDEX IF NOT EXISTS idx_images_prompt_id ON generated_images(prompt_id);
CREATE INDEX IF NOT EXISTS idx_images_image_path ON generated_images(image_path);
CREATE INDEX IF NOT EXISTS idx_images_generation_time ON generated_images(generation_time);

CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name);

CREATE INDEX IF NOT EXISTS idx_prompt_tags_tag_id ON prompt_tags(tag_id);
`
