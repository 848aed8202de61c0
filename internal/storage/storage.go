// Package storage provides shared types for the prompt store.
//
// The concrete implementation lives in the sqlite sub-package. This package
// holds interface and value types referenced by both the implementation and
// its consumers (cmd/pv, the watcher, the exporter).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/promptvault/promptvault/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist in the database.
var ErrNotFound = errors.New("not found")

// ErrBusy is returned when the database is locked by another writer and the
// busy timeout elapsed. Callers should treat it as retryable.
var ErrBusy = errors.New("database busy")

// Statistics summarizes the store for diagnostics.
type Statistics struct {
	TotalPrompts       int      `json:"total_prompts"`
	TotalImages        int      `json:"total_images"`
	DistinctCategories int      `json:"distinct_categories"`
	DistinctTags       int      `json:"distinct_tags"`
	AverageRating      *float64 `json:"average_rating,omitempty"` // nil when nothing is rated
	DatabaseSizeBytes  int64    `json:"database_size_bytes"`
}

// ConsistencyReport lists detected integrity problems. Issues is bounded;
// TotalIssues carries the full count when the list was truncated.
type ConsistencyReport struct {
	Issues      []string `json:"issues"`
	TotalIssues int      `json:"total_issues"`
}

// TagSort orders tag listings.
type TagSort string

const (
	TagSortName  TagSort = "name"
	TagSortCount TagSort = "count"
)

// TagListOptions narrows and pages a tag-with-counts listing.
type TagListOptions struct {
	Search string // substring filter on tag name
	Sort   TagSort
	Limit  int
	Offset int
}

// Storage is the interface satisfied by *sqlite.Store.
// Consumers depend on this interface rather than on the concrete type so
// that alternative implementations (mocks, proxies) can be substituted.
type Storage interface {
	// Prompts
	SavePrompt(ctx context.Context, prompt *types.Prompt) (int64, error)
	GetPrompt(ctx context.Context, id int64) (*types.Prompt, error)
	GetPromptByHash(ctx context.Context, hash string) (*types.Prompt, error)
	SearchPrompts(ctx context.Context, filter types.PromptFilter) ([]*types.Prompt, error)
	RecentPrompts(ctx context.Context, limit int) ([]*types.Prompt, error)
	PromptsByCategory(ctx context.Context, category string, limit int) ([]*types.Prompt, error)
	TopRatedPrompts(ctx context.Context, limit int) ([]*types.Prompt, error)
	UpdatePrompt(ctx context.Context, id int64, params types.UpdatePromptParams) (bool, error)
	DeletePrompt(ctx context.Context, id int64) (bool, error)
	CleanupDuplicatePrompts(ctx context.Context) (int, error)

	// Tags
	ListTags(ctx context.Context) ([]types.Tag, error)
	ListTagCounts(ctx context.Context, opts TagListOptions) ([]types.TagCount, error)
	SetPromptTags(ctx context.Context, promptID int64, tags []string) error
	RenameTag(ctx context.Context, oldName, newName string) (types.TagMutationResult, error)
	DeleteTag(ctx context.Context, name string) (types.TagMutationResult, error)
	MergeTags(ctx context.Context, sources []string, target string) (types.TagMutationResult, error)
	UntaggedPrompts(ctx context.Context, limit, offset int) ([]*types.Prompt, error)

	// Images
	LinkImage(ctx context.Context, img *types.GeneratedImage) (int64, error)
	ImagesForPrompt(ctx context.Context, promptID int64) ([]*types.GeneratedImage, error)
	RecentImages(ctx context.Context, limit int, withPromptText bool) ([]*types.GeneratedImage, error)
	SearchImages(ctx context.Context, promptText string, limit int) ([]*types.GeneratedImage, error)
	GetImage(ctx context.Context, id int64) (*types.GeneratedImage, error)
	DeleteImage(ctx context.Context, id int64) (bool, error)
	CleanupMissingFiles(ctx context.Context) (int, error)

	// Maintenance
	GetStatistics(ctx context.Context) (*Statistics, error)
	CheckConsistency(ctx context.Context) (*ConsistencyReport, error)
	Backup(ctx context.Context, destPath string) error
	Restore(ctx context.Context, uploadedPath string) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Path() string
	Close() error
}

// BackupName derives a timestamp-suffixed backup filename from a base path.
// The store itself only guarantees a faithful copy; naming is a caller
// convention.
func BackupName(base string, now time.Time) string {
	return base + "." + now.UTC().Format("20060102-150405") + ".bak"
}
