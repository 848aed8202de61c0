package types

import (
	"math"
	"time"
)

// GeneratedImage links a produced artifact (image or video) to the prompt
// that generated it.
type GeneratedImage struct {
	ID             int64          `json:"id"`
	PromptID       int64          `json:"prompt_id"`
	ImagePath      string         `json:"image_path"` // absolute path on disk
	Filename       string         `json:"filename"`
	GenerationTime time.Time      `json:"generation_time"`
	FileSize       int64          `json:"file_size,omitempty"`
	Width          int            `json:"width,omitempty"`
	Height         int            `json:"height,omitempty"`
	Format         string         `json:"format,omitempty"`
	WorkflowData   map[string]any `json:"workflow_data,omitempty"`
	PromptMetadata map[string]any `json:"prompt_metadata,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`

	// PromptText is populated on joined reads (gallery listings), not stored.
	PromptText string `json:"prompt_text,omitempty"`
}

// Tag is a named label in the shared vocabulary.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TagCount pairs a tag name with its prompt usage count.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TagMutationResult reports the outcome of a bulk tag operation.
// PromptsSkipped counts prompts whose legacy tag data could not be parsed.
type TagMutationResult struct {
	PromptsAffected int `json:"prompts_affected"`
	PromptsSkipped  int `json:"prompts_skipped"`
}

// SanitizeJSON normalizes a metadata blob for serialization: NaN and ±Inf
// floats become nil, recursively through nested maps and slices. The JSON
// encoder rejects non-finite floats outright, so this has to run before
// any metadata round-trips through json.Marshal.
func SanitizeJSON(v any) any {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = SanitizeJSON(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = SanitizeJSON(item)
		}
		return out
	default:
		return v
	}
}
