// Package types defines core data structures for the promptvault store.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// MaxPromptLength is the ceiling on stored prompt text. Longer submissions
// are rejected before touching storage.
const MaxPromptLength = 10000

// Prompt represents a stored text submission with metadata.
type Prompt struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Hash      string    `json:"-"` // Internal: SHA256 of normalized text, used for dedup - NOT exported
	Category  string    `json:"category,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Rating    *int      `json:"rating,omitempty"` // 1-5; nil means unrated
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Tags      []string  `json:"tags,omitempty"` // Resolved from the junction table on read
}

// NormalizeText canonicalizes prompt text for deduplication: trim + lowercase.
// Stored text keeps its original casing; only the fingerprint is normalized.
func NormalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// HashText computes the deduplication fingerprint of prompt text.
// Invariant: HashText(t) == HashText(NormalizeText(t)) for all t.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// ComputeHash fills in the Hash field from the prompt's text.
func (p *Prompt) ComputeHash() {
	p.Hash = HashText(p.Text)
}

// Validate checks that the prompt has valid field values.
func (p *Prompt) Validate() error {
	if strings.TrimSpace(p.Text) == "" {
		return &ValidationError{Field: "text", Reason: "text is required"}
	}
	if len(p.Text) > MaxPromptLength {
		return &ValidationError{Field: "text", Reason: fmt.Sprintf("text must be %d characters or less (got %d)", MaxPromptLength, len(p.Text))}
	}
	if p.Rating != nil {
		if err := ValidateRating(*p.Rating); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRating checks a rating value against the 1..5 range.
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return &ValidationError{Field: "rating", Reason: fmt.Sprintf("rating must be between 1 and 5 (got %d)", rating)}
	}
	return nil
}

// PromptFilter narrows a prompt search. Zero-valued fields don't constrain.
// All supplied filters combine with AND; tag filters require every listed
// tag to be present on a matching prompt.
type PromptFilter struct {
	TextContains  string     // case-insensitive substring on text
	Category      string     // exact match
	Tags          []string   // AND semantics
	RatingMin     *int       // inclusive
	RatingMax     *int       // inclusive
	CreatedAfter  *time.Time // inclusive
	CreatedBefore *time.Time // inclusive
	Limit         int        // 0 means no limit
	Offset        int
}

// UpdatePromptParams is a partial update: nil fields are left untouched.
type UpdatePromptParams struct {
	Text     *string
	Category *string
	Notes    *string
	Rating   *int
	Tags     *[]string
}

// IsZero reports whether the update would change nothing.
func (u UpdatePromptParams) IsZero() bool {
	return u.Text == nil && u.Category == nil && u.Notes == nil && u.Rating == nil && u.Tags == nil
}

// Validate checks the supplied fields of a partial update.
func (u UpdatePromptParams) Validate() error {
	if u.Text != nil {
		if strings.TrimSpace(*u.Text) == "" {
			return &ValidationError{Field: "text", Reason: "text cannot be updated to empty"}
		}
		if len(*u.Text) > MaxPromptLength {
			return &ValidationError{Field: "text", Reason: fmt.Sprintf("text must be %d characters or less (got %d)", MaxPromptLength, len(*u.Text))}
		}
	}
	if u.Rating != nil {
		if err := ValidateRating(*u.Rating); err != nil {
			return err
		}
	}
	return nil
}

// ValidationError marks caller-correctable input problems, distinct from
// storage failures.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
