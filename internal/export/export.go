// Package export serializes prompt collections for backup and interchange.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/promptvault/promptvault/internal/types"
)

// Document is the JSON export envelope. Count always matches len(Prompts)
// so consumers can detect truncated files.
type Document struct {
	ExportedAt time.Time       `json:"exported_at"`
	Count      int             `json:"count"`
	Prompts    []*types.Prompt `json:"prompts"`
}

// WriteJSON writes prompts as a single indented JSON document. Tags must
// already be resolved on the prompts; the exporter never touches storage.
func WriteJSON(w io.Writer, prompts []*types.Prompt) error {
	doc := Document{
		ExportedAt: time.Now().UTC(),
		Count:      len(prompts),
		Prompts:    prompts,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export document: %w", err)
	}
	return nil
}

var csvHeader = []string{"id", "text", "category", "notes", "rating", "tags", "created_at", "updated_at"}

// WriteCSV writes prompts as a flat CSV table with a header row. Multi-tag
// prompts get their tags joined with "," inside the single tags cell.
func WriteCSV(w io.Writer, prompts []*types.Prompt) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range prompts {
		rating := ""
		if p.Rating != nil {
			rating = strconv.Itoa(*p.Rating)
		}
		record := []string{
			strconv.FormatInt(p.ID, 10),
			p.Text,
			p.Category,
			p.Notes,
			rating,
			strings.Join(p.Tags, ","),
			p.CreatedAt.UTC().Format(time.RFC3339),
			p.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for prompt %d: %w", p.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}
