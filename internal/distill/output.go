package distill

import (
	"encoding/json"
	"fmt"
	"os"

	"review-rag/internal/domain"
)

// WriteGuidelines writes guidelines as a single JSON array to path
// (spec.md §6: "Guideline file format. A JSON array of objects...").
func WriteGuidelines(path string, guidelines []domain.Guideline) error {
	if guidelines == nil {
		guidelines = []domain.Guideline{}
	}
	data, err := json.MarshalIndent(guidelines, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal guidelines: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write guideline file %s: %w", path, err)
	}
	return nil
}
