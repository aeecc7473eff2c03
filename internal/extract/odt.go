package extract

import (
	"fmt"

	"github.com/lu4p/cat"

	"github.com/hyperjump/bookref/internal/models"
)

// extractDocument reads word processor formats (.odt, .rtf) as one logical page.
func extractDocument(path string) ([]models.Page, error) {
	text, err := cat.File(path)
	if err != nil {
		return nil, fmt.Errorf("extract document: %w", err)
	}
	return []models.Page{{Number: 1, Text: normalizeExtracted(text)}}, nil
}
