package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/bookref/internal/models"
)

// extractPlain splits content on form feeds into pages, validating UTF-8.
// Invalid UTF-8 sequences are replaced with the replacement character.
func extractPlain(content []byte) ([]models.Page, error) {
	s := string(content)
	if !utf8.Valid(content) {
		s = strings.ToValidUTF8(s, "\ufffd")
	}
	parts := strings.Split(s, "\f")
	pages := make([]models.Page, len(parts))
	for i, p := range parts {
		pages[i] = models.Page{Number: i + 1, Text: p}
	}
	return pages, nil
}
