// Package extract provides per-page text extraction from book files.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/bookref/internal/models"
)

// ErrUnsupportedFormat is returned for extensions no extractor handles.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Extractor extracts page text from book files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractPages reads the book at path and returns its pages in order, numbered from 1.
// PDF pages map one to one. Plain text is split on form feeds. ODT and RTF books
// have no reliable page structure and come back as a single page.
// Pages whose text is empty are kept so page numbers stay aligned with the source.
func (e *Extractor) ExtractPages(path string) ([]models.Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".odt", ".rtf":
		return extractDocument(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractPagesBytes(content, ext)
}

// ExtractPagesBytes extracts pages from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractPagesBytes(content []byte, ext string) ([]models.Page, error) {
	var pages []models.Page
	var err error
	switch ext {
	case ".pdf":
		pages, err = extractPDF(content)
	case ".txt", ".md", ".rst", "":
		pages, err = extractPlain(content)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	for i := range pages {
		pages[i].Text = normalizeExtracted(pages[i].Text)
	}
	return pages, nil
}

// Supported reports whether ext (with leading dot) can be extracted.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".txt", ".md", ".rst", ".odt", ".rtf":
		return true
	}
	return false
}
