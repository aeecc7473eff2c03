package search

import (
	"fmt"
	"math"

	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/internal/vector"
	"github.com/hyperjump/bookref/pkg/utils"
)

// Source formats the citation of a passage: "<title>, página N" for a single
// page, "<title>, páginas A-B" for a span.
func Source(title string, pageStart, pageEnd int) string {
	if pageEnd <= pageStart {
		return fmt.Sprintf("%s, página %d", title, pageStart)
	}
	return fmt.Sprintf("%s, páginas %d-%d", title, pageStart, pageEnd)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// formatPassages turns search hits into passages, renumbering ranks from 1 and
// truncating text to maxChars.
func formatPassages(hits []*vector.SearchResult, maxChars int) []*models.Passage {
	out := make([]*models.Passage, 0, len(hits))
	for i, h := range hits {
		e := h.Entry
		title := e.BookTitle
		if title == "" {
			title = e.BookID
		}
		out = append(out, &models.Passage{
			Rank:      i + 1,
			ChunkID:   h.ChunkKey,
			Text:      utils.TruncateAtWord(e.Text, maxChars),
			Book:      title,
			BookID:    e.BookID,
			PageStart: e.PageStart,
			PageEnd:   e.PageEnd,
			Score:     round(h.Score, 3),
			Source:    Source(title, e.PageStart, e.PageEnd),
		})
	}
	return out
}
