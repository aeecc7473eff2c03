// Package vector provides the flat inner-product index over chunk embeddings.
package vector

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/bookref/internal/models"
)

// Entry is the payload stored alongside each vector. It carries enough of the chunk
// to format a result without touching the corpus store.
type Entry struct {
	Key       string `json:"key"`
	BookID    string `json:"book_id"`
	BookCode  string `json:"book_code"`
	BookTitle string `json:"book_title"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
	Text      string `json:"text"`
}

// EntryFromChunk copies the payload fields of c.
func EntryFromChunk(c *models.Chunk) Entry {
	return Entry{
		Key:       c.Key(),
		BookID:    c.BookID,
		BookCode:  c.BookCode,
		BookTitle: c.BookTitle,
		PageStart: c.PageStart,
		PageEnd:   c.PageEnd,
		CharStart: c.CharStart,
		CharEnd:   c.CharEnd,
		Text:      c.Text,
	}
}

// SearchResult is a single vector search hit. Score is the inner product of unit
// vectors, so it lies in [-1, 1].
type SearchResult struct {
	ChunkKey string
	BookID   string
	Score    float64
	Rank     int
	Entry    *Entry
}

// Snapshot is one published generation of the index. It is never modified after
// publication; Add builds a new snapshot and swaps it in.
type Snapshot struct {
	Version   string
	Dimension int
	BuildID   uuid.UUID
	BuiltAt   time.Time
	Entries   []Entry
	// vectors holds len(Entries) rows of Dimension floats, row-major.
	vectors []float32
}

func emptySnapshot(version string, dim int) *Snapshot {
	return &Snapshot{Version: version, Dimension: dim}
}

// Len returns the number of indexed chunks.
func (s *Snapshot) Len() int {
	return len(s.Entries)
}

// Vector returns row i. The slice aliases the snapshot and must not be modified.
func (s *Snapshot) Vector(i int) []float32 {
	return s.vectors[i*s.Dimension : (i+1)*s.Dimension]
}

// Empty reports whether the snapshot has never been built.
func (s *Snapshot) Empty() bool {
	return s.BuildID == uuid.Nil
}

// BookCount is the number of chunks indexed for one book.
type BookCount struct {
	BookID string
	Title  string
	Chunks int
}

// Stats describes a snapshot.
type Stats struct {
	Chunks    int
	Dimension int
	Version   string
	BuildID   string
	BuiltAt   *time.Time
	Books     []BookCount
}

// Stats summarizes the snapshot, with per-book counts ordered by book id.
func (s *Snapshot) Stats() Stats {
	st := Stats{
		Chunks:    s.Len(),
		Dimension: s.Dimension,
		Version:   s.Version,
	}
	if !s.Empty() {
		st.BuildID = s.BuildID.String()
		t := s.BuiltAt
		st.BuiltAt = &t
	}
	byBook := make(map[string]*BookCount)
	for i := range s.Entries {
		e := &s.Entries[i]
		bc, ok := byBook[e.BookID]
		if !ok {
			bc = &BookCount{BookID: e.BookID, Title: e.BookTitle}
			byBook[e.BookID] = bc
		}
		bc.Chunks++
	}
	st.Books = make([]BookCount, 0, len(byBook))
	for _, bc := range byBook {
		st.Books = append(st.Books, *bc)
	}
	sort.Slice(st.Books, func(i, j int) bool { return st.Books[i].BookID < st.Books[j].BookID })
	return st
}
