// Package models defines core data structures for books, chunks, retrieval requests, and reports.
package models

import (
	"fmt"
	"time"
)

// Book is a reference book discovered in the corpus directory.
type Book struct {
	ID          string    `json:"book_id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Author      string    `json:"author,omitempty" db:"author"`
	Code        string    `json:"code" db:"code"`
	SourcePath  string    `json:"source_path" db:"source_path"`
	PageCount   int       `json:"page_count" db:"page_count"`
	FileSize    int64     `json:"file_size" db:"file_size"`
	FileModTime time.Time `json:"file_mod_time" db:"file_mod_time"`
}

// Page is the extracted text of one 1-based page.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Chunk is a contiguous span of a book's cleaned text.
// CharStart and CharEnd are byte offsets into the concatenated cleaned pages.
type Chunk struct {
	ID        int    `json:"chunk_id"`
	BookID    string `json:"book_id"`
	BookCode  string `json:"book_code"`
	BookTitle string `json:"book_title"`
	Text      string `json:"text"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
}

// Key returns the globally unique chunk identifier "<book_id>#<id>".
// Keys sort in book order, then chunk order.
func (c *Chunk) Key() string {
	return ChunkKey(c.BookID, c.ID)
}

// ChunkKey formats a chunk key from its parts.
func ChunkKey(bookID string, id int) string {
	return fmt.Sprintf("%s#%06d", bookID, id)
}

// BookSummary is a catalog view of an ingested book.
type BookSummary struct {
	BookID    string `json:"book_id"`
	Code      string `json:"code"`
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	PageCount int    `json:"page_count"`
	Chunks    int    `json:"chunks"`
}
