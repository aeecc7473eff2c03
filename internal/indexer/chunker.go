// Package indexer turns book pages into chunks and ingests a corpus into the index.
package indexer

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/pkg/utils"
)

// Chunker splits a book's cleaned text into overlapping windows of bytes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	minChunkSize int
}

// NewChunker creates a chunker. Sizes are in bytes of cleaned text; the caller
// guarantees 0 <= overlap < size and 0 < min <= size (config.Validate does).
func NewChunker(chunkSize, chunkOverlap, minChunkSize int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		minChunkSize: minChunkSize,
	}
}

// pageSpan records that bytes [start, end) of the stream came from page.
type pageSpan struct {
	start, end int
	page       int
}

// stream is a book's cleaned pages joined by single spaces.
type stream struct {
	text  string
	spans []pageSpan
}

func buildStream(pages []models.Page) stream {
	var b strings.Builder
	var spans []pageSpan
	for _, p := range pages {
		cleaned := Clean(p.Text)
		if cleaned == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		start := b.Len()
		b.WriteString(cleaned)
		spans = append(spans, pageSpan{start: start, end: b.Len(), page: p.Number})
	}
	return stream{text: b.String(), spans: spans}
}

// pageAt returns the page of the byte at off. Separator bytes belong to the preceding page.
func (s stream) pageAt(off int) int {
	page := 0
	for _, sp := range s.spans {
		if sp.start > off {
			break
		}
		page = sp.page
	}
	return page
}

// Chunk cleans and concatenates pages, then slides a window over the result.
// A window that would end mid-text is pulled back to just after the last sentence
// terminator in its final overlap bytes; the next window then starts there instead
// of overlapping. The pull-back is skipped when the text left after it would be
// shorter than the minimum chunk size. Returns an *models.IngestionFailure when the cleaned text is
// shorter than the minimum chunk size.
func (c *Chunker) Chunk(book *models.Book, pages []models.Page) ([]*models.Chunk, error) {
	st := buildStream(pages)
	text := st.text
	n := len(text)
	if n == 0 || n < c.minChunkSize {
		return nil, &models.IngestionFailure{
			BookID: book.ID,
			Reason: "no extractable text (scanned or empty book?)",
		}
	}

	var chunks []*models.Chunk
	for s := 0; s < n; {
		e := len(utils.RuneBoundary(text, s+c.chunkSize))
		if e <= s {
			_, size := utf8.DecodeRuneInString(text[s:])
			e = s + size
		}
		trimmed := false
		if e < n {
			lo := e - c.chunkOverlap
			if lo < s {
				lo = s
			}
			if i := lastSentenceEnd(text[lo:e]); i >= 0 && n-(lo+i) >= c.minChunkSize {
				e = lo + i
				trimmed = true
			}
		}

		last := e >= n
		body := strings.TrimSpace(text[s:e])
		if body != "" && (len(body) >= c.minChunkSize || last) {
			firstByte := s + strings.IndexFunc(text[s:e], func(r rune) bool { return r != ' ' })
			chunks = append(chunks, &models.Chunk{
				ID:        len(chunks),
				BookID:    book.ID,
				BookCode:  book.Code,
				BookTitle: book.Title,
				Text:      body,
				PageStart: st.pageAt(firstByte),
				PageEnd:   st.pageAt(e - 1),
				CharStart: s,
				CharEnd:   e,
			})
		}
		if last {
			break
		}

		next := e
		if !trimmed {
			next = runeStartFrom(text, e-c.chunkOverlap)
		}
		if next <= s {
			next = e
		}
		s = next
	}
	return chunks, nil
}

// runeStartFrom returns the first rune boundary at or after i.
func runeStartFrom(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// lastSentenceEnd returns the offset just past the last ". ", "! " or "? " in s
// (so the separating space stays with the earlier chunk), or -1.
func lastSentenceEnd(s string) int {
	best := -1
	for _, t := range []string{". ", "! ", "? "} {
		if i := strings.LastIndex(s, t); i >= 0 && i+len(t) > best {
			best = i + len(t)
		}
	}
	return best
}
