// Package keyword provides exact-term lookup over indexed chunk texts.
package keyword

import (
	"context"

	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/internal/vector"
)

// Index is a full-text index over the chunks of the published vector snapshot.
// It complements vector search for literal terms such as function names or symbols.
type Index interface {
	// Rebuild replaces the index contents with entries.
	Rebuild(ctx context.Context, entries []vector.Entry) error
	// Lookup returns chunks containing term (a word or phrase), best match first.
	// A non-empty book restricts hits to that book id or book code.
	Lookup(ctx context.Context, term, book string, limit int) ([]*models.LookupHit, error)
	// DocCount returns the number of indexed chunks.
	DocCount() (uint64, error)
	Close() error
}
