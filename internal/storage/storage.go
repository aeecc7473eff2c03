// Package storage persists the corpus: discovered books and their extracted pages.
package storage

import (
	"context"

	"github.com/hyperjump/bookref/internal/models"
)

// Storage defines book and page persistence operations.
type Storage interface {
	// ReplaceBook stores book and its pages, discarding any previous pages for the same id.
	ReplaceBook(ctx context.Context, book *models.Book, pages []models.Page, fingerprint string) error
	GetBook(ctx context.Context, id string) (*models.Book, error)
	ListBooks(ctx context.Context) ([]*models.Book, error)
	DeleteBook(ctx context.Context, id string) error

	GetPages(ctx context.Context, bookID string) ([]models.Page, error)
	GetPage(ctx context.Context, bookID string, number int) (*models.Page, error)

	// Fingerprints maps book id to the fingerprint recorded at its last ReplaceBook.
	Fingerprints(ctx context.Context) (map[string]string, error)

	CountBooks(ctx context.Context) (int64, error)
	CountPages(ctx context.Context) (int64, error)

	Close() error
}
