package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/bookref/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testBook(id string) *models.Book {
	return &models.Book{
		ID:          id,
		Title:       "Title " + id,
		Author:      "Author",
		Code:        "unknown",
		SourcePath:  "/books/" + id + ".pdf",
		PageCount:   2,
		FileSize:    1234,
		FileModTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteStorage_ReplaceBook(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	book := testBook("b1")
	pages := []models.Page{{Number: 1, Text: "first"}, {Number: 2, Text: "second"}}
	if err := store.ReplaceBook(ctx, book, pages, "fp1"); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetBook(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Title b1" || got.PageCount != 2 || !got.FileModTime.Equal(book.FileModTime) {
		t.Errorf("got %+v", got)
	}

	gotPages, err := store.GetPages(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if len(gotPages) != 2 || gotPages[1].Text != "second" {
		t.Errorf("pages: %+v", gotPages)
	}

	// Replace with fewer pages drops the old ones.
	book.PageCount = 1
	if err := store.ReplaceBook(ctx, book, []models.Page{{Number: 1, Text: "only"}}, "fp2"); err != nil {
		t.Fatal(err)
	}
	n, err := store.CountPages(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pages after replace: got %d, want 1", n)
	}
	fps, err := store.Fingerprints(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fps["b1"] != "fp2" {
		t.Errorf("fingerprint: got %q", fps["b1"])
	}
}

func TestSQLiteStorage_GetPage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.ReplaceBook(ctx, testBook("b1"), []models.Page{{Number: 1, Text: "p1"}}, "fp"); err != nil {
		t.Fatal(err)
	}
	p, err := store.GetPage(ctx, "b1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if p.Text != "p1" {
		t.Errorf("got %q", p.Text)
	}
	if _, err := store.GetPage(ctx, "b1", 9); !errors.Is(err, models.ErrBookNotFound) {
		t.Errorf("missing page: got %v", err)
	}
}

func TestSQLiteStorage_ListAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"zeta", "alpha"} {
		if err := store.ReplaceBook(ctx, testBook(id), []models.Page{{Number: 1, Text: id}}, "fp"); err != nil {
			t.Fatal(err)
		}
	}
	books, err := store.ListBooks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 2 || books[0].ID != "alpha" {
		t.Errorf("ListBooks order: %+v", books)
	}

	if err := store.DeleteBook(ctx, "alpha"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetBook(ctx, "alpha"); !errors.Is(err, models.ErrBookNotFound) {
		t.Errorf("deleted book: got %v", err)
	}
	pages, err := store.GetPages(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 0 {
		t.Errorf("pages should cascade on delete, got %d", len(pages))
	}
	count, _ := store.CountBooks(ctx)
	if count != 1 {
		t.Errorf("CountBooks: got %d", count)
	}
}
