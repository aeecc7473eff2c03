package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/bookref/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT,
		code TEXT NOT NULL,
		source_path TEXT NOT NULL,
		page_count INTEGER NOT NULL,
		file_size INTEGER NOT NULL,
		file_mod_time TIMESTAMP NOT NULL,
		fingerprint TEXT NOT NULL,
		ingested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_books_code ON books(code);

	CREATE TABLE IF NOT EXISTS pages (
		book_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (book_id, number),
		FOREIGN KEY (book_id) REFERENCES books(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceBook upserts the book row and rewrites its pages in one transaction.
func (s *SQLiteStorage) ReplaceBook(ctx context.Context, book *models.Book, pages []models.Page, fingerprint string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE book_id = ?`, book.ID); err != nil {
		return fmt.Errorf("failed to delete pages: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO books (id, title, author, code, source_path, page_count, file_size, file_mod_time, fingerprint, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title, author = excluded.author, code = excluded.code,
		   source_path = excluded.source_path, page_count = excluded.page_count,
		   file_size = excluded.file_size, file_mod_time = excluded.file_mod_time,
		   fingerprint = excluded.fingerprint, ingested_at = excluded.ingested_at`,
		book.ID, book.Title, book.Author, book.Code, book.SourcePath, book.PageCount,
		book.FileSize, book.FileModTime, fingerprint,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert book: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pages (book_id, number, text) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range pages {
		if _, err := stmt.ExecContext(ctx, book.ID, p.Number, p.Text); err != nil {
			return fmt.Errorf("failed to insert page %d: %w", p.Number, err)
		}
	}
	return tx.Commit()
}

const bookColumns = `id, title, author, code, source_path, page_count, file_size, file_mod_time`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(r rowScanner) (*models.Book, error) {
	var b models.Book
	var author sql.NullString
	if err := r.Scan(&b.ID, &b.Title, &author, &b.Code, &b.SourcePath, &b.PageCount, &b.FileSize, &b.FileModTime); err != nil {
		return nil, err
	}
	b.Author = author.String
	return &b, nil
}

// GetBook returns a book by id, or models.ErrBookNotFound.
func (s *SQLiteStorage) GetBook(ctx context.Context, id string) (*models.Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrBookNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBooks returns all books ordered by id.
func (s *SQLiteStorage) ListBooks(ctx context.Context) ([]*models.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*models.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// DeleteBook removes a book and its pages.
func (s *SQLiteStorage) DeleteBook(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	return err
}

// GetPages returns all pages of a book ordered by number.
func (s *SQLiteStorage) GetPages(ctx context.Context, bookID string) ([]models.Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, text FROM pages WHERE book_id = ? ORDER BY number`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []models.Page
	for rows.Next() {
		var p models.Page
		if err := rows.Scan(&p.Number, &p.Text); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// GetPage returns one page. A missing book or page number yields models.ErrBookNotFound.
func (s *SQLiteStorage) GetPage(ctx context.Context, bookID string, number int) (*models.Page, error) {
	var p models.Page
	err := s.db.QueryRowContext(ctx,
		`SELECT number, text FROM pages WHERE book_id = ? AND number = ?`, bookID, number,
	).Scan(&p.Number, &p.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s page %d", models.ErrBookNotFound, bookID, number)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Fingerprints returns the stored fingerprint of every book.
func (s *SQLiteStorage) Fingerprints(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, fingerprint FROM books`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, fp string
		if err := rows.Scan(&id, &fp); err != nil {
			return nil, err
		}
		out[id] = fp
	}
	return out, rows.Err()
}

// CountBooks returns the total number of books.
func (s *SQLiteStorage) CountBooks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count)
	return count, err
}

// CountPages returns the total number of stored pages.
func (s *SQLiteStorage) CountPages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
