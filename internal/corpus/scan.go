// Package corpus discovers reference books in a directory tree.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/hyperjump/bookref/internal/config"
	"github.com/hyperjump/bookref/internal/fileid"
	"github.com/hyperjump/bookref/internal/models"
)

// Scan walks dir recursively and returns one Book per regular file whose extension is
// in exts (all files when exts is empty). Books come back in lexical path order.
// Two files with the same slug get "-2", "-3", ... suffixes in that order.
// PageCount is left zero; it is known only after extraction.
func Scan(dir string, exts []string, tables *config.Tables) ([]*models.Book, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	var books []*models.Book
	seen := make(map[string]int)
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !ExtensionAllowed(filepath.Ext(path), exts) {
			return nil
		}
		// Resolve symlinks so only regular files become books.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		book := describe(path, tables)
		book.FileSize = finfo.Size()
		book.FileModTime = finfo.ModTime()
		seen[book.ID]++
		if n := seen[book.ID]; n > 1 {
			book.ID = book.ID + "-" + strconv.Itoa(n)
		}
		books = append(books, book)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return books, nil
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and the leading dot.
// An empty allowed list accepts everything.
func ExtensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// describe fills the identity fields of a book from its filename.
func describe(path string, tables *config.Tables) *models.Book {
	book := &models.Book{
		ID:         fileid.Slug(path),
		SourcePath: path,
		Code:       config.UnknownBookCode,
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if tables != nil {
		if p := tables.MatchFilename(filepath.Base(path)); p != nil {
			book.Code = p.Code
			book.Title = p.Title
			book.Author = p.Author
			return book
		}
	}
	if author, title, ok := strings.Cut(stem, " - "); ok && strings.TrimSpace(title) != "" {
		book.Author = humanize(author)
		book.Title = humanize(title)
		return book
	}
	book.Title = humanize(stem)
	return book
}

// humanize turns "digital_image-processing" into "Digital Image Processing".
func humanize(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}
