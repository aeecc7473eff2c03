// Package fileid derives stable book identifiers and change fingerprints from files.
package fileid

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Slug returns a stable, URL-safe book id for the file at path: the lowercased
// file stem with accents removed and runs of other characters collapsed to "-".
// Same filename always yields the same id, regardless of directory.
func Slug(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	dash := false
	for _, r := range norm.NFD.String(stem) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
			dash = false
		default:
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "book"
	}
	return s
}

// Fingerprint summarizes a file's size and modification time. A changed fingerprint
// means the book must be re-extracted.
func Fingerprint(size int64, modTime time.Time) string {
	return fmt.Sprintf("%d:%d", size, modTime.UTC().UnixNano())
}
