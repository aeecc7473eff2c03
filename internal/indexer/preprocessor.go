package indexer

import (
	"regexp"
	"strings"
	"unicode"
)

// minLineChars is the length below which a line is treated as page furniture,
// provided the page also has a longer line.
const minLineChars = 10

// headerFooter matches running heads, captions, and other lines that carry no body text.
var headerFooter = []*regexp.Regexp{
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`(?i)^chapter\s+\d+`),
	regexp.MustCompile(`^\d+\.\d+\s+[A-Z]`),
	regexp.MustCompile(`(?i)^figure\s+\d+`),
	regexp.MustCompile(`(?i)^table\s+\d+`),
	regexp.MustCompile(`^©.*\d{4}`),
}

// Clean normalizes the text of one page for chunking: line endings are unified,
// control characters other than newline and tab are removed, header and footer
// lines are dropped, and all whitespace runs collapse to a single space.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	lines := strings.Split(text, "\n")
	hasLong := false
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
		if len([]rune(lines[i])) >= minLineChars {
			hasLong = true
		}
	}

	kept := lines[:0]
	for _, line := range lines {
		if line == "" || isHeaderFooter(line) {
			continue
		}
		if hasLong && len([]rune(line)) < minLineChars {
			continue
		}
		kept = append(kept, line)
	}
	return Preprocess(strings.Join(kept, " "))
}

func isHeaderFooter(line string) bool {
	for _, re := range headerFooter {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Preprocess trims text and collapses whitespace runs to one space.
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
