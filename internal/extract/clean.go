package extract

import (
	"regexp"
	"strings"
)

// ligatures that PDF text layers commonly emit as single code points.
var ligatures = strings.NewReplacer(
	"ﬀ", "ff",
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"\u00ad", "",
	"\x00", "",
)

// hyphenBreak matches a word split across a line break by a hyphen.
var hyphenBreak = regexp.MustCompile(`(\p{Ll})-\n(\p{Ll})`)

// normalizeExtracted repairs extraction artifacts while keeping line structure,
// which the chunker's header and footer filter relies on.
func normalizeExtracted(s string) string {
	s = ligatures.Replace(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return hyphenBreak.ReplaceAllString(s, "$1$2")
}
