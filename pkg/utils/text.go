// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"strings"
	"unicode/utf8"
)

// Truncate returns s truncated to maxLen bytes, with "..." appended if truncated.
// The cut never splits a UTF-8 sequence. If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return RuneBoundary(s, maxLen) + "..."
}

// TruncateAtWord truncates s to at most maxLen bytes. When the last space of the cut
// lies beyond 80% of maxLen the cut moves back to that space. "..." is appended when
// anything was removed.
func TruncateAtWord(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := RuneBoundary(s, maxLen)
	if i := strings.LastIndexByte(cut, ' '); i > maxLen*8/10 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ") + "..."
}

// CapAtWord returns s limited to maxLen bytes, cut at the last space when one exists.
// Unlike TruncateAtWord it adds no ellipsis.
func CapAtWord(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := RuneBoundary(s, maxLen)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

// RuneBoundary returns the longest prefix of s of at most n bytes that ends on a rune boundary.
func RuneBoundary(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
