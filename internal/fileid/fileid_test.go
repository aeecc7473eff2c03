package fileid

import (
	"testing"
	"time"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/books/Gonzalez_Woods 4th Ed.pdf", "gonzalez-woods-4th-ed"},
		{"szeliski.pdf", "szeliski"},
		{"/x/Visão Computacional.txt", "visao-computacional"},
		{"/x/--weird__.md", "weird"},
		{"/x/???.pdf", "book"},
	}
	for _, tt := range tests {
		if got := Slug(tt.path); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSlug_independentOfDirectory(t *testing.T) {
	if Slug("/a/book.pdf") != Slug("/b/c/book.pdf") {
		t.Error("slug should depend only on the filename")
	}
}

func TestFingerprint(t *testing.T) {
	mt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	a := Fingerprint(100, mt)
	if a != Fingerprint(100, mt.In(time.FixedZone("x", 3600))) {
		t.Error("fingerprint should not depend on time zone")
	}
	if a == Fingerprint(101, mt) {
		t.Error("size change should change fingerprint")
	}
	if a == Fingerprint(100, mt.Add(time.Second)) {
		t.Error("mtime change should change fingerprint")
	}
}
