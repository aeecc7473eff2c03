package search

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/bookref/internal/config"
	"github.com/hyperjump/bookref/internal/models"
)

// ProcessRequest validates req and applies the top_k default and cap in place.
// Nothing is searched when it returns an error.
func ProcessRequest(req *models.RetrieveRequest, cfg *config.RetrievalConfig) error {
	req.Query = strings.TrimSpace(req.Query)
	req.BookFilter = strings.TrimSpace(req.BookFilter)
	if req.Query == "" {
		return &models.ParamError{Field: "query", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(req.Query); n > cfg.MaxQueryChars {
		return &models.ParamError{Field: "query", Reason: fmt.Sprintf("%d characters exceeds the limit of %d", n, cfg.MaxQueryChars)}
	}
	switch {
	case req.TopK < 0:
		return &models.ParamError{Field: "top_k", Reason: "must not be negative"}
	case req.TopK == 0:
		req.TopK = cfg.DefaultTopK
	case req.TopK > cfg.MaxTopK:
		req.TopK = cfg.MaxTopK
	}
	return nil
}
