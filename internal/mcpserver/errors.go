// Package mcpserver exposes the retrieval core to AI agents over the Model Context
// Protocol: reference queries, concept lookups and index statistics as tools, and
// the book catalog as resources.
package mcpserver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/bookref/internal/models"
)

// ErrMissingRetriever is returned when no retriever is provided.
var ErrMissingRetriever = errors.New("mcpserver: retriever is required")

// toolError rewrites a domain error into a message an agent can act on.
func toolError(err error) error {
	var pe *models.ParamError
	var uc *models.UnknownConceptError
	switch {
	case errors.As(err, &pe):
		return fmt.Errorf("invalid %s: %s", pe.Field, pe.Reason)
	case errors.As(err, &uc):
		if len(uc.Suggestions) > 0 {
			return fmt.Errorf("unknown concept %q, did you mean: %s", uc.Name, strings.Join(uc.Suggestions, ", "))
		}
		return fmt.Errorf("unknown concept %q, call list_concepts for the known names", uc.Name)
	case errors.Is(err, models.ErrVersionMismatch):
		return fmt.Errorf("%w; run ingest --force-rebuild", err)
	case errors.Is(err, models.ErrBuildInProgress):
		return fmt.Errorf("%w; retry when the current ingest finishes", err)
	}
	return err
}
