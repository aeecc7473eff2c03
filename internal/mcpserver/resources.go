package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/pkg/utils"
)

const (
	uriScheme = "bookref://"

	mimeJSON     = "application/json"
	mimeMarkdown = "text/markdown"

	conceptExcerptChars = 500
)

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "books",
		Name:        "books",
		Description: "Catalog of the ingested reference books",
		MIMEType:    mimeJSON,
	}, s.handleBooksResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "stats",
		Name:        "stats",
		Description: "Statistics of the published vector index",
		MIMEType:    mimeJSON,
	}, s.handleStatsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "books/{id}",
		Name:        "book",
		Description: "One reference book, by id or code",
		MIMEType:    mimeJSON,
	}, s.handleBookResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "concepts/{name}",
		Name:        "concept",
		Description: "Reference passages for a known concept",
		MIMEType:    mimeMarkdown,
	}, s.handleConceptResource)
}

func (s *Server) handleBooksResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	books, err := s.retriever.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	if books == nil {
		books = []models.BookSummary{}
	}
	return jsonResult(req.Params.URI, books)
}

func (s *Server) handleStatsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	st, err := s.retriever.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	return jsonResult(req.Params.URI, st)
}

func (s *Server) handleBookResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	id := extractParam(req.Params.URI, "books/")
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	books, err := s.retriever.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	for _, b := range books {
		if b.BookID == id || strings.EqualFold(b.Code, id) {
			return jsonResult(req.Params.URI, b)
		}
	}
	return nil, mcp.ResourceNotFoundError(req.Params.URI)
}

func (s *Server) handleConceptResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	name := extractParam(req.Params.URI, "concepts/")
	if name == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	info, err := s.retriever.ConceptInfo(ctx, name)
	if errors.Is(err, models.ErrUnknownConcept) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, toolError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: mimeMarkdown,
			Text:     conceptMarkdown(info),
		}},
	}, nil
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: mimeJSON,
			Text:     string(data),
		}},
	}, nil
}

// extractParam returns the unescaped single path segment after bookref://<prefix>.
func extractParam(uri, prefix string) string {
	rest, ok := strings.CutPrefix(uri, uriScheme+prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	v, err := url.PathUnescape(rest)
	if err != nil {
		return ""
	}
	return v
}

func conceptMarkdown(info *models.ConceptInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", info.Concept)
	if info.Category != "" {
		fmt.Fprintf(&b, "Categoria: %s\n\n", info.Category)
	}
	if info.Response == nil || len(info.Response.Results) == 0 {
		b.WriteString("Nenhuma referência encontrada para este conceito.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "%d referência(s) encontrada(s)\n\n", len(info.Response.Results))
	for i, p := range info.Response.Results {
		fmt.Fprintf(&b, "## %d. %s\n", i+1, p.Source)
		fmt.Fprintf(&b, "**Similaridade:** %.3f\n\n", p.Score)
		b.WriteString(utils.TruncateAtWord(p.Text, conceptExcerptChars))
		b.WriteString("\n\n---\n\n")
	}
	return b.String()
}
