package mcpserver

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/bookref/internal/models"
)

// QueryInput is the input schema for query_references.
type QueryInput struct {
	Query      string `json:"query" jsonschema:"natural-language question about computer vision or image processing"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"maximum number of passages (default 5, at most 20)"`
	BookFilter string `json:"book_filter,omitempty" jsonschema:"restrict to one book by id or code (gonzalez, szeliski, goodfellow, bishop)"`
}

// ConceptInput is the input schema for get_concept_info.
type ConceptInput struct {
	Name string `json:"name" jsonschema:"concept name such as filtro-gaussiano or convolução"`
}

// LookupInput is the input schema for lookup_term.
type LookupInput struct {
	Term  string `json:"term" jsonschema:"exact word or phrase to find"`
	Book  string `json:"book,omitempty" jsonschema:"restrict to one book by id or code"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of hits (default 10)"`
}

// NoInput is the input schema for tools without arguments.
type NoInput struct{}

// BooksOutput is the output schema for list_books.
type BooksOutput struct {
	Books       []models.BookSummary `json:"books"`
	Count       int                  `json:"count"`
	TotalChunks int                  `json:"total_chunks"`
}

// ConceptsOutput is the output schema for list_concepts.
type ConceptsOutput struct {
	Categories []models.ConceptGroup `json:"categories"`
	Total      int                   `json:"total"`
}

// StatsOutput is the output schema for get_stats.
type StatsOutput struct {
	BookCount             int               `json:"book_count"`
	ChunkCount            int               `json:"chunk_count"`
	IndexDimension        int               `json:"index_dimension"`
	EmbeddingModelVersion string            `json:"embedding_model_version"`
	BuildID               string            `json:"build_id,omitempty"`
	BuiltAt               string            `json:"built_at,omitempty"`
	Books                 []models.BookStat `json:"books"`
}

// LookupOutput is the output schema for lookup_term.
type LookupOutput struct {
	Term  string              `json:"term"`
	Hits  []*models.LookupHit `json:"hits"`
	Count int                 `json:"count"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "query_references",
		Description: "Semantic search over the indexed computer vision reference books. " +
			"Returns ranked passages with book and page provenance.",
	}, s.handleQuery)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_concept_info",
		Description: "Reference passages defining a known computer vision concept",
	}, s.handleConcept)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_books",
		Description: "List the ingested reference books with page and chunk counts",
	}, s.handleListBooks)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_concepts",
		Description: "List the known concepts grouped by category",
	}, s.handleListConcepts)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_stats",
		Description: "Statistics of the published vector index",
	}, s.handleStats)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "lookup_term",
		Description: "Find exact occurrences of a term in the books, bypassing semantic search",
	}, s.handleLookup)
}

func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, models.RetrieveResponse, error) {
	resp, err := s.retriever.Retrieve(ctx, models.RetrieveRequest{
		Query:      input.Query,
		TopK:       input.TopK,
		BookFilter: input.BookFilter,
	})
	if err != nil {
		s.logger.Debug("query_references failed", zap.Error(err))
		return nil, models.RetrieveResponse{}, toolError(err)
	}
	return nil, *resp, nil
}

func (s *Server) handleConcept(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ConceptInput,
) (*mcp.CallToolResult, models.ConceptInfo, error) {
	info, err := s.retriever.ConceptInfo(ctx, input.Name)
	if err != nil {
		return nil, models.ConceptInfo{}, toolError(err)
	}
	return nil, *info, nil
}

func (s *Server) handleListBooks(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ NoInput,
) (*mcp.CallToolResult, BooksOutput, error) {
	books, err := s.retriever.ListBooks(ctx)
	if err != nil {
		return nil, BooksOutput{}, toolError(err)
	}
	out := BooksOutput{Books: books, Count: len(books)}
	for _, b := range books {
		out.TotalChunks += b.Chunks
	}
	return nil, out, nil
}

func (s *Server) handleListConcepts(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ NoInput,
) (*mcp.CallToolResult, ConceptsOutput, error) {
	groups := s.retriever.ListConcepts()
	out := ConceptsOutput{Categories: groups}
	for _, g := range groups {
		out.Total += len(g.Concepts)
	}
	return nil, out, nil
}

func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ NoInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	st, err := s.retriever.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, toolError(err)
	}
	return nil, statsOutput(st), nil
}

func (s *Server) handleLookup(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input LookupInput,
) (*mcp.CallToolResult, LookupOutput, error) {
	hits, err := s.retriever.Lookup(ctx, models.LookupRequest{Term: input.Term, Book: input.Book, Limit: input.Limit})
	if err != nil {
		return nil, LookupOutput{}, toolError(err)
	}
	return nil, LookupOutput{Term: input.Term, Hits: hits, Count: len(hits)}, nil
}

func statsOutput(st *models.IndexStats) StatsOutput {
	out := StatsOutput{
		BookCount:             st.BookCount,
		ChunkCount:            st.ChunkCount,
		IndexDimension:        st.IndexDimension,
		EmbeddingModelVersion: st.EmbeddingModelVersion,
		BuildID:               st.BuildID,
		Books:                 st.Books,
	}
	if st.BuiltAt != nil {
		out.BuiltAt = st.BuiltAt.UTC().Format(time.RFC3339)
	}
	return out
}
