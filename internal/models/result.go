package models

import "time"

// Passage is one formatted retrieval hit.
type Passage struct {
	Rank      int     `json:"rank"`
	ChunkID   string  `json:"chunk_id"`
	Text      string  `json:"text"`
	Book      string  `json:"book"`
	BookID    string  `json:"book_id"`
	PageStart int     `json:"page_start"`
	PageEnd   int     `json:"page_end"`
	Score     float64 `json:"score"`
	Source    string  `json:"source"`
}

// RetrieveResponse is the result of a retrieval request.
// NoResults with an empty Results slice is a normal outcome, not an error.
type RetrieveResponse struct {
	Query            string     `json:"query"`
	Results          []*Passage `json:"results"`
	SuggestedBook    string     `json:"suggested_book,omitempty"`
	QueryType        string     `json:"query_type"`
	BookFilter       string     `json:"book_filter,omitempty"`
	Threshold        float64    `json:"threshold"`
	Relaxed          bool       `json:"relaxed"`
	NoResults        bool       `json:"no_results"`
	Message          string     `json:"message,omitempty"`
	ExpandedTerms    []string   `json:"expanded_terms"`
	DetectedConcepts []string   `json:"detected_concepts"`
	Confidence       float64    `json:"confidence"`
	Suggestions      []string   `json:"suggestions,omitempty"`
	QueryTime        int64      `json:"query_time_ms"`
}

// IngestFailureEntry is the report form of an IngestionFailure.
type IngestFailureEntry struct {
	Book   string `json:"book"`
	Reason string `json:"reason"`
}

// Ingest modes.
const (
	IngestModeBuild     = "build"
	IngestModeAdd       = "add"
	IngestModeUnchanged = "unchanged"
)

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	BooksIndexed  int                  `json:"books_indexed"`
	ChunksIndexed int                  `json:"chunks_indexed"`
	Failures      []IngestFailureEntry `json:"failures"`
	EmptyCorpus   bool                 `json:"empty_corpus"`
	Mode          string               `json:"mode"`
	Duration      int64                `json:"duration_ms"`
}

// BookStat is the per-book chunk count reported by Stats.
type BookStat struct {
	BookID string `json:"book_id"`
	Title  string `json:"title"`
	Chunks int    `json:"chunks"`
}

// IndexStats describes the currently published index.
type IndexStats struct {
	BookCount             int        `json:"book_count"`
	ChunkCount            int        `json:"chunk_count"`
	IndexDimension        int        `json:"index_dimension"`
	EmbeddingModelVersion string     `json:"embedding_model_version"`
	BuildID               string     `json:"build_id,omitempty"`
	BuiltAt               *time.Time `json:"built_at,omitempty"`
	Books                 []BookStat `json:"books"`
}

// ConceptGroup lists known concepts under a category name.
type ConceptGroup struct {
	Category string   `json:"category"`
	Concepts []string `json:"concepts"`
}

// ConceptInfo is the reference material found for one concept.
type ConceptInfo struct {
	Concept  string            `json:"concept"`
	Category string            `json:"category"`
	Response *RetrieveResponse `json:"response"`
}

// LookupHit is one exact-term keyword match.
type LookupHit struct {
	ChunkID   string  `json:"chunk_id"`
	BookID    string  `json:"book_id"`
	Book      string  `json:"book"`
	PageStart int     `json:"page_start"`
	PageEnd   int     `json:"page_end"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet"`
}
