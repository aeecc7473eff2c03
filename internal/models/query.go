package models

// RetrieveRequest asks for passages relevant to a natural-language query.
// TopK of zero selects the configured default. BookFilter is a book id or book code.
type RetrieveRequest struct {
	Query      string `json:"query"`
	TopK       int    `json:"top_k,omitempty"`
	BookFilter string `json:"book_filter,omitempty"`
}

// IngestRequest asks the server to ingest a corpus directory.
type IngestRequest struct {
	Directory    string `json:"directory,omitempty"`
	ForceRebuild bool   `json:"force_rebuild,omitempty"`
}

// LookupRequest asks for exact-term keyword hits.
type LookupRequest struct {
	Term  string `json:"term"`
	Book  string `json:"book,omitempty"`
	Limit int    `json:"limit,omitempty"`
}
