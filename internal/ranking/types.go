// Package ranking analyzes natural-language queries about the reference corpus:
// query type, synonym expansion, the adaptive similarity threshold, and the book
// a query most likely refers to.
package ranking

// QueryType is the detected intent of a query.
type QueryType string

const (
	// QueryTypeConcept asks what something is ("o que é", "what is").
	QueryTypeConcept QueryType = "concept"
	// QueryTypeAlgorithm asks how a method works.
	QueryTypeAlgorithm QueryType = "algorithm"
	// QueryTypeImplementation asks how to build or code something.
	QueryTypeImplementation QueryType = "implementation"
	// QueryTypeTheory asks for the mathematics behind something.
	QueryTypeTheory QueryType = "theory"
	// QueryTypeComparison contrasts two or more things.
	QueryTypeComparison QueryType = "comparison"
	// QueryTypeGeneric matched no rule.
	QueryTypeGeneric QueryType = "generic"
)

// String returns the type name used in responses and metrics.
func (q QueryType) String() string {
	return string(q)
}

// AnalyzedQuery holds everything derived from one raw query. It is built per
// request and never stored.
type AnalyzedQuery struct {
	// Original is the query as received, trimmed.
	Original string
	// Normalized is the lowercased query with punctuation replaced by spaces.
	Normalized string
	// Type is the first matching rule type, or QueryTypeGeneric.
	Type QueryType
	// ExpandedTerms are the query tokens followed by matched synonym terms and
	// their related phrases, deduplicated in first-seen order.
	ExpandedTerms []string
	// EmbeddingText is the text that gets embedded: the original query plus a
	// bounded number of related phrases.
	EmbeddingText string
	// DetectedConcepts are known concepts mentioned by the query.
	DetectedConcepts []string
	// SuggestedBook is the catalog code that best matches the query, if any.
	SuggestedBook string
	// BookFilter is the explicit filter when one was given, else SuggestedBook.
	BookFilter string
	// FilterExplicit reports whether BookFilter came from the caller.
	FilterExplicit bool
	TopK           int
	// Threshold is the minimum score a result needs on the first search.
	Threshold float64
	// RelaxedThreshold is used for the single retry when nothing passes Threshold.
	RelaxedThreshold float64
	Confidence       float64
}
