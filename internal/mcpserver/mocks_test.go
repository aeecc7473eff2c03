package mcpserver

import (
	"context"

	"github.com/hyperjump/bookref/internal/models"
)

type mockRetriever struct {
	response *models.RetrieveResponse
	concept  *models.ConceptInfo
	groups   []models.ConceptGroup
	books    []models.BookSummary
	stats    *models.IndexStats
	hits     []*models.LookupHit
	err      error

	lastRequest models.RetrieveRequest
	lastLookup  models.LookupRequest
}

func (m *mockRetriever) Retrieve(_ context.Context, req models.RetrieveRequest) (*models.RetrieveResponse, error) {
	m.lastRequest = req
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockRetriever) ConceptInfo(_ context.Context, name string) (*models.ConceptInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.concept == nil || m.concept.Concept != name {
		return nil, &models.UnknownConceptError{Name: name}
	}
	return m.concept, nil
}

func (m *mockRetriever) ListConcepts() []models.ConceptGroup {
	return m.groups
}

func (m *mockRetriever) ListBooks(context.Context) ([]models.BookSummary, error) {
	return m.books, m.err
}

func (m *mockRetriever) Stats(context.Context) (*models.IndexStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stats, nil
}

func (m *mockRetriever) Lookup(_ context.Context, req models.LookupRequest) ([]*models.LookupHit, error) {
	m.lastLookup = req
	return m.hits, m.err
}

func sampleBooks() []models.BookSummary {
	return []models.BookSummary{
		{BookID: "gonzalez-dip", Code: "gonzalez", Title: "Digital Image Processing", PageCount: 976, Chunks: 1200},
		{BookID: "goodfellow-deep-learning", Code: "goodfellow", Title: "Deep Learning", PageCount: 800, Chunks: 900},
	}
}
