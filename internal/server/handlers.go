package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/bookref/internal/indexer"
	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/internal/search"
	"github.com/hyperjump/bookref/internal/storage"
)

const remediationRebuild = "run ingest --force-rebuild"

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error       string   `json:"error"`
	Field       string   `json:"field,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Remediation string   `json:"remediation,omitempty"`
}

type statsBody struct {
	*models.IndexStats
	Disk *storage.Usage `json:"disk,omitempty"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req models.RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("retrieve request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	resp, err := s.retriever.Retrieve(r.Context(), req)
	if err != nil {
		s.respondFailure(w, "retrieve", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		s.respondError(w, http.StatusNotImplemented, "ingestion not enabled")
		return
	}
	var req models.IngestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	dir := req.Directory
	if dir == "" {
		dir = s.config.Corpus.Directory
	}
	s.logger.Info("ingest request", zap.String("dir", dir), zap.Bool("force_rebuild", req.ForceRebuild))
	report, err := s.indexer.Ingest(r.Context(), dir, indexer.IngestOptions{ForceRebuild: req.ForceRebuild})
	if err != nil {
		s.respondFailure(w, "ingest", err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.retriever.Stats(r.Context())
	if err != nil {
		s.respondFailure(w, "stats", err)
		return
	}
	body := statsBody{IndexStats: stats}
	st := s.config.Storage
	if usage, err := storage.DiskUsage(st.DatabasePath, st.IndexDir, st.KeywordIndexPath); err != nil {
		s.logger.Warn("stats: disk usage failed", zap.Error(err))
	} else {
		body.Disk = &usage
	}
	s.respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.retriever.ListBooks(r.Context())
	if err != nil {
		s.respondFailure(w, "list books", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		s.respondFailure(w, "page", &models.ParamError{Field: "page", Reason: "must be an integer"})
		return
	}
	page, err := s.retriever.Page(r.Context(), chi.URLParam(r, "id"), n)
	if err != nil {
		s.respondFailure(w, "page", err)
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleConcepts(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{"categories": s.retriever.ListConcepts()})
}

func (s *Server) handleConcept(w http.ResponseWriter, r *http.Request) {
	info, err := s.retriever.ConceptInfo(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.respondFailure(w, "concept info", err)
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := models.LookupRequest{Term: q.Get("term"), Book: q.Get("book")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondFailure(w, "lookup", &models.ParamError{Field: "limit", Reason: "must be a non-negative integer"})
			return
		}
		req.Limit = n
	}
	hits, err := s.retriever.Lookup(r.Context(), req)
	if err != nil {
		s.respondFailure(w, "lookup", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"term": req.Term, "hits": hits})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorResponse maps a domain error to a status code and body.
func errorResponse(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}
	var pe *models.ParamError
	var uc *models.UnknownConceptError
	switch {
	case errors.As(err, &pe):
		body.Field = pe.Field
		return http.StatusBadRequest, body
	case errors.As(err, &uc):
		body.Suggestions = uc.Suggestions
		return http.StatusNotFound, body
	case errors.Is(err, models.ErrVersionMismatch):
		body.Remediation = remediationRebuild
		return http.StatusConflict, body
	case errors.Is(err, models.ErrBuildInProgress):
		return http.StatusConflict, body
	case errors.Is(err, models.ErrBookNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, search.ErrNoKeywordIndex):
		return http.StatusNotImplemented, body
	default:
		return http.StatusInternalServerError, body
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	s.respondJSON(w, status, body)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorBody{Error: message})
}
