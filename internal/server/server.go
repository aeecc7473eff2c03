// Package server provides the HTTP API for bookref.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/bookref/internal/config"
	"github.com/hyperjump/bookref/internal/indexer"
	"github.com/hyperjump/bookref/internal/metrics"
	"github.com/hyperjump/bookref/internal/search"
	"github.com/hyperjump/bookref/pkg/utils"
)

const (
	requestTimeout = 60 * time.Second
	ingestTimeout  = 30 * time.Minute
)

// Server is the HTTP server for the bookref API.
type Server struct {
	retriever *search.Retriever
	indexer   *indexer.Indexer
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. idx may be nil, in which
// case the ingest endpoint answers 501.
func NewServer(retriever *search.Retriever, idx *indexer.Indexer, cfg *config.Config, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	metrics.Register()
	return &Server{
		retriever: retriever,
		indexer:   idx,
		config:    cfg,
		logger:    utils.NopIfNil(logger),
	}
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Post("/api/v1/retrieve", s.handleRetrieve)
		r.Get("/api/v1/stats", s.handleStats)
		r.Get("/api/v1/books", s.handleBooks)
		r.Get("/api/v1/books/{id}/pages/{n}", s.handlePage)
		r.Get("/api/v1/concepts", s.handleConcepts)
		r.Get("/api/v1/concepts/{name}", s.handleConcept)
		r.Get("/api/v1/lookup", s.handleLookup)
		r.Get("/health", s.handleHealth)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(ingestTimeout))
		r.Post("/api/v1/ingest", s.handleIngest)
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
