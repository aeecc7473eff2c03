package mcpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/pkg/utils"
)

const (
	defaultName    = "bookref"
	defaultVersion = "0.1.0"
)

// Retriever is the part of the retrieval core the MCP server needs.
// *search.Retriever implements it.
type Retriever interface {
	Retrieve(ctx context.Context, req models.RetrieveRequest) (*models.RetrieveResponse, error)
	ConceptInfo(ctx context.Context, name string) (*models.ConceptInfo, error)
	ListConcepts() []models.ConceptGroup
	ListBooks(ctx context.Context) ([]models.BookSummary, error)
	Stats(ctx context.Context) (*models.IndexStats, error)
	Lookup(ctx context.Context, req models.LookupRequest) ([]*models.LookupHit, error)
}

// Server is the MCP server for bookref.
type Server struct {
	retriever Retriever
	server    *mcp.Server
	name      string
	version   string
	logger    *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithName sets the implementation name announced to clients.
func WithName(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.name = name
		}
	}
}

// WithVersion sets the implementation version announced to clients.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// WithLogger sets the logger for tool failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates an MCP server with every tool and resource registered.
func NewServer(r Retriever, opts ...Option) (*Server, error) {
	if r == nil {
		return nil, ErrMissingRetriever
	}
	s := &Server{retriever: r, name: defaultName, version: defaultVersion}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.NopIfNil(s.logger)
	s.server = mcp.NewServer(&mcp.Implementation{Name: s.name, Version: s.version}, nil)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server on stdio", zap.String("name", s.name))
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves MCP over streamable HTTP on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info("MCP server on streamable HTTP", zap.String("addr", addr))
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
