// Package main is the bookref CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/bookref/internal/cli"
	"github.com/hyperjump/bookref/internal/config"
	"github.com/hyperjump/bookref/internal/embedding"
	"github.com/hyperjump/bookref/internal/extract"
	"github.com/hyperjump/bookref/internal/indexer"
	"github.com/hyperjump/bookref/internal/keyword"
	"github.com/hyperjump/bookref/internal/mcpserver"
	"github.com/hyperjump/bookref/internal/metrics"
	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/internal/ranking"
	"github.com/hyperjump/bookref/internal/search"
	"github.com/hyperjump/bookref/internal/server"
	"github.com/hyperjump/bookref/internal/storage"
	"github.com/hyperjump/bookref/internal/vector"
	"github.com/hyperjump/bookref/internal/watcher"
	"github.com/hyperjump/bookref/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/bookref/config.yaml"

	watchRetries    = 5
	watchRetryDelay = 5 * time.Second
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory takes precedence if it exists. A missing default file yields the
// built-in defaults. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		cfg, err := config.LoadOrDefault(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// configPathDefault is BOOKREF_CONFIG when set, else the installed default.
func configPathDefault() string {
	if p := os.Getenv("BOOKREF_CONFIG"); p != "" {
		return p
	}
	return defaultConfigPath
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "serve", "server":
		runServe(args)
	case "ingest":
		runIngest(args)
	case "query":
		runQuery(args)
	case "stats":
		runStats(args)
	case "books":
		runBooks(args)
	case "concepts":
		runConcepts(args)
	case "concept":
		runConcept(args)
	case "lookup":
		runLookup(args)
	case "mcp":
		runMCP(args)
	case "eval":
		runEval(args)
	case "version", "--version", "-v":
		fmt.Printf("bookref version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// commonFlags are shared by every subcommand that opens the corpus.
type commonFlags struct {
	configPath *string
	debug      *bool
	format     *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", configPathDefault(), "config file path (env BOOKREF_CONFIG)"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
		format:     fs.String("format", "text", "output format: text or json"),
	}
}

// setup loads the config and creates the logger for a subcommand.
func (c commonFlags) setup() (*config.Config, *zap.Logger, cli.OutputFormat) {
	cfg, resolved, err := loadConfig(*c.configPath)
	if err != nil {
		exitf("Failed to load config: %v", err)
	}
	format, err := cli.ParseFormat(*c.format)
	if err != nil {
		exitf("%v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || *c.debug)
	if err != nil {
		exitf("Failed to create logger: %v", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))
	return cfg, logger, format
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	common := addCommonFlags(fs)
	ingestFirst := fs.Bool("ingest", false, "ingest the corpus directory before serving")
	_ = fs.Parse(args)

	cfg, logger, _ := common.setup()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	force := false
	if err := components.loadIndex(ctx, logger); err != nil {
		if !*ingestFirst {
			logger.Fatal("Index unusable; run 'bookref ingest --force-rebuild' or start with --ingest", zap.Error(err))
		}
		logger.Warn("Index unusable, rebuilding", zap.Error(err))
		force = true
	}
	if *ingestFirst {
		report, err := components.Indexer.Ingest(ctx, cfg.Corpus.Directory, indexer.IngestOptions{ForceRebuild: force})
		if err != nil {
			logger.Fatal("Ingest failed", zap.Error(err))
		}
		logger.Info("Startup ingest done",
			zap.String("mode", report.Mode),
			zap.Int("books", report.BooksIndexed),
			zap.Int("chunks", report.ChunksIndexed))
	}

	if cfg.Corpus.Watch {
		w := watcher.NewWatcher(cfg.Corpus.Directory, cfg.Corpus.Extensions,
			func(ctx context.Context, _ []string) {
				reingest(ctx, components.Indexer, cfg.Corpus.Directory, logger)
			},
			watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Warn("Corpus watcher not started", zap.String("dir", cfg.Corpus.Directory), zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	srv := server.NewServer(components.Retriever, components.Indexer, cfg, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// reingest runs an incremental ingest after a corpus change, waiting for a run that is
// already in progress.
func reingest(ctx context.Context, idx *indexer.Indexer, dir string, logger *zap.Logger) {
	for attempt := 1; ; attempt++ {
		report, err := idx.Ingest(ctx, dir, indexer.IngestOptions{})
		if errors.Is(err, models.ErrBuildInProgress) && attempt < watchRetries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(watchRetryDelay):
				continue
			}
		}
		if err != nil {
			logger.Warn("Re-ingest after corpus change failed", zap.Error(err))
			return
		}
		logger.Info("Corpus re-ingested",
			zap.String("mode", report.Mode),
			zap.Int("books", report.BooksIndexed),
			zap.Int("failures", len(report.Failures)))
		return
	}
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	common := addCommonFlags(fs)
	force := fs.Bool("force-rebuild", false, "re-extract every book and rebuild the index")
	_ = fs.Parse(reorderArgs(args))

	cfg, logger, format := common.setup()
	defer logger.Sync()
	dir := cfg.Corpus.Directory
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		exitf("Failed to initialize: %v", err)
	}
	defer components.Close()
	if err := components.loadIndex(ctx, logger); err != nil && !*force {
		exitf("Index unusable: %v\nRun 'bookref ingest --force-rebuild' to rebuild it.", err)
	}

	report, err := components.Indexer.Ingest(ctx, dir, indexer.IngestOptions{ForceRebuild: *force})
	if err != nil {
		exitf("Ingest failed: %v", err)
	}
	if err := cli.WriteIngestReport(os.Stdout, report, format); err != nil {
		exitf("Output failed: %v", err)
	}
	if format == cli.OutputJSON {
		return
	}
	fmt.Println()
	printStats(ctx, components, cfg, format)
	fmt.Println()
	books, err := components.Retriever.ListBooks(ctx)
	if err != nil {
		exitf("List books failed: %v", err)
	}
	_ = cli.WriteBooks(os.Stdout, books, format)
}

func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: bookref query [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  bookref query o que é convolução
  bookref query --book szeliski "stereo matching"
  bookref query --top-k 3 --format json "Sobel vs Canny"
  bookref query --server http://localhost:8080 limiarização de otsu
`)
}

// buildQuery joins positional args with spaces so multi-word questions work with or
// without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves flags that appear after the positional arguments to the front so
// flag.Parse sees them. The flag package stops at the first non-flag argument, so
// "bookref query convolução --top-k 3" would otherwise leave --top-k unparsed.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	common := addCommonFlags(fs)
	topK := fs.Int("top-k", 0, "number of passages (default from config)")
	book := fs.String("book", "", "restrict to one book by id or code")
	serverURL := fs.String("server", "", "query a running server instead of opening the index")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(reorderArgs(args))

	q := buildQuery(fs.Args())
	if q == "" {
		printQueryUsage(fs)
		os.Exit(1)
	}
	req := models.RetrieveRequest{Query: q, TopK: *topK, BookFilter: *book}

	if *serverURL != "" {
		format, err := cli.ParseFormat(*common.format)
		if err != nil {
			exitf("%v", err)
		}
		resp, err := retrieveViaHTTP(*serverURL, req)
		if err != nil {
			exitf("Query failed: %v", err)
		}
		if err := cli.WriteRetrieveResponse(os.Stdout, resp, format); err != nil {
			exitf("Output failed: %v", err)
		}
		return
	}

	cfg, logger, format := common.setup()
	defer logger.Sync()
	ctx := context.Background()
	components := openForReading(ctx, cfg, logger)
	defer components.Close()

	resp, err := components.Retriever.Retrieve(ctx, req)
	if err != nil {
		exitf("Query failed: %v", err)
	}
	if err := cli.WriteRetrieveResponse(os.Stdout, resp, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

func retrieveViaHTTP(serverURL string, req models.RetrieveRequest) (*models.RetrieveResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/retrieve", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out models.RetrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)

	cfg, logger, format := common.setup()
	defer logger.Sync()
	ctx := context.Background()
	components := openForReading(ctx, cfg, logger)
	defer components.Close()
	printStats(ctx, components, cfg, format)
}

func printStats(ctx context.Context, c *Components, cfg *config.Config, format cli.OutputFormat) {
	st, err := c.Retriever.Stats(ctx)
	if err != nil {
		exitf("Stats failed: %v", err)
	}
	var usage *storage.Usage
	if u, err := storage.DiskUsage(cfg.Storage.DatabasePath, cfg.Storage.IndexDir, cfg.Storage.KeywordIndexPath); err == nil {
		usage = &u
	}
	if err := cli.WriteStats(os.Stdout, st, usage, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

func runBooks(args []string) {
	fs := flag.NewFlagSet("books", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)

	cfg, logger, format := common.setup()
	defer logger.Sync()
	ctx := context.Background()
	components := openForReading(ctx, cfg, logger)
	defer components.Close()

	books, err := components.Retriever.ListBooks(ctx)
	if err != nil {
		exitf("List books failed: %v", err)
	}
	if err := cli.WriteBooks(os.Stdout, books, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

func runConcepts(args []string) {
	fs := flag.NewFlagSet("concepts", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)

	cfg, logger, format := common.setup()
	defer logger.Sync()
	tables, err := loadTables(cfg)
	if err != nil {
		exitf("Failed to load tables: %v", err)
	}
	analyzer := ranking.NewQueryAnalyzer(tables, &cfg.Retrieval)
	if err := cli.WriteConcepts(os.Stdout, analyzer.ListConcepts(), format); err != nil {
		exitf("Output failed: %v", err)
	}
}

func runConcept(args []string) {
	fs := flag.NewFlagSet("concept", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(reorderArgs(args))
	name := buildQuery(fs.Args())
	if name == "" {
		exitf("Usage: bookref concept [flags] <name>")
	}

	cfg, logger, format := common.setup()
	defer logger.Sync()
	ctx := context.Background()
	components := openForReading(ctx, cfg, logger)
	defer components.Close()

	info, err := components.Retriever.ConceptInfo(ctx, name)
	var unknown *models.UnknownConceptError
	if errors.As(err, &unknown) {
		msg := fmt.Sprintf("Unknown concept %q.", unknown.Name)
		if len(unknown.Suggestions) > 0 {
			msg += " Did you mean: " + strings.Join(unknown.Suggestions, ", ") + "?"
		}
		exitf("%s\nRun 'bookref concepts' for the full list.", msg)
	}
	if err != nil {
		exitf("Concept lookup failed: %v", err)
	}
	if err := cli.WriteConceptInfo(os.Stdout, info, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

func runLookup(args []string) {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	common := addCommonFlags(fs)
	book := fs.String("book", "", "restrict to one book by id or code")
	limit := fs.Int("limit", 10, "maximum number of hits")
	_ = fs.Parse(reorderArgs(args))
	term := buildQuery(fs.Args())
	if term == "" {
		exitf("Usage: bookref lookup [flags] <term>")
	}

	cfg, logger, format := common.setup()
	defer logger.Sync()
	ctx := context.Background()
	components := openForReading(ctx, cfg, logger)
	defer components.Close()

	hits, err := components.Retriever.Lookup(ctx, models.LookupRequest{Term: term, Book: *book, Limit: *limit})
	if err != nil {
		exitf("Lookup failed: %v", err)
	}
	if err := cli.WriteLookupHits(os.Stdout, term, hits, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

func runMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	common := addCommonFlags(fs)
	httpAddr := fs.String("http", "", "serve streamable HTTP on this address instead of stdio (default from config)")
	_ = fs.Parse(args)

	cfg, logger, _ := common.setup()
	defer logger.Sync()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()
	if err := components.loadIndex(ctx, logger); err != nil {
		logger.Fatal("Index unusable; run 'bookref ingest --force-rebuild'", zap.Error(err))
	}

	srv, err := mcpserver.NewServer(components.Retriever,
		mcpserver.WithName(cfg.MCP.Name),
		mcpserver.WithVersion(version),
		mcpserver.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create MCP server", zap.Error(err))
	}

	addr := *httpAddr
	if addr == "" {
		addr = cfg.MCP.HTTPAddr
	}
	if addr != "" {
		err = srv.RunHTTP(ctx, addr)
	} else {
		err = srv.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("MCP server failed", zap.Error(err))
	}
}

func runEval(args []string) {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	common := addCommonFlags(fs)
	queriesPath := fs.String("queries", "", "YAML file with a top-level queries list")
	out := fs.String("out", "bookref-eval.xlsx", "report path")
	_ = fs.Parse(args)
	if *queriesPath == "" {
		exitf("Usage: bookref eval --queries q.yaml [--out report.xlsx]")
	}

	cfg, logger, format := common.setup()
	defer logger.Sync()
	queries, err := cli.LoadEvalQueries(*queriesPath)
	if err != nil {
		exitf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	components := openForReading(ctx, cfg, logger)
	defer components.Close()

	results, err := cli.RunEval(ctx, components.Retriever, queries)
	if err != nil {
		exitf("Evaluation interrupted: %v", err)
	}
	if err := cli.WriteEvalReport(*out, results); err != nil {
		exitf("Writing report failed: %v", err)
	}
	s := cli.Summarize(results)
	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(s)
		return
	}
	fmt.Printf("%d queries, %d errors, %d without results, %d relaxed\n", s.Queries, s.Errors, s.NoResults, s.Relaxed)
	if s.Expectations > 0 {
		fmt.Printf("Expected book retrieved: %d/%d (%.0f%%)\n", s.Hits, s.Expectations, 100*s.HitRate())
	}
	fmt.Printf("Report written to %s\n", *out)
}

// Components holds initialized services.
type Components struct {
	Storage   *storage.SQLiteStorage
	Embedder  embedding.Embedder
	Index     *vector.FlatIndex
	Keywords  *keyword.BleveIndex
	Tables    *config.Tables
	Retriever *search.Retriever
	Indexer   *indexer.Indexer
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Keywords != nil {
		_ = c.Keywords.Close()
	}
}

// loadIndex publishes the persisted index and syncs the keyword index with it. A
// missing index or one built by another embedder leaves the index empty with a
// warning; a corrupt one is returned as an error.
func (c *Components) loadIndex(ctx context.Context, logger *zap.Logger) error {
	err := c.Index.Load(ctx)
	switch {
	case errors.Is(err, models.ErrIndexNotFound):
		logger.Warn("No index yet; run 'bookref ingest'", zap.Error(err))
	case errors.Is(err, models.ErrVersionMismatch):
		logger.Warn("Index was built by another embedder; run 'bookref ingest --force-rebuild'", zap.Error(err))
	case err != nil:
		return err
	}
	st := c.Index.Stats()
	metrics.SetIndexSize(len(st.Books), st.Chunks)
	if err := c.Indexer.SyncKeywords(ctx); err != nil {
		logger.Warn("Keyword index sync failed", zap.Error(err))
	}
	return nil
}

// openForReading initializes components for a one-shot command with an in-memory
// keyword index, so it never contends with a running server for the on-disk one.
func openForReading(ctx context.Context, cfg *config.Config, logger *zap.Logger) *Components {
	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		exitf("Failed to initialize: %v", err)
	}
	if err := components.loadIndex(ctx, logger); err != nil {
		components.Close()
		exitf("Index unusable: %v\nRun 'bookref ingest --force-rebuild' to rebuild it.", err)
	}
	return components
}

func loadTables(cfg *config.Config) (*config.Tables, error) {
	if cfg.TablesPath == "" {
		return config.DefaultTables(), nil
	}
	return config.LoadTables(cfg.TablesPath)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, persistentKeywords bool) (*Components, error) {
	tables, err := loadTables(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load tables: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: store, Tables: tables}

	c.Embedder, err = embedding.New(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Index = vector.NewFlatIndex(c.Embedder,
		vector.WithDir(cfg.Storage.IndexDir),
		vector.WithMaxTopK(cfg.Retrieval.MaxTopK),
		vector.WithBatchSize(cfg.Embedding.BatchSize),
		vector.WithLogger(logger))

	kwPath := ""
	if persistentKeywords {
		kwPath = cfg.Storage.KeywordIndexPath
	}
	c.Keywords, err = keyword.NewBleveIndex(kwPath, keyword.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	analyzer := ranking.NewQueryAnalyzer(tables, &cfg.Retrieval)
	c.Retriever = search.NewRetriever(c.Index, analyzer, &cfg.Retrieval,
		search.WithLogger(logger),
		search.WithStore(store),
		search.WithKeywordIndex(c.Keywords))
	c.Indexer = indexer.NewIndexer(store, extract.NewExtractor(), c.Index, tables, cfg.Chunking,
		indexer.WithLogger(logger),
		indexer.WithKeywordIndex(c.Keywords),
		indexer.WithExtensions(cfg.Corpus.Extensions))
	return c, nil
}

func printUsage() {
	fmt.Println(`bookref - Semantic retrieval over computer vision reference books

Usage:
  bookref serve [flags]              Start the HTTP API (--ingest to ingest first)
  bookref ingest [flags] [dir]       Ingest the corpus directory and print the report
  bookref query [flags] <question>   Retrieve passages for a question
  bookref stats [flags]              Show index statistics and disk usage
  bookref books [flags]              List ingested books
  bookref concepts [flags]           List known concepts by category
  bookref concept [flags] <name>     Reference passages for one concept
  bookref lookup [flags] <term>      Exact-term keyword lookup
  bookref mcp [flags]                Serve the MCP tools over stdio or HTTP
  bookref eval [flags]               Run a query file and write an .xlsx report
  bookref version                    Show version
  bookref help                       Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/bookref/config.yaml,
                     or ./config.yaml when present)
  --debug            Enable debug logging
  --format string    Output format: text or json (default: text)

Ingest Flags:
  --force-rebuild    Re-extract every book and rebuild the index

Query Flags:
  --top-k int        Number of passages (default from config)
  --book string      Restrict to one book by id or code
  --server string    Query a running server, e.g. http://localhost:8080

Lookup Flags:
  --book string      Restrict to one book by id or code
  --limit int        Maximum number of hits (default: 10)

MCP Flags:
  --http string      Serve streamable HTTP on this address instead of stdio

Eval Flags:
  --queries string   YAML query file
  --out string       Report path (default: bookref-eval.xlsx)

Environment (also read from .env):
  BOOKREF_CONFIG, BOOKREF_CORPUS_DIR, BOOKREF_INDEX_DIR, BOOKREF_DEBUG

Examples:
  bookref ingest ~/books
  bookref ingest --force-rebuild
  bookref query o que é convolução
  bookref query --book szeliski --top-k 3 "stereo matching"
  bookref concept filtro-gaussiano
  bookref lookup --book gonzalez Otsu
  bookref serve --ingest
  bookref eval --queries queries.yaml --out report.xlsx`)
}
