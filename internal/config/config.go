// Package config provides configuration loading and structs for the bookref server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool            `yaml:"debug"`
	Server     ServerConfig    `yaml:"server"`
	Storage    StorageConfig   `yaml:"storage"`
	Corpus     CorpusConfig    `yaml:"corpus"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Chunking   ChunkingConfig  `yaml:"chunking"`
	Retrieval  RetrievalConfig `yaml:"retrieval"`
	MCP        MCPConfig       `yaml:"mcp"`
	TablesPath string          `yaml:"tables_path,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the corpus database and indices.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	IndexDir         string `yaml:"index_dir"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// CorpusConfig points at the directory of reference books.
type CorpusConfig struct {
	Directory  string   `yaml:"directory"`
	Extensions []string `yaml:"extensions"`
	Watch      bool     `yaml:"watch"`
}

// EmbeddingConfig selects and tunes the embedder.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // hash | onnx
	ModelPath  string `yaml:"model_path"`
	ModelName  string `yaml:"model_name"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	BatchSize  int    `yaml:"batch_size"`
}

// ChunkingConfig holds chunk window settings, in bytes of cleaned text.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	MinChunkSize int `yaml:"min_chunk_size"`
}

// RetrievalConfig holds query analysis and ranking settings.
type RetrievalConfig struct {
	DefaultTopK         int     `yaml:"default_top_k"`
	MaxTopK             int     `yaml:"max_top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	ShortQueryWords     int     `yaml:"short_query_words"`
	GenericMargin       float64 `yaml:"generic_margin"`
	ComparisonRaise     float64 `yaml:"comparison_raise"`
	RelaxStep           float64 `yaml:"relax_step"`
	SynonymsPerTerm     int     `yaml:"synonyms_per_term"`
	MaxExpansionChars   int     `yaml:"max_expansion_chars"`
	MaxResultChars      int     `yaml:"max_result_chars"`
	MaxQueryChars       int     `yaml:"max_query_chars"`
}

// MCPConfig holds settings for the agent-facing MCP adapter.
type MCPConfig struct {
	Name     string `yaml:"name"`
	HTTPAddr string `yaml:"http_addr"`
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, and expands paths. Returns an error if the file cannot be read or parsed,
// or if the resulting values are inconsistent.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexDir = expandPath(cfg.Storage.IndexDir, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Corpus.Directory = expandPath(cfg.Corpus.Directory, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.TablesPath != "" {
		cfg.TablesPath = expandPath(cfg.TablesPath, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path, or returns the defaults with environment overrides applied
// when no file exists there.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		applyEnv(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects settings the chunker or analyzer cannot work with.
func (c *Config) Validate() error {
	var errs []error
	ch := c.Chunking
	if ch.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunking.chunk_size must be positive"))
	}
	if ch.ChunkOverlap < 0 || ch.ChunkOverlap >= ch.ChunkSize {
		errs = append(errs, fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size)"))
	}
	if ch.MinChunkSize <= 0 || ch.MinChunkSize > ch.ChunkSize {
		errs = append(errs, fmt.Errorf("chunking.min_chunk_size must be in (0, chunk_size]"))
	}
	r := c.Retrieval
	if r.MaxTopK < 1 {
		errs = append(errs, fmt.Errorf("retrieval.max_top_k must be at least 1"))
	}
	if r.DefaultTopK < 1 || r.DefaultTopK > r.MaxTopK {
		errs = append(errs, fmt.Errorf("retrieval.default_top_k must be in [1, max_top_k]"))
	}
	if r.SimilarityThreshold < 0 || r.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("retrieval.similarity_threshold must be in [0, 1]"))
	}
	for name, v := range map[string]float64{
		"generic_margin":   r.GenericMargin,
		"comparison_raise": r.ComparisonRaise,
		"relax_step":       r.RelaxStep,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("retrieval.%s must be in [0, 1]", name))
		}
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimensions must be positive"))
	}
	switch c.Embedding.Provider {
	case ProviderHash, ProviderONNX:
	default:
		errs = append(errs, fmt.Errorf("embedding.provider %q is not one of hash, onnx", c.Embedding.Provider))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// applyEnv lets the process environment (and a .env file loaded by main) override paths.
func applyEnv(cfg *Config) {
	if v := os.Getenv("BOOKREF_CORPUS_DIR"); v != "" {
		cfg.Corpus.Directory = v
	}
	if v := os.Getenv("BOOKREF_INDEX_DIR"); v != "" {
		cfg.Storage.IndexDir = v
	}
	if v := os.Getenv("BOOKREF_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		cfg.Debug = true
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
