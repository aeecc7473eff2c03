package config

// Embedding providers.
const (
	ProviderHash = "hash"
	ProviderONNX = "onnx"
)

// Default returns a fully populated configuration, used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/bookref/data/db/corpus.db"
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = "/usr/local/var/bookref/data/indices/vectors"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/bookref/data/indices/keyword"
	}
	if cfg.Corpus.Directory == "" {
		cfg.Corpus.Directory = "/usr/local/var/bookref/books"
	}
	if cfg.Corpus.Extensions == nil {
		cfg.Corpus.Extensions = []string{".pdf", ".txt", ".md", ".odt", ".rtf"}
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderHash
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/bookref/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.ModelName == "" {
		cfg.Embedding.ModelName = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 512
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 50
	}
	if cfg.Chunking.MinChunkSize == 0 {
		cfg.Chunking.MinChunkSize = 100
	}
	applyRetrievalDefaults(&cfg.Retrieval)
	if cfg.MCP.Name == "" {
		cfg.MCP.Name = "bookref"
	}
}

func applyRetrievalDefaults(r *RetrievalConfig) {
	if r.DefaultTopK == 0 {
		r.DefaultTopK = 5
	}
	if r.MaxTopK == 0 {
		r.MaxTopK = 20
	}
	if r.SimilarityThreshold == 0 {
		r.SimilarityThreshold = 0.3
	}
	if r.ShortQueryWords == 0 {
		r.ShortQueryWords = 4
	}
	if r.GenericMargin == 0 {
		r.GenericMargin = 0.1
	}
	if r.ComparisonRaise == 0 {
		r.ComparisonRaise = 0.1
	}
	if r.RelaxStep == 0 {
		r.RelaxStep = 0.1
	}
	if r.SynonymsPerTerm == 0 {
		r.SynonymsPerTerm = 2
	}
	if r.MaxExpansionChars == 0 {
		r.MaxExpansionChars = 500
	}
	if r.MaxResultChars == 0 {
		r.MaxResultChars = 800
	}
	if r.MaxQueryChars == 0 {
		r.MaxQueryChars = 1000
	}
}
