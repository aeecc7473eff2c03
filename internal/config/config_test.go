package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Retrieval.DefaultTopK != 5 || cfg.Retrieval.MaxTopK != 20 {
		t.Errorf("retrieval defaults not applied: %+v", cfg.Retrieval)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/corpus.db"
  index_dir: "./data/indices/vectors"
corpus:
  directory: "./books"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOOKREF_CORPUS_DIR", "")
	t.Setenv("BOOKREF_INDEX_DIR", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "db", "corpus.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "data", "indices", "vectors"); cfg.Storage.IndexDir != want {
		t.Errorf("index_dir = %s, want %s", cfg.Storage.IndexDir, want)
	}
	if want := filepath.Join(dir, "books"); cfg.Corpus.Directory != want {
		t.Errorf("corpus directory = %s, want %s", cfg.Corpus.Directory, want)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("corpus:\n  directory: ./books\n"), 0600); err != nil {
		t.Fatal(err)
	}
	books := filepath.Join(dir, "elsewhere")
	t.Setenv("BOOKREF_CORPUS_DIR", books)
	t.Setenv("BOOKREF_DEBUG", "true")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Corpus.Directory != books {
		t.Errorf("corpus directory = %s, want %s", cfg.Corpus.Directory, books)
	}
	if !cfg.Debug {
		t.Error("BOOKREF_DEBUG=true should enable debug")
	}
}

func TestLoad_invalidChunking(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
chunking:
  chunk_size: 100
  chunk_overlap: 100
  min_chunk_size: 50
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for overlap >= chunk_size")
	}
	if !strings.Contains(err.Error(), "chunk_overlap") {
		t.Errorf("error should name chunk_overlap: %v", err)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv("BOOKREF_CORPUS_DIR", "/srv/books")
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Corpus.Directory != "/srv/books" || cfg.Server.Port != 8080 {
		t.Errorf("defaults with env: corpus=%q port=%d", cfg.Corpus.Directory, cfg.Server.Port)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadOrDefault(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Chunking.ChunkSize != 512 || cfg.Chunking.ChunkOverlap != 50 || cfg.Chunking.MinChunkSize != 100 {
		t.Errorf("chunking defaults: got %+v", cfg.Chunking)
	}
	if cfg.Retrieval.SimilarityThreshold != 0.3 {
		t.Errorf("default threshold: got %f", cfg.Retrieval.SimilarityThreshold)
	}
	if cfg.Embedding.Provider != ProviderHash || cfg.Embedding.Dimensions != 384 {
		t.Errorf("embedding defaults: got %+v", cfg.Embedding)
	}
	if len(cfg.Corpus.Extensions) != 5 || cfg.Corpus.Extensions[0] != ".pdf" {
		t.Errorf("corpus extensions: got %v", cfg.Corpus.Extensions)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidate_unknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Provider = "openai"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := Default()
	cfg.Server.Port = 9090
	cfg.Storage.DatabasePath = "/tmp/db"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
