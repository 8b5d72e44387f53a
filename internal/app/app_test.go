package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/OFFIS-RIT/ripple/internal/config"
	"github.com/OFFIS-RIT/ripple/pkg/cache"
)

const corpus = `{"articles": [
  {"id": 1, "title": "OPEC cuts output", "timestamp": "2024-03-01T09:00:00Z", "category": "Energy", "entities": ["OPEC"]},
  {"id": 2, "title": "Oil prices spike", "timestamp": "2024-03-02T09:00:00Z", "category": "Energy"}
]}`

func TestOpen_FileCorpusWithoutModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.json")
	if err := os.WriteFile(path, []byte(corpus), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg := config.Default()
	cfg.AI.Adapter = "none"
	cfg.Corpus.Path = path
	cfg.Discovery.RateLimit = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	rt, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close()

	if rt.Client != nil || rt.Pool != nil || rt.Bucket != nil {
		t.Fatalf("unexpected backends opened: %+v", rt)
	}
	if rt.Store.Len() != 2 {
		t.Fatalf("expected 2 articles, got %d", rt.Store.Len())
	}
	if err := rt.Analyzer.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	stats, err := rt.Analyzer.GraphStatistics()
	if err != nil {
		t.Fatalf("GraphStatistics: %v", err)
	}
	if stats.Causal.Edges != 0 || stats.Causal.Nodes != 2 {
		t.Fatalf("causal stats = %+v", stats.Causal)
	}
}

func TestOpen_MissingCorpus(t *testing.T) {
	cfg := config.Default()
	cfg.AI.Adapter = "none"
	cfg.Corpus.Path = filepath.Join(t.TempDir(), "missing.json")
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for missing corpus")
	}
}

func TestNewCache(t *testing.T) {
	c, err := NewCache(config.CacheConfig{Backend: "none"})
	if err != nil || c != nil {
		t.Fatalf("none backend = (%v, %v)", c, err)
	}

	c, err = NewCache(config.CacheConfig{Backend: "memory", TTL: 60})
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := c.(*cache.Memory); !ok {
		t.Fatalf("expected memory cache, got %T", c)
	}

	c, err = NewCache(config.CacheConfig{Backend: "badger", Dir: t.TempDir(), TTL: 60})
	if err != nil {
		t.Fatalf("badger backend: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
