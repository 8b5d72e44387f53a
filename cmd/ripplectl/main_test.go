package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/OFFIS-RIT/ripple/pkg/common"
)

const corpus = `{"articles": [
  {"id": "1", "title": "OPEC cuts output", "timestamp": "2024-03-01T09:00:00Z", "category": "Energy", "entities": ["OPEC"]},
  {"id": "2", "title": "Oil prices spike", "timestamp": "2024-03-02T09:00:00Z", "category": "Energy"}
]}`

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func execute(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "articles.json")
	if err := os.WriteFile(path, []byte(corpus), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("RIPPLE_CONFIG", "")
	t.Setenv("CLASSIFIER_RATE", "0")
	t.Setenv("CACHE_BACKEND", "memory")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--corpus", path, "--adapter", "none"))
	err := rootCmd.ExecuteContext(context.Background())
	return out.Bytes(), err
}

func TestStatsCommand(t *testing.T) {
	var stats struct {
		TotalNodes int `json:"total_nodes"`
		Causal     struct {
			Nodes int `json:"nodes"`
			Edges int `json:"edges"`
		} `json:"causation_graph"`
	}
	if err := json.Unmarshal(run(t, "stats"), &stats); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if stats.Causal.Nodes != 2 || stats.Causal.Edges != 0 {
		t.Fatalf("causal stats = %+v", stats.Causal)
	}
	// 2 events, 1 entity, 1 category
	if stats.TotalNodes != 4 {
		t.Fatalf("total nodes = %d, want 4", stats.TotalNodes)
	}
}

func TestChainCommand_NoRelationships(t *testing.T) {
	var chains []json.RawMessage
	if err := json.Unmarshal(run(t, "chain", "opec"), &chains); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if chains == nil || len(chains) != 0 {
		t.Fatalf("expected empty list, got %v", chains)
	}
}

func TestPredictCommand_Query(t *testing.T) {
	t.Cleanup(func() { predictFlags.query = "" })

	tests := []struct {
		query string
		empty bool
	}{
		{query: "opec cuts", empty: false},
		{query: "wheat harvest", empty: true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var preds []json.RawMessage
			if err := json.Unmarshal(run(t, "predict", "--query", tt.query), &preds); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if preds == nil {
				t.Fatal("expected a JSON list")
			}
			if tt.empty && len(preds) != 0 {
				t.Fatalf("expected no predictions, got %d", len(preds))
			}
		})
	}
}

func TestEnqueueCommand_NeedsQueue(t *testing.T) {
	t.Setenv("RABBITMQ_HOST", "")
	path := filepath.Join(t.TempDir(), "incoming.json")
	if err := os.WriteFile(path, []byte(corpus), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := execute(t, "enqueue", path); !errors.Is(err, common.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}
