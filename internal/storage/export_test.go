package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/graph"
)

type memoryUploader struct {
	files map[string][]byte
	err   error
}

func (m *memoryUploader) PutFile(ctx context.Context, key string, file io.ReadSeeker) error {
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	m.files[key] = data
	return nil
}

func TestSnapshotKey(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	if got := SnapshotKey("", at); got != "snapshots/graph-20240301T083000Z.json" {
		t.Fatalf("got %q", got)
	}
	if got := SnapshotKey("prod", at); got != "prod/snapshots/graph-20240301T083000Z.json" {
		t.Fatalf("got %q", got)
	}
}

func TestExportSnapshot(t *testing.T) {
	g := graph.NewCausationGraph(graph.NewGraphParams{})
	g.AddNode(common.Article{ID: "A", Title: "Ford stock drop"})
	g.AddNode(common.Article{ID: "B", Title: "Mexican peso decline"})
	if err := g.AddRelationship(common.Relationship{
		SourceID: "A", TargetID: "B", Type: common.ImpactsFinance, Confidence: 0.92, ImpactLevel: common.Primary,
	}); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}

	up := &memoryUploader{files: map[string][]byte{}}
	if err := ExportSnapshot(context.Background(), up, "graph.json", g.Snapshot()); err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	var got graph.Snapshot
	if err := json.Unmarshal(up.files["graph.json"], &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got.Nodes) != 2 || len(got.Edges) != 1 || got.Edges[0].TargetID != "B" {
		t.Fatalf("snapshot = %+v", got)
	}

	failing := &memoryUploader{err: errors.New("bucket gone")}
	if err := ExportSnapshot(context.Background(), failing, "graph.json", g.Snapshot()); err == nil {
		t.Fatalf("expected upload error")
	}
}
