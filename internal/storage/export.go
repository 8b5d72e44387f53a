package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/OFFIS-RIT/ripple/pkg/graph"
)

type Uploader interface {
	PutFile(ctx context.Context, key string, file io.ReadSeeker) error
}

// SnapshotKey names a graph snapshot taken at t.
func SnapshotKey(prefix string, t time.Time) string {
	key := fmt.Sprintf("snapshots/graph-%s.json", t.UTC().Format("20060102T150405Z"))
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// ExportSnapshot uploads snap as JSON under key.
func ExportSnapshot(ctx context.Context, up Uploader, key string, snap graph.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := up.PutFile(ctx, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to export snapshot %s: %w", key, err)
	}
	return nil
}
