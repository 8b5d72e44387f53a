/*
Package cache memoizes discovery results per (source article, result
limit) with a time-to-live.

Two backends exist: Memory, a bounded LRU, and Badger, which persists
entries across restarts. Both are safe for concurrent use; writers racing
on the same key store equivalent values, so the last write wins.
*/
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/ripple/pkg/common"
)

// DefaultTTL is how long a discovery result stays valid.
const DefaultTTL = 3600 * time.Second

// Key identifies one discovery call.
type Key struct {
	SourceID common.ArticleID
	Max      int
}

func (k Key) String() string {
	return fmt.Sprintf("relationships_%s_%d", k.SourceID, k.Max)
}

// RelationshipCache stores discovery results. Get reports a miss for
// absent and expired entries alike.
type RelationshipCache interface {
	Get(ctx context.Context, key Key) ([]common.Relationship, bool, error)
	Set(ctx context.Context, key Key, rels []common.Relationship) error
	Close() error
}

func cloneRelationships(rels []common.Relationship) []common.Relationship {
	out := make([]common.Relationship, len(rels))
	copy(out, rels)
	return out
}
