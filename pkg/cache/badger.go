package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/ripple/pkg/common"

	"github.com/dgraph-io/badger/v4"
)

// Badger persists cache entries in a badger database and relies on
// badger's native TTL for expiry.
type Badger struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadger opens the database at dir, or an in-memory one when dir is
// empty.
func NewBadger(dir string, ttl time.Duration) (*Badger, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open relationship cache: %w", err)
	}
	return &Badger{db: db, ttl: ttl}, nil
}

func (b *Badger) Get(ctx context.Context, key Key) ([]common.Relationship, bool, error) {
	var rels []common.Relationship
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key.String()))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rels)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if rels == nil {
		rels = []common.Relationship{}
	}
	return rels, true, nil
}

func (b *Badger) Set(ctx context.Context, key Key, rels []common.Relationship) error {
	if rels == nil {
		rels = []common.Relationship{}
	}
	data, err := json.Marshal(rels)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key.String()), data).WithTTL(b.ttl))
	})
}

func (b *Badger) Close() error {
	return b.db.Close()
}
