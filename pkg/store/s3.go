package store

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/logger"
)

// ObjectReader is the subset of bucket operations S3Source needs.
type ObjectReader interface {
	GetFile(ctx context.Context, key string) ([]byte, error)
	ListFilesWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// S3Source loads every corpus document under Prefix and concatenates the
// articles in key order. Keys not ending in .json are skipped.
type S3Source struct {
	Bucket ObjectReader
	Prefix string
}

func (s S3Source) Load(ctx context.Context) ([]common.Article, error) {
	keys, err := s.Bucket.ListFilesWithPrefix(ctx, s.Prefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	articles := []common.Article{}
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		data, err := s.Bucket.GetFile(ctx, key)
		if err != nil {
			return nil, err
		}
		batch, err := DecodeCorpus(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		logger.Debug("[Store] Loaded corpus object", "key", key, "articles", len(batch))
		articles = append(articles, batch...)
	}
	return articles, nil
}
