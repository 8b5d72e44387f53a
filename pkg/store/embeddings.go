package store

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/ripple/pkg/ai"
	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	embeddingChunkSize   = 32
	embeddingParallelism = 4
)

// ChunkRange calls fn for consecutive [start, end) windows of chunkSize
// over total items.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// EmbeddingText is the text embedded for an article.
func EmbeddingText(a common.Article) string {
	return a.Title + "\n\n" + a.Content
}

// AttachEmbeddings embeds every article in s that has no embedding yet and
// stores the L2-normalized vector. With a nil embedder it does nothing and
// similarity between articles stays at zero.
func AttachEmbeddings(ctx context.Context, s *ArticleStore, embedder ai.Embedder) error {
	if embedder == nil {
		return nil
	}

	var missing []common.Article
	for _, a := range s.All() {
		if len(a.Embedding) == 0 {
			missing = append(missing, a)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	logger.Info("[Store] Embedding articles", "count", len(missing))

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(embeddingParallelism)
	err := ChunkRange(len(missing), embeddingChunkSize, func(start, end int) error {
		chunk := missing[start:end]
		eg.Go(func() error {
			inputs := make([]string, len(chunk))
			for i, a := range chunk {
				inputs[i] = EmbeddingText(a)
			}
			vecs, err := embedder.GenerateEmbeddings(ectx, inputs)
			if err != nil {
				return fmt.Errorf("failed to embed articles: %w", err)
			}
			for i, a := range chunk {
				if i >= len(vecs) || len(vecs[i]) == 0 {
					continue
				}
				if err := s.SetEmbedding(a.ID, ai.Normalize(vecs[i])); err != nil {
					return err
				}
			}
			return nil
		})
		return nil
	})
	if err != nil {
		return err
	}
	return eg.Wait()
}

// EmbedArticle embeds a single article in place.
func EmbedArticle(ctx context.Context, a *common.Article, embedder ai.Embedder) error {
	if embedder == nil || len(a.Embedding) > 0 {
		return nil
	}
	vec, err := embedder.GenerateEmbedding(ctx, []byte(EmbeddingText(*a)))
	if err != nil {
		return fmt.Errorf("failed to embed article %s: %w", a.ID, err)
	}
	a.Embedding = ai.Normalize(vec)
	return nil
}
