/*
Package store holds the article corpus in memory and loads it from files,
S3 buckets or Postgres.
*/
package store

import (
	"fmt"
	"sync"

	"github.com/OFFIS-RIT/ripple/pkg/common"
)

// ArticleStore is an insertion-ordered, concurrency-safe set of articles
// keyed by ID. Articles are immutable once added except for their
// embedding.
type ArticleStore struct {
	mu       sync.RWMutex
	order    []common.ArticleID
	articles map[common.ArticleID]common.Article
}

// NewArticleStore builds a store from articles. Duplicate IDs are rejected.
func NewArticleStore(articles []common.Article) (*ArticleStore, error) {
	s := &ArticleStore{
		order:    make([]common.ArticleID, 0, len(articles)),
		articles: make(map[common.ArticleID]common.Article, len(articles)),
	}
	for _, a := range articles {
		if err := s.Add(a); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add inserts a new article.
func (s *ArticleStore) Add(a common.Article) error {
	if a.ID == "" {
		return fmt.Errorf("article without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[a.ID]; ok {
		return fmt.Errorf("%w: %s", common.ErrDuplicateArticle, a.ID)
	}
	s.articles[a.ID] = a
	s.order = append(s.order, a.ID)
	return nil
}

// Get returns the article with id or common.ErrNotFound.
func (s *ArticleStore) Get(id common.ArticleID) (common.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return common.Article{}, fmt.Errorf("%w: %s", common.ErrNotFound, id)
	}
	return a, nil
}

func (s *ArticleStore) Has(id common.ArticleID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.articles[id]
	return ok
}

// All returns a snapshot of every article in insertion order.
func (s *ArticleStore) All() []common.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.Article, len(s.order))
	for i, id := range s.order {
		out[i] = s.articles[id]
	}
	return out
}

// IDs returns the article IDs in insertion order.
func (s *ArticleStore) IDs() []common.ArticleID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.ArticleID, len(s.order))
	copy(out, s.order)
	return out
}

func (s *ArticleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// SetEmbedding replaces the embedding of an existing article.
func (s *ArticleStore) SetEmbedding(id common.ArticleID, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrNotFound, id)
	}
	a.Embedding = embedding
	s.articles[id] = a
	return nil
}
