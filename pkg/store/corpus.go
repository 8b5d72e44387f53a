package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/OFFIS-RIT/ripple/pkg/common"
)

// Corpus is the on-disk document shape {"articles": [...]}.
type Corpus struct {
	Articles []common.Article `json:"articles"`
}

// Source loads a corpus from some backing storage.
type Source interface {
	Load(ctx context.Context) ([]common.Article, error)
}

// DecodeCorpus reads a corpus document and returns its articles in
// document order. A document without articles yields an empty slice.
func DecodeCorpus(r io.Reader) ([]common.Article, error) {
	var c Corpus
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode corpus: %w", err)
	}
	if c.Articles == nil {
		return []common.Article{}, nil
	}
	return c.Articles, nil
}

// EncodeCorpus writes articles as a corpus document.
func EncodeCorpus(w io.Writer, articles []common.Article) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Corpus{Articles: articles})
}

// FileSource reads a corpus from a local JSON file.
type FileSource struct {
	Path string
}

func (f FileSource) Load(ctx context.Context) ([]common.Article, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus %s: %w", f.Path, err)
	}
	defer file.Close()
	return DecodeCorpus(file)
}

// Load fills a new ArticleStore from src.
func Load(ctx context.Context, src Source) (*ArticleStore, error) {
	articles, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewArticleStore(articles)
}
