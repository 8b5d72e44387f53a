package store

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/OFFIS-RIT/ripple/pkg/common"
)

type stubEmbedder struct {
	calls atomic.Int32
	err   error
}

func (s *stubEmbedder) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []float32{3, 4}, nil
}

func (s *stubEmbedder) GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{3, 4}
	}
	return out, nil
}

func TestAttachEmbeddings(t *testing.T) {
	articles := make([]common.Article, 70)
	for i := range articles {
		articles[i] = common.Article{ID: common.ArticleID(strconv.Itoa(i))}
	}
	articles[0].Embedding = []float32{1, 0}

	s, err := NewArticleStore(articles)
	if err != nil {
		t.Fatalf("NewArticleStore: %v", err)
	}
	emb := &stubEmbedder{}
	if err := AttachEmbeddings(context.Background(), s, emb); err != nil {
		t.Fatalf("AttachEmbeddings: %v", err)
	}

	// 69 missing articles in chunks of 32
	if got := emb.calls.Load(); got != 3 {
		t.Fatalf("expected 3 batch calls, got %d", got)
	}
	for _, a := range s.All()[1:] {
		if math.Abs(float64(a.Embedding[0])-0.6) > 1e-6 || math.Abs(float64(a.Embedding[1])-0.8) > 1e-6 {
			t.Fatalf("article %s not normalized: %v", a.ID, a.Embedding)
		}
	}
	first, _ := s.Get(articles[0].ID)
	if first.Embedding[0] != 1 {
		t.Fatalf("existing embedding overwritten")
	}
}

func TestAttachEmbeddings_NilEmbedder(t *testing.T) {
	s, _ := NewArticleStore([]common.Article{{ID: "a"}})
	if err := AttachEmbeddings(context.Background(), s, nil); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestAttachEmbeddings_Error(t *testing.T) {
	s, _ := NewArticleStore([]common.Article{{ID: "a"}})
	boom := errors.New("boom")
	if err := AttachEmbeddings(context.Background(), s, &stubEmbedder{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
