package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/ripple/pkg/ai"
	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/store"
)

// IngestMsg is the body of an ingest_queue message and of the
// article.ingested announcement.
type IngestMsg struct {
	Article common.Article `json:"article"`
}

// Saver persists an article.
type Saver interface {
	Save(ctx context.Context, a common.Article) error
}

// Locker runs fn while no other worker handles the same key.
type Locker interface {
	WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// IngestProcessor prepares incoming articles and announces them.
type IngestProcessor struct {
	Embedder  ai.Embedder
	Saver     Saver
	Publisher Publisher
	Locker    Locker
}

// Process cleans the article body, embeds and persists the article when
// the collaborators are set, then publishes it on TopicIngested.
func (p IngestProcessor) Process(ctx context.Context, body []byte) error {
	var msg IngestMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to decode ingest message: %w", err)
	}
	a := msg.Article
	a.ID = common.ArticleID(strings.TrimSpace(string(a.ID)))
	if a.ID == "" || strings.TrimSpace(a.Title) == "" {
		return errors.New("ingest message needs an article id and title")
	}

	if p.Locker == nil {
		return p.prepare(ctx, a)
	}
	return p.Locker.WithLease(ctx, "ingest:"+string(a.ID), func(ctx context.Context) error {
		return p.prepare(ctx, a)
	})
}

func (p IngestProcessor) prepare(ctx context.Context, a common.Article) error {
	a.Content = store.PlainText(a.Content)
	if err := store.EmbedArticle(ctx, &a, p.Embedder); err != nil {
		return err
	}
	if p.Saver != nil {
		if err := p.Saver.Save(ctx, a); err != nil {
			return err
		}
	}

	out, err := json.Marshal(IngestMsg{Article: a})
	if err != nil {
		return fmt.Errorf("failed to encode ingested message: %w", err)
	}
	if err := PublishTopic(ctx, p.Publisher, TopicIngested, out); err != nil {
		return err
	}
	log.Info("Prepared article", "id", a.ID, "embedded", len(a.Embedding) > 0)
	return nil
}

// EnqueueArticles publishes one ingest message per article on IngestQueue
// and returns how many were published before the first failure.
func EnqueueArticles(ctx context.Context, pub Publisher, articles []common.Article) (int, error) {
	for i, a := range articles {
		body, err := json.Marshal(IngestMsg{Article: a})
		if err != nil {
			return i, fmt.Errorf("failed to encode article %s: %w", a.ID, err)
		}
		if err := PublishFIFO(ctx, pub, IngestQueue, body); err != nil {
			return i, err
		}
	}
	log.Info("Enqueued articles", "count", len(articles))
	return len(articles), nil
}
