package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/ripple/internal/queue"
	"github.com/OFFIS-RIT/ripple/pkg/analyzer"
	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/logger"
)

// IngestedHandler merges articles announced on queue.TopicIngested into
// the analyzer. Articles it already holds are skipped.
func IngestedHandler(a *analyzer.Analyzer) queue.Handler {
	return func(ctx context.Context, body []byte) error {
		var msg queue.IngestMsg
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("failed to decode ingested message: %w", err)
		}
		_, err := a.Ingest(ctx, msg.Article)
		if errors.Is(err, common.ErrDuplicateArticle) {
			logger.Debug("[Server] Article already ingested", "id", msg.Article.ID)
			return nil
		}
		return err
	}
}
