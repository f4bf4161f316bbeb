package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/argus/app/pipeline"
)

type ArticleProcessor interface {
	EnrichmentEnabled() bool
	Process(ctx context.Context, id string) pipeline.Result
	ExtractIndicators(ctx context.Context, id string) pipeline.IndicatorResult
}

// ProcessArticleTask enriches a freshly ingested article (when enrichment is
// available) and extracts its indicators. A retry skips steps that already
// succeeded.
type ProcessArticleTask struct {
	Task
	processor ArticleProcessor
	enriched  bool
	extracted bool
}

func NewProcessArticleTask(articleID string, processor ArticleProcessor) *ProcessArticleTask {
	return &ProcessArticleTask{
		Task:      NewTask(TaskTypeProcessArticle, articleID),
		processor: processor,
	}
}

func (t *ProcessArticleTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.enriched && t.processor.EnrichmentEnabled() {
		result := t.processor.Process(ctx, t.Subject)
		switch result.Outcome {
		case pipeline.OutcomeNotFound:
			slog.Debug("Article gone, skipping", "article_id", t.Subject)
			return nil
		case pipeline.OutcomeFailed:
			return fmt.Errorf("failed to process article: %s", result.Error)
		}
		t.enriched = true
	}

	if !t.extracted {
		result := t.processor.ExtractIndicators(ctx, t.Subject)
		switch result.Outcome {
		case pipeline.OutcomeNotFound:
			slog.Debug("Article gone, skipping", "article_id", t.Subject)
			return nil
		case pipeline.OutcomeFailed:
			return fmt.Errorf("failed to extract indicators: %s", result.Error)
		}
		t.extracted = true
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"article_id", t.Subject,
		"duration", t.GetDuration())

	return nil
}
