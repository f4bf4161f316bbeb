package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/argus/app/database"
)

type Ingester interface {
	Run(ctx context.Context) ([]database.Article, error)
}

// IngestTask pulls every enabled feed source once. onCreated, when set, is
// called for each newly stored article.
type IngestTask struct {
	Task
	ingester  Ingester
	onCreated func(article database.Article)
}

func NewIngestTask(ingester Ingester, onCreated func(article database.Article)) *IngestTask {
	return &IngestTask{
		Task:      NewTask(TaskTypeIngest, "all"),
		ingester:  ingester,
		onCreated: onCreated,
	}
}

func (t *IngestTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	created, err := t.ingester.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to ingest articles: %w", err)
	}

	if t.onCreated != nil {
		for _, article := range created {
			t.onCreated(article)
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"new", len(created))

	return nil
}
