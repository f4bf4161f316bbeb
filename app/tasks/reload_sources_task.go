package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type SourceLoader interface {
	Run() error
	GetConfigCount() int
}

// ReloadSourcesTask re-reads the feed source files so edits are picked up
// without a restart. then runs after a successful reload.
type ReloadSourcesTask struct {
	Task
	loader SourceLoader
	then   func()
}

func NewReloadSourcesTask(loader SourceLoader, then func()) *ReloadSourcesTask {
	return &ReloadSourcesTask{
		Task:   NewTask(TaskTypeReloadSources, "all"),
		loader: loader,
		then:   then,
	}
}

func (t *ReloadSourcesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.loader.Run(); err != nil {
		return fmt.Errorf("failed to reload feed sources: %w", err)
	}

	slog.Debug("Task completed",
		"type", t.GetType(),
		"sources", t.loader.GetConfigCount(),
		"duration", t.GetDuration())

	if t.then != nil {
		t.then()
	}

	return nil
}
