package api

import (
	"context"

	"github.com/lysyi3m/argus/app/database"
	"github.com/lysyi3m/argus/app/feed"
	"github.com/lysyi3m/argus/app/pipeline"
	"github.com/lysyi3m/argus/app/tasks"
)

type GeneratorInterface interface {
	Run(channel feed.Channel, articles []database.Article) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type Ingester interface {
	Run(ctx context.Context) ([]database.Article, error)
}

type Pipeline interface {
	EnrichmentEnabled() bool
	Process(ctx context.Context, id string) pipeline.Result
	ExtractIndicators(ctx context.Context, id string) pipeline.IndicatorResult
	ProcessBatch(ctx context.Context) (pipeline.BatchReport, error)
}

type SourceCounter interface {
	GetConfigCount() int
}

type Options struct {
	BaseUrl      string
	Port         string
	APIAccessKey string
	Version      string
	AutoProcess  bool
}

type Handler struct {
	articles  database.ArticleRepository
	ingester  Ingester
	pipeline  Pipeline
	generator GeneratorInterface
	sources   SourceCounter
	scheduler tasks.TaskSchedulerInterface
	options   Options
}
