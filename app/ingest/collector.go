package ingest

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/lysyi3m/argus/app/database"
	"github.com/lysyi3m/argus/app/feed"
	"github.com/lysyi3m/argus/app/metrics"
)

// ArticleStore is the subset of the article repository ingestion needs.
type ArticleStore interface {
	GetArticleByURL(ctx context.Context, url string) (*database.Article, error)
	CreateArticleIfAbsent(ctx context.Context, article database.ArticleCreate) (*database.Article, bool, error)
}

type SourceProvider interface {
	GetEnabledConfigs() []*feed.Config
}

// Collector pulls entries from the configured feed sources and stores the
// ones whose URL is not known yet.
type Collector struct {
	sources   SourceProvider
	fetcher   *feed.Fetcher
	parser    *feed.Parser
	filterer  *feed.Filterer
	extractor *feed.ContentExtractor
	store     ArticleStore
}

func NewCollector(sources SourceProvider, fetcher *feed.Fetcher, store ArticleStore) *Collector {
	return &Collector{
		sources:   sources,
		fetcher:   fetcher,
		parser:    feed.NewParser(),
		filterer:  feed.NewFilterer(),
		extractor: feed.NewContentExtractor(),
		store:     store,
	}
}

// Run collects from every enabled source and saves new articles.
func (c *Collector) Run(ctx context.Context) ([]database.Article, error) {
	start := time.Now()

	candidates := c.Collect(ctx)
	created, err := c.SaveAll(ctx, candidates)
	if err != nil {
		return created, err
	}

	slog.Info("Ingestion completed",
		"collected", len(candidates),
		"new", len(created),
		"duration", time.Since(start))

	return created, nil
}

// Collect returns candidate articles from all enabled sources, in source name
// order. A source that cannot be fetched or parsed is logged and skipped.
func (c *Collector) Collect(ctx context.Context) []database.ArticleCreate {
	var candidates []database.ArticleCreate

	for _, source := range c.sources.GetEnabledConfigs() {
		if ctx.Err() != nil {
			break
		}

		items, err := c.collectSource(ctx, source)
		if err != nil {
			slog.Error("Feed source unavailable", "feed", source.Name, "url", source.URL, "error", err)
			metrics.FeedFailures.WithLabelValues(source.Name).Inc()
			continue
		}

		slog.Debug("Feed source collected", "feed", source.Name, "items", len(items))
		candidates = append(candidates, items...)
	}

	return candidates
}

func (c *Collector) collectSource(ctx context.Context, source *feed.Config) ([]database.ArticleCreate, error) {
	timeout := time.Duration(source.Settings.Timeout) * time.Second

	data, err := c.fetcher.FetchFeed(ctx, source.URL, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	_, items, err := c.parser.Run(data)
	if err != nil {
		return nil, err
	}

	items = c.filterer.Run(items, source)
	if limit := source.Settings.MaxItems; limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	candidates := make([]database.ArticleCreate, 0, len(items))
	for _, item := range items {
		link := normalize(item.Link)
		if link == "" {
			continue
		}

		title := normalize(item.Title)
		content := normalize(cmp.Or(item.Content, item.Description))
		if item.Content == "" && source.Settings.ExtractContent {
			content = cmp.Or(c.extractContent(ctx, link, timeout), content)
		}

		candidates = append(candidates, database.ArticleCreate{
			URL:           link,
			Title:         title,
			Content:       cmp.Or(content, title),
			Source:        source.SourceLabel(),
			PublishedDate: item.PublishedAt,
		})
	}

	return candidates, nil
}

func (c *Collector) extractContent(ctx context.Context, link string, timeout time.Duration) string {
	data, err := c.fetcher.FetchPage(ctx, link, timeout)
	if err != nil {
		slog.Warn("Failed to fetch article page", "url", link, "error", err)
		return ""
	}

	content, err := c.extractor.Run(data, link)
	if err != nil {
		slog.Warn("Failed to extract article content", "url", link, "error", err)
		return ""
	}

	return normalize(content)
}

// SaveAll creates the candidates whose URL is not stored yet and returns the
// created articles. Only inserts that took effect are returned, so a URL saved
// by a concurrent run is neither counted nor returned twice. A store error on
// one candidate is logged and skipped.
func (c *Collector) SaveAll(ctx context.Context, candidates []database.ArticleCreate) ([]database.Article, error) {
	var created []database.Article

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		existing, err := c.store.GetArticleByURL(ctx, candidate.URL)
		if err != nil {
			slog.Error("Failed to look up article", "url", candidate.URL, "error", err)
			continue
		}
		if existing != nil {
			continue
		}

		article, inserted, err := c.store.CreateArticleIfAbsent(ctx, candidate)
		if err != nil {
			slog.Error("Failed to save article", "url", candidate.URL, "error", err)
			continue
		}
		if !inserted {
			slog.Debug("Article stored by a concurrent run, skipping", "url", candidate.URL)
			continue
		}

		metrics.ArticlesIngested.WithLabelValues(candidate.Source).Inc()
		created = append(created, *article)
	}

	return created, nil
}

func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
