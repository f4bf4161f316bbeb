package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/argus/app/database"
	"github.com/lysyi3m/argus/app/enrichment"
	"github.com/lysyi3m/argus/app/ioc"
	"github.com/lysyi3m/argus/app/metrics"
)

// ArticleStore is the store contract the pipeline depends on.
type ArticleStore interface {
	GetArticle(ctx context.Context, id string) (*database.Article, error)
	UpdateArticle(ctx context.Context, id string, update database.ArticleUpdate) (*database.Article, error)
	ListAllArticles(ctx context.Context) ([]database.Article, error)
}

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeFailed    Outcome = "failed"
	OutcomeDisabled  Outcome = "disabled"
)

// Result reports a single-article enrichment.
type Result struct {
	ArticleID      string                     `json:"article_id"`
	Outcome        Outcome                    `json:"outcome"`
	Summary        string                     `json:"summary,omitempty"`
	Classification *enrichment.Classification `json:"classification,omitempty"`
	Error          string                     `json:"error,omitempty"`
}

// IndicatorResult reports a single-article IOC extraction.
type IndicatorResult struct {
	ArticleID  string         `json:"article_id"`
	Outcome    Outcome        `json:"outcome"`
	Count      int            `json:"iocs_found"`
	Indicators ioc.Indicators `json:"iocs,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type FailedArticle struct {
	ArticleID string `json:"article_id"`
	Error     string `json:"error"`
}

// BatchReport folds per-article outcomes of a batch run.
type BatchReport struct {
	EnrichmentEnabled bool            `json:"ai_enabled"`
	TotalArticles     int             `json:"total_articles"`
	ProcessedArticles int             `json:"processed_articles"`
	FailedArticles    []FailedArticle `json:"failed_articles"`
}

type Orchestrator struct {
	store            ArticleStore
	capability       enrichment.Capability
	extractor        *ioc.Extractor
	summaryMaxLength int
	batchWorkers     int
}

type Option func(*Orchestrator)

func WithSummaryMaxLength(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.summaryMaxLength = n
		}
	}
}

// WithBatchWorkers bounds how many articles ProcessBatch enriches at once.
func WithBatchWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchWorkers = n
		}
	}
}

func NewOrchestrator(store ArticleStore, capability enrichment.Capability, extractor *ioc.Extractor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:            store,
		capability:       capability,
		extractor:        extractor,
		summaryMaxLength: enrichment.DefaultSummaryMaxLength,
		batchWorkers:     1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) EnrichmentEnabled() bool {
	return o.capability.Enabled()
}

// Process summarizes and classifies one article and stores the result.
func (o *Orchestrator) Process(ctx context.Context, id string) Result {
	result := o.process(ctx, id)
	metrics.ArticleOutcomes.WithLabelValues("process", string(result.Outcome)).Inc()
	return result
}

func (o *Orchestrator) process(ctx context.Context, id string) Result {
	enricher, ok := o.capability.Enricher()
	if !ok {
		return Result{ArticleID: id, Outcome: OutcomeDisabled}
	}

	article, err := o.store.GetArticle(ctx, id)
	if err != nil {
		return failed(id, fmt.Errorf("failed to load article: %w", err))
	}
	if article == nil {
		return Result{ArticleID: id, Outcome: OutcomeNotFound}
	}

	input := article.Content
	if input == "" {
		input = article.Title
	}

	summary := enricher.Summarize(ctx, input, o.summaryMaxLength)
	classification := enricher.Classify(ctx, article.Title, article.Content)

	updated, err := o.store.UpdateArticle(ctx, id, database.ArticleUpdate{
		Summary:    &summary,
		ThreatType: &classification.ThreatType,
		Severity:   &classification.Severity,
	})
	if err != nil {
		return failed(id, fmt.Errorf("failed to save enrichment: %w", err))
	}
	if updated == nil {
		return Result{ArticleID: id, Outcome: OutcomeNotFound}
	}

	slog.Debug("Article processed", "article_id", id, "threat_type", classification.ThreatType, "severity", classification.Severity)

	return Result{
		ArticleID:      id,
		Outcome:        OutcomeSucceeded,
		Summary:        summary,
		Classification: &classification,
	}
}

// ExtractIndicators scans title and content for IOCs and stores the mapping.
func (o *Orchestrator) ExtractIndicators(ctx context.Context, id string) IndicatorResult {
	result := o.extractIndicators(ctx, id)
	metrics.ArticleOutcomes.WithLabelValues("extract", string(result.Outcome)).Inc()
	return result
}

func (o *Orchestrator) extractIndicators(ctx context.Context, id string) IndicatorResult {
	article, err := o.store.GetArticle(ctx, id)
	if err != nil {
		return IndicatorResult{ArticleID: id, Outcome: OutcomeFailed, Error: fmt.Sprintf("failed to load article: %v", err)}
	}
	if article == nil {
		return IndicatorResult{ArticleID: id, Outcome: OutcomeNotFound}
	}

	indicators := o.extractor.Run(article.Title + " " + article.Content)

	updated, err := o.store.UpdateArticle(ctx, id, database.ArticleUpdate{IOCs: indicators})
	if err != nil {
		return IndicatorResult{ArticleID: id, Outcome: OutcomeFailed, Error: fmt.Sprintf("failed to save indicators: %v", err)}
	}
	if updated == nil {
		return IndicatorResult{ArticleID: id, Outcome: OutcomeNotFound}
	}

	for category, values := range indicators {
		metrics.IndicatorsExtracted.WithLabelValues(category).Add(float64(len(values)))
	}

	return IndicatorResult{
		ArticleID:  id,
		Outcome:    OutcomeSucceeded,
		Count:      indicators.Count(),
		Indicators: indicators,
	}
}

// ProcessBatch enriches every stored article. One article failing does not
// stop the others; failures are reported in listing order.
func (o *Orchestrator) ProcessBatch(ctx context.Context) (BatchReport, error) {
	report := BatchReport{
		EnrichmentEnabled: o.capability.Enabled(),
		FailedArticles:    []FailedArticle{},
	}
	if !report.EnrichmentEnabled {
		return report, nil
	}

	start := time.Now()
	defer func() { metrics.BatchDuration.Observe(time.Since(start).Seconds()) }()

	articles, err := o.store.ListAllArticles(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list articles: %w", err)
	}
	report.TotalArticles = len(articles)

	results := make([]Result, len(articles))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range min(o.batchWorkers, max(len(articles), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = o.Process(ctx, articles[i].ID)
			}
		}()
	}

	for i := range articles {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, result := range results {
		switch result.Outcome {
		case OutcomeSucceeded:
			report.ProcessedArticles++
		case OutcomeNotFound:
			// Deleted after listing.
			report.FailedArticles = append(report.FailedArticles, FailedArticle{ArticleID: result.ArticleID, Error: "article not found"})
		default:
			report.FailedArticles = append(report.FailedArticles, FailedArticle{ArticleID: result.ArticleID, Error: result.Error})
		}
	}

	slog.Info("Batch processing completed",
		"total", report.TotalArticles,
		"processed", report.ProcessedArticles,
		"failed", len(report.FailedArticles),
		"duration", time.Since(start))

	return report, nil
}

func failed(id string, err error) Result {
	slog.Error("Article processing failed", "article_id", id, "error", err)
	return Result{ArticleID: id, Outcome: OutcomeFailed, Error: err.Error()}
}
