package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ArticlesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_articles_ingested_total",
			Help: "Articles created by feed ingestion",
		},
		[]string{"source"},
	)

	FeedFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_feed_failures_total",
			Help: "Feed sources skipped because they could not be fetched or parsed",
		},
		[]string{"feed"},
	)

	EnrichmentDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_enrichment_degraded_total",
			Help: "Enrichment calls answered with a fallback value",
		},
		[]string{"operation"},
	)

	ArticleOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_article_outcomes_total",
			Help: "Per-article processing outcomes",
		},
		[]string{"operation", "outcome"},
	)

	IndicatorsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_indicators_extracted_total",
			Help: "Indicators of compromise extracted, by category",
		},
		[]string{"category"},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_batch_duration_seconds",
			Help:    "Duration of batch enrichment runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)
