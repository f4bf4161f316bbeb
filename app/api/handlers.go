package api

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/argus/app/database"
	"github.com/lysyi3m/argus/app/enrichment"
	"github.com/lysyi3m/argus/app/feed"
	"github.com/lysyi3m/argus/app/pipeline"
	"github.com/lysyi3m/argus/app/tasks"
)

const maxListLimit = 1000

// NewHandler wires the HTTP handlers. scheduler may be nil when background
// processing is not running.
func NewHandler(articles database.ArticleRepository, ingester Ingester, orchestrator Pipeline,
	sources SourceCounter, scheduler tasks.TaskSchedulerInterface, options Options) *Handler {
	return &Handler{
		articles:  articles,
		ingester:  ingester,
		pipeline:  orchestrator,
		generator: feed.NewGenerator(),
		sources:   sources,
		scheduler: scheduler,
		options:   options,
	}
}

func (h *Handler) ListArticles(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	articles, err := h.articles.ListArticles(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.Header("X-Total-Items", strconv.Itoa(len(articles)))
	c.JSON(http.StatusOK, articles)
}

func (h *Handler) GetArticle(c *gin.Context) {
	id := c.Param("id")

	article, err := h.articles.GetArticle(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_article", "article_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	c.JSON(http.StatusOK, article)
}

func (h *Handler) CreateArticle(c *gin.Context) {
	var input database.ArticleCreate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid article", "details": err.Error()})
		return
	}

	article, err := h.articles.CreateArticle(c.Request.Context(), input)
	if err != nil {
		slog.Error("Database error", "operation", "create_article", "url", input.URL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, article)
}

func (h *Handler) UpdateArticle(c *gin.Context) {
	id := c.Param("id")

	var update database.ArticleUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update", "details": err.Error()})
		return
	}
	if update.ThreatType != nil && !slices.Contains(enrichment.ThreatTypes, *update.ThreatType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid threat_type", "allowed": enrichment.ThreatTypes})
		return
	}
	if update.Severity != nil && !slices.Contains(enrichment.Severities, *update.Severity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid severity", "allowed": enrichment.Severities})
		return
	}

	article, err := h.articles.UpdateArticle(c.Request.Context(), id, update)
	if err != nil {
		slog.Error("Database error", "operation", "update_article", "article_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	c.JSON(http.StatusOK, article)
}

func (h *Handler) DeleteArticle(c *gin.Context) {
	id := c.Param("id")

	deleted, err := h.articles.DeleteArticle(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "delete_article", "article_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Article deleted successfully"})
}

func (h *Handler) FetchArticles(c *gin.Context) {
	created, err := h.ingester.Run(c.Request.Context())
	if err != nil {
		slog.Error("Ingestion failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to fetch articles: %v", err)})
		return
	}

	queued := 0
	if h.options.AutoProcess && h.scheduler != nil {
		for _, article := range created {
			if err := h.scheduler.EnqueueTask(tasks.NewProcessArticleTask(article.ID, h.pipeline)); err != nil {
				slog.Warn("Failed to enqueue ProcessArticleTask", "article_id", article.ID, "error", err)
				continue
			}
			queued++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      fmt.Sprintf("Successfully fetched %d new articles", len(created)),
		"new_articles": len(created),
		"queued":       queued,
	})
}

func (h *Handler) ProcessArticle(c *gin.Context) {
	id := c.Param("id")
	result := h.pipeline.Process(c.Request.Context(), id)

	switch result.Outcome {
	case pipeline.OutcomeDisabled:
		c.JSON(http.StatusOK, gin.H{
			"message":    "AI processing is currently disabled. Set GROQ_API_KEY to enable it.",
			"ai_enabled": false,
		})
	case pipeline.OutcomeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Article %s not found", id)})
	case pipeline.OutcomeFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to process article: %s", result.Error)})
	default:
		c.JSON(http.StatusOK, gin.H{
			"message":        fmt.Sprintf("Article %s processed successfully", id),
			"ai_enabled":     true,
			"summary":        result.Summary,
			"classification": result.Classification,
		})
	}
}

func (h *Handler) ExtractIndicators(c *gin.Context) {
	id := c.Param("id")
	result := h.pipeline.ExtractIndicators(c.Request.Context(), id)

	switch result.Outcome {
	case pipeline.OutcomeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Article %s not found", id)})
	case pipeline.OutcomeFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to extract IOCs: %s", result.Error)})
	default:
		c.JSON(http.StatusOK, gin.H{
			"message":    fmt.Sprintf("Extracted %d IOCs from article %s", result.Count, id),
			"iocs_found": result.Count,
			"iocs":       result.Indicators,
		})
	}
}

func (h *Handler) OperationsStatus(c *gin.Context) {
	enabled := h.pipeline.EnrichmentEnabled()

	message := "AI Processing: ENABLED"
	if !enabled {
		message = "AI Processing: DISABLED - Set GROQ_API_KEY to enable"
	}

	status := gin.H{
		"ai_processing":  enabled,
		"rss_feeds":      h.sources.GetConfigCount(),
		"ioc_extraction": true,
		"auto_process":   h.options.AutoProcess,
		"message":        message,
	}
	if h.scheduler != nil {
		status["queued_tasks"] = h.scheduler.QueueLength()
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) ProcessAll(c *gin.Context) {
	report, err := h.pipeline.ProcessBatch(c.Request.Context())
	if err != nil {
		slog.Error("Batch processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Batch processing failed: %v", err)})
		return
	}

	if !report.EnrichmentEnabled {
		c.JSON(http.StatusOK, gin.H{
			"message":    "AI processing is currently disabled.",
			"ai_enabled": false,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":            fmt.Sprintf("Batch processing completed. %d articles processed.", report.ProcessedArticles),
		"ai_enabled":         true,
		"total_articles":     report.TotalArticles,
		"processed_articles": report.ProcessedArticles,
		"failed_articles":    report.FailedArticles,
	})
}

func (h *Handler) BatchStats(c *gin.Context) {
	stats, err := h.articles.GetArticleStats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "article_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	percentage := 0.0
	if stats.Total > 0 {
		percentage = math.Round(float64(stats.Processed)/float64(stats.Total)*1000) / 10
	}

	c.JSON(http.StatusOK, gin.H{
		"total_articles":        stats.Total,
		"processed_articles":    stats.Processed,
		"articles_with_iocs":    stats.WithIndicator,
		"processing_percentage": percentage,
	})
}

// IntelFeed republishes stored articles as RSS, honoring the list filters.
func (h *Handler) IntelFeed(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	articles, err := h.articles.ListArticles(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "intel_feed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(feed.Channel{
		Link:     h.baseURL(),
		SelfLink: h.baseURL() + c.Request.URL.RequestURI(),
		Version:  h.options.Version,
	}, articles)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(articles)))
	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if stats, err := h.articles.GetArticleStats(c.Request.Context()); err == nil {
		health["articles"] = stats.Total
	} else {
		slog.Warn("Health check could not read article stats", "error", err)
		health["status"] = "degraded"
	}

	health["loaded_configurations"] = h.sources.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) baseURL() string {
	if h.options.BaseUrl != "" {
		return h.options.BaseUrl
	}
	return fmt.Sprintf("http://localhost:%s", h.options.Port)
}

func parseFilter(c *gin.Context) (database.ArticleFilter, error) {
	filter := database.ArticleFilter{
		ThreatType: c.Query("threat_type"),
		Severity:   c.Query("severity"),
		Source:     c.Query("source"),
		Query:      c.Query("q"),
	}

	var err error
	if filter.Skip, err = queryInt(c, "skip", 0); err != nil {
		return filter, err
	}
	if filter.Limit, err = queryInt(c, "limit", database.DefaultListLimit); err != nil {
		return filter, err
	}
	if filter.Limit == 0 || filter.Limit > maxListLimit {
		return filter, fmt.Errorf("limit must be between 1 and %d", maxListLimit)
	}

	return filter, nil
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return value, nil
}
