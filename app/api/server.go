package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer creates the HTTP engine with all routes configured
func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health", "/metrics"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	apiAccessKey := handler.options.APIAccessKey

	r.GET("/health", handler.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/articles", handler.ListArticles)
		v1.GET("/articles/:id", handler.GetArticle)
		v1.GET("/operations/status", handler.OperationsStatus)
		v1.GET("/batch/stats", handler.BatchStats)
		v1.GET("/feeds/intel.xml", handler.IntelFeed)
	}

	// Mutating endpoints require the access key when one is configured.
	mutating := v1.Group("")
	if apiAccessKey != "" {
		mutating.Use(authMiddleware(apiAccessKey))
		slog.Info("Mutating API endpoints require authentication")
	} else {
		slog.Warn("Mutating API endpoints are unauthenticated (API_ACCESS_KEY not set)")
	}
	{
		mutating.POST("/articles", handler.CreateArticle)
		mutating.PUT("/articles/:id", handler.UpdateArticle)
		mutating.DELETE("/articles/:id", handler.DeleteArticle)
		mutating.POST("/articles/:id/process", handler.ProcessArticle)
		mutating.POST("/articles/:id/extract-iocs", handler.ExtractIndicators)
		mutating.POST("/operations/fetch-articles", handler.FetchArticles)
		mutating.POST("/batch/process-all", handler.ProcessAll)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome to Argus Cybersecurity Threat Intelligence API",
			"version": handler.options.Version,
			"endpoints": gin.H{
				"articles":   "/api/v1/articles",
				"status":     "/api/v1/operations/status",
				"stats":      "/api/v1/batch/stats",
				"intel_feed": "/api/v1/feeds/intel.xml",
				"health":     "/health",
				"metrics":    "/metrics",
			},
			"api_status": gin.H{
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware accepts the key in X-API-Key or as a Bearer token.
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
