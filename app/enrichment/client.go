package enrichment

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/argus/app/metrics"
)

const (
	DefaultEndpoint = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel    = "groq/compound-mini"

	placeholderAPIKey = "your-groq-key"
)

type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ Enricher = (*Client)(nil)

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		endpoint: endpoint,
		model:    model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewCapability builds a client only when a usable API key is configured.
func NewCapability(cfg Config) Capability {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" || key == placeholderAPIKey {
		slog.Info("AI enrichment disabled", "reason", "no API key configured")
		return Unavailable()
	}

	slog.Info("AI enrichment enabled", "model", cmp.Or(cfg.Model, DefaultModel))
	return Available(NewClient(cfg))
}

func (c *Client) Summarize(ctx context.Context, content string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultSummaryMaxLength
	}
	if strings.TrimSpace(content) == "" {
		return "No content available for summary"
	}

	reply, err := c.complete(ctx, []chatMessage{
		{Role: "system", Content: "You are a cybersecurity expert. Create a concise summary."},
		{Role: "user", Content: fmt.Sprintf("Summarize this in %d characters: %s", maxLength, truncate(PlainText(content), summaryInputLimit))},
	}, 120)
	if err != nil {
		slog.Warn("Summary generation failed", "error", err)
		metrics.EnrichmentDegraded.WithLabelValues("summarize").Inc()
		return fmt.Sprintf("Summary unavailable: %v", err)
	}

	return truncate(strings.TrimSpace(reply), maxLength)
}

func (c *Client) Classify(ctx context.Context, title, content string) Classification {
	prompt := fmt.Sprintf(`Analyze this cybersecurity article and return ONLY a JSON object with:
- threat_type: one of [%s]
- severity: one of [%s]
- confidence: number between 0.5 and 1.0

Title: %s
Content: %s

ONLY return valid JSON.`,
		strings.Join(ThreatTypes, ", "), strings.Join(Severities, ", "),
		title, truncate(PlainText(content), classifyInputLimit))

	reply, err := c.complete(ctx, []chatMessage{
		{Role: "system", Content: "You are a cybersecurity analyst."},
		{Role: "user", Content: prompt},
	}, 200)
	if err != nil {
		slog.Warn("Threat classification failed", "error", err)
		metrics.EnrichmentDegraded.WithLabelValues("classify").Inc()
		return FallbackClassification
	}

	classification, err := ParseClassification(reply)
	if err != nil {
		slog.Warn("Threat classification unparsable", "error", err)
		metrics.EnrichmentDegraded.WithLabelValues("classify").Inc()
		return FallbackClassification
	}

	return classification
}

// ParseClassification decodes a model reply, tolerating Markdown code fences.
// Values outside the known sets are mapped to other/informational and the
// confidence is clamped into [0.5, 1.0].
func ParseClassification(reply string) (Classification, error) {
	body := strings.TrimSpace(reply)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	var parsed Classification
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return Classification{}, fmt.Errorf("failed to decode classification: %w", err)
	}

	parsed.ThreatType = strings.ToLower(strings.TrimSpace(parsed.ThreatType))
	if !slices.Contains(ThreatTypes, parsed.ThreatType) {
		parsed.ThreatType = FallbackClassification.ThreatType
	}

	parsed.Severity = strings.ToLower(strings.TrimSpace(parsed.Severity))
	if !slices.Contains(Severities, parsed.Severity) {
		parsed.Severity = FallbackClassification.Severity
	}

	if math.IsNaN(parsed.Confidence) {
		parsed.Confidence = FallbackClassification.Confidence
	}
	parsed.Confidence = min(max(parsed.Confidence, 0.5), 1.0)

	return parsed, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, messages []chatMessage, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("API error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("response contained no choices")
	}

	return decoded.Choices[0].Message.Content, nil
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
