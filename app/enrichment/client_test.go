package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newChatServer(t *testing.T, handler func(req chatRequest) (int, string)) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected bearer token, got '%s'", r.Header.Get("Authorization"))
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}

		status, reply := handler(req)
		w.WriteHeader(status)
		if status >= http.StatusBadRequest {
			fmt.Fprint(w, reply)
			return
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	return server
}

func newTestClient(endpoint string) *Client {
	return NewClient(Config{
		APIKey:   "test-key",
		Endpoint: endpoint,
		Model:    "test-model",
		Timeout:  5 * time.Second,
	})
}

func TestClient_Summarize_TruncatesReply(t *testing.T) {
	server := newChatServer(t, func(req chatRequest) (int, string) {
		if req.Model != "test-model" {
			t.Errorf("Expected model 'test-model', got '%s'", req.Model)
		}
		return http.StatusOK, "  " + strings.Repeat("a", 300) + "  "
	})

	summary := newTestClient(server.URL).Summarize(context.Background(), "Ransomware hits hospitals", 150)

	if len(summary) != 150 {
		t.Errorf("Expected summary length 150, got %d", len(summary))
	}
}

func TestClient_Summarize_BoundsInput(t *testing.T) {
	server := newChatServer(t, func(req chatRequest) (int, string) {
		user := req.Messages[len(req.Messages)-1].Content
		if strings.Count(user, "x") != summaryInputLimit {
			t.Errorf("Expected %d content characters sent, got %d", summaryInputLimit, strings.Count(user, "x"))
		}
		return http.StatusOK, "short"
	})

	summary := newTestClient(server.URL).Summarize(context.Background(), strings.Repeat("x", 5000), 150)

	if summary != "short" {
		t.Errorf("Expected 'short', got '%s'", summary)
	}
}

func TestClient_Summarize_EmptyContent(t *testing.T) {
	summary := newTestClient("http://127.0.0.1:1").Summarize(context.Background(), "   ", 150)

	if summary != "No content available for summary" {
		t.Errorf("Expected empty-content placeholder, got '%s'", summary)
	}
}

func TestClient_Summarize_FailureReturnsPlaceholder(t *testing.T) {
	server := newChatServer(t, func(req chatRequest) (int, string) {
		return http.StatusInternalServerError, "upstream exploded"
	})

	summary := newTestClient(server.URL).Summarize(context.Background(), "content", 150)

	if !strings.HasPrefix(summary, "Summary unavailable: ") {
		t.Errorf("Expected placeholder summary, got '%s'", summary)
	}
	if !strings.Contains(summary, "upstream exploded") {
		t.Errorf("Expected placeholder to embed the failure reason, got '%s'", summary)
	}
}

func TestClient_Classify_ParsesJSON(t *testing.T) {
	server := newChatServer(t, func(req chatRequest) (int, string) {
		return http.StatusOK, `{"threat_type": "ransomware", "severity": "critical", "confidence": 0.92}`
	})

	result := newTestClient(server.URL).Classify(context.Background(), "LockBit returns", "body")

	if result.ThreatType != "ransomware" {
		t.Errorf("Expected threat type 'ransomware', got '%s'", result.ThreatType)
	}
	if result.Severity != "critical" {
		t.Errorf("Expected severity 'critical', got '%s'", result.Severity)
	}
	if result.Confidence != 0.92 {
		t.Errorf("Expected confidence 0.92, got %v", result.Confidence)
	}
}

func TestClient_Classify_UnparsableReturnsFallback(t *testing.T) {
	server := newChatServer(t, func(req chatRequest) (int, string) {
		return http.StatusOK, "I think this is about ransomware."
	})

	result := newTestClient(server.URL).Classify(context.Background(), "title", "body")

	if result != FallbackClassification {
		t.Errorf("Expected fallback classification, got %+v", result)
	}
}

func TestClient_Classify_TransportErrorReturnsFallback(t *testing.T) {
	server := newChatServer(t, func(req chatRequest) (int, string) {
		return http.StatusOK, "{}"
	})
	server.Close()

	result := newTestClient(server.URL).Classify(context.Background(), "title", "body")

	if result != FallbackClassification {
		t.Errorf("Expected fallback classification, got %+v", result)
	}
}

func TestParseClassification_CodeFenceAndNormalization(t *testing.T) {
	reply := "```json\n{\"threat_type\": \"Spyware\", \"severity\": \"HIGH\", \"confidence\": 1.7}\n```"

	result, err := ParseClassification(reply)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.ThreatType != "other" {
		t.Errorf("Expected unknown threat type mapped to 'other', got '%s'", result.ThreatType)
	}
	if result.Severity != "high" {
		t.Errorf("Expected severity 'high', got '%s'", result.Severity)
	}
	if result.Confidence != 1.0 {
		t.Errorf("Expected confidence clamped to 1.0, got %v", result.Confidence)
	}
}

func TestParseClassification_LowConfidenceClamped(t *testing.T) {
	result, err := ParseClassification(`{"threat_type": "apt", "severity": "medium", "confidence": 0.1}`)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Confidence != 0.5 {
		t.Errorf("Expected confidence clamped to 0.5, got %v", result.Confidence)
	}
}

func TestNewCapability(t *testing.T) {
	if NewCapability(Config{}).Enabled() {
		t.Error("Expected capability to be disabled without an API key")
	}
	if NewCapability(Config{APIKey: "your-groq-key"}).Enabled() {
		t.Error("Expected capability to be disabled with the placeholder key")
	}

	capability := NewCapability(Config{APIKey: "real-key"})
	enricher, ok := capability.Enricher()
	if !ok || enricher == nil {
		t.Error("Expected capability to be available with an API key")
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	if got := truncate("héllo wörld", 4); got != "héll" {
		t.Errorf("Expected 'héll', got '%s'", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Errorf("Expected 'abc', got '%s'", got)
	}
}
