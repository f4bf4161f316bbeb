package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxBodySize = 10 << 20

// Fetcher performs GET requests for feed documents and article pages.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
}

func NewFetcher(httpClient *http.Client, userAgent string) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

// FetchFeed downloads a feed document.
func (f *Fetcher) FetchFeed(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	data, _, err := f.get(ctx, url, timeout)
	return data, err
}

// FetchPage downloads an HTML page; other content types are rejected.
func (f *Fetcher) FetchPage(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	data, contentType, err := f.get(ctx, url, timeout)
	if err != nil {
		return nil, err
	}

	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("content type is not HTML: %s", contentType)
	}

	return data, nil
}

func (f *Fetcher) get(ctx context.Context, url string, timeout time.Duration) ([]byte, string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
