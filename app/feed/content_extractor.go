package feed

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"

	"codeberg.org/readeck/go-readability"
)

// ContentExtractor pulls the main article body out of a full HTML page.
type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

// Run returns the readable HTML of the page. pageURL may be empty.
func (e *ContentExtractor) Run(data []byte, pageURL string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	var base *url.URL
	if pageURL != "" {
		parsed, err := url.Parse(pageURL)
		if err != nil {
			return "", fmt.Errorf("invalid page URL: %w", err)
		}
		base = parsed
	}

	article, err := readability.FromReader(bytes.NewReader(data), base)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	if article.Content == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Content extracted successfully",
		"url", pageURL,
		"content_length", len(article.Content))

	return article.Content, nil
}
