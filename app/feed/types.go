package feed

import (
	"time"
)

// Feed processing types
type Metadata struct {
	Title       string
	Link        string
	Description string
	Language    string
}

type Item struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt *time.Time // nil when the entry carries no parseable date
	Authors     []string   // "email (name)" or "name"
	Categories  []string
}

// Configuration types
type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Source   string         `yaml:"source"` // provenance label stored on articles
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled        bool `yaml:"enabled"`
	MaxItems       int  `yaml:"max_items"`
	Timeout        int  `yaml:"timeout"`         // seconds
	ExtractContent bool `yaml:"extract_content"` // fetch full article when the entry has no content
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// SourceLabel is the configured source, falling back to the feed name.
func (c *Config) SourceLabel() string {
	if c.Source != "" {
		return c.Source
	}
	return c.Name
}
