package database

import (
	"time"

	"github.com/lysyi3m/argus/app/ioc"
)

// Article is a stored threat-intelligence article. Enrichment fields are nil
// until the corresponding processing step has run.
type Article struct {
	ID            string         `json:"id"`
	URL           string         `json:"url"`
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	Source        string         `json:"source"`
	PublishedDate *time.Time     `json:"published_date"`
	Summary       *string        `json:"summary"`
	ThreatType    *string        `json:"threat_type"`
	Severity      *string        `json:"severity"`
	IOCs          ioc.Indicators `json:"iocs"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     *time.Time     `json:"updated_at"`
}

type ArticleCreate struct {
	URL           string     `json:"url" binding:"required"`
	Title         string     `json:"title" binding:"required"`
	Content       string     `json:"content"`
	Source        string     `json:"source"`
	PublishedDate *time.Time `json:"published_date"`
}

// ArticleUpdate carries the fields to merge into an article; nil fields are left untouched.
type ArticleUpdate struct {
	Summary    *string        `json:"summary"`
	ThreatType *string        `json:"threat_type"`
	Severity   *string        `json:"severity"`
	IOCs       ioc.Indicators `json:"iocs"`
}

func (u ArticleUpdate) IsEmpty() bool {
	return u.Summary == nil && u.ThreatType == nil && u.Severity == nil && u.IOCs == nil
}

type ArticleFilter struct {
	Skip       int
	Limit      int
	ThreatType string
	Severity   string
	Source     string
	Query      string // substring of title or content
}

type ArticleStats struct {
	Total         int `json:"total_articles"`
	Processed     int `json:"processed_articles"`
	WithIndicator int `json:"articles_with_iocs"`
}
