package enrichment

import "context"

const (
	DefaultSummaryMaxLength = 150

	summaryInputLimit  = 3000
	classifyInputLimit = 2000
)

var ThreatTypes = []string{
	"ransomware", "phishing", "vulnerability", "zero-day", "apt",
	"malware", "ddos", "data-breach", "other",
}

var Severities = []string{
	"critical", "high", "medium", "low", "informational",
}

// Classification is the categorical judgment attached to an article.
type Classification struct {
	ThreatType string  `json:"threat_type"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
}

// FallbackClassification is returned whenever the service call or its
// response cannot be used.
var FallbackClassification = Classification{
	ThreatType: "other",
	Severity:   "informational",
	Confidence: 0.5,
}

// Enricher never fails: implementations absorb service errors into
// placeholder summaries and FallbackClassification.
type Enricher interface {
	Summarize(ctx context.Context, content string, maxLength int) string
	Classify(ctx context.Context, title, content string) Classification
}

// Capability records whether enrichment is configured for this process.
type Capability struct {
	enricher Enricher
}

func Available(e Enricher) Capability {
	return Capability{enricher: e}
}

func Unavailable() Capability {
	return Capability{}
}

// Enricher returns the configured enricher, or false when enrichment is disabled.
func (c Capability) Enricher() (Enricher, bool) {
	return c.enricher, c.enricher != nil
}

func (c Capability) Enabled() bool {
	return c.enricher != nil
}
