package cfg

import "time"

type Cfg struct {
	// Storage configuration
	DBPath   string
	FeedsDir string

	// HTTP API configuration
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Enrichment configuration
	GroqAPIKey        string
	GroqBaseURL       string
	GroqModel         string
	EnrichmentTimeout int
	SummaryMaxLength  int

	// Background processing
	WorkerCount       int
	SchedulerInterval int
	AutoProcess       bool
	BatchWorkers      int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) SchedulerIntervalDuration() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}

func (c *Cfg) EnrichmentTimeoutDuration() time.Duration {
	return time.Duration(c.EnrichmentTimeout) * time.Second
}
