package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./argus.db" description:"SQLite database file"`
	FeedsDir string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed source files"`

	// HTTP API configuration
	Port         string `long:"port" env:"PORT" default:"8000" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://argus.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key protecting mutating endpoints (optional)"`

	// Enrichment configuration
	GroqAPIKey        string `long:"groq-api-key" env:"GROQ_API_KEY" description:"API key for the chat completions service; enrichment is disabled without it"`
	GroqBaseURL       string `long:"groq-base-url" env:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1/chat/completions" description:"Chat completions endpoint"`
	GroqModel         string `long:"groq-model" env:"GROQ_MODEL" default:"groq/compound-mini" description:"Model used for summaries and classification"`
	EnrichmentTimeout int    `long:"enrichment-timeout" env:"ENRICHMENT_TIMEOUT" default:"60" description:"Enrichment request timeout in seconds"`
	SummaryMaxLength  int    `long:"summary-max-length" env:"SUMMARY_MAX_LENGTH" default:"150" description:"Maximum summary length in characters"`

	// Background processing
	WorkerCount       int  `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SchedulerInterval int  `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"900" description:"Ingestion interval in seconds (0 disables)"`
	AutoProcess       bool `long:"auto-process" env:"AUTO_PROCESS" description:"Enrich and extract indicators for new articles in the background"`
	BatchWorkers      int  `long:"batch-workers" env:"BATCH_WORKERS" default:"1" description:"Articles enriched concurrently by a batch run"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Argus/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses args (and the environment) into the process configuration.
// It returns nil, nil when help was requested.
func Load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		FeedsDir:          raw.FeedsDir,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		APIAccessKey:      raw.APIAccessKey,
		GroqAPIKey:        raw.GroqAPIKey,
		GroqBaseURL:       raw.GroqBaseURL,
		GroqModel:         raw.GroqModel,
		EnrichmentTimeout: raw.EnrichmentTimeout,
		SummaryMaxLength:  raw.SummaryMaxLength,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		AutoProcess:       raw.AutoProcess,
		BatchWorkers:      raw.BatchWorkers,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

func validate(cfg *Cfg) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if cfg.SchedulerInterval < 0 {
		return fmt.Errorf("scheduler interval must be non-negative")
	}
	if cfg.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if cfg.BatchWorkers < 1 {
		return fmt.Errorf("batch workers must be at least 1")
	}
	if cfg.SummaryMaxLength < 1 {
		return fmt.Errorf("summary max length must be positive")
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	return nil
}
