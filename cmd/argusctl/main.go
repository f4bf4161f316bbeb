package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/lysyi3m/argus/app/cfg"
	"github.com/lysyi3m/argus/app/database"
	"github.com/lysyi3m/argus/app/enrichment"
	"github.com/lysyi3m/argus/app/feed"
	"github.com/lysyi3m/argus/app/ingest"
	"github.com/lysyi3m/argus/app/ioc"
	"github.com/lysyi3m/argus/app/logging"
	"github.com/lysyi3m/argus/app/pipeline"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "argusctl",
		Short:        "Argus - threat intelligence article pipeline",
		Long:         "Runs Argus operations against the local database. Configuration is read from the same environment variables as the server.",
		Version:      cfg.GetVersion(),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(processAllCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(sourceCmd())

	return rootCmd
}

// app holds the components a command needs. Close releases the database.
type app struct {
	cfg          *cfg.Cfg
	db           *database.DB
	articles     *database.SQLArticleRepository
	sources      *feed.ConfigCache
	extractor    *ioc.Extractor
	collector    *ingest.Collector
	orchestrator *pipeline.Orchestrator
}

func newApp() (*app, error) {
	appCfg, err := cfg.Load([]string{})
	if err != nil {
		return nil, err
	}

	logging.Setup(appCfg.Debug)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return nil, err
	}
	if _, _, err := database.RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	sources := feed.NewConfigCache(appCfg.FeedsDir)
	if err := sources.Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load feed sources: %w", err)
	}

	articles := database.NewArticleRepository(db)
	extractor := ioc.NewExtractor()
	capability := enrichment.NewCapability(enrichment.Config{
		APIKey:   appCfg.GroqAPIKey,
		Endpoint: appCfg.GroqBaseURL,
		Model:    appCfg.GroqModel,
		Timeout:  appCfg.EnrichmentTimeoutDuration(),
	})

	return &app{
		cfg:       appCfg,
		db:        db,
		articles:  articles,
		sources:   sources,
		extractor: extractor,
		collector: ingest.NewCollector(sources, feed.NewFetcher(&http.Client{}, appCfg.UserAgent), articles),
		orchestrator: pipeline.NewOrchestrator(articles, capability, extractor,
			pipeline.WithSummaryMaxLength(appCfg.SummaryMaxLength),
			pipeline.WithBatchWorkers(appCfg.BatchWorkers),
		),
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
