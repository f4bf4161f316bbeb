package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lysyi3m/argus/app/pipeline"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch every enabled feed source and store new articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.collector.Run(cmd.Context())
			if err != nil {
				return err
			}

			process, _ := cmd.Flags().GetBool("process")
			if !process {
				return printJSON(cmd, map[string]any{"new_articles": len(created)})
			}

			results := make([]pipeline.Result, 0, len(created))
			for _, article := range created {
				results = append(results, a.orchestrator.Process(cmd.Context(), article.ID))
				a.orchestrator.ExtractIndicators(cmd.Context(), article.ID)
			}
			return printJSON(cmd, map[string]any{"new_articles": len(created), "results": results})
		},
	}

	cmd.Flags().BoolP("process", "p", false, "Enrich and extract indicators for the new articles")

	return cmd
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process [article-id]",
		Short: "Summarize and classify one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.orchestrator.Process(cmd.Context(), args[0])
			if err := printJSON(cmd, result); err != nil {
				return err
			}
			return outcomeError(result.Outcome, result.Error)
		},
	}
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [article-id]",
		Short: "Extract indicators of compromise from one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.orchestrator.ExtractIndicators(cmd.Context(), args[0])
			if err := printJSON(cmd, result); err != nil {
				return err
			}
			return outcomeError(result.Outcome, result.Error)
		},
	}
}

func processAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process-all",
		Short: "Summarize and classify every stored article",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.orchestrator.ProcessBatch(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and article statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.articles.GetArticleStats(cmd.Context())
			if err != nil {
				return err
			}

			sources := make([]string, 0, a.sources.GetConfigCount())
			for _, source := range a.sources.GetEnabledConfigs() {
				sources = append(sources, source.Name)
			}

			return printJSON(cmd, map[string]any{
				"version":        a.cfg.Version,
				"database":       a.cfg.DBPath,
				"ai_processing":  a.orchestrator.EnrichmentEnabled(),
				"ioc_extraction": true,
				"ioc_categories": a.extractor.Categories(),
				"sources":        sources,
				"articles":       stats,
			})
		},
	}
}

func sourceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "source [name]",
		Short: "Show the loaded configuration of one feed source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			source, err := a.sources.GetConfig(args[0])
			if err != nil {
				return err
			}

			return printJSON(cmd, map[string]any{
				"name":            source.Name,
				"url":             source.URL,
				"source":          source.SourceLabel(),
				"enabled":         source.Settings.Enabled,
				"max_items":       source.Settings.MaxItems,
				"timeout":         source.Settings.Timeout,
				"extract_content": source.Settings.ExtractContent,
				"filters":         len(source.Filters),
			})
		},
	}
}

func outcomeError(outcome pipeline.Outcome, message string) error {
	switch outcome {
	case pipeline.OutcomeNotFound:
		return fmt.Errorf("article not found")
	case pipeline.OutcomeFailed:
		return fmt.Errorf("operation failed: %s", message)
	}
	return nil
}
