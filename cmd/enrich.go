package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/enrichment"
	"github.com/campusdata/admissions-crawler/internal/pipeline"
)

// newEnrichCmd creates and configures the 'enrich' subcommand.
func newEnrichCmd() *cobra.Command {
	var (
		provider string
		input    string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Enrich crawled records with an AI provider",
		Long: `Reads the crawl output and asks the configured AI provider to summarize
each university and structure its courses and deadlines. Records that fail
enrichment fall back to the deterministic simulation, so the output always
matches the input length.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnrichCommand(cmd, provider, input, output)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "enrichment provider: auto, groq, or claude (defaults to config)")
	cmd.Flags().StringVar(&input, "input", "", "crawl output to enrich (defaults to config)")
	cmd.Flags().StringVar(&output, "output", "", "enriched output path (defaults to config)")
	return cmd
}

func runEnrichCommand(cmd *cobra.Command, provider, input, output string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	cfg := appInstance.Config().Enrichment
	if provider == "" {
		provider = cfg.Provider
	}
	if input == "" {
		input = cfg.InputFile
	}
	if output == "" {
		output = cfg.OutputFile
	}

	records, err := pipeline.ReadRecords(input)
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}

	client, err := enrichment.NewClient(enrichment.Config{
		Provider:       provider,
		GroqAPIKey:     cfg.GroqAPIKey,
		ClaudeAPIKey:   cfg.ClaudeAPIKey,
		GroqURL:        cfg.GroqURL,
		ClaudeURL:      cfg.ClaudeURL,
		GroqModel:      cfg.GroqModel,
		ClaudeModel:    cfg.ClaudeModel,
		RatePerSecond:  cfg.RequestsPerSecond,
		RequestTimeout: cfg.Timeout(),
	}, nil, logger)
	if err != nil {
		return fmt.Errorf("initialize enrichment: %w", err)
	}

	enriched, report, err := client.EnrichAll(cmd.Context(), records)
	if err != nil {
		return fmt.Errorf("enrich records: %w", err)
	}

	if err := pipeline.WriteJSON(output, enriched); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logger.Info("enrichment finished",
		zap.String("provider", report.Provider),
		zap.Any("counts", report.Counts),
		zap.Int("fallbacks", len(report.Fallbacks)),
		zap.String("output", output),
	)
	return nil
}
