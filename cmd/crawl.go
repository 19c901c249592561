package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/pipeline"
)

// newCrawlCmd creates and configures the 'crawl' subcommand. It runs the
// whole fetch, extract and persist pipeline once for the configured target
// list and exits.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl every configured university admissions page",
		Long: `Fetches each university admissions page on the configured target list,
extracts courses, requirements and deadlines, and writes one JSON record
per university to the output file. The output always holds one entry per
target; failed targets are recorded in place, never dropped.`,

		RunE: runCrawlCommand,
	}
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	outputFile := appInstance.Config().Crawler.OutputFile

	targets, err := appInstance.LoadTargets()
	if err != nil {
		return fmt.Errorf("load targets: %w", err)
	}
	if len(targets) == 0 {
		return errors.New("no valid targets configured")
	}

	records, summary, err := appInstance.Pipeline().Run(cmd.Context(), targets)
	if err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}

	if err := pipeline.WriteJSON(outputFile, records); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logger.Info("crawl finished",
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
		zap.String("output", outputFile),
	)
	return nil
}
