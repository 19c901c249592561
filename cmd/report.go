package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/pipeline"
	"github.com/campusdata/admissions-crawler/internal/report"
)

// newReportCmd creates and configures the 'report' subcommand.
func newReportCmd() *cobra.Command {
	var (
		input     string
		outputDir string
		analyze   bool
		format    string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render Markdown reports or analyze crawl quality",
		Long: `Renders one Markdown report per university from the enriched output, plus
an index page. With --analyze it instead inspects the raw crawl output and
prints completion and quality metrics.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			if analyze {
				return runAnalyzeCommand(cmd, input, format)
			}
			return runReportCommand(cmd, input, outputDir)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "input file (defaults to the enriched output, or the crawl output with --analyze)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for rendered reports (defaults to config)")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "analyze crawl output quality instead of rendering reports")
	cmd.Flags().StringVar(&format, "format", "text", "analysis output format: text or json")
	return cmd
}

func runReportCommand(cmd *cobra.Command, input, outputDir string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config().Reports
	if input == "" {
		input = cfg.InputFile
	}
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}

	enriched, err := pipeline.ReadEnriched(input)
	if err != nil {
		return fmt.Errorf("read enriched records: %w", err)
	}

	writer := report.NewWriter(outputDir, appInstance.Logger())
	if err := writer.WriteAll(enriched); err != nil {
		return fmt.Errorf("write reports: %w", err)
	}

	appInstance.Logger().Info("reports written",
		zap.Int("universities", len(enriched)),
		zap.String("dir", outputDir),
	)
	return nil
}

func runAnalyzeCommand(cmd *cobra.Command, input, format string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	if input == "" {
		input = appInstance.Config().Crawler.OutputFile
	}

	records, err := pipeline.ReadRecords(input)
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}

	analysis := report.Analyze(records, nil)
	switch format {
	case "text":
		fmt.Fprintln(cmd.OutOrStdout(), analysis.Text())
	case "json":
		payload, err := analysis.JSON()
		if err != nil {
			return fmt.Errorf("encode analysis: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	default:
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}
	return nil
}
