// Package cmd defines and implements the CLI commands for the
// admissions-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/api"
	"github.com/campusdata/admissions-crawler/internal/app"
	"github.com/campusdata/admissions-crawler/internal/config"
	"github.com/campusdata/admissions-crawler/internal/dispatcher"
	"github.com/campusdata/admissions-crawler/internal/pipeline"
)

var cfgFile string

// appKeyType is the key type for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App is the application surface the commands use. It allows tests to
// inject a fake through the newApp factory.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Pipeline() *pipeline.Orchestrator
	Dispatcher() *dispatcher.Dispatcher
	Server() *api.Server
	LoadTargets() ([]admissions.UniversityTarget, error)
}

// newApp is the application factory. It's a variable so tests can replace
// it with a fake factory.
var newApp = func(ctx context.Context) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return app.NewApp(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admissions-crawler",
		Short: "Collects structured admissions data from university websites.",
		Long: `admissions-crawler fetches university admissions pages, extracts courses,
requirements and deadlines into structured records, enriches them with an
AI provider, and renders per-university reports. It can also run as a
service exposing crawls as asynchronous jobs over HTTP.`,

		// Runs after flag parsing but before the subcommand's RunE: load the
		// configuration, build the services, and hand them to the command
		// through the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		// Shuts the services down after the command finishes.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; environment variables override file values)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newEnrichCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// resolveApp retrieves the App injected by PersistentPreRunE.
func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
