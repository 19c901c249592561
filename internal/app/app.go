// Package app initializes and holds the long-lived services shared by the
// CLI commands, acting as the dependency injection container.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/api"
	"github.com/campusdata/admissions-crawler/internal/archive"
	"github.com/campusdata/admissions-crawler/internal/clock/system"
	"github.com/campusdata/admissions-crawler/internal/config"
	"github.com/campusdata/admissions-crawler/internal/dispatcher"
	"github.com/campusdata/admissions-crawler/internal/extractor"
	"github.com/campusdata/admissions-crawler/internal/fetcher"
	collyfetcher "github.com/campusdata/admissions-crawler/internal/fetcher/colly"
	"github.com/campusdata/admissions-crawler/internal/fetcher/detector"
	"github.com/campusdata/admissions-crawler/internal/fetcher/headless"
	"github.com/campusdata/admissions-crawler/internal/jobs"
	"github.com/campusdata/admissions-crawler/internal/logging"
	"github.com/campusdata/admissions-crawler/internal/metrics"
	"github.com/campusdata/admissions-crawler/internal/pipeline"
	"github.com/campusdata/admissions-crawler/internal/policy/ratelimit"
	"github.com/campusdata/admissions-crawler/internal/progress"
	"github.com/campusdata/admissions-crawler/internal/progress/sinks"
	"github.com/campusdata/admissions-crawler/internal/publisher"
	memorypublisher "github.com/campusdata/admissions-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/campusdata/admissions-crawler/internal/publisher/pubsub"
	"github.com/campusdata/admissions-crawler/internal/queue"
)

const closeTimeout = 5 * time.Second

// App holds the shared, long-lived services for the application. It is
// initialized once at startup and handed to the commands through the
// cobra context.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	archive  archive.Store
	renderer *headless.Renderer
	hub      *progress.Hub
	pipeline *pipeline.Orchestrator
	jobStore jobs.Store
	queue    *queue.Queue
	pub      publisher.Publisher
	dispatch *dispatcher.Dispatcher
	server   *api.Server
}

// Config returns the validated configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Pipeline returns the crawl orchestrator.
func (a *App) Pipeline() *pipeline.Orchestrator { return a.pipeline }

// JobStore returns the configured job store.
func (a *App) JobStore() jobs.Store { return a.jobStore }

// Queue returns the job queue feeding the dispatcher.
func (a *App) Queue() *queue.Queue { return a.queue }

// Publisher returns the job lifecycle event publisher.
func (a *App) Publisher() publisher.Publisher { return a.pub }

// Dispatcher returns the job dispatcher.
func (a *App) Dispatcher() *dispatcher.Dispatcher { return a.dispatch }

// Server returns the HTTP job API server.
func (a *App) Server() *api.Server { return a.server }

// LoadTargets reads the configured university list. The API server uses it
// when a crawl request names no targets of its own.
func (a *App) LoadTargets() ([]admissions.UniversityTarget, error) {
	return pipeline.LoadTargets(a.cfg.Crawler.InputFile, a.logger)
}

// NewApp builds every service from the configuration and fails fast when a
// backend cannot be reached. Backends with in-memory defaults (archive, job
// store, publisher) only dial out when explicitly configured to.
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	metrics.Init()

	store, err := buildArchive(ctx, cfg.Archive, logger)
	if err != nil {
		return nil, err
	}

	jobStore, err := buildJobStore(ctx, cfg.Jobs, logger)
	if err != nil {
		return nil, err
	}

	pub, err := buildPublisher(ctx, cfg.Publisher, logger)
	if err != nil {
		return nil, err
	}

	hub, err := buildProgressHub(logger)
	if err != nil {
		return nil, err
	}

	renderer, err := buildRenderer(cfg, logger)
	if err != nil {
		return nil, err
	}

	orch, err := buildPipeline(cfg, store, renderer, hub, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		archive:  store,
		renderer: renderer,
		hub:      hub,
		pipeline: orch,
		jobStore: jobStore,
		queue:    queue.New(cfg.Jobs.QueueDepth),
		pub:      pub,
	}
	a.dispatch = dispatcher.New(a.queue, jobStore, orch, pub, nil, nil, dispatcher.Config{
		Workers:    cfg.Jobs.Workers,
		RunTimeout: cfg.Crawler.RunTimeout(),
	}, logger)

	apiKey := ""
	if cfg.Auth.Enabled {
		apiKey = cfg.Auth.APIKey
	}
	a.server = api.NewServer(jobStore, a.dispatch, a.LoadTargets, api.Config{
		RequestTimeout: cfg.Server.RequestTimeout(),
		APIKey:         apiKey,
	}, logger)

	logger.Info("application services initialized",
		zap.String("archive", cfg.Archive.Backend),
		zap.String("job_store", cfg.Jobs.Store),
		zap.String("publisher", cfg.Publisher.Backend),
		zap.Bool("headless", cfg.Headless.Enabled),
	)
	return a, nil
}

func buildArchive(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger) (archive.Store, error) {
	switch cfg.Backend {
	case "noop", "":
		return archive.NoOp{}, nil
	case "memory":
		return archive.NewMemory(), nil
	case "local":
		store, err := archive.NewLocal(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("initialize local archive: %w", err)
		}
		return store, nil
	case "gcs":
		logger.Info("using GCS archive", zap.String("bucket", cfg.GCSBucket))
		store, err := archive.DialGCS(ctx, cfg.GCSBucket, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs archive: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

func buildJobStore(ctx context.Context, cfg config.JobsConfig, logger *zap.Logger) (jobs.Store, error) {
	switch cfg.Store {
	case "memory", "":
		return jobs.NewMemoryStore(nil), nil
	case "postgres":
		logger.Info("connecting to postgres job store", zap.String("table", cfg.Postgres.Table))
		store, err := jobs.NewPostgresStore(ctx, jobs.PostgresConfig{
			DSN:             cfg.Postgres.DSN,
			Table:           cfg.Postgres.Table,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime(),
		})
		if err != nil {
			return nil, fmt.Errorf("initialize job store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown job store %q", cfg.Store)
	}
}

func buildPublisher(ctx context.Context, cfg config.PublisherConfig, logger *zap.Logger) (publisher.Publisher, error) {
	switch cfg.Backend {
	case "memory", "":
		return memorypublisher.New(), nil
	case "pubsub":
		logger.Info("connecting to pub/sub publisher", zap.String("topic", cfg.TopicID))
		pub, err := pubsubpublisher.New(ctx, pubsubpublisher.Config{
			ProjectID: cfg.ProjectID,
			TopicID:   cfg.TopicID,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize publisher: %w", err)
		}
		return pub, nil
	case "noop":
		return publisher.NoOp{}, nil
	default:
		return nil, fmt.Errorf("unknown publisher backend %q", cfg.Backend)
	}
}

// Prometheus collectors are process-global, so the progress sink registers
// once no matter how many apps a process builds.
var (
	progressSinkOnce sync.Once
	progressSink     *sinks.PrometheusSink
	progressSinkErr  error
)

func buildProgressHub(logger *zap.Logger) (*progress.Hub, error) {
	progressSinkOnce.Do(func() {
		progressSink, progressSinkErr = sinks.NewPrometheusSink(nil)
	})
	if progressSinkErr != nil {
		return nil, fmt.Errorf("initialize progress sink: %w", progressSinkErr)
	}
	return progress.NewHub(
		progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		progressSink,
	), nil
}

// buildRenderer returns nil when headless rendering is disabled; the
// pipeline then keeps static bodies for script-rendered pages.
func buildRenderer(cfg config.Config, logger *zap.Logger) (*headless.Renderer, error) {
	if !cfg.Headless.Enabled {
		return nil, nil
	}
	renderer, err := headless.NewChromedp(headless.Config{
		MaxParallel:       cfg.Headless.MaxConcurrency,
		UserAgent:         cfg.Crawler.UserAgent,
		NavigationTimeout: cfg.Headless.Timeout(),
		DomainQPS:         cfg.Headless.DomainQPS,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize renderer: %w", err)
	}
	return renderer, nil
}

func buildPipeline(cfg config.Config, store archive.Store, renderer *headless.Renderer, hub *progress.Hub, logger *zap.Logger) (*pipeline.Orchestrator, error) {
	limiter := ratelimit.New(time.Duration(cfg.Crawler.RateLimitSeconds * float64(time.Second)))
	static := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.Crawler.UserAgent,
		Timeout:      cfg.Crawler.Timeout(),
		MaxRedirects: cfg.Crawler.MaxRedirects,
	})

	var render fetcher.Renderer = headless.NewNoop()
	if renderer != nil {
		render = renderer
	}

	composite := fetcher.New(static, render, detector.NewHeuristic(0), limiter, system.New(), fetcher.Config{
		MaxRetries:     cfg.Crawler.MaxRetries,
		BackoffInitial: time.Duration(cfg.Crawler.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.Crawler.BackoffMaxMs) * time.Millisecond,
	}, logger)

	strategies := []extractor.Strategy{extractor.NewCSS(hostRules(cfg.Extractor.HostRules))}
	if cfg.Extractor.LLMEnabled {
		strategies = append(strategies, extractor.NewLLM(extractor.LLMConfig{
			URL:            cfg.Enrichment.GroqURL,
			Model:          cfg.Enrichment.GroqModel,
			APIKey:         cfg.Enrichment.GroqAPIKey,
			Timeout:        cfg.Extractor.LLMTimeout(),
			RatePerSecond:  cfg.Extractor.LLMRatePerSecond,
			MaxPromptChars: cfg.Extractor.MaxPromptChars,
		}, logger))
	}
	strategies = append(strategies, extractor.NewKeyword())

	orch, err := pipeline.New(pipeline.Config{
		Fetcher:        composite,
		Extractor:      extractor.NewChain(logger, strategies...),
		Archive:        store,
		Emitter:        hub,
		Logger:         logger,
		MaxConcurrency: cfg.Crawler.MaxConcurrency,
		RunTimeout:     cfg.Crawler.RunTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline: %w", err)
	}
	return orch, nil
}

func hostRules(rules map[string][]config.HostRule) map[string][]extractor.HostRule {
	if len(rules) == 0 {
		return nil
	}
	out := make(map[string][]extractor.HostRule, len(rules))
	for host, hostRules := range rules {
		converted := make([]extractor.HostRule, 0, len(hostRules))
		for _, rule := range hostRules {
			converted = append(converted, extractor.HostRule{
				Field:    rule.Field,
				Selector: rule.Selector,
				Contains: rule.Contains,
			})
		}
		out[host] = converted
	}
	return out
}

// Close shuts the services down in dependency order: the queue first so
// dispatcher workers drain, then the outbound clients.
func (a *App) Close() {
	a.logger.Info("shutting down application services")

	a.queue.Close()
	if err := a.pub.Close(); err != nil {
		a.logger.Warn("error closing publisher", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := a.hub.Close(ctx); err != nil {
		a.logger.Warn("error closing progress hub", zap.Error(err))
	}

	if a.renderer != nil {
		a.renderer.Close()
	}
	if closer, ok := a.jobStore.(interface{ Close() }); ok {
		closer.Close()
	}
	if closer, ok := a.archive.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("error closing archive", zap.Error(err))
		}
	}

	_ = a.logger.Sync()
}
