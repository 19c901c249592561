package enrichment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/clock/system"
	"github.com/campusdata/admissions-crawler/internal/metrics"
)

// Config selects the provider and request pacing for a batch.
type Config struct {
	// Provider is auto, groq, or claude. Auto prefers GROQ, then Claude,
	// then the simulation. An explicit provider without its key degrades
	// to the simulation with a warning.
	Provider     string
	GroqAPIKey   string
	ClaudeAPIKey string

	// GroqURL and ClaudeURL override the provider endpoints (tests).
	GroqURL   string
	ClaudeURL string

	// GroqModel and ClaudeModel override the provider defaults.
	GroqModel   string
	ClaudeModel string

	// RatePerSecond paces provider requests (default 1).
	RatePerSecond float64
	// RequestTimeout bounds each provider exchange.
	RequestTimeout time.Duration
}

// Fallback notes one record that fell back to the simulation.
type Fallback struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Report summarizes one enrichment batch.
type Report struct {
	Provider  string         `json:"provider"`
	Counts    map[string]int `json:"counts"`
	Fallbacks []Fallback     `json:"fallbacks,omitempty"`
}

// Client enriches batches of records with per-record fallback isolation.
type Client struct {
	provider   admissions.EnrichmentProvider
	simulation *Simulation
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient selects a provider from cfg and builds the batch client.
func NewClient(cfg Config, clk admissions.Clock, logger *zap.Logger) (*Client, error) {
	if clk == nil {
		clk = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	provider, err := selectProvider(cfg, clk, logger)
	if err != nil {
		return nil, err
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Client{
		provider:   provider,
		simulation: NewSimulation(clk),
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:     logger,
	}, nil
}

// Provider reports the name of the selected provider.
func (c *Client) Provider() string { return c.provider.Name() }

// EnrichAll processes every record in order. A provider failure downgrades
// that record to the simulation and is noted in the report; only context
// cancellation aborts the batch. The returned slice matches the input length
// on success.
func (c *Client) EnrichAll(ctx context.Context, records []admissions.AdmissionsRecord) ([]admissions.EnrichedRecord, Report, error) {
	report := Report{
		Provider: c.provider.Name(),
		Counts:   make(map[string]int),
	}
	enriched := make([]admissions.EnrichedRecord, 0, len(records))
	for i := range records {
		record := records[i]
		if err := c.limiter.Wait(ctx); err != nil {
			return enriched, report, fmt.Errorf("enrichment pacing: %w", err)
		}
		result, err := c.provider.Enrich(ctx, record)
		if err != nil {
			if ctx.Err() != nil {
				return enriched, report, fmt.Errorf("enrichment aborted: %w", ctx.Err())
			}
			enrichErr := &admissions.EnrichmentError{
				Provider: c.provider.Name(),
				Record:   record.Name,
				Err:      err,
			}
			c.logger.Warn("enrichment failed, falling back to simulation",
				zap.String("university", record.Name),
				zap.Error(enrichErr))
			metrics.ObserveEnrichment(c.provider.Name(), "failed")
			report.Fallbacks = append(report.Fallbacks, Fallback{Name: record.Name, Reason: err.Error()})
			result, _ = c.simulation.Enrich(ctx, record)
		}
		metrics.ObserveEnrichment(result.EnrichedBy, "ok")
		report.Counts[result.EnrichedBy]++
		enriched = append(enriched, result)
	}
	c.logger.Info("enrichment complete",
		zap.String("provider", report.Provider),
		zap.Int("records", len(enriched)),
		zap.Int("fallbacks", len(report.Fallbacks)))
	return enriched, report, nil
}

func selectProvider(cfg Config, clk admissions.Clock, logger *zap.Logger) (admissions.EnrichmentProvider, error) {
	groq := func() *Groq {
		return NewGroq(GroqConfig{
			APIKey:  cfg.GroqAPIKey,
			URL:     cfg.GroqURL,
			Model:   cfg.GroqModel,
			Timeout: cfg.RequestTimeout,
		}, clk)
	}
	claude := func() *Claude {
		return NewClaude(ClaudeConfig{
			APIKey:  cfg.ClaudeAPIKey,
			URL:     cfg.ClaudeURL,
			Model:   cfg.ClaudeModel,
			Timeout: cfg.RequestTimeout,
		}, clk)
	}
	switch cfg.Provider {
	case "", "auto":
		if cfg.GroqAPIKey != "" {
			logger.Info("using GROQ API for enrichment")
			return groq(), nil
		}
		if cfg.ClaudeAPIKey != "" {
			logger.Info("using Claude API for enrichment")
			return claude(), nil
		}
		logger.Warn("no enrichment API keys found, using simulation mode")
		return NewSimulation(clk), nil
	case "groq":
		if cfg.GroqAPIKey == "" {
			logger.Warn("no GROQ API key found, using simulation mode")
			return NewSimulation(clk), nil
		}
		return groq(), nil
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			logger.Warn("no Claude API key found, using simulation mode")
			return NewSimulation(clk), nil
		}
		return claude(), nil
	default:
		return nil, fmt.Errorf("unknown enrichment provider %q", cfg.Provider)
	}
}
