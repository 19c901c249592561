// Package config loads and validates application configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalid marks configuration errors. Callers abort before any network
// I/O when they see it.
var ErrInvalid = errors.New("invalid configuration")

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Extractor  ExtractorConfig  `mapstructure:"extractor"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Reports    ReportsConfig    `mapstructure:"reports"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Publisher  PublisherConfig  `mapstructure:"publisher"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CrawlerConfig governs the fetch/extract pipeline.
type CrawlerConfig struct {
	InputFile         string  `mapstructure:"input_file"`
	OutputFile        string  `mapstructure:"output_file"`
	RateLimitSeconds  float64 `mapstructure:"rate_limit"`
	TimeoutSeconds    int     `mapstructure:"timeout"`
	RunTimeoutSeconds int     `mapstructure:"run_timeout"`
	MaxConcurrency    int     `mapstructure:"max_concurrency"`
	UserAgent         string  `mapstructure:"user_agent"`
	MaxRedirects      int     `mapstructure:"max_redirects"`
	MaxRetries        int     `mapstructure:"max_retries"`
	BackoffInitialMs  int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs      int     `mapstructure:"backoff_max_ms"`
}

// Timeout returns the per-request fetch timeout.
func (c CrawlerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RunTimeout returns the whole-run deadline; zero means no deadline.
func (c CrawlerConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

// HostRule adds a CSS selector for one field on a specific host. Contains,
// when set, keeps only matches whose text includes the substring.
type HostRule struct {
	Field    string `mapstructure:"field"`
	Selector string `mapstructure:"selector"`
	Contains string `mapstructure:"contains"`
}

// ExtractorConfig governs field extraction strategies.
type ExtractorConfig struct {
	LLMEnabled        bool                  `mapstructure:"llm_enabled"`
	LLMTimeoutSeconds int                   `mapstructure:"llm_timeout"`
	LLMRatePerSecond  float64               `mapstructure:"llm_rate_per_second"`
	MaxPromptChars    int                   `mapstructure:"max_prompt_chars"`
	HostRules         map[string][]HostRule `mapstructure:"host_rules"`
}

// LLMTimeout returns the per-call timeout for the LLM extraction strategy.
func (c ExtractorConfig) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// HeadlessConfig configures the chromedp rendering subsystem.
type HeadlessConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	MaxConcurrency int     `mapstructure:"max_concurrency"`
	TimeoutSeconds int     `mapstructure:"timeout"`
	DomainQPS      float64 `mapstructure:"domain_qps"`
}

// Timeout returns the per-render navigation timeout.
func (c HeadlessConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EnrichmentConfig selects and tunes the AI enrichment providers.
type EnrichmentConfig struct {
	Provider          string  `mapstructure:"provider"`
	InputFile         string  `mapstructure:"input_file"`
	OutputFile        string  `mapstructure:"output_file"`
	TimeoutSeconds    int     `mapstructure:"timeout"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	GroqURL           string  `mapstructure:"groq_url"`
	GroqModel         string  `mapstructure:"groq_model"`
	GroqAPIKey        string  `mapstructure:"groq_api_key"`
	ClaudeURL         string  `mapstructure:"claude_url"`
	ClaudeModel       string  `mapstructure:"claude_model"`
	ClaudeAPIKey      string  `mapstructure:"claude_api_key"`
}

// Timeout returns the per-request provider timeout.
func (c EnrichmentConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ReportsConfig sets report rendering destinations.
type ReportsConfig struct {
	InputFile string `mapstructure:"input_file"`
	OutputDir string `mapstructure:"output_dir"`
}

// ArchiveConfig controls raw page snapshots.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// ServerConfig controls the HTTP job API.
type ServerConfig struct {
	Addr                  string `mapstructure:"addr"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout"`
}

// RequestTimeout returns the per-request handler timeout.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// JobsConfig controls crawl job execution in serve mode.
type JobsConfig struct {
	Store      string         `mapstructure:"store"`
	QueueDepth int            `mapstructure:"queue_depth"`
	Workers    int            `mapstructure:"workers"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds connection settings for the Postgres job store.
type PostgresConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime"`
}

// MaxConnLifetime returns the pool connection lifetime.
func (c PostgresConfig) MaxConnLifetime() time.Duration {
	return time.Duration(c.MaxConnLifetimeSeconds) * time.Second
}

// PublisherConfig selects the job event publisher backend.
type PublisherConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from an optional YAML file plus the environment.
// Environment variables use the ADMISSIONS_ prefix with dots replaced by
// underscores; provider credentials bind to the bare CLAUDE_API_KEY and
// GROQ_API_KEY names.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ADMISSIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.BindEnv("enrichment.claude_api_key", "CLAUDE_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind claude key: %w", err)
	}
	if err := v.BindEnv("enrichment.groq_api_key", "GROQ_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind groq key: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read config: %v", ErrInvalid, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: unmarshal config: %v", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.input_file", "data/universities.json")
	v.SetDefault("crawler.output_file", "data/admissions_data.json")
	v.SetDefault("crawler.rate_limit", 2)
	v.SetDefault("crawler.timeout", 10)
	v.SetDefault("crawler.run_timeout", 0)
	v.SetDefault("crawler.max_concurrency", 4)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0")
	v.SetDefault("crawler.max_redirects", 10)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.backoff_initial_ms", 250)
	v.SetDefault("crawler.backoff_max_ms", 5000)
	v.SetDefault("extractor.llm_enabled", false)
	v.SetDefault("extractor.llm_timeout", 30)
	v.SetDefault("extractor.llm_rate_per_second", 0.5)
	v.SetDefault("extractor.max_prompt_chars", 12000)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_concurrency", 1)
	v.SetDefault("headless.timeout", 25)
	v.SetDefault("headless.domain_qps", 0.5)
	v.SetDefault("enrichment.provider", "auto")
	v.SetDefault("enrichment.input_file", "data/admissions_data.json")
	v.SetDefault("enrichment.output_file", "data/enriched_data.json")
	v.SetDefault("enrichment.timeout", 60)
	v.SetDefault("enrichment.requests_per_second", 1)
	v.SetDefault("enrichment.groq_url", "https://api.groq.com/openai/v1/chat/completions")
	v.SetDefault("enrichment.groq_model", "llama3-70b-8192")
	v.SetDefault("enrichment.claude_url", "https://api.anthropic.com/v1/messages")
	v.SetDefault("enrichment.claude_model", "claude-3-opus-20240229")
	v.SetDefault("reports.input_file", "data/enriched_data.json")
	v.SetDefault("reports.output_dir", "reports")
	v.SetDefault("archive.backend", "noop")
	v.SetDefault("archive.dir", "data/pages")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 60)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("jobs.store", "memory")
	v.SetDefault("jobs.queue_depth", 16)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.postgres.table", "admissions_jobs")
	v.SetDefault("publisher.backend", "memory")
	v.SetDefault("logging.development", true)
}

// Validate rejects configurations that cannot produce a working pipeline.
func (c Config) Validate() error {
	if c.Crawler.InputFile == "" {
		return fmt.Errorf("%w: crawler.input_file is required", ErrInvalid)
	}
	if c.Crawler.OutputFile == "" {
		return fmt.Errorf("%w: crawler.output_file is required", ErrInvalid)
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: crawler.timeout must be positive", ErrInvalid)
	}
	if c.Crawler.MaxConcurrency < 1 {
		return fmt.Errorf("%w: crawler.max_concurrency must be at least 1", ErrInvalid)
	}
	if c.Crawler.RateLimitSeconds < 0 {
		return fmt.Errorf("%w: crawler.rate_limit must not be negative", ErrInvalid)
	}
	switch c.Enrichment.Provider {
	case "auto", "claude", "groq":
	default:
		return fmt.Errorf("%w: enrichment.provider must be auto, claude, or groq", ErrInvalid)
	}
	switch c.Archive.Backend {
	case "noop", "memory", "local", "gcs":
	default:
		return fmt.Errorf("%w: unknown archive.backend %q", ErrInvalid, c.Archive.Backend)
	}
	if c.Archive.Backend == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("%w: archive.gcs_bucket is required for the gcs backend", ErrInvalid)
	}
	if c.Archive.Backend == "local" && c.Archive.Dir == "" {
		return fmt.Errorf("%w: archive.dir is required for the local backend", ErrInvalid)
	}
	switch c.Jobs.Store {
	case "memory":
	case "postgres":
		if c.Jobs.Postgres.DSN == "" {
			return fmt.Errorf("%w: jobs.postgres.dsn is required for the postgres store", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown jobs.store %q", ErrInvalid, c.Jobs.Store)
	}
	if c.Jobs.QueueDepth < 1 {
		return fmt.Errorf("%w: jobs.queue_depth must be at least 1", ErrInvalid)
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("%w: jobs.workers must be at least 1", ErrInvalid)
	}
	switch c.Publisher.Backend {
	case "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.TopicID == "" {
			return fmt.Errorf("%w: publisher.project_id and publisher.topic_id are required for pubsub", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown publisher.backend %q", ErrInvalid, c.Publisher.Backend)
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("%w: auth.api_key is required when auth.enabled", ErrInvalid)
	}
	return nil
}
