package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/clock/system"
)

const (
	defaultClaudeURL    = "https://api.anthropic.com/v1/messages"
	defaultClaudeModel  = "claude-3-opus-20240229"
	anthropicAPIVersion = "2023-06-01"
)

// ClaudeConfig configures the Anthropic messages provider.
type ClaudeConfig struct {
	APIKey  string
	URL     string
	Model   string
	Timeout time.Duration
}

// Claude enriches records through the Anthropic messages endpoint.
type Claude struct {
	cfg    ClaudeConfig
	client *http.Client
	clock  admissions.Clock
}

var _ admissions.EnrichmentProvider = (*Claude)(nil)

// NewClaude builds the provider, applying endpoint and model defaults.
func NewClaude(cfg ClaudeConfig, clk admissions.Clock) *Claude {
	if cfg.URL == "" {
		cfg.URL = defaultClaudeURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultClaudeModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = providerTimeout
	}
	if clk == nil {
		clk = system.New()
	}
	return &Claude{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		clock:  clk,
	}
}

// Name reports the provider label stamped into enriched records.
func (c *Claude) Name() string { return admissions.ProviderClaude }

type claudeRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Enrich restructures one record via Claude.
func (c *Claude) Enrich(ctx context.Context, record admissions.AdmissionsRecord) (admissions.EnrichedRecord, error) {
	prompt, err := buildPrompt(record, false)
	if err != nil {
		return admissions.EnrichedRecord{}, err
	}
	payload, err := json.Marshal(claudeRequest{
		Model:     c.cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: 4000,
	})
	if err != nil {
		return admissions.EnrichedRecord{}, fmt.Errorf("marshal claude request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return admissions.EnrichedRecord{}, fmt.Errorf("build claude request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return admissions.EnrichedRecord{}, fmt.Errorf("call claude: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return admissions.EnrichedRecord{}, fmt.Errorf("read claude response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return admissions.EnrichedRecord{}, fmt.Errorf("claude status %d: %s", resp.StatusCode, snippet(body))
	}

	var parsed claudeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return admissions.EnrichedRecord{}, fmt.Errorf("decode claude response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return admissions.EnrichedRecord{}, errors.New("claude response has no content")
	}
	return assembleRecord(record, parsed.Content[0].Text, c.Name(), c.clock)
}
