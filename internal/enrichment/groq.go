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
	defaultGroqURL   = "https://api.groq.com/openai/v1/chat/completions"
	defaultGroqModel = "llama3-70b-8192"

	providerTimeout  = 60 * time.Second
	maxResponseBytes = 1 << 20
)

// GroqConfig configures the GROQ chat-completions provider.
type GroqConfig struct {
	APIKey  string
	URL     string
	Model   string
	Timeout time.Duration
}

// Groq enriches records through the GROQ OpenAI-compatible chat endpoint.
type Groq struct {
	cfg    GroqConfig
	client *http.Client
	clock  admissions.Clock
}

var _ admissions.EnrichmentProvider = (*Groq)(nil)

// NewGroq builds the provider, applying endpoint and model defaults.
func NewGroq(cfg GroqConfig, clk admissions.Clock) *Groq {
	if cfg.URL == "" {
		cfg.URL = defaultGroqURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultGroqModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = providerTimeout
	}
	if clk == nil {
		clk = system.New()
	}
	return &Groq{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		clock:  clk,
	}
}

// Name reports the provider label stamped into enriched records.
func (g *Groq) Name() string { return admissions.ProviderGroq }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type groqResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Enrich restructures one record via GROQ.
func (g *Groq) Enrich(ctx context.Context, record admissions.AdmissionsRecord) (admissions.EnrichedRecord, error) {
	prompt, err := buildPrompt(record, true)
	if err != nil {
		return admissions.EnrichedRecord{}, err
	}
	payload, err := json.Marshal(groqRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   4000,
	})
	if err != nil {
		return admissions.EnrichedRecord{}, fmt.Errorf("marshal groq request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return admissions.EnrichedRecord{}, fmt.Errorf("build groq request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return admissions.EnrichedRecord{}, fmt.Errorf("call groq: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return admissions.EnrichedRecord{}, fmt.Errorf("read groq response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return admissions.EnrichedRecord{}, fmt.Errorf("groq status %d: %s", resp.StatusCode, snippet(body))
	}

	var parsed groqResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return admissions.EnrichedRecord{}, fmt.Errorf("decode groq response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return admissions.EnrichedRecord{}, errors.New("groq response has no choices")
	}
	return assembleRecord(record, parsed.Choices[0].Message.Content, g.Name(), g.clock)
}
