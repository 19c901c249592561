package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/campusdata/admissions-crawler/internal/admissions"
)

// LLMConfig controls the language-model extraction strategy.
type LLMConfig struct {
	URL            string
	Model          string
	APIKey         string
	Timeout        time.Duration
	RatePerSecond  float64
	MaxPromptChars int
}

// LLM asks a chat-completions endpoint to list entries for one field from
// the page text. It sits between CSS and keyword in the chain and carries
// its own limiter, independent of the fetch limiter, since provider calls
// have a different cost profile. Provider errors leave the field absent so
// the chain can fall through.
type LLM struct {
	cfg     LLMConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewLLM builds the LLM strategy.
func NewLLM(cfg LLMConfig, logger *zap.Logger) *LLM {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = 12000
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &LLM{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Name implements Strategy.
func (s *LLM) Name() string { return admissions.SourceLLM }

const llmSystemPrompt = "You are a helpful assistant that extracts structured facts from university admissions pages."

var fieldPrompts = map[string]string{
	admissions.FieldCourses:                "courses, degree programs, majors, or concentrations offered",
	admissions.FieldCourseDescriptions:     "descriptions of academic programs or courses",
	admissions.FieldAdmissionsRequirements: "admissions requirements, prerequisites, or eligibility criteria",
	admissions.FieldApplicationDeadlines:   "application deadlines or important admissions dates",
	admissions.FieldEarlyAdmission:         "early action or early decision details",
	admissions.FieldRegularAdmission:       "regular decision or regular admission details",
}

// ExtractField implements Strategy.
func (s *LLM) ExtractField(ctx context.Context, field string, src *Source) ([]string, error) {
	if s.cfg.APIKey == "" || len(src.Lines) == 0 {
		return nil, nil
	}
	description, ok := fieldPrompts[field]
	if !ok {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm rate limit: %w", err)
	}

	prompt := fmt.Sprintf(
		"List the %s found on this university admissions page. "+
			"Respond with one item per line and no commentary. "+
			"If none are present respond with NONE.\n\nPage text:\n%s",
		description, s.pageText(src),
	)
	content, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseListItems(content, admissions.FieldCap(field)), nil
}

func (s *LLM) pageText(src *Source) string {
	text := strings.Join(src.Lines, "\n")
	if len(text) > s.cfg.MaxPromptChars {
		text = text[:s.cfg.MaxPromptChars]
	}
	return text
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (s *LLM) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: s.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: llmSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   1000,
	})
	if err != nil {
		return "", fmt.Errorf("marshal llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read llm response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm response status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// listNumberPrefix matches "1. " / "2) " numbering, not numbers that start
// real content like "4.0 GPA".
var listNumberPrefix = regexp.MustCompile(`^\d+[.)]\s+`)

// parseListItems splits a model response into list entries, stripping common
// bullet and numbering prefixes.
func parseListItems(content string, limit int) []string {
	var items []string
	for _, line := range strings.Split(content, "\n") {
		item := strings.TrimSpace(line)
		item = strings.TrimSpace(strings.TrimLeft(item, "-*•"))
		item = listNumberPrefix.ReplaceAllString(item, "")
		if item == "" || strings.EqualFold(item, "NONE") {
			continue
		}
		items = append(items, item)
		if len(items) >= limit {
			break
		}
	}
	return items
}
