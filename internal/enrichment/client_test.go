package enrichment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/metrics"
)

const enrichedReply = `{
	"name": "Flagship State University",
	"programs": [
		{
			"name": "Computer Science",
			"description": "Undergraduate CS program",
			"degree_type": "Bachelor's",
			"department": "School of Engineering"
		}
	],
	"application_process": {
		"early_admission": {"deadline": "November 1"},
		"regular_admission": {"deadline": "January 5"},
		"general_requirements": ["Essay", "Two recommendations"]
	}
}`

// TestGroqEnrich exercises the chat-completions exchange: auth, payload
// shape, and brace extraction from a prose-wrapped reply.
func TestGroqEnrich(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer groq-test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "llama3-70b-8192", req["model"])
		require.InDelta(t, 0.1, req["temperature"].(float64), 1e-9)
		require.InDelta(t, 4000, req["max_tokens"].(float64), 1e-9)

		messages := req["messages"].([]any)
		require.Len(t, messages, 2)
		system := messages[0].(map[string]any)
		require.Equal(t, "system", system["role"])
		require.Contains(t, system["content"], "clean JSON format")
		user := messages[1].(map[string]any)
		require.Equal(t, "user", user["role"])
		require.Contains(t, user["content"], "COURSES/PROGRAMS:")

		reply := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Here is the organized data:\n" + enrichedReply}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(reply))
	}))
	defer srv.Close()

	clk := fixedClock{at: time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)}
	groq := NewGroq(GroqConfig{APIKey: "groq-test-key", URL: srv.URL}, clk)

	enriched, err := groq.Enrich(context.Background(), sampleRecord())
	require.NoError(t, err)
	require.Equal(t, admissions.ProviderGroq, enriched.EnrichedBy)
	require.Equal(t, "2024-05-01 11:00:00", enriched.EnrichedAt)
	require.Len(t, enriched.Programs, 1)
	require.Equal(t, "School of Engineering", enriched.Programs[0].Department)
	require.Equal(t, "November 1", enriched.ApplicationProcess.EarlyAdmission.Deadline)
	require.NotNil(t, enriched.ScrapedData)
	require.Equal(t, "https://flagship.example.edu/admissions", enriched.URL)
}

// TestClaudeEnrich exercises the Anthropic messages exchange.
func TestClaudeEnrich(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "claude-test-key", r.Header.Get("x-api-key"))
		require.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "claude-3-opus-20240229", req["model"])
		messages := req["messages"].([]any)
		require.Len(t, messages, 1)
		user := messages[0].(map[string]any)
		require.Equal(t, "user", user["role"])
		require.NotContains(t, user["content"], "just the JSON object")

		reply := map[string]any{
			"content": []map[string]any{{"type": "text", "text": enrichedReply}},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(reply))
	}))
	defer srv.Close()

	clk := fixedClock{at: time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)}
	claude := NewClaude(ClaudeConfig{APIKey: "claude-test-key", URL: srv.URL}, clk)

	enriched, err := claude.Enrich(context.Background(), sampleRecord())
	require.NoError(t, err)
	require.Equal(t, admissions.ProviderClaude, enriched.EnrichedBy)
	require.Equal(t, []string{"Essay", "Two recommendations"},
		enriched.ApplicationProcess.GeneralRequirements)
}

// TestEnrichAllNoCredentials verifies the auto provider degrades to the
// simulation and still enriches every record.
func TestEnrichAllNoCredentials(t *testing.T) {
	t.Parallel()
	metrics.Init()

	client, err := NewClient(Config{Provider: "auto"}, fixedClock{at: time.Now()}, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, admissions.ProviderSimulation, client.Provider())

	records := []admissions.AdmissionsRecord{sampleRecord(), sampleRecord()}
	enriched, report, err := client.EnrichAll(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, enriched, len(records))
	for _, record := range enriched {
		require.Equal(t, admissions.ProviderSimulation, record.EnrichedBy)
	}
	require.Equal(t, 2, report.Counts[admissions.ProviderSimulation])
	require.Empty(t, report.Fallbacks)
}

// TestEnrichAllProviderFailureFallsBack downgrades failing records to the
// simulation without aborting the batch.
func TestEnrichAllProviderFailureFallsBack(t *testing.T) {
	t.Parallel()
	metrics.Init()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "rate limit exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		Provider:      "groq",
		GroqAPIKey:    "groq-test-key",
		GroqURL:       srv.URL,
		RatePerSecond: 1000,
	}, fixedClock{at: time.Now()}, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, admissions.ProviderGroq, client.Provider())

	records := []admissions.AdmissionsRecord{sampleRecord(), sampleRecord()}
	enriched, report, err := client.EnrichAll(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, enriched, 2)
	for _, record := range enriched {
		require.Equal(t, admissions.ProviderSimulation, record.EnrichedBy)
	}
	require.Len(t, report.Fallbacks, 2)
	require.Contains(t, report.Fallbacks[0].Reason, "status 429")
	require.Equal(t, 2, report.Counts[admissions.ProviderSimulation])
	require.Equal(t, admissions.ProviderGroq, report.Provider)
}

// TestSelectProviderExplicitWithoutKey degrades to simulation with a warning
// rather than failing.
func TestSelectProviderExplicitWithoutKey(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Provider: "claude"}, fixedClock{at: time.Now()}, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, admissions.ProviderSimulation, client.Provider())
}

// TestSelectProviderUnknown rejects unrecognized provider names.
func TestSelectProviderUnknown(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Provider: "copilot"}, fixedClock{at: time.Now()}, zap.NewNop())
	require.Error(t, err)
}

// TestEnrichAllContextCanceled aborts the batch between records.
func TestEnrichAllContextCanceled(t *testing.T) {
	t.Parallel()
	metrics.Init()

	client, err := NewClient(Config{Provider: "auto", RatePerSecond: 0.5},
		fixedClock{at: time.Now()}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = client.EnrichAll(ctx, []admissions.AdmissionsRecord{sampleRecord()})
	require.Error(t, err)
}
