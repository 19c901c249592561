// Package enrichment restructures crawled admissions records into organized
// program and application data, via the GROQ or Claude APIs or a
// deterministic offline simulation.
package enrichment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/campusdata/admissions-crawler/internal/admissions"
)

const systemPrompt = "You are a helpful assistant that analyzes university data and organizes it into clean JSON format."

const promptSchema = `{
  "name": "University Name",
  "programs": [
    {
      "name": "Program Name",
      "description": "Program description",
      "degree_type": "Bachelor's/Master's/etc.",
      "department": "Department name if available"
    }
  ],
  "application_process": {
    "early_admission": {
      "deadline": "Date",
      "notification_date": "Date",
      "restrictions": "Any restrictions for early applicants"
    },
    "regular_admission": {
      "deadline": "Date",
      "notification_date": "Date"
    },
    "general_requirements": [
      "Requirement 1",
      "Requirement 2"
    ]
  }
}`

// buildPrompt renders the enrichment prompt for one record. The scraped list
// fields go in verbatim as indented JSON, sentinels included, so the model
// sees exactly what the crawl saw. jsonOnly appends the strict-output line
// used by chat-completions style providers.
func buildPrompt(record admissions.AdmissionsRecord, jsonOnly bool) (string, error) {
	sections := []struct {
		label  string
		values []string
	}{
		{"COURSES/PROGRAMS", record.Courses},
		{"ADMISSIONS REQUIREMENTS", record.AdmissionsRequirements},
		{"APPLICATION DEADLINES", record.ApplicationDeadlines},
		{"EARLY ADMISSION", record.EarlyAdmission},
		{"REGULAR ADMISSION", record.RegularAdmission},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I have scraped data about %s's academic programs and admissions requirements.\n", record.Name)
	b.WriteString("I need you to organize this information into a clear, structured format with complete details.\n\n")
	b.WriteString("Here's the data I have:\n")
	for _, section := range sections {
		values := section.values
		if len(values) == 0 {
			values = admissions.SentinelList()
		}
		encoded, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode %s section: %w", section.label, err)
		}
		fmt.Fprintf(&b, "\n%s:\n%s\n", section.label, encoded)
	}
	b.WriteString("\nPlease organize this information into a well-structured JSON object with the following schema:\n")
	b.WriteString(promptSchema)
	b.WriteString("\n\nIf any information is missing or unclear, please indicate this in your response.\n")
	b.WriteString("Please ensure any duplicated or similar items are merged or removed.\n")
	b.WriteString("Focus on identifying real degree programs and majors, not generic links or other page content.\n")
	if jsonOnly {
		b.WriteString("Your response should be just the JSON object, properly formatted.\n")
	}
	return b.String(), nil
}

// enrichedPayload is the provider-supplied portion of an enriched record.
type enrichedPayload struct {
	Name               string                        `json:"name"`
	Programs           []admissions.Program          `json:"programs"`
	ApplicationProcess admissions.ApplicationProcess `json:"application_process"`
}

// extractJSON returns the substring between the first '{' and the last '}'.
// Providers often wrap the object in prose despite instructions.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", errors.New("no JSON object in response")
	}
	return text[start : end+1], nil
}

// assembleRecord decodes a provider reply and attaches record metadata.
func assembleRecord(record admissions.AdmissionsRecord, reply, provider string, clk admissions.Clock) (admissions.EnrichedRecord, error) {
	jsonStr, err := extractJSON(reply)
	if err != nil {
		return admissions.EnrichedRecord{}, err
	}
	var payload enrichedPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return admissions.EnrichedRecord{}, fmt.Errorf("parse enriched JSON: %w", err)
	}
	name := payload.Name
	if name == "" {
		name = record.Name
	}
	scraped := record
	return admissions.EnrichedRecord{
		Name:               name,
		URL:                record.URL,
		Programs:           payload.Programs,
		ApplicationProcess: payload.ApplicationProcess,
		ScrapedData:        &scraped,
		EnrichedAt:         clk.Now().Format(admissions.TimeFormat),
		EnrichedBy:         provider,
	}, nil
}

// snippet trims a response body for error messages.
func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
