// Package admissions defines core types shared across the pipeline.
package admissions

import "time"

// TimeFormat is the timestamp layout used in persisted records.
const TimeFormat = "2006-01-02 15:04:05"

// Sentinel is the placeholder stored when a field could not be extracted.
// List fields are never empty: a failed extraction yields [Sentinel].
const Sentinel = "Not found"

// Provider identifiers stamped into EnrichedRecord.EnrichedBy.
const (
	ProviderClaude     = "Claude AI"
	ProviderGroq       = "GROQ AI"
	ProviderSimulation = "Simulation"
)

// FetchStrategy names how a page body was obtained.
type FetchStrategy string

// Fetch strategies recorded on RawPage.
const (
	FetchStatic   FetchStrategy = "static"
	FetchHeadless FetchStrategy = "headless"
)

// UniversityTarget identifies one admissions page to crawl. Identity is Name;
// targets are immutable once loaded.
type UniversityTarget struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	FallbackURL string `json:"fallback_url,omitempty"`
}

// RawPage is the ephemeral product of a fetch, consumed by the extractor and
// never persisted. FinalURL reflects redirects and fallback retries.
type RawPage struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
	Strategy   FetchStrategy
}

// ProvisionalFields maps field names to extracted entries. An absent key
// means no strategy produced the field.
type ProvisionalFields map[string][]string

// AdmissionsRecord is the validated output of one target. Every list field
// holds at least one entry (the sentinel on failure). ScrapedAt carries the
// normalization time in TimeFormat.
type AdmissionsRecord struct {
	Name                   string            `json:"name"`
	URL                    string            `json:"url"`
	Courses                []string          `json:"courses"`
	CourseDescriptions     []string          `json:"course_descriptions"`
	AdmissionsRequirements []string          `json:"admissions_requirements"`
	ApplicationDeadlines   []string          `json:"application_deadlines"`
	EarlyAdmission         []string          `json:"early_admission"`
	RegularAdmission       []string          `json:"regular_admission"`
	ScrapedAt              string            `json:"scraped_at"`
	FieldSources           map[string]string `json:"field_sources,omitempty"`
	Error                  string            `json:"error,omitempty"`
}

// Program is one academic program inside an EnrichedRecord.
type Program struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DegreeType  string `json:"degree_type"`
	Department  string `json:"department"`
}

// AdmissionRound holds deadline details for one admission cycle. Absent
// values are omitted rather than serialized as empty strings pretending to
// be dates.
type AdmissionRound struct {
	Deadline         string `json:"deadline,omitempty"`
	NotificationDate string `json:"notification_date,omitempty"`
	Restrictions     string `json:"restrictions,omitempty"`
}

// ApplicationProcess groups admission rounds and shared requirements.
type ApplicationProcess struct {
	EarlyAdmission      AdmissionRound `json:"early_admission"`
	RegularAdmission    AdmissionRound `json:"regular_admission"`
	GeneralRequirements []string       `json:"general_requirements"`
}

// EnrichedRecord supersedes an AdmissionsRecord after enrichment. ScrapedData
// embeds the source record for reference. EnrichedBy is one of the Provider
// constants.
type EnrichedRecord struct {
	Name               string             `json:"name"`
	URL                string             `json:"url"`
	Programs           []Program          `json:"programs"`
	ApplicationProcess ApplicationProcess `json:"application_process"`
	ScrapedData        *AdmissionsRecord  `json:"scraped_data,omitempty"`
	EnrichedAt         string             `json:"enriched_at"`
	EnrichedBy         string             `json:"enriched_by"`
	Error              string             `json:"error,omitempty"`
}

// RunSummary aggregates crawl statistics for logging and job counters.
type RunSummary struct {
	Processed  int            `json:"processed"`
	Failed     int            `json:"failed"`
	FieldFound map[string]int `json:"field_found"`
}
