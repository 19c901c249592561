package enrichment

import (
	"context"
	"strings"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/clock/system"
)

// junkCourseMarkers flag scraped course entries that are page chrome rather
// than programs.
var junkCourseMarkers = []string{
	"accepts",
	"committed",
	"university is",
	"chart",
	"code of conduct",
}

// Simulation organizes the scraped data deterministically, without any
// network calls. It is the fallback when no provider key is configured or a
// provider exchange fails, and it never returns an error.
type Simulation struct {
	clock admissions.Clock
}

var _ admissions.EnrichmentProvider = (*Simulation)(nil)

// NewSimulation builds the offline provider.
func NewSimulation(clk admissions.Clock) *Simulation {
	if clk == nil {
		clk = system.New()
	}
	return &Simulation{clock: clk}
}

// Name reports the provider label stamped into enriched records.
func (s *Simulation) Name() string { return admissions.ProviderSimulation }

// Enrich reorganizes one record. Sentinel fields contribute nothing.
func (s *Simulation) Enrich(_ context.Context, record admissions.AdmissionsRecord) (admissions.EnrichedRecord, error) {
	scraped := record
	enriched := admissions.EnrichedRecord{
		Name:        record.Name,
		URL:         record.URL,
		Programs:    []admissions.Program{},
		ScrapedData: &scraped,
		EnrichedAt:  s.clock.Now().Format(admissions.TimeFormat),
		EnrichedBy:  s.Name(),
	}
	enriched.ApplicationProcess.GeneralRequirements = []string{}

	if !admissions.IsSentinel(record.Courses) {
		for _, course := range record.Courses {
			trimmed := strings.TrimSpace(course)
			if trimmed == "" || strings.HasPrefix(trimmed, "* [") || isJunkCourse(trimmed) {
				continue
			}
			enriched.Programs = append(enriched.Programs, admissions.Program{
				Name:       trimmed,
				DegreeType: degreeType(trimmed),
			})
		}
	}

	if !admissions.IsSentinel(record.AdmissionsRequirements) {
		for _, req := range record.AdmissionsRequirements {
			trimmed := strings.TrimSpace(req)
			if trimmed == "" || strings.HasPrefix(trimmed, "* [") {
				continue
			}
			if strings.Contains(strings.ToLower(trimmed), "skip to") {
				continue
			}
			enriched.ApplicationProcess.GeneralRequirements = append(
				enriched.ApplicationProcess.GeneralRequirements, trimmed)
		}
	}

	if !admissions.IsSentinel(record.EarlyAdmission) {
		enriched.ApplicationProcess.EarlyAdmission = earlyRound(record.EarlyAdmission)
	}
	if !admissions.IsSentinel(record.RegularAdmission) {
		enriched.ApplicationProcess.RegularAdmission = regularRound(record.RegularAdmission)
	}
	return enriched, nil
}

func isJunkCourse(course string) bool {
	lower := strings.ToLower(course)
	for _, marker := range junkCourseMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func degreeType(course string) string {
	lower := strings.ToLower(course)
	switch {
	case strings.Contains(lower, "master"):
		return "Master's"
	case strings.Contains(lower, "phd"), strings.Contains(lower, "doctorate"):
		return "PhD"
	default:
		return "Bachelor's"
	}
}

// earlyRound scans the early admission texts for a deadline, a notification
// date, and a restrictive-plan marker. Later matches overwrite earlier ones.
func earlyRound(texts []string) admissions.AdmissionRound {
	var round admissions.AdmissionRound
	for _, text := range texts {
		lower := strings.ToLower(text)
		if strings.Contains(lower, "november") {
			round.Deadline = strings.TrimSpace(text)
		}
		if strings.Contains(lower, "december") && strings.Contains(lower, "notified") {
			round.NotificationDate = strings.TrimSpace(text)
		}
		if strings.Contains(lower, "restrictive") {
			round.Restrictions = "Restrictive early action"
		}
	}
	return round
}

// regularRound scans the regular admission texts the same way.
func regularRound(texts []string) admissions.AdmissionRound {
	var round admissions.AdmissionRound
	for _, text := range texts {
		lower := strings.ToLower(text)
		if strings.Contains(lower, "january") {
			round.Deadline = strings.TrimSpace(text)
		}
		if strings.Contains(lower, "march") && strings.Contains(lower, "notified") {
			round.NotificationDate = strings.TrimSpace(text)
		}
	}
	return round
}
