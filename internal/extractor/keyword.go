package extractor

import (
	"context"
	"strings"

	"github.com/campusdata/admissions-crawler/internal/admissions"
)

// Keyword is the last-resort strategy: a deterministic, network-free scan of
// the page's text lines against per-field keyword lists.
type Keyword struct{}

// NewKeyword builds the keyword strategy.
func NewKeyword() *Keyword { return &Keyword{} }

// Name implements Strategy.
func (s *Keyword) Name() string { return admissions.SourceKeyword }

var fieldKeywords = map[string][]string{
	admissions.FieldCourses: {
		"degree", "course", "program", "major", "bachelor", "master", "phd",
		"concentration", "field of study",
	},
	admissions.FieldCourseDescriptions: {
		"program", "study", "academic", "field", "course", "concentration",
	},
	admissions.FieldAdmissionsRequirements: {
		"requirement", "admission", "prerequisite", "qualify", "eligibility",
		"gpa", "test score", "application process",
	},
	admissions.FieldApplicationDeadlines: {
		"deadline", "date", "application period", "apply by", "due by",
		"submit by", "timeline",
	},
	admissions.FieldEarlyAdmission: {
		"early action", "early decision", "early admission", "november", "december",
	},
	admissions.FieldRegularAdmission: {
		"regular decision", "regular admission", "january", "february", "march", "april",
	},
}

// descriptionMinLength keeps course description candidates to lines long
// enough to actually describe something.
const descriptionMinLength = 80

// ExtractField implements Strategy.
func (s *Keyword) ExtractField(_ context.Context, field string, src *Source) ([]string, error) {
	keywords := fieldKeywords[field]
	if len(keywords) == 0 {
		return nil, nil
	}

	limit := admissions.FieldCap(field)
	var values []string
	for _, line := range src.Lines {
		if field == admissions.FieldCourseDescriptions && len(line) <= descriptionMinLength {
			continue
		}
		lowered := strings.ToLower(line)
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				values = append(values, line)
				break
			}
		}
		if len(values) >= limit {
			break
		}
	}
	return values, nil
}
