package extractor

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/campusdata/admissions-crawler/internal/admissions"
)

// Rule pairs a CSS selector with an optional substring filter on element
// text. The filter stands in for the :contains() pseudo-class, which
// cascadia does not implement; like soupsieve it matches case-sensitively.
type Rule struct {
	Selector string
	Contains string
}

// HostRule scopes a Rule to one field for hosts matching a config key.
type HostRule struct {
	Field    string
	Selector string
	Contains string
}

// CSS extracts fields through selector rules tuned for common admissions
// page layouts. Per-host overrides replace the default rules for the fields
// they name; a host key matches any target URL containing it.
type CSS struct {
	overrides map[string][]HostRule
}

// NewCSS builds the CSS strategy.
func NewCSS(overrides map[string][]HostRule) *CSS {
	return &CSS{overrides: overrides}
}

// Name implements Strategy.
func (s *CSS) Name() string { return admissions.SourceCSS }

// ExtractField implements Strategy.
func (s *CSS) ExtractField(_ context.Context, field string, src *Source) ([]string, error) {
	if src.Doc == nil {
		return nil, nil
	}

	limit := admissions.FieldCap(field)
	seen := make(map[string]bool)
	var values []string

	for _, rule := range s.rulesFor(src.Page.URL)[field] {
		matches := src.Doc.Find(rule.Selector)
		if rule.Contains != "" {
			matches = matches.FilterFunction(func(_ int, sel *goquery.Selection) bool {
				return strings.Contains(sel.Text(), rule.Contains)
			})
		}
		matches.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := collapseSpace(sel.Text())
			if text == "" || seen[text] {
				return true
			}
			seen[text] = true
			values = append(values, text)
			return len(values) < limit
		})
		if len(values) >= limit {
			break
		}
	}
	return values, nil
}

// rulesFor merges host overrides into the default ruleset. Matching follows
// the URL substring convention, so a "harvard" key covers both harvard.edu
// and college.harvard.edu targets.
func (s *CSS) rulesFor(rawURL string) map[string][]Rule {
	rules := defaultRules
	lowered := strings.ToLower(rawURL)

	for hostKey, hostRules := range s.overrides {
		if !strings.Contains(lowered, strings.ToLower(hostKey)) {
			continue
		}
		merged := make(map[string][]Rule, len(rules))
		for field, r := range rules {
			merged[field] = r
		}
		overridden := make(map[string][]Rule)
		for _, hr := range hostRules {
			overridden[hr.Field] = append(overridden[hr.Field], Rule{Selector: hr.Selector, Contains: hr.Contains})
		}
		for field, r := range overridden {
			merged[field] = r
		}
		rules = merged
	}
	return rules
}

// defaultRules mirror the selector sets that have held up across a wide
// sample of admissions pages. Grouped selectors keep document order within a
// rule; rules are consulted top to bottom.
var defaultRules = map[string][]Rule{
	admissions.FieldCourses: {
		{Selector: "div.programs, ul.course-list, .majors, .degrees, .academics, .concentration, " +
			".field-of-study, .study-areas, .curriculum, .courses, .majors-list, .programs-list, " +
			".degrees-list, h3 + ul li, h2 + ul li, .main-content li, .content li, " +
			".academic-programs li, .academic-departments li"},
	},
	admissions.FieldCourseDescriptions: {
		{Selector: ".program-description, .course-description, .major-description, " +
			".degree-description, .academics p, .major-info p, .program-info p, " +
			".concentration-info p, .curriculum p, .courses p"},
	},
	admissions.FieldAdmissionsRequirements: {
		{Selector: "div.requirements, .admission, .eligibility, ul.requirements, " +
			".application-requirements, .admissions-info, .criteria, .prerequisites, " +
			".qualifications, .admissions p, .apply p, .requirements p, .admissions li, " +
			".apply li, .requirements li"},
	},
	admissions.FieldApplicationDeadlines: {
		{Selector: "div.deadlines, .dates, table.deadlines, .calendar, .timeline, .due-dates, " +
			".important-dates, .key-dates, .admissions-calendar, .application-timeline, .deadline"},
		{Selector: "h3", Contains: "deadline"},
		{Selector: "h4", Contains: "deadline"},
		{Selector: "p", Contains: "deadline"},
		{Selector: "li", Contains: "deadline"},
		{Selector: "time, .date"},
	},
	admissions.FieldEarlyAdmission: {
		{Selector: ".early-action, .early-decision, #early-admission"},
		{Selector: "p", Contains: "Early Action"},
		{Selector: "p", Contains: "Early Decision"},
		{Selector: "h3", Contains: "Early Action"},
		{Selector: "h3", Contains: "Early Decision"},
		{Selector: "h4", Contains: "Early Action"},
		{Selector: "h4", Contains: "Early Decision"},
		{Selector: ".dates", Contains: "November"},
		{Selector: ".dates", Contains: "December"},
		{Selector: ".deadlines", Contains: "November"},
		{Selector: ".deadlines", Contains: "December"},
	},
	admissions.FieldRegularAdmission: {
		{Selector: ".regular-decision, .regular-admission, #regular-admission"},
		{Selector: "p", Contains: "Regular Decision"},
		{Selector: "p", Contains: "Regular Admission"},
		{Selector: "h3", Contains: "Regular Decision"},
		{Selector: "h3", Contains: "Regular Admission"},
		{Selector: "h4", Contains: "Regular Decision"},
		{Selector: "h4", Contains: "Regular Admission"},
		{Selector: ".dates", Contains: "January"},
		{Selector: ".deadlines", Contains: "January"},
	},
}
