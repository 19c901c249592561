package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/clock/system"
)

// detailedEntryLength is the cutoff above which an entry counts as detailed.
const detailedEntryLength = 100

// briefFieldLength flags fields whose joined text is too short to be useful.
const briefFieldLength = 50

// Completion counts how many universities produced each core field.
type Completion struct {
	TotalUniversities      int     `json:"total_universities"`
	CoursesCompletion      float64 `json:"courses_completion"`
	RequirementsCompletion float64 `json:"requirements_completion"`
	DeadlinesCompletion    float64 `json:"deadlines_completion"`
	AllDataCompletion      float64 `json:"all_data_completion"`
	CoursesCount           int     `json:"courses_count"`
	RequirementsCount      int     `json:"requirements_count"`
	DeadlinesCount         int     `json:"deadlines_count"`
	CompleteDataCount      int     `json:"complete_data_count"`
}

// Quality holds average entry lengths and detailed-entry counts per field.
type Quality struct {
	AvgCourseLength       float64 `json:"avg_course_length"`
	AvgRequirementsLength float64 `json:"avg_requirements_length"`
	AvgDeadlinesLength    float64 `json:"avg_deadlines_length"`
	DetailedCourses       int     `json:"detailed_courses"`
	DetailedRequirements  int     `json:"detailed_requirements"`
	DetailedDeadlines     int     `json:"detailed_deadlines"`
}

// UniversityIssues flags one university with missing or thin data.
type UniversityIssues struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Issues []string `json:"issues"`
}

// Analysis is the full data quality report over a set of scraped records.
type Analysis struct {
	Timestamp  string             `json:"timestamp"`
	Completion Completion         `json:"completion_metrics"`
	Quality    Quality            `json:"quality_metrics"`
	Issues     []UniversityIssues `json:"universities_with_issues"`
}

// Analyze computes completion rates, quality metrics and per-university
// issues for a set of scraped records. A nil clock uses the system clock.
func Analyze(records []admissions.AdmissionsRecord, clk admissions.Clock) Analysis {
	if clk == nil {
		clk = system.New()
	}
	return Analysis{
		Timestamp:  clk.Now().Format(admissions.TimeFormat),
		Completion: analyzeCompletion(records),
		Quality:    analyzeQuality(records),
		Issues:     findIssues(records),
	}
}

func analyzeCompletion(records []admissions.AdmissionsRecord) Completion {
	c := Completion{TotalUniversities: len(records)}
	for _, rec := range records {
		courses := !admissions.IsSentinel(rec.Courses)
		reqs := !admissions.IsSentinel(rec.AdmissionsRequirements)
		deadlines := !admissions.IsSentinel(rec.ApplicationDeadlines)
		if courses {
			c.CoursesCount++
		}
		if reqs {
			c.RequirementsCount++
		}
		if deadlines {
			c.DeadlinesCount++
		}
		if courses && reqs && deadlines {
			c.CompleteDataCount++
		}
	}
	if c.TotalUniversities > 0 {
		total := float64(c.TotalUniversities)
		c.CoursesCompletion = float64(c.CoursesCount) / total * 100
		c.RequirementsCompletion = float64(c.RequirementsCount) / total * 100
		c.DeadlinesCompletion = float64(c.DeadlinesCount) / total * 100
		c.AllDataCompletion = float64(c.CompleteDataCount) / total * 100
	}
	return c
}

func analyzeQuality(records []admissions.AdmissionsRecord) Quality {
	var q Quality
	var courseN, reqN, deadlineN int
	var courseSum, reqSum, deadlineSum int

	for _, rec := range records {
		for _, entry := range rec.Courses {
			if entry == admissions.Sentinel {
				continue
			}
			courseN++
			courseSum += len(entry)
			if len(entry) > detailedEntryLength {
				q.DetailedCourses++
			}
		}
		for _, entry := range rec.AdmissionsRequirements {
			if entry == admissions.Sentinel {
				continue
			}
			reqN++
			reqSum += len(entry)
			if len(entry) > detailedEntryLength {
				q.DetailedRequirements++
			}
		}
		for _, entry := range rec.ApplicationDeadlines {
			if entry == admissions.Sentinel {
				continue
			}
			deadlineN++
			deadlineSum += len(entry)
			if len(entry) > detailedEntryLength {
				q.DetailedDeadlines++
			}
		}
	}

	if courseN > 0 {
		q.AvgCourseLength = float64(courseSum) / float64(courseN)
	}
	if reqN > 0 {
		q.AvgRequirementsLength = float64(reqSum) / float64(reqN)
	}
	if deadlineN > 0 {
		q.AvgDeadlinesLength = float64(deadlineSum) / float64(deadlineN)
	}
	return q
}

func findIssues(records []admissions.AdmissionsRecord) []UniversityIssues {
	var out []UniversityIssues
	for _, rec := range records {
		var issues []string

		if admissions.IsSentinel(rec.Courses) {
			issues = append(issues, "Missing course information")
		} else if len(strings.Join(rec.Courses, " ")) < briefFieldLength {
			issues = append(issues, "Very brief course information")
		}

		if admissions.IsSentinel(rec.AdmissionsRequirements) {
			issues = append(issues, "Missing admissions requirements")
		} else if len(strings.Join(rec.AdmissionsRequirements, " ")) < briefFieldLength {
			issues = append(issues, "Very brief admissions requirements")
		}

		if admissions.IsSentinel(rec.ApplicationDeadlines) {
			issues = append(issues, "Missing application deadlines")
		}

		if len(issues) > 0 {
			out = append(out, UniversityIssues{Name: rec.Name, URL: rec.URL, Issues: issues})
		}
	}
	return out
}

// Text renders the analysis as a human-readable report.
func (a Analysis) Text() string {
	var b strings.Builder

	b.WriteString("# University Admissions Scraper Report\n")
	fmt.Fprintf(&b, "Generated on: %s\n\n", a.Timestamp)

	b.WriteString("## Summary Statistics\n")
	fmt.Fprintf(&b, "- Total Universities: %d\n", a.Completion.TotalUniversities)
	fmt.Fprintf(&b, "- Universities with Complete Data: %d (%.1f%%)\n\n",
		a.Completion.CompleteDataCount, a.Completion.AllDataCompletion)

	b.WriteString("## Data Completion Rates\n")
	fmt.Fprintf(&b, "- Courses Information: %d universities (%.1f%%)\n",
		a.Completion.CoursesCount, a.Completion.CoursesCompletion)
	fmt.Fprintf(&b, "- Admissions Requirements: %d universities (%.1f%%)\n",
		a.Completion.RequirementsCount, a.Completion.RequirementsCompletion)
	fmt.Fprintf(&b, "- Application Deadlines: %d universities (%.1f%%)\n\n",
		a.Completion.DeadlinesCount, a.Completion.DeadlinesCompletion)

	b.WriteString("## Data Quality Metrics\n")
	fmt.Fprintf(&b, "- Average Course Description Length: %.1f characters\n", a.Quality.AvgCourseLength)
	fmt.Fprintf(&b, "- Average Requirements Description Length: %.1f characters\n", a.Quality.AvgRequirementsLength)
	fmt.Fprintf(&b, "- Average Deadlines Description Length: %.1f characters\n", a.Quality.AvgDeadlinesLength)
	fmt.Fprintf(&b, "- Detailed Course Descriptions: %d\n", a.Quality.DetailedCourses)
	fmt.Fprintf(&b, "- Detailed Requirements Descriptions: %d\n", a.Quality.DetailedRequirements)
	fmt.Fprintf(&b, "- Detailed Deadlines Descriptions: %d\n", a.Quality.DetailedDeadlines)

	if len(a.Issues) > 0 {
		b.WriteString("\n## Universities with Data Issues\n")
		for _, uni := range a.Issues {
			fmt.Fprintf(&b, "- %s\n", uni.Name)
			for _, issue := range uni.Issues {
				fmt.Fprintf(&b, "  * %s\n", issue)
			}
		}
	}

	return b.String()
}

// JSON renders the analysis as indented JSON.
func (a Analysis) JSON() ([]byte, error) {
	out, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	return out, nil
}
