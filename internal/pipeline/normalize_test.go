package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campusdata/admissions-crawler/internal/admissions"
)

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

// TestNormalizeCleansEntries covers whitespace collapsing, consecutive
// duplicate dropping, and empty entry removal.
func TestNormalizeCleansEntries(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(fixedClock{at: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)})
	fields := admissions.ProvisionalFields{
		admissions.FieldCourses: {
			"  Computer Science \n BS ",
			"Computer Science BS",
			"   ",
			"Mathematics\tBA",
		},
	}
	sources := map[string]string{admissions.FieldCourses: admissions.SourceCSS}

	record := n.Normalize("Test University", "https://test.example.edu", fields, sources)

	require.Equal(t, []string{"Computer Science BS", "Mathematics BA"}, record.Courses)
	require.Equal(t, admissions.SourceCSS, record.FieldSources[admissions.FieldCourses])
	require.Equal(t, "2024-05-01 10:30:00", record.ScrapedAt)
}

// TestNormalizeFillsSentinels ensures absent fields become the sentinel list
// with source "none", and no list field is ever empty.
func TestNormalizeFillsSentinels(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(fixedClock{at: time.Now()})
	record := n.Normalize("Empty University", "https://empty.example.edu", nil, nil)

	for _, field := range admissions.FieldNames() {
		require.Equal(t, admissions.SentinelList(), record.Field(field), "field %s", field)
		require.Equal(t, admissions.SourceNone, record.FieldSources[field])
	}
}

// TestNormalizeWhitespaceOnlyField treats a field whose entries all clean to
// empty as absent.
func TestNormalizeWhitespaceOnlyField(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(fixedClock{at: time.Now()})
	fields := admissions.ProvisionalFields{
		admissions.FieldApplicationDeadlines: {"   ", "\n\t"},
	}
	sources := map[string]string{admissions.FieldApplicationDeadlines: admissions.SourceKeyword}

	record := n.Normalize("Blank University", "https://blank.example.edu", fields, sources)

	require.Equal(t, admissions.SentinelList(), record.ApplicationDeadlines)
	require.Equal(t, admissions.SourceNone, record.FieldSources[admissions.FieldApplicationDeadlines])
}

// TestNormalizeKeepsNonConsecutiveDuplicates drops only back-to-back repeats.
func TestNormalizeKeepsNonConsecutiveDuplicates(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(fixedClock{at: time.Now()})
	fields := admissions.ProvisionalFields{
		admissions.FieldAdmissionsRequirements: {"GPA 3.0", "Essay", "GPA 3.0"},
	}
	record := n.Normalize("Dup University", "https://dup.example.edu", fields,
		map[string]string{admissions.FieldAdmissionsRequirements: admissions.SourceCSS})

	require.Equal(t, []string{"GPA 3.0", "Essay", "GPA 3.0"}, record.AdmissionsRequirements)
}
