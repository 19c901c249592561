package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/admissions"
)

func enrichedFixture() admissions.EnrichedRecord {
	return admissions.EnrichedRecord{
		Name: "Flagship State University",
		URL:  "https://flagship.edu/admissions",
		Programs: []admissions.Program{
			{
				Name:        "Computer Science",
				Description: "Algorithms, systems and theory.",
				DegreeType:  "Bachelor's",
				Department:  "School of Engineering",
			},
			{Name: "Data Science", DegreeType: "Master's"},
		},
		ApplicationProcess: admissions.ApplicationProcess{
			EarlyAdmission: admissions.AdmissionRound{
				Deadline:         "November 1",
				NotificationDate: "Mid-December",
				Restrictions:     "Restrictive early action",
			},
			RegularAdmission: admissions.AdmissionRound{
				Deadline: "January 5",
			},
			GeneralRequirements: []string{"High school transcript", "Two essays"},
		},
		EnrichedAt: "2024-05-01 11:00:00",
		EnrichedBy: admissions.ProviderSimulation,
	}
}

func TestRenderFullRecord(t *testing.T) {
	t.Parallel()

	want := `# Flagship State University Admissions Report

Website: [Flagship State University](https://flagship.edu/admissions)

## Academic Programs

### Computer Science

**Degree Type:** Bachelor's

**Department:** School of Engineering

Algorithms, systems and theory.

### Data Science

**Degree Type:** Master's

## Application Process

### Early Admission

**Deadline:** November 1

**Notification Date:** Mid-December

**Restrictions:** Restrictive early action

### Regular Admission

**Deadline:** January 5

### General Requirements

- High school transcript
- Two essays

---

*This report was generated from data enriched at 2024-05-01 11:00:00*
`

	require.Equal(t, want, Render(enrichedFixture()))
}

func TestRenderEmptySections(t *testing.T) {
	t.Parallel()

	rec := admissions.EnrichedRecord{
		Name:       "Empty College",
		URL:        "https://empty.example.edu",
		EnrichedAt: "2024-05-01 11:00:00",
	}

	out := Render(rec)

	require.Contains(t, out, "*No program information available.*")
	require.Contains(t, out, "*No early admission information available.*")
	require.Contains(t, out, "*No regular admission information available.*")
	require.Contains(t, out, "*No general requirements information available.*")
	require.NotContains(t, out, "**Deadline:**")
}

func TestSafeName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"spaces", "Flagship State University", "flagship_state_university"},
		{"apostrophe and ampersand", "St. Mary's College & Institute", "st._marys_college_and_institute"},
		{"already plain", "mit", "mit"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, SafeName(tc.in))
		})
	}
}

func TestWriteAllCreatesReportsAndIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// Out of alphabetical order so the index has to sort.
	records := []admissions.EnrichedRecord{
		{Name: "Zenith University", URL: "https://zenith.edu", EnrichedAt: "2024-05-01 11:00:00"},
		{Name: "Apex College", URL: "https://apex.edu", EnrichedAt: "2024-05-01 11:00:00"},
	}

	w := NewWriter(dir, zap.NewNop())
	require.NoError(t, w.WriteAll(records))

	zenith, err := os.ReadFile(filepath.Join(dir, "zenith_university_report.md"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(zenith), "# Zenith University Admissions Report\n"))

	_, err = os.Stat(filepath.Join(dir, "apex_college_report.md"))
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(dir, "index.md"))
	require.NoError(t, err)
	want := "# University Admissions Reports\n\n## Available Reports\n\n" +
		"- [Apex College](apex_college_report.md)\n" +
		"- [Zenith University](zenith_university_report.md)\n"
	require.Equal(t, want, string(index))
}

func TestWriteAllCreatesMissingDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "reports", "latest")
	w := NewWriter(dir, zap.NewNop())
	require.NoError(t, w.WriteAll([]admissions.EnrichedRecord{enrichedFixture()}))

	_, err := os.Stat(filepath.Join(dir, "flagship_state_university_report.md"))
	require.NoError(t, err)
}
