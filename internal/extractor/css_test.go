package extractor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campusdata/admissions-crawler/internal/admissions"
)

const admissionsFixture = `<html><body>
<div class="main-content">
  <ul>
    <li>Computer Science</li>
    <li>Mathematics</li>
    <li>Mathematics</li>
  </ul>
</div>
<div class="admissions">
  <p>Minimum GPA of 3.5 required.</p>
  <p>Two teacher recommendations.</p>
</div>
<p>The application deadline is January 1.</p>
<p>Early Action applications are due November 1.</p>
<p>Regular Decision applications are due January 1.</p>
</body></html>`

func fixtureSource(t *testing.T, url, body string) *Source {
	t.Helper()
	src := newSource(admissions.RawPage{
		URL:        url,
		FinalURL:   url,
		StatusCode: 200,
		Body:       []byte(body),
	})
	require.NotNil(t, src.Doc)
	return src
}

func TestCSSExtractFields(t *testing.T) {
	t.Parallel()

	css := NewCSS(nil)
	src := fixtureSource(t, "https://example.edu/admissions", admissionsFixture)
	ctx := context.Background()

	courses, err := css.ExtractField(ctx, admissions.FieldCourses, src)
	require.NoError(t, err)
	// Duplicate list entries collapse to one.
	require.Equal(t, []string{"Computer Science", "Mathematics"}, courses)

	reqs, err := css.ExtractField(ctx, admissions.FieldAdmissionsRequirements, src)
	require.NoError(t, err)
	require.Equal(t, []string{"Minimum GPA of 3.5 required.", "Two teacher recommendations."}, reqs)

	deadlines, err := css.ExtractField(ctx, admissions.FieldApplicationDeadlines, src)
	require.NoError(t, err)
	require.Equal(t, []string{"The application deadline is January 1."}, deadlines)

	early, err := css.ExtractField(ctx, admissions.FieldEarlyAdmission, src)
	require.NoError(t, err)
	require.Equal(t, []string{"Early Action applications are due November 1."}, early)

	regular, err := css.ExtractField(ctx, admissions.FieldRegularAdmission, src)
	require.NoError(t, err)
	require.Equal(t, []string{"Regular Decision applications are due January 1."}, regular)

	descriptions, err := css.ExtractField(ctx, admissions.FieldCourseDescriptions, src)
	require.NoError(t, err)
	require.Empty(t, descriptions)
}

func TestCSSFieldCap(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString(`<html><body><div class="content"><ul>`)
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, "<li>Program %d</li>", i)
	}
	b.WriteString(`</ul></div></body></html>`)

	css := NewCSS(nil)
	src := fixtureSource(t, "https://example.edu", b.String())

	courses, err := css.ExtractField(context.Background(), admissions.FieldCourses, src)
	require.NoError(t, err)
	require.Len(t, courses, 10)
}

func TestCSSContainsFilter(t *testing.T) {
	t.Parallel()

	body := `<html><body>
<p>Early Action closes November 1.</p>
<p>Campus tours run daily.</p>
</body></html>`
	css := NewCSS(nil)
	src := fixtureSource(t, "https://example.edu", body)

	early, err := css.ExtractField(context.Background(), admissions.FieldEarlyAdmission, src)
	require.NoError(t, err)
	require.Equal(t, []string{"Early Action closes November 1."}, early)
}

func TestCSSHostOverrides(t *testing.T) {
	t.Parallel()

	body := `<html><body>
<div class="fancy"><ul><li>Folklore and Mythology</li></ul></div>
<div class="main-content"><ul><li>Ignored Default Match</li></ul></div>
</body></html>`
	css := NewCSS(map[string][]HostRule{
		"harvard": {
			{Field: admissions.FieldCourses, Selector: ".fancy li"},
		},
	})

	src := fixtureSource(t, "https://college.harvard.edu/academics", body)
	courses, err := css.ExtractField(context.Background(), admissions.FieldCourses, src)
	require.NoError(t, err)
	require.Equal(t, []string{"Folklore and Mythology"}, courses)

	// Other hosts keep the default rules.
	src = fixtureSource(t, "https://example.edu/academics", body)
	courses, err = css.ExtractField(context.Background(), admissions.FieldCourses, src)
	require.NoError(t, err)
	require.Contains(t, courses, "Ignored Default Match")
}

func TestCSSNilDocument(t *testing.T) {
	t.Parallel()

	css := NewCSS(nil)
	values, err := css.ExtractField(context.Background(), admissions.FieldCourses, &Source{})
	require.NoError(t, err)
	require.Nil(t, values)
}
