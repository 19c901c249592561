package pipeline

import (
	"strings"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/clock/system"
)

// Normalizer turns provisional extraction output into a validated record.
// Every list field of the result holds at least one entry.
type Normalizer struct {
	clock admissions.Clock
}

// NewNormalizer builds a Normalizer. A nil clock falls back to the system
// clock.
func NewNormalizer(clk admissions.Clock) *Normalizer {
	if clk == nil {
		clk = system.New()
	}
	return &Normalizer{clock: clk}
}

// Normalize cleans the provisional fields for one target and stamps the
// record with the normalization time. Absent or empty fields become the
// sentinel list and their source is recorded as "none".
func (n *Normalizer) Normalize(name, pageURL string, fields admissions.ProvisionalFields, sources map[string]string) admissions.AdmissionsRecord {
	record := admissions.AdmissionsRecord{
		Name:         name,
		URL:          pageURL,
		ScrapedAt:    n.clock.Now().Format(admissions.TimeFormat),
		FieldSources: make(map[string]string),
	}
	for _, field := range admissions.FieldNames() {
		values := cleanEntries(fields[field])
		source := sources[field]
		if len(values) == 0 {
			values = admissions.SentinelList()
			source = admissions.SourceNone
		}
		record.SetField(field, values)
		record.FieldSources[field] = source
	}
	return record
}

// cleanEntries trims each entry, collapses embedded newlines and runs of
// whitespace to single spaces, drops entries that become empty, and drops
// exact duplicates of the preceding entry.
func cleanEntries(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		cleaned := strings.Join(strings.Fields(value), " ")
		if cleaned == "" {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == cleaned {
			continue
		}
		out = append(out, cleaned)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
