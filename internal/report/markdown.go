// Package report renders enriched admissions data into Markdown documents
// and computes data quality statistics over scraped records.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/admissions"
)

// Writer renders one Markdown report per university plus an index file.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter returns a Writer rooted at dir.
func NewWriter(dir string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, logger: logger}
}

// WriteAll renders every record into <safe_name>_report.md and writes an
// index.md sorted by university name. A failed report is logged and skipped
// so one bad record cannot block the rest.
func (w *Writer) WriteAll(records []admissions.EnrichedRecord) error {
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return fmt.Errorf("create report dir %s: %w", w.dir, err)
	}

	var failed int
	for _, rec := range records {
		path := filepath.Join(w.dir, SafeName(rec.Name)+"_report.md")
		if err := os.WriteFile(path, []byte(Render(rec)), 0o600); err != nil {
			failed++
			w.logger.Error("report write failed",
				zap.String("university", rec.Name),
				zap.Error(err),
			)
			continue
		}
		w.logger.Info("report written",
			zap.String("university", rec.Name),
			zap.String("path", path),
		)
	}

	if err := w.writeIndex(records); err != nil {
		return err
	}

	w.logger.Info("reports generated",
		zap.Int("count", len(records)-failed),
		zap.String("dir", w.dir),
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d reports failed", failed, len(records))
	}
	return nil
}

func (w *Writer) writeIndex(records []admissions.EnrichedRecord) error {
	sorted := make([]admissions.EnrichedRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	b.WriteString("# University Admissions Reports\n\n")
	b.WriteString("## Available Reports\n\n")
	for _, rec := range sorted {
		fmt.Fprintf(&b, "- [%s](%s_report.md)\n", rec.Name, SafeName(rec.Name))
	}

	path := filepath.Join(w.dir, "index.md")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write report index %s: %w", path, err)
	}
	return nil
}

// Render produces the Markdown report body for one university.
func Render(rec admissions.EnrichedRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s Admissions Report\n\n", rec.Name)
	fmt.Fprintf(&b, "Website: [%s](%s)\n\n", rec.Name, rec.URL)

	b.WriteString("## Academic Programs\n\n")
	if len(rec.Programs) > 0 {
		for _, p := range rec.Programs {
			fmt.Fprintf(&b, "### %s\n\n", p.Name)
			if p.DegreeType != "" {
				fmt.Fprintf(&b, "**Degree Type:** %s\n\n", p.DegreeType)
			}
			if p.Department != "" {
				fmt.Fprintf(&b, "**Department:** %s\n\n", p.Department)
			}
			if p.Description != "" {
				fmt.Fprintf(&b, "%s\n\n", p.Description)
			}
		}
	} else {
		b.WriteString("*No program information available.*\n\n")
	}

	b.WriteString("## Application Process\n\n")

	b.WriteString("### Early Admission\n\n")
	early := rec.ApplicationProcess.EarlyAdmission
	if early != (admissions.AdmissionRound{}) {
		if early.Deadline != "" {
			fmt.Fprintf(&b, "**Deadline:** %s\n\n", early.Deadline)
		}
		if early.NotificationDate != "" {
			fmt.Fprintf(&b, "**Notification Date:** %s\n\n", early.NotificationDate)
		}
		if early.Restrictions != "" {
			fmt.Fprintf(&b, "**Restrictions:** %s\n\n", early.Restrictions)
		}
	} else {
		b.WriteString("*No early admission information available.*\n\n")
	}

	b.WriteString("### Regular Admission\n\n")
	regular := rec.ApplicationProcess.RegularAdmission
	if regular != (admissions.AdmissionRound{}) {
		if regular.Deadline != "" {
			fmt.Fprintf(&b, "**Deadline:** %s\n\n", regular.Deadline)
		}
		if regular.NotificationDate != "" {
			fmt.Fprintf(&b, "**Notification Date:** %s\n\n", regular.NotificationDate)
		}
	} else {
		b.WriteString("*No regular admission information available.*\n\n")
	}

	b.WriteString("### General Requirements\n\n")
	if reqs := rec.ApplicationProcess.GeneralRequirements; len(reqs) > 0 {
		for _, req := range reqs {
			fmt.Fprintf(&b, "- %s\n", req)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("*No general requirements information available.*\n\n")
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "*This report was generated from data enriched at %s*\n", rec.EnrichedAt)

	return b.String()
}

// SafeName converts a university name into a filesystem-friendly slug.
// Spaces become underscores, apostrophes are dropped and ampersands spelled
// out, then the whole name is lowercased.
func SafeName(name string) string {
	s := strings.ReplaceAll(name, " ", "_")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "&", "and")
	return strings.ToLower(s)
}
