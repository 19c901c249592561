// Package pipeline turns university targets into validated admissions
// records: it loads targets, orchestrates fetch and extraction under a
// bounded worker pool, normalizes the results, and persists them atomically.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/admissions"
)

// LoadTargets reads a JSON array of university targets from path. Entries
// missing a name or URL are skipped with a warning; URLs without a scheme
// get an https prefix. Order of the surviving entries is preserved.
func LoadTargets(path string, logger *zap.Logger) ([]admissions.UniversityTarget, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file %s: %w", path, err)
	}
	return ParseTargets(raw, logger)
}

// ParseTargets decodes and sanitizes a JSON array of targets.
func ParseTargets(raw []byte, logger *zap.Logger) ([]admissions.UniversityTarget, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var entries []admissions.UniversityTarget
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse targets: %w", err)
	}
	targets := make([]admissions.UniversityTarget, 0, len(entries))
	for i, entry := range entries {
		entry.Name = strings.TrimSpace(entry.Name)
		entry.URL = normalizeTargetURL(entry.URL)
		entry.FallbackURL = normalizeTargetURL(entry.FallbackURL)
		if entry.Name == "" || entry.URL == "" {
			logger.Warn("skipping malformed target",
				zap.Int("index", i),
				zap.String("name", entry.Name),
				zap.String("url", entry.URL))
			continue
		}
		targets = append(targets, entry)
	}
	return targets, nil
}

// normalizeTargetURL trims whitespace and ensures a scheme is present.
func normalizeTargetURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return "https://" + trimmed
	}
	return trimmed
}
