// Package extractor turns raw admissions pages into provisional fields.
//
// Extraction runs a strategy chain per field: CSS rules first, then the LLM
// strategy when configured, then the deterministic keyword scan. The first
// strategy returning at least one entry wins the field; later strategies are
// not consulted for it. A page may therefore mix sources, CSS for courses and
// keyword for deadlines in the same pass.
package extractor

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/metrics"
)

// Source bundles a fetched page with parses shared across strategies, so the
// document is parsed once per page rather than once per field.
type Source struct {
	Page  admissions.RawPage
	Doc   *goquery.Document
	Lines []string
}

// Strategy attempts to produce entries for a single field. A nil slice with a
// nil error means the strategy had nothing to offer and the chain moves on.
type Strategy interface {
	Name() string
	ExtractField(ctx context.Context, field string, src *Source) ([]string, error)
}

// Chain implements admissions.Extractor over an ordered strategy list.
type Chain struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewChain builds a Chain. Strategies are tried in the given order.
func NewChain(logger *zap.Logger, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, logger: logger}
}

// Extract runs the strategy chain for every field.
func (c *Chain) Extract(ctx context.Context, page admissions.RawPage) (admissions.ProvisionalFields, map[string]string) {
	src := newSource(page)
	fields := admissions.ProvisionalFields{}
	sources := map[string]string{}

	for _, field := range admissions.FieldNames() {
		for _, strategy := range c.strategies {
			if ctx.Err() != nil {
				return fields, sources
			}
			values, err := strategy.ExtractField(ctx, field, src)
			if err != nil {
				extractErr := &admissions.ExtractionError{Field: field, Err: err}
				c.logger.Debug("extraction strategy failed",
					zap.String("strategy", strategy.Name()),
					zap.String("url", page.URL),
					zap.Error(extractErr),
				)
				continue
			}
			if len(values) == 0 {
				continue
			}
			fields[field] = values
			sources[field] = strategy.Name()
			metrics.ObserveExtraction(field, strategy.Name())
			break
		}
	}
	return fields, sources
}

// newSource parses the page body once. The line view feeds the keyword and
// LLM strategies; block-level elements each contribute one line, which
// approximates how the page reads as text.
func newSource(page admissions.RawPage) *Source {
	src := &Source{Page: page}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		src.Lines = splitPlainLines(string(page.Body))
		return src
	}
	src.Doc = doc

	doc.Find("p, li, h1, h2, h3, h4, h5, h6, td, th, dt, dd, blockquote").Each(func(_ int, sel *goquery.Selection) {
		if line := collapseSpace(sel.Text()); line != "" {
			src.Lines = append(src.Lines, line)
		}
	})
	if len(src.Lines) == 0 {
		src.Lines = splitPlainLines(doc.Text())
	}
	return src
}

func splitPlainLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := collapseSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// collapseSpace trims and folds runs of whitespace into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
