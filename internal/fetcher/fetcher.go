// Package fetcher composes static retrieval, headless promotion, retries,
// and the fallback URL policy into the pipeline's Fetcher.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/fetcher/headless"
	"github.com/campusdata/admissions-crawler/internal/metrics"
)

// PageFetcher retrieves a single URL. Implemented by the colly fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (admissions.RawPage, error)
}

// Renderer re-fetches a URL with a JavaScript-capable browser.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (admissions.RawPage, error)
}

// Detector flags static bodies that need a headless re-fetch.
type Detector interface {
	ShouldPromote(page admissions.RawPage) bool
}

// Limiter throttles requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls retry behavior.
type Config struct {
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Composite implements admissions.Fetcher. Every attempt waits on the
// per-host limiter first; timeouts are retried with backoff, a failed
// primary URL falls back to the target's fallback URL, and script-rendered
// bodies are promoted to the headless renderer.
type Composite struct {
	static   PageFetcher
	renderer Renderer
	detector Detector
	limiter  Limiter
	retry    *retryPolicy
	clock    admissions.Clock
	logger   *zap.Logger
}

// New builds a Composite fetcher.
func New(
	static PageFetcher,
	renderer Renderer,
	detector Detector,
	limiter Limiter,
	clock admissions.Clock,
	cfg Config,
	logger *zap.Logger,
) *Composite {
	return &Composite{
		static:   static,
		renderer: renderer,
		detector: detector,
		limiter:  limiter,
		retry:    newRetryPolicy(cfg),
		clock:    clock,
		logger:   logger,
	}
}

// Fetch retrieves the admissions page for one target.
func (c *Composite) Fetch(ctx context.Context, target admissions.UniversityTarget) (admissions.RawPage, error) {
	start := time.Now()

	page, err := c.fetchURL(ctx, target.URL)
	if err != nil && target.FallbackURL != "" && ctx.Err() == nil {
		c.logger.Warn("primary fetch failed, trying fallback",
			zap.String("university", target.Name),
			zap.String("fallback_url", target.FallbackURL),
			zap.Error(err),
		)
		page, err = c.fetchURL(ctx, target.FallbackURL)
	}
	if err != nil {
		metrics.ObserveFetch(target.URL, "failed", 0, time.Since(start))
		return admissions.RawPage{}, err
	}

	if c.detector.ShouldPromote(page) {
		page = c.promote(ctx, page)
	}

	page.FetchedAt = c.clock.Now()
	metrics.ObserveFetch(page.URL, string(page.Strategy), len(page.Body), time.Since(start))
	return page, nil
}

// fetchURL runs the static fetch with the retry policy. The limiter is
// consulted before every attempt, retries included.
func (c *Composite) fetchURL(ctx context.Context, rawURL string) (admissions.RawPage, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx, rawURL); err != nil {
			return admissions.RawPage{}, err
		}

		page, err := c.static.Fetch(ctx, rawURL)
		if err == nil {
			return page, nil
		}
		if !c.retry.ShouldRetry(err, attempt+1) {
			return admissions.RawPage{}, err
		}

		backoff := c.retry.Backoff(attempt)
		c.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return admissions.RawPage{}, fmt.Errorf("fetch retry canceled: %w", ctx.Err())
		}
	}
}

// promote re-fetches the page with the headless renderer. Renderer failures
// keep the static body; a worse render never loses a usable page.
func (c *Composite) promote(ctx context.Context, page admissions.RawPage) admissions.RawPage {
	if err := c.limiter.Wait(ctx, page.URL); err != nil {
		return page
	}
	rendered, err := c.renderer.Render(ctx, page.URL)
	if err != nil {
		if !errors.Is(err, headless.ErrDisabled) {
			c.logger.Debug("headless render failed, keeping static body",
				zap.String("url", page.URL),
				zap.Error(err),
			)
		}
		return page
	}
	return rendered
}
