// Package collyfetcher implements static page retrieval using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/campusdata/admissions-crawler/internal/admissions"
)

// ErrTooManyRedirects aborts a redirect chain past the configured cap.
var ErrTooManyRedirects = errors.New("too many redirects")

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int
}

// Fetcher retrieves pages over plain HTTP using a Colly collector. It is
// the first strategy tried for every target; script-heavy pages get
// re-fetched by the headless renderer.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())

	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single HTTP GET and returns the raw page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (admissions.RawPage, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.SetRedirectHandler(func(_ *http.Request, via []*http.Request) error {
		if len(via) >= f.cfg.MaxRedirects {
			return ErrTooManyRedirects
		}
		return nil
	})

	var (
		page     admissions.RawPage
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		page = admissions.RawPage{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Strategy:   admissions.FetchStatic,
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = classify(rawURL, r, err)
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return admissions.RawPage{}, fmt.Errorf("fetch %s canceled: %w", rawURL, ctx.Err())
	case err := <-done:
		if err != nil {
			return admissions.RawPage{}, classify(rawURL, nil, err)
		}
		if fetchErr != nil {
			return admissions.RawPage{}, fetchErr
		}
		return page, nil
	}
}

// classify maps transport failures onto the fetch error taxonomy. Errors
// outside it pass through wrapped.
func classify(rawURL string, r *colly.Response, err error) error {
	if r != nil && r.StatusCode >= 300 {
		return admissions.NewFetchError(admissions.FetchNonSuccessStatus, rawURL, r.StatusCode, err)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, ErrTooManyRedirects):
		return admissions.NewFetchError(admissions.FetchTooManyRedirects, rawURL, 0, err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return admissions.NewFetchError(admissions.FetchConnectionRefused, rawURL, 0, err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return admissions.NewFetchError(admissions.FetchTimeout, rawURL, 0, err)
	default:
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
