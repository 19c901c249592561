package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/clock/system"
	"github.com/campusdata/admissions-crawler/internal/hash/sha256"
	"github.com/campusdata/admissions-crawler/internal/metrics"
	"github.com/campusdata/admissions-crawler/internal/progress"
)

// Archiver stores raw page snapshots. Implementations live in the archive
// package; a nil Archiver disables archiving.
type Archiver interface {
	Save(ctx context.Context, objectName string, data []byte) error
}

// Config assembles an Orchestrator's collaborators and limits.
type Config struct {
	Fetcher    admissions.Fetcher
	Extractor  admissions.Extractor
	Normalizer *Normalizer
	Archive    Archiver
	Hasher     admissions.Hasher
	Emitter    progress.Emitter
	Clock      admissions.Clock
	Logger     *zap.Logger

	// MaxConcurrency bounds the worker pool (default 3). A slot spans the
	// whole fetch and extraction of one target.
	MaxConcurrency int
	// RunTimeout caps the entire run when > 0. Targets unfinished at
	// expiry are recorded as failed; the output keeps its full length.
	RunTimeout time.Duration
}

const defaultMaxConcurrency = 3

// Orchestrator fans targets out to a bounded worker pool and collects one
// record per target. Output order always equals input order.
type Orchestrator struct {
	cfg Config
}

// New validates cfg and builds an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("pipeline: fetcher is required")
	}
	if cfg.Extractor == nil {
		return nil, errors.New("pipeline: extractor is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = NewNormalizer(cfg.Clock)
	}
	if cfg.Hasher == nil {
		cfg.Hasher = sha256.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	return &Orchestrator{cfg: cfg}, nil
}

// Run crawls every target and returns one record per target in input order.
// The returned slice always has len(targets) entries; failures surface as
// sentinel records carrying the error text, never as missing entries.
func (o *Orchestrator) Run(ctx context.Context, targets []admissions.UniversityTarget) ([]admissions.AdmissionsRecord, admissions.RunSummary, error) {
	start := time.Now()
	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	records := make([]admissions.AdmissionsRecord, len(targets))
	indexes := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				// Each worker writes only its own index slot.
				records[idx] = o.processTarget(ctx, targets[idx])
			}
		}()
	}
	for i := range targets {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	summary := summarize(records)
	o.logSummary(summary)
	metrics.ObserveRunDuration(time.Since(start))
	return records, summary, nil
}

func (o *Orchestrator) processTarget(ctx context.Context, target admissions.UniversityTarget) admissions.AdmissionsRecord {
	if err := ctx.Err(); err != nil {
		failure := fmt.Errorf("run deadline exceeded: %w", err)
		o.emit(target.Name, target.URL, progress.StageFailed, failure.Error())
		return o.failedRecord(target, failure)
	}

	o.emit(target.Name, target.URL, progress.StageFetching, "")
	page, err := o.cfg.Fetcher.Fetch(ctx, target)
	if err != nil {
		o.cfg.Logger.Warn("fetch failed",
			zap.String("university", target.Name),
			zap.String("url", target.URL),
			zap.Error(err))
		o.emit(target.Name, target.URL, progress.StageFailed, err.Error())
		return o.failedRecord(target, err)
	}
	o.archivePage(ctx, page)

	o.emit(target.Name, page.URL, progress.StageExtracting, "")
	fields, sources := o.cfg.Extractor.Extract(ctx, page)

	record := o.cfg.Normalizer.Normalize(target.Name, page.URL, fields, sources)
	o.emit(target.Name, page.URL, progress.StageNormalized, "")
	o.emit(target.Name, page.URL, progress.StageDone, "")
	return record
}

// failedRecord builds a full sentinel record so failures stay visible in the
// output without breaking its shape.
func (o *Orchestrator) failedRecord(target admissions.UniversityTarget, err error) admissions.AdmissionsRecord {
	record := o.cfg.Normalizer.Normalize(target.Name, target.URL, nil, nil)
	record.Error = err.Error()
	return record
}

// archivePage snapshots the raw body when an archive is configured. Archive
// failures are logged and never fail the target.
func (o *Orchestrator) archivePage(ctx context.Context, page admissions.RawPage) {
	if o.cfg.Archive == nil || len(page.Body) == 0 {
		return
	}
	key, err := o.archiveKey(page.URL)
	if err == nil {
		err = o.cfg.Archive.Save(ctx, key, page.Body)
	}
	if err != nil {
		o.cfg.Logger.Warn("archive save failed",
			zap.String("url", page.URL),
			zap.Error(err))
	}
}

// archiveKey derives the object name <host>/<digest prefix>.html for a URL.
func (o *Orchestrator) archiveKey(rawURL string) (string, error) {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	digest, err := o.cfg.Hasher.Hash([]byte(rawURL))
	if err != nil {
		return "", fmt.Errorf("hash archive key: %w", err)
	}
	if len(digest) > 16 {
		digest = digest[:16]
	}
	return host + "/" + digest + ".html", nil
}

func summarize(records []admissions.AdmissionsRecord) admissions.RunSummary {
	summary := admissions.RunSummary{
		Processed:  len(records),
		FieldFound: make(map[string]int, len(admissions.FieldNames())),
	}
	for _, field := range admissions.FieldNames() {
		summary.FieldFound[field] = 0
	}
	for i := range records {
		if records[i].Error != "" {
			summary.Failed++
		}
		for _, field := range admissions.FieldNames() {
			if !admissions.IsSentinel(records[i].Field(field)) {
				summary.FieldFound[field]++
			}
		}
	}
	return summary
}

func (o *Orchestrator) logSummary(summary admissions.RunSummary) {
	fields := []zap.Field{
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
	}
	for _, name := range admissions.FieldNames() {
		fields = append(fields, zap.Int("found_"+name, summary.FieldFound[name]))
	}
	o.cfg.Logger.Info("crawl run complete", fields...)
}

func (o *Orchestrator) emit(target, pageURL string, stage progress.Stage, detail string) {
	if o.cfg.Emitter == nil {
		return
	}
	o.cfg.Emitter.Emit(progress.Event{
		Target: target,
		URL:    pageURL,
		Stage:  stage,
		At:     o.cfg.Clock.Now(),
		Detail: detail,
	})
}
