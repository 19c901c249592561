// Package dispatcher runs crawl jobs from the queue on a worker pool.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/clock/system"
	"github.com/campusdata/admissions-crawler/internal/id/uuid"
	"github.com/campusdata/admissions-crawler/internal/jobs"
	"github.com/campusdata/admissions-crawler/internal/metrics"
	"github.com/campusdata/admissions-crawler/internal/publisher"
	"github.com/campusdata/admissions-crawler/internal/queue"
)

// Runner executes a crawl over a set of targets. The pipeline orchestrator
// is the production implementation.
type Runner interface {
	Run(ctx context.Context, targets []admissions.UniversityTarget) ([]admissions.AdmissionsRecord, admissions.RunSummary, error)
}

// Config controls Dispatcher behavior.
type Config struct {
	// Workers is the number of concurrent jobs (default 1). Each job runs
	// its own crawl pool, so this stays small.
	Workers int
	// RunTimeout caps a job's crawl when the job parameters set none.
	RunTimeout time.Duration
}

// Dispatcher consumes queued jobs, executes the crawl, stores results and
// publishes lifecycle events.
type Dispatcher struct {
	queue  *queue.Queue
	store  jobs.Store
	runner Runner
	pub    publisher.Publisher
	ids    admissions.IDGenerator
	clock  admissions.Clock
	cfg    Config
	logger *zap.Logger
}

// New constructs a Dispatcher.
func New(
	q *queue.Queue,
	store jobs.Store,
	runner Runner,
	pub publisher.Publisher,
	ids admissions.IDGenerator,
	clk admissions.Clock,
	cfg Config,
	logger *zap.Logger,
) *Dispatcher {
	if pub == nil {
		pub = publisher.NoOp{}
	}
	if ids == nil {
		ids = uuid.New()
	}
	if clk == nil {
		clk = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Dispatcher{
		queue:  q,
		store:  store,
		runner: runner,
		pub:    pub,
		ids:    ids,
		clock:  clk,
		cfg:    cfg,
		logger: logger,
	}
}

// Submit registers a new pending job and queues it for execution. A full
// queue rejects the job: the stored record is marked failed and the
// returned error wraps queue.ErrFull.
func (d *Dispatcher) Submit(ctx context.Context, params jobs.Parameters) (jobs.Job, error) {
	id, err := d.ids.NewID()
	if err != nil {
		return jobs.Job{}, fmt.Errorf("new job id: %w", err)
	}
	job := jobs.Job{
		ID:          id,
		Status:      jobs.StatusPending,
		SubmittedAt: d.clock.Now(),
		Parameters:  params,
	}
	if err := d.store.Create(ctx, job); err != nil {
		return jobs.Job{}, fmt.Errorf("create job: %w", err)
	}

	if err := d.queue.Enqueue(ctx, queue.Item{JobID: job.ID, Params: params}); err != nil {
		reason := fmt.Sprintf("job rejected: %v", err)
		if updateErr := d.store.UpdateStatus(ctx, job.ID, jobs.StatusFailed, reason, admissions.RunSummary{}); updateErr != nil {
			d.logger.Error("reject status update failed",
				zap.String("job_id", job.ID),
				zap.Error(updateErr))
		}
		metrics.ObserveJob(string(jobs.StatusFailed))
		return jobs.Job{}, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}

	d.publish(ctx, publisher.Event{JobID: job.ID, Type: publisher.EventJobSubmitted, At: job.SubmittedAt})
	d.logger.Info("job submitted",
		zap.String("job_id", job.ID),
		zap.Int("targets", len(params.Targets)))
	return job, nil
}

// Run starts the worker pool and blocks until the context finishes or the
// queue is closed.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.workerLoop(ctx)
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) workerLoop(ctx context.Context) {
	for {
		item, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			d.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		d.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		d.processJob(ctx, item)
	}
}

func (d *Dispatcher) processJob(ctx context.Context, item queue.Item) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	start := time.Now()

	if err := d.store.UpdateStatus(ctx, item.JobID, jobs.StatusRunning, "", admissions.RunSummary{}); err != nil {
		d.logger.Error("job status update failed",
			zap.String("job_id", item.JobID),
			zap.Error(err))
		return
	}
	d.publish(ctx, publisher.Event{JobID: item.JobID, Type: publisher.EventJobStarted, At: d.clock.Now()})

	runCtx := ctx
	timeout := d.cfg.RunTimeout
	if item.Params.RunTimeoutSeconds > 0 {
		timeout = time.Duration(item.Params.RunTimeoutSeconds) * time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	records, summary, runErr := d.runner.Run(runCtx, item.Params.Targets)

	if len(records) > 0 {
		if err := d.store.SaveResults(ctx, item.JobID, records); err != nil {
			d.logger.Error("save results failed",
				zap.String("job_id", item.JobID),
				zap.Error(err))
			if runErr == nil {
				runErr = fmt.Errorf("save results: %w", err)
			}
		}
	}

	status, errText := deriveStatus(runErr, summary)
	if err := d.store.UpdateStatus(ctx, item.JobID, status, errText, summary); err != nil {
		d.logger.Error("final job status update failed",
			zap.String("job_id", item.JobID),
			zap.Error(err))
	}
	metrics.ObserveJob(string(status))

	evtType := publisher.EventJobDone
	if status == jobs.StatusFailed {
		evtType = publisher.EventJobFailed
	}
	d.publish(ctx, publisher.Event{JobID: item.JobID, Type: evtType, At: d.clock.Now(), Payload: summary})

	d.logger.Info("job finished",
		zap.String("job_id", item.JobID),
		zap.String("status", string(status)),
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", time.Since(start)))
}

// deriveStatus folds the run error and counters into a terminal status. A
// run where every target failed counts as a failed job even though the
// output file keeps its full shape.
func deriveStatus(runErr error, summary admissions.RunSummary) (jobs.Status, string) {
	switch {
	case runErr != nil:
		return jobs.StatusFailed, runErr.Error()
	case summary.Processed > 0 && summary.Failed == summary.Processed:
		return jobs.StatusFailed, "no targets were crawled successfully"
	default:
		return jobs.StatusDone, ""
	}
}

// publish sends a lifecycle event. Publish failures are logged and never
// fail the job.
func (d *Dispatcher) publish(ctx context.Context, evt publisher.Event) {
	if err := d.pub.Publish(ctx, evt); err != nil {
		d.logger.Warn("event publish failed",
			zap.String("job_id", evt.JobID),
			zap.String("event_type", string(evt.Type)),
			zap.Error(err))
	}
}
