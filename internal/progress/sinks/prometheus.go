package sinks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/campusdata/admissions-crawler/internal/progress"
)

// PrometheusSink exports per-target crawl progress via Prometheus. It owns
// collectors for stage transitions, completions, and in-flight targets.
type PrometheusSink struct {
	stageEvents      *prometheus.CounterVec
	targetsCompleted *prometheus.CounterVec
	targetsInflight  prometheus.Gauge
	targetDuration   *prometheus.HistogramVec

	tracker *targetTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		stageEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawl_stage_events_total",
			Help: "Stage transitions observed partitioned by stage.",
		}, []string{"stage"}),
		targetsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawl_targets_completed_total",
			Help: "Targets that reached a terminal stage partitioned by result.",
		}, []string{"result"}),
		targetsInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawl_targets_inflight",
			Help: "Targets currently between fetch start and completion.",
		}),
		targetDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawl_target_duration_seconds",
			Help:    "Wall time from fetch start to completion per target.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"result"}),
		tracker: newTargetTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.stageEvents,
		s.targetsCompleted,
		s.targetsInflight,
		s.targetDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	s.stageEvents.WithLabelValues(string(evt.Stage)).Inc()
	switch evt.Stage {
	case progress.StageFetching:
		if s.tracker.start(evt.Target, evt.At) {
			s.targetsInflight.Inc()
		}
	case progress.StageDone:
		s.complete(evt, "done")
	case progress.StageFailed:
		s.complete(evt, "failed")
	}
}

func (s *PrometheusSink) complete(evt progress.Event, result string) {
	s.targetsCompleted.WithLabelValues(result).Inc()
	started, ok := s.tracker.complete(evt.Target)
	if !ok {
		return
	}
	s.targetsInflight.Dec()
	if dur := evt.At.Sub(started); dur > 0 {
		s.targetDuration.WithLabelValues(result).Observe(dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type targetTracker struct {
	mu      sync.Mutex
	started map[string]time.Time
}

func newTargetTracker() *targetTracker {
	return &targetTracker{started: make(map[string]time.Time)}
}

func (t *targetTracker) start(target string, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.started[target]; ok {
		return false
	}
	t.started[target] = at
	return true
}

func (t *targetTracker) complete(target string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	started, ok := t.started[target]
	if !ok {
		return time.Time{}, false
	}
	delete(t.started, target)
	return started, true
}
