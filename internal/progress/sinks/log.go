package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/progress"
)

// LogSink emits structured logs for each stage transition. It is useful
// during development or when following a long crawl from the terminal.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields. Failures log
// at warn level so they stand out in a stream of routine transitions.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("target", evt.Target),
			zap.String("stage", string(evt.Stage)),
			zap.String("url", evt.URL),
			zap.Time("at", evt.At),
		}
		if evt.Detail != "" {
			fields = append(fields, zap.String("detail", evt.Detail))
		}
		if evt.Stage == progress.StageFailed {
			s.logger.Warn("crawl progress", fields...)
			continue
		}
		s.logger.Info("crawl progress", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
