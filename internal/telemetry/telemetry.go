// Package telemetry implementa los sinks que reciben los Responses exitosos del Dispatcher.
package telemetry

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/edgeflix/internal/dispatch"
	"github.com/dropDatabas3/edgeflix/internal/metrics"
	"github.com/dropDatabas3/edgeflix/internal/observability/logger"
)

var (
	_ dispatch.Sink = (*LogSink)(nil)
	_ dispatch.Sink = PromSink{}
	_ dispatch.Sink = Fanout(nil)
)

// LogSink escribe cada evento como una línea estructurada.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	if log == nil {
		log = logger.Named("telemetry")
	}
	return &LogSink{log: log}
}

func (s *LogSink) RecordEvent(_ context.Context, r dispatch.Response) {
	s.log.Info("event",
		logger.RequestID(r.RequestID),
		logger.Kind(string(r.Kind)),
		logger.String("status", string(r.Status)),
		logger.Code(r.Code),
		logger.String("message", r.Message),
		logger.Bool("cached", r.Cached),
	)
}

// PromSink cuenta eventos por kind y status.
type PromSink struct{}

func (PromSink) RecordEvent(_ context.Context, r dispatch.Response) {
	metrics.TelemetryEvents.WithLabelValues(string(r.Kind), string(r.Status)).Inc()
}

// Fanout reenvía a varios sinks. Un sink que entra en panic no afecta a los demás.
type Fanout []dispatch.Sink

func (f Fanout) RecordEvent(ctx context.Context, r dispatch.Response) {
	for _, s := range f {
		if s == nil {
			continue
		}
		func() {
			defer func() {
				if p := recover(); p != nil {
					logger.L().Error("telemetry sink panic", logger.Any("panic", p))
				}
			}()
			s.RecordEvent(ctx, r)
		}()
	}
}
