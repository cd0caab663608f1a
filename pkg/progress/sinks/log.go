package sinks

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kylealanhale/quicli/pkg/progress"
)

// LogSink writes progress events to a zap logger. Redraw and skip events are
// logged at debug level, faults at warn, and lifecycle events at info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("renderer_id", uuid.UUID(evt.RendererID)),
			zap.String("stage", string(evt.Stage)),
			zap.String("kind", string(evt.Kind)),
			zap.Time("ts", evt.TS),
		}
		if evt.Text != "" {
			fields = append(fields, zap.String("text", evt.Text))
		}
		switch evt.Kind {
		case progress.KindPercentage:
			fields = append(fields, zap.Float64("fraction", evt.Fraction))
		case progress.KindTime:
			fields = append(fields, zap.Duration("elapsed", evt.Elapsed))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}

		switch evt.Stage {
		case progress.StageRedraw, progress.StageSkip:
			s.logger.Debug("progress event", fields...)
		case progress.StageFault:
			s.logger.Warn("progress event", fields...)
		default:
			s.logger.Info("progress event", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it flushes the logger.
func (s *LogSink) Close(context.Context) error {
	_ = s.logger.Sync() // fails on some terminals; nothing to do about it
	return nil
}
