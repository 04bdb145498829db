package audit

import (
	"context"
	"log/slog"
)

// LogSink пишет каждое событие отдельной строкой slog.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) Emit(ctx context.Context, e Event) error {
	level := slog.LevelInfo
	switch e.Action {
	case ActionFailed:
		level = slog.LevelError
	case ActionLeftUnapplied, ActionItemMissing:
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("run_id", e.RunID),
		slog.String("cabinet", e.Cabinet),
		slog.Int64("order_id", e.OrderID),
		slog.String("order_number", e.OrderNumber),
		slog.String("stage", string(e.Stage)),
		slog.String("action", string(e.Action)),
	}
	if e.DocumentID != "" {
		attrs = append(attrs, slog.String("document_id", e.DocumentID))
	}
	if e.Reason != "" {
		attrs = append(attrs, slog.String("reason", e.Reason))
	}
	if e.DryRun {
		attrs = append(attrs, slog.Bool("dry_run", true))
	}
	s.log.LogAttrs(ctx, level, "fbo outcome", attrs...)
	return nil
}
