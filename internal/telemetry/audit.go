package telemetry

import (
	"context"
	"log/slog"
)

// SlogAuditSink records monitoring events as structured log lines. The
// default AuditSink used when no external audit collaborator is injected
// (spec §1: audit sink is an external collaborator by contract, but the
// gateway must still run standalone out of the box).
type SlogAuditSink struct {
	Logger *slog.Logger
}

// NewSlogAuditSink builds an audit sink writing through logger.
func NewSlogAuditSink(logger *slog.Logger) *SlogAuditSink {
	return &SlogAuditSink{Logger: logger}
}

func (s *SlogAuditSink) Record(_ context.Context, event map[string]interface{}) error {
	args := make([]any, 0, len(event)*2)
	for k, v := range event {
		args = append(args, k, v)
	}
	s.Logger.Info("audit", args...)
	return nil
}
