package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "stride/pkg/domain-errors"
	"stride/pkg/platform/audit"
	"stride/pkg/requestcontext"
)

// logAudit writes the event to the structured log and forwards it to the
// audit publisher. Publishing is best-effort.
func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}

	args := []any{"event", event.Action, "log_type", "audit"}
	if event.RequestID != "" {
		args = append(args, "request_id", event.RequestID)
	}
	if event.AthleteID != "" {
		args = append(args, "athlete_id", event.AthleteID)
	}
	if event.ClientID != "" {
		args = append(args, "client_id", event.ClientID)
	}
	if event.GrantType != "" {
		args = append(args, "grant_type", event.GrantType)
	}
	if event.Reason != "" {
		args = append(args, "reason", event.Reason)
	}
	s.logger.InfoContext(ctx, event.Action, args...)

	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish audit event",
			"event", event.Action,
			"error", err,
		)
	}
}

// logFault records server-side failures. Client faults are expected traffic
// and are left to the audit trail.
func (s *Service) logFault(ctx context.Context, msg string, err error) {
	if err == nil || !dErrors.IsServerFault(dErrors.CodeOf(err)) {
		return
	}
	s.logger.ErrorContext(ctx, msg,
		slog.String("request_id", requestcontext.RequestID(ctx)),
		slog.String("code", string(dErrors.CodeOf(err))),
		slog.Any("error", err),
	)
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}
