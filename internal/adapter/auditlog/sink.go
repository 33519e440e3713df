// Package auditlog implements the audit sink port on top of slog, so
// security events are visible even without an external audit pipeline.
package auditlog

import (
	"context"
	"log/slog"

	"github.com/firmsync/tenantcore/internal/domain/audit"
	portaudit "github.com/firmsync/tenantcore/internal/port/audit"
)

// Sink writes audit events to a structured logger. Denied decisions log at
// WARN with a security_alert marker so they can be filtered from ordinary
// request logs.
type Sink struct {
	log *slog.Logger
}

// New creates a logging sink.
func New(log *slog.Logger) *Sink {
	return &Sink{log: log}
}

func (s *Sink) Record(_ context.Context, ev audit.Event) error {
	attrs := []any{
		"audit_id", ev.ID,
		"principal_id", ev.PrincipalID,
		"principal_email", ev.PrincipalEmail,
		"principal_role", ev.PrincipalRole,
		"principal_firm_id", ev.PrincipalFirmID,
		"target_firm_id", ev.TargetFirmID,
		"target_firm_code", ev.TargetFirmCode,
		"target_firm_name", ev.TargetFirmName,
		"source_ip", ev.SourceIP,
		"url", ev.URL,
		"decision", string(ev.Decision),
		"reason", ev.Reason,
		"is_admin_access", ev.IsAdminAccess,
	}

	if ev.Decision == audit.DecisionDenied {
		attrs = append(attrs, "security_alert", true)
		s.log.Warn("tenant access denied", attrs...)
		return nil
	}

	s.log.Info("tenant access granted", attrs...)
	return nil
}

// Fanout records each event to every sink. Individual sink failures are
// logged and swallowed; audit emission never fails a request.
type Fanout struct {
	log   *slog.Logger
	sinks []portaudit.Sink
}

// NewFanout creates a fanout over the given sinks.
func NewFanout(log *slog.Logger, sinks ...portaudit.Sink) *Fanout {
	return &Fanout{log: log, sinks: sinks}
}

func (f *Fanout) Record(ctx context.Context, ev audit.Event) error {
	for _, s := range f.sinks {
		if err := s.Record(ctx, ev); err != nil {
			f.log.Error("audit sink failed", "error", err)
		}
	}
	return nil
}
