package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/edgeauth/ldapauthd/internal/ports"
)

// Audit event kinds.
const (
	AuditKindLogin    = "login"
	AuditKindDecision = "decision"
)

// auditTimeout bounds each background write so a slow sink cannot pile
// up goroutines indefinitely.
const auditTimeout = 5 * time.Second

// Auditor records auth events without ever blocking the caller. A nil
// *Auditor is a no-op, so callers need no conditional wiring.
type Auditor struct {
	sink   ports.AuthEventSink
	logger *slog.Logger
}

// NewAuditor constructs an Auditor over sink. Returns nil when sink is
// nil (auditing disabled).
func NewAuditor(sink ports.AuthEventSink, logger *slog.Logger) *Auditor {
	if sink == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{sink: sink, logger: logger}
}

// Record fills in the event's ID and timestamp and writes it in the
// background. Failures are logged, never surfaced: the audit trail is
// best-effort and must not affect decisions.
func (a *Auditor) Record(event ports.AuthEvent) {
	if a == nil {
		return
	}
	event.ID = uuid.NewString()
	event.CreatedAt = time.Now()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := a.sink.Record(ctx, event); err != nil {
			a.logger.Warn("audit event write failed",
				"kind", event.Kind, "username", event.Username, "error", err)
		}
	}()
}
