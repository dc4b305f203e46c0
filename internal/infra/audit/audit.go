// Package audit implements the AuditLog domain service on top of the audit
// repository, with structured logging as the fallback channel.
package audit

import (
	"context"
	"log/slog"

	"studytrack/internal/domain/entity"
	"studytrack/internal/domain/repository"
	"studytrack/internal/domain/service"
)

// storeAuditLog persists events through the audit repository. A failed write
// is logged and swallowed: audit must never fail the request it describes.
type storeAuditLog struct {
	repo   repository.AuditRepository
	logger *slog.Logger
}

// NewStoreAuditLog is the constructor for storeAuditLog.
func NewStoreAuditLog(repo repository.AuditRepository, logger *slog.Logger) service.AuditLog {
	return &storeAuditLog{repo: repo, logger: logger}
}

// Record persists the event and mirrors it to the structured log.
func (a *storeAuditLog) Record(ctx context.Context, event *entity.AuditEvent) {
	a.logger.Info("audit event",
		slog.String("event", event.EventType),
		slog.String("email", event.Email),
		slog.Any("userID", event.UserID),
	)

	if err := a.repo.Create(ctx, event); err != nil {
		a.logger.Error("failed to persist audit event",
			slog.String("event", event.EventType),
			slog.Any("error", err),
		)
	}
}

// noopAuditLog discards events. Used by tests that don't assert on auditing.
type noopAuditLog struct{}

// NewNoopAuditLog returns an AuditLog that records nothing.
func NewNoopAuditLog() service.AuditLog {
	return noopAuditLog{}
}

func (noopAuditLog) Record(context.Context, *entity.AuditEvent) {}
