package service

import (
	"context"

	"studytrack/internal/domain/entity"
)

// AuditLog records security-relevant events after every auth outcome. Record
// must never fail the calling operation: implementations swallow and log
// their own errors.
type AuditLog interface {
	Record(ctx context.Context, event *entity.AuditEvent)
}
