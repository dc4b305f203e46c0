// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"

	"studytrack/internal/domain/entity"
)

// AuditRepository persists security-relevant events. Writes are best-effort
// from the caller's perspective: the auth service logs a failed audit write
// but never fails the request because of it.
type AuditRepository interface {
	// Create persists a single audit event.
	Create(ctx context.Context, event *entity.AuditEvent) error
}
