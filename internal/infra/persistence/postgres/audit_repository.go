package postgres

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"studytrack/internal/domain/entity"
	"studytrack/internal/domain/repository"
	"studytrack/internal/infra/persistence/model"
)

// auditRepository implements repository.AuditRepository using GORM.
type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository is the constructor for auditRepository.
func NewAuditRepository(db *gorm.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

// Create persists a single audit event.
func (repo *auditRepository) Create(ctx context.Context, event *entity.AuditEvent) error {
	eventM := &model.AuditEventModel{
		EventType: event.EventType,
		UserID:    event.UserID,
		Email:     event.Email,
		IP:        event.IP,
		UserAgent: event.UserAgent,
	}

	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return errors.Wrap(err, "failed to encode audit metadata")
		}
		eventM.Metadata = raw
	}

	if err := repo.db.WithContext(ctx).Create(eventM).Error; err != nil {
		return errors.Wrap(err, "failed to create audit event")
	}

	event.ID = eventM.ID
	event.CreatedAt = eventM.CreatedAt

	return nil
}
