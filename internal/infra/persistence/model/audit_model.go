package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditEventModel mirrors the 'audit_events' table.
type AuditEventModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EventType string         `gorm:"type:varchar(64);not null;index"`
	UserID    *uuid.UUID     `gorm:"type:uuid;index"`
	Email     string         `gorm:"type:varchar(255)"`
	IP        string         `gorm:"type:varchar(64)"`
	UserAgent string         `gorm:"type:varchar(255)"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"index"`
}

// TableName explicitly sets the table name for GORM.
func (AuditEventModel) TableName() string {
	return "audit_events"
}
