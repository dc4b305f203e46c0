// Package model contains the GORM persistence models. They mirror database
// tables and are mapped to and from pure domain entities at the repository
// boundary.
package model

import (
	"time"

	"github.com/google/uuid"
)

// UserModel mirrors the 'users' table. Email is stored lower-cased; the
// unique indexes on email and (auth_provider, external_id) back the
// insert-if-absent semantics of the credential store.
type UserModel struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email               string     `gorm:"type:varchar(255);unique;not null"`
	Name                string     `gorm:"type:varchar(100)"`
	PasswordHash        *string    `gorm:"type:varchar(100)"`
	AuthProvider        string     `gorm:"type:varchar(32);not null;default:'local';uniqueIndex:idx_users_provider_external,priority:1"`
	ExternalID          *string    `gorm:"type:varchar(255);uniqueIndex:idx_users_provider_external,priority:2"`
	ResetToken          *string    `gorm:"type:char(64);index"`
	ResetTokenExpiresAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}
