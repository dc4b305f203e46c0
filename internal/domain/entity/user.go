// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Authentication provider tags. Accounts created through an external identity
// provider carry that provider's tag and may have no local password at all.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// User is the core identity record of the system. One row per person able to
// authenticate, regardless of how the account was created.
type User struct {
	ID           uuid.UUID // Immutable identifier assigned at creation.
	Email        string    // Stored lower-cased; unique across all users.
	Name         string    // Optional display name.
	PasswordHash string    // bcrypt hash; empty for provider-only accounts that never set a local password.
	AuthProvider string    // ProviderLocal or an external provider tag such as ProviderGoogle.
	ExternalID   string    // Identifier from the external provider (e.g. Google's 'sub'); empty for local accounts.

	// ResetToken and ResetTokenExpiresAt are either both set (a reset request
	// is outstanding) or both empty. They are never persisted one without the
	// other.
	ResetToken          string
	ResetTokenExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasLocalPassword reports whether the account can authenticate with a local
// password. Provider-only accounts return false until a password is set
// through the reset flow.
func (u *User) HasLocalPassword() bool {
	return u.PasswordHash != ""
}

// PublicUser is the caller-visible projection of a User. It never carries the
// password hash or reset-token state.
type PublicUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	AuthProvider string    `json:"authProvider"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public returns the projection of the user that is safe to serialize.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		AuthProvider: u.AuthProvider,
		CreatedAt:    u.CreatedAt,
	}
}
