// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers
// and the infrastructure layer.
package repository

import (
	"context"
	"errors"
	"time"

	"studytrack/internal/domain/entity"

	"github.com/google/uuid"
)

// Domain-specific persistence errors. The application layer branches on these
// without depending on database-specific error values.
var (
	// ErrUserNotFound is returned when no user matches the lookup key.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned by Create when another record already holds
	// the same normalized email. Concurrent duplicate registrations surface
	// this from the store's uniqueness guarantee, never a partial record.
	ErrEmailTaken = errors.New("email already taken")

	// ErrExternalIDTaken is returned by Create when the external provider id
	// is already linked to another record.
	ErrExternalIDTaken = errors.New("external id already taken")

	// ErrResetTokenNotFound is returned by ConsumeResetToken when no record
	// matches the token, whether it was never issued, already consumed, or
	// has expired. The cases are indistinguishable on purpose.
	ErrResetTokenNotFound = errors.New("reset token not found")
)

// UserRepository is the credential store. The auth service treats it as a
// keyed record store with atomic per-record conditional writes; all
// serialization of concurrent mutations of the same record happens here.
type UserRepository interface {
	// FindByID retrieves a single user by their unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByEmail retrieves a single user by normalized (lower-cased) email.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// FindByExternalID retrieves a user by provider tag and external id.
	FindByExternalID(ctx context.Context, provider, externalID string) (*entity.User, error)

	// Create persists a new user. Insert-if-absent on the normalized email:
	// under concurrent duplicate registration at most one call succeeds, the
	// rest observe ErrEmailTaken.
	Create(ctx context.Context, user *entity.User) error

	// LinkExternalAccount attaches an external provider identity to an
	// existing user record.
	LinkExternalAccount(ctx context.Context, id uuid.UUID, provider, externalID string) error

	// SetResetToken writes the reset token and its expiry in a single
	// conditional update, overwriting any outstanding token. Both fields are
	// always written together.
	SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error

	// ConsumeResetToken atomically matches a record whose reset token equals
	// token and has not expired at now, sets the new password hash, and
	// clears the token pair. It returns the updated user; when no record
	// matches it returns ErrResetTokenNotFound. The conditional clear is the
	// serialization point: of N concurrent calls with the same valid token,
	// exactly one succeeds.
	ConsumeResetToken(ctx context.Context, token string, newHash string, now time.Time) (*entity.User, error)
}
