// Package postgres contains the concrete implementation of the persistence
// layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studytrack/internal/domain/entity"
	domainerrors "studytrack/internal/domain/errors"
	"studytrack/internal/domain/repository"
	"studytrack/internal/infra/persistence/model"
)

// userRepository implements the repository.UserRepository interface (the
// credential store) using GORM.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository is the constructor for userRepository.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

// FindByID retrieves a single user by their unique ID.
func (repo *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var userM model.UserModel
	err := repo.db.WithContext(ctx).Where("id = ?", id).First(&userM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user by id")
	}

	return toUserDomain(&userM), nil
}

// FindByEmail retrieves a single user by normalized email. Lookups are
// case-insensitive because the store only ever holds lower-cased addresses.
func (repo *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var userM model.UserModel
	err := repo.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&userM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user by email")
	}

	return toUserDomain(&userM), nil
}

// FindByExternalID retrieves a user by provider tag and external id.
func (repo *userRepository) FindByExternalID(ctx context.Context, provider, externalID string) (*entity.User, error) {
	var userM model.UserModel
	err := repo.db.WithContext(ctx).
		Where("auth_provider = ? AND external_id = ?", provider, externalID).
		First(&userM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user by external id")
	}

	return toUserDomain(&userM), nil
}

// Create persists a new user. The unique index on email makes this an
// insert-if-absent: concurrent duplicate registrations lose with
// ErrEmailTaken and never produce a partial record.
func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	userM := fromUserDomain(user)

	if err := repo.db.WithContext(ctx).Create(userM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			if strings.Contains(strings.ToLower(err.Error()), "external") {
				return repository.ErrExternalIDTaken
			}

			return repository.ErrEmailTaken
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create user")
	}

	user.ID = userM.ID
	user.CreatedAt = userM.CreatedAt
	user.UpdatedAt = userM.UpdatedAt

	return nil
}

// LinkExternalAccount attaches an external provider identity to an existing
// record.
func (repo *userRepository) LinkExternalAccount(ctx context.Context, id uuid.UUID, provider, externalID string) error {
	res := repo.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"auth_provider": provider,
			"external_id":   externalID,
		})
	if res.Error != nil {
		if isUniqueConstraintViolation(res.Error) {
			return repository.ErrExternalIDTaken
		}

		return domainerrors.NewDatabaseExecuteError(res.Error, "failed to link external account")
	}
	if res.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

// SetResetToken writes the token and its expiry in one statement, so the two
// columns can never be observed one without the other.
func (repo *userRepository) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	res := repo.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reset_token":            token,
			"reset_token_expires_at": expiresAt,
		})
	if res.Error != nil {
		return domainerrors.NewDatabaseExecuteError(res.Error, "failed to set reset token")
	}
	if res.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

// ConsumeResetToken performs the single conditional write that serializes
// concurrent resets: UPDATE ... WHERE reset_token matches AND has not
// expired, setting the hash and clearing the token pair, RETURNING the row.
// Zero affected rows means the token was never issued, already consumed, or
// expired; the caller cannot tell which.
func (repo *userRepository) ConsumeResetToken(ctx context.Context, token string, newHash string, now time.Time) (*entity.User, error) {
	var userM model.UserModel
	res := repo.db.WithContext(ctx).Model(&userM).
		Clauses(clause.Returning{}).
		Where("reset_token = ? AND reset_token_expires_at > ?", token, now).
		Updates(map[string]any{
			"password_hash":          newHash,
			"reset_token":            nil,
			"reset_token_expires_at": nil,
		})
	if res.Error != nil {
		return nil, domainerrors.NewDatabaseExecuteError(res.Error, "failed to consume reset token")
	}
	if res.RowsAffected == 0 {
		return nil, repository.ErrResetTokenNotFound
	}

	return toUserDomain(&userM), nil
}

// toUserDomain maps the persistence model to a pure domain entity.
func toUserDomain(m *model.UserModel) *entity.User {
	user := &entity.User{
		ID:                  m.ID,
		Email:               m.Email,
		Name:                m.Name,
		AuthProvider:        m.AuthProvider,
		ResetTokenExpiresAt: m.ResetTokenExpiresAt,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
	if m.PasswordHash != nil {
		user.PasswordHash = *m.PasswordHash
	}
	if m.ExternalID != nil {
		user.ExternalID = *m.ExternalID
	}
	if m.ResetToken != nil {
		user.ResetToken = *m.ResetToken
	}

	return user
}

// fromUserDomain maps a domain entity to the persistence model. Empty
// optional strings become NULLs.
func fromUserDomain(user *entity.User) *model.UserModel {
	m := &model.UserModel{
		ID:                  user.ID,
		Email:               strings.ToLower(user.Email),
		Name:                user.Name,
		AuthProvider:        user.AuthProvider,
		ResetTokenExpiresAt: user.ResetTokenExpiresAt,
		CreatedAt:           user.CreatedAt,
		UpdatedAt:           user.UpdatedAt,
	}
	if user.PasswordHash != "" {
		m.PasswordHash = &user.PasswordHash
	}
	if user.ExternalID != "" {
		m.ExternalID = &user.ExternalID
	}
	if user.ResetToken != "" {
		m.ResetToken = &user.ResetToken
	}

	return m
}
