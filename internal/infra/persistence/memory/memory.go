// Package memory provides an in-memory credential store with the same
// conditional-write semantics as the PostgreSQL implementation. It backs the
// service tests and the storage-free development mode.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"studytrack/internal/domain/entity"
	"studytrack/internal/domain/repository"
)

// Store holds users and audit events behind one mutex. Every mutation is a
// single critical section, which gives the per-record atomicity the auth
// service relies on (insert-if-absent, conditional reset-token consumption).
type Store struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*entity.User
	events []*entity.AuditEvent
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{users: make(map[uuid.UUID]*entity.User)}
}

// UserRepo returns the store's UserRepository view.
func (s *Store) UserRepo() repository.UserRepository {
	return &userRepository{store: s}
}

// AuditRepo returns the store's AuditRepository view.
func (s *Store) AuditRepo() repository.AuditRepository {
	return &auditRepository{store: s}
}

// Events returns a snapshot of recorded audit events.
func (s *Store) Events() []*entity.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*entity.AuditEvent, len(s.events))
	copy(out, s.events)

	return out
}

// NewTransactionManager returns a TransactionManager over the store. The
// store has no multi-statement transactions; the manager simply hands the
// callback a factory over the shared store, whose single-operation atomicity
// is all the auth service requires.
func NewTransactionManager(store *Store) repository.TransactionManager {
	return &txManager{store: store}
}

type txManager struct {
	store *Store
}

func (tm *txManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	return fn(tm.store)
}

type userRepository struct {
	store *Store
}

func (r *userRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return cloneUser(user), nil
}

func (r *userRepository) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if user := r.findByEmailLocked(email); user != nil {
		return cloneUser(user), nil
	}

	return nil, repository.ErrUserNotFound
}

func (r *userRepository) FindByExternalID(_ context.Context, provider, externalID string) (*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, user := range r.store.users {
		if user.AuthProvider == provider && user.ExternalID == externalID && externalID != "" {
			return cloneUser(user), nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *userRepository) Create(_ context.Context, user *entity.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.findByEmailLocked(user.Email) != nil {
		return repository.ErrEmailTaken
	}
	if user.ExternalID != "" {
		for _, existing := range r.store.users {
			if existing.AuthProvider == user.AuthProvider && existing.ExternalID == user.ExternalID {
				return repository.ErrExternalIDTaken
			}
		}
	}

	user.ID = uuid.New()
	user.Email = strings.ToLower(user.Email)
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.store.users[user.ID] = cloneUser(user)

	return nil
}

func (r *userRepository) LinkExternalAccount(_ context.Context, id uuid.UUID, provider, externalID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.users {
		if existing.ID != id && existing.AuthProvider == provider && existing.ExternalID == externalID {
			return repository.ErrExternalIDTaken
		}
	}

	user, ok := r.store.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}

	user.AuthProvider = provider
	user.ExternalID = externalID
	user.UpdatedAt = time.Now()

	return nil
}

func (r *userRepository) SetResetToken(_ context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}

	expiry := expiresAt
	user.ResetToken = token
	user.ResetTokenExpiresAt = &expiry
	user.UpdatedAt = time.Now()

	return nil
}

func (r *userRepository) ConsumeResetToken(_ context.Context, token string, newHash string, now time.Time) (*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, user := range r.store.users {
		if user.ResetToken != token || user.ResetToken == "" {
			continue
		}
		if user.ResetTokenExpiresAt == nil || !user.ResetTokenExpiresAt.After(now) {
			// Token string matches but has expired; indistinguishable from a
			// never-issued token by design.
			continue
		}

		user.PasswordHash = newHash
		user.ResetToken = ""
		user.ResetTokenExpiresAt = nil
		user.UpdatedAt = time.Now()

		return cloneUser(user), nil
	}

	return nil, repository.ErrResetTokenNotFound
}

// findByEmailLocked must be called with the store mutex held.
func (r *userRepository) findByEmailLocked(email string) *entity.User {
	needle := strings.ToLower(email)
	for _, user := range r.store.users {
		if user.Email == needle {
			return user
		}
	}

	return nil
}

type auditRepository struct {
	store *Store
}

func (r *auditRepository) Create(_ context.Context, event *entity.AuditEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	event.ID = uuid.New()
	event.CreatedAt = time.Now()
	r.store.events = append(r.store.events, event)

	return nil
}

func cloneUser(user *entity.User) *entity.User {
	cloned := *user
	if user.ResetTokenExpiresAt != nil {
		expiry := *user.ResetTokenExpiresAt
		cloned.ResetTokenExpiresAt = &expiry
	}

	return &cloned
}
