package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studytrack/internal/domain/entity"
	"studytrack/internal/domain/repository"
)

func TestStore_Create_EnforcesEmailUniqueness(t *testing.T) {
	store := NewStore()
	repo := store.UserRepo()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.User{Email: "a@example.com", AuthProvider: entity.ProviderLocal}))

	err := repo.Create(ctx, &entity.User{Email: "a@example.com", AuthProvider: entity.ProviderLocal})
	require.ErrorIs(t, err, repository.ErrEmailTaken)
}

func TestStore_Create_ConcurrentDuplicatesHaveOneWinner(t *testing.T) {
	store := NewStore()
	repo := store.UserRepo()
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.Create(ctx, &entity.User{Email: "race@example.com", AuthProvider: entity.ProviderLocal})
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, repository.ErrEmailTaken)
			conflicts++
		}
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, conflicts)
}

func TestStore_FindByEmail_IsCaseNormalized(t *testing.T) {
	store := NewStore()
	repo := store.UserRepo()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.User{Email: "mixed@example.com"}))

	user, err := repo.FindByEmail(ctx, "MIXED@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "mixed@example.com", user.Email)
}

func TestStore_ConsumeResetToken_SingleUse(t *testing.T) {
	store := NewStore()
	repo := store.UserRepo()
	ctx := context.Background()

	user := &entity.User{Email: "a@example.com", PasswordHash: "old-hash", AuthProvider: entity.ProviderLocal}
	require.NoError(t, repo.Create(ctx, user))

	token := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	require.NoError(t, repo.SetResetToken(ctx, user.ID, token, time.Now().Add(time.Hour)))

	updated, err := repo.ConsumeResetToken(ctx, token, "new-hash", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "new-hash", updated.PasswordHash)
	assert.Empty(t, updated.ResetToken)
	assert.Nil(t, updated.ResetTokenExpiresAt)

	// Spent tokens look exactly like tokens that never existed.
	_, err = repo.ConsumeResetToken(ctx, token, "another-hash", time.Now())
	require.ErrorIs(t, err, repository.ErrResetTokenNotFound)
}

func TestStore_ConsumeResetToken_ConcurrentCallsHaveOneWinner(t *testing.T) {
	store := NewStore()
	repo := store.UserRepo()
	ctx := context.Background()

	user := &entity.User{Email: "a@example.com", PasswordHash: "old-hash"}
	require.NoError(t, repo.Create(ctx, user))

	token := "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	require.NoError(t, repo.SetResetToken(ctx, user.ID, token, time.Now().Add(time.Hour)))

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ConsumeResetToken(ctx, token, "new-hash", time.Now())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, repository.ErrResetTokenNotFound)
		}
	}

	assert.Equal(t, 1, wins)
}

func TestStore_ConsumeResetToken_Expired(t *testing.T) {
	store := NewStore()
	repo := store.UserRepo()
	ctx := context.Background()

	user := &entity.User{Email: "a@example.com"}
	require.NoError(t, repo.Create(ctx, user))

	token := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	expiry := time.Now().Add(time.Hour)
	require.NoError(t, repo.SetResetToken(ctx, user.ID, token, expiry))

	_, err := repo.ConsumeResetToken(ctx, token, "new-hash", expiry.Add(time.Second))
	require.ErrorIs(t, err, repository.ErrResetTokenNotFound)
}

func TestStore_SetResetToken_OverwritesOutstandingToken(t *testing.T) {
	store := NewStore()
	repo := store.UserRepo()
	ctx := context.Background()

	user := &entity.User{Email: "a@example.com"}
	require.NoError(t, repo.Create(ctx, user))

	first := "1111111111111111111111111111111111111111111111111111111111111111"
	second := "2222222222222222222222222222222222222222222222222222222222222222"
	require.NoError(t, repo.SetResetToken(ctx, user.ID, first, time.Now().Add(time.Hour)))
	require.NoError(t, repo.SetResetToken(ctx, user.ID, second, time.Now().Add(time.Hour)))

	_, err := repo.ConsumeResetToken(ctx, first, "new-hash", time.Now())
	require.ErrorIs(t, err, repository.ErrResetTokenNotFound)

	_, err = repo.ConsumeResetToken(ctx, second, "new-hash", time.Now())
	require.NoError(t, err)
}

func TestStore_ExternalAccounts(t *testing.T) {
	store := NewStore()
	repo := store.UserRepo()
	ctx := context.Background()

	user := &entity.User{Email: "a@example.com", AuthProvider: entity.ProviderGoogle, ExternalID: "google-sub-1"}
	require.NoError(t, repo.Create(ctx, user))

	found, err := repo.FindByExternalID(ctx, entity.ProviderGoogle, "google-sub-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.FindByExternalID(ctx, entity.ProviderGoogle, "google-sub-2")
	require.ErrorIs(t, err, repository.ErrUserNotFound)

	other := &entity.User{Email: "b@example.com", AuthProvider: entity.ProviderLocal}
	require.NoError(t, repo.Create(ctx, other))

	err = repo.LinkExternalAccount(ctx, other.ID, entity.ProviderGoogle, "google-sub-1")
	require.ErrorIs(t, err, repository.ErrExternalIDTaken)

	require.NoError(t, repo.LinkExternalAccount(ctx, other.ID, entity.ProviderGoogle, "google-sub-3"))
	linked, err := repo.FindByExternalID(ctx, entity.ProviderGoogle, "google-sub-3")
	require.NoError(t, err)
	assert.Equal(t, other.ID, linked.ID)
}

func TestStore_AuditRepo_RecordsEvents(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.AuditRepo().Create(ctx, &entity.AuditEvent{
		EventType: entity.AuditLoginFailed,
		Email:     "a@example.com",
	})
	require.NoError(t, err)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, entity.AuditLoginFailed, events[0].EventType)
	assert.NotZero(t, events[0].CreatedAt)
}
