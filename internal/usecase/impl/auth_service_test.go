package impl

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studytrack/config"
	"studytrack/internal/domain/entity"
	domainerrors "studytrack/internal/domain/errors"
	"studytrack/internal/domain/service"
	"studytrack/internal/errors"
	infraaudit "studytrack/internal/infra/audit"
	infraauth "studytrack/internal/infra/auth"
	"studytrack/internal/infra/auth/google"
	"studytrack/internal/infra/persistence/memory"
	"studytrack/internal/infra/ratelimit"
	"studytrack/internal/usecase"
)

const testJWTSecret = "unit-test-jwt-secret"

// fakeHasher is a transparent stand-in for bcrypt so tests stay fast. The
// hashing contract (deterministic check, opaque hash) is preserved.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed$" + password, nil
}

func (fakeHasher) Check(password, hash string) bool {
	return hash == "hashed$"+password
}

type testEnv struct {
	svc    *authService
	store  *memory.Store
	tokens service.TokenService
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SecretKey.JWT = testJWTSecret

	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()

	tokenSvc, err := infraauth.NewJWTService(cfg)
	require.NoError(t, err)

	svc, err := NewAuthService(AuthServiceParams{
		TxManager:         memory.NewTransactionManager(store),
		UserRepo:          store.UserRepo(),
		Hasher:            fakeHasher{},
		TokenService:      tokenSvc,
		ResetTokens:       infraauth.NewResetTokenGenerator(),
		Limiter:           ratelimit.NewMemoryLimiter(),
		Audit:             infraaudit.NewStoreAuditLog(store.AuditRepo(), logger),
		GoogleAuthService: google.NewAuthService(cfg, logger),
		Config:            cfg,
		Logger:            logger,
	})
	require.NoError(t, err)

	return &testEnv{
		svc:    svc.(*authService),
		store:  store,
		tokens: tokenSvc,
	}
}

func (env *testEnv) register(t *testing.T, email, password string) *entity.PublicUser {
	t.Helper()

	out, err := env.svc.Register(context.Background(), &usecase.RegisterInput{
		Name:     "Test User",
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)

	return out.User
}

func (env *testEnv) auditTypes() []string {
	events := env.store.Events()
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.EventType
	}

	return types
}

// signClaims crafts a token with arbitrary claims using the test secret, for
// scenarios the real issuer cannot produce (old iat, foreign issuer).
func signClaims(t *testing.T, claims *service.Claims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	return token
}

// makeGoogleIDToken builds an unsigned-but-parseable Google ID token. The
// verifier checks claims, not the provider signature, in this deployment.
func makeGoogleIDToken(t *testing.T, sub, email, name string) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]any{
		"iss":            "accounts.google.com",
		"sub":            sub,
		"exp":            time.Now().Add(time.Hour).Unix(),
		"email":          email,
		"email_verified": true,
		"name":           name,
	})
	require.NoError(t, err)

	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func TestAuthService_Register_Success(t *testing.T) {
	env := newTestEnv(t)

	user := env.register(t, "Alice@Example.COM", "a strong password")

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "alice@example.com", user.Email, "email should be stored normalized")
	assert.Equal(t, entity.ProviderLocal, user.AuthProvider)
	assert.Contains(t, env.auditTypes(), entity.AuditUserRegistered)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "a strong password")

	_, err := env.svc.Register(context.Background(), &usecase.RegisterInput{
		Email:    "ALICE@example.com",
		Password: "another password",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrEmailAlreadyInUse))
	assert.Contains(t, env.auditTypes(), entity.AuditRegisterEmailTaken)
}

func TestAuthService_Register_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "malformed email", email: "not-an-email", password: "a strong password"},
		{name: "empty email", email: "", password: "a strong password"},
		{name: "short password", email: "a@example.com", password: "short"},
		{name: "control characters", email: "a@example.com", password: "password\x00with\x1fnul"},
		{name: "over bcrypt limit", email: "a@example.com", password: string(make([]byte, 100))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Register(ctx, &usecase.RegisterInput{Email: tt.email, Password: tt.password})
			require.Error(t, err)
			assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed))
		})
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "a strong password")

	out, err := env.svc.Login(context.Background(), &usecase.LoginInput{
		Email:    "ALICE@example.com",
		Password: "a strong password",
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.AccessToken)
	assert.Equal(t, 24*time.Hour, out.ExpiresIn)

	claims, err := env.tokens.Verify(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, out.User.ID, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)

	assert.Contains(t, env.auditTypes(), entity.AuditLoginSuccess)
}

func TestAuthService_Login_WrongPasswordAndUnknownEmailAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "a strong password")
	ctx := context.Background()

	_, errWrong := env.svc.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "wrong password"})
	_, errUnknown := env.svc.Login(ctx, &usecase.LoginInput{Email: "nobody@example.com", Password: "wrong password"})

	require.Error(t, errWrong)
	require.Error(t, errUnknown)
	assert.True(t, errors.Is(errWrong, domainerrors.ErrInvalidCredentials))
	assert.True(t, errors.Is(errUnknown, domainerrors.ErrInvalidCredentials))
}

func TestAuthService_Login_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "a strong password")
	ctx := context.Background()

	for range 5 {
		_, err := env.svc.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "wrong password"})
		require.True(t, errors.Is(err, domainerrors.ErrInvalidCredentials))
	}

	// Even the correct password is rejected once the window is exhausted.
	_, err := env.svc.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "a strong password"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrTooManyAttempts))
	assert.Contains(t, env.auditTypes(), entity.AuditLoginRateLimited)
}

func TestAuthService_Login_SuccessResetsAttemptWindow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "a strong password")
	ctx := context.Background()

	for range 4 {
		_, err := env.svc.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "wrong password"})
		require.Error(t, err)
	}

	_, err := env.svc.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "a strong password"})
	require.NoError(t, err)

	// The successful login cleared the counter; a full window is available again.
	for range 5 {
		_, err := env.svc.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "wrong password"})
		require.True(t, errors.Is(err, domainerrors.ErrInvalidCredentials))
	}
}

func TestAuthService_Login_ProviderOnlyAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.UserRepo().Create(ctx, &entity.User{
		Email:        "google-only@example.com",
		AuthProvider: entity.ProviderGoogle,
		ExternalID:   "google-sub-9",
	}))

	_, err := env.svc.Login(ctx, &usecase.LoginInput{Email: "google-only@example.com", Password: "anything"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidCredentials))
}

func TestAuthService_Refresh_Success(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "a strong password")
	ctx := context.Background()

	login, err := env.svc.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "a strong password"})
	require.NoError(t, err)

	out, err := env.svc.Refresh(ctx, &usecase.RefreshInput{Token: login.AccessToken})
	require.NoError(t, err)
	require.NotEmpty(t, out.AccessToken)

	claims, err := env.tokens.Verify(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, login.User.ID, claims.UserID)
	assert.Contains(t, env.auditTypes(), entity.AuditTokenRefreshed)
}

func TestAuthService_Refresh_AcceptsExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice@example.com", "a strong password")

	// Authentic token issued two days ago, expired one day ago.
	issued := time.Now().Add(-48 * time.Hour)
	expired := signClaims(t, &service.Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "studytrack",
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(24 * time.Hour)),
		},
	})

	out, err := env.svc.Refresh(context.Background(), &usecase.RefreshInput{Token: expired})
	require.NoError(t, err)

	claims, err := env.tokens.Verify(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestAuthService_Refresh_TokenTooOld(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice@example.com", "a strong password")

	issued := time.Now().Add(-8 * 24 * time.Hour)
	stale := signClaims(t, &service.Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "studytrack",
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(24 * time.Hour)),
		},
	})

	_, err := env.svc.Refresh(context.Background(), &usecase.RefreshInput{Token: stale})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrTokenTooOldToRefresh))
	assert.Contains(t, env.auditTypes(), entity.AuditTokenRefreshFailed)
}

func TestAuthService_Refresh_InvalidToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Refresh(context.Background(), &usecase.RefreshInput{Token: "garbage"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))
}

func TestAuthService_Refresh_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	ghost := signClaims(t, &service.Claims{
		UserID: uuid.New(),
		Email:  "ghost@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "studytrack",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	})

	_, err := env.svc.Refresh(context.Background(), &usecase.RefreshInput{Token: ghost})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrUserNotFound))
}

func TestAuthService_RequestPasswordReset_Success(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "a strong password")

	out, err := env.svc.RequestPasswordReset(context.Background(), &usecase.RequestPasswordResetInput{
		Email: "alice@example.com",
	})
	require.NoError(t, err)
	assert.True(t, service.IsWellFormedResetToken(out.ResetToken))
	assert.WithinDuration(t, time.Now().Add(time.Hour), out.ExpiresAt, 5*time.Second)
	assert.Contains(t, env.auditTypes(), entity.AuditResetRequested)
}

func TestAuthService_RequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.svc.RequestPasswordReset(context.Background(), &usecase.RequestPasswordResetInput{
		Email: "nobody@example.com",
	})
	require.NoError(t, err, "unknown addresses must not produce a visible failure")
	assert.Empty(t, out.ResetToken)
	assert.Contains(t, env.auditTypes(), entity.AuditResetRequestIgnored)
}

func TestAuthService_RequestPasswordReset_ProviderOnlyAccountIsSilent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.UserRepo().Create(ctx, &entity.User{
		Email:        "google-only@example.com",
		AuthProvider: entity.ProviderGoogle,
		ExternalID:   "google-sub-7",
	}))

	out, err := env.svc.RequestPasswordReset(ctx, &usecase.RequestPasswordResetInput{
		Email: "google-only@example.com",
	})
	require.NoError(t, err)
	assert.Empty(t, out.ResetToken)
	assert.Contains(t, env.auditTypes(), entity.AuditResetRequestIgnored)
}

func TestAuthService_RequestPasswordReset_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "a strong password")
	ctx := context.Background()

	for range 3 {
		_, err := env.svc.RequestPasswordReset(ctx, &usecase.RequestPasswordResetInput{Email: "alice@example.com"})
		require.NoError(t, err)
	}

	_, err := env.svc.RequestPasswordReset(ctx, &usecase.RequestPasswordResetInput{Email: "alice@example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrTooManyRequests))
	assert.Contains(t, env.auditTypes(), entity.AuditResetRateLimited)
}

func TestAuthService_ResetPassword_FullFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "old password!")
	ctx := context.Background()

	req, err := env.svc.RequestPasswordReset(ctx, &usecase.RequestPasswordResetInput{Email: "alice@example.com"})
	require.NoError(t, err)

	err = env.svc.ResetPassword(ctx, &usecase.ResetPasswordInput{
		Token:       req.ResetToken,
		NewPassword: "brand new password",
	})
	require.NoError(t, err)
	assert.Contains(t, env.auditTypes(), entity.AuditResetCompleted)

	_, err = env.svc.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "old password!"})
	require.Error(t, err, "old password must stop working")

	_, err = env.svc.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "brand new password"})
	require.NoError(t, err)
}

func TestAuthService_ResetPassword_TokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "old password!")
	ctx := context.Background()

	req, err := env.svc.RequestPasswordReset(ctx, &usecase.RequestPasswordResetInput{Email: "alice@example.com"})
	require.NoError(t, err)

	require.NoError(t, env.svc.ResetPassword(ctx, &usecase.ResetPasswordInput{
		Token:       req.ResetToken,
		NewPassword: "first new password",
	}))

	err = env.svc.ResetPassword(ctx, &usecase.ResetPasswordInput{
		Token:       req.ResetToken,
		NewPassword: "second new password",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))

	// First reset won; the second attempt changed nothing.
	_, err = env.svc.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "first new password"})
	require.NoError(t, err)
}

func TestAuthService_ResetPassword_ExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "old password!")
	ctx := context.Background()

	req, err := env.svc.RequestPasswordReset(ctx, &usecase.RequestPasswordResetInput{Email: "alice@example.com"})
	require.NoError(t, err)

	// Two hours later the one-hour token has lapsed.
	env.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	err = env.svc.ResetPassword(ctx, &usecase.ResetPasswordInput{
		Token:       req.ResetToken,
		NewPassword: "brand new password",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))
}

func TestAuthService_ResetPassword_MalformedToken(t *testing.T) {
	env := newTestEnv(t)

	err := env.svc.ResetPassword(context.Background(), &usecase.ResetPasswordInput{
		Token:       "definitely-not-hex",
		NewPassword: "brand new password",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))
	assert.Contains(t, env.auditTypes(), entity.AuditResetInvalidToken)
}

func TestAuthService_ResetPassword_NewRequestInvalidatesOldToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "old password!")
	ctx := context.Background()

	first, err := env.svc.RequestPasswordReset(ctx, &usecase.RequestPasswordResetInput{Email: "alice@example.com"})
	require.NoError(t, err)
	second, err := env.svc.RequestPasswordReset(ctx, &usecase.RequestPasswordResetInput{Email: "alice@example.com"})
	require.NoError(t, err)
	require.NotEqual(t, first.ResetToken, second.ResetToken)

	err = env.svc.ResetPassword(ctx, &usecase.ResetPasswordInput{
		Token:       first.ResetToken,
		NewPassword: "brand new password",
	})
	require.Error(t, err, "superseded token must be rejected")

	require.NoError(t, env.svc.ResetPassword(ctx, &usecase.ResetPasswordInput{
		Token:       second.ResetToken,
		NewPassword: "brand new password",
	}))
}

func TestAuthService_GoogleCallback_CreatesAccount(t *testing.T) {
	env := newTestEnv(t)

	idToken := makeGoogleIDToken(t, "google-sub-1", "carol@example.com", "Carol")
	out, err := env.svc.GoogleCallback(context.Background(), &usecase.GoogleCallbackInput{IDToken: idToken})
	require.NoError(t, err)

	assert.Equal(t, "carol@example.com", out.User.Email)
	assert.Equal(t, entity.ProviderGoogle, out.User.AuthProvider)

	claims, err := env.tokens.Verify(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, out.User.ID, claims.UserID)

	types := env.auditTypes()
	assert.Contains(t, types, entity.AuditOAuthUserCreated)
	assert.Contains(t, types, entity.AuditOAuthLoginSuccess)
}

func TestAuthService_GoogleCallback_LinksExistingAccountByEmail(t *testing.T) {
	env := newTestEnv(t)
	existing := env.register(t, "alice@example.com", "a strong password")

	idToken := makeGoogleIDToken(t, "google-sub-2", "alice@example.com", "Alice")
	out, err := env.svc.GoogleCallback(context.Background(), &usecase.GoogleCallbackInput{IDToken: idToken})
	require.NoError(t, err)

	assert.Equal(t, existing.ID, out.User.ID, "login should link, not duplicate, the account")
	assert.Contains(t, env.auditTypes(), entity.AuditOAuthAccountLinked)

	// The local password still works after linking.
	_, err = env.svc.Login(context.Background(), &usecase.LoginInput{Email: "alice@example.com", Password: "a strong password"})
	require.NoError(t, err)
}

func TestAuthService_GoogleCallback_RepeatLoginFindsSameAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	idToken := makeGoogleIDToken(t, "google-sub-3", "dave@example.com", "Dave")
	first, err := env.svc.GoogleCallback(ctx, &usecase.GoogleCallbackInput{IDToken: idToken})
	require.NoError(t, err)

	second, err := env.svc.GoogleCallback(ctx, &usecase.GoogleCallbackInput{IDToken: idToken})
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestAuthService_GoogleCallback_InvalidToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GoogleCallback(context.Background(), &usecase.GoogleCallbackInput{IDToken: "bogus"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrOAuthTokenInvalid))
	assert.Contains(t, env.auditTypes(), entity.AuditOAuthLoginFailed)
}

func TestAuthService_GetMe(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice@example.com", "a strong password")

	me, err := env.svc.GetMe(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)
	assert.Equal(t, "alice@example.com", me.Email)

	_, err = env.svc.GetMe(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrUserNotFound))
}
