// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"studytrack/config"
	deliverycontext "studytrack/internal/delivery/context"
	"studytrack/internal/domain/entity"
	domainerrors "studytrack/internal/domain/errors"
	"studytrack/internal/domain/repository"
	"studytrack/internal/domain/service"
	"studytrack/internal/errors"
	"studytrack/internal/usecase"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/fx"
)

const (
	// refreshMaxAge bounds how long after issuance a token may still be
	// exchanged for a fresh one. Measured from the iat claim, so chained
	// refreshes extend the window from each newly issued token.
	refreshMaxAge = 7 * 24 * time.Hour

	minPasswordLength = 8
	// bcrypt silently truncates input beyond 72 bytes; longer passwords are
	// rejected rather than partially checked.
	maxPasswordLength = 72

	defaultLoginAttemptLimit  = 5
	defaultLoginAttemptWindow = 15 * time.Minute
	defaultResetRequestLimit  = 3
	defaultResetRequestWindow = time.Hour
)

var validate = validator.New()

// authService implements the AuthUsecase interface.
type authService struct {
	txManager    repository.TransactionManager
	userRepo     repository.UserRepository
	hasher       service.PasswordHasher
	tokenService service.TokenService
	resetTokens  service.ResetTokenGenerator
	limiter      service.RateLimiter
	audit        service.AuditLog
	googleAuth   service.OAuthAuthService
	logger       *slog.Logger

	loginAttemptLimit  int
	loginAttemptWindow time.Duration
	resetRequestLimit  int
	resetRequestWindow time.Duration

	// dummyHash is compared against when no account (or no local password)
	// matches a login attempt, so the miss path costs one bcrypt comparison
	// just like the hit path.
	dummyHash string

	now func() time.Time
}

// AuthServiceParams holds dependencies for the auth service, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager         repository.TransactionManager
	UserRepo          repository.UserRepository
	Hasher            service.PasswordHasher
	TokenService      service.TokenService
	ResetTokens       service.ResetTokenGenerator
	Limiter           service.RateLimiter
	Audit             service.AuditLog
	GoogleAuthService service.OAuthAuthService
	Config            *config.Config
	Logger            *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all
// dependencies as interfaces.
func NewAuthService(params AuthServiceParams) (usecase.AuthUsecase, error) {
	dummyHash, err := params.Hasher.Hash("timing-equalization-placeholder")
	if err != nil {
		return nil, errors.Wrap(err, "failed to precompute dummy hash")
	}

	srv := &authService{
		txManager:          params.TxManager,
		userRepo:           params.UserRepo,
		hasher:             params.Hasher,
		tokenService:       params.TokenService,
		resetTokens:        params.ResetTokens,
		limiter:            params.Limiter,
		audit:              params.Audit,
		googleAuth:         params.GoogleAuthService,
		logger:             params.Logger,
		loginAttemptLimit:  defaultLoginAttemptLimit,
		loginAttemptWindow: defaultLoginAttemptWindow,
		resetRequestLimit:  defaultResetRequestLimit,
		resetRequestWindow: defaultResetRequestWindow,
		dummyHash:          dummyHash,
		now:                time.Now,
	}

	if authCfg := params.Config.Auth; authCfg != nil {
		if authCfg.LoginAttemptLimit > 0 {
			srv.loginAttemptLimit = authCfg.LoginAttemptLimit
		}
		if authCfg.LoginAttemptWindow > 0 {
			srv.loginAttemptWindow = authCfg.LoginAttemptWindow
		}
		if authCfg.ResetRequestLimit > 0 {
			srv.resetRequestLimit = authCfg.ResetRequestLimit
		}
		if authCfg.ResetRequestWindow > 0 {
			srv.resetRequestWindow = authCfg.ResetRequestWindow
		}
	}

	return srv, nil
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *authService) record(ctx context.Context, eventType string, userID *uuid.UUID, email string, meta usecase.RequestMeta, metadata map[string]any) {
	srv.audit.Record(ctx, &entity.AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Metadata:  metadata,
	})
}

// normalizeEmail lower-cases and trims the address. All lookups and stored
// records use the normalized form, so case variants of one address always
// resolve to the same account.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return domainerrors.ErrValidationFailed.WrapMessage("invalid email address")
	}

	return nil
}

// validatePassword enforces the password policy for both registration and
// reset: bounded length, no control characters.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return domainerrors.ErrValidationFailed.WrapMessage("password too short")
	}
	if len(password) > maxPasswordLength {
		return domainerrors.ErrValidationFailed.WrapMessage("password too long")
	}
	for _, r := range password {
		if unicode.IsControl(r) {
			return domainerrors.ErrValidationFailed.WrapMessage("password contains control characters")
		}
	}

	return nil
}

// Register creates a new local account.
func (srv *authService) Register(ctx context.Context, input *usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	email := normalizeEmail(input.Email)
	srv.log(ctx).Info("Starting registration", slog.String("email", email))

	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hashedPassword, err := srv.hasher.Hash(input.Password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password during registration", slog.Any("error", err))

		return nil, domainerrors.ErrInternal.WrapMessage("failed to hash password")
	}

	newUser := &entity.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hashedPassword,
		AuthProvider: entity.ProviderLocal,
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.UserRepo().Create(ctx, newUser)
	})
	if errors.Is(err, repository.ErrEmailTaken) {
		srv.record(ctx, entity.AuditRegisterEmailTaken, nil, email, input.Meta, nil)

		return nil, domainerrors.ErrEmailAlreadyInUse.WrapMessage("registration failed")
	}
	if err != nil {
		srv.log(ctx).Error("Failed to create user", slog.String("email", email), slog.Any("error", err))

		return nil, domainerrors.NewDatabaseExecuteError(err, "create user")
	}

	srv.record(ctx, entity.AuditUserRegistered, &newUser.ID, email, input.Meta, nil)
	srv.log(ctx).Debug("Registration completed", slog.Any("userID", newUser.ID))

	return &usecase.RegisterOutput{User: newUser.Public()}, nil
}

// Login verifies local credentials and issues a bearer token. The rate limit
// is consulted before any store or hash work; a denied attempt never reveals
// whether the account exists.
func (srv *authService) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.LoginOutput, error) {
	email := normalizeEmail(input.Email)
	srv.log(ctx).Debug("Starting login", slog.String("email", email))

	allowed, err := srv.limiter.Allow(ctx, "login:"+email, srv.loginAttemptLimit, srv.loginAttemptWindow)
	if err != nil {
		srv.log(ctx).Warn("Rate limiter unavailable, allowing login attempt", slog.Any("error", err))
	}
	if !allowed {
		srv.record(ctx, entity.AuditLoginRateLimited, nil, email, input.Meta, nil)

		return nil, domainerrors.ErrTooManyAttempts.WrapMessage("login throttled")
	}

	user, err := srv.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		srv.log(ctx).Error("Failed to load user for login", slog.Any("error", err))

		return nil, domainerrors.NewDatabaseExecuteError(err, "find user by email")
	}

	if user == nil || !user.HasLocalPassword() {
		// Burn one bcrypt comparison so the miss path is not measurably
		// faster than a wrong-password attempt.
		srv.hasher.Check(input.Password, srv.dummyHash)
		srv.record(ctx, entity.AuditLoginFailed, nil, email, input.Meta, map[string]any{"reason": "unknown_or_passwordless_account"})

		return nil, domainerrors.ErrInvalidCredentials.WrapMessage("login failed")
	}

	if !srv.hasher.Check(input.Password, user.PasswordHash) {
		srv.record(ctx, entity.AuditLoginFailed, &user.ID, email, input.Meta, map[string]any{"reason": "password_mismatch"})

		return nil, domainerrors.ErrInvalidCredentials.WrapMessage("login failed")
	}

	accessToken, err := srv.tokenService.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		srv.log(ctx).Error("Failed to issue token", slog.Any("userID", user.ID), slog.Any("error", err))

		return nil, domainerrors.ErrInternal.WrapMessage("failed to issue token")
	}

	// Successful login clears the failed-attempt window for this account.
	if err := srv.limiter.Reset(ctx, "login:"+email); err != nil {
		srv.log(ctx).Warn("Failed to reset login attempt counter", slog.Any("error", err))
	}

	srv.record(ctx, entity.AuditLoginSuccess, &user.ID, email, input.Meta, nil)
	srv.log(ctx).Debug("User logged in", slog.Any("userID", user.ID))

	return &usecase.LoginOutput{
		AccessToken: accessToken,
		ExpiresIn:   srv.tokenService.AccessTokenTTL(),
		User:        user.Public(),
	}, nil
}

// Refresh exchanges an authentic token, possibly past its expiry, for a fresh
// one. Authenticity is still fully checked; only the expiry claim is waived,
// and only within refreshMaxAge of the token's issuance.
func (srv *authService) Refresh(ctx context.Context, input *usecase.RefreshInput) (*usecase.RefreshOutput, error) {
	srv.log(ctx).Debug("Attempting token refresh")

	claims, err := srv.tokenService.VerifyIgnoringExpiry(input.Token)
	if err != nil {
		srv.record(ctx, entity.AuditTokenRefreshFailed, nil, "", input.Meta, map[string]any{"reason": "invalid_token"})

		return nil, domainerrors.ErrInvalidToken.WrapMessage("refresh rejected")
	}

	if claims.IssuedAt == nil {
		srv.record(ctx, entity.AuditTokenRefreshFailed, &claims.UserID, claims.Email, input.Meta, map[string]any{"reason": "missing_iat"})

		return nil, domainerrors.ErrInvalidToken.WrapMessage("refresh rejected")
	}
	if srv.now().Sub(claims.IssuedAt.Time) > refreshMaxAge {
		srv.record(ctx, entity.AuditTokenRefreshFailed, &claims.UserID, claims.Email, input.Meta, map[string]any{"reason": "token_too_old"})

		return nil, domainerrors.ErrTokenTooOldToRefresh.WrapMessage("refresh rejected")
	}

	// Re-fetch the account so a token for a deleted user cannot be renewed
	// and renamed accounts get current claims.
	user, err := srv.userRepo.FindByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		srv.record(ctx, entity.AuditTokenRefreshFailed, &claims.UserID, claims.Email, input.Meta, map[string]any{"reason": "user_not_found"})

		return nil, domainerrors.ErrUserNotFound.WrapMessage("refresh rejected")
	}
	if err != nil {
		srv.log(ctx).Error("Failed to load user for refresh", slog.Any("error", err))

		return nil, domainerrors.NewDatabaseExecuteError(err, "find user by id")
	}

	accessToken, err := srv.tokenService.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		srv.log(ctx).Error("Failed to issue refreshed token", slog.Any("userID", user.ID), slog.Any("error", err))

		return nil, domainerrors.ErrInternal.WrapMessage("failed to issue token")
	}

	srv.record(ctx, entity.AuditTokenRefreshed, &user.ID, user.Email, input.Meta, nil)

	return &usecase.RefreshOutput{
		AccessToken: accessToken,
		ExpiresIn:   srv.tokenService.AccessTokenTTL(),
	}, nil
}

// RequestPasswordReset starts password recovery. The outcome visible to the
// caller is identical whether or not the account exists; only the audit trail
// distinguishes the cases.
func (srv *authService) RequestPasswordReset(ctx context.Context, input *usecase.RequestPasswordResetInput) (*usecase.RequestPasswordResetOutput, error) {
	email := normalizeEmail(input.Email)
	srv.log(ctx).Debug("Password reset requested", slog.String("email", email))

	if err := validateEmail(email); err != nil {
		return nil, err
	}

	allowed, err := srv.limiter.Allow(ctx, "reset:"+email, srv.resetRequestLimit, srv.resetRequestWindow)
	if err != nil {
		srv.log(ctx).Warn("Rate limiter unavailable, allowing reset request", slog.Any("error", err))
	}
	if !allowed {
		srv.record(ctx, entity.AuditResetRateLimited, nil, email, input.Meta, nil)

		return nil, domainerrors.ErrTooManyRequests.WrapMessage("reset request throttled")
	}

	user, err := srv.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		srv.record(ctx, entity.AuditResetRequestIgnored, nil, email, input.Meta, map[string]any{"reason": "unknown_email"})

		return &usecase.RequestPasswordResetOutput{}, nil
	}
	if err != nil {
		srv.log(ctx).Error("Failed to load user for reset request", slog.Any("error", err))

		return nil, domainerrors.NewDatabaseExecuteError(err, "find user by email")
	}

	// Provider-only accounts have no local password to recover. Treated the
	// same as an unknown address to keep the response uniform.
	if !user.HasLocalPassword() && user.AuthProvider != entity.ProviderLocal {
		srv.record(ctx, entity.AuditResetRequestIgnored, &user.ID, email, input.Meta, map[string]any{"reason": "provider_only_account"})

		return &usecase.RequestPasswordResetOutput{}, nil
	}

	token, expiresAt, err := srv.resetTokens.Generate()
	if err != nil {
		srv.log(ctx).Error("Failed to generate reset token", slog.Any("error", err))

		return nil, domainerrors.ErrInternal.WrapMessage("failed to generate reset token")
	}

	// Overwrites any outstanding token; only the newest issued token for a
	// user ever matches.
	if err := srv.userRepo.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		srv.log(ctx).Error("Failed to store reset token", slog.Any("userID", user.ID), slog.Any("error", err))

		return nil, domainerrors.NewDatabaseExecuteError(err, "set reset token")
	}

	srv.record(ctx, entity.AuditResetRequested, &user.ID, email, input.Meta, nil)

	return &usecase.RequestPasswordResetOutput{
		ResetToken: token,
		ExpiresAt:  expiresAt,
	}, nil
}

// ResetPassword completes password recovery. The token match, expiry check,
// hash write and token clear happen as one conditional store operation, so a
// token can be spent exactly once no matter how many calls race on it.
func (srv *authService) ResetPassword(ctx context.Context, input *usecase.ResetPasswordInput) error {
	srv.log(ctx).Debug("Password reset submitted")

	if err := validatePassword(input.NewPassword); err != nil {
		return err
	}

	if !service.IsWellFormedResetToken(input.Token) {
		srv.record(ctx, entity.AuditResetInvalidToken, nil, "", input.Meta, map[string]any{"reason": "malformed_token"})

		return domainerrors.ErrInvalidToken.WrapMessage("reset rejected")
	}

	newHash, err := srv.hasher.Hash(input.NewPassword)
	if err != nil {
		srv.log(ctx).Error("Failed to hash new password", slog.Any("error", err))

		return domainerrors.ErrInternal.WrapMessage("failed to hash password")
	}

	user, err := srv.userRepo.ConsumeResetToken(ctx, input.Token, newHash, srv.now())
	if errors.Is(err, repository.ErrResetTokenNotFound) {
		srv.record(ctx, entity.AuditResetInvalidToken, nil, "", input.Meta, map[string]any{"reason": "unknown_or_expired_token"})

		return domainerrors.ErrInvalidToken.WrapMessage("reset rejected")
	}
	if err != nil {
		srv.log(ctx).Error("Failed to consume reset token", slog.Any("error", err))

		return domainerrors.NewDatabaseExecuteError(err, "consume reset token")
	}

	srv.record(ctx, entity.AuditResetCompleted, &user.ID, user.Email, input.Meta, nil)
	srv.log(ctx).Info("Password reset completed", slog.Any("userID", user.ID))

	return nil
}

// GoogleCallback handles login or registration via Google Sign-In.
func (srv *authService) GoogleCallback(ctx context.Context, input *usecase.GoogleCallbackInput) (*usecase.LoginOutput, error) {
	srv.log(ctx).Debug("Handling Google callback")

	oauthUser, err := srv.googleAuth.VerifyIDToken(ctx, input.IDToken)
	if err != nil {
		srv.record(ctx, entity.AuditOAuthLoginFailed, nil, "", input.Meta, map[string]any{"reason": "token_verification_failed"})

		return nil, domainerrors.ErrOAuthTokenInvalid.WrapMessage("google callback rejected")
	}

	user, err := srv.findOrCreateGoogleUser(ctx, oauthUser, input.Meta)
	if err != nil {
		return nil, err
	}

	accessToken, err := srv.tokenService.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		srv.log(ctx).Error("Failed to issue token for google login", slog.Any("userID", user.ID), slog.Any("error", err))

		return nil, domainerrors.ErrInternal.WrapMessage("failed to issue token")
	}

	srv.record(ctx, entity.AuditOAuthLoginSuccess, &user.ID, user.Email, input.Meta, nil)

	return &usecase.LoginOutput{
		AccessToken: accessToken,
		ExpiresIn:   srv.tokenService.AccessTokenTTL(),
		User:        user.Public(),
	}, nil
}

// findOrCreateGoogleUser resolves the verified identity to an account:
// provider id match first, then linking by email, then a fresh account.
func (srv *authService) findOrCreateGoogleUser(ctx context.Context, oauthUser *service.OAuthUser, meta usecase.RequestMeta) (*entity.User, error) {
	var resolved *entity.User

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()

		existing, err := userRepo.FindByExternalID(ctx, entity.ProviderGoogle, oauthUser.ID)
		if err == nil {
			resolved = existing

			return nil
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return errors.Wrap(err, "failed to find user by external id")
		}

		email := normalizeEmail(oauthUser.Email)
		byEmail, err := userRepo.FindByEmail(ctx, email)
		if err == nil {
			if linkErr := userRepo.LinkExternalAccount(ctx, byEmail.ID, entity.ProviderGoogle, oauthUser.ID); linkErr != nil {
				return errors.Wrap(linkErr, "failed to link google account")
			}
			srv.record(ctx, entity.AuditOAuthAccountLinked, &byEmail.ID, email, meta, nil)
			resolved = byEmail
			resolved.AuthProvider = entity.ProviderGoogle
			resolved.ExternalID = oauthUser.ID

			return nil
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return errors.Wrap(err, "failed to find user by email")
		}

		newUser := &entity.User{
			Name:         oauthUser.Name,
			Email:        email,
			AuthProvider: entity.ProviderGoogle,
			ExternalID:   oauthUser.ID,
		}
		if err := userRepo.Create(ctx, newUser); err != nil {
			return errors.Wrap(err, "failed to create google user")
		}
		srv.record(ctx, entity.AuditOAuthUserCreated, &newUser.ID, email, meta, nil)
		resolved = newUser

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to resolve google user", slog.Any("error", err))

		return nil, domainerrors.NewDatabaseExecuteError(err, "resolve google user")
	}

	return resolved, nil
}

// GetMe returns the public view of the authenticated account.
func (srv *authService) GetMe(ctx context.Context, userID uuid.UUID) (*entity.PublicUser, error) {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrUserNotFound.WrapMessage("account lookup failed")
	}
	if err != nil {
		srv.log(ctx).Error("Failed to load user", slog.Any("userID", userID), slog.Any("error", err))

		return nil, domainerrors.NewDatabaseExecuteError(err, "find user by id")
	}

	return user.Public(), nil
}
