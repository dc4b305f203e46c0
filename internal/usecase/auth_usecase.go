// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"studytrack/internal/domain/entity"
)

// --- Input DTOs ---

// RequestMeta carries client metadata recorded with audit events and used
// as part of throttling keys.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// RegisterInput defines the data required to register a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Meta     RequestMeta
}

// LoginInput defines the data required to log in with email and password.
type LoginInput struct {
	Email    string
	Password string
	Meta     RequestMeta
}

// RefreshInput carries the token to be exchanged for a fresh one.
type RefreshInput struct {
	Token string
	Meta  RequestMeta
}

// RequestPasswordResetInput starts the password recovery flow.
type RequestPasswordResetInput struct {
	Email string
	Meta  RequestMeta
}

// ResetPasswordInput completes the password recovery flow.
type ResetPasswordInput struct {
	Token       string
	NewPassword string
	Meta        RequestMeta
}

// GoogleCallbackInput carries the Google ID token from the client.
type GoogleCallbackInput struct {
	IDToken string
	Meta    RequestMeta
}

// --- Output DTOs ---

// RegisterOutput returns the newly created account's public view.
type RegisterOutput struct {
	User *entity.PublicUser
}

// LoginOutput returns the signed access token after a successful login.
type LoginOutput struct {
	AccessToken string
	ExpiresIn   time.Duration
	User        *entity.PublicUser
}

// RefreshOutput returns the replacement access token.
type RefreshOutput struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// RequestPasswordResetOutput carries the reset token back to the caller.
// The token is returned so the delivery layer can hand it to the mail
// sender; it never appears in the HTTP response body.
type RequestPasswordResetOutput struct {
	ResetToken string
	ExpiresAt  time.Time
}

// AuthUsecase defines the contract for the credential lifecycle.
// This is the interface the delivery layer depends on.
type AuthUsecase interface {
	Register(ctx context.Context, input *RegisterInput) (*RegisterOutput, error)
	Login(ctx context.Context, input *LoginInput) (*LoginOutput, error)
	Refresh(ctx context.Context, input *RefreshInput) (*RefreshOutput, error)
	RequestPasswordReset(ctx context.Context, input *RequestPasswordResetInput) (*RequestPasswordResetOutput, error)
	ResetPassword(ctx context.Context, input *ResetPasswordInput) error
	GoogleCallback(ctx context.Context, input *GoogleCallbackInput) (*LoginOutput, error)
	GetMe(ctx context.Context, userID uuid.UUID) (*entity.PublicUser, error)
}
