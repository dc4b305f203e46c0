package entity

import (
	"time"

	"github.com/google/uuid"
)

// Audit event types recorded by the auth service. Every operation outcome,
// success or failure, produces exactly one event.
const (
	AuditUserRegistered       = "user_registered"
	AuditRegisterEmailTaken   = "registration_attempt_existing_email"
	AuditLoginSuccess         = "user_login_success"
	AuditLoginFailed          = "login_attempt_failed"
	AuditLoginRateLimited     = "login_rate_limited"
	AuditTokenRefreshed       = "token_refreshed"
	AuditTokenRefreshFailed   = "token_refresh_failed"
	AuditResetRequested       = "password_reset_requested"
	AuditResetRequestIgnored  = "password_reset_request_ignored"
	AuditResetRateLimited     = "password_reset_rate_limited"
	AuditResetCompleted       = "password_reset_completed"
	AuditResetInvalidToken    = "password_reset_invalid_token"
	AuditOAuthLoginSuccess    = "oauth_login_success"
	AuditOAuthAccountLinked   = "oauth_account_linked"
	AuditOAuthUserCreated     = "oauth_user_created"
	AuditOAuthLoginFailed     = "oauth_login_failed"
)

// AuditEvent is a persisted security-relevant event. UserID is nil when the
// event could not be attributed to a known account (e.g. a login attempt for
// an unknown email).
type AuditEvent struct {
	ID        uuid.UUID
	EventType string
	UserID    *uuid.UUID
	Email     string
	IP        string
	UserAgent string
	Metadata  map[string]any
	CreatedAt time.Time
}
