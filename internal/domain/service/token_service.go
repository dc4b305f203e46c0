package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token verification failures. Implementations return exactly one of these
// (wrapped) so callers can branch without knowing the token library.
var (
	// ErrTokenMalformed means the string is structurally not a signed token.
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenInvalid means the signature does not verify. It also covers
	// tokens asserting no signature at all.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenExpired means the signature verifies but the expiry has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenIssuerMismatch means the issuer claim does not match the
	// deployment's fixed issuer.
	ErrTokenIssuerMismatch = errors.New("token issuer mismatch")
)

// Claims is the identity claim set carried by a bearer token.
type Claims struct {
	UserID uuid.UUID `json:"uid"`
	Email  string    `json:"email"`
	Name   string    `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed, time-limited bearer tokens. Tokens
// are self-contained; validity is purely a function of signature and expiry at
// verification time, there is no revocation list.
type TokenService interface {
	// Issue signs the identity claims together with issuedAt (now),
	// expiresAt (now plus the fixed access TTL) and the fixed issuer.
	Issue(userID uuid.UUID, email, name string) (string, error)

	// Verify checks signature, structure, issuer and expiry.
	Verify(tokenString string) (*Claims, error)

	// VerifyIgnoringExpiry applies the same checks except expiry. It exists
	// only for the refresh flow, which accepts expired-but-authentic tokens.
	VerifyIgnoringExpiry(tokenString string) (*Claims, error)

	// AccessTokenTTL returns the fixed validity window of issued tokens.
	AccessTokenTTL() time.Duration
}
