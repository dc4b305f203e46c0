// Package auth provides concrete implementations for authentication-related
// domain services.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"studytrack/config"
	"studytrack/internal/domain/service"
)

const (
	// tokenIssuer identifies this deployment in every issued token. Tokens
	// carrying any other issuer are rejected.
	tokenIssuer = "studytrack"

	// accessTokenTTL is the fixed validity window of a bearer token. It is
	// policy, not configuration.
	accessTokenTTL = 24 * time.Hour
)

// signingMethod is pinned: only HS256 tokens are ever issued or accepted.
// A token asserting "none" or any other algorithm fails verification.
var signingMethod = jwt.SigningMethodHS256

// jwtService is a concrete implementation of the TokenService interface using
// the JWT standard.
type jwtService struct {
	secret []byte
	now    func() time.Time
}

// NewJWTService is the constructor for jwtService.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.SecretKey.JWT == "" {
		return nil, errors.New("jwt secret must be provided")
	}

	return &jwtService{
		secret: []byte(cfg.SecretKey.JWT),
		now:    time.Now,
	}, nil
}

// Issue signs the identity claims with the fixed issuer and TTL.
func (s *jwtService) Issue(userID uuid.UUID, email, name string) (string, error) {
	now := s.now()
	claims := &service.Claims{
		UserID: userID,
		Email:  email,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	return signed, nil
}

// Verify checks signature, structure, issuer and expiry.
func (s *jwtService) Verify(tokenString string) (*service.Claims, error) {
	return s.parse(tokenString, false)
}

// VerifyIgnoringExpiry applies the same checks except expiry. Used only by
// the refresh flow, which renews near- or past-expiry tokens.
func (s *jwtService) VerifyIgnoringExpiry(tokenString string) (*service.Claims, error) {
	return s.parse(tokenString, true)
}

// AccessTokenTTL returns the fixed validity window of issued tokens.
func (s *jwtService) AccessTokenTTL() time.Duration {
	return accessTokenTTL
}

func (s *jwtService) parse(tokenString string, ignoreExpiry bool) (*service.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
	}
	if ignoreExpiry {
		// Claim validation (including exp) is skipped; the issuer is checked
		// manually below. The signature check always runs.
		opts = append(opts, jwt.WithoutClaimsValidation())
	} else {
		opts = append(opts, jwt.WithExpirationRequired(), jwt.WithIssuer(tokenIssuer))
	}

	claims := &service.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc, opts...)
	if err != nil {
		return nil, mapParseError(err)
	}
	if !token.Valid {
		return nil, errors.WithStack(service.ErrTokenInvalid)
	}

	if ignoreExpiry && claims.Issuer != tokenIssuer {
		return nil, errors.WithStack(service.ErrTokenIssuerMismatch)
	}

	return claims, nil
}

func (s *jwtService) keyFunc(token *jwt.Token) (any, error) {
	// WithValidMethods already rejects anything but HS256; this is the second
	// gate against an unexpected parser configuration.
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, jwt.ErrSignatureInvalid
	}

	return s.secret, nil
}

// mapParseError converts jwt/v5 parse errors into the domain token errors.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return errors.Wrap(service.ErrTokenMalformed, err.Error())
	case errors.Is(err, jwt.ErrTokenExpired):
		return errors.Wrap(service.ErrTokenExpired, err.Error())
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return errors.Wrap(service.ErrTokenIssuerMismatch, err.Error())
	default:
		// Signature mismatches, unexpected signing methods (including
		// alg=none) and anything else collapse into the generic failure.
		return errors.Wrap(service.ErrTokenInvalid, err.Error())
	}
}
