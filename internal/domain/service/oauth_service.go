package service

import "context"

// OAuthUser is the identity asserted by a verified external provider token.
type OAuthUser struct {
	ID            string // Provider-scoped unique id (e.g. Google's 'sub').
	Email         string
	Name          string
	Provider      string
	EmailVerified bool
}

// OAuthAuthService verifies external identity tokens. The only provider
// currently implemented is Google ID-token verification.
type OAuthAuthService interface {
	// VerifyIDToken validates the provider-signed identity token and returns
	// the asserted user.
	VerifyIDToken(ctx context.Context, idToken string) (*OAuthUser, error)
}
