// Package auth provides concrete implementations for authentication-related
// domain services.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	"studytrack/internal/domain/service"
)

const (
	// resetTokenBytes gives 256 bits of entropy per token; hex-encoded this
	// yields service.ResetTokenLength characters.
	resetTokenBytes = 32

	// resetTokenTTL is the fixed lifetime of a reset token.
	resetTokenTTL = time.Hour
)

// resetTokenGenerator creates reset tokens from the OS CSPRNG.
type resetTokenGenerator struct {
	now func() time.Time
}

// NewResetTokenGenerator is the constructor for resetTokenGenerator.
func NewResetTokenGenerator() service.ResetTokenGenerator {
	return &resetTokenGenerator{now: time.Now}
}

// Generate returns a fresh token and its expiry timestamp.
func (g *resetTokenGenerator) Generate() (string, time.Time, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, errors.Wrap(err, "failed to read random bytes")
	}

	return hex.EncodeToString(buf), g.now().Add(resetTokenTTL), nil
}
