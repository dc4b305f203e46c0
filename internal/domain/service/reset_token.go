package service

import (
	"encoding/hex"
	"time"
)

// ResetTokenLength is the textual length of a reset token: 32 random bytes,
// hex encoded. Anything of a different length or alphabet is rejected before
// any store lookup.
const ResetTokenLength = 64

// ResetTokenGenerator creates single-use, time-limited, unguessable secrets
// for password recovery. Tokens are stored server-side against the user
// record; only the most recently issued token for a user is valid.
type ResetTokenGenerator interface {
	// Generate returns a fresh token and its expiry timestamp.
	Generate() (token string, expiresAt time.Time, err error)
}

// IsWellFormedResetToken reports whether s matches the fixed length and hex
// alphabet of generated reset tokens. Malformed strings fail fast, before any
// store lookup.
func IsWellFormedResetToken(s string) bool {
	if len(s) != ResetTokenLength {
		return false
	}
	_, err := hex.DecodeString(s)

	return err == nil
}
