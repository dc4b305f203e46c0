package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasher_HashAndCheck(t *testing.T) {
	hasher := NewBcryptHasher()

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.True(t, hasher.Check("correct horse battery staple", hash))
	assert.False(t, hasher.Check("correct horse battery stapl", hash))
}

func TestBcryptHasher_SaltedHashesDiffer(t *testing.T) {
	hasher := NewBcryptHasher()

	first, err := hasher.Hash("same password")
	require.NoError(t, err)
	second, err := hasher.Hash("same password")
	require.NoError(t, err)

	// Each hash embeds a fresh salt, so equal inputs never produce equal
	// hashes, yet both verify.
	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Check("same password", first))
	assert.True(t, hasher.Check("same password", second))
}

func TestBcryptHasher_CostFactor(t *testing.T) {
	hasher := NewBcryptHasher()

	hash, err := hasher.Hash("some password")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$2a$12$"), "hash should carry cost 12: %s", hash)
}

func TestBcryptHasher_CheckToleratesBadHashes(t *testing.T) {
	hasher := NewBcryptHasher()

	assert.False(t, hasher.Check("anything", ""))
	assert.False(t, hasher.Check("anything", "not-a-bcrypt-hash"))
}
