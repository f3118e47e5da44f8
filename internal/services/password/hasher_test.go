package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNew_RejectsUnknownAlgorithm(t *testing.T) {
	_, err := New("md5", 0)
	assert.Error(t, err)

	_, err = New(AlgorithmBcrypt, 99)
	assert.Error(t, err)
}

func TestHashAndVerify(t *testing.T) {
	for _, alg := range []string{AlgorithmBcrypt, AlgorithmArgon2id} {
		t.Run(alg, func(t *testing.T) {
			h, err := New(alg, bcrypt.MinCost)
			require.NoError(t, err)

			hash, err := h.Hash("pass")
			require.NoError(t, err)
			assert.NotEqual(t, "pass", hash)
			assert.NotContains(t, hash, "pass")

			assert.True(t, h.Verify("pass", hash))
			assert.False(t, h.Verify("wrong", hash))
			assert.False(t, h.Verify("", hash))
			assert.False(t, h.NeedsUpgrade(hash))
		})
	}
}

func TestMaxBytes(t *testing.T) {
	b, err := New(AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmBcrypt, b.Algorithm())
	assert.Equal(t, BcryptMaxBytes, b.MaxBytes())

	_, err = b.Hash(strings.Repeat("é", 36))
	assert.NoError(t, err)
	_, err = b.Hash(strings.Repeat("é", 37))
	assert.Error(t, err)

	a, err := New(AlgorithmArgon2id, 0)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmArgon2id, a.Algorithm())
	assert.Zero(t, a.MaxBytes())
}

func TestHash_IsSalted(t *testing.T) {
	h, err := New(AlgorithmArgon2id, 0)
	require.NoError(t, err)

	a, err := h.Hash("pass")
	require.NoError(t, err)
	b, err := h.Hash("pass")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerify_AcceptsEitherAlgorithm(t *testing.T) {
	bcryptHasher, err := New(AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	argonHasher, err := New(AlgorithmArgon2id, 0)
	require.NoError(t, err)

	bcryptHash, err := bcryptHasher.Hash("pass")
	require.NoError(t, err)
	argonHash, err := argonHasher.Hash("pass")
	require.NoError(t, err)

	assert.True(t, argonHasher.Verify("pass", bcryptHash))
	assert.True(t, bcryptHasher.Verify("pass", argonHash))

	assert.True(t, argonHasher.NeedsUpgrade(bcryptHash))
	assert.True(t, bcryptHasher.NeedsUpgrade(argonHash))
}

func TestNeedsUpgrade_BcryptCost(t *testing.T) {
	low, err := New(AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	high, err := New(AlgorithmBcrypt, bcrypt.MinCost+1)
	require.NoError(t, err)

	hash, err := low.Hash("pass")
	require.NoError(t, err)
	assert.True(t, high.NeedsUpgrade(hash))
	assert.False(t, low.NeedsUpgrade(hash))
}

func TestVerify_MalformedHashes(t *testing.T) {
	h, err := New(AlgorithmArgon2id, 0)
	require.NoError(t, err)

	for _, hash := range []string{
		"",
		"plaintext",
		"$argon2id$",
		"$argon2id$v=19$m=65536,t=1,p=4$not-base64!$abc",
		"$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$aGFzaA",
		"$2a$10$short",
		strings.Repeat("$", 6),
	} {
		assert.False(t, h.Verify("pass", hash), "hash %q", hash)
	}
}
