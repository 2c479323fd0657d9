package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgon2HashService_RoundTrip(t *testing.T) {
	svc := NewArgon2HashService()

	for _, password := range []string{"Tr4der!pass", "", strings.Repeat("x", 512)} {
		hash, err := svc.Hash(password)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(hash, "$argon2id$v="))

		ok, err := svc.Verify(password, hash)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestArgon2HashService_RejectsWrongPassword(t *testing.T) {
	svc := NewArgon2HashService()

	hash, err := svc.Hash("hunter2-but-stronger")
	require.NoError(t, err)

	ok, err := svc.Verify("hunter2", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2HashService_SaltsAreRandom(t *testing.T) {
	svc := NewArgon2HashService()

	h1, err := svc.Hash("same input")
	require.NoError(t, err)
	h2, err := svc.Hash("same input")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestArgon2HashService_EncodedParams(t *testing.T) {
	svc := NewArgon2HashService()

	hash, err := svc.Hash("anything")
	require.NoError(t, err)
	assert.Contains(t, hash, "m=65536,t=1,p=4")
}

func TestArgon2HashService_MalformedHash(t *testing.T) {
	svc := NewArgon2HashService()

	for _, bad := range []string{
		"plaintext",
		"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$not!base64$aGFzaA",
	} {
		_, err := svc.Verify("pw", bad)
		assert.Error(t, err, "hash %q should be rejected", bad)
	}
}
