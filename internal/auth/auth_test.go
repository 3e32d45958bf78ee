package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	issuer, err := NewIssuer(time.Hour)
	require.NoError(t, err)
	id := uuid.New()

	token, err := issuer.Issue(id, "ABCDEF", "alice")
	require.NoError(t, err)

	got, claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, "ABCDEF", claims.Room)
	assert.Equal(t, "alice", claims.Name)
	require.NotNil(t, claims.ExpiresAt)
}

func TestVerifyRejectsForeignAndExpiredTokens(t *testing.T) {
	a, err := NewIssuer(0)
	require.NoError(t, err)
	b, err := NewIssuer(0)
	require.NoError(t, err)

	token, err := a.Issue(uuid.New(), "ROOM01", "bob")
	require.NoError(t, err)
	_, _, err = b.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	expired, err := NewIssuer(-time.Minute)
	require.NoError(t, err)
	// a negative ttl is treated as no expiry
	token, err = expired.Issue(uuid.New(), "ROOM01", "bob")
	require.NoError(t, err)
	_, _, err = expired.Verify(token)
	assert.NoError(t, err)

	_, _, err = a.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTTL(t *testing.T) {
	for _, s := range []string{"", "0", "never"} {
		d, err := ParseTTL(s)
		require.NoError(t, err)
		assert.Zero(t, d)
	}
	d, err := ParseTTL("72h")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)

	_, err = ParseTTL("soon")
	assert.Error(t, err)
}

func TestRoomPassword(t *testing.T) {
	hash, err := HashRoomPassword("hunter2")
	require.NoError(t, err)

	ok, err := CheckRoomPassword("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckRoomPassword("hunter3", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = CheckRoomPassword("anything", "")
	require.NoError(t, err)
	assert.True(t, ok, "rooms without a password are open")

	_, err = CheckRoomPassword("x", "$argon2id$broken")
	assert.ErrorIs(t, err, ErrInvalidHash)
}
