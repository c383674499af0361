package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-entropy"

func TestSignAndParse(t *testing.T) {
	token, err := Sign(testSecret, "emoji-diary", "user_1", "sess_1", time.Hour)
	require.NoError(t, err)

	v := NewVerifier(testSecret, "emoji-diary")
	claims, err := v.Parse("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.UserID())
	assert.Equal(t, "sess_1", claims.SessionID)

	claims, err = v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.UserID())
}

func TestParse_Rejects(t *testing.T) {
	v := NewVerifier(testSecret, "")

	_, err := v.Parse("")
	assert.ErrorIs(t, err, ErrNoToken)
	_, err = v.Parse("Bearer ")
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = v.Parse("Bearer not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := Sign("another-secret", "", "user_1", "sess_1", time.Hour)
	require.NoError(t, err)
	_, err = v.Parse(other)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong signature")

	expired, err := Sign(testSecret, "", "user_1", "sess_1", -time.Hour)
	require.NoError(t, err)
	_, err = v.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	noSubject, err := Sign(testSecret, "", "", "sess_1", time.Hour)
	require.NoError(t, err)
	_, err = v.Parse(noSubject)
	assert.ErrorIs(t, err, ErrInvalidToken, "missing subject")
}

func TestParse_IssuerMismatch(t *testing.T) {
	token, err := Sign(testSecret, "someone-else", "user_1", "sess_1", time.Hour)
	require.NoError(t, err)
	_, err = NewVerifier(testSecret, "emoji-diary").Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{
		SessionID: "sess_1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user_1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewVerifier(testSecret, "").Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_RequiresExpiry(t *testing.T) {
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user_1"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewVerifier(testSecret, "").Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
