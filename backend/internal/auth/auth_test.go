package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-base/backend/internal/constants"
	apperrors "knowledge-base/backend/pkg/errors"
)

func TestIssuer_RoundTrip(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, 24*time.Hour)

	pair, err := issuer.Issue(42)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Access, pair.Refresh)

	claims, err := issuer.Verify(pair.Access, constants.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)

	claims, err = issuer.Verify(pair.Refresh, constants.TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
}

func TestIssuer_RejectsWrongType(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, 24*time.Hour)
	pair, err := issuer.Issue(1)
	require.NoError(t, err)

	_, err = issuer.Verify(pair.Refresh, constants.TokenTypeAccess)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeAuth))
}

func TestIssuer_RejectsExpired(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute, time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	pair, err := issuer.Issue(1)
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(pair.Access, constants.TokenTypeAccess)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeAuth))
}

func TestIssuer_RejectsForeignSecret(t *testing.T) {
	pair, err := NewIssuer("one", time.Hour, time.Hour).Issue(1)
	require.NoError(t, err)

	_, err = NewIssuer("two", time.Hour, time.Hour).Verify(pair.Access, constants.TokenTypeAccess)
	assert.Error(t, err)
}

func TestIssuer_RejectsUnsignedToken(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1, TokenType: constants.TokenTypeAccess}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewIssuer("secret", time.Hour, time.Hour).Verify(raw, constants.TokenTypeAccess)
	assert.Error(t, err)
}

func TestPasswords(t *testing.T) {
	_, err := HashPassword("short")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse!"))
}
