package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("export-1", "coverage/2025-03/coverage_2025-03-03.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	exportID, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "export-1", exportID)
	require.Equal(t, "coverage/2025-03/coverage_2025-03-03.csv", path)
	require.True(t, expiresAt.Equal(parsedExpiry))
}

func TestSignedURLSignerExpired(t *testing.T) {
	now := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	signer := NewSignedURLSigner("secret", time.Minute).WithClock(func() time.Time { return now })
	token, _, err := signer.Generate("export-1", "coverage/file.csv")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, _, _, err = signer.Parse(token, false)
	require.ErrorIs(t, err, ErrTokenExpired)

	exportID, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "export-1", exportID)
	require.Equal(t, "coverage/file.csv", path)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("export-1", "coverage/file.csv")
	require.NoError(t, err)
	other, _, err := signer.Generate("export-2", "coverage/../../etc/passwd")
	require.NoError(t, err)

	_, _, _, err = NewSignedURLSigner("other", time.Hour).Parse(token, false)
	require.ErrorIs(t, err, ErrInvalidToken)

	// payload of one token with the signature of another
	a, b := strings.Split(token, "."), strings.Split(other, ".")
	_, _, _, err = signer.Parse(strings.Join([]string{a[0], b[1], a[2]}, "."), false)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, _, _, err = signer.Parse("bogus", false)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = signer.Generate("", "coverage/file.csv")
	require.Error(t, err)
}

func TestSignedURLSignerRejectsForeignAudience(t *testing.T) {
	claims := jwt.RegisteredClaims{
		ID:        "export-1",
		Subject:   "coverage/file.csv",
		Audience:  jwt.ClaimStrings{"api"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	signer := NewSignedURLSigner("secret", time.Hour)
	_, _, _, err = signer.Parse(token, false)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, _, _, err = signer.Parse(token, true)
	require.ErrorIs(t, err, ErrInvalidToken)
}
