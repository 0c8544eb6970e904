package auth

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/wordkeeper/internal/errs"
)

func TestIssueVerify(t *testing.T) {
	key := []byte("test-secret")
	owner := uuid.Must(uuid.NewV4())

	tok, exp, err := Issue(key, owner, time.Hour)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	got, err := Verify(key, tok)
	require.NoError(t, err)
	require.Equal(t, owner, got)

	_, err = Verify([]byte("other"), tok)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	sub, err := SubjectUnverified(tok)
	require.NoError(t, err)
	require.Equal(t, owner, sub)

	sub, gotExp, err := Inspect(tok)
	require.NoError(t, err)
	require.Equal(t, owner, sub)
	require.WithinDuration(t, exp, gotExp, time.Second)
}

func TestVerify_Rejects(t *testing.T) {
	key := []byte("test-secret")

	expired, _, err := Issue(key, uuid.Must(uuid.NewV4()), -time.Hour)
	require.NoError(t, err)
	_, err = Verify(key, expired)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	badSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(key)
	require.NoError(t, err)
	_, err = Verify(key, badSub)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: uuid.Must(uuid.NewV4()).String()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = Verify(key, none)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = Verify(key, "garbage")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, _, err = Issue(nil, uuid.Must(uuid.NewV4()), time.Hour)
	require.Error(t, err)

	_, err = SubjectUnverified("garbage")
	require.Error(t, err)
}
