package jwtverify

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-village-store/identity"
)

var (
	secret = []byte("0123456789abcdef0123456789abcdef")
	now    = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

func newVerifier(t *testing.T, issuer, audience string) *Verifier {
	t.Helper()
	v, err := New(Config{Secret: secret, Issuer: issuer, Audience: audience, Now: func() time.Time { return now }})
	require.NoError(t, err)
	return v
}

func textCode(err error) string {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.TextCode
	}
	return ""
}

func TestVerify(t *testing.T) {
	v := newVerifier(t, "villages", "game")
	token, err := Sign(secret, identity.Claims{Subject: "sub-1", Email: "ana@example.com", Name: "Ana"}, "villages", "game", now, time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, identity.Claims{Subject: "sub-1", Email: "ana@example.com", Name: "Ana"}, claims)
}

func TestVerifyRejects(t *testing.T) {
	v := newVerifier(t, "villages", "game")
	sign := func(key []byte, iss, aud string, at time.Time) string {
		tok, err := Sign(key, identity.Claims{Subject: "sub-1"}, iss, aud, at, time.Hour)
		require.NoError(t, err)
		return tok
	}

	tests := []struct {
		name  string
		token string
		code  string
	}{
		{"wrong secret", sign([]byte("another-secret-another-secret!!"), "villages", "game", now), "TOKEN_SIGNATURE_INVALID"},
		{"expired", sign(secret, "villages", "game", now.Add(-2*time.Hour)), "TOKEN_EXPIRED"},
		{"wrong issuer", sign(secret, "elsewhere", "game", now), "TOKEN_INVALID"},
		{"wrong audience", sign(secret, "villages", "other", now), "TOKEN_INVALID"},
		{"garbage", "not.a.token", "TOKEN_MALFORMED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryAuth))
			assert.Equal(t, tt.code, textCode(err))
		})
	}
}

func TestVerifyRejectsUnsignedAlgorithms(t *testing.T) {
	v := newVerifier(t, "", "")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "sub-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), tok)
	assert.True(t, errors.IsCategory(err, errors.CategoryAuth))
}

func TestVerifyRequiresExpiry(t *testing.T) {
	v := newVerifier(t, "", "")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "sub-1"}).SignedString(secret)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), tok)
	assert.Error(t, err)
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
