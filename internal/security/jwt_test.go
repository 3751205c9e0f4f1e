package security

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/cwrk-planet/presence-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "cwrk-planet/auth-service"
	testAudience = "cwrk-planet"
)

func newKeyAndVerifier(t *testing.T) (*rsa.PrivateKey, *JWTVerifier) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key, NewJWTVerifier(&key.PublicKey, testIssuer, testAudience, 30*time.Second)
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.RegisteredClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(sub string) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    testIssuer,
		Audience:  jwt.ClaimStrings{testAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
}

func TestVerifyValidToken(t *testing.T) {
	key, v := newKeyAndVerifier(t)

	uid, err := v.Verify(signToken(t, key, validClaims("42")))
	require.NoError(t, err)
	require.Equal(t, int64(42), uid)
}

func TestVerifyExpiredToken(t *testing.T) {
	key, v := newKeyAndVerifier(t)

	claims := validClaims("42")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	_, err := v.Verify(signToken(t, key, claims))
	require.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestVerifyWrongIssuer(t *testing.T) {
	key, v := newKeyAndVerifier(t)

	claims := validClaims("42")
	claims.Issuer = "someone-else"

	_, err := v.Verify(signToken(t, key, claims))
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyWrongAudience(t *testing.T) {
	key, v := newKeyAndVerifier(t)

	claims := validClaims("42")
	claims.Audience = jwt.ClaimStrings{"other"}

	_, err := v.Verify(signToken(t, key, claims))
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyBadSubject(t *testing.T) {
	key, v := newKeyAndVerifier(t)

	for _, sub := range []string{"", "abc", "-1", "0"} {
		_, err := v.Verify(signToken(t, key, validClaims(sub)))
		require.ErrorIs(t, err, domain.ErrInvalidToken, "sub=%q", sub)
	}
}

func TestVerifyWrongKey(t *testing.T) {
	_, v := newKeyAndVerifier(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	_, err = v.Verify(signToken(t, otherKey, validClaims("42")))
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyRejectsHS256(t *testing.T) {
	_, v := newKeyAndVerifier(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("42"))
	s, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.Verify(s)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}
