package tokens

import (
	"testing"
	"time"

	"infinitiflow/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIssuer(now time.Time) *Issuer {
	iss := NewIssuer(config.Config{
		JWTSecret:        "access-secret-access-secret-access-secret",
		JWTRefreshSecret: "refresh-secret-refresh-secret-refresh-secret",
		JWTExpire:        15 * time.Minute,
		JWTRefreshExpire: 30 * 24 * time.Hour,
	})
	iss.now = func() time.Time { return now }
	return iss
}

func TestIssuer_AccessRoundTrip(t *testing.T) {
	now := time.Now()
	iss := testIssuer(now)

	raw, err := iss.SignAccessToken("683cdb8aa96ad71e8e075bd1")
	require.NoError(t, err)

	claims, err := iss.VerifyAccessToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "683cdb8aa96ad71e8e075bd1", claims.UserID)
	assert.Empty(t, claims.Type)
	assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, now.Add(15*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestIssuer_RefreshRoundTrip(t *testing.T) {
	iss := testIssuer(time.Now())

	raw, err := iss.SignRefreshToken("u1")
	require.NoError(t, err)

	claims, err := iss.VerifyRefreshToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, TypeRefresh, claims.Type)
}

func TestIssuer_TokensAreNotInterchangeable(t *testing.T) {
	iss := testIssuer(time.Now())
	access, refresh, err := iss.Pair("u1")
	require.NoError(t, err)

	_, err = iss.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken, "access token is signed with a different secret")

	_, err = iss.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_WrongTypeWithRightSecret(t *testing.T) {
	iss := testIssuer(time.Now())

	// access-shaped token signed with the refresh secret
	raw, err := iss.sign("u1", "", iss.refreshSecret, time.Minute)
	require.NoError(t, err)

	_, err = iss.VerifyRefreshToken(raw)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestIssuer_Expired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	raw, err := testIssuer(past).SignAccessToken("u1")
	require.NoError(t, err)

	_, err = testIssuer(time.Now()).VerifyAccessToken(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_RejectsOtherAlgorithms(t *testing.T) {
	iss := testIssuer(time.Now())
	claims := Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(iss.accessSecret)
	require.NoError(t, err)

	_, err = iss.VerifyAccessToken(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.VerifyAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
