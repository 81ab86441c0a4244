package tokens

import (
	"errors"
	"fmt"
	"time"

	"infinitiflow/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// TypeRefresh marks refresh tokens. Access tokens carry no type.
const TypeRefresh = "refresh"

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
)

// Claims is the payload of both token kinds: {id, type?, iat, exp}.
type Claims struct {
	UserID string `json:"id"`
	Type   string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies session tokens. Access and refresh tokens use
// separate secrets so one can never be accepted as the other.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewIssuer builds an issuer from the JWT_* settings.
func NewIssuer(cfg config.Config) *Issuer {
	return &Issuer{
		accessSecret:  []byte(cfg.JWTSecret),
		refreshSecret: []byte(cfg.JWTRefreshSecret),
		accessTTL:     cfg.JWTExpire,
		refreshTTL:    cfg.JWTRefreshExpire,
		now:           time.Now,
	}
}

// AccessSecret is the key the request middleware verifies access tokens with.
func (i *Issuer) AccessSecret() []byte {
	return i.accessSecret
}

// SignAccessToken mints a short-lived session token for userID.
func (i *Issuer) SignAccessToken(userID string) (string, error) {
	return i.sign(userID, "", i.accessSecret, i.accessTTL)
}

// SignRefreshToken mints a long-lived token that can only be exchanged for a new pair.
func (i *Issuer) SignRefreshToken(userID string) (string, error) {
	return i.sign(userID, TypeRefresh, i.refreshSecret, i.refreshTTL)
}

// Pair mints an access and a refresh token together.
func (i *Issuer) Pair(userID string) (access, refresh string, err error) {
	if access, err = i.SignAccessToken(userID); err != nil {
		return "", "", err
	}
	if refresh, err = i.SignRefreshToken(userID); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// VerifyAccessToken checks signature, expiry and algorithm of an access token.
func (i *Issuer) VerifyAccessToken(raw string) (*Claims, error) {
	claims, err := i.parse(raw, i.accessSecret)
	if err != nil {
		return nil, err
	}
	if claims.Type != "" {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// VerifyRefreshToken is VerifyAccessToken for refresh tokens.
func (i *Issuer) VerifyRefreshToken(raw string) (*Claims, error) {
	claims, err := i.parse(raw, i.refreshSecret)
	if err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (i *Issuer) sign(userID, typ string, secret []byte, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		UserID: userID,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) parse(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
