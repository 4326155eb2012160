package clients

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenSubject = "chargex"

// TokenSigner issues short-lived HS256 bearer tokens for upstream calls.
type TokenSigner struct {
	issuer    string
	secret    []byte
	expiresIn time.Duration
}

// NewTokenSigner returns a signer using apiKey as issuer and apiSecret as HMAC key.
func NewTokenSigner(apiKey, apiSecret string, expiresIn time.Duration) *TokenSigner {
	if expiresIn <= 0 {
		expiresIn = time.Minute
	}
	return &TokenSigner{issuer: apiKey, secret: []byte(apiSecret), expiresIn: expiresIn}
}

// Sign issues a token valid from now.
func (t *TokenSigner) Sign(now time.Time) (string, error) {
	if t.issuer == "" || len(t.secret) == 0 {
		return "", errors.New("token: api key and secret are required")
	}
	claims := jwt.RegisteredClaims{
		Issuer:    t.issuer,
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.expiresIn)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify parses a token signed with secret and returns its claims.
func Verify(tokenString, secret string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("token: unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token: invalid claims")
	}
	return claims, nil
}
