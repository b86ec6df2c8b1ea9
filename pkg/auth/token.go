// Package auth signs the connect tokens some streaming servers require on the
// signaling channel.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ConnectClaims identify the stream a signaling channel is opened for.
type ConnectClaims struct {
	ApplicationName string `json:"applicationName"`
	StreamName      string `json:"streamName"`
	jwt.RegisteredClaims
}

// TokenProvider issues HS256-signed connect tokens.
type TokenProvider struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenProvider returns nil when no secret is configured, which disables
// token stamping entirely.
func NewTokenProvider(secret string, ttl time.Duration) *TokenProvider {
	if secret == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenProvider{secret: []byte(secret), ttl: ttl}
}

// ConnectToken signs a short-lived token scoped to one application/stream pair.
func (p *TokenProvider) ConnectToken(applicationName, streamName string) (string, error) {
	now := time.Now()
	claims := &ConnectClaims{
		ApplicationName: applicationName,
		StreamName:      streamName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}
