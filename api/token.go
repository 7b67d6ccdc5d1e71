package api

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenClaims describes a caller token minted for hs256 mode.
type TokenClaims struct {
	Subject  string
	Audience string
	Issuer   string
	TTL      time.Duration
}

// SignToken mints an HS256 caller token accepted by an hs256 Auth sharing
// the same secret.
func SignToken(secret string, c TokenClaims) (string, error) {
	if secret == "" {
		return "", errors.New("shared secret must be set")
	}
	if c.Subject == "" {
		return "", errors.New("subject must be set")
	}
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
	claims := jwt.MapClaims{
		"sub": c.Subject,
		"exp": time.Now().Add(c.TTL).Unix(),
	}
	if c.Audience != "" {
		claims["aud"] = c.Audience
	}
	if c.Issuer != "" {
		claims["iss"] = c.Issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
