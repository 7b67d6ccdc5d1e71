package api

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

const defaultJWKSCacheTTL = 15 * time.Minute

// Auth modes.
const (
	AuthModeHS256 = "hs256"
	AuthModeJWKS  = "jwks"
)

// AuthConfig selects how caller tokens are verified.
type AuthConfig struct {
	Mode         string
	SharedSecret string
	JWKS         *keyfunc.JWKS
	Audience     string
	Issuer       string
	KeyCacheTTL  time.Duration
}

// Auth validates incoming JWT tokens.
type Auth struct {
	jwks     *keyfunc.JWKS
	audience string
	issuer   string
	secret   []byte
	hmac     bool

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewAuth creates an Auth for the configured mode.
func NewAuth(cfg AuthConfig) (*Auth, error) {
	a := &Auth{
		jwks:        cfg.JWKS,
		audience:    cfg.Audience,
		issuer:      cfg.Issuer,
		keyCacheTTL: cfg.KeyCacheTTL,
	}
	if a.keyCacheTTL == 0 {
		a.keyCacheTTL = defaultJWKSCacheTTL
	}

	switch strings.ToLower(cfg.Mode) {
	case AuthModeHS256:
		if cfg.SharedSecret == "" {
			return nil, errors.New("shared secret must be set for hs256 auth")
		}
		a.hmac = true
		a.secret = []byte(cfg.SharedSecret)
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	case AuthModeJWKS, "":
		if cfg.JWKS == nil {
			return nil, errors.New("jwks must be set for jwks auth")
		}
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
	}
	return a, nil
}

// UserIDFromAuthHeader extracts the user identifier from the Authorization header.
func (a *Auth) UserIDFromAuthHeader(h string) (string, error) {
	token, err := bearerToken(h)
	if err != nil {
		return "", err
	}
	return a.UserIDFromBearer(token)
}

// UserIDFromBearer validates a raw bearer token and returns its subject.
func (a *Auth) UserIDFromBearer(token string) (string, error) {
	if token == "" {
		return "", errBadAuthorization
	}

	parsed, err := a.parser.Parse(token, func(t *jwt.Token) (any, error) {
		if a.hmac {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return a.secret, nil
		}
		return a.keyForToken(t)
	})
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	now := time.Now().Add(time.Minute).Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return "", errors.New("token expired")
	}
	if a.audience != "" && !claims.VerifyAudience(a.audience, false) {
		return "", errors.New("invalid audience")
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, false) {
		return "", errors.New("invalid issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub")
	}
	return sub, nil
}

func (a *Auth) keyForToken(token *jwt.Token) (any, error) {
	if a.jwks == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}

	key, err := a.jwks.Keyfunc(token)
	if err != nil {
		return nil, err
	}
	if kid != "" {
		a.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(a.keyCacheTTL)})
	}
	return key, nil
}
