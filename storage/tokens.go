package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
)

const defaultRefreshSkew = 30 * time.Second

// TokenSource hands out the bearer token for board API calls and rotates it
// through the refresh endpoint.
type TokenSource struct {
	baseURL string
	http    *http.Client
	skew    time.Duration
	now     func() time.Time

	mu      sync.Mutex
	access  string
	refresh string
}

func NewTokenSource(baseURL, access, refresh string, httpClient *http.Client) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		skew:    defaultRefreshSkew,
		now:     time.Now,
		access:  access,
		refresh: refresh,
	}
}

// Token returns a usable access token, refreshing it first when it expires
// within the skew window and a refresh token is held.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.refresh == "" || !t.expiringLocked() {
		return t.access, nil
	}
	return t.refreshLocked(ctx)
}

// CanRefresh reports whether a refresh token is held.
func (t *TokenSource) CanRefresh() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refresh != ""
}

// Refresh rotates the tokens after stale was rejected. Concurrent callers
// holding the same stale token share one refresh.
func (t *TokenSource) Refresh(ctx context.Context, stale string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.access != stale && t.access != "" {
		return t.access, nil
	}
	return t.refreshLocked(ctx)
}

func (t *TokenSource) expiringLocked() bool {
	if t.access == "" {
		return true
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(t.access, &claims); err != nil {
		// opaque tokens are used until the server rejects them
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !t.now().Add(t.skew).Before(claims.ExpiresAt.Time)
}

func (t *TokenSource) refreshLocked(ctx context.Context) (string, error) {
	if t.refresh == "" {
		return "", ErrNoRefreshToken
	}
	body, err := sonic.Marshal(map[string]string{"refresh_token": t.refresh})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("refresh token: %w", newAPIError(http.MethodPost, "/auth/refresh", resp.StatusCode, data))
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := sonic.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("refresh token: decode: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("refresh token: empty access token")
	}
	t.access = out.AccessToken
	if out.RefreshToken != "" {
		t.refresh = out.RefreshToken
	}
	return t.access, nil
}
