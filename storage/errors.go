package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// ErrNoRefreshToken is returned when a refresh is needed but none is held.
var ErrNoRefreshToken = errors.New("no refresh token")

// APIError is a non-2xx response from the board API.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("board api: %s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("board api: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Detail)
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{Method: method, Path: path, Status: status}
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := sonic.Unmarshal(body, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			e.Detail = s
		} else if raw, err := sonic.MarshalString(payload.Detail); err == nil {
			e.Detail = raw
		}
		return e
	}
	e.Detail = strings.TrimSpace(string(body))
	if len(e.Detail) > 256 {
		e.Detail = e.Detail[:256]
	}
	return e
}
