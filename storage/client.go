// Package storage talks to the remote board API and caches board reads.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"boardsync/domain"
)

const requestIDHeader = "X-Request-ID"

// Client calls the board REST API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenSource
	logger  *log.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTokenSource(ts *TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchBoard loads the complete board and its member list concurrently. A
// failed member lookup is logged and the board is returned without members.
func (c *Client) FetchBoard(ctx context.Context, boardID int) (domain.Board, error) {
	var (
		board      domain.Board
		members    []domain.Member
		membersErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.do(gctx, http.MethodGet, fmt.Sprintf("/boards/%d/complete", boardID), nil, &board)
	})
	g.Go(func() error {
		members, membersErr = c.fetchMembers(gctx, boardID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Board{}, err
	}
	if membersErr != nil {
		c.logger.WithError(membersErr).WithField("board_id", boardID).Warn("board members unavailable")
	} else if members != nil {
		board.Members = members
	}
	return board, nil
}

func (c *Client) fetchMembers(ctx context.Context, boardID int) ([]domain.Member, error) {
	var raw sonic.NoCopyRawMessage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/boards/%d/permissions/users", boardID), nil, &raw); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var members []domain.Member
		if err := sonic.Unmarshal(trimmed, &members); err != nil {
			return nil, fmt.Errorf("decode members: %w", err)
		}
		return members, nil
	}
	var wrapped struct {
		Users []domain.Member `json:"users"`
	}
	if err := sonic.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}
	return wrapped.Users, nil
}

func (c *Client) ReorderColumns(ctx context.Context, boardID int, columnIDs []int) error {
	body := map[string][]int{"column_order": nonNil(columnIDs)}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/boards/%d/columns/reorder", boardID), body, nil)
}

func (c *Client) ReorderCards(ctx context.Context, boardID, columnID int, cardIDs []int) error {
	body := map[string][]int{"card_order": nonNil(cardIDs)}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/boards/%d/columns/%d/cards/reorder", boardID, columnID), body, nil)
}

func (c *Client) MoveCard(ctx context.Context, boardID, cardID int, move domain.CardMove) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/boards/%d/cards/%d/move", boardID, cardID), move, nil)
}

func (c *Client) AssignUser(ctx context.Context, boardID, columnID, cardID, userID int) error {
	body := map[string]int{"user_id": userID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/boards/%d/columns/%d/cards/%d/assign", boardID, columnID, cardID), body, nil)
}

// do sends one JSON request. A 401 triggers a single token refresh and
// retry when a refresh token is available.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = sonic.Marshal(body); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}
	requestID := uuid.NewString()

	retried := false
	for {
		token := ""
		if c.tokens != nil {
			var err error
			if token, err = c.tokens.Token(ctx); err != nil {
				return err
			}
		}

		status, data, err := c.send(ctx, method, path, payload, token, requestID)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized && !retried && c.tokens != nil && c.tokens.CanRefresh() {
			retried = true
			if _, err := c.tokens.Refresh(ctx, token); err != nil {
				c.logger.WithError(err).WithField("path", path).Warn("token refresh failed")
				return newAPIError(method, path, status, data)
			}
			continue
		}
		if status < 200 || status > 299 {
			return newAPIError(method, path, status, data)
		}
		if out != nil && len(bytes.TrimSpace(data)) > 0 {
			if err := sonic.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decode %s %s: %w", method, path, err)
			}
		}
		return nil
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token, requestID string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	c.logger.WithFields(log.Fields{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"request_id": requestID,
		"elapsed_ms": float64(time.Since(start)) / float64(time.Millisecond),
	}).Debug("board api call")
	return resp.StatusCode, data, nil
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}
