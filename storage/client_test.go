package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"

	"boardsync/domain"
)

type recorded struct {
	method    string
	path      string
	body      string
	auth      string
	requestID string
}

type fakeServer struct {
	mu       sync.Mutex
	requests []recorded
	handler  func(w http.ResponseWriter, r *http.Request, body []byte)
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		method:    r.Method,
		path:      r.URL.Path,
		body:      string(body),
		auth:      r.Header.Get("Authorization"),
		requestID: r.Header.Get(requestIDHeader),
	})
	f.mu.Unlock()
	f.handler(w, r, body)
}

func (f *fakeServer) all() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := sonic.Marshal(v)
	_, _ = w.Write(data)
}

func newTestClient(t *testing.T, f *fakeServer, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	logger, _ := test.NewNullLogger()
	return NewClient(srv.URL, append([]Option{WithLogger(logger)}, opts...)...)
}

const completeBoard = `{
	"id": 3, "title": "Roadmap", "owner_id": 1,
	"created_at": "2024-05-01T10:00:00.123456",
	"columns": [
		{"id": 10, "title": "Todo", "order": 0, "board_id": 3, "cards": [
			{"id": 100, "title": "Spec", "order": 0, "column_id": 10, "deadline": null,
			 "assigned_users": [{"id": 2, "username": "ann", "email": "a@x"}, 5]}
		]}
	],
	"permissions": {"can_edit": true}
}`

func TestFetchBoardWithMembers(t *testing.T) {
	for _, tc := range []struct {
		name    string
		members string
	}{
		{"array", `[{"id": 2, "username": "ann", "role": "admin"}]`},
		{"wrapped", `{"users": [{"id": 2, "username": "ann", "role": "admin"}]}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeServer{handler: func(w http.ResponseWriter, r *http.Request, _ []byte) {
				switch r.URL.Path {
				case "/boards/3/complete":
					_, _ = io.WriteString(w, completeBoard)
				case "/boards/3/permissions/users":
					_, _ = io.WriteString(w, tc.members)
				default:
					http.NotFound(w, r)
				}
			}}
			c := newTestClient(t, f)

			b, err := c.FetchBoard(context.Background(), 3)
			if err != nil {
				t.Fatalf("fetch board: %v", err)
			}
			if b.Title != "Roadmap" || len(b.Columns) != 1 || !b.Permissions.CanEdit {
				t.Fatalf("unexpected board %+v", b)
			}
			card := b.Columns[0].Cards[0]
			if !card.IsAssigned(2) || !card.IsAssigned(5) || card.Deadline != nil {
				t.Fatalf("unexpected card %+v", card)
			}
			if len(b.Members) != 1 || b.Members[0].Role != domain.RoleAdmin {
				t.Fatalf("unexpected members %+v", b.Members)
			}
		})
	}
}

func TestFetchBoardIgnoresMemberFailure(t *testing.T) {
	f := &fakeServer{handler: func(w http.ResponseWriter, r *http.Request, _ []byte) {
		if r.URL.Path == "/boards/3/complete" {
			_, _ = io.WriteString(w, completeBoard)
			return
		}
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "not allowed"})
	}}
	logger, hook := test.NewNullLogger()
	c := newTestClient(t, f, WithLogger(logger))

	b, err := c.FetchBoard(context.Background(), 3)
	if err != nil {
		t.Fatalf("fetch board: %v", err)
	}
	if len(b.Members) != 0 {
		t.Fatalf("expected no members, got %+v", b.Members)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Message != "board members unavailable" {
		t.Fatalf("expected warning about members, got %+v", entry)
	}
}

func TestFetchBoardNotFound(t *testing.T) {
	f := &fakeServer{handler: func(w http.ResponseWriter, r *http.Request, _ []byte) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Board not found"})
	}}
	c := newTestClient(t, f)

	_, err := c.FetchBoard(context.Background(), 3)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Detail != "Board not found" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestMutationEndpoints(t *testing.T) {
	f := &fakeServer{handler: func(w http.ResponseWriter, r *http.Request, _ []byte) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}}
	c := newTestClient(t, f)
	ctx := context.Background()

	if err := c.ReorderColumns(ctx, 3, []int{12, 10, 11}); err != nil {
		t.Fatalf("reorder columns: %v", err)
	}
	if err := c.ReorderCards(ctx, 3, 10, nil); err != nil {
		t.Fatalf("reorder cards: %v", err)
	}
	if err := c.MoveCard(ctx, 3, 100, domain.CardMove{ColumnID: 11, Order: 2}); err != nil {
		t.Fatalf("move card: %v", err)
	}
	if err := c.AssignUser(ctx, 3, 10, 100, 5); err != nil {
		t.Fatalf("assign user: %v", err)
	}

	want := []recorded{
		{method: http.MethodPut, path: "/boards/3/columns/reorder", body: `{"column_order":[12,10,11]}`},
		{method: http.MethodPut, path: "/boards/3/columns/10/cards/reorder", body: `{"card_order":[]}`},
		{method: http.MethodPut, path: "/boards/3/cards/100/move", body: `{"column_id":11,"order":2}`},
		{method: http.MethodPost, path: "/boards/3/columns/10/cards/100/assign", body: `{"user_id":5}`},
	}
	got := f.all()
	if len(got) != len(want) {
		t.Fatalf("expected %d requests, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].method != want[i].method || got[i].path != want[i].path || got[i].body != want[i].body {
			t.Fatalf("request %d: got %+v, want %+v", i, got[i], want[i])
		}
		if _, err := uuid.Parse(got[i].requestID); err != nil {
			t.Fatalf("request %d: invalid request id %q", i, got[i].requestID)
		}
	}
}

func (f *fakeServer) count(path string) int {
	n := 0
	for _, r := range f.all() {
		if r.path == path {
			n++
		}
	}
	return n
}

func TestRetriesOnceAfterUnauthorized(t *testing.T) {
	f := &fakeServer{}
	f.handler = func(w http.ResponseWriter, r *http.Request, body []byte) {
		switch {
		case r.URL.Path == "/auth/refresh":
			if string(body) != `{"refresh_token":"r1"}` {
				t.Errorf("unexpected refresh body %s", body)
			}
			writeJSON(w, http.StatusOK, map[string]string{"access_token": "fresh", "refresh_token": "r2"})
		case r.Header.Get("Authorization") == "Bearer fresh":
			w.WriteHeader(http.StatusOK)
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
		}
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	logger, _ := test.NewNullLogger()
	ts := NewTokenSource(srv.URL, "stale", "r1", srv.Client())
	c := NewClient(srv.URL, WithTokenSource(ts), WithLogger(logger))

	if err := c.ReorderColumns(context.Background(), 3, []int{1}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if n := f.count("/auth/refresh"); n != 1 {
		t.Fatalf("expected 1 refresh, got %d", n)
	}
	reqs := f.all()
	if len(reqs) != 3 || reqs[0].requestID != reqs[2].requestID {
		t.Fatalf("expected retried request to keep its id: %+v", reqs)
	}
}

func TestUnauthorizedWithoutRefreshToken(t *testing.T) {
	f := &fakeServer{handler: func(w http.ResponseWriter, r *http.Request, _ []byte) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
	}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, WithTokenSource(NewTokenSource(srv.URL, "opaque", "", srv.Client())))

	err := c.MoveCard(context.Background(), 1, 2, domain.CardMove{ColumnID: 3})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if n := len(f.all()); n != 1 {
		t.Fatalf("expected no retry, got %d requests", n)
	}
}

func TestTokenSourceRefreshesBeforeExpiry(t *testing.T) {
	f := &fakeServer{}
	f.handler = func(w http.ResponseWriter, r *http.Request, _ []byte) {
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "rotated"})
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	expiring := signedToken(t, time.Now().Add(10*time.Second))
	ts := NewTokenSource(srv.URL, expiring, "r1", srv.Client())
	tok, err := ts.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok != "rotated" || f.count("/auth/refresh") != 1 {
		t.Fatalf("expected proactive refresh, got %q", tok)
	}

	fresh := signedToken(t, time.Now().Add(time.Hour))
	ts = NewTokenSource(srv.URL, fresh, "r1", srv.Client())
	if tok, _ := ts.Token(context.Background()); tok != fresh || f.count("/auth/refresh") != 1 {
		t.Fatalf("fresh token should be used as is")
	}

	ts = NewTokenSource(srv.URL, "opaque-token", "r1", srv.Client())
	if tok, _ := ts.Token(context.Background()); tok != "opaque-token" {
		t.Fatalf("opaque token should be used as is, got %q", tok)
	}
}

func TestTokenSourceRefreshFailure(t *testing.T) {
	f := &fakeServer{handler: func(w http.ResponseWriter, r *http.Request, _ []byte) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "refresh token revoked"})
	}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	ts := NewTokenSource(srv.URL, "", "r1", srv.Client())
	_, err := ts.Token(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Detail != "refresh token revoked" {
		t.Fatalf("expected wrapped APIError, got %v", err)
	}

	ts = NewTokenSource(srv.URL, "a", "", srv.Client())
	if _, err := ts.Refresh(context.Background(), "a"); !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "svc",
		"exp": exp.Unix(),
	})
	s, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}
