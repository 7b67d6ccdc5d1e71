package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"boardsync/api"
	"boardsync/domain"
)

func TestPrintBoard(t *testing.T) {
	b := domain.Board{
		ID:    3,
		Title: "Roadmap",
		Columns: []domain.Column{
			{ID: 1, Title: "Todo", Order: 0, Cards: []domain.Card{
				{ID: 11, Title: "Spec", Order: 0, Completed: true},
				{ID: 12, Title: "Build", Order: 1},
			}},
			{ID: 2, Title: "Done", Order: 1},
		},
	}
	var buf bytes.Buffer
	printBoard(&buf, b, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	out := buf.String()
	for _, want := range []string{"Roadmap (#3)", "[0] Todo (2)", "0. [x] Spec (card-11)", "1. [ ] Build (card-12)", "[1] Done (0)", "2 cards, 1 completed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestShowRejectsBadBoardID(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"show", "abc"})
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "invalid board id") {
		t.Fatalf("expected invalid board id error, got %v", err)
	}
}

func TestTokenCommandMintsVerifiableTokens(t *testing.T) {
	t.Setenv("AUTH_MODE", "hs256")
	t.Setenv("AUTH_SHARED_SECRET", "secret")
	t.Setenv("AUTH_AUDIENCE", "")
	t.Setenv("AUTH_ISSUER", "")

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "1", "2"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("token: %v", err)
	}
	lines := strings.Fields(out.String())
	if len(lines) != 2 {
		t.Fatalf("expected two tokens, got %q", out.String())
	}

	auth, err := api.NewAuth(api.AuthConfig{Mode: api.AuthModeHS256, SharedSecret: "secret"})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	for i, want := range []string{"1", "2"} {
		sub, err := auth.UserIDFromBearer(lines[i])
		if err != nil || sub != want {
			t.Fatalf("token %d: expected sub %s, got %q (%v)", i, want, sub, err)
		}
	}
}
