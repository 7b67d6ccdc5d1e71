package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"boardsync/domain"
)

type stubBackend struct {
	fetchBoardFn func(ctx context.Context, boardID int) (domain.Board, error)
	mutateErr    error
	mutations    int
}

func (s *stubBackend) FetchBoard(ctx context.Context, boardID int) (domain.Board, error) {
	if s.fetchBoardFn == nil {
		return domain.Board{}, errors.New("unexpected FetchBoard call")
	}
	return s.fetchBoardFn(ctx, boardID)
}

func (s *stubBackend) ReorderColumns(ctx context.Context, boardID int, columnIDs []int) error {
	s.mutations++
	return s.mutateErr
}

func (s *stubBackend) ReorderCards(ctx context.Context, boardID, columnID int, cardIDs []int) error {
	s.mutations++
	return s.mutateErr
}

func (s *stubBackend) MoveCard(ctx context.Context, boardID, cardID int, move domain.CardMove) error {
	s.mutations++
	return s.mutateErr
}

func (s *stubBackend) AssignUser(ctx context.Context, boardID, columnID, cardID, userID int) error {
	s.mutations++
	return s.mutateErr
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func cachedBoard() domain.Board {
	deadline := domain.Timestamp{Time: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	return domain.Board{
		ID:    3,
		Title: "Roadmap",
		Columns: []domain.Column{{ID: 10, Cards: []domain.Card{
			{ID: 100, ColumnID: 10, Deadline: &deadline, AssignedUserIDs: domain.AssignedUsers{2, 5}},
		}}},
	}
}

func TestCacheFetchBoardMissThenHit(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	var calls int
	cache := NewCache(&stubBackend{
		fetchBoardFn: func(ctx context.Context, boardID int) (domain.Board, error) {
			calls++
			if boardID != 3 {
				t.Fatalf("unexpected board id: %d", boardID)
			}
			return cachedBoard(), nil
		},
	}, client, time.Minute)

	b, err := cache.FetchBoard(ctx, 3)
	if err != nil {
		t.Fatalf("fetch board: %v", err)
	}
	if b.Title != "Roadmap" {
		t.Fatalf("unexpected board: %+v", b)
	}
	if ttl := mr.TTL(boardCacheKey(3)); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	b, err = cache.FetchBoard(ctx, 3)
	if err != nil {
		t.Fatalf("fetch board from cache: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call to backend, got %d", calls)
	}
	card := b.Columns[0].Cards[0]
	if card.Deadline == nil || !card.Deadline.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("deadline lost in cache: %+v", card.Deadline)
	}
	if !card.IsAssigned(5) {
		t.Fatalf("assignment lost in cache: %v", card.AssignedUserIDs)
	}
}

func TestCacheMutationsEvictEvenOnFailure(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	backend := &stubBackend{
		fetchBoardFn: func(ctx context.Context, boardID int) (domain.Board, error) { return cachedBoard(), nil },
	}
	cache := NewCache(backend, client, time.Minute)

	mutations := []func() error{
		func() error { return cache.ReorderColumns(ctx, 3, []int{10}) },
		func() error { return cache.ReorderCards(ctx, 3, 10, []int{100}) },
		func() error { return cache.MoveCard(ctx, 3, 100, domain.CardMove{ColumnID: 10}) },
		func() error { return cache.AssignUser(ctx, 3, 10, 100, 7) },
	}
	for i, mutate := range mutations {
		backend.mutateErr = nil
		if i%2 == 1 {
			backend.mutateErr = errors.New("rejected")
		}
		if _, err := cache.FetchBoard(ctx, 3); err != nil {
			t.Fatalf("prime cache: %v", err)
		}
		if !mr.Exists(boardCacheKey(3)) {
			t.Fatalf("expected cache to be primed")
		}
		err := mutate()
		if (err != nil) != (backend.mutateErr != nil) {
			t.Fatalf("mutation %d: unexpected error %v", i, err)
		}
		if mr.Exists(boardCacheKey(3)) {
			t.Fatalf("mutation %d did not evict the board", i)
		}
	}
	if backend.mutations != len(mutations) {
		t.Fatalf("expected %d backend mutations, got %d", len(mutations), backend.mutations)
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	mr, client := setupRedis(t)
	if err := mr.Set(boardCacheKey(3), "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}
	cache := NewCache(&stubBackend{
		fetchBoardFn: func(ctx context.Context, boardID int) (domain.Board, error) { return cachedBoard(), nil },
	}, client, time.Minute)

	b, err := cache.FetchBoard(context.Background(), 3)
	if err != nil || b.ID != 3 {
		t.Fatalf("expected fallback to backend, got %+v %v", b, err)
	}
}

func TestCacheDisabled(t *testing.T) {
	var calls int
	cache := NewCache(&stubBackend{
		fetchBoardFn: func(ctx context.Context, boardID int) (domain.Board, error) {
			calls++
			return cachedBoard(), nil
		},
	}, nil, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.FetchBoard(context.Background(), 3); err != nil {
			t.Fatalf("fetch board: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected every fetch to reach the backend, got %d", calls)
	}
	if err := cache.ReorderColumns(context.Background(), 3, nil); err != nil {
		t.Fatalf("reorder without redis: %v", err)
	}
}
