package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"boardsync/domain"
)

type backend interface {
	FetchBoard(ctx context.Context, boardID int) (domain.Board, error)
	ReorderColumns(ctx context.Context, boardID int, columnIDs []int) error
	ReorderCards(ctx context.Context, boardID, columnID int, cardIDs []int) error
	MoveCard(ctx context.Context, boardID, cardID int, move domain.CardMove) error
	AssignUser(ctx context.Context, boardID, columnID, cardID, userID int) error
}

// Cache wraps a board API with a Redis read-through cache for FetchBoard.
// Every mutation evicts the board whether or not it succeeded, so a
// reconciling refetch always reaches the server.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
// A nil client or zero TTL disables caching.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) FetchBoard(ctx context.Context, boardID int) (domain.Board, error) {
	if b, ok := c.load(ctx, boardID); ok {
		return b, nil
	}
	b, err := c.base.FetchBoard(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	c.store(ctx, boardID, b)
	return b, nil
}

func (c *Cache) ReorderColumns(ctx context.Context, boardID int, columnIDs []int) error {
	defer c.Evict(ctx, boardID)
	return c.base.ReorderColumns(ctx, boardID, columnIDs)
}

func (c *Cache) ReorderCards(ctx context.Context, boardID, columnID int, cardIDs []int) error {
	defer c.Evict(ctx, boardID)
	return c.base.ReorderCards(ctx, boardID, columnID, cardIDs)
}

func (c *Cache) MoveCard(ctx context.Context, boardID, cardID int, move domain.CardMove) error {
	defer c.Evict(ctx, boardID)
	return c.base.MoveCard(ctx, boardID, cardID, move)
}

func (c *Cache) AssignUser(ctx context.Context, boardID, columnID, cardID, userID int) error {
	defer c.Evict(ctx, boardID)
	return c.base.AssignUser(ctx, boardID, columnID, cardID, userID)
}

// Evict drops the cached copy of a board.
func (c *Cache) Evict(ctx context.Context, boardID int) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, boardCacheKey(boardID)).Err()
}

func (c *Cache) load(ctx context.Context, boardID int) (domain.Board, bool) {
	if c.redis == nil {
		return domain.Board{}, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(boardID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the API without failing.
			_ = c.redis.Del(ctx, boardCacheKey(boardID)).Err()
		}
		return domain.Board{}, false
	}
	var b domain.Board
	if err := sonic.Unmarshal(data, &b); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(boardID)).Err()
		return domain.Board{}, false
	}
	return b, true
}

func (c *Cache) store(ctx context.Context, boardID int, b domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(b)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(boardID), data, c.ttl).Err()
}

func boardCacheKey(boardID int) string {
	return "board:" + strconv.Itoa(boardID)
}
