package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

// Cache wraps a board repository with Redis-backed caching for single-board
// reads. Writes pass through and evict. Redis failures never fail a request;
// reads just fall back to the backing store.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

type backend interface {
	Insert(ctx context.Context, b *domain.Board) error
	Get(ctx context.Context, boardID string) (*domain.Board, error)
	Update(ctx context.Context, boardID string, apply func(*domain.Board) error) (*domain.Board, error)
	Delete(ctx context.Context, boardID string) error
	ListByMember(ctx context.Context, userID string) ([]*domain.Board, error)
	FindByTask(ctx context.Context, taskID string) (*domain.Board, error)
}

// NewCache creates a caching repository wrapper using the provided Redis
// client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) Insert(ctx context.Context, b *domain.Board) error {
	if err := c.base.Insert(ctx, b); err != nil {
		return err
	}
	c.evict(ctx, b.ID)
	return nil
}

func (c *Cache) Get(ctx context.Context, boardID string) (*domain.Board, error) {
	if b, ok := c.loadFromCache(ctx, boardID); ok {
		return b, nil
	}
	b, err := c.base.Get(ctx, boardID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, b)
	return b, nil
}

func (c *Cache) Update(ctx context.Context, boardID string, apply func(*domain.Board) error) (*domain.Board, error) {
	b, err := c.base.Update(ctx, boardID, apply)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, boardID)
	return b, nil
}

func (c *Cache) Delete(ctx context.Context, boardID string) error {
	if err := c.base.Delete(ctx, boardID); err != nil {
		return err
	}
	c.evict(ctx, boardID)
	return nil
}

// ListByMember always hits the backing store: membership changes on any
// board would otherwise require fanning invalidations out per user.
func (c *Cache) ListByMember(ctx context.Context, userID string) ([]*domain.Board, error) {
	return c.base.ListByMember(ctx, userID)
}

func (c *Cache) FindByTask(ctx context.Context, taskID string) (*domain.Board, error) {
	return c.base.FindByTask(ctx, taskID)
}

func (c *Cache) loadFromCache(ctx context.Context, boardID string) (*domain.Board, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(boardID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, boardCacheKey(boardID)).Err()
		}
		return nil, false
	}
	var b domain.Board
	if err := json.Unmarshal(data, &b); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(boardID)).Err()
		return nil, false
	}
	return &b, true
}

func (c *Cache) store(ctx context.Context, b *domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(b.ID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, boardID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, boardCacheKey(boardID)).Result()
}

func boardCacheKey(boardID string) string {
	return "board:" + boardID
}
