package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"taskboard-api/board"
	"taskboard-api/domain"
)

// stubBackend counts calls so cache hits and misses are observable.
type stubBackend struct {
	boards  map[string]*domain.Board
	gets    int
	updates int
}

func newStubBackend(boards ...*domain.Board) *stubBackend {
	s := &stubBackend{boards: make(map[string]*domain.Board)}
	for _, b := range boards {
		s.boards[b.ID] = b
	}
	return s
}

func (s *stubBackend) Insert(_ context.Context, b *domain.Board) error {
	s.boards[b.ID] = b
	return nil
}

func (s *stubBackend) Get(_ context.Context, boardID string) (*domain.Board, error) {
	s.gets++
	b, ok := s.boards[boardID]
	if !ok {
		return nil, board.ErrNotFound
	}
	return b, nil
}

func (s *stubBackend) Update(_ context.Context, boardID string, apply func(*domain.Board) error) (*domain.Board, error) {
	s.updates++
	b, ok := s.boards[boardID]
	if !ok {
		return nil, board.ErrNotFound
	}
	if err := apply(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *stubBackend) Delete(_ context.Context, boardID string) error {
	delete(s.boards, boardID)
	return nil
}

func (s *stubBackend) ListByMember(context.Context, string) ([]*domain.Board, error) {
	return nil, nil
}

func (s *stubBackend) FindByTask(context.Context, string) (*domain.Board, error) {
	return nil, board.ErrNotFound
}

func testCache(t *testing.T, base backend) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(base, client, 5*time.Minute), srv
}

func TestCacheGetServesSecondReadFromRedis(t *testing.T) {
	base := newStubBackend(sampleBoard())
	cache, _ := testCache(t, base)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		b, err := cache.Get(ctx, "b1")
		if err != nil {
			t.Fatalf("Get (run %d): %v", i+1, err)
		}
		if b.ID != "b1" || b.Title != "Launch" {
			t.Errorf("run %d: board = %+v", i+1, b)
		}
	}
	if base.gets != 1 {
		t.Errorf("backing store hit %d times, want 1", base.gets)
	}
}

func TestCacheUpdateEvicts(t *testing.T) {
	base := newStubBackend(sampleBoard())
	cache, _ := testCache(t, base)
	ctx := context.Background()

	if _, err := cache.Get(ctx, "b1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := cache.Update(ctx, "b1", func(b *domain.Board) error {
		b.Title = "Renamed"
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	b, err := cache.Get(ctx, "b1")
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if b.Title != "Renamed" {
		t.Errorf("title = %q, stale cache entry survived an update", b.Title)
	}
	if base.gets != 2 {
		t.Errorf("backing store hit %d times, want miss after eviction", base.gets)
	}
}

func TestCacheDeleteEvicts(t *testing.T) {
	base := newStubBackend(sampleBoard())
	cache, srv := testCache(t, base)
	ctx := context.Background()

	if _, err := cache.Get(ctx, "b1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := cache.Delete(ctx, "b1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if srv.Exists("board:b1") {
		t.Error("cache entry survived a delete")
	}
}

func TestCacheFallsBackWhenRedisDown(t *testing.T) {
	base := newStubBackend(sampleBoard())
	cache, srv := testCache(t, base)
	ctx := context.Background()

	srv.Close()
	b, err := cache.Get(ctx, "b1")
	if err != nil {
		t.Fatalf("Get with redis down: %v", err)
	}
	if b.ID != "b1" {
		t.Errorf("board = %+v", b)
	}
}

func TestCacheEntryExpires(t *testing.T) {
	base := newStubBackend(sampleBoard())
	cache, srv := testCache(t, base)
	ctx := context.Background()

	if _, err := cache.Get(ctx, "b1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	srv.FastForward(6 * time.Minute)
	if _, err := cache.Get(ctx, "b1"); err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if base.gets != 2 {
		t.Errorf("backing store hit %d times, want reload after TTL", base.gets)
	}
}

func TestCacheNilRedisPassesThrough(t *testing.T) {
	base := newStubBackend(sampleBoard())
	cache := NewCache(base, nil, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cache.Get(ctx, "b1"); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if base.gets != 2 {
		t.Errorf("backing store hit %d times, nil redis must pass every read through", base.gets)
	}
}
