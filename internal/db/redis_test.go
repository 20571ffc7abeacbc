package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/patrickwarner/openadserve/internal/logic/market"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		Ctx:    context.Background(),
	}, mr
}

func TestMarketSnapshotCacheRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	if _, ok := store.CachedMarketSnapshot(); ok {
		t.Fatalf("expected cache miss before any write")
	}

	snap := market.Snapshot{FillRate: 0.7, RejectRate: 0.05, EligibleAdsPerRequest: 2, UnfilledStreak: 1}
	if err := store.CacheMarketSnapshot(snap, time.Second); err != nil {
		t.Fatalf("CacheMarketSnapshot: %v", err)
	}

	got, ok := store.CachedMarketSnapshot()
	if !ok {
		t.Fatalf("expected cache hit after write")
	}
	if got != snap {
		t.Errorf("CachedMarketSnapshot() = %+v, want %+v", got, snap)
	}
}

func TestMarketSnapshotCacheExpires(t *testing.T) {
	store, mr := newTestStore(t)
	snap := market.Snapshot{FillRate: 0.5}
	if err := store.CacheMarketSnapshot(snap, 100*time.Millisecond); err != nil {
		t.Fatalf("CacheMarketSnapshot: %v", err)
	}
	mr.FastForward(200 * time.Millisecond)
	if _, ok := store.CachedMarketSnapshot(); ok {
		t.Fatalf("expected cache entry to have expired")
	}
}

func TestExplorationServeCounter(t *testing.T) {
	store, _ := newTestStore(t)

	count, err := store.ExplorationServeCount(1, 2)
	if err != nil {
		t.Fatalf("ExplorationServeCount: %v", err)
	}
	if count != 0 {
		t.Errorf("initial count = %d, want 0", count)
	}

	if err := store.IncrementExplorationServe(1, 2, time.Hour); err != nil {
		t.Fatalf("IncrementExplorationServe: %v", err)
	}
	if err := store.IncrementExplorationServe(1, 2, time.Hour); err != nil {
		t.Fatalf("IncrementExplorationServe: %v", err)
	}

	count, err = store.ExplorationServeCount(1, 2)
	if err != nil {
		t.Fatalf("ExplorationServeCount: %v", err)
	}
	if count != 2 {
		t.Errorf("count after two increments = %d, want 2", count)
	}

	other, err := store.ExplorationServeCount(1, 3)
	if err != nil {
		t.Fatalf("ExplorationServeCount: %v", err)
	}
	if other != 0 {
		t.Errorf("a different ad id should have its own counter, got %d", other)
	}
}
