package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve/internal/logic/market"
)

// RedisStore wraps a redis client used for two process-shared concerns: the
// sub-second market-health snapshot cache (C5) and exploration serve
// counters (C7), both of which must be visible across instances.
type RedisStore struct {
	Client *redis.Client
	Ctx    context.Context
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Ctx:    context.Background(),
	}

	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(rs.Ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}

const marketSnapshotKey = "market:snapshot"

// CachedMarketSnapshot returns the cached market.Snapshot, or false if absent
// or expired. Implementations compute a fresh snapshot from Postgres on a
// miss and call CacheMarketSnapshot to repopulate it.
func (r *RedisStore) CachedMarketSnapshot() (market.Snapshot, bool) {
	raw, err := r.Client.Get(r.Ctx, marketSnapshotKey).Bytes()
	if err != nil {
		return market.Snapshot{}, false
	}
	var s market.Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return market.Snapshot{}, false
	}
	return s, true
}

// CacheMarketSnapshot stores the snapshot with the given sub-second TTL.
func (r *RedisStore) CacheMarketSnapshot(s market.Snapshot, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal market snapshot: %w", err)
	}
	return r.Client.Set(r.Ctx, marketSnapshotKey, raw, ttl).Err()
}

func explorationKey(partnerID, adID int) string {
	return fmt.Sprintf("explore:%d:%d", partnerID, adID)
}

// ExplorationServeCount returns the (partnerID, adID) counter used for C7's
// serve cap: the number of IncrementExplorationServe calls since the key was
// created. The scoring path increments it each time the exploration bonus is
// applied to the candidate, whether or not that candidate wins. The key
// expires one lookback after its first increment.
func (r *RedisStore) ExplorationServeCount(partnerID, adID int) (int, error) {
	val, err := r.Client.Get(r.Ctx, explorationKey(partnerID, adID)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("get exploration serve count: %w", err)
	}
	return val, nil
}

// IncrementExplorationServe increments the exploration serve counter for
// (partnerID, adID), setting the lookback-day TTL on first increment.
func (r *RedisStore) IncrementExplorationServe(partnerID, adID int, lookback time.Duration) error {
	key := explorationKey(partnerID, adID)
	val, err := r.Client.Incr(r.Ctx, key).Result()
	if err != nil {
		return fmt.Errorf("incr exploration serve count: %w", err)
	}
	if val == 1 {
		r.Client.Expire(r.Ctx, key, lookback)
	}
	return nil
}
