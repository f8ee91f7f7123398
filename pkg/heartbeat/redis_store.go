package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces heartbeat keys in a shared Redis instance so
// multiple opencode hosts can see each other's live sessions.
const redisKeyPrefix = "opencode:heartbeat:"

// redisTTL bounds how long a heartbeat survives an opencode host that
// crashed without ever deleting its key.
const redisTTL = 2 * time.Minute

// RedisStore is an opt-in heartbeat backend shared across multiple
// opencode hosts via a common Redis instance, so BusySiblings-style
// liveness checks can see sessions running on other hosts.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to addr/db with the given password ("" for none).
func NewRedisStore(addr, password string, db int) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: rdb}
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

// Write upserts hb's current state with a refreshing TTL.
func (s *RedisStore) Write(ctx context.Context, hb Heartbeat) error {
	hb.Timestamp = time.Now().UTC()
	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("heartbeat: marshal: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(hb.SessionID), data, redisTTL).Err(); err != nil {
		return fmt.Errorf("heartbeat: redis set: %w", err)
	}
	return nil
}

// Delete removes sessionID's heartbeat, for a clean shutdown.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("heartbeat: redis del: %w", err)
	}
	return nil
}

// List returns every live heartbeat currently visible in Redis, across
// every opencode host sharing this instance.
func (s *RedisStore) List(ctx context.Context) ([]Heartbeat, error) {
	var out []Heartbeat
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var hb Heartbeat
		if err := json.Unmarshal(data, &hb); err != nil {
			continue
		}
		out = append(out, hb)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("heartbeat: redis scan: %w", err)
	}
	return out, nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
