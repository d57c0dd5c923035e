package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	attemptPrefix = "rl:attempts:"
	lockoutPrefix = "rl:lockout:"
)

// RedisStore keeps attempt windows in sorted sets scored by timestamp and
// lockouts in plain keys whose TTL matches the lockout duration.
type RedisStore struct {
	cache *redis.Client
}

// NewRedisStore builds a Redis-backed attempt store.
func NewRedisStore(cache *redis.Client) *RedisStore {
	return &RedisStore{cache: cache}
}

func (s *RedisStore) attemptKey(subjectID, kind string) string {
	return attemptPrefix + subjectID + ":" + kind
}

func (s *RedisStore) lockoutKey(subjectID, kind string) string {
	return lockoutPrefix + subjectID + ":" + kind
}

// Add records the attempt and prunes entries that fell out of the window.
func (s *RedisStore) Add(ctx context.Context, subjectID, kind string, at time.Time, window time.Duration) error {
	key := s.attemptKey(subjectID, kind)
	score := float64(at.UnixNano())
	if err := s.cache.ZAdd(ctx, key, redis.Z{Score: score, Member: uuid.NewString()}).Err(); err != nil {
		return err
	}
	cutoff := strconv.FormatInt(at.Add(-window).UnixNano(), 10)
	if err := s.cache.ZRemRangeByScore(ctx, key, "0", "("+cutoff).Err(); err != nil {
		return err
	}
	return s.cache.Expire(ctx, key, window).Err()
}

// Count returns attempts at or after since.
func (s *RedisStore) Count(ctx context.Context, subjectID, kind string, since time.Time) (int, error) {
	min := strconv.FormatInt(since.UnixNano(), 10)
	n, err := s.cache.ZCount(ctx, s.attemptKey(subjectID, kind), min, "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// LockoutUntil reads the lockout deadline; Redis TTL expiry stands in for lazy
// clearing, so a missing key means no lockout.
func (s *RedisStore) LockoutUntil(ctx context.Context, subjectID, kind string) (time.Time, error) {
	v, err := s.cache.Get(ctx, s.lockoutKey(subjectID, kind)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	nanos, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, nanos).UTC(), nil
}

// SetLockout stores the deadline and drops the attempt window.
func (s *RedisStore) SetLockout(ctx context.Context, subjectID, kind string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, s.lockoutKey(subjectID, kind), strconv.FormatInt(until.UnixNano(), 10), ttl).Err(); err != nil {
		return err
	}
	return s.cache.Del(ctx, s.attemptKey(subjectID, kind)).Err()
}

// ClearLockout removes the lockout key.
func (s *RedisStore) ClearLockout(ctx context.Context, subjectID, kind string) error {
	return s.cache.Del(ctx, s.lockoutKey(subjectID, kind)).Err()
}
