package services

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the atomic-primitive contract the waiting room is built on:
// conditional set with expiry, sorted sets, counters, hashes and TTLs.
// The core never assumes anything richer, so it runs unchanged against
// a real Redis or an in-memory stand-in in tests.
type Store interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// DelIfEquals deletes the key only when it still holds value.
	DelIfEquals(ctx context.Context, key, value string) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	ZAdd(ctx context.Context, key string, score float64, member string) error
	// ZAddNX inserts only when the member is absent; reports whether it inserted.
	ZAddNX(ctx context.Context, key string, score float64, member string) (bool, error)
	ZRem(ctx context.Context, key string, members ...string) error
	ZRank(ctx context.Context, key, member string) (int64, bool, error)
	ZScore(ctx context.Context, key, member string) (float64, bool, error)
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// ZRangeByScoreMax returns members with score <= max, ascending.
	ZRangeByScoreMax(ctx context.Context, key string, max int64) ([]string, error)
	// ZCountMin counts members with score >= min.
	ZCountMin(ctx context.Context, key string, min int64) (int64, error)
	ZCard(ctx context.Context, key string) (int64, error)

	HSet(ctx context.Context, key string, fields map[string]any) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	Keys(ctx context.Context, pattern string) ([]string, error)
}

// delIfEqualsScript releases a value-guarded key atomically. Checking
// then deleting in two round-trips would let a lock expire and get
// re-acquired in between, deleting someone else's lock.
const delIfEqualsScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

type redisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a go-redis client in the Store contract.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *redisStore) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	deleted, err := s.client.Eval(ctx, delIfEqualsScript, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

func (s *redisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *redisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (s *redisStore) ZAddNX(ctx context.Context, key string, score float64, member string) (bool, error) {
	added, err := s.client.ZAddNX(ctx, key, redis.Z{Score: score, Member: member}).Result()
	if err != nil {
		return false, err
	}
	return added > 0, nil
}

func (s *redisStore) ZRem(ctx context.Context, key string, members ...string) error {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.client.ZRem(ctx, key, args...).Err()
}

func (s *redisStore) ZRank(ctx context.Context, key, member string) (int64, bool, error) {
	rank, err := s.client.ZRank(ctx, key, member).Result()
	if err == redis.Nil {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	return rank, true, nil
}

func (s *redisStore) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	score, err := s.client.ZScore(ctx, key, member).Result()
	if err == redis.Nil {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

func (s *redisStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.client.ZRange(ctx, key, start, stop).Result()
}

func (s *redisStore) ZRangeByScoreMax(ctx context.Context, key string, max int64) ([]string, error) {
	return s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(max, 10),
	}).Result()
}

func (s *redisStore) ZCountMin(ctx context.Context, key string, min int64) (int64, error) {
	return s.client.ZCount(ctx, key, strconv.FormatInt(min, 10), "+inf").Result()
}

func (s *redisStore) ZCard(ctx context.Context, key string) (int64, error) {
	return s.client.ZCard(ctx, key).Result()
}

func (s *redisStore) HSet(ctx context.Context, key string, fields map[string]any) error {
	return s.client.HSet(ctx, key, fields).Err()
}

func (s *redisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *redisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.client.Keys(ctx, pattern).Result()
}
