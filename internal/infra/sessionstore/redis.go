package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/atsocial/atsocial"
)

const redisKey = "atsocial:session"

// RedisStore keeps the session in redis, so multiple processes sharing the
// instance resume the same login.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Save(ctx context.Context, session *atsocial.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %v", err)
	}

	if err := s.rdb.Set(ctx, redisKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store session: %v", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*atsocial.Session, error) {
	raw, err := s.rdb.Get(ctx, redisKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %v", err)
	}

	var session atsocial.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, nil
	}
	return &session, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %v", err)
	}
	return nil
}
